// Package export renders the raffle entrant list. Every ticket becomes one
// numbered line, so a user with three tickets appears three times.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"wishbot/internal/domain"
)

const (
	FormatCSV = "csv"
	FormatTXT = "txt"
)

// UTF-8 BOM so Excel opens the file with the right encoding.
var bom = []byte{0xEF, 0xBB, 0xBF}

// File is a rendered export ready to be sent as a document.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	Tickets     int64
}

// Render builds the export in the given format.
func Render(format string, ps []domain.Participant) (*File, error) {
	switch format {
	case FormatCSV, "":
		return CSV(ps)
	case FormatTXT:
		return TXT(ps), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

func CSV(ps []domain.Participant) (*File, error) {
	var buf bytes.Buffer
	buf.Write(bom)

	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Ticket Number", "User ID", "Username", "Wish"}); err != nil {
		return nil, err
	}

	var n int64
	for _, p := range ps {
		username := "N/A"
		if p.Username != nil && *p.Username != "" {
			username = *p.Username
		}
		var wish string
		if p.WishText != nil {
			wish = *p.WishText
		}
		for i := int64(0); i < p.Tickets; i++ {
			n++
			if err := w.Write([]string{
				strconv.FormatInt(n, 10),
				strconv.FormatInt(p.UserID, 10),
				username,
				wish,
			}); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return &File{
		Name:        "raffle_participants.csv",
		ContentType: "text/csv; charset=utf-8",
		Data:        buf.Bytes(),
		Tickets:     n,
	}, nil
}

// TXT is the plain list used by external randomizers.
func TXT(ps []domain.Participant) *File {
	var buf bytes.Buffer
	var n int64
	for _, p := range ps {
		name := domain.DisplayName(p.Username, p.UserID)
		for i := int64(0); i < p.Tickets; i++ {
			n++
			if n > 1 {
				buf.WriteByte('\n')
			}
			fmt.Fprintf(&buf, "%d. %s", n, name)
		}
	}
	return &File{
		Name:        "raffle_participants.txt",
		ContentType: "text/plain; charset=utf-8",
		Data:        buf.Bytes(),
		Tickets:     n,
	}
}
