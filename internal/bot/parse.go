package bot

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ReferralPayload is the /start parameter for a user's invite link.
func ReferralPayload(userID int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(userID, 10)))
}

func ReferralLink(botUsername string, userID int64) string {
	return "https://t.me/" + botUsername + "?start=" + ReferralPayload(userID)
}

// ParseReferrer decodes a /start payload: base64url of the referrer id, or
// the bare id. Garbage and self-referrals give nil.
func ParseReferrer(payload string, self int64) *int64 {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}

	var id int64
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(payload, "="))
	if err == nil {
		id, err = strconv.ParseInt(string(raw), 10, 64)
	}
	if err != nil {
		id, err = strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return nil
		}
	}

	if id <= 0 || id == self {
		return nil
	}
	return &id
}

// WishFromForward recovers the wish text from a forwarded broadcast. It
// prefers the blockquote entity and falls back to everything after the
// header line.
func WishFromForward(msg *tgbotapi.Message) string {
	text, entities := msg.Text, msg.Entities
	if text == "" {
		text, entities = msg.Caption, msg.CaptionEntities
	}

	for _, e := range entities {
		if e.Type == "blockquote" {
			if s := strings.TrimSpace(utf16Slice(text, e.Offset, e.Length)); s != "" {
				return s
			}
		}
	}

	header, rest, ok := strings.Cut(text, "\n")
	if ok && strings.Contains(strings.ToLower(header), "пожелание от") {
		return strings.TrimSpace(rest)
	}
	return ""
}

// Entity offsets are in UTF-16 code units.
func utf16Slice(s string, offset, length int) string {
	u := utf16.Encode([]rune(s))
	if offset < 0 || length < 0 || offset+length > len(u) {
		return ""
	}
	return string(utf16.Decode(u[offset : offset+length]))
}

var errUsage = errors.New("usage")

type ticketGrant struct {
	username string
	count    int64
	note     string
}

// parseTicketGrant reads "<@user> <count> [message]".
func parseTicketGrant(args string) (ticketGrant, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return ticketGrant{}, errUsage
	}
	count, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || count <= 0 {
		return ticketGrant{}, errUsage
	}

	var note string
	if len(fields) > 2 {
		// keep the message as typed, minus the first two words
		rest := strings.TrimSpace(args)
		for i := 0; i < 2; i++ {
			rest = strings.TrimSpace(strings.TrimPrefix(rest, fields[i]))
		}
		note = rest
	}
	return ticketGrant{username: fields[0], count: count, note: note}, nil
}

// ticketWord declines "билет" for n.
func ticketWord(n int64) string {
	if n < 0 {
		n = -n
	}
	if m := n % 100; m >= 11 && m <= 14 {
		return "билетов"
	}
	switch n % 10 {
	case 1:
		return "билет"
	case 2, 3, 4:
		return "билета"
	default:
		return "билетов"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
