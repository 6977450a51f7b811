package domain

import (
	"strconv"
	"time"
)

type Wish struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RandomWish is a wish joined with its author, as picked for a broadcast.
type RandomWish struct {
	Text     string  `json:"text"`
	Username *string `json:"username,omitempty"`
	UserID   int64   `json:"user_id"`
}

func (w *RandomWish) DisplayName() string {
	return DisplayName(w.Username, w.UserID)
}

// Participant is one row of the entrant export.
type Participant struct {
	UserID   int64   `json:"user_id"`
	Username *string `json:"username,omitempty"`
	WishText *string `json:"wish_text,omitempty"`
	Tickets  int64   `json:"tickets"`
}

func DisplayName(username *string, userID int64) string {
	if username != nil && *username != "" {
		return "@" + *username
	}
	return "ID: " + strconv.FormatInt(userID, 10)
}
