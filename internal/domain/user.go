package domain

import "time"

type User struct {
	UserID     int64     `db:"user_id" json:"user_id"`
	Username   *string   `db:"username" json:"username,omitempty"`
	Tickets    int64     `db:"tickets" json:"tickets"`
	ReferrerID *int64    `db:"referrer_id" json:"referrer_id,omitempty"`
	HasWished  bool      `db:"has_wished" json:"has_wished"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DisplayName returns "@username" or "ID: <id>" when the user has no username.
func (u *User) DisplayName() string {
	return DisplayName(u.Username, u.UserID)
}
