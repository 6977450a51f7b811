package domain

import "time"

// AuditLog represents an audit log entry for tracking admin actions
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	UserID    int64                  `db:"user_id" json:"user_id"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// Audit action categories
const (
	AuditCategoryTickets  = "tickets"
	AuditCategoryWish     = "wish"
	AuditCategorySettings = "settings"
)

// Audit actions
const (
	AuditActionAddTickets   = "admin_add_tickets"
	AuditActionResetWish    = "admin_reset_wish"
	AuditActionToggleBot    = "admin_toggle_bot"
	AuditActionSetReplyPost = "admin_set_reply_post"
	AuditActionClearPost    = "admin_clear_reply_post"
	AuditActionExport       = "admin_export"
)
