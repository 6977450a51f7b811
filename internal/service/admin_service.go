package service

import (
	"context"
	"fmt"

	"wishbot/internal/domain"
	"wishbot/internal/repository"
)

// AdminService provides operator statistics and global settings.
type AdminService struct {
	settings *repository.SettingsRepository
	stats    *repository.StatsRepository
	audit    *AuditService
}

func NewAdminService(settings *repository.SettingsRepository, stats *repository.StatsRepository, audit *AuditService) *AdminService {
	return &AdminService{settings: settings, stats: stats, audit: audit}
}

// Stats is what the admin panel shows.
type Stats struct {
	TotalUsers     int64 `json:"total_users"`
	TotalWishes    int64 `json:"total_wishes"`
	BotEnabled     bool  `json:"bot_enabled"`
	ReplyMessageID int   `json:"reply_message_id,omitempty"`
}

func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	var (
		st  Stats
		err error
	)
	if st.TotalUsers, err = s.stats.UsersCount(ctx); err != nil {
		return nil, fmt.Errorf("%w: users count: %w", ErrStorage, err)
	}
	if st.TotalWishes, err = s.stats.WishesCount(ctx); err != nil {
		return nil, fmt.Errorf("%w: wishes count: %w", ErrStorage, err)
	}
	if st.BotEnabled, err = s.settings.BotEnabled(ctx); err != nil {
		return nil, fmt.Errorf("%w: bot enabled: %w", ErrStorage, err)
	}
	if st.ReplyMessageID, _, err = s.settings.ReplyMessageID(ctx); err != nil {
		return nil, fmt.Errorf("%w: reply message id: %w", ErrStorage, err)
	}
	return &st, nil
}

// ToggleBot flips the broadcast enabled flag and returns the new value.
func (s *AdminService) ToggleBot(ctx context.Context, adminID int64) (bool, error) {
	current, err := s.settings.BotEnabled(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return !current, s.SetBotEnabled(ctx, adminID, !current)
}

func (s *AdminService) SetBotEnabled(ctx context.Context, adminID int64, enabled bool) error {
	if err := s.settings.SetBotEnabled(ctx, enabled); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionToggleBot, domain.AuditCategorySettings, 0,
		map[string]interface{}{"enabled": enabled})
	return nil
}

func (s *AdminService) SetReplyPost(ctx context.Context, adminID int64, messageID int) error {
	if messageID <= 0 {
		return fmt.Errorf("invalid message id %d", messageID)
	}
	if err := s.settings.SetReplyMessageID(ctx, messageID); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionSetReplyPost, domain.AuditCategorySettings, 0,
		map[string]interface{}{"message_id": messageID})
	return nil
}

func (s *AdminService) ClearReplyPost(ctx context.Context, adminID int64) error {
	if err := s.settings.ClearReplyMessageID(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionClearPost, domain.AuditCategorySettings, 0, nil)
	return nil
}

// Participants is the read-only export projection.
func (s *AdminService) Participants(ctx context.Context, adminID int64) ([]domain.Participant, error) {
	ps, err := s.stats.Participants(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: participants: %w", ErrStorage, err)
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionExport, domain.AuditCategoryWish, 0,
		map[string]interface{}{"rows": len(ps)})
	return ps, nil
}

// LogTicketGrant records an admin ticket grant made through the ledger.
func (s *AdminService) LogTicketGrant(ctx context.Context, adminID, userID, count, total int64) {
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionAddTickets, domain.AuditCategoryTickets, userID,
		map[string]interface{}{"count": count, "total": total})
}

// LogWishReset records an admin wish reset made through the ledger.
func (s *AdminService) LogWishReset(ctx context.Context, adminID, userID int64, via string) {
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionResetWish, domain.AuditCategoryWish, userID,
		map[string]interface{}{"via": via})
}

func (s *AdminService) RecentAudit(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	logs, err := s.audit.GetRecentLogs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: audit logs: %w", ErrStorage, err)
	}
	return logs, nil
}
