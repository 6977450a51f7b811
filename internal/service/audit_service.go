package service

import (
	"context"

	"wishbot/internal/domain"
	"wishbot/internal/logger"
	"wishbot/internal/repository"
)

// AuditService records admin actions. Failures are logged, never returned.
type AuditService struct {
	repo *repository.AuditRepository
}

func NewAuditService(repo *repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log creates a new audit log entry
func (s *AuditService) Log(ctx context.Context, userID int64, action, category string, details map[string]interface{}) {
	if s == nil || s.repo == nil {
		return
	}
	log := &domain.AuditLog{
		UserID:   userID,
		Action:   action,
		Category: category,
		Details:  details,
	}

	if err := s.repo.Create(ctx, log); err != nil {
		logger.Error("failed to create audit log", "error", err, "action", action, "user_id", userID)
	}
}

// LogAdminAction logs an admin action against targetUserID (0 for global settings).
func (s *AuditService) LogAdminAction(ctx context.Context, adminID int64, action, category string, targetUserID int64, details map[string]interface{}) {
	if details == nil {
		details = make(map[string]interface{})
	}
	details["admin_id"] = adminID
	details["target_user_id"] = targetUserID

	s.Log(ctx, targetUserID, action, category, details)
}

func (s *AuditService) GetRecentLogs(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return s.repo.GetRecent(ctx, limit)
}
