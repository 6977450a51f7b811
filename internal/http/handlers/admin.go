package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"wishbot/internal/domain"
	"wishbot/internal/export"
	"wishbot/internal/http/middleware"
	"wishbot/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminAPI interface {
	GetStats(ctx context.Context) (*service.Stats, error)
	SetBotEnabled(ctx context.Context, adminID int64, enabled bool) error
	SetReplyPost(ctx context.Context, adminID int64, messageID int) error
	ClearReplyPost(ctx context.Context, adminID int64) error
	Participants(ctx context.Context, adminID int64) ([]domain.Participant, error)
	RecentAudit(ctx context.Context, limit int) ([]*domain.AuditLog, error)
	LogTicketGrant(ctx context.Context, adminID, userID, count, total int64)
	LogWishReset(ctx context.Context, adminID, userID int64, via string)
}

type LedgerAPI interface {
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)
	AddTicketsToUser(ctx context.Context, userID int64, count int64) (int64, bool, error)
	ResetWish(ctx context.Context, userID int64) (bool, error)
}

// AdminHandler is the operator HTTP API. All routes sit behind AdminAuth.
type AdminHandler struct {
	admin  AdminAPI
	ledger LedgerAPI
}

func NewAdminHandler(admin AdminAPI, ledger LedgerAPI) *AdminHandler {
	return &AdminHandler{admin: admin, ledger: ledger}
}

// Stats returns user and wish counts and the broadcast settings
func (h *AdminHandler) Stats(c *gin.Context) {
	st, err := h.admin.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// Export streams the entrant list, one line per ticket
func (h *AdminHandler) Export(c *gin.Context) {
	ps, err := h.admin.Participants(c.Request.Context(), middleware.AdminID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}

	f, err := export.Render(c.DefaultQuery("format", export.FormatCSV), ps)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or txt"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+f.Name+`"`)
	c.Header("X-Total-Tickets", strconv.FormatInt(f.Tickets, 10))
	c.Data(http.StatusOK, f.ContentType, f.Data)
}

type SetBotEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *AdminHandler) SetBotEnabled(c *gin.Context) {
	var req SetBotEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "enabled is required"})
		return
	}
	if err := h.admin.SetBotEnabled(c.Request.Context(), middleware.AdminID(c), *req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update setting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

type SetReplyPostRequest struct {
	// Post link (t.me/c/<chat>/<id>, t.me/<name>/<id>) or a bare message id.
	Post string `json:"post" binding:"required"`
}

func (h *AdminHandler) SetReplyPost(c *gin.Context) {
	var req SetReplyPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "post is required"})
		return
	}
	id, ok := domain.ParsePostLink(req.Post)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognised post link"})
		return
	}
	if err := h.admin.SetReplyPost(c.Request.Context(), middleware.AdminID(c), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update setting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply_message_id": id})
}

func (h *AdminHandler) ClearReplyPost(c *gin.Context) {
	if err := h.admin.ClearReplyPost(c.Request.Context(), middleware.AdminID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update setting"})
		return
	}
	c.Status(http.StatusNoContent)
}

// UserRef names a user by id or username; id wins when both are set.
type UserRef struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

func (h *AdminHandler) resolve(ctx context.Context, ref UserRef) (*domain.User, error) {
	if ref.UserID != 0 {
		return h.ledger.GetUser(ctx, ref.UserID)
	}
	if ref.Username != "" {
		return h.ledger.FindUserByUsername(ctx, ref.Username)
	}
	return nil, nil
}

type AddTicketsRequest struct {
	UserRef
	Count int64 `json:"count" binding:"required"`
}

func (h *AdminHandler) AddTickets(c *gin.Context) {
	var req AddTicketsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count is required"})
		return
	}
	ctx := c.Request.Context()

	user, err := h.resolve(ctx, req.UserRef)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to find user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	total, ok, err := h.ledger.AddTicketsToUser(ctx, user.UserID, req.Count)
	if errors.Is(err, service.ErrInvalidCount) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be positive"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add tickets"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	h.admin.LogTicketGrant(ctx, middleware.AdminID(c), user.UserID, req.Count, total)
	c.JSON(http.StatusOK, gin.H{"user_id": user.UserID, "tickets": total})
}

func (h *AdminHandler) ResetWish(c *gin.Context) {
	var req UserRef
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	ctx := c.Request.Context()

	user, err := h.resolve(ctx, req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to find user"})
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	ok, err := h.ledger.ResetWish(ctx, user.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset wish"})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "user has no wish"})
		return
	}

	h.admin.LogWishReset(ctx, middleware.AdminID(c), user.UserID, "api")
	c.JSON(http.StatusOK, gin.H{"user_id": user.UserID, "reset": true})
}

func (h *AdminHandler) Audit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	logs, err := h.admin.RecentAudit(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit log"})
		return
	}
	if logs == nil {
		logs = []*domain.AuditLog{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
