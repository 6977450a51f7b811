package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"wishbot/internal/domain"
	"wishbot/internal/logger"
	"wishbot/internal/metrics"
	"wishbot/internal/repository"
)

var (
	ErrStorage      = errors.New("storage failure")
	ErrEmptyWish    = errors.New("wish text is empty")
	ErrWishTooLong  = errors.New("wish text is too long")
	ErrInvalidCount = errors.New("ticket count must be positive")
)

const (
	outcomeOK      = "ok"
	outcomeRefused = "refused"
	outcomeError   = "error"
)

// LedgerStore is the persistence the ledger needs. Every write to tickets
// and has_wished goes through WithTx.
type LedgerStore interface {
	WithTx(ctx context.Context, fn func(tx repository.LedgerTx) error) error

	GetByID(ctx context.Context, userID int64) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateUsername(ctx context.Context, userID int64, username *string) error
	ReferralCount(ctx context.Context, userID int64) (int64, error)
	TotalReferrals(ctx context.Context, userID int64) (int64, error)

	GetUserWish(ctx context.Context, userID int64) (*domain.Wish, error)
	FindWishByText(ctx context.Context, text string) (*domain.Wish, error)
	RandomWish(ctx context.Context) (*domain.RandomWish, error)
}

// LedgerService enforces the one-wish-per-user rule and keeps user and
// referrer ticket counts in step with wish creation and removal.
type LedgerService struct {
	store         LedgerStore
	maxWishLength int
	log           *slog.Logger
}

// NewLedgerService creates a ledger. maxWishLength <= 0 disables the length check.
func NewLedgerService(store LedgerStore, maxWishLength int) *LedgerService {
	return &LedgerService{
		store:         store,
		maxWishLength: maxWishLength,
		log:           logger.Component("ledger"),
	}
}

func (s *LedgerService) storageError(op string, err error, args ...any) error {
	metrics.LedgerOps.WithLabelValues(op, outcomeError).Inc()
	s.log.Error("ledger operation failed", append([]any{"op", op, "error", err}, args...)...)
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func observe(op string, ok bool) {
	outcome := outcomeOK
	if !ok {
		outcome = outcomeRefused
	}
	metrics.LedgerOps.WithLabelValues(op, outcome).Inc()
}

// ValidateWish trims the text and checks it before it reaches the store.
func (s *LedgerService) ValidateWish(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyWish
	}
	if s.maxWishLength > 0 && utf8.RuneCountInString(text) > s.maxWishLength {
		return "", ErrWishTooLong
	}
	return text, nil
}

// AddWish stores the user's wish and credits one ticket to the user and one
// to their referrer. It returns false without changes when the user is
// unknown or already has a wish.
func (s *LedgerService) AddWish(ctx context.Context, userID int64, text string) (bool, error) {
	text, err := s.ValidateWish(text)
	if err != nil {
		return false, err
	}

	var (
		added      bool
		referrerID *int64
	)
	err = s.store.WithTx(ctx, func(tx repository.LedgerTx) error {
		added, referrerID = false, nil

		u, err := tx.LockUser(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if u.HasWished {
			return nil
		}

		if _, err := tx.InsertWish(ctx, userID, text); err != nil {
			return err
		}
		if err := tx.SetHasWished(ctx, userID, true); err != nil {
			return err
		}
		if _, err := tx.AdjustTickets(ctx, userID, 1); err != nil {
			return err
		}

		if u.ReferrerID != nil && *u.ReferrerID != userID {
			_, err := tx.AdjustTickets(ctx, *u.ReferrerID, 1)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				s.log.Warn("referrer row missing, bonus skipped", "user_id", userID, "referrer_id", *u.ReferrerID)
			case err != nil:
				return err
			default:
				referrerID = u.ReferrerID
			}
		}

		added = true
		return nil
	})
	if err != nil {
		return false, s.storageError("add_wish", err, "user_id", userID)
	}

	observe("add_wish", added)
	if added {
		metrics.TicketsGranted.WithLabelValues("wish").Inc()
		if referrerID != nil {
			metrics.TicketsGranted.WithLabelValues("referral").Inc()
		}
		s.log.Info("wish added", "user_id", userID, "referrer_id", referrerID)
	}
	return added, nil
}

// ResetWish removes the user's wish and takes back the tickets AddWish
// granted, never letting a count drop below zero. It returns false when
// the user has no active wish.
func (s *LedgerService) ResetWish(ctx context.Context, userID int64) (bool, error) {
	var reset bool
	err := s.store.WithTx(ctx, func(tx repository.LedgerTx) error {
		reset = false

		u, err := tx.LockUser(ctx, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !u.HasWished {
			return nil
		}

		if _, err := tx.DeleteWishes(ctx, userID); err != nil {
			return err
		}
		if err := tx.SetHasWished(ctx, userID, false); err != nil {
			return err
		}
		if _, err := tx.AdjustTickets(ctx, userID, -1); err != nil {
			return err
		}
		if u.ReferrerID != nil && *u.ReferrerID != userID {
			if _, err := tx.AdjustTickets(ctx, *u.ReferrerID, -1); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}

		reset = true
		return nil
	})
	if err != nil {
		return false, s.storageError("reset_wish", err, "user_id", userID)
	}

	observe("reset_wish", reset)
	if reset {
		s.log.Info("wish reset", "user_id", userID)
	}
	return reset, nil
}

// ResetWishByUsername resets the wish of the user with that username.
// The user is returned even when they had no wish to reset.
func (s *LedgerService) ResetWishByUsername(ctx context.Context, username string) (*domain.User, bool, error) {
	u, err := s.FindUserByUsername(ctx, username)
	if err != nil || u == nil {
		return nil, false, err
	}
	ok, err := s.ResetWish(ctx, u.UserID)
	return u, ok, err
}

// ResetWishByText resets the wish whose text matches exactly; used when an
// admin forwards a published wish back to the bot.
func (s *LedgerService) ResetWishByText(ctx context.Context, text string) (*domain.User, bool, error) {
	w, err := s.store.FindWishByText(ctx, strings.TrimSpace(text))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.storageError("find_wish_by_text", err)
	}
	u, err := s.GetUser(ctx, w.UserID)
	if err != nil || u == nil {
		return nil, false, err
	}
	ok, err := s.ResetWish(ctx, u.UserID)
	return u, ok, err
}

// AddTicketsToUser credits count tickets outside the wish rule. It returns
// ok=false when the user does not exist.
func (s *LedgerService) AddTicketsToUser(ctx context.Context, userID int64, count int64) (total int64, ok bool, err error) {
	if count <= 0 {
		return 0, false, ErrInvalidCount
	}

	err = s.store.WithTx(ctx, func(tx repository.LedgerTx) error {
		total, ok = 0, false
		t, err := tx.AdjustTickets(ctx, userID, count)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		total, ok = t, true
		return nil
	})
	if err != nil {
		return 0, false, s.storageError("add_tickets", err, "user_id", userID, "count", count)
	}

	observe("add_tickets", ok)
	if ok {
		metrics.TicketsGranted.WithLabelValues("admin").Add(float64(count))
		s.log.Info("tickets granted", "user_id", userID, "count", count, "total", total)
	}
	return total, ok, nil
}

// CreateUser inserts the user if absent. A referrer that does not exist,
// or that is the user themself, is dropped rather than rejected.
func (s *LedgerService) CreateUser(ctx context.Context, userID int64, username *string, referrerID *int64) (bool, error) {
	var created bool
	err := s.store.WithTx(ctx, func(tx repository.LedgerTx) error {
		ref := referrerID
		if ref != nil && *ref == userID {
			ref = nil
		}
		if ref != nil {
			exists, err := tx.UserExists(ctx, *ref)
			if err != nil {
				return err
			}
			if !exists {
				ref = nil
			}
		}

		var err error
		created, err = tx.InsertUser(ctx, userID, username, ref)
		return err
	})
	if err != nil {
		return false, s.storageError("create_user", err, "user_id", userID)
	}

	observe("create_user", created)
	return created, nil
}

// TouchUser creates the user on first contact and refreshes the username
// afterwards. The referrer of an existing user is never changed.
func (s *LedgerService) TouchUser(ctx context.Context, userID int64, username *string, referrerID *int64) (*domain.User, bool, error) {
	existing, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		if !sameUsername(existing.Username, username) {
			if err := s.store.UpdateUsername(ctx, userID, username); err != nil {
				return nil, false, s.storageError("update_username", err, "user_id", userID)
			}
			existing.Username = username
		}
		if referrerID != nil && existing.ReferrerID == nil {
			s.log.Info("existing user followed a referral link, referrer unchanged", "user_id", userID)
		}
		return existing, false, nil
	}

	created, err := s.CreateUser(ctx, userID, username, referrerID)
	if err != nil {
		return nil, false, err
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return u, created, nil
}

func sameUsername(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// GetUser returns nil, nil when the user does not exist.
func (s *LedgerService) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.store.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storageError("get_user", err, "user_id", userID)
	}
	return u, nil
}

// FindUserByUsername ignores case and a leading "@". Returns nil, nil when absent.
func (s *LedgerService) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := s.store.FindByUsername(ctx, repository.NormalizeUsername(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storageError("find_user_by_username", err)
	}
	return u, nil
}

// GetUserWish returns nil, nil when the user has no wish.
func (s *LedgerService) GetUserWish(ctx context.Context, userID int64) (*domain.Wish, error) {
	w, err := s.store.GetUserWish(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storageError("get_user_wish", err, "user_id", userID)
	}
	return w, nil
}

// ReferralStats returns invited users who wished and all invited users.
func (s *LedgerService) ReferralStats(ctx context.Context, userID int64) (wished, total int64, err error) {
	if wished, err = s.store.ReferralCount(ctx, userID); err != nil {
		return 0, 0, s.storageError("referral_count", err, "user_id", userID)
	}
	if total, err = s.store.TotalReferrals(ctx, userID); err != nil {
		return 0, 0, s.storageError("total_referrals", err, "user_id", userID)
	}
	return wished, total, nil
}

// RandomWish picks a wish uniformly at random; nil, nil when there are none.
func (s *LedgerService) RandomWish(ctx context.Context) (*domain.RandomWish, error) {
	w, err := s.store.RandomWish(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.storageError("random_wish", err)
	}
	return w, nil
}
