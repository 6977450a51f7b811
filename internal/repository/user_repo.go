package repository

import (
	"context"
	"strings"

	"wishbot/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `user_id, username, tickets, referrer_id, has_wished, created_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.UserID,
		&u.Username,
		&u.Tickets,
		&u.ReferrerID,
		&u.HasWished,
		&u.CreatedAt,
	); err != nil {
		return nil, mapNoRows(err)
	}
	return &u, nil
}

func getUser(ctx context.Context, q querier, userID int64) (*domain.User, error) {
	return scanUser(q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`,
		userID,
	))
}

// GetByID returns ErrNotFound when the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	return getUser(ctx, r.db, userID)
}

// NormalizeUsername strips surrounding spaces and a leading "@".
func NormalizeUsername(username string) string {
	return strings.TrimLeft(strings.TrimSpace(username), "@")
}

// FindByUsername matches case-insensitively; "@Foo" and "foo" are the same user.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	clean := NormalizeUsername(username)
	if clean == "" {
		return nil, ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 WHERE LOWER(username) = LOWER($1)
		 ORDER BY created_at
		 LIMIT 1`,
		clean,
	))
}

// UpdateUsername refreshes the stored username; nil clears it.
func (r *UserRepository) UpdateUsername(ctx context.Context, userID int64, username *string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET username = $1 WHERE user_id = $2`,
		username, userID,
	)
	return err
}

// ReferralCount returns how many invited users have left a wish.
func (r *UserRepository) ReferralCount(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE referrer_id = $1 AND has_wished = TRUE`,
		userID,
	).Scan(&n)
	return n, err
}

// TotalReferrals returns how many users were invited regardless of wish status.
func (r *UserRepository) TotalReferrals(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE referrer_id = $1`,
		userID,
	).Scan(&n)
	return n, err
}
