package repository

import (
	"context"

	"wishbot/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WishRepository struct {
	db *pgxpool.Pool
}

func NewWishRepository(db *pgxpool.Pool) *WishRepository {
	return &WishRepository{db: db}
}

func scanWish(row pgx.Row) (*domain.Wish, error) {
	var w domain.Wish
	if err := row.Scan(&w.ID, &w.UserID, &w.Text, &w.CreatedAt); err != nil {
		return nil, mapNoRows(err)
	}
	return &w, nil
}

// GetByUser returns the user's latest wish.
func (r *WishRepository) GetByUser(ctx context.Context, userID int64) (*domain.Wish, error) {
	return scanWish(r.db.QueryRow(ctx,
		`SELECT id, user_id, text, created_at
		 FROM wishes
		 WHERE user_id = $1
		 ORDER BY id DESC
		 LIMIT 1`,
		userID,
	))
}

// FindByText finds a wish by exact text match.
func (r *WishRepository) FindByText(ctx context.Context, text string) (*domain.Wish, error) {
	return scanWish(r.db.QueryRow(ctx,
		`SELECT id, user_id, text, created_at
		 FROM wishes
		 WHERE text = $1
		 ORDER BY id DESC
		 LIMIT 1`,
		text,
	))
}

// Random picks one wish uniformly at random, repeats included.
func (r *WishRepository) Random(ctx context.Context) (*domain.RandomWish, error) {
	var w domain.RandomWish
	err := r.db.QueryRow(ctx,
		`SELECT w.text, u.username, u.user_id
		 FROM wishes w
		 JOIN users u ON u.user_id = w.user_id
		 ORDER BY random()
		 LIMIT 1`,
	).Scan(&w.Text, &w.Username, &w.UserID)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &w, nil
}
