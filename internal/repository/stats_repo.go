package repository

import (
	"context"

	"wishbot/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type StatsRepository struct {
	db *pgxpool.Pool
}

func NewStatsRepository(db *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) UsersCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (r *StatsRepository) WishesCount(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM wishes`).Scan(&n)
	return n, err
}

// Participants returns every user who has wished, with the wish text and tickets.
func (r *StatsRepository) Participants(ctx context.Context) ([]domain.Participant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT u.user_id, u.username, w.text, u.tickets
		FROM users u
		LEFT JOIN LATERAL (
			SELECT text FROM wishes WHERE user_id = u.user_id ORDER BY id DESC LIMIT 1
		) w ON TRUE
		WHERE u.has_wished = TRUE
		ORDER BY u.tickets DESC, u.user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.UserID, &p.Username, &p.WishText, &p.Tickets); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
