package repository

import (
	"context"

	"wishbot/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerTx is the set of row operations available inside one ledger
// transaction. Rows returned by LockUser stay locked until the
// transaction ends.
type LedgerTx interface {
	LockUser(ctx context.Context, userID int64) (*domain.User, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
	InsertUser(ctx context.Context, userID int64, username *string, referrerID *int64) (bool, error)
	InsertWish(ctx context.Context, userID int64, text string) (int64, error)
	DeleteWishes(ctx context.Context, userID int64) (int64, error)
	SetHasWished(ctx context.Context, userID int64, wished bool) error
	AdjustTickets(ctx context.Context, userID int64, delta int64) (int64, error)
}

// LedgerRepository owns every write to tickets and has_wished.
type LedgerRepository struct {
	db *pgxpool.Pool
	*UserRepository
	wishes *WishRepository
}

func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{
		db:             db,
		UserRepository: NewUserRepository(db),
		wishes:         NewWishRepository(db),
	}
}

// WithTx runs fn in a read-committed transaction. fn returning nil commits;
// any error or panic rolls back.
func (r *LedgerRepository) WithTx(ctx context.Context, fn func(tx LedgerTx) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *LedgerRepository) GetUserWish(ctx context.Context, userID int64) (*domain.Wish, error) {
	return r.wishes.GetByUser(ctx, userID)
}

func (r *LedgerRepository) FindWishByText(ctx context.Context, text string) (*domain.Wish, error) {
	return r.wishes.FindByText(ctx, text)
}

func (r *LedgerRepository) RandomWish(ctx context.Context) (*domain.RandomWish, error) {
	return r.wishes.Random(ctx)
}

type ledgerTx struct {
	tx pgx.Tx
}

// LockUser takes FOR NO KEY UPDATE so that concurrent inserts of invitees
// (which hold KEY SHARE through the referrer_id foreign key) are not blocked.
func (t *ledgerTx) LockUser(ctx context.Context, userID int64) (*domain.User, error) {
	return scanUser(t.tx.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1 FOR NO KEY UPDATE`,
		userID,
	))
}

func (t *ledgerTx) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`,
		userID,
	).Scan(&exists)
	return exists, err
}

func (t *ledgerTx) InsertUser(ctx context.Context, userID int64, username *string, referrerID *int64) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		`INSERT INTO users (user_id, username, referrer_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, username, referrerID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *ledgerTx) InsertWish(ctx context.Context, userID int64, text string) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO wishes (user_id, text) VALUES ($1, $2) RETURNING id`,
		userID, text,
	).Scan(&id)
	return id, err
}

func (t *ledgerTx) DeleteWishes(ctx context.Context, userID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM wishes WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *ledgerTx) SetHasWished(ctx context.Context, userID int64, wished bool) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE users SET has_wished = $1 WHERE user_id = $2`,
		wished, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustTickets adds delta and clamps the result at zero.
func (t *ledgerTx) AdjustTickets(ctx context.Context, userID int64, delta int64) (int64, error) {
	var tickets int64
	err := t.tx.QueryRow(ctx,
		`UPDATE users SET tickets = GREATEST(0, tickets + $1)
		 WHERE user_id = $2
		 RETURNING tickets`,
		delta, userID,
	).Scan(&tickets)
	if err != nil {
		return 0, mapNoRows(err)
	}
	return tickets, nil
}
