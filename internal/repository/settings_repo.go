package repository

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"wishbot/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type SettingsRepository struct {
	db *pgxpool.Pool
}

func NewSettingsRepository(db *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns ErrNotFound for an unset key.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		return "", mapNoRows(err)
	}
	return value, nil
}

func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	return err
}

func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM settings WHERE key = $1`, key)
	return err
}

// ReplyMessageID returns the post that broadcasts are threaded under.
func (r *SettingsRepository) ReplyMessageID(ctx context.Context) (int, bool, error) {
	v, err := r.Get(ctx, domain.SettingReplyMessageID)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.Atoi(v)
	if err != nil || id <= 0 {
		return 0, false, nil
	}
	return id, true, nil
}

func (r *SettingsRepository) SetReplyMessageID(ctx context.Context, messageID int) error {
	return r.Set(ctx, domain.SettingReplyMessageID, strconv.Itoa(messageID))
}

func (r *SettingsRepository) ClearReplyMessageID(ctx context.Context) error {
	return r.Delete(ctx, domain.SettingReplyMessageID)
}

// BotEnabled is true unless the flag is explicitly "false".
func (r *SettingsRepository) BotEnabled(ctx context.Context) (bool, error) {
	v, err := r.Get(ctx, domain.SettingBotEnabled)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return v != "false", nil
}

func (r *SettingsRepository) SetBotEnabled(ctx context.Context, enabled bool) error {
	return r.Set(ctx, domain.SettingBotEnabled, strconv.FormatBool(enabled))
}

// LastBroadcastTime returns ok=false when no broadcast was ever recorded.
func (r *SettingsRepository) LastBroadcastTime(ctx context.Context) (time.Time, bool, error) {
	v, err := r.Get(ctx, domain.SettingLastBroadcastTime)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, ok := ParseUnixSeconds(v)
	return t, ok, nil
}

func (r *SettingsRepository) SetLastBroadcastTime(ctx context.Context, t time.Time) error {
	return r.Set(ctx, domain.SettingLastBroadcastTime, FormatUnixSeconds(t))
}

// FormatUnixSeconds encodes t as fractional Unix seconds, e.g. "1734567890.123456".
func FormatUnixSeconds(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)
}

func ParseUnixSeconds(v string) (time.Time, bool) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)), true
}
