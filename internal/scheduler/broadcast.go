package scheduler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"

	"wishbot/internal/domain"
	"wishbot/internal/logger"
	"wishbot/internal/metrics"

	"github.com/google/uuid"
)

// StateStore holds the broadcast settings and the last-broadcast marker.
type StateStore interface {
	BotEnabled(ctx context.Context) (bool, error)
	ReplyMessageID(ctx context.Context) (int, bool, error)
	LastBroadcastTime(ctx context.Context) (time.Time, bool, error)
	SetLastBroadcastTime(ctx context.Context, t time.Time) error
}

type WishSource interface {
	RandomWish(ctx context.Context) (*domain.RandomWish, error)
}

// Sender posts an HTML message to chatID, threaded under replyTo when it is non-zero.
type Sender interface {
	SendWish(ctx context.Context, chatID int64, text string, replyTo int) error
}

// Lease guards one cycle against concurrent replicas.
type Lease interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(), ok bool)
}

// Result of one broadcast attempt.
type Result string

const (
	ResultPublished Result = "published"
	ResultDisabled  Result = "disabled"
	ResultNoWishes  Result = "no_wishes"
	ResultNoChat    Result = "no_chat"
	ResultNotDue    Result = "not_due"
	ResultBusy      Result = "busy"
	ResultFailed    Result = "failed"

	// ResultUnrecorded means the wish went out but the marker could not be saved.
	ResultUnrecorded Result = "unrecorded"
)

type Options struct {
	ChatID   int64
	Interval time.Duration
}

// Broadcaster publishes one random wish per interval.
type Broadcaster struct {
	state  StateStore
	wishes WishSource
	sender Sender
	lease  Lease
	opts   Options
	log    *slog.Logger

	now     func() time.Time
	started time.Time

	// lastSent is the last successful send by this process, so a marker
	// that failed to save does not cause a second publish here.
	lastSent time.Time

	mu sync.Mutex
}

func NewBroadcaster(state StateStore, wishes WishSource, sender Sender, lease Lease, opts Options) *Broadcaster {
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	b := &Broadcaster{
		state:  state,
		wishes: wishes,
		sender: sender,
		lease:  lease,
		opts:   opts,
		log:    logger.Component("scheduler"),
		now:    time.Now,
	}
	b.started = b.now()
	return b
}

// Recover runs at startup. With no recorded broadcast nothing is sent and the
// first publish happens a full interval later. A record older than the
// interval gets exactly one catch-up publish, however many cycles were missed.
func (b *Broadcaster) Recover(ctx context.Context) Result {
	last, ok, err := b.state.LastBroadcastTime(ctx)
	if err != nil {
		b.log.Error("read last broadcast time", "error", err)
		return ResultFailed
	}
	if !ok {
		b.log.Info("no broadcast recorded yet, waiting a full interval")
		return ResultNotDue
	}
	if b.now().Sub(last) < b.opts.Interval {
		return ResultNotDue
	}

	b.log.Info("missed broadcast detected, catching up", "last", last)
	return b.Tick(ctx)
}

// Tick publishes a wish when one is due. It is safe to call at any time:
// calls made before the interval has elapsed return ResultNotDue.
func (b *Broadcaster) Tick(ctx context.Context) Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	cycleID := uuid.NewString()
	log := b.log.With("cycle_id", cycleID)

	res := b.tick(ctx, log)
	metrics.Broadcasts.WithLabelValues(string(res)).Inc()
	return res
}

func (b *Broadcaster) tick(ctx context.Context, log *slog.Logger) Result {
	if res, due := b.due(ctx, log); !due {
		return res
	}

	if b.lease != nil {
		release, ok := b.lease.Acquire(ctx, b.opts.Interval/2)
		if !ok {
			log.Info("another instance holds the broadcast lease")
			return ResultBusy
		}
		defer release()

		// The holder we waited on may have just published.
		if res, due := b.due(ctx, log); !due {
			return res
		}
	}

	return b.publish(ctx, log)
}

func (b *Broadcaster) due(ctx context.Context, log *slog.Logger) (Result, bool) {
	last, ok, err := b.state.LastBroadcastTime(ctx)
	if err != nil {
		log.Error("read last broadcast time", "error", err)
		return ResultFailed, false
	}
	if !ok {
		last = b.started
	}
	if b.lastSent.After(last) {
		last = b.lastSent
	}
	if b.now().Sub(last) < b.opts.Interval {
		return ResultNotDue, false
	}
	return "", true
}

func (b *Broadcaster) publish(ctx context.Context, log *slog.Logger) Result {
	enabled, err := b.state.BotEnabled(ctx)
	if err != nil {
		log.Error("read bot_enabled", "error", err)
		return ResultFailed
	}
	if !enabled {
		log.Info("broadcasts disabled, skipping")
		return ResultDisabled
	}
	if b.opts.ChatID == 0 {
		log.Warn("no target chat configured, skipping")
		return ResultNoChat
	}

	wish, err := b.wishes.RandomWish(ctx)
	if err != nil {
		log.Error("pick random wish", "error", err)
		return ResultFailed
	}
	if wish == nil {
		log.Info("no wishes to publish")
		return ResultNoWishes
	}

	replyTo, _, err := b.state.ReplyMessageID(ctx)
	if err != nil {
		// Publishing unthreaded is better than not publishing.
		log.Warn("read reply message id", "error", err)
		replyTo = 0
	}

	if err := b.sender.SendWish(ctx, b.opts.ChatID, FormatWish(wish), replyTo); err != nil {
		log.Error("send wish", "error", err, "user_id", wish.UserID, "reply_to", replyTo)
		return ResultFailed
	}

	sentAt := b.now()
	b.lastSent = sentAt
	if err := b.record(ctx, sentAt); err != nil {
		// A restart before the next successful cycle will publish a catch-up.
		log.Error("wish published but last broadcast time not saved",
			"error", err, "user_id", wish.UserID, "sent_at", sentAt)
		return ResultUnrecorded
	}

	log.Info("wish published", "user_id", wish.UserID, "reply_to", replyTo)
	return ResultPublished
}

// record saves the marker, retrying once on a fresh context since ctx may
// already be cancelled by shutdown.
func (b *Broadcaster) record(ctx context.Context, sentAt time.Time) error {
	err := b.state.SetLastBroadcastTime(ctx, sentAt)
	if err == nil {
		return nil
	}
	b.log.Warn("save last broadcast time failed, retrying", "error", err)

	retryCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.state.SetLastBroadcastTime(retryCtx, sentAt)
}

// NextRun is when the timer should next fire.
func (b *Broadcaster) NextRun(ctx context.Context) time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	last, ok, err := b.state.LastBroadcastTime(ctx)
	if err != nil || !ok {
		last = b.started
	}
	if b.lastSent.After(last) {
		last = b.lastSent
	}
	next := last.Add(b.opts.Interval)
	if !next.After(now) {
		next = now.Add(b.opts.Interval)
	}
	return next
}

// Run recovers once and then fires Tick on schedule until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	b.log.Info("broadcast scheduler started",
		"interval", b.opts.Interval, "chat_id", b.opts.ChatID)

	b.Recover(ctx)

	timer := time.NewTimer(time.Until(b.NextRun(ctx)))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("broadcast scheduler stopped")
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-timer.C:
			// A failed send leaves the marker stale, so the next tick is due again.
			b.Tick(ctx)
			timer.Reset(time.Until(b.NextRun(ctx)))
		}
	}
}

// FormatWish renders the broadcast message in Telegram HTML.
func FormatWish(w *domain.RandomWish) string {
	return fmt.Sprintf("🎄 Новогоднее пожелание от %s:\n<blockquote>%s</blockquote>",
		html.EscapeString(w.DisplayName()), html.EscapeString(w.Text))
}
