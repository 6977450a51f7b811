package bot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"wishbot/internal/cache"
	"wishbot/internal/logger"
	"wishbot/internal/metrics"
	"wishbot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Options struct {
	AdminIDs []int64
}

// Bot handles user and admin updates from Telegram long polling.
type Bot struct {
	api       *tgbotapi.BotAPI
	sender    *Sender
	gate      *SubscriptionGate
	ledger    *service.LedgerService
	admin     *service.AdminService
	wishLimit *cache.Limiter
	pending   *pendingWishes
	adminIDs  map[int64]struct{}
	username  string

	stopCh chan struct{}
	wg     sync.WaitGroup
	log    *slog.Logger
}

func New(
	api *tgbotapi.BotAPI,
	sender *Sender,
	gate *SubscriptionGate,
	ledger *service.LedgerService,
	admin *service.AdminService,
	wishLimit *cache.Limiter,
	opts Options,
) *Bot {
	admins := make(map[int64]struct{}, len(opts.AdminIDs))
	for _, id := range opts.AdminIDs {
		admins[id] = struct{}{}
	}

	log := logger.With("component", "bot")
	log.Info("bot authorized", "username", api.Self.UserName, "admins", len(admins))

	return &Bot{
		api:       api,
		sender:    sender,
		gate:      gate,
		ledger:    ledger,
		admin:     admin,
		wishLimit: wishLimit,
		pending:   newPendingWishes(30 * time.Minute),
		adminIDs:  admins,
		username:  api.Self.UserName,
		stopCh:    make(chan struct{}),
		log:       log,
	}
}

// Start listens for updates until Stop is called.
func (b *Bot) Start() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}

			b.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer b.wg.Done()
				b.handleUpdate(upd)
			}(update)
		}
	}
}

// Stop gracefully stops the bot
func (b *Bot) Stop() {
	b.log.Info("stopping bot...")
	close(b.stopCh)
	b.api.StopReceivingUpdates()

	// Wait for pending handlers with timeout
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("bot shutdown timeout, some handlers may not have completed")
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	_, ok := b.adminIDs[userID]
	return ok
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in update handler", "panic", r, "update_id", update.UpdateID)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		metrics.BotUpdates.WithLabelValues("callback").Inc()
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		metrics.BotUpdates.WithLabelValues("message").Inc()
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}
	userID := msg.From.ID

	if msg.IsCommand() {
		b.pending.clear(userID)
		if b.isAdmin(userID) && b.handleAdminCommand(ctx, msg) {
			return
		}
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, msg)
		default:
			b.showMainMenu(ctx, msg.Chat.ID, "🎄 <b>Главное меню</b>\n\nВыберите действие:")
		}
		return
	}

	if msg.ForwardFromChat != nil && b.isAdmin(userID) {
		b.handleForwardedWish(ctx, msg)
		return
	}

	if b.pending.take(userID) {
		b.processWish(ctx, msg)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		return
	}

	if b.isAdmin(cb.From.ID) && b.handleAdminCallback(ctx, cb) {
		return
	}

	switch cb.Data {
	case cbMainMenu:
		b.sender.AnswerCallback(ctx, cb.ID, "", false)
		b.pending.clear(cb.From.ID)
		b.sender.Delete(ctx, cb.Message.Chat.ID, cb.Message.MessageID)
		b.showMainMenu(ctx, cb.Message.Chat.ID, "🎄 <b>Главное меню</b>\n\nВыберите действие:")
	case cbRules:
		b.sender.AnswerCallback(ctx, cb.ID, "", false)
		b.sender.Delete(ctx, cb.Message.Chat.ID, cb.Message.MessageID)
		_ = b.sender.SendHTML(ctx, cb.Message.Chat.ID, b.rulesText(), backButton())
	case cbLeaveWish:
		b.handleLeaveWish(ctx, cb)
	case cbMyTickets:
		b.handleTickets(ctx, cb)
	case cbCheckSubscription:
		b.handleCheckSubscription(ctx, cb)
	default:
		b.sender.AnswerCallback(ctx, cb.ID, "", false)
	}
}
