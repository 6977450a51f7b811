package bot

import (
	"context"
	"log/slog"

	"wishbot/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// telegramAPI is the part of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Sender paces every outgoing call so the bot stays under Telegram's
// global flood limit. It is shared by the update handlers and the
// broadcast scheduler.
type Sender struct {
	api     telegramAPI
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewSender(api telegramAPI, perSecond float64) *Sender {
	if perSecond <= 0 {
		perSecond = 20
	}
	return &Sender{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		log:     logger.Component("sender"),
	}
}

func (s *Sender) Send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return tgbotapi.Message{}, err
	}
	return s.api.Send(c)
}

func (s *Sender) Request(ctx context.Context, c tgbotapi.Chattable) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := s.api.Request(c)
	return err
}

// GetChatMember looks up a user's membership under the same pacing as sends.
func (s *Sender) GetChatMember(ctx context.Context, cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return tgbotapi.ChatMember{}, err
	}
	return s.api.GetChatMember(cfg)
}

// SendHTML sends text with HTML parse mode. markup may be nil.
func (s *Sender) SendHTML(ctx context.Context, chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	_, err := s.Send(ctx, msg)
	if err != nil {
		s.log.Warn("send message failed", "chat_id", chatID, "error", err)
	}
	return err
}

// SendWish posts a broadcast, as a comment under replyTo when it is set.
func (s *Sender) SendWish(ctx context.Context, chatID int64, text string, replyTo int) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if replyTo > 0 {
		msg.ReplyToMessageID = replyTo
	}
	_, err := s.Send(ctx, msg)
	return err
}

func (s *Sender) SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	_, err := s.Send(ctx, doc)
	return err
}

// AnswerCallback acknowledges a button press; alert shows a modal.
func (s *Sender) AnswerCallback(ctx context.Context, id, text string, alert bool) {
	cb := tgbotapi.NewCallback(id, text)
	cb.ShowAlert = alert
	if err := s.Request(ctx, cb); err != nil {
		s.log.Debug("answer callback failed", "error", err)
	}
}

func (s *Sender) Delete(ctx context.Context, chatID int64, messageID int) {
	if err := s.Request(ctx, tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		s.log.Debug("delete message failed", "chat_id", chatID, "message_id", messageID, "error", err)
	}
}
