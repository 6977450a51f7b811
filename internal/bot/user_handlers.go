package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"

	"wishbot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const welcomeText = "🎄 <b>С Наступающим Новым Годом!</b>\n\n" +
	"Добро пожаловать в нашу праздничную акцию! 🎅\n" +
	"Оставляйте пожелания, приглашайте друзей и выигрывайте призы.\n\n" +
	"Чем больше у вас билетов, тем выше шанс на победу! 🎁"

func usernamePtr(u *tgbotapi.User) *string {
	if u == nil || u.UserName == "" {
		return nil
	}
	name := u.UserName
	return &name
}

func (b *Bot) showMainMenu(ctx context.Context, chatID int64, text string) {
	_ = b.sender.SendHTML(ctx, chatID, text, mainMenu())
}

func (b *Bot) showSubscriptionPrompt(ctx context.Context, chatID int64, st SubStatus) {
	_ = b.sender.SendHTML(ctx, chatID,
		"📋 <b>Для участия в розыгрыше нужно подписаться:</b>",
		subscriptionKeyboard(b.gate, st))
}

func (b *Bot) replyError(ctx context.Context, chatID int64) {
	_ = b.sender.SendHTML(ctx, chatID, "❌ Что-то пошло не так, попробуйте позже.", backButton())
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	referrer := ParseReferrer(msg.CommandArguments(), userID)

	_, created, err := b.ledger.TouchUser(ctx, userID, usernamePtr(msg.From), referrer)
	if err != nil {
		b.log.Error("touch user failed", "user_id", userID, "error", err)
		b.replyError(ctx, msg.Chat.ID)
		return
	}
	if created {
		var ref int64
		if referrer != nil {
			ref = *referrer
		}
		b.log.Info("new user", "user_id", userID, "referrer_id", ref)
	}

	if st := b.gate.Check(ctx, userID); !st.OK() {
		b.showSubscriptionPrompt(ctx, msg.Chat.ID, st)
		return
	}
	b.showMainMenu(ctx, msg.Chat.ID, welcomeText)
}

func (b *Bot) handleCheckSubscription(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	st := b.gate.Check(ctx, cb.From.ID)
	if !st.OK() {
		b.sender.AnswerCallback(ctx, cb.ID, "❌ Вы не подписаны на все каналы!", true)
		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID, subscriptionKeyboard(b.gate, st))
		_ = b.sender.Request(ctx, edit)
		return
	}

	b.sender.AnswerCallback(ctx, cb.ID, "✅ Подписка подтверждена!", false)
	b.sender.Delete(ctx, chatID, cb.Message.MessageID)
	b.showMainMenu(ctx, chatID, welcomeText)
}

func (b *Bot) rulesText() string {
	channel := link(b.gate.ChannelURL(), b.gate.channel, "канал")
	chat := link(b.gate.ChatURL(), b.gate.chat, "чат")
	return "📜 <b>Правила акции:</b>\n\n" +
		fmt.Sprintf("1. Подпишитесь на %s и %s\n", channel, chat) +
		"2. Оставьте одно новогоднее пожелание и получите билет 🎫\n" +
		"3. Приглашайте друзей по своей реферальной ссылке\n" +
		"4. За каждого друга, который оставит пожелание, вы получите +1 билет 🎫\n" +
		"5. Больше билетов - больше шансов в розыгрыше!\n\n" +
		"Желаем удачи! ✨"
}

func link(url, ref, fallback string) string {
	if url == "https://t.me/" {
		return fallback
	}
	label := fallback
	if ref != "" && ref[0] == '@' {
		label = ref
	}
	return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(label))
}

func (b *Bot) handleLeaveWish(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID, userID := cb.Message.Chat.ID, cb.From.ID

	if st := b.gate.Check(ctx, userID); !st.OK() {
		b.sender.AnswerCallback(ctx, cb.ID, "❌ Сначала подпишитесь на каналы!", true)
		b.sender.Delete(ctx, chatID, cb.Message.MessageID)
		b.showSubscriptionPrompt(ctx, chatID, st)
		return
	}
	b.sender.AnswerCallback(ctx, cb.ID, "", false)

	user, err := b.ledger.GetUser(ctx, userID)
	if err != nil {
		b.replyError(ctx, chatID)
		return
	}
	if user == nil {
		// joined before /start was handled, or the row was lost
		if user, _, err = b.ledger.TouchUser(ctx, userID, usernamePtr(cb.From), nil); err != nil {
			b.replyError(ctx, chatID)
			return
		}
	}

	b.sender.Delete(ctx, chatID, cb.Message.MessageID)

	if user.HasWished {
		wish, err := b.ledger.GetUserWish(ctx, userID)
		if err != nil {
			b.replyError(ctx, chatID)
			return
		}
		text := "Вы уже оставили пожелание и получили билет! 🎫"
		if wish != nil {
			text = fmt.Sprintf("✨ <b>Ваше пожелание:</b>\n<i>%s</i>\n\n%s", html.EscapeString(wish.Text), text)
		}
		_ = b.sender.SendHTML(ctx, chatID, text, backButton())
		return
	}

	b.pending.set(userID)
	_ = b.sender.SendHTML(ctx, chatID,
		"📝 <b>Введите ваше новогоднее пожелание:</b>\n\n"+
			"Оно будет сохранено, и вы получите 1 билет на розыгрыш! 🎫",
		backButton())
}

func (b *Bot) processWish(ctx context.Context, msg *tgbotapi.Message) {
	chatID, userID := msg.Chat.ID, msg.From.ID

	if msg.Text == "" {
		b.pending.set(userID)
		_ = b.sender.SendHTML(ctx, chatID, "❌ Пожалуйста, пришлите текстовое пожелание.", backButton())
		return
	}

	if !b.wishLimit.Allow(ctx, strconv.FormatInt(userID, 10)) {
		_ = b.sender.SendHTML(ctx, chatID, "⏳ Слишком много попыток, попробуйте через минуту.", backButton())
		return
	}

	ok, err := b.ledger.AddWish(ctx, userID, msg.Text)
	switch {
	case errors.Is(err, service.ErrEmptyWish):
		b.pending.set(userID)
		_ = b.sender.SendHTML(ctx, chatID, "❌ Пожалуйста, пришлите текстовое пожелание.", backButton())
		return
	case errors.Is(err, service.ErrWishTooLong):
		b.pending.set(userID)
		_ = b.sender.SendHTML(ctx, chatID, "❌ Пожелание слишком длинное, сократите его.", backButton())
		return
	case err != nil:
		b.replyError(ctx, chatID)
		return
	}

	if !ok {
		_ = b.sender.SendHTML(ctx, chatID, "❌ Произошла ошибка или вы уже оставляли пожелание.", backButton())
		return
	}

	_ = b.sender.SendHTML(ctx, chatID,
		"🎄 <b>Твоё пожелание сохранено!</b>\n\n"+
			"Ты получил +1 билет 🎫\n"+
			"Приглашай друзей, чтобы увеличить свои шансы!",
		backButton())
}

func (b *Bot) handleTickets(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID, userID := cb.Message.Chat.ID, cb.From.ID

	user, err := b.ledger.GetUser(ctx, userID)
	if err != nil || user == nil {
		b.sender.AnswerCallback(ctx, cb.ID, "Ошибка: пользователь не найден.", true)
		return
	}
	b.sender.AnswerCallback(ctx, cb.ID, "", false)

	wished, invited, err := b.ledger.ReferralStats(ctx, userID)
	if err != nil {
		b.replyError(ctx, chatID)
		return
	}

	text := fmt.Sprintf(
		"🎫 <b>Ваши билеты:</b> %d\n"+
			"👥 <b>Приглашено друзей:</b> %d (оставили пожелание: %d)\n\n"+
			"🔗 <b>Ваша реферальная ссылка:</b>\n<code>%s</code>\n\n"+
			"Отправьте её друзьям! За каждого приглашённого друга, "+
			"который оставит пожелание, вы получите +1 билет 🎁",
		user.Tickets, invited, wished, ReferralLink(b.username, userID))

	b.sender.Delete(ctx, chatID, cb.Message.MessageID)
	_ = b.sender.SendHTML(ctx, chatID, text, backButton())
}
