package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"wishbot/internal/domain"
	"wishbot/internal/export"
	"wishbot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleAdminCommand returns false for commands it does not own so they
// fall through to the user handlers.
func (b *Bot) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message) bool {
	var response string
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "admin", "help":
		text, enabled, err := b.adminPanel(ctx)
		if err != nil {
			response = fmt.Sprintf("❌ Ошибка: %v", err)
			break
		}
		_ = b.sender.SendHTML(ctx, msg.Chat.ID, text, adminMenu(enabled))
		return true

	case "toggle":
		response = b.handleToggle(ctx, msg.From.ID)

	case "setpost":
		response = b.handleSetPost(ctx, msg.From.ID, args)

	case "clearpost":
		response = b.handleClearPost(ctx, msg.From.ID)

	case "addtickets":
		response = b.handleAddTickets(ctx, msg.From.ID, args)

	case "resetwish":
		response = b.handleResetWish(ctx, msg.From.ID, args)

	case "export":
		b.handleExport(ctx, msg.Chat.ID, msg.From.ID, strings.ToLower(args))
		return true

	case "token":
		response = b.handleToken(msg.From.ID)

	default:
		return false
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, response)
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyToMessageID = msg.MessageID

	if _, err := b.sender.Send(ctx, reply); err != nil {
		b.log.Error("error sending message", "error", err)
	}
	return true
}

func (b *Bot) handleAdminCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) bool {
	chatID := cb.Message.Chat.ID
	adminID := cb.From.ID

	switch cb.Data {
	case cbAdminPanel:
		b.sender.AnswerCallback(ctx, cb.ID, "", false)
	case cbAdminToggle:
		b.sender.AnswerCallback(ctx, cb.ID, "", false)
		_ = b.sender.SendHTML(ctx, chatID, b.handleToggle(ctx, adminID), nil)
	case cbAdminClearPost:
		b.sender.AnswerCallback(ctx, cb.ID, "", false)
		_ = b.sender.SendHTML(ctx, chatID, b.handleClearPost(ctx, adminID), nil)
	case cbAdminExportCSV:
		b.sender.AnswerCallback(ctx, cb.ID, "Генерирую CSV...", false)
		b.handleExport(ctx, chatID, adminID, export.FormatCSV)
		return true
	case cbAdminExportTXT:
		b.sender.AnswerCallback(ctx, cb.ID, "Генерирую TXT...", false)
		b.handleExport(ctx, chatID, adminID, export.FormatTXT)
		return true
	default:
		return false
	}

	// refresh the panel so the toggle button shows the new state
	text, enabled, err := b.adminPanel(ctx)
	if err != nil {
		return true
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, cb.Message.MessageID, text, adminMenu(enabled))
	edit.ParseMode = tgbotapi.ModeHTML
	_ = b.sender.Request(ctx, edit)
	return true
}

func (b *Bot) adminPanel(ctx context.Context) (string, bool, error) {
	st, err := b.admin.GetStats(ctx)
	if err != nil {
		return "", false, err
	}

	botStatus := "🔴 Выключен"
	if st.BotEnabled {
		botStatus = "🟢 Включен"
	}
	postStatus := "❌ Не установлен"
	if st.ReplyMessageID > 0 {
		postStatus = fmt.Sprintf("✅ ID: %d", st.ReplyMessageID)
	}

	return fmt.Sprintf(`👨‍💼 <b>Админ-панель</b>

📊 <b>Статистика:</b>
• Всего пользователей: %d
• Оставлено пожеланий: %d

🤖 <b>Статус бота:</b> %s
💬 <b>Пост для комментариев:</b> %s

<b>Команды:</b>
/toggle - Включить/выключить публикации
/setpost &lt;ссылка|id&gt; - Пост для комментариев
/clearpost - Убрать привязку к посту
/addtickets &lt;@username&gt; &lt;кол-во&gt; [сообщение] - Выдать билеты
/resetwish &lt;@username&gt; - Сбросить пожелание
/export [csv|txt] - Выгрузка участников
/token - Токен для admin API

Перешлите сюда пожелание из чата, чтобы сбросить его.`,
		st.TotalUsers, st.TotalWishes, botStatus, postStatus), st.BotEnabled, nil
}

func (b *Bot) handleToggle(ctx context.Context, adminID int64) string {
	enabled, err := b.admin.ToggleBot(ctx, adminID)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if enabled {
		return "🟢 Публикации включены"
	}
	return "🔴 Публикации выключены"
}

func (b *Bot) handleSetPost(ctx context.Context, adminID int64, args string) string {
	if args == "" {
		return "❌ Использование: /setpost &lt;https://t.me/c/XXXXXXXXXX/XXX | id&gt;\n\n" +
			"Это сообщение должно быть копией поста канала в группе-обсуждении."
	}
	id, ok := domain.ParsePostLink(args)
	if !ok {
		return "❌ Не удалось распознать ссылку или ID."
	}
	if err := b.admin.SetReplyPost(ctx, adminID, id); err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	return fmt.Sprintf("✅ Пост для комментариев установлен!\nID сообщения: <code>%d</code>", id)
}

func (b *Bot) handleClearPost(ctx context.Context, adminID int64) string {
	if err := b.admin.ClearReplyPost(ctx, adminID); err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	return "✅ Привязка к посту удалена"
}

func (b *Bot) handleAddTickets(ctx context.Context, adminID int64, args string) string {
	g, err := parseTicketGrant(args)
	if err != nil {
		return "❌ Использование: /addtickets &lt;@username&gt; &lt;кол-во&gt; [сообщение]"
	}

	user, err := b.ledger.FindUserByUsername(ctx, g.username)
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if user == nil {
		return fmt.Sprintf("❌ Пользователь <code>%s</code> не найден.", html.EscapeString(g.username))
	}

	total, ok, err := b.ledger.AddTicketsToUser(ctx, user.UserID, g.count)
	if errors.Is(err, service.ErrInvalidCount) {
		return "❌ Введите корректное положительное число билетов."
	}
	if err != nil {
		return fmt.Sprintf("❌ Ошибка: %v", err)
	}
	if !ok {
		return "❌ Ошибка: пользователь не найден."
	}
	b.admin.LogTicketGrant(ctx, adminID, user.UserID, g.count, total)

	adjective := "дополнительных"
	if g.count%10 == 1 && g.count%100 != 11 {
		adjective = "дополнительный"
	}
	notice := fmt.Sprintf("🎉 <b>Поздравляем!</b>\n\n"+
		"✨ Вы получили <b>%d</b> %s %s!\n"+
		"🎫 Теперь у вас: <b>%d</b> %s",
		g.count, adjective, ticketWord(g.count), total, ticketWord(total))
	if g.note != "" {
		notice += "\n\n💬 <i>" + html.EscapeString(g.note) + "</i>"
	}

	delivered := "✅ отправлено"
	if err := b.sender.SendHTML(ctx, user.UserID, notice, nil); err != nil {
		delivered = "❌ не доставлено (возможно, бот заблокирован)"
	}

	report := fmt.Sprintf("✅ <b>Билеты выданы!</b>\n\n"+
		"👤 Пользователь: %s\n"+
		"🆔 ID: <code>%d</code>\n"+
		"🎫 Выдано билетов: <b>+%d</b>\n"+
		"📊 Всего билетов: <b>%d</b>\n"+
		"📬 Уведомление: %s",
		html.EscapeString(user.DisplayName()), user.UserID, g.count, total, delivered)
	if g.note != "" {
		report += "\n💬 Сообщение: <i>" + html.EscapeString(truncate(g.note, 100)) + "</i>"
	}
	return report
}

func (b *Bot) handleResetWish(ctx context.Context, adminID int64, args string) string {
	if args == "" {
		return "❌ Использование: /resetwish &lt;@username&gt;"
	}

	user, ok, err := b.ledger.ResetWishByUsername(ctx, args)
	if err != nil {
		return "❌ Ошибка при сбросе пожелания."
	}
	if user == nil {
		return fmt.Sprintf("❌ Пользователь <code>%s</code> не найден.", html.EscapeString(args))
	}
	if !ok {
		return fmt.Sprintf("❌ У пользователя <code>%s</code> нет пожелания.", html.EscapeString(user.DisplayName()))
	}

	b.admin.LogWishReset(ctx, adminID, user.UserID, "username")
	return resetReport(user)
}

func (b *Bot) handleForwardedWish(ctx context.Context, msg *tgbotapi.Message) {
	text := WishFromForward(msg)
	if text == "" {
		_ = b.sender.SendHTML(ctx, msg.Chat.ID,
			"❌ Не удалось распознать пожелание.\n"+
				"Убедитесь, что пересылаете сообщение с пожеланием из чата.", nil)
		return
	}

	user, ok, err := b.ledger.ResetWishByText(ctx, text)
	var response string
	switch {
	case err != nil:
		response = "❌ Ошибка при сбросе пожелания."
	case user == nil:
		response = fmt.Sprintf("❌ Пожелание не найдено в базе данных.\nТекст: <i>%s</i>",
			html.EscapeString(truncate(text, 100)))
	case !ok:
		response = fmt.Sprintf("❌ У пользователя <code>%s</code> нет пожелания.", html.EscapeString(user.DisplayName()))
	default:
		b.admin.LogWishReset(ctx, msg.From.ID, user.UserID, "forward")
		response = resetReport(user)
	}
	_ = b.sender.SendHTML(ctx, msg.Chat.ID, response, nil)
}

func resetReport(user *domain.User) string {
	var referrer string
	if user.ReferrerID != nil {
		referrer = fmt.Sprintf("\n👤 Реферер: <code>%d</code> (−1 билет)", *user.ReferrerID)
	}
	return fmt.Sprintf("✅ Пожелание сброшено!\n\n"+
		"👤 Пользователь: %s\n"+
		"🆔 User ID: <code>%d</code>\n"+
		"🎫 Билет изъят (−1)%s",
		html.EscapeString(user.DisplayName()), user.UserID, referrer)
}

func (b *Bot) handleExport(ctx context.Context, chatID, adminID int64, format string) {
	ps, err := b.admin.Participants(ctx, adminID)
	if err != nil {
		_ = b.sender.SendHTML(ctx, chatID, fmt.Sprintf("❌ Ошибка: %v", err), nil)
		return
	}
	if len(ps) == 0 {
		_ = b.sender.SendHTML(ctx, chatID, "❌ Нет участников для выгрузки.", nil)
		return
	}

	f, err := export.Render(format, ps)
	if err != nil {
		_ = b.sender.SendHTML(ctx, chatID, "❌ Формат: /export csv или /export txt", nil)
		return
	}

	caption := fmt.Sprintf("📊 Список участников для розыгрыша\n🎫 Всего билетов: %d", f.Tickets)
	if err := b.sender.SendDocument(ctx, chatID, f.Name, f.Data, caption); err != nil {
		b.log.Error("send export failed", "error", err)
		_ = b.sender.SendHTML(ctx, chatID, "❌ Не удалось отправить файл.", nil)
	}
}

func (b *Bot) handleToken(adminID int64) string {
	token, err := service.GenerateAdminJWT(adminID)
	if err != nil {
		return "❌ Admin API выключен (JWT_SECRET не задан)."
	}
	return fmt.Sprintf("🔐 Токен для admin API (24 часа):\n<code>%s</code>", token)
}
