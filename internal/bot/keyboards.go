package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cbMainMenu          = "main_menu"
	cbRules             = "rules"
	cbLeaveWish         = "leave_wish"
	cbMyTickets         = "my_tickets"
	cbCheckSubscription = "check_subscription"

	cbAdminToggle    = "admin_toggle_bot"
	cbAdminExportCSV = "export_csv"
	cbAdminExportTXT = "export_txt"
	cbAdminClearPost = "admin_clear_post"
	cbAdminPanel     = "admin_back"
)

func mainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎫 Мои билеты", cbMyTickets),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✨ Оставить пожелание", cbLeaveWish),
			tgbotapi.NewInlineKeyboardButtonData("📜 Правила", cbRules),
		),
	)
}

func backButton() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", cbMainMenu),
		),
	)
}

func subscriptionKeyboard(g *SubscriptionGate, st SubStatus) tgbotapi.InlineKeyboardMarkup {
	icon := func(ok bool) string {
		if ok {
			return "✅"
		}
		return "❌"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(icon(st.Chat)+" Чат", g.ChatURL()),
			tgbotapi.NewInlineKeyboardButtonURL(icon(st.Channel)+" Канал", g.ChannelURL()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Проверить подписку", cbCheckSubscription),
		),
	)
}

func adminMenu(enabled bool) tgbotapi.InlineKeyboardMarkup {
	toggle := "🔴 Выключить бота"
	if !enabled {
		toggle = "🟢 Включить бота"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(toggle, cbAdminToggle)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Экспорт CSV", cbAdminExportCSV),
			tgbotapi.NewInlineKeyboardButtonData("📄 Экспорт TXT", cbAdminExportTXT),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🗑 Убрать привязку к посту", cbAdminClearPost)),
	)
}
