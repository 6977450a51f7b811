package domain

// Setting keys
const (
	SettingReplyMessageID    = "reply_message_id"
	SettingBotEnabled        = "bot_enabled"
	SettingLastBroadcastTime = "last_broadcast_time"
)
