package bot

import (
	"context"
	"strconv"
	"strings"

	"wishbot/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type memberGetter interface {
	GetChatMember(ctx context.Context, cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// SubStatus is the user's membership in the required channel and chat.
type SubStatus struct {
	Channel bool
	Chat    bool
}

func (s SubStatus) OK() bool { return s.Channel && s.Chat }

// SubscriptionGate checks that a user joined the required channel and chat
// before they may take part. An empty reference is not checked.
type SubscriptionGate struct {
	api         memberGetter
	channel     string
	chat        string
	channelLink string
	chatLink    string
}

func NewSubscriptionGate(api memberGetter, channel, chat, channelLink, chatLink string) *SubscriptionGate {
	return &SubscriptionGate{
		api:         api,
		channel:     strings.TrimSpace(channel),
		chat:        strings.TrimSpace(chat),
		channelLink: channelLink,
		chatLink:    chatLink,
	}
}

func (g *SubscriptionGate) Check(ctx context.Context, userID int64) SubStatus {
	return SubStatus{
		Channel: g.isMember(ctx, g.channel, userID),
		Chat:    g.isMember(ctx, g.chat, userID),
	}
}

func (g *SubscriptionGate) isMember(ctx context.Context, ref string, userID int64) bool {
	if ref == "" {
		return true
	}
	member, err := g.api.GetChatMember(ctx, tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: chatConfig(ref, userID),
	})
	if err != nil {
		logger.Warn("membership check failed", "chat", ref, "user_id", userID, "error", err)
		return false
	}
	return isActiveMember(member)
}

func chatConfig(ref string, userID int64) tgbotapi.ChatConfigWithUser {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return tgbotapi.ChatConfigWithUser{ChatID: id, UserID: userID}
	}
	if !strings.HasPrefix(ref, "@") {
		ref = "@" + ref
	}
	return tgbotapi.ChatConfigWithUser{SuperGroupUsername: ref, UserID: userID}
}

// isActiveMember treats left and kicked as not subscribed; a restricted
// user counts only while still in the chat.
func isActiveMember(m tgbotapi.ChatMember) bool {
	switch m.Status {
	case "creator", "administrator", "member":
		return true
	case "restricted":
		return m.IsMember
	default:
		return false
	}
}

// ChannelURL is where the "join channel" button points.
func (g *SubscriptionGate) ChannelURL() string { return joinURL(g.channelLink, g.channel) }

func (g *SubscriptionGate) ChatURL() string { return joinURL(g.chatLink, g.chat) }

func joinURL(invite, ref string) string {
	if invite != "" {
		return invite
	}
	if strings.HasPrefix(ref, "@") {
		return "https://t.me/" + strings.TrimPrefix(ref, "@")
	}
	return "https://t.me/"
}
