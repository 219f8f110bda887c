package handlers

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/armtemiy/armlab-bot/internal/broadcast"
	"github.com/armtemiy/armlab-bot/internal/config"
	"github.com/armtemiy/armlab-bot/internal/gate"
	"github.com/armtemiy/armlab-bot/internal/sanitize"
	"github.com/armtemiy/armlab-bot/internal/subscription"
	"github.com/armtemiy/armlab-bot/internal/users"
)

// HandlerDeps provides dependencies for Telegram command handlers.
type HandlerDeps struct {
	Logger       *slog.Logger
	Config       *config.Config
	Directory    *users.Directory
	Snapshots    *users.Cache
	Subscription *subscription.Checker
	Broadcaster  *broadcast.Broadcaster
	Gate         *gate.Gate
	// Formatter renders broadcast Markdown; nil sends the text escaped.
	Formatter *sanitize.Policy
}

// API is the subset of *bot.Bot the handlers call. Handlers receive the bot
// per update and pass it on as an API.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
}

var _ API = (*bot.Bot)(nil)

// reply sends an HTML message and logs failures.
func reply(ctx context.Context, api API, log *slog.Logger, chatID int64, text string, markup models.ReplyMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := api.SendMessage(ctx, params); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}
