package handlers

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const defaultFirstName = "друг"

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	h := startHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

// startHandler gates the bot behind the channel subscription and registers
// the user.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) handle(ctx context.Context, api API, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}
	from := update.Message.From
	chatID := update.Message.Chat.ID

	log.InfoContext(ctx, "Handling /start command", "chat_id", chatID, "user_id", from.ID)

	if !h.deps.Subscription.IsSubscribed(ctx, api, from.ID) {
		reply(ctx, api, log, chatID, h.deps.Config.Telegram.Messages.SubscribePrompt,
			subscriptionKeyboard(h.deps.Config.Telegram.ChannelURL))
		return
	}

	name := register(ctx, h.deps, log, *from)
	text := fmt.Sprintf("👋 Привет, %s!\n\nЯ Armtemiy Lab, помощник армрестлера.\n\nМеню 👇", html.EscapeString(name))
	reply(ctx, api, log, chatID, text, mainMenuKeyboard(h.deps.Config.Telegram.WebAppURL, h.deps.Config.IsAdmin(from.ID)))
}

// register records a subscribed user and returns the name to greet them by.
// Directory failures are logged; the greeting is sent regardless.
func register(ctx context.Context, deps HandlerDeps, log *slog.Logger, from models.User) string {
	name := from.FirstName
	if name == "" {
		name = defaultFirstName
	}

	if _, err := deps.Directory.GetOrCreate(ctx, from.ID, from.Username, name); err != nil {
		log.WarnContext(ctx, "Failed to register user", "user_id", from.ID, "error", err)
		return name
	}
	if err := deps.Directory.SetSubscriptionStatus(ctx, from.ID, true); err != nil {
		log.WarnContext(ctx, "Failed to store subscription status", "user_id", from.ID, "error", err)
	}
	deps.Snapshots.Invalidate(from.ID)
	return name
}
