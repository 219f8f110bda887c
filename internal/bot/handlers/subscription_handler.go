package handlers

import (
	"context"
	"fmt"
	"html"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewCheckSubscriptionHandler returns a handler for the "✅ Я подписался" button.
func NewCheckSubscriptionHandler(deps HandlerDeps) bot.HandlerFunc {
	h := checkSubscriptionHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type checkSubscriptionHandler struct {
	deps HandlerDeps
}

func (h checkSubscriptionHandler) handle(ctx context.Context, api API, update *models.Update) {
	log := h.deps.Logger.With("handler", "check_subscription")

	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	from := cq.From

	if !h.deps.Subscription.IsSubscribed(ctx, api, from.ID) {
		log.InfoContext(ctx, "Subscription not found", "user_id", from.ID)
		if _, err := api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: cq.ID,
			Text:            h.deps.Config.Telegram.Messages.SubscriptionMissing,
			ShowAlert:       true,
		}); err != nil {
			log.ErrorContext(ctx, "Failed to answer callback", "error", err)
		}
		return
	}

	if _, err := api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: cq.ID}); err != nil {
		log.WarnContext(ctx, "Failed to answer callback", "error", err)
	}

	chatID := from.ID
	if msg := cq.Message.Message; msg != nil {
		chatID = msg.Chat.ID
		if _, err := api.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: msg.ID}); err != nil {
			log.WarnContext(ctx, "Failed to delete subscription prompt", "error", err, "chat_id", chatID)
		}
	}

	name := register(ctx, h.deps, log, from)
	log.InfoContext(ctx, "User confirmed subscription", "user_id", from.ID)

	text := fmt.Sprintf("✅ Спасибо за подписку, <b>%s</b>!\n\nДобро пожаловать в Armtemiy Lab 👇", html.EscapeString(name))
	reply(ctx, api, log, chatID, text, mainMenuKeyboard(h.deps.Config.Telegram.WebAppURL, h.deps.Config.IsAdmin(from.ID)))
}
