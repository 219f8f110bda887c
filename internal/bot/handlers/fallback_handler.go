package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewFallbackHandler returns the default handler for updates no other
// handler matched.
func NewFallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	h := fallbackHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type fallbackHandler struct {
	deps HandlerDeps
}

func (h fallbackHandler) handle(ctx context.Context, api API, update *models.Update) {
	log := h.deps.Logger.With("handler", "fallback")

	switch {
	case update.Message != nil && update.Message.From != nil && update.Message.Chat.Type == models.ChatTypePrivate:
		reply(ctx, api, log, update.Message.Chat.ID, h.deps.Config.Telegram.Messages.Fallback, nil)

	case update.CallbackQuery != nil:
		// Stops the client spinner on stale buttons.
		if _, err := api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
		}); err != nil {
			log.WarnContext(ctx, "Failed to answer callback", "error", err)
		}

	default:
		log.DebugContext(ctx, "Ignoring unhandled update", "update_id", update.ID)
	}
}
