// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly creates a middleware that lets only configured admins through.
// Everyone else is ignored without a reply, so admin commands stay hidden.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}

			userID := update.Message.From.ID
			if !deps.Config.IsAdmin(userID) {
				deps.Logger.With("middleware", "AdminOnly").DebugContext(ctx, "Ignoring admin command from non-admin",
					"user_id", userID,
					"chat_id", update.Message.Chat.ID)
				return
			}

			next(ctx, bot, update)
		}
	}
}
