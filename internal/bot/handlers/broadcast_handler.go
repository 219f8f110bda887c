package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewBroadcastHandler returns the handler for /broadcast <text>.
// It must be wrapped in AdminOnly.
func NewBroadcastHandler(deps HandlerDeps) bot.HandlerFunc {
	h := broadcastHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

// broadcastHandler runs the broadcast inline; the dispatcher serves other
// updates concurrently meanwhile.
type broadcastHandler struct {
	deps HandlerDeps
}

func (h broadcastHandler) handle(ctx context.Context, api API, update *models.Update) {
	log := h.deps.Logger.With("handler", "broadcast")
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	text := commandArgs(update.Message.Text)
	if text == "" {
		reply(ctx, api, log, chatID, html.EscapeString(h.deps.Config.Telegram.Messages.BroadcastUsage), nil)
		return
	}

	log.InfoContext(ctx, "Broadcast requested", "admin_id", update.Message.From.ID, "length", len(text))
	reply(ctx, api, log, chatID, "📤 Рассылка запущена...", nil)

	res, err := h.deps.Broadcaster.Send(ctx, api, h.render(text))
	if err != nil {
		log.ErrorContext(ctx, "Broadcast failed", "error", err)
		if res.Total == 0 {
			reply(ctx, api, log, chatID, h.deps.Config.Telegram.Messages.GeneralError, nil)
			return
		}
	}

	summary := fmt.Sprintf("✅ Рассылка завершена\n\nДоставлено: %d из %d\nЗаблокировали бота: %d\nОшибок: %d",
		res.Delivered, res.Total, res.Blocked, res.Failed)
	reply(ctx, api, log, chatID, summary, nil)
}

func (h broadcastHandler) render(text string) string {
	if h.deps.Formatter == nil {
		return html.EscapeString(text)
	}
	if out := h.deps.Formatter.Render(text); out != "" {
		return out
	}
	return html.EscapeString(text)
}

// commandArgs strips the leading /command (with optional @botname).
func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	idx := strings.IndexAny(text, " \n\t")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(text[idx+1:])
}
