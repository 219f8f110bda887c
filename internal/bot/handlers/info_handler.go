package handlers

import (
	"context"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewInfoHandler returns a handler for the "ℹ️ Инфо" button.
func NewInfoHandler(deps HandlerDeps) bot.HandlerFunc {
	h := infoHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type infoHandler struct {
	deps HandlerDeps
}

func (h infoHandler) handle(ctx context.Context, api API, update *models.Update) {
	if update.Message == nil {
		return
	}
	log := h.deps.Logger.With("handler", "info")
	reply(ctx, api, log, update.Message.Chat.ID, renderInfo(h.deps.Config.Telegram.ChannelID, h.deps.Config.Telegram.ChatURL), nil)
}

func renderInfo(channel, chatURL string) string {
	var sb strings.Builder
	sb.WriteString("ℹ️ <b>Контакты</b>\n")
	if channel != "" {
		sb.WriteString("\n📢 Канал: " + html.EscapeString(channel))
	}
	if chatURL != "" {
		sb.WriteString("\n💬 Чат: " + html.EscapeString(chatURL))
	}
	return sb.String()
}
