package handlers

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/armtemiy/armlab-bot/internal/users"
)

// NewProfileHandler returns a handler for the "👤 Профиль" button.
func NewProfileHandler(deps HandlerDeps) bot.HandlerFunc {
	h := profileHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

// profileHandler renders the user's snapshot.
type profileHandler struct {
	deps HandlerDeps
}

func (h profileHandler) handle(ctx context.Context, api API, update *models.Update) {
	log := h.deps.Logger.With("handler", "profile")

	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	msgs := h.deps.Config.Telegram.Messages

	snapCtx, cancel := context.WithTimeout(ctx, h.deps.Config.Cache.SnapshotTimeout)
	defer cancel()

	snap, err := h.deps.Snapshots.GetSnapshot(snapCtx, userID)
	switch {
	case err != nil:
		log.WarnContext(ctx, "Snapshot unavailable", "user_id", userID, "error", err)
		reply(ctx, api, log, chatID, msgs.GeneralError, nil)
	case snap == nil:
		reply(ctx, api, log, chatID, msgs.ProfileNotFound, nil)
	default:
		reply(ctx, api, log, chatID, renderProfile(snap), nil)
	}
}

func renderProfile(s *users.Snapshot) string {
	name := s.FirstName
	if name == "" {
		name = "-"
	}

	var sb strings.Builder
	sb.WriteString("👤 <b>Профиль</b>\n\n")
	fmt.Fprintf(&sb, "🆔 ID: <code>%d</code>\n", s.TelegramID)
	fmt.Fprintf(&sb, "👋 Имя: %s\n", html.EscapeString(name))
	if s.Username != "" {
		fmt.Fprintf(&sb, "🔗 Username: @%s\n", html.EscapeString(s.Username))
	}
	fmt.Fprintf(&sb, "📅 Регистрация: %s", s.CreatedAt.Format("02.01.2006"))
	if s.Sparring != nil {
		fmt.Fprintf(&sb, "\n🥊 Спарринг: %s", html.EscapeString(s.Sparring.String()))
	}
	return sb.String()
}
