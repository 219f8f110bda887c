package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/armtemiy/armlab-bot/internal/gate"
	"github.com/armtemiy/armlab-bot/internal/users"
)

const statsTimeout = 10 * time.Second

// NewAdminHandler returns the handler for /admin, /stats and "⚙️ Админка".
// It must be wrapped in AdminOnly.
func NewAdminHandler(deps HandlerDeps) bot.HandlerFunc {
	h := adminHandler{deps}
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		h.handle(ctx, b, update)
	}
}

type adminHandler struct {
	deps HandlerDeps
}

func (h adminHandler) handle(ctx context.Context, api API, update *models.Update) {
	log := h.deps.Logger.With("handler", "admin")
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	statsCtx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	stats, err := h.deps.Directory.Stats(statsCtx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to collect stats", "error", err)
		reply(ctx, api, log, chatID, h.deps.Config.Telegram.Messages.GeneralError, nil)
		return
	}

	var gateStats gate.Stats
	if h.deps.Gate != nil {
		gateStats = h.deps.Gate.Stats()
	}
	reply(ctx, api, log, chatID, renderAdminPanel(stats, gateStats, h.deps.Snapshots.Len()), nil)
}

func renderAdminPanel(stats users.DirectoryStats, gs gate.Stats, cached int) string {
	var sb strings.Builder
	sb.WriteString("⚙️ <b>Админ-панель</b>\n\n")
	fmt.Fprintf(&sb, "👥 Всего в боте: <b>%d</b>\n", stats.Users)
	fmt.Fprintf(&sb, "🥊 Спарринг-профилей: <b>%d</b> (Активных: %d)\n\n", stats.Profiles, stats.ActiveProfiles)
	fmt.Fprintf(&sb, "🚦 Пропущено: %d, отклонено: %d, без лимита: %d\n", gs.Admitted, gs.Rejected, gs.Bypassed)
	fmt.Fprintf(&sb, "🗂 Профилей в кэше: %d\n\n", cached)
	sb.WriteString("Команды:\n")
	sb.WriteString("/broadcast &lt;текст&gt; - Рассылка (Markdown)\n")
	sb.WriteString("/stats - Обновить статистику")
	return sb.String()
}
