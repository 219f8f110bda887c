// Package gate applies per-actor rate limiting to incoming Telegram updates
// before they reach the handlers.
package gate

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jonboulle/clockwork"

	"github.com/armtemiy/armlab-bot/internal/ratelimit"
)

// Default rejection notices.
const (
	DefaultMessageNotice  = "Слишком много запросов. Подожди немного."
	DefaultCallbackNotice = "Слишком много запросов."
)

// Responder is the part of *bot.Bot used to tell a rejected actor why.
type Responder interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Notices holds the texts sent on rejection.
type Notices struct {
	Message  string
	Callback string
}

// Stats are cumulative counters since start.
type Stats struct {
	Admitted uint64
	Rejected uint64
	Bypassed uint64
}

// Gate decides, per update, whether it reaches the handlers.
type Gate struct {
	limiter    ratelimit.Limiter
	privileged map[int64]struct{}
	notices    Notices
	clock      clockwork.Clock
	logger     *slog.Logger

	admitted atomic.Uint64
	rejected atomic.Uint64
	bypassed atomic.Uint64
}

// New creates a Gate. privileged actors are never limited.
func New(limiter ratelimit.Limiter, privileged []int64, notices Notices, clock clockwork.Clock, logger *slog.Logger) *Gate {
	if notices.Message == "" {
		notices.Message = DefaultMessageNotice
	}
	if notices.Callback == "" {
		notices.Callback = DefaultCallbackNotice
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	set := make(map[int64]struct{}, len(privileged))
	for _, id := range privileged {
		set[id] = struct{}{}
	}

	return &Gate{
		limiter:    limiter,
		privileged: set,
		notices:    notices,
		clock:      clock,
		logger:     logger.With("component", "gate"),
	}
}

// Middleware returns the gate as a go-telegram/bot middleware.
func (g *Gate) Middleware() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var responder Responder
			if b != nil {
				responder = b
			}
			if g.Admit(ctx, responder, update) {
				next(ctx, b, update)
			}
		}
	}
}

type updateKind int

const (
	kindOther updateKind = iota
	kindMessage
	kindCallback
	kindEdited
)

// actorOf extracts the acting user. ok is false for updates without one.
func actorOf(update *models.Update) (actorID int64, kind updateKind, ok bool) {
	switch {
	case update == nil:
		return 0, kindOther, false
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, kindMessage, true
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID, kindCallback, true
	case update.EditedMessage != nil && update.EditedMessage.From != nil:
		return update.EditedMessage.From.ID, kindEdited, true
	default:
		return 0, kindOther, false
	}
}

// Admit reports whether update may proceed, recording it against the actor's
// budget when it does. A rejected actor is notified through r when the update
// is a message or a callback query. Limiter failures admit.
func (g *Gate) Admit(ctx context.Context, r Responder, update *models.Update) bool {
	actorID, kind, ok := actorOf(update)
	if !ok {
		return true
	}

	if _, privileged := g.privileged[actorID]; privileged {
		g.bypassed.Add(1)
		return true
	}

	now := g.clock.Now()
	allowed := true
	g.consult(ctx, actorID, func() {
		allowed = g.limiter.CheckLimit(ctx, actorID, now)
	})
	if !allowed {
		g.rejected.Add(1)
		g.logger.InfoContext(ctx, "Rate limit exceeded", "actor_id", actorID)
		g.notify(ctx, r, update, kind)
		return false
	}

	g.consult(ctx, actorID, func() {
		g.limiter.RecordRequest(ctx, actorID, now)
	})
	g.admitted.Add(1)
	return true
}

// consult runs a limiter call, absorbing panics.
func (g *Gate) consult(ctx context.Context, actorID int64, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.ErrorContext(ctx, "Rate limiter panicked, admitting update",
				"actor_id", actorID,
				"panic", rec)
		}
	}()
	fn()
}

func (g *Gate) notify(ctx context.Context, r Responder, update *models.Update, kind updateKind) {
	if r == nil {
		return
	}

	var err error
	switch kind {
	case kindMessage:
		_, err = r.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: update.Message.Chat.ID,
			Text:   g.notices.Message,
		})
	case kindCallback:
		_, err = r.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: update.CallbackQuery.ID,
			Text:            g.notices.Callback,
		})
	default:
		return
	}
	if err != nil {
		g.logger.WarnContext(ctx, "Failed to send rate limit notice", "error", err)
	}
}

// Stats returns the counters.
func (g *Gate) Stats() Stats {
	return Stats{
		Admitted: g.admitted.Load(),
		Rejected: g.rejected.Load(),
		Bypassed: g.bypassed.Load(),
	}
}
