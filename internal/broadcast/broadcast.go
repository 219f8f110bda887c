// Package broadcast delivers an admin message to every known user.
// Delivery is best effort: each recipient is tried once and failures are
// counted, not retried.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

// Sender is the part of *bot.Bot used for delivery.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Audience lists recipients. *users.Directory implements it.
type Audience interface {
	ActorIDs(ctx context.Context) ([]int64, error)
}

// Config controls delivery pacing.
type Config struct {
	// PerSecond is the sustained send rate.
	PerSecond float64
	Burst     int
}

// Result summarises one broadcast.
type Result struct {
	Total     int
	Delivered int
	Blocked   int
	Failed    int
	Duration  time.Duration
}

// Broadcaster sends messages to the whole audience.
type Broadcaster struct {
	audience Audience
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New creates a Broadcaster. Zero config values mean 25 messages per second
// with a burst of 1.
func New(audience Audience, cfg Config, logger *slog.Logger) *Broadcaster {
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 25
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Broadcaster{
		audience: audience,
		limiter:  rate.NewLimiter(rate.Limit(cfg.PerSecond), cfg.Burst),
		logger:   logger.With("component", "broadcast"),
	}
}

// Send delivers text, formatted as Telegram HTML, to every recipient through sender. It stops early only
// when ctx ends, returning the partial result together with the context error.
func (b *Broadcaster) Send(ctx context.Context, sender Sender, text string) (Result, error) {
	start := time.Now()

	ids, err := b.audience.ActorIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list recipients: %w", err)
	}

	res := Result{Total: len(ids)}
	b.logger.InfoContext(ctx, "Starting broadcast", "recipients", res.Total)

	for _, id := range ids {
		if err := b.limiter.Wait(ctx); err != nil {
			res.Duration = time.Since(start)
			b.logger.WarnContext(ctx, "Broadcast interrupted", "delivered", res.Delivered, "error", err)
			return res, err
		}

		_, err := sender.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    id,
			Text:      text,
			ParseMode: models.ParseModeHTML,
		})
		switch {
		case err == nil:
			res.Delivered++
		case errors.Is(err, bot.ErrorForbidden):
			res.Blocked++
			b.logger.DebugContext(ctx, "Recipient blocked the bot", "user_id", id)
		default:
			res.Failed++
			b.logger.WarnContext(ctx, "Broadcast delivery failed", "user_id", id, "error", err)
		}
	}

	res.Duration = time.Since(start)
	b.logger.InfoContext(ctx, "Broadcast finished",
		"delivered", res.Delivered,
		"blocked", res.Blocked,
		"failed", res.Failed,
		"duration", res.Duration)
	return res, nil
}
