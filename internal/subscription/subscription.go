// Package subscription checks whether a user follows the bot's channel.
package subscription

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const defaultTimeout = 5 * time.Second

// MemberGetter is the part of *bot.Bot the checker needs.
type MemberGetter interface {
	GetChatMember(ctx context.Context, params *bot.GetChatMemberParams) (*models.ChatMember, error)
}

// Checker queries channel membership.
type Checker struct {
	channelID string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewChecker creates a Checker for channelID (numeric id or @username).
// An empty channelID, or the "@channel" placeholder, disables the check.
func NewChecker(channelID string, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Checker{
		channelID: strings.TrimSpace(channelID),
		timeout:   defaultTimeout,
		logger:    logger.With("component", "subscription"),
	}
}

// Enabled reports whether a real channel is configured.
func (c *Checker) Enabled() bool {
	return c.channelID != "" && c.channelID != "@channel"
}

// IsSubscribed reports whether userID is a member, administrator or creator
// of the channel, asking api. Query failures count as not subscribed.
func (c *Checker) IsSubscribed(ctx context.Context, api MemberGetter, userID int64) bool {
	if !c.Enabled() {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	member, err := api.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: c.channelID,
		UserID: userID,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "Subscription check failed", "user_id", userID, "channel", c.channelID, "error", err)
		return false
	}
	if member == nil {
		return false
	}

	switch member.Type {
	case models.ChatMemberTypeMember, models.ChatMemberTypeAdministrator, models.ChatMemberTypeOwner:
		return true
	default:
		return false
	}
}
