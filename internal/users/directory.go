// Package users provides the user directory and the snapshot cache in front
// of it.
package users

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/armtemiy/armlab-bot/internal/database"
	"github.com/armtemiy/armlab-bot/internal/resilience"
)

// Store is the slice of database.Store the directory uses.
type Store interface {
	GetUser(ctx context.Context, telegramID int64) (*database.User, error)
	GetOrCreateUser(ctx context.Context, telegramID int64, username, firstName string) (*database.User, bool, error)
	SetSubscriptionStatus(ctx context.Context, telegramID int64, subscribed bool) error
	CountUsers(ctx context.Context) (int, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	GetSparringProfile(ctx context.Context, telegramID int64) (*database.SparringProfile, error)
	CountSparringProfiles(ctx context.Context) (database.ProfileCounts, error)
}

// DirectoryStats aggregates counts for the admin panel.
type DirectoryStats struct {
	Users          int
	Profiles       int
	ActiveProfiles int
}

// Directory gives tolerant access to persisted users. Every persistence
// failure is returned as an error wrapping resilience.ErrUnavailable; absence
// is nil, nil.
type Directory struct {
	store  Store
	guard  *resilience.Guard
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewDirectory creates a Directory. guard may be nil; a nil clock uses wall time.
func NewDirectory(store Store, guard *resilience.Guard, clock clockwork.Clock, logger *slog.Logger) *Directory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Directory{
		store:  store,
		guard:  guard,
		clock:  clock,
		logger: logger.With("component", "user_directory"),
	}
}

// GetOrCreate returns the user, refreshing username and first name in place
// when they differ, or creates it unsubscribed.
func (d *Directory) GetOrCreate(ctx context.Context, actorID int64, username, firstName string) (*database.User, error) {
	if actorID == 0 {
		return nil, fmt.Errorf("actor id cannot be zero")
	}

	type outcome struct {
		user    *database.User
		created bool
	}
	res, err := resilience.Call(ctx, d.guard, "get_or_create_user", func(ctx context.Context) (outcome, error) {
		user, created, err := d.store.GetOrCreateUser(ctx, actorID, username, firstName)
		return outcome{user: user, created: created}, err
	})
	if err != nil {
		return nil, err
	}

	if res.created {
		d.logger.InfoContext(ctx, "Registered new user", "actor_id", actorID, "username", username)
	}
	return res.user, nil
}

// Fetch looks a user up without modifying it.
func (d *Directory) Fetch(ctx context.Context, actorID int64) (*database.User, error) {
	return resilience.Call(ctx, d.guard, "get_user", func(ctx context.Context) (*database.User, error) {
		return d.store.GetUser(ctx, actorID)
	})
}

// FetchSecondaryProfile returns the sparring profile of the actor, if any.
func (d *Directory) FetchSecondaryProfile(ctx context.Context, actorID int64) (*database.SparringProfile, error) {
	return resilience.Call(ctx, d.guard, "get_sparring_profile", func(ctx context.Context) (*database.SparringProfile, error) {
		return d.store.GetSparringProfile(ctx, actorID)
	})
}

// SetSubscriptionStatus stores the last observed subscription state.
func (d *Directory) SetSubscriptionStatus(ctx context.Context, actorID int64, subscribed bool) error {
	return d.guard.Do(ctx, "set_subscription_status", func(ctx context.Context) error {
		return d.store.SetSubscriptionStatus(ctx, actorID, subscribed)
	})
}

// Stats counts users and sparring profiles.
func (d *Directory) Stats(ctx context.Context) (DirectoryStats, error) {
	start := d.clock.Now()
	stats, err := resilience.Call(ctx, d.guard, "directory_stats", func(ctx context.Context) (DirectoryStats, error) {
		users, err := d.store.CountUsers(ctx)
		if err != nil {
			return DirectoryStats{}, err
		}
		profiles, err := d.store.CountSparringProfiles(ctx)
		if err != nil {
			return DirectoryStats{}, err
		}
		return DirectoryStats{Users: users, Profiles: profiles.Total, ActiveProfiles: profiles.Active}, nil
	})
	if err != nil {
		return DirectoryStats{}, err
	}

	d.logger.DebugContext(ctx, "Collected directory stats", "users", stats.Users, "duration", d.clock.Since(start))
	return stats, nil
}

// ActorIDs lists every known actor, oldest first.
func (d *Directory) ActorIDs(ctx context.Context) ([]int64, error) {
	return resilience.Call(ctx, d.guard, "list_user_ids", func(ctx context.Context) ([]int64, error) {
		return d.store.ListUserIDs(ctx)
	})
}
