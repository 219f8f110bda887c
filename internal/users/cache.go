package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/armtemiy/armlab-bot/internal/database"
	"github.com/armtemiy/armlab-bot/internal/resilience"
)

// Defaults used when CacheConfig leaves a field zero.
const (
	DefaultCacheTTL     = 5 * time.Minute
	DefaultFetchTimeout = 5 * time.Second
)

// SnapshotSource is what the cache reads through to. *Directory implements it.
type SnapshotSource interface {
	Fetch(ctx context.Context, actorID int64) (*database.User, error)
	FetchSecondaryProfile(ctx context.Context, actorID int64) (*database.SparringProfile, error)
}

// CacheConfig configures a Cache.
type CacheConfig struct {
	TTL time.Duration
	// FetchTimeout bounds a directory fetch independently of the caller.
	FetchTimeout time.Duration
	Clock        clockwork.Clock
}

type cacheEntry struct {
	snapshot *Snapshot
	storedAt time.Time
}

// Cache is a TTL read-through cache of snapshots. Entries are evicted by age
// only; the key space is bounded by active users.
type Cache struct {
	source       SnapshotSource
	ttl          time.Duration
	fetchTimeout time.Duration
	clock        clockwork.Clock
	logger       *slog.Logger

	mu          sync.RWMutex
	entries     map[int64]cacheEntry
	invalidated map[int64]time.Time

	group singleflight.Group
}

// NewCache creates a Cache reading through to source.
func NewCache(source SnapshotSource, cfg CacheConfig, logger *slog.Logger) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cache{
		source:       source,
		ttl:          cfg.TTL,
		fetchTimeout: cfg.FetchTimeout,
		clock:        cfg.Clock,
		logger:       logger.With("component", "snapshot_cache"),
		entries:      make(map[int64]cacheEntry),
		invalidated:  make(map[int64]time.Time),
	}
}

// GetSnapshot returns the snapshot of actorID.
//
// A fresh entry is served without touching the directory. Otherwise a single
// fetch runs per actor, detached from ctx: if ctx ends first the caller gets
// the stale entry or ErrUnavailable, and the fetch still fills the cache.
// A user that does not exist yields nil, nil.
func (c *Cache) GetSnapshot(ctx context.Context, actorID int64) (*Snapshot, error) {
	entry, cached := c.lookup(actorID)
	if cached && c.clock.Since(entry.storedAt) <= c.ttl {
		return entry.snapshot, nil
	}

	ch := c.group.DoChan(strconv.FormatInt(actorID, 10), func() (interface{}, error) {
		return c.load(actorID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return c.degrade(ctx, actorID, res.Err)
		}
		snapshot, _ := res.Val.(*Snapshot)
		return snapshot, nil

	case <-ctx.Done():
		return c.degrade(ctx, actorID, ctx.Err())
	}
}

// degrade serves a stale entry when one exists.
func (c *Cache) degrade(ctx context.Context, actorID int64, cause error) (*Snapshot, error) {
	if entry, ok := c.lookup(actorID); ok {
		c.logger.WarnContext(ctx, "Serving stale snapshot",
			"actor_id", actorID,
			"age", c.clock.Since(entry.storedAt),
			"cause", cause)
		return entry.snapshot, nil
	}
	if errors.Is(cause, resilience.ErrUnavailable) {
		return nil, cause
	}
	return nil, fmt.Errorf("snapshot %d: %w: %w", actorID, resilience.ErrUnavailable, cause)
}

// load fetches from the source and stores the result. It never uses the
// caller's context.
func (c *Cache) load(actorID int64) (*Snapshot, error) {
	started := c.clock.Now()
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	user, err := c.source.Fetch(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	profile, err := c.source.FetchSecondaryProfile(ctx, actorID)
	if err != nil {
		return nil, err
	}

	snapshot := newSnapshot(user, profile)
	c.store(actorID, snapshot, started)
	c.logger.DebugContext(ctx, "Snapshot refreshed", "actor_id", actorID, "has_sparring", snapshot.Sparring != nil)
	return snapshot, nil
}

func (c *Cache) lookup(actorID int64) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[actorID]
	return entry, ok
}

// store skips results of fetches that started before an invalidation.
func (c *Cache) store(actorID int64, snapshot *Snapshot, started time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if at, ok := c.invalidated[actorID]; ok {
		if !started.After(at) {
			return
		}
		delete(c.invalidated, actorID)
	}
	c.entries[actorID] = cacheEntry{snapshot: snapshot, storedAt: c.clock.Now()}
}

// Invalidate drops the entry of actorID so the next read fetches again.
func (c *Cache) Invalidate(actorID int64) {
	c.mu.Lock()
	delete(c.entries, actorID)
	c.invalidated[actorID] = c.clock.Now()
	c.mu.Unlock()

	c.group.Forget(strconv.FormatInt(actorID, 10))
}

// Sweep removes entries older than the TTL and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, entry := range c.entries {
		if now.Sub(entry.storedAt) > c.ttl {
			delete(c.entries, id)
			removed++
		}
	}
	for id, at := range c.invalidated {
		if now.Sub(at) > c.fetchTimeout {
			delete(c.invalidated, id)
		}
	}
	return removed
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
