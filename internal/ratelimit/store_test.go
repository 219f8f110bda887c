package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/armtemiy/armlab-bot/internal/database"
	"github.com/armtemiy/armlab-bot/internal/resilience"
)

type fakeEntryStore struct {
	mu       sync.Mutex
	entries  map[int64][]time.Time
	countErr error
	insErr   error
	counts   int
	inserts  int
}

func newFakeEntryStore() *fakeEntryStore {
	return &fakeEntryStore{entries: make(map[int64][]time.Time)}
}

func (f *fakeEntryStore) CountRateLimitEntries(_ context.Context, id int64, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts++
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, at := range f.entries[id] {
		if !at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeEntryStore) InsertRateLimitEntry(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insErr != nil {
		return f.insErr
	}
	f.entries[id] = append(f.entries[id], at)
	return nil
}

func TestStoreLimiterWindow(t *testing.T) {
	t.Parallel()

	store := newFakeEntryStore()
	l := NewStoreLimiter(Config{MaxRequests: 30, TimePeriod: time.Minute}, store, nil, nil)

	for i := 0; i < 30; i++ {
		if !admit(l, 42, t0.Add(time.Duration(i)*300*time.Millisecond)) {
			t.Fatalf("message %d rejected", i+1)
		}
	}
	if admit(l, 42, t0.Add(11*time.Second)) {
		t.Error("message 31 admitted, want rejected")
	}
	if !admit(l, 42, t0.Add(61*time.Second)) {
		t.Error("message at second 61 rejected, want admitted")
	}
	if store.inserts != 31 {
		t.Errorf("inserts = %d, want 31", store.inserts)
	}
}

func TestStoreLimiterFailsOpen(t *testing.T) {
	t.Parallel()

	store := newFakeEntryStore()
	store.countErr = errors.New("connection reset")
	store.insErr = errors.New("connection reset")
	l := NewStoreLimiter(Config{MaxRequests: 1, TimePeriod: time.Minute}, store, nil, nil)

	for i := 0; i < 5; i++ {
		if !admit(l, 1, t0) {
			t.Fatalf("request %d rejected while store is down, want admitted", i+1)
		}
	}
}

func TestStoreLimiterFailsOpenWithOpenCircuit(t *testing.T) {
	t.Parallel()

	store := newFakeEntryStore()
	store.countErr = errors.New("no route to host")
	guard := resilience.NewGuard(resilience.Config{Name: "db", MaxFailures: 1, ResetTimeout: time.Hour}, nil)
	l := NewStoreLimiter(Config{MaxRequests: 1, TimePeriod: time.Minute}, store, guard, nil)

	for i := 0; i < 3; i++ {
		if !l.CheckLimit(context.Background(), 1, t0) {
			t.Fatal("expected fail-open admission")
		}
	}
	if store.counts != 1 {
		t.Errorf("store queried %d times, want 1 once the circuit opened", store.counts)
	}
}

func TestStoreLimiterWithSQLite(t *testing.T) {
	db, err := database.NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	l := NewStoreLimiter(Config{MaxRequests: 3, TimePeriod: time.Minute}, database.NewStore(db, nil), nil, nil)
	for i := 0; i < 3; i++ {
		if !admit(l, 5, t0.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if admit(l, 5, t0.Add(10*time.Second)) {
		t.Error("fourth request admitted")
	}
	if !admit(l, 5, t0.Add(61*time.Second)) {
		t.Error("request after window rejected")
	}
}
