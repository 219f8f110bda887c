package database

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
)

func newTestStore(t *testing.T) (Store, *sqlx.DB) {
	t.Helper()

	db, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })
	return NewStore(db, nil), db
}

func TestParseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		driver  string
		dsn     string
		wantErr bool
	}{
		{name: "bare path", input: "bot.db", driver: DriverSQLite, dsn: "bot.db"},
		{name: "sqlite scheme", input: "sqlite://data/bot.db", driver: DriverSQLite, dsn: "data/bot.db"},
		{name: "sqlite opaque", input: "sqlite:bot.db", driver: DriverSQLite, dsn: "bot.db"},
		{name: "postgres", input: "postgres://u:p@db:5432/bot", driver: DriverPostgres, dsn: "postgres://u:p@db:5432/bot"},
		{name: "postgresql", input: "postgresql://db/bot", driver: DriverPostgres, dsn: "postgresql://db/bot"},
		{name: "unknown scheme", input: "mysql://db/bot", wantErr: true},
		{name: "empty", input: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Driver != tt.driver || got.DSN != tt.dsn {
				t.Errorf("ParseURL(%q) = %+v, want driver %q dsn %q", tt.input, got, tt.driver, tt.dsn)
			}
		})
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	got := RedactURL("postgres://bot:secret@db:5432/bot")
	if got != "postgres://bot@db:5432/bot" {
		t.Errorf("RedactURL = %q", got)
	}
	if got := RedactURL("bot.db"); got != "bot.db" {
		t.Errorf("RedactURL(bot.db) = %q", got)
	}
}

func TestGetOrCreateUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	user, created, err := store.GetOrCreateUser(ctx, 77, "alice", "Alice")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if !created {
		t.Error("expected user to be created")
	}
	if user.TelegramID != 77 || user.Username.String != "alice" || user.FirstName.String != "Alice" {
		t.Errorf("unexpected user: %+v", user)
	}
	if user.SubscriptionStatus {
		t.Error("new user must not be subscribed")
	}
	if user.CreatedAt.IsZero() {
		t.Error("created_at must be set")
	}

	again, created, err := store.GetOrCreateUser(ctx, 77, "alice2", "Alice")
	if err != nil {
		t.Fatalf("GetOrCreateUser again: %v", err)
	}
	if created {
		t.Error("second call must not create")
	}
	if again.ID != user.ID || again.TelegramID != 77 {
		t.Errorf("expected same record, got id %d want %d", again.ID, user.ID)
	}
	if again.Username.String != "alice2" {
		t.Errorf("username not updated: %q", again.Username.String)
	}

	stored, err := store.GetUser(ctx, 77)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if stored.Username.String != "alice2" {
		t.Errorf("update not persisted: %q", stored.Username.String)
	}
	if !stored.CreatedAt.Equal(user.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", user.CreatedAt, stored.CreatedAt)
	}
}

func TestGetOrCreateUserClearsDisplayFields(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, _, err := store.GetOrCreateUser(ctx, 5, "nick", "Nick"); err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	user, _, err := store.GetOrCreateUser(ctx, 5, "", "Nick")
	if err != nil {
		t.Fatalf("GetOrCreateUser: %v", err)
	}
	if user.Username.Valid {
		t.Errorf("expected NULL username, got %q", user.Username.String)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	user, err := store.GetUser(context.Background(), 12345)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user, got %+v", user)
	}
}

func TestSubscriptionAndCounts(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for _, id := range []int64{3, 1, 2} {
		if _, _, err := store.GetOrCreateUser(ctx, id, "", ""); err != nil {
			t.Fatalf("GetOrCreateUser(%d): %v", id, err)
		}
	}
	if err := store.SetSubscriptionStatus(ctx, 1, true); err != nil {
		t.Fatalf("SetSubscriptionStatus: %v", err)
	}

	user, err := store.GetUser(ctx, 1)
	if err != nil || user == nil {
		t.Fatalf("GetUser: %v %v", user, err)
	}
	if !user.SubscriptionStatus {
		t.Error("expected subscription status to be stored")
	}

	count, err := store.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if count != 3 {
		t.Errorf("CountUsers = %d, want 3", count)
	}

	ids, err := store.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs: %v", err)
	}
	want := []int64{3, 1, 2}
	if len(ids) != len(want) {
		t.Fatalf("ListUserIDs = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ListUserIDs[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestSparringProfiles(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	db.MustExec(`INSERT INTO sparring_profiles (telegram_user_id, style, weight_kg, experience_years, is_active)
		VALUES ('99', 'both', 70, 3.5, 1), ('100', 'inside', NULL, NULL, 0)`)

	profile, err := store.GetSparringProfile(ctx, 99)
	if err != nil {
		t.Fatalf("GetSparringProfile: %v", err)
	}
	if profile == nil {
		t.Fatal("expected profile")
	}
	if profile.Style != "both" || profile.WeightKg.Float64 != 70 || profile.ExperienceYears.Float64 != 3.5 || !profile.IsActive {
		t.Errorf("unexpected profile: %+v", profile)
	}

	missing, err := store.GetSparringProfile(ctx, 101)
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing profile, got %v, %v", missing, err)
	}

	counts, err := store.CountSparringProfiles(ctx)
	if err != nil {
		t.Fatalf("CountSparringProfiles: %v", err)
	}
	if counts.Total != 2 || counts.Active != 1 {
		t.Errorf("counts = %+v, want total 2 active 1", counts)
	}
}

func TestRateLimitEntries(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, offset := range []time.Duration{0, 10 * time.Second, 59 * time.Second, 61 * time.Second} {
		if err := store.InsertRateLimitEntry(ctx, 42, base.Add(offset)); err != nil {
			t.Fatalf("InsertRateLimitEntry: %v", err)
		}
	}
	if err := store.InsertRateLimitEntry(ctx, 43, base); err != nil {
		t.Fatalf("InsertRateLimitEntry: %v", err)
	}

	count, err := store.CountRateLimitEntries(ctx, 42, base.Add(10*time.Second))
	if err != nil {
		t.Fatalf("CountRateLimitEntries: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3 (cutoff inclusive)", count)
	}

	deleted, err := store.DeleteRateLimitEntriesBefore(ctx, base.Add(time.Second))
	if err != nil {
		t.Fatalf("DeleteRateLimitEntriesBefore: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	count, err = store.CountRateLimitEntries(ctx, 43, base)
	if err != nil {
		t.Fatalf("CountRateLimitEntries: %v", err)
	}
	if count != 0 {
		t.Errorf("count for 43 = %d, want 0 after prune", count)
	}
}

func TestRunSQLMaintenance(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.RunSQLMaintenance(context.Background()); err != nil {
		t.Fatalf("RunSQLMaintenance: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.RunSQLMaintenance(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
}
