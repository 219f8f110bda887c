package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = rdb.Close() })

	tests := []struct {
		name    string
		cfg     Config
		deps    Deps
		want    string
		wantErr bool
	}{
		{name: "default is memory", cfg: Config{}, want: "*ratelimit.MemoryLimiter"},
		{name: "memory", cfg: Config{Backend: "Memory"}, want: "*ratelimit.MemoryLimiter"},
		{name: "db", cfg: Config{Backend: "db"}, deps: Deps{Store: newFakeEntryStore()}, want: "*ratelimit.StoreLimiter"},
		{name: "db without store", cfg: Config{Backend: "db"}, wantErr: true},
		{name: "redis", cfg: Config{Backend: "redis"}, deps: Deps{Redis: rdb}, want: "*ratelimit.RedisLimiter"},
		{name: "redis without client", cfg: Config{Backend: "redis"}, wantErr: true},
		{name: "unknown", cfg: Config{Backend: "etcd"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.cfg, tt.deps)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %T", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if typeName(got) != tt.want {
				t.Errorf("New() = %s, want %s", typeName(got), tt.want)
			}
		})
	}
}

func typeName(l Limiter) string {
	switch l.(type) {
	case *MemoryLimiter:
		return "*ratelimit.MemoryLimiter"
	case *StoreLimiter:
		return "*ratelimit.StoreLimiter"
	case *RedisLimiter:
		return "*ratelimit.RedisLimiter"
	default:
		return "unknown"
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	if cfg.MaxRequests != 30 || cfg.TimePeriod != 60*time.Second || cfg.Backend != BackendMemory {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	t.Parallel()

	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	l := NewRedisLimiter(Config{MaxRequests: 1, TimePeriod: time.Minute}, rdb, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		if !l.CheckLimit(ctx, 42, t0) {
			t.Fatalf("request %d rejected with redis down, want admitted", i+1)
		}
		l.RecordRequest(ctx, 42, t0)
	}
}

func TestRedisLimiterKey(t *testing.T) {
	t.Parallel()

	l := NewRedisLimiter(Config{}, nil, nil, nil)
	if got := l.key(42); got != "ratelimit:window:42" {
		t.Errorf("key = %q", got)
	}
}
