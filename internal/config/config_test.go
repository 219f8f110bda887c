package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func missingConfig(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yaml")
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := LoadConfig(missingConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.RateLimit.Backend != "memory" || cfg.RateLimit.MaxRequests != 30 || cfg.RateLimit.TimePeriod != time.Minute {
		t.Errorf("rate limit defaults = %+v", cfg.RateLimit)
	}
	if cfg.Cache.TTL != 5*time.Minute || cfg.Cache.SnapshotTimeout != 2*time.Second {
		t.Errorf("cache defaults = %+v", cfg.Cache)
	}
	if cfg.Database.URL != "sqlite://bot.db" {
		t.Errorf("database url = %q", cfg.Database.URL)
	}
	if cfg.Telegram.Messages.RateLimited != "Слишком много запросов. Подожди немного." {
		t.Errorf("rate limited message = %q", cfg.Telegram.Messages.RateLimited)
	}
	if task, ok := cfg.Scheduler.Tasks[TaskSweep]; !ok || !task.Enabled || task.Schedule == "" {
		t.Errorf("sweep task = %+v", task)
	}
	if cfg.Logger.Level != "info" || cfg.Logger.JSON {
		t.Errorf("logger defaults = %+v", cfg.Logger)
	}
}

func TestLoadConfigRequiresToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")

	_, err := LoadConfig(missingConfig(t))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "111, 222,abc")
	t.Setenv("PRIVILEGED_IDS", "222 333")
	t.Setenv("RATE_LIMIT_BACKEND", "DB")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "10")
	t.Setenv("RATE_LIMIT_TIME_PERIOD", "90")
	t.Setenv("CACHE_TTL", "2m")
	t.Setenv("DATABASE_URL", "postgres://bot:secret@db:5432/bot")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("SCHEDULE_SWEEP", "*/15 * * * * *")

	cfg, err := LoadConfig(missingConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !slices.Equal(cfg.Telegram.AdminIDs, []int64{111, 222}) {
		t.Errorf("AdminIDs = %v", cfg.Telegram.AdminIDs)
	}
	if !slices.Equal(cfg.Privileged(), []int64{111, 222, 333}) {
		t.Errorf("Privileged = %v", cfg.Privileged())
	}
	if !cfg.IsAdmin(222) || cfg.IsAdmin(333) {
		t.Error("IsAdmin mismatch")
	}
	if cfg.RateLimit.Backend != "db" || cfg.RateLimit.MaxRequests != 10 || cfg.RateLimit.TimePeriod != 90*time.Second {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
	if cfg.Cache.TTL != 2*time.Minute {
		t.Errorf("cache ttl = %v", cfg.Cache.TTL)
	}
	if cfg.Database.URL != "postgres://bot:secret@db:5432/bot" {
		t.Errorf("database url = %q", cfg.Database.URL)
	}
	if cfg.Logger.Level != "debug" || !cfg.Logger.JSON {
		t.Errorf("logger = %+v", cfg.Logger)
	}
	if got := cfg.Scheduler.Tasks[TaskSweep].Schedule; got != "*/15 * * * * *" {
		t.Errorf("sweep schedule = %q", got)
	}
}

func TestLoadConfigAdminFallback(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_ID", "777")

	cfg, err := LoadConfig(missingConfig(t))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !slices.Equal(cfg.Telegram.AdminIDs, []int64{777}) {
		t.Errorf("AdminIDs = %v, want [777]", cfg.Telegram.AdminIDs)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("RATE_LIMIT_MAX_REQUESTS", "12")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
telegram:
  token: "from-file"
  admin_ids: [5, 6]
rate_limit:
  max_requests: 50
  time_period: 30
scheduler:
  tasks:
    sql_maintenance:
      enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Telegram.Token != "from-file" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if !slices.Equal(cfg.Telegram.AdminIDs, []int64{5, 6}) {
		t.Errorf("AdminIDs = %v", cfg.Telegram.AdminIDs)
	}
	if cfg.RateLimit.MaxRequests != 12 {
		t.Errorf("environment must override file, max_requests = %d", cfg.RateLimit.MaxRequests)
	}
	if cfg.RateLimit.TimePeriod != 30*time.Second {
		t.Errorf("time_period = %v", cfg.RateLimit.TimePeriod)
	}
	if cfg.Scheduler.Tasks[TaskSQLMaintenance].Enabled {
		t.Error("sql_maintenance should be disabled by file")
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown backend", env: map[string]string{"RATE_LIMIT_BACKEND": "etcd"}},
		{name: "zero max requests", env: map[string]string{"RATE_LIMIT_MAX_REQUESTS": "0"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BOT_TOKEN", "123:abc")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(missingConfig(t)); !errors.Is(err, ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestParseSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      any
		want    time.Duration
		wantErr bool
	}{
		{in: "60", want: time.Minute},
		{in: "1.5", want: 1500 * time.Millisecond},
		{in: "2h", want: 2 * time.Hour},
		{in: 45, want: 45 * time.Second},
		{in: 3 * time.Second, want: 3 * time.Second},
		{in: "soon", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseSeconds(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSeconds(%v) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseSeconds(%v) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestParseIDs(t *testing.T) {
	t.Parallel()

	got := ParseIDs(" 1,2 ,, x, -4; 5\n6 ")
	if !slices.Equal(got, []int64{1, 2, 5, 6}) {
		t.Errorf("ParseIDs = %v", got)
	}
	if ids := ParseIDs(""); len(ids) != 0 {
		t.Errorf("ParseIDs(\"\") = %v", ids)
	}
}
