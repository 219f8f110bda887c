package bot

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/armtemiy/armlab-bot/internal/bot/tasks"
	"github.com/armtemiy/armlab-bot/internal/config"
)

func TestSchedulerRegistersEnabledTasks(t *testing.T) {
	t.Parallel()

	noop := func(context.Context) error { return nil }
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"sweep":           {Enabled: true, Schedule: "*/30 * * * * *"},
		"sql_maintenance": {Enabled: false, Schedule: "0 0 4 * * 0"},
		"unknown":         {Enabled: true, Schedule: "0 * * * * *"},
		"broken":          {Enabled: true, Schedule: "not a cron"},
	}}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"sweep":           noop,
		"sql_maintenance": noop,
		"broken":          noop,
	}

	s, err := NewScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg, taskMap, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	if got := s.Jobs(); !slices.Equal(got, []string{"sweep"}) {
		t.Errorf("jobs = %v, want [sweep]", got)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
}
