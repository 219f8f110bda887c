package broadcast

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type fakeAudience struct {
	ids []int64
	err error
}

func (f fakeAudience) ActorIDs(context.Context) ([]int64, error) { return f.ids, f.err }

type fakeSender struct {
	failures map[int64]error
	sent     []int64
}

func (f *fakeSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	id, _ := p.ChatID.(int64)
	f.sent = append(f.sent, id)
	if err := f.failures[id]; err != nil {
		return nil, err
	}
	return &models.Message{ID: len(f.sent)}, nil
}

func TestSendCountsOutcomes(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{failures: map[int64]error{
		2: fmt.Errorf("%w, Forbidden: bot was blocked by the user", bot.ErrorForbidden),
		4: errors.New("Bad Request: chat not found"),
	}}
	b := New(fakeAudience{ids: []int64{1, 2, 3, 4, 5}}, Config{PerSecond: 1000, Burst: 10}, nil)

	res, err := b.Send(context.Background(), sender, "news")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Total != 5 || res.Delivered != 3 || res.Blocked != 1 || res.Failed != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(sender.sent) != 5 {
		t.Errorf("attempted %d sends, want 5", len(sender.sent))
	}
}

func TestSendAudienceFailure(t *testing.T) {
	t.Parallel()

	b := New(fakeAudience{err: errors.New("backend unavailable")}, Config{}, nil)
	if _, err := b.Send(context.Background(), &fakeSender{}, "news"); err == nil {
		t.Error("expected error when recipients cannot be listed")
	}
}

func TestSendStopsOnCancel(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	b := New(fakeAudience{ids: []int64{1, 2, 3}}, Config{PerSecond: 1000, Burst: 10}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := b.Send(ctx, sender, "news")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if res.Delivered != 0 || len(sender.sent) != 0 {
		t.Errorf("sent after cancel: %+v", res)
	}
}
