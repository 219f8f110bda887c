package subscription

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type fakeMembers struct {
	member *models.ChatMember
	err    error
	calls  int
	last   *bot.GetChatMemberParams
}

func (f *fakeMembers) GetChatMember(_ context.Context, p *bot.GetChatMemberParams) (*models.ChatMember, error) {
	f.calls++
	f.last = p
	return f.member, f.err
}

func TestIsSubscribed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		member *models.ChatMember
		err    error
		want   bool
	}{
		{name: "member", member: &models.ChatMember{Type: models.ChatMemberTypeMember}, want: true},
		{name: "administrator", member: &models.ChatMember{Type: models.ChatMemberTypeAdministrator}, want: true},
		{name: "creator", member: &models.ChatMember{Type: models.ChatMemberTypeOwner}, want: true},
		{name: "left", member: &models.ChatMember{Type: models.ChatMemberTypeLeft}, want: false},
		{name: "banned", member: &models.ChatMember{Type: models.ChatMemberTypeBanned}, want: false},
		{name: "restricted", member: &models.ChatMember{Type: models.ChatMemberTypeRestricted}, want: false},
		{name: "api error", err: errors.New("Bad Request: user not found"), want: false},
		{name: "nil member", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := &fakeMembers{member: tt.member, err: tt.err}
			c := NewChecker("@armlab", nil)

			if got := c.IsSubscribed(context.Background(), api, 42); got != tt.want {
				t.Errorf("IsSubscribed = %v, want %v", got, tt.want)
			}
			if api.calls != 1 || api.last.UserID != 42 || api.last.ChatID != "@armlab" {
				t.Errorf("unexpected query: calls=%d params=%+v", api.calls, api.last)
			}
		})
	}
}

func TestCheckDisabled(t *testing.T) {
	t.Parallel()

	for _, channel := range []string{"", "  ", "@channel"} {
		api := &fakeMembers{err: errors.New("must not be called")}
		c := NewChecker(channel, nil)

		if c.Enabled() {
			t.Errorf("channel %q: Enabled = true", channel)
		}
		if !c.IsSubscribed(context.Background(), api, 1) {
			t.Errorf("channel %q: disabled check must pass", channel)
		}
		if api.calls != 0 {
			t.Errorf("channel %q: api called %d times", channel, api.calls)
		}
	}
}
