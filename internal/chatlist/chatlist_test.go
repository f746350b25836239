package chatlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soyeahso/matchchat/internal/domain"
	"github.com/soyeahso/matchchat/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	list   []domain.ConversationSummary
	unread int
	err    error
}

func (f *fakeSource) ChatList(context.Context) ([]domain.ConversationSummary, error) {
	return f.list, f.err
}

func (f *fakeSource) UnreadCount(context.Context) (int, error) {
	return f.unread, f.err
}

func TestList(t *testing.T) {
	now := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	src := &fakeSource{list: []domain.ConversationSummary{
		{CounterpartID: "u3", CounterpartName: "Ravi", LastActivityAt: now.Add(-2 * time.Hour)},
		{CounterpartID: "u2", CounterpartName: "Asha", LastActivityAt: now.AddDate(0, 0, -3)},
	}}
	a := New(src, logging.Nop())
	a.now = func() time.Time { return now }

	entries := a.List(context.Background())
	require.Len(t, entries, 2)
	assert.Equal(t, "u3", entries[0].CounterpartID)
	assert.Equal(t, "16:00", entries[0].Activity)
	assert.Equal(t, "07 Mar 2026", entries[1].Activity)
	assert.Empty(t, a.LastError())
}

func TestList_FailsSoft(t *testing.T) {
	src := &fakeSource{err: errors.New("api: HTTP 503")}
	a := New(src, logging.Nop())

	entries := a.List(context.Background())
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.Equal(t, "api: HTTP 503", a.LastError())

	src.err = nil
	a.List(context.Background())
	assert.Empty(t, a.LastError())
}

func TestUnreadTotal(t *testing.T) {
	src := &fakeSource{unread: 4}
	a := New(src, logging.Nop())
	assert.Equal(t, 4, a.UnreadTotal(context.Background()))

	src.err = errors.New("offline")
	assert.Zero(t, a.UnreadTotal(context.Background()))
	assert.Equal(t, "offline", a.LastError())
}

func TestFormatActivity(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, loc)

	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"zero", time.Time{}, ""},
		{"same day", time.Date(2026, 3, 10, 0, 5, 0, 0, loc), "00:05"},
		{"yesterday late", time.Date(2026, 3, 9, 23, 59, 0, 0, loc), "09 Mar 2026"},
		{"utc converted to local day", time.Date(2026, 3, 9, 20, 0, 0, 0, time.UTC), "01:30"},
		{"last year", time.Date(2025, 3, 10, 9, 0, 0, 0, loc), "10 Mar 2025"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatActivity(tt.in, now))
		})
	}
}
