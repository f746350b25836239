// Package chatlist builds the conversation list screen from point-in-time
// snapshots of the service.
package chatlist

import (
	"context"
	"sync"
	"time"

	"github.com/soyeahso/matchchat/internal/domain"
	"github.com/soyeahso/matchchat/internal/logging"
)

// Source is the slice of the REST client the aggregator reads from.
type Source interface {
	ChatList(ctx context.Context) ([]domain.ConversationSummary, error)
	UnreadCount(ctx context.Context) (int, error)
}

// Entry is one row of the list.
type Entry struct {
	domain.ConversationSummary
	Activity string
}

// Aggregator fetches list snapshots. Failures degrade to empty results and
// are kept for display via LastError.
type Aggregator struct {
	src Source
	now func() time.Time
	log *logging.Logger

	mu      sync.Mutex
	lastErr error
}

func New(src Source, log *logging.Logger) *Aggregator {
	return &Aggregator{src: src, now: time.Now, log: log.Sub("chatlist")}
}

// List returns the conversations in server order with formatted activity times.
func (a *Aggregator) List(ctx context.Context) []Entry {
	summaries, err := a.src.ChatList(ctx)
	a.record(err)
	if err != nil {
		a.log.Warn().Err(err).Msg("chat list unavailable")
		return []Entry{}
	}

	now := a.now()
	entries := make([]Entry, 0, len(summaries))
	for _, s := range summaries {
		entries = append(entries, Entry{
			ConversationSummary: s,
			Activity:            FormatActivity(s.LastActivityAt, now),
		})
	}
	return entries
}

// UnreadTotal returns the server's unread count, or 0 when unavailable.
func (a *Aggregator) UnreadTotal(ctx context.Context) int {
	n, err := a.src.UnreadCount(ctx)
	a.record(err)
	if err != nil {
		a.log.Warn().Err(err).Msg("unread count unavailable")
		return 0
	}
	return n
}

// LastError returns the message of the most recent failure, or "" after a
// successful call.
func (a *Aggregator) LastError() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastErr == nil {
		return ""
	}
	return a.lastErr.Error()
}

func (a *Aggregator) record(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastErr = err
}

// FormatActivity renders t relative to now: the time of day when both fall
// on the same local calendar day, the date otherwise.
func FormatActivity(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.In(now.Location())
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	if ty == ny && tm == nm && td == nd {
		return t.Format("15:04")
	}
	return t.Format("02 Jan 2006")
}
