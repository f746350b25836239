// Package chat holds one conversation's timeline and reconciles optimistic
// sends, server confirmations, live messages and history loads into it.
package chat

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/matchchat/internal/domain"
)

var (
	ErrEmptyBody    = errors.New("chat: message body is empty")
	ErrDisconnected = errors.New("chat: not connected")
	ErrClosed       = errors.New("chat: session closed")
	ErrStale        = errors.New("chat: response superseded")
)

// Outcome says what ApplyRemote did with an inbound message.
type Outcome int

const (
	// Discarded is a self-echo of one of our own sends.
	Discarded Outcome = iota
	// Ignored belongs to another conversation on the shared socket.
	Ignored
	// Duplicate was already in the timeline.
	Duplicate
	// Rejected carries no durable id.
	Rejected
	// Inserted was appended as confirmed.
	Inserted
)

func (o Outcome) String() string {
	switch o {
	case Discarded:
		return "discarded"
	case Ignored:
		return "ignored"
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	default:
		return "inserted"
	}
}

// Store is the ordered message timeline of one conversation. It is
// append-only from the reader's point of view: entries change status and
// gain a durable id in place but keep their position.
type Store struct {
	localUserID   string
	counterpartID string
	timeout       time.Duration
	now           func() time.Time

	mu   sync.Mutex
	msgs []domain.Message
	// live holds identities that arrived outside a history load.
	live map[string]bool
}

// NewStore creates an empty timeline. Pending sends older than
// pendingTimeout are failed by ExpirePending; zero disables that.
func NewStore(localUserID, counterpartID string, pendingTimeout time.Duration) *Store {
	return &Store{
		localUserID:   localUserID,
		counterpartID: counterpartID,
		timeout:       pendingTimeout,
		now:           time.Now,
		live:          make(map[string]bool),
	}
}

// LoadHistory replaces the timeline with history, oldest first, then
// re-appends live entries the history does not already contain.
func (s *Store) LoadHistory(history []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]domain.Message, 0, len(history)+len(s.live))
	ids := make(map[string]bool, len(history))
	tokens := make(map[string]bool)
	for _, m := range history {
		if ids[m.Identity()] {
			continue
		}
		m.Status = domain.StatusConfirmed
		ids[m.Identity()] = true
		if m.TempID != "" {
			tokens[m.TempID] = true
		}
		next = append(next, m)
	}

	live := make(map[string]bool)
	for _, m := range s.msgs {
		if !s.live[m.Identity()] || ids[m.Identity()] {
			continue
		}
		if m.TempID != "" && tokens[m.TempID] {
			continue
		}
		live[m.Identity()] = true
		next = append(next, m)
	}

	s.msgs = next
	s.live = live
}

// AddPending appends an optimistic send with a fresh correlation token.
func (s *Store) AddPending(body string) (domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.Message{}, ErrEmptyBody
	}

	m := domain.Message{
		TempID:     uuid.New().String(),
		SenderID:   s.localUserID,
		ReceiverID: s.counterpartID,
		Body:       body,
		Kind:       domain.KindText,
		CreatedAt:  s.now(),
		Status:     domain.StatusPending,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	s.live[m.TempID] = true
	return m, nil
}

// ApplyRemote folds in a receive_message event. Messages sent by the local
// user are always dropped since the optimistic entry already shows them.
func (s *Store) ApplyRemote(m domain.Message) Outcome {
	if m.SenderID == s.localUserID {
		return Discarded
	}
	if m.SenderID != s.counterpartID {
		return Ignored
	}
	if m.ID == "" {
		return Rejected
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(m.ID) >= 0 {
		return Duplicate
	}

	m.Status = domain.StatusConfirmed
	if m.Kind == "" {
		m.Kind = domain.KindText
	}
	s.msgs = append(s.msgs, m)
	s.live[m.Identity()] = true
	return Inserted
}

// Confirm applies a message_sent event to the pending (or failed) entry
// carrying its token. It never inserts: unknown tokens are ignored. When
// the durable id is already present because history got there first, the
// optimistic copy is folded into it. A confirmation without a durable id
// leaves the entry pending.
func (s *Store) Confirm(evt domain.MessageSentEvent) (domain.Message, bool) {
	if evt.TempID == "" || evt.ID == "" {
		return domain.Message{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, m := range s.msgs {
		if m.TempID == evt.TempID && m.Status != domain.StatusConfirmed {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Message{}, false
	}

	if existing := s.indexLocked(evt.ID); existing >= 0 && existing != idx {
		delete(s.live, s.msgs[idx].Identity())
		s.msgs = append(s.msgs[:idx], s.msgs[idx+1:]...)
		return s.msgs[s.indexLocked(evt.ID)], true
	}

	m := &s.msgs[idx]
	delete(s.live, m.Identity())
	m.ID = evt.ID
	m.TempID = ""
	if !evt.CreatedAt.IsZero() {
		m.CreatedAt = evt.CreatedAt
	}
	m.Status = domain.StatusConfirmed
	s.live[m.Identity()] = true
	return *m, true
}

// ExpirePending fails pending sends older than the timeout and returns them.
func (s *Store) ExpirePending(now time.Time) []domain.Message {
	if s.timeout <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []domain.Message
	for i := range s.msgs {
		m := &s.msgs[i]
		if m.Status == domain.StatusPending && now.Sub(m.CreatedAt) >= s.timeout {
			m.Status = domain.StatusFailed
			failed = append(failed, *m)
		}
	}
	return failed
}

// Messages returns a copy of the timeline.
func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// Find looks an entry up by durable id or correlation token.
func (s *Store) Find(identity string) (domain.Message, bool) {
	if identity == "" {
		return domain.Message{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.msgs {
		if m.ID == identity || m.TempID == identity {
			return m, true
		}
	}
	return domain.Message{}, false
}

func (s *Store) indexLocked(id string) int {
	for i, m := range s.msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}
