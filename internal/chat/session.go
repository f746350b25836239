package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/matchchat/internal/domain"
	"github.com/soyeahso/matchchat/internal/hooks"
	"github.com/soyeahso/matchchat/internal/logging"
	"github.com/soyeahso/matchchat/internal/presence"
)

// Transport is the shared realtime connection, normally a *socket.Manager.
type Transport interface {
	Emit(event string, payload any) error
	Connected() bool
	On(event, name string, h hooks.Handler)
	Off(event, name string)
}

// HistoryLoader fetches conversation history, normally an *api.Client.
type HistoryLoader interface {
	History(ctx context.Context, counterpartID string, page, limit int) (*domain.HistoryPage, error)
}

// NoticeKind classifies a Notice.
type NoticeKind int

const (
	// NoticeMessages means the timeline changed.
	NoticeMessages NoticeKind = iota
	// NoticePresence means the counterpart's typing or online state changed.
	NoticePresence
	// NoticeCredit reports a credit deducted for opening the conversation.
	NoticeCredit
	// NoticeError carries a user-facing error string.
	NoticeError
)

// Notice tells the UI something changed. Text is set for credit and error
// notices. Message is set when a single timeline entry was added or changed;
// it is nil when the whole timeline was replaced.
type Notice struct {
	Kind    NoticeKind
	Text    string
	Remote  presence.RemoteState
	Message *domain.Message
}

// Options configures a Session.
type Options struct {
	LocalUserID    string
	CounterpartID  string
	PageSize       int
	TypingIdle     time.Duration
	PendingTimeout time.Duration
	OnNotice       func(Notice)
}

const creditNotice = "A credit was deducted to start this conversation."

// Session is one open conversation on the shared connection. It is torn
// down with Close; anything arriving afterwards is dropped.
type Session struct {
	opts      Options
	transport Transport
	history   HistoryLoader
	store     *Store
	presence  *presence.Signaler
	name      string
	log       *logging.Logger

	mu       sync.Mutex
	alive    bool
	gen      uint64
	hasMore  bool
	credited map[string]bool
	expiry   map[string]*time.Timer
}

// NewSession opens a conversation and subscribes to its socket events.
func NewSession(t Transport, h HistoryLoader, opts Options, log *logging.Logger) *Session {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	base := log
	log = log.Sub("chat").With("counterpart", opts.CounterpartID)

	s := &Session{
		opts:      opts,
		transport: t,
		history:   h,
		store:     NewStore(opts.LocalUserID, opts.CounterpartID, opts.PendingTimeout),
		presence:  presence.New(t, opts.CounterpartID, opts.TypingIdle, base),
		name:      "chat:" + opts.CounterpartID + ":" + uuid.NewString()[:8],
		log:       log,
		alive:     true,
		credited:  make(map[string]bool),
		expiry:    make(map[string]*time.Timer),
	}
	s.presence.OnChange(func(r presence.RemoteState) {
		s.notify(Notice{Kind: NoticePresence, Remote: r})
	})

	t.On(domain.EventReceiveMessage, s.name, s.onReceive)
	t.On(domain.EventMessageSent, s.name, s.onSent)
	t.On(domain.EventUserTyping, s.name, s.onTyping)
	t.On(domain.EventUserOnline, s.name, s.onOnline)
	t.On(domain.EventUserOffline, s.name, s.onOffline)
	return s
}

// CounterpartID returns who this conversation is with.
func (s *Session) CounterpartID() string { return s.opts.CounterpartID }

// Messages returns the current timeline.
func (s *Session) Messages() []domain.Message { return s.store.Messages() }

// Remote returns the counterpart's typing and online state.
func (s *Session) Remote() presence.RemoteState { return s.presence.Remote() }

// HasMore reports whether the last history load said older pages exist.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Send stops the typing signal, inserts body optimistically and emits it.
// Empty bodies and a disconnected transport are rejected before anything
// is sent.
func (s *Session) Send(body string) (domain.Message, error) {
	if !s.isAlive() {
		return domain.Message{}, ErrClosed
	}
	if strings.TrimSpace(body) == "" {
		return domain.Message{}, ErrEmptyBody
	}
	if !s.transport.Connected() {
		return domain.Message{}, ErrDisconnected
	}

	s.presence.Stop()

	msg, err := s.store.AddPending(body)
	if err != nil {
		return domain.Message{}, err
	}
	s.armExpiry(msg.TempID)
	s.notify(Notice{Kind: NoticeMessages, Message: &msg})

	err = s.transport.Emit(domain.EventSendMessage, domain.SendMessagePayload{
		ReceiverID:  s.opts.CounterpartID,
		Message:     msg.Body,
		MessageType: domain.KindText,
		TempID:      msg.TempID,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("tempId", msg.TempID).Msg("send_message not emitted")
	}
	return msg, nil
}

// Keystroke forwards input activity to the typing debouncer.
func (s *Session) Keystroke(content string) {
	if !s.isAlive() {
		return
	}
	s.presence.Keystroke(content)
}

// LoadHistory fetches a page and replaces the timeline with it. A response
// that arrives after a newer load started, or after Close, is dropped with
// ErrStale. Failures are also reported as a NoticeError.
func (s *Session) LoadHistory(ctx context.Context, page, limit int) error {
	if limit <= 0 {
		limit = s.opts.PageSize
	}

	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return ErrClosed
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	res, err := s.history.History(ctx, s.opts.CounterpartID, page, limit)

	s.mu.Lock()
	if !s.alive || gen != s.gen {
		s.mu.Unlock()
		s.log.Debug().Uint64("generation", gen).Msg("stale history response dropped")
		return ErrStale
	}
	if err != nil {
		s.mu.Unlock()
		s.log.Warn().Err(err).Msg("history load failed")
		s.notify(Notice{Kind: NoticeError, Text: "Could not load messages: " + err.Error()})
		return err
	}
	s.store.LoadHistory(res.Messages)
	s.hasMore = res.HasMore
	s.mu.Unlock()

	s.log.Debug().Int("count", len(res.Messages)).Bool("hasMore", res.HasMore).Msg("history loaded")
	s.notify(Notice{Kind: NoticeMessages})
	return nil
}

// Close unsubscribes from the socket and stops all timers. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.alive {
		s.mu.Unlock()
		return
	}
	s.alive = false
	for token, t := range s.expiry {
		t.Stop()
		delete(s.expiry, token)
	}
	s.mu.Unlock()

	for _, event := range []string{
		domain.EventReceiveMessage,
		domain.EventMessageSent,
		domain.EventUserTyping,
		domain.EventUserOnline,
		domain.EventUserOffline,
	} {
		s.transport.Off(event, s.name)
	}
	s.presence.Close()
	s.log.Debug().Msg("session closed")
}

func (s *Session) onReceive(_ context.Context, p hooks.Payload) error {
	var msg domain.Message
	if err := p.Decode(&msg); err != nil {
		return err
	}
	if !s.isAlive() {
		return nil
	}

	outcome := s.store.ApplyRemote(msg)
	if outcome != Inserted {
		s.log.Debug().Str("id", msg.ID).Stringer("outcome", outcome).Msg("inbound message not inserted")
		return nil
	}

	if err := s.transport.Emit(domain.EventMarkAsRead, domain.MarkAsReadPayload{SenderID: msg.SenderID}); err != nil {
		s.log.Debug().Err(err).Msg("mark_as_read not emitted")
	}
	if msg.Kind == "" {
		msg.Kind = domain.KindText
	}
	msg.Status = domain.StatusConfirmed
	s.notify(Notice{Kind: NoticeMessages, Message: &msg})
	return nil
}

func (s *Session) onSent(_ context.Context, p hooks.Payload) error {
	var evt domain.MessageSentEvent
	if err := p.Decode(&evt); err != nil {
		return err
	}
	if !s.isAlive() {
		return nil
	}

	confirmed, ok := s.store.Confirm(evt)
	if !ok {
		s.log.Debug().Str("tempId", evt.TempID).Msg("confirmation ignored")
		return nil
	}

	s.mu.Lock()
	if t, ok := s.expiry[evt.TempID]; ok {
		t.Stop()
		delete(s.expiry, evt.TempID)
	}
	credit := evt.CreditDeducted && !s.credited[evt.TempID]
	if credit {
		s.credited[evt.TempID] = true
	}
	s.mu.Unlock()

	s.notify(Notice{Kind: NoticeMessages, Message: &confirmed})
	if credit {
		s.notify(Notice{Kind: NoticeCredit, Text: creditNotice})
	}
	return nil
}

func (s *Session) onTyping(_ context.Context, p hooks.Payload) error {
	var evt domain.UserTypingEvent
	if err := p.Decode(&evt); err != nil {
		return err
	}
	s.presence.ApplyTyping(evt)
	return nil
}

func (s *Session) onOnline(_ context.Context, p hooks.Payload) error {
	var evt domain.PresenceEvent
	if err := p.Decode(&evt); err != nil {
		return err
	}
	s.presence.ApplyOnline(evt)
	return nil
}

func (s *Session) onOffline(_ context.Context, p hooks.Payload) error {
	var evt domain.PresenceEvent
	if err := p.Decode(&evt); err != nil {
		return err
	}
	s.presence.ApplyOffline(evt)
	return nil
}

func (s *Session) armExpiry(token string) {
	if s.opts.PendingTimeout <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive {
		return
	}
	s.expiry[token] = time.AfterFunc(s.opts.PendingTimeout, func() {
		s.mu.Lock()
		delete(s.expiry, token)
		alive := s.alive
		s.mu.Unlock()
		if !alive {
			return
		}

		for _, m := range s.store.ExpirePending(time.Now()) {
			s.log.Warn().Str("tempId", m.TempID).Msg("send not confirmed in time")
			s.notify(Notice{Kind: NoticeMessages, Message: &m})
		}
	})
}

func (s *Session) isAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *Session) notify(n Notice) {
	if s.opts.OnNotice == nil || !s.isAlive() {
		return
	}
	s.opts.OnNotice(n)
}
