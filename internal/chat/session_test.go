package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/matchchat/internal/domain"
	"github.com/soyeahso/matchchat/internal/hooks"
	"github.com/soyeahso/matchchat/internal/logging"
	"github.com/soyeahso/matchchat/internal/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emission struct {
	event   string
	payload any
}

// fakeTransport dispatches inbound events through a real hooks.Manager and
// records everything emitted.
type fakeTransport struct {
	hooks *hooks.Manager

	mu        sync.Mutex
	connected bool
	emitted   []emission
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{hooks: hooks.NewManager(logging.Nop()), connected: true}
}

func (f *fakeTransport) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, emission{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) setConnected(up bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = up
}

func (f *fakeTransport) On(event, name string, h hooks.Handler) { f.hooks.On(event, name, h) }
func (f *fakeTransport) Off(event, name string)                 { f.hooks.Off(event, name) }

func (f *fakeTransport) deliver(t *testing.T, event string, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	f.hooks.Emit(context.Background(), event, raw)
}

func (f *fakeTransport) sent(event string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, e := range f.emitted {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

func (f *fakeTransport) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.emitted))
	for i, e := range f.emitted {
		out[i] = e.event
	}
	return out
}

type historyFunc func(ctx context.Context, counterpartID string, page, limit int) (*domain.HistoryPage, error)

func (f historyFunc) History(ctx context.Context, counterpartID string, page, limit int) (*domain.HistoryPage, error) {
	return f(ctx, counterpartID, page, limit)
}

func staticHistory(msgs ...domain.Message) historyFunc {
	return func(context.Context, string, int, int) (*domain.HistoryPage, error) {
		return &domain.HistoryPage{Messages: msgs}, nil
	}
}

type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *noticeLog) add(x Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, x)
}

func (n *noticeLog) of(kind NoticeKind) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notice
	for _, x := range n.notices {
		if x.Kind == kind {
			out = append(out, x)
		}
	}
	return out
}

func newTestSession(t *testing.T, tr *fakeTransport, h HistoryLoader, mutate ...func(*Options)) (*Session, *noticeLog) {
	t.Helper()
	notices := &noticeLog{}
	opts := Options{
		LocalUserID:   me,
		CounterpartID: them,
		PageSize:      20,
		TypingIdle:    time.Hour,
		OnNotice:      notices.add,
	}
	for _, m := range mutate {
		m(&opts)
	}
	s := NewSession(tr, h, opts, logging.Nop())
	t.Cleanup(s.Close)
	return s, notices
}

func TestSession_SendStopsTypingThenEmits(t *testing.T) {
	tr := newFakeTransport()
	s, notices := newTestSession(t, tr, staticHistory())

	s.Keystroke("hel")
	msg, err := s.Send("hello")
	require.NoError(t, err)

	assert.Equal(t, []string{domain.EventTyping, domain.EventTyping, domain.EventSendMessage}, tr.events())
	typing := tr.sent(domain.EventTyping)
	assert.Equal(t, domain.TypingPayload{ReceiverID: them, IsTyping: false}, typing[1])
	assert.Equal(t, domain.SendMessagePayload{
		ReceiverID:  them,
		Message:     "hello",
		MessageType: domain.KindText,
		TempID:      msg.TempID,
	}, tr.sent(domain.EventSendMessage)[0])

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsPending())
	got := notices.of(NoticeMessages)
	require.NotEmpty(t, got)
	require.NotNil(t, got[0].Message)
	assert.Equal(t, msg.TempID, got[0].Message.TempID)
}

func TestSession_SendRejections(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSession(t, tr, staticHistory())

	_, err := s.Send("   ")
	assert.ErrorIs(t, err, ErrEmptyBody)

	tr.setConnected(false)
	_, err = s.Send("hello")
	assert.ErrorIs(t, err, ErrDisconnected)

	assert.Empty(t, tr.events())
	assert.Empty(t, s.Messages())
}

func TestSession_SendAndConfirmYieldsOneMessage(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSession(t, tr, staticHistory())

	msg, err := s.Send("hello")
	require.NoError(t, err)

	tr.deliver(t, domain.EventMessageSent, domain.MessageSentEvent{
		Message: domain.Message{ID: "X", TempID: msg.TempID, SenderID: me, ReceiverID: them, Body: "hello"},
	})
	tr.deliver(t, domain.EventReceiveMessage, domain.Message{ID: "X", SenderID: me, ReceiverID: them, Body: "hello"})

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "X", msgs[0].ID)
	assert.True(t, msgs[0].IsConfirmed())
}

func TestSession_ReceiveMarksAsRead(t *testing.T) {
	tr := newFakeTransport()
	s, notices := newTestSession(t, tr, staticHistory())

	tr.deliver(t, domain.EventReceiveMessage, confirmed("r1", them, "hi"))
	tr.deliver(t, domain.EventReceiveMessage, confirmed("r1", them, "hi"))
	tr.deliver(t, domain.EventReceiveMessage, confirmed("r2", "u9", "other chat"))

	assert.Equal(t, []string{"r1"}, identities(s.Messages()))
	assert.Equal(t, []any{domain.MarkAsReadPayload{SenderID: them}}, tr.sent(domain.EventMarkAsRead))
	got := notices.of(NoticeMessages)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Message)
	assert.Equal(t, "r1", got[0].Message.ID)
}

func TestSession_CreditNoticeOnce(t *testing.T) {
	tr := newFakeTransport()
	s, notices := newTestSession(t, tr, staticHistory())

	msg, err := s.Send("hello")
	require.NoError(t, err)

	evt := domain.MessageSentEvent{
		Message:        domain.Message{ID: "X", TempID: msg.TempID, SenderID: me, ReceiverID: them},
		CreditDeducted: true,
	}
	tr.deliver(t, domain.EventMessageSent, evt)
	tr.deliver(t, domain.EventMessageSent, evt)

	credit := notices.of(NoticeCredit)
	require.Len(t, credit, 1)
	assert.Equal(t, creditNotice, credit[0].Text)
}

func TestSession_OrphanConfirmation(t *testing.T) {
	tr := newFakeTransport()
	s, notices := newTestSession(t, tr, staticHistory())

	tr.deliver(t, domain.EventMessageSent, domain.MessageSentEvent{
		Message:        domain.Message{ID: "X", TempID: "never-sent", SenderID: me},
		CreditDeducted: true,
	})
	assert.Empty(t, s.Messages())
	assert.Empty(t, notices.of(NoticeCredit))
}

func TestSession_ConfirmationWithoutIDIsIgnored(t *testing.T) {
	tr := newFakeTransport()
	s, notices := newTestSession(t, tr, staticHistory())

	msg, err := s.Send("hello")
	require.NoError(t, err)
	tr.deliver(t, domain.EventMessageSent, domain.MessageSentEvent{
		Message:        domain.Message{TempID: msg.TempID, SenderID: me},
		CreditDeducted: true,
	})

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsPending())
	assert.Equal(t, msg.TempID, msgs[0].TempID)
	assert.Empty(t, notices.of(NoticeCredit))
}

func TestSession_PresenceEvents(t *testing.T) {
	tr := newFakeTransport()
	s, notices := newTestSession(t, tr, staticHistory())

	tr.deliver(t, domain.EventUserOnline, domain.PresenceEvent{UserID: them})
	tr.deliver(t, domain.EventUserTyping, domain.UserTypingEvent{UserID: them, IsTyping: true})
	tr.deliver(t, domain.EventUserTyping, domain.UserTypingEvent{UserID: "u9", IsTyping: false})

	assert.Equal(t, presence.RemoteState{Typing: true, Online: true}, s.Remote())
	got := notices.of(NoticePresence)
	require.Len(t, got, 2)
	assert.Equal(t, presence.RemoteState{Typing: true, Online: true}, got[1].Remote)

	tr.deliver(t, domain.EventUserOffline, domain.PresenceEvent{UserID: them})
	assert.Equal(t, presence.RemoteState{}, s.Remote())
}

func TestSession_LoadHistory(t *testing.T) {
	tr := newFakeTransport()
	var gotPage, gotLimit int
	h := historyFunc(func(_ context.Context, id string, page, limit int) (*domain.HistoryPage, error) {
		assert.Equal(t, them, id)
		gotPage, gotLimit = page, limit
		return &domain.HistoryPage{
			Messages: []domain.Message{confirmed("m1", them, "a"), confirmed("m2", me, "b")},
			HasMore:  true,
		}, nil
	})
	s, _ := newTestSession(t, tr, h)

	require.NoError(t, s.LoadHistory(context.Background(), 1, 0))
	assert.Equal(t, 1, gotPage)
	assert.Equal(t, 20, gotLimit)
	assert.Equal(t, []string{"m1", "m2"}, identities(s.Messages()))
	assert.True(t, s.HasMore())
}

func TestSession_LoadHistoryFailureIsNotice(t *testing.T) {
	tr := newFakeTransport()
	h := historyFunc(func(context.Context, string, int, int) (*domain.HistoryPage, error) {
		return nil, errors.New("api: HTTP 502")
	})
	s, notices := newTestSession(t, tr, h)

	err := s.LoadHistory(context.Background(), 1, 0)
	require.Error(t, err)
	errs := notices.of(NoticeError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Text, "HTTP 502")
	assert.Empty(t, s.Messages())
}

func TestSession_StaleHistoryDropped(t *testing.T) {
	tr := newFakeTransport()
	release := make(chan struct{})
	var calls atomic.Int32
	h := historyFunc(func(context.Context, string, int, int) (*domain.HistoryPage, error) {
		if calls.Add(1) == 1 {
			<-release
			return &domain.HistoryPage{Messages: []domain.Message{confirmed("old", them, "a")}}, nil
		}
		return &domain.HistoryPage{Messages: []domain.Message{confirmed("new", them, "b")}}, nil
	})
	s, _ := newTestSession(t, tr, h)

	done := make(chan error, 1)
	go func() { done <- s.LoadHistory(context.Background(), 1, 0) }()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, s.LoadHistory(context.Background(), 1, 0))
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, []string{"new"}, identities(s.Messages()))
}

func TestSession_HistoryAfterCloseIsNoop(t *testing.T) {
	tr := newFakeTransport()
	started := make(chan struct{})
	release := make(chan struct{})
	h := historyFunc(func(context.Context, string, int, int) (*domain.HistoryPage, error) {
		close(started)
		<-release
		return &domain.HistoryPage{Messages: []domain.Message{confirmed("m1", them, "a")}}, nil
	})
	s, notices := newTestSession(t, tr, h)

	done := make(chan error, 1)
	go func() { done <- s.LoadHistory(context.Background(), 1, 0) }()
	<-started

	s.Close()
	close(release)

	assert.ErrorIs(t, <-done, ErrStale)
	assert.Empty(t, s.Messages())
	assert.Empty(t, notices.of(NoticeMessages))
	assert.ErrorIs(t, s.LoadHistory(context.Background(), 1, 0), ErrClosed)
}

func TestSession_CloseUnsubscribes(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSession(t, tr, staticHistory())
	assert.Equal(t, 1, tr.hooks.Count(domain.EventReceiveMessage))

	s.Close()
	s.Close()

	assert.Empty(t, tr.hooks.Events())
	tr.deliver(t, domain.EventReceiveMessage, confirmed("r1", them, "hi"))
	assert.Empty(t, s.Messages())

	_, err := s.Send("hello")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSession_PendingTimeout(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSession(t, tr, staticHistory(), func(o *Options) {
		o.PendingTimeout = 30 * time.Millisecond
	})

	msg, err := s.Send("hello")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		m, _ := s.store.Find(msg.TempID)
		return m.Status == domain.StatusFailed
	}, time.Second, 5*time.Millisecond)

	tr.deliver(t, domain.EventMessageSent, domain.MessageSentEvent{
		Message: domain.Message{ID: "X", TempID: msg.TempID, SenderID: me},
	})
	m, ok := s.store.Find("X")
	require.True(t, ok)
	assert.True(t, m.IsConfirmed())
}

func TestSession_ConfirmedBeforeTimeoutStaysConfirmed(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSession(t, tr, staticHistory(), func(o *Options) {
		o.PendingTimeout = 30 * time.Millisecond
	})

	msg, err := s.Send("hello")
	require.NoError(t, err)
	tr.deliver(t, domain.EventMessageSent, domain.MessageSentEvent{
		Message: domain.Message{ID: "X", TempID: msg.TempID, SenderID: me},
	})

	time.Sleep(60 * time.Millisecond)
	m, _ := s.store.Find("X")
	assert.True(t, m.IsConfirmed())
}
