// Package presence debounces local typing intent and tracks the
// counterpart's typing and online state.
package presence

import (
	"sync"
	"time"

	"github.com/soyeahso/matchchat/internal/domain"
	"github.com/soyeahso/matchchat/internal/logging"
)

// DefaultIdle is how long after the last keystroke typing=false is sent.
const DefaultIdle = time.Second

// Emitter sends one socket event.
type Emitter interface {
	Emit(event string, payload any) error
}

// RemoteState is the counterpart's ephemeral state.
type RemoteState struct {
	Typing bool
	Online bool
}

// Signaler belongs to one open conversation.
type Signaler struct {
	emit          Emitter
	counterpartID string
	idle          time.Duration
	log           *logging.Logger

	mu       sync.Mutex
	typing   bool
	timer    *time.Timer
	gen      uint64
	closed   bool
	remote   RemoteState
	onChange func(RemoteState)
}

func New(emit Emitter, counterpartID string, idle time.Duration, log *logging.Logger) *Signaler {
	if idle <= 0 {
		idle = DefaultIdle
	}
	return &Signaler{
		emit:          emit,
		counterpartID: counterpartID,
		idle:          idle,
		log:           log.Sub("presence").With("counterpart", counterpartID),
	}
}

// OnChange is called with the new state whenever the remote state changes.
func (s *Signaler) OnChange(fn func(RemoteState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Keystroke records input activity. Non-empty content signals typing once
// and re-arms the idle timer; empty content ends typing.
func (s *Signaler) Keystroke(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if content == "" {
		if s.typing {
			s.stopLocked()
		}
		return
	}

	if !s.typing {
		s.typing = true
		s.send(true)
	}

	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.idle, func() { s.expire(gen) })
}

// Stop signals typing=false right away and cancels the idle timer. Called on
// every send.
func (s *Signaler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopLocked()
}

// Typing reports whether typing=true is currently signaled.
func (s *Signaler) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Close cancels the idle timer. Nothing is emitted afterwards.
func (s *Signaler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelLocked()
	s.onChange = nil
}

func (s *Signaler) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || !s.typing {
		return
	}
	s.timer = nil
	s.typing = false
	s.send(false)
}

func (s *Signaler) stopLocked() {
	s.cancelLocked()
	s.typing = false
	s.send(false)
}

func (s *Signaler) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Signaler) send(typing bool) {
	err := s.emit.Emit(domain.EventTyping, domain.TypingPayload{ReceiverID: s.counterpartID, IsTyping: typing})
	if err != nil {
		s.log.Debug().Err(err).Bool("typing", typing).Msg("typing signal not sent")
	}
}

// ApplyTyping applies a user_typing event. Events for other users are
// ignored; it reports whether the event was for the counterpart.
func (s *Signaler) ApplyTyping(evt domain.UserTypingEvent) bool {
	return s.apply(evt.UserID, func(r *RemoteState) { r.Typing = evt.IsTyping })
}

// ApplyOnline applies a user_online event.
func (s *Signaler) ApplyOnline(evt domain.PresenceEvent) bool {
	return s.apply(evt.UserID, func(r *RemoteState) { r.Online = true })
}

// ApplyOffline applies a user_offline event. An offline user is no longer typing.
func (s *Signaler) ApplyOffline(evt domain.PresenceEvent) bool {
	return s.apply(evt.UserID, func(r *RemoteState) {
		r.Online = false
		r.Typing = false
	})
}

func (s *Signaler) apply(userID string, mutate func(*RemoteState)) bool {
	if userID != s.counterpartID {
		return false
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	before := s.remote
	mutate(&s.remote)
	after := s.remote
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil && after != before {
		fn(after)
	}
	return true
}

// Remote returns the counterpart's current state.
func (s *Signaler) Remote() RemoteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}
