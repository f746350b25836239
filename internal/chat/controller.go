package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/soyeahso/matchchat/internal/eligibility"
	"github.com/soyeahso/matchchat/internal/logging"
)

var (
	ErrNoCounterpart = errors.New("chat: counterpart id required")
	ErrSuperseded    = errors.New("chat: superseded by a newer open")
)

// Gate decides whether a conversation may open.
type Gate interface {
	Enter(ctx context.Context, counterpartID string, confirm eligibility.ConfirmFunc) error
}

// Controller owns the currently open conversation. Each Open bumps a
// generation so a slow gate or history result for an abandoned switch
// cannot replace a newer one.
type Controller struct {
	transport Transport
	history   HistoryLoader
	gate      Gate
	base      Options
	log       *logging.Logger

	mu      sync.Mutex
	gen     uint64
	current *Session
}

// NewController builds sessions from base, filling in the counterpart per Open.
func NewController(t Transport, h HistoryLoader, gate Gate, base Options, log *logging.Logger) *Controller {
	return &Controller{
		transport: t,
		history:   h,
		gate:      gate,
		base:      base,
		log:       log,
	}
}

// Open runs the eligibility gate, replaces the current session and loads
// the first history page. A failed history load leaves the session open
// with an error notice.
func (c *Controller) Open(ctx context.Context, counterpartID string, confirm eligibility.ConfirmFunc) (*Session, error) {
	if counterpartID == "" {
		return nil, ErrNoCounterpart
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	if err := c.gate.Enter(ctx, counterpartID, confirm); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil, ErrSuperseded
	}
	if c.current != nil {
		c.current.Close()
	}
	opts := c.base
	opts.CounterpartID = counterpartID
	sess := NewSession(c.transport, c.history, opts, c.log)
	c.current = sess
	c.mu.Unlock()

	err := sess.LoadHistory(ctx, 1, opts.PageSize)
	switch {
	case errors.Is(err, ErrStale), errors.Is(err, ErrClosed):
		return nil, ErrSuperseded
	case err != nil:
		c.log.Warn().Err(err).Str("counterpart", counterpartID).Msg("opened without history")
	}
	return sess, nil
}

// Current returns the open session, if any.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Close tears down the open session.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.current != nil {
		c.current.Close()
		c.current = nil
	}
}
