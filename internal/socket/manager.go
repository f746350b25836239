// Package socket owns the single realtime connection to the chat service:
// handshake, reconnection, keep-alive and the offline emit queue.
package socket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/matchchat/internal/config"
	"github.com/soyeahso/matchchat/internal/domain"
	"github.com/soyeahso/matchchat/internal/hooks"
	"github.com/soyeahso/matchchat/internal/logging"
	"github.com/soyeahso/matchchat/internal/version"
)

var (
	ErrNoToken         = errors.New("socket: auth token required")
	ErrClosed          = errors.New("socket: connection closed")
	ErrAlreadyStarted  = errors.New("socket: already connecting")
	ErrUnauthorized    = errors.New("socket: unauthorized")
	ErrReconnectFailed = errors.New("socket: reconnect attempts exhausted")
)

// Disconnect reasons reported with the disconnect event.
const (
	ReasonServerDisconnect = "io server disconnect"
	ReasonClientDisconnect = "io client disconnect"
	ReasonTransportClose   = "transport close"
)

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	URL               string
	Heartbeat         time.Duration
	HandshakeTimeout  time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	ReconnectMax      time.Duration
	Jitter            float64
	QueueCap          int
	Client            ClientInfo
	// StableAfter is how long a session must last before the retry budget
	// is refilled. Defaults to Heartbeat.
	StableAfter time.Duration
	// WriteTimeout bounds every frame write. Defaults to HandshakeTimeout.
	WriteTimeout time.Duration
}

// OptionsFromConfig maps the socket section of the config.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		URL:               cfg.Socket.URL,
		Heartbeat:         cfg.Heartbeat(),
		HandshakeTimeout:  cfg.HandshakeTimeout(),
		ReconnectAttempts: cfg.Socket.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay(),
		ReconnectMax:      cfg.ReconnectMax(),
		Jitter:            0.5,
		QueueCap:          cfg.Socket.QueueCap,
	}
}

func (o Options) withDefaults() Options {
	if o.Heartbeat <= 0 {
		o.Heartbeat = 25 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.ReconnectAttempts <= 0 {
		o.ReconnectAttempts = 5
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = time.Second
	}
	if o.ReconnectMax < o.ReconnectDelay {
		o.ReconnectMax = max(5*time.Second, o.ReconnectDelay)
	}
	if o.QueueCap <= 0 {
		o.QueueCap = 50
	}
	if o.StableAfter <= 0 {
		o.StableAfter = o.Heartbeat
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = o.HandshakeTimeout
	}
	if o.Client.ID == "" {
		o.Client.ID = "matchchat-cli"
	}
	if o.Client.Version == "" {
		o.Client.Version = version.Version
	}
	if o.Client.Platform == "" {
		o.Client.Platform = runtime.GOOS
	}
	return o
}

// Manager maintains exactly one live connection per authenticated session and
// re-establishes it after transient failures. Create one per process and pass
// it to whatever needs it.
type Manager struct {
	opts   Options
	log    *logging.Logger
	hooks  *hooks.Manager
	dialer *websocket.Dialer
	seq    atomic.Int64

	mu        sync.Mutex
	conn      *Conn
	connected bool
	hello     HelloOK
	queue     *emitQueue
	watchers  map[int]chan bool
	nextWatch int
	started   bool
	closed    bool
	err       error
	cancel    context.CancelFunc

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a disconnected Manager.
func New(opts Options, log *logging.Logger) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		opts:  opts,
		log:   log.Sub("socket"),
		hooks: hooks.NewManager(log),
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		queue:    newEmitQueue(opts.QueueCap),
		watchers: make(map[int]chan bool),
		done:     make(chan struct{}),
	}
}

// Connect starts the connection loop authenticated with token and returns
// immediately. An empty token fails closed with ErrNoToken.
func (m *Manager) Connect(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoToken
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.run(runCtx, token)
	return nil
}

// WaitConnected blocks until the manager is connected, the context ends or
// the connection loop gives up.
func (m *Manager) WaitConnected(ctx context.Context) error {
	ch, stop := m.Watch()
	defer stop()

	for {
		if m.Connected() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			if err := m.Err(); err != nil {
				return err
			}
			return ErrClosed
		case <-ch:
		}
	}
}

// Connected reports the current isConnected state.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Watch returns a channel carrying the latest isConnected value after every
// transition, and a function that stops the subscription.
func (m *Manager) Watch() (<-chan bool, func()) {
	ch := make(chan bool, 1)
	m.mu.Lock()
	id := m.nextWatch
	m.nextWatch++
	m.watchers[id] = ch
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// Hello returns the server's latest handshake response.
func (m *Manager) Hello() HelloOK {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hello
}

// Err returns the terminal error once the connection loop has given up.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Queued returns the number of events waiting for a connection.
func (m *Manager) Queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.len()
}

// On registers a handler for an inbound or lifecycle event.
func (m *Manager) On(event, name string, h hooks.Handler) {
	m.hooks.On(event, name, h)
}

// Off removes a named handler.
func (m *Manager) Off(event, name string) {
	m.hooks.Off(event, name)
}

// Emit sends an event right away when connected. Otherwise the event is
// queued and delivered once after the next successful connection. Keep-alive
// pings are never queued.
func (m *Manager) Emit(event string, payload any) error {
	f, err := NewEvent(event, payload, 0)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", event, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}

	// write outside m.mu so a slow peer cannot stall other callers
	if conn := m.conn; m.connected && conn != nil {
		m.mu.Unlock()
		f.Seq = m.seq.Add(1)
		err := conn.WriteFrame(f)
		if err == nil {
			return nil
		}
		m.log.Warn().Err(err).Str("event", event).Msg("write failed, queueing")
		m.mu.Lock()
	}
	defer m.mu.Unlock()

	if event == domain.EventPing {
		return nil
	}
	if m.queue.push(queueKey(payload), f) {
		m.log.Warn().Int("cap", m.opts.QueueCap).Msg("emit queue full, dropped oldest event")
	}
	m.log.Debug().Str("event", event).Int("queued", m.queue.len()).Msg("event queued while offline")
	return nil
}

// Close tears the connection down, cancels the keep-alive and waits for the
// background loop to exit. Safe to call more than once.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		started := m.started
		cancel := m.cancel
		conn := m.conn
		m.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if conn != nil {
			_ = conn.Close()
		}
		if started {
			<-m.done
		}

		m.mu.Lock()
		m.setConnectedLocked(false)
		m.mu.Unlock()
		m.log.Info().Msg("connection closed")
	})
	return nil
}

func (m *Manager) run(ctx context.Context, token string) {
	defer close(m.done)

	bo := m.newBackoff()
	attempt := 0
	// consecutive server closes of sessions that never became stable
	kicked := 0
	for {
		if attempt > 0 {
			m.hooks.EmitValue(ctx, domain.EventReconnectAttempt, domain.ReconnectInfo{Attempt: attempt})
		}

		conn, hello, err := m.dial(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn().Err(err).Int("attempt", attempt).Msg("connect failed")
			m.hooks.EmitValue(ctx, domain.EventConnectError, domain.ConnectErrorInfo{Error: err.Error()})
			if errors.Is(err, ErrUnauthorized) {
				m.fail(err)
				return
			}
			if !m.wait(ctx, bo) {
				return
			}
			attempt++
			continue
		}

		if !m.attach(conn, hello) {
			_ = conn.Close()
			return
		}
		m.log.Info().Str("connId", hello.ConnID).Int("attempt", attempt).Msg("connected")
		if attempt > 0 {
			m.hooks.EmitValue(ctx, domain.EventReconnect, domain.ReconnectInfo{Attempt: attempt})
		}
		m.hooks.EmitValue(ctx, domain.EventConnect, nil)

		since := time.Now()
		reason := m.serve(ctx, conn)
		m.detach(conn)
		m.log.Info().Str("reason", reason).Msg("disconnected")
		m.hooks.EmitValue(context.WithoutCancel(ctx), domain.EventDisconnect, domain.DisconnectInfo{Reason: reason})
		if ctx.Err() != nil {
			return
		}

		attempt = 1
		if time.Since(since) >= m.opts.StableAfter {
			bo.Reset()
			kicked = 0
		}
		if reason == ReasonServerDisconnect {
			kicked++
			if kicked == 1 {
				// the server ended the session on purpose; try again right away
				continue
			}
			m.log.Warn().Int("inARow", kicked).Msg("server keeps closing new sessions, backing off")
		}
		if !m.wait(ctx, bo) {
			return
		}
	}
}

func (m *Manager) newBackoff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.opts.ReconnectDelay
	eb.MaxInterval = m.opts.ReconnectMax
	eb.RandomizationFactor = m.opts.Jitter
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0
	b := backoff.WithMaxRetries(eb, uint64(m.opts.ReconnectAttempts))
	b.Reset()
	return b
}

// wait sleeps for the next backoff interval. It returns false when the
// context ends or the retry budget is spent.
func (m *Manager) wait(ctx context.Context, bo backoff.BackOff) bool {
	delay := bo.NextBackOff()
	if delay == backoff.Stop {
		m.log.Error().Int("attempts", m.opts.ReconnectAttempts).Msg("giving up on reconnecting")
		m.hooks.EmitValue(ctx, domain.EventReconnectFailed, nil)
		m.fail(ErrReconnectFailed)
		return false
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// dial opens the WebSocket and performs the connect handshake.
func (m *Manager) dial(ctx context.Context, token string) (*Conn, HelloOK, error) {
	dctx, cancel := context.WithTimeout(ctx, m.opts.HandshakeTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := m.dialer.DialContext(dctx, m.opts.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, HelloOK{}, fmt.Errorf("dialing %s: %w", m.opts.URL, ErrUnauthorized)
		}
		return nil, HelloOK{}, fmt.Errorf("dialing %s: %w", m.opts.URL, err)
	}
	conn := newConn(ws, m.opts.WriteTimeout)

	hello, err := m.handshake(conn, ws, token)
	if err != nil {
		_ = ws.Close()
		return nil, HelloOK{}, err
	}
	return conn, hello, nil
}

// handshake sends the connect request and waits for hello-ok.
func (m *Manager) handshake(conn *Conn, ws *websocket.Conn, token string) (HelloOK, error) {
	_ = ws.SetReadDeadline(time.Now().Add(m.opts.HandshakeTimeout))

	reqID := uuid.New().String()
	req, err := NewRequest(reqID, MethodConnect, ConnectParams{
		Protocol: ProtocolVersion,
		Client:   m.opts.Client,
		Auth:     &ConnectAuth{Token: token},
	})
	if err != nil {
		return HelloOK{}, fmt.Errorf("creating connect request: %w", err)
	}
	if err := conn.WriteFrame(req); err != nil {
		return HelloOK{}, fmt.Errorf("sending connect: %w", err)
	}

	resp, err := conn.ReadFrame()
	if err != nil {
		return HelloOK{}, fmt.Errorf("reading hello: %w", err)
	}
	if resp.Type != FrameTypeResponse || resp.ID != reqID {
		return HelloOK{}, fmt.Errorf("unexpected handshake frame type=%s id=%s", resp.Type, resp.ID)
	}
	if !resp.Succeeded() {
		if resp.Error != nil && resp.Error.Code == "unauthorized" {
			return HelloOK{}, fmt.Errorf("%w: %s", ErrUnauthorized, resp.Error.Message)
		}
		if resp.Error != nil {
			return HelloOK{}, fmt.Errorf("handshake rejected: %w", resp.Error)
		}
		return HelloOK{}, errors.New("handshake rejected")
	}

	var hello HelloOK
	if err := jsonDecode(resp.Payload, &hello); err != nil {
		return HelloOK{}, fmt.Errorf("parsing hello: %w", err)
	}

	_ = ws.SetReadDeadline(time.Time{})
	return hello, nil
}

// attach publishes a fresh connection and flushes the offline queue on it.
// It returns false if the manager was closed meanwhile.
func (m *Manager) attach(conn *Conn, hello HelloOK) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}

	m.conn = conn
	m.hello = hello
	m.setConnectedLocked(true)

	pending := m.queue.drain()
	for i, item := range pending {
		item.frame.Seq = m.seq.Add(1)
		if err := conn.WriteFrame(item.frame); err != nil {
			m.log.Warn().Err(err).Int("remaining", len(pending)-i).Msg("flush interrupted")
			m.queue.requeue(pending[i:])
			break
		}
	}
	if len(pending) > 0 {
		m.log.Debug().Int("flushed", len(pending)-m.queue.len()).Msg("offline queue flushed")
	}
	return true
}

func (m *Manager) detach(conn *Conn) {
	_ = conn.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == conn {
		m.conn = nil
		m.setConnectedLocked(false)
	}
}

// setConnectedLocked updates the state and notifies watchers with the latest value.
func (m *Manager) setConnectedLocked(up bool) {
	if m.connected == up {
		return
	}
	m.connected = up
	for _, ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- up:
		default:
		}
	}
}

// serve runs the keep-alive and the read loop until the connection ends,
// returning the disconnect reason.
func (m *Manager) serve(ctx context.Context, conn *Conn) string {
	hbCtx, stop := context.WithCancel(ctx)
	defer stop()
	go m.heartbeat(hbCtx, conn)

	for {
		f, err := conn.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return ReasonClientDisconnect
			}
			reason := classify(err)
			m.log.Debug().Err(err).Str("reason", reason).Msg("read loop ended")
			return reason
		}

		if f.Type != FrameTypeEvent {
			m.log.Debug().Str("type", f.Type).Msg("ignoring non-event frame")
			continue
		}
		m.hooks.Emit(ctx, f.Event, f.Payload)
	}
}

// heartbeat sends a ping on a fixed interval. Missing replies are not acted on.
func (m *Manager) heartbeat(ctx context.Context, conn *Conn) {
	ticker := time.NewTicker(m.opts.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f, _ := NewEvent(domain.EventPing, nil, m.seq.Add(1))
			if err := conn.WriteFrame(f); err != nil {
				m.log.Debug().Err(err).Msg("ping failed")
				return
			}
		}
	}
}

// classify maps a read error to a disconnect reason. A close frame with a
// normal or going-away code means the server ended the session deliberately.
func classify(err error) string {
	var ce *websocket.CloseError
	if errors.As(err, &ce) &&
		(ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway) {
		return ReasonServerDisconnect
	}
	return ReasonTransportClose
}
