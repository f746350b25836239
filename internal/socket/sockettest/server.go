// Package sockettest runs an in-process realtime chat server for tests.
package sockettest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/matchchat/internal/socket"
)

// Responder reacts to an event received from a client. send delivers an
// event back to that client only.
type Responder func(f socket.Frame, send func(event string, payload any) error)

// Server accepts one handshake per connection, checks the token and then
// records every event frame it receives.
type Server struct {
	token    string
	userID   string
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu         sync.Mutex
	peers      map[string]*peer
	received   []socket.Frame
	handshakes int
	refuse     bool
	responders map[string]Responder
}

type peer struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

func (p *peer) send(f socket.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ws.WriteJSON(f)
}

func (p *peer) control(code int, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

// New starts a server that accepts token for userID.
func New(token, userID string) *Server {
	s := &Server{
		token:      token,
		userID:     userID,
		peers:      make(map[string]*peer),
		responders: make(map[string]Responder),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URL returns the ws:// address of the server.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Close drops all connections and stops the server.
func (s *Server) Close() {
	s.Drop()
	s.srv.Close()
}

// Handle installs a responder for an event name.
func (s *Server) Handle(event string, r Responder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responders[event] = r
}

// Refuse makes the server reject new connections with 503 while on is true.
func (s *Server) Refuse(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refuse = on
}

// Handshakes counts successful handshakes since start.
func (s *Server) Handshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakes
}

// Peers counts currently open connections.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Received returns the recorded frames for event, or all of them when event is empty.
func (s *Server) Received(event string) []socket.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []socket.Frame
	for _, f := range s.received {
		if event == "" || f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

// Push sends an event to every connected client.
func (s *Server) Push(event string, payload any) error {
	f, err := socket.NewEvent(event, payload, 0)
	if err != nil {
		return err
	}
	for _, p := range s.snapshot() {
		if err := p.send(f); err != nil {
			return err
		}
	}
	return nil
}

// Kick ends every session with a normal close frame, the way the service
// does when it disconnects a client on purpose. The connection is released
// once the client answers the close.
func (s *Server) Kick() {
	for _, p := range s.snapshot() {
		p.control(websocket.CloseNormalClosure, socket.ReasonServerDisconnect)
	}
}

// Drop cuts every connection without a close frame.
func (s *Server) Drop() {
	for _, p := range s.snapshot() {
		_ = p.ws.UnderlyingConn().Close()
	}
}

func (s *Server) snapshot() []*peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	refuse := s.refuse
	s.mu.Unlock()
	if refuse {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	p := &peer{id: uuid.New().String(), ws: ws}
	defer func() {
		s.mu.Lock()
		delete(s.peers, p.id)
		s.mu.Unlock()
		_ = ws.Close()
	}()
	if !s.handshake(p) {
		return
	}

	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var f socket.Frame
		if err := json.Unmarshal(msg, &f); err != nil || f.Type != socket.FrameTypeEvent {
			continue
		}

		s.mu.Lock()
		s.received = append(s.received, f)
		r := s.responders[f.Event]
		s.mu.Unlock()

		if r != nil {
			r(f, func(event string, payload any) error {
				out, err := socket.NewEvent(event, payload, 0)
				if err != nil {
					return err
				}
				return p.send(out)
			})
		}
	}
}

func (s *Server) handshake(p *peer) bool {
	_ = p.ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, msg, err := p.ws.ReadMessage()
	if err != nil {
		return false
	}
	var req socket.Frame
	if err := json.Unmarshal(msg, &req); err != nil {
		return false
	}
	if req.Type != socket.FrameTypeRequest || req.Method != socket.MethodConnect {
		_ = p.send(socket.NewErrorResponse(req.ID, socket.ErrorShape{Code: "protocol_error", Message: "expected connect request"}))
		return false
	}

	var params socket.ConnectParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Auth == nil || params.Auth.Token != s.token {
		_ = p.send(socket.NewErrorResponse(req.ID, socket.ErrorShape{Code: "unauthorized", Message: "invalid token"}))
		return false
	}

	_ = p.ws.SetReadDeadline(time.Time{})
	resp, err := socket.NewResponse(req.ID, socket.HelloOK{
		Protocol: socket.ProtocolVersion,
		ConnID:   p.id,
		UserID:   s.userID,
	})
	if err != nil {
		return false
	}

	// registered before the reply so Kick and Push reach a client as soon
	// as it sees hello
	s.mu.Lock()
	s.peers[p.id] = p
	s.handshakes++
	s.mu.Unlock()
	return p.send(resp) == nil
}
