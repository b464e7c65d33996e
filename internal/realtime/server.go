package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/minglehq/mingle/internal/tokens"
	"github.com/minglehq/mingle/pkg/logger"
	"github.com/minglehq/mingle/pkg/metrics"
)

// TokenVerifier is the narrow slice of the token service the gateway needs.
type TokenVerifier interface {
	VerifyAccess(raw string) (*tokens.Claims, error)
}

// Options tunes the gateway; zero values fall back to defaults.
type Options struct {
	AllowedOrigin    string
	HandshakeTimeout time.Duration
	SendBuffer       int
	MaxSendFailures  int
}

// Server bundles the connection table, the room registry and the relay.
// It is an explicit instance — construct one per process (or per test) and
// pass it by reference.
type Server struct {
	verifier TokenVerifier
	registry *Registry
	upgrader websocket.Upgrader

	sendBuffer      int
	maxSendFailures int

	mu    sync.RWMutex
	conns map[uuid.UUID]*Conn
}

func NewServer(verifier TokenVerifier, opts Options) *Server {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.MaxSendFailures <= 0 {
		opts.MaxSendFailures = 8
	}
	s := &Server{
		verifier:        verifier,
		registry:        NewRegistry(),
		sendBuffer:      opts.SendBuffer,
		maxSendFailures: opts.MaxSendFailures,
		conns:           make(map[uuid.UUID]*Conn),
	}
	allowed := opts.AllowedOrigin
	s.upgrader = websocket.Upgrader{
		HandshakeTimeout: opts.HandshakeTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed == "*" || origin == allowed
		},
	}
	return s
}

func (s *Server) Registry() *Registry { return s.registry }

// HandleConnection upgrades the request and runs the handshake. The bearer
// access token must arrive as handshake metadata — Authorization header or
// `token` query parameter — never as a later frame; nothing is dispatched
// until the connection is Authenticated.
func (s *Server) HandleConnection(c *gin.Context) {
	token := bearerToken(c.Request)

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Debugf("ws upgrade failed: %v", err)
		return
	}

	conn := &Conn{
		id:   uuid.New(),
		ws:   ws,
		srv:  s,
		send: make(chan []byte, s.sendBuffer),
		done: make(chan struct{}),
	}
	conn.state.Store(int32(StateConnecting))

	reason := ""
	var claims *tokens.Claims
	if token == "" {
		reason = ReasonTokenRequired
	} else if claims, err = s.verifier.VerifyAccess(token); err != nil {
		reason = ReasonTokenInvalid
		if errors.Is(err, tokens.ErrTokenExpired) {
			reason = ReasonTokenExpired
		}
	}
	if reason != "" {
		metrics.HandshakeFailures.WithLabelValues(reason).Inc()
		// Connecting -> Closed: auth-error frame, then drop the transport.
		b, _ := json.Marshal(Frame{Event: EventAuthError, Error: reason})
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = ws.WriteMessage(websocket.TextMessage, b)
		conn.state.Store(int32(StateClosed))
		_ = ws.Close()
		return
	}

	conn.claims = claims
	conn.state.Store(int32(StateAuthenticated))
	s.attach(conn)
	logger.Infof("%s connected (%s)", claims.Username, conn.id)

	go conn.writePump()
	conn.readPump()
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if tok, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return tok
		}
	}
	return r.URL.Query().Get("token")
}

func (s *Server) attach(c *Conn) {
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	metrics.ConnectionsActive.Inc()
}

// detach runs inside Conn.Close: room cleanup happens before the
// connection record disappears, so no stale membership survives.
func (s *Server) detach(c *Conn) {
	s.registry.LeaveAll(c.id)
	s.mu.Lock()
	_, known := s.conns[c.id]
	delete(s.conns, c.id)
	s.mu.Unlock()
	if known {
		metrics.ConnectionsActive.Dec()
		if c.claims != nil {
			logger.Infof("%s disconnected (%s)", c.claims.Username, c.id)
		}
	}
}

func (s *Server) conn(id uuid.UUID) *Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conns[id]
}

func (s *Server) snapshot() []*Conn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

// dispatch routes one inbound frame. Protocol errors are answered with an
// error frame; they do not close the connection.
func (s *Server) dispatch(c *Conn, f *Frame) {
	var err error
	switch f.Event {
	case EventJoinRoom:
		err = s.Join(c, f.Room)
	case EventLeaveRoom:
		err = s.Leave(c, f.Room)
	case EventMessage:
		err = s.Send(c, f.Target, f.Payload)
	default:
		err = errors.New(ReasonBadFrame)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrNotAuthenticated):
			c.sendError(ReasonNotAuthenticated)
		default:
			c.sendError(ReasonBadFrame)
		}
	}
}

// Join adds an authenticated connection to a room.
func (s *Server) Join(c *Conn, room string) error {
	if c.State() != StateAuthenticated {
		return ErrNotAuthenticated
	}
	if strings.TrimSpace(room) == "" {
		return ErrInvalidRoom
	}
	s.registry.Join(c.id, room)
	logger.Infof("%s joined room %s", c.claims.Username, room)
	return nil
}

// Leave removes an authenticated connection from a room; leaving a room
// never joined is a no-op.
func (s *Server) Leave(c *Conn, room string) error {
	if c.State() != StateAuthenticated {
		return ErrNotAuthenticated
	}
	if strings.TrimSpace(room) == "" {
		return ErrInvalidRoom
	}
	s.registry.Leave(c.id, room)
	return nil
}

// Send relays a payload to the target: every other authenticated
// connection for broadcast, the room's other members for a room name.
// The sender never receives its own message. An unknown room resolves to
// no recipients and is not an error. Delivery is a non-blocking enqueue
// per recipient; one slow recipient cannot stall the rest.
func (s *Server) Send(sender *Conn, target string, payload json.RawMessage) error {
	if sender.State() != StateAuthenticated {
		return ErrNotAuthenticated
	}

	out := Frame{Event: EventMessage, From: sender.claims.Username, Payload: payload}
	if target == "" || target == TargetBroadcast {
		b, err := json.Marshal(out)
		if err != nil {
			return err
		}
		metrics.MessagesRelayed.WithLabelValues("broadcast").Inc()
		for _, c := range s.snapshot() {
			if c.id == sender.id {
				continue
			}
			if !c.enqueue(b) {
				logger.Debugf("broadcast delivery to %s dropped", c.id)
			}
		}
		return nil
	}

	out.Room = target
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	metrics.MessagesRelayed.WithLabelValues("room").Inc()
	for _, id := range s.registry.Members(target) {
		if id == sender.id {
			continue
		}
		c := s.conn(id)
		if c == nil {
			continue
		}
		if !c.enqueue(b) {
			logger.Debugf("room %s delivery to %s dropped", target, id)
		}
	}
	return nil
}
