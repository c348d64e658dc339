package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/mschirtzinger/dayline/internal/remote"
)

const (
	writeTimeout   = 5 * time.Second
	sendBufferSize = 64
)

// Config holds server configuration.
type Config struct {
	// Port to listen on (0 picks a free port).
	Port int

	// Store backs every subscription and save.
	Store remote.Store

	// Logger for server activity.
	Logger zerolog.Logger
}

// DefaultConfig returns sensible defaults for store.
func DefaultConfig(store remote.Store) Config {
	return Config{
		Port:   8080,
		Store:  store,
		Logger: zerolog.Nop(),
	}
}

// Server manages WebSocket connections on top of a remote.Store.
type Server struct {
	addr     string
	store    remote.Store
	listener net.Listener
	server   *http.Server

	// WebSocket client management
	clients   map[*client]bool
	clientsMu sync.RWMutex

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger zerolog.Logger
}

// client is one connected subscription.
type client struct {
	conn        *websocket.Conn
	userID      string
	send        chan Message
	mu          sync.Mutex
	unsubscribe func()
	once        sync.Once
	done        chan struct{}
}

// NewServer creates a new hub server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:    fmt.Sprintf(":%d", cfg.Port),
		store:   cfg.Store,
		clients: make(map[*client]bool),
		ctx:     ctx,
		cancel:  cancel,
		logger:  cfg.Logger,
	}, nil
}

// Handler returns the HTTP routes of the hub.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start begins the HTTP server and WebSocket handler.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("hub listening")
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the server and closes every connection.
func (s *Server) Stop() error {
	s.logger.Info().Msg("stopping hub")

	s.cancel()

	s.clientsMu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()
	for _, c := range clients {
		s.removeClient(c, websocket.StatusGoingAway, "server shutting down")
	}

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.wg.Wait()
	return nil
}

// handleWebSocket upgrades the request and subscribes it to the user's
// document.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn:   conn,
		userID: userID,
		send:   make(chan Message, sendBufferSize),
		done:   make(chan struct{}),
	}

	s.clientsMu.Lock()
	s.clients[c] = true
	clientCount := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Info().Str("user", userID).Int("clients", clientCount).Msg("client connected")

	s.wg.Add(1)
	go s.writeLoop(c)

	unsubscribe, err := s.store.Subscribe(s.ctx, userID, func(snap remote.Snapshot) {
		s.enqueue(c, snapshotMessage(userID, snap))
	})
	if err != nil {
		s.enqueue(c, Message{Type: MessageTypeError, UserID: userID, Error: err.Error()})
		s.removeClient(c, websocket.StatusInternalError, "subscribe failed")
		return
	}
	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
	select {
	case <-c.done:
		// Removed while subscribing.
		unsubscribe()
		return
	default:
	}

	s.wg.Add(1)
	go s.readLoop(c)
}

func snapshotMessage(userID string, snap remote.Snapshot) Message {
	if snap.Err != nil {
		return Message{Type: MessageTypeError, UserID: userID, Error: snap.Err.Error()}
	}
	msg := Message{Type: MessageTypeSnapshot, UserID: userID}
	if snap.Doc != nil {
		msg.Doc = snap.Doc.Bytes()
	}
	return msg
}

// enqueue hands msg to the client's writer. A client too slow to keep up
// is disconnected; snapshots must not be dropped silently.
func (s *Server) enqueue(c *client, msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		s.logger.Warn().Str("user", c.userID).Msg("client send buffer full, disconnecting")
		go s.removeClient(c, websocket.StatusPolicyViolation, "too slow")
	}
}

// writeLoop writes queued messages to one client in order.
func (s *Server) writeLoop(c *client) {
	defer s.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Error().Err(err).Msg("failed to marshal message")
				continue
			}
			ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
			err = c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.logger.Debug().Err(err).Str("user", c.userID).Msg("failed to send to client")
				s.removeClient(c, websocket.StatusInternalError, "")
				return
			}
		}
	}
}

// readLoop handles saves sent by the client until it disconnects.
func (s *Server) readLoop(c *client) {
	defer s.wg.Done()
	defer s.removeClient(c, websocket.StatusNormalClosure, "")

	for {
		_, data, err := c.conn.Read(s.ctx)
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn().Err(err).Str("user", c.userID).Msg("ignoring malformed message")
			continue
		}
		if msg.Type != MessageTypeSave {
			s.logger.Warn().Str("type", string(msg.Type)).Msg("ignoring unexpected message")
			continue
		}

		ack := Message{Type: MessageTypeAck, ID: msg.ID, UserID: c.userID}
		switch {
		case msg.Partial == nil:
			ack.Error = "save without partial document"
		case msg.UserID != "" && msg.UserID != c.userID:
			ack.Error = "user mismatch"
		default:
			if err := s.store.Save(s.ctx, c.userID, *msg.Partial); err != nil {
				s.logger.Warn().Err(err).Str("user", c.userID).Msg("save failed")
				ack.Error = err.Error()
			}
		}
		s.enqueue(c, ack)
	}
}

// removeClient unsubscribes and closes one client. Safe to call repeatedly.
func (s *Server) removeClient(c *client, code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		clientCount := len(s.clients)
		s.clientsMu.Unlock()

		c.mu.Lock()
		unsubscribe := c.unsubscribe
		c.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
		close(c.done)
		_ = c.conn.Close(code, reason)
		s.logger.Info().Str("user", c.userID).Int("clients", clientCount).Msg("client disconnected")
	})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
	})
}

// GetAddr returns the server's listening address.
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the current number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
