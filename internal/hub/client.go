package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/mschirtzinger/dayline/internal/migrate"
	"github.com/mschirtzinger/dayline/internal/remote"
	"github.com/mschirtzinger/dayline/internal/schema"
)

// ErrSaveRejected wraps the error reported by the hub for a failed save.
var ErrSaveRejected = errors.New("save rejected by hub")

var _ remote.Store = (*Client)(nil)

// ClientConfig configures a Client.
type ClientConfig struct {
	// URL is the hub base URL, e.g. ws://localhost:8080.
	URL string

	// Logger for client activity.
	Logger zerolog.Logger
}

// Client is a remote.Store served by a hub. Each subscription holds one
// connection; saves go over a subscribed connection of the same user when
// there is one, otherwise over a short-lived connection.
type Client struct {
	base   *url.URL
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]map[*session]bool
	closed   bool
}

// NewClient validates the hub URL. No connection is made until Subscribe
// or Save.
func NewClient(cfg ClientConfig) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid hub url %q: %w", cfg.URL, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("invalid hub url %q: scheme must be ws or wss", cfg.URL)
	}
	return &Client{
		base:     u,
		logger:   cfg.Logger,
		sessions: make(map[string]map[*session]bool),
	}, nil
}

func (c *Client) endpoint(userID string) string {
	u := *c.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"user": {userID}}.Encode()
	return u.String()
}

// Subscribe implements remote.Store. The first snapshot arrives
// asynchronously once the hub has read the user's document.
func (c *Client) Subscribe(ctx context.Context, userID string, fn func(remote.Snapshot)) (func(), error) {
	s, err := c.open(ctx, userID, fn)
	if err != nil {
		return nil, err
	}
	return func() { c.release(s) }, nil
}

// Save implements remote.Store.
func (c *Client) Save(ctx context.Context, userID string, partial schema.PartialDocument) error {
	s := c.anySession(userID)
	if s == nil {
		var err error
		s, err = c.open(ctx, userID, nil)
		if err != nil {
			return err
		}
		defer c.release(s)
	}
	return s.save(ctx, partial)
}

// Close closes every connection.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	var all []*session
	for _, set := range c.sessions {
		for s := range set {
			all = append(all, s)
		}
	}
	c.mu.Unlock()

	for _, s := range all {
		c.release(s)
	}
	for _, s := range all {
		s.wg.Wait()
	}
	return nil
}

func (c *Client) open(ctx context.Context, userID string, fn func(remote.Snapshot)) (*session, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, remote.ErrClosed
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.endpoint(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to hub: %w", err)
	}

	s := newSession(conn, userID, fn, c.logger)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		s.close()
		return nil, remote.ErrClosed
	}
	if c.sessions[userID] == nil {
		c.sessions[userID] = make(map[*session]bool)
	}
	c.sessions[userID][s] = true
	c.mu.Unlock()

	return s, nil
}

func (c *Client) release(s *session) {
	c.mu.Lock()
	delete(c.sessions[s.userID], s)
	c.mu.Unlock()
	s.close()
}

func (c *Client) anySession(userID string) *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.sessions[userID] {
		if s.alive() {
			return s
		}
	}
	return nil
}

// session is one connection. Snapshots are handed to fn on a dispatcher
// goroutine so fn may call Save, whose ack is read by the read loop.
type session struct {
	conn   *websocket.Conn
	userID string
	fn     func(remote.Snapshot)
	logger zerolog.Logger

	nextID  atomic.Int64
	mu      sync.Mutex
	pending map[int64]chan error
	queue   []remote.Snapshot
	signal  chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	once     sync.Once
	released atomic.Bool
}

func newSession(conn *websocket.Conn, userID string, fn func(remote.Snapshot), logger zerolog.Logger) *session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		conn:    conn,
		userID:  userID,
		fn:      fn,
		logger:  logger,
		pending: make(map[int64]chan error),
		signal:  make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.wg.Add(2)
	go s.readLoop()
	go s.dispatchLoop()
	return s
}

func (s *session) alive() bool {
	return s.ctx.Err() == nil
}

// close releases the connection without waiting for the session
// goroutines, so it may be called from inside a delivery.
func (s *session) close() {
	s.once.Do(func() {
		s.released.Store(true)
		s.cancel()
		_ = s.conn.Close(websocket.StatusNormalClosure, "")
	})
}

func (s *session) save(ctx context.Context, partial schema.PartialDocument) error {
	id := s.nextID.Add(1)
	ack := make(chan error, 1)
	s.mu.Lock()
	s.pending[id] = ack
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	data, err := json.Marshal(Message{
		Type:      MessageTypeSave,
		Timestamp: time.Now(),
		ID:        id,
		UserID:    s.userID,
		Partial:   &partial,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal save: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	err = s.conn.Write(writeCtx, websocket.MessageText, data)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to send save: %w", err)
	}

	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return fmt.Errorf("connection lost before ack: %w", remote.ErrClosed)
	}
}

func (s *session) readLoop() {
	defer s.wg.Done()

	for {
		_, data, err := s.conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() == nil {
				s.logger.Warn().Err(err).Str("user", s.userID).Msg("hub connection lost")
				s.push(remote.Snapshot{Err: fmt.Errorf("hub connection lost: %w", err)})
				s.cancel()
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn().Err(err).Msg("ignoring malformed hub message")
			continue
		}

		switch msg.Type {
		case MessageTypeAck:
			var ackErr error
			if msg.Error != "" {
				ackErr = fmt.Errorf("%w: %s", ErrSaveRejected, msg.Error)
			}
			s.mu.Lock()
			ch := s.pending[msg.ID]
			s.mu.Unlock()
			if ch != nil {
				ch <- ackErr
			}
		case MessageTypeSnapshot:
			if !hasDoc(msg.Doc) {
				s.push(remote.Snapshot{})
				continue
			}
			doc, err := migrate.NewRawDocument(msg.Doc)
			if err != nil {
				s.push(remote.Snapshot{Err: fmt.Errorf("invalid document from hub: %w", err)})
				continue
			}
			s.push(remote.Snapshot{Doc: doc})
		case MessageTypeError:
			s.push(remote.Snapshot{Err: errors.New(msg.Error)})
		}
	}
}

// push queues a snapshot for the dispatcher without blocking the read loop.
func (s *session) push(snap remote.Snapshot) {
	if s.fn == nil {
		return
	}
	s.mu.Lock()
	s.queue = append(s.queue, snap)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *session) dispatchLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			s.drain()
			return
		case <-s.signal:
			s.drain()
		}
	}
}

// drain delivers queued snapshots in order. Nothing is delivered once the
// session was released by its owner.
func (s *session) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.released.Load() {
			s.queue = nil
			s.mu.Unlock()
			return
		}
		snap := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.fn(snap)
	}
}
