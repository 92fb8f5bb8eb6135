package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// socketConn is the subset of *websocket.Conn the client relies on.
type socketConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// HandlerFunc reacts to one inbound event. A returned error means the
// payload was rejected; the event is logged and dropped, never rethrown
// into the read loop.
type HandlerFunc func(payload json.RawMessage) error

type Config struct {
	URL    string
	Token  string
	Logger *slog.Logger
}

// Conn is the client side of the realtime channel. Inbound events are
// routed through a per-event dispatch table; a bad event never deregisters
// a handler or affects other event types.
type Conn struct {
	config Config
	logger *slog.Logger

	mu   sync.Mutex // guards sock and writes (gorilla allows one writer)
	sock socketConn

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc
}

func New(config Config) *Conn {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{
		config:   config,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
	}
}

// NewWithSocket wraps an existing connection. Used by tests and by callers
// that manage dialing themselves.
func NewWithSocket(sock socketConn, logger *slog.Logger) *Conn {
	c := New(Config{Logger: logger})
	c.sock = sock
	return c
}

// Connect dials the realtime endpoint. The session token travels in a
// header, matching the HTTP API.
func (c *Conn) Connect(ctx context.Context) error {
	header := http.Header{}
	if c.config.Token != "" {
		header.Set("token", c.config.Token)
	}

	sock, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.URL, header)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.config.URL, err)
	}

	c.mu.Lock()
	c.sock = sock
	c.mu.Unlock()
	return nil
}

// On registers the handler for an event type. Registering again replaces
// the previous handler.
func (c *Conn) On(event string, h HandlerFunc) {
	c.handlersMu.Lock()
	c.handlers[event] = h
	c.handlersMu.Unlock()
}

// Emit sends an event to the server.
func (c *Conn) Emit(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return fmt.Errorf("emit %s: not connected", event)
	}
	return c.sock.WriteJSON(Envelope{Event: event, Payload: data})
}

// Run reads events until the context is cancelled or the connection
// breaks. Dispatch is sequential: cache mutations triggered by handlers
// are serialized by this loop.
func (c *Conn) Run(ctx context.Context) error {
	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return fmt.Errorf("run: not connected")
	}

	go func() {
		<-ctx.Done()
		_ = sock.Close()
	}()

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read failed: %w", err)
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		c.dispatch(env)
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return nil
	}
	err := c.sock.Close()
	c.sock = nil
	return err
}

func (c *Conn) dispatch(env Envelope) {
	c.handlersMu.RLock()
	h, ok := c.handlers[env.Event]
	c.handlersMu.RUnlock()
	if !ok {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("event handler panicked", "event", env.Event, "panic", r)
		}
	}()

	if err := h(env.Payload); err != nil {
		c.logger.Warn("dropping event", "event", env.Event, "error", err)
	}
}
