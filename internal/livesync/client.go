// Package livesync keeps one WebSocket subscription to the parking feed and
// turns inbound frames into typed events.
package livesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"parkgate/internal/logger"
	"parkgate/internal/models"
)

// State of the connection. Closed and Error are always followed by
// Disconnected.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
	Closed
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Error:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Event is ZoneUpdate or AdminUpdate
type Event interface {
	isEvent()
}

type ZoneUpdate struct {
	Zone models.Zone
}

type AdminUpdate struct {
	Update models.AdminUpdate
}

func (ZoneUpdate) isEvent()  {}
func (AdminUpdate) isEvent() {}

var (
	ErrAlreadyConnected = errors.New("livesync: already connected")
	// ErrClosedWhileConnecting is returned by Connect when Close ran before
	// the handshake finished. Nothing was subscribed.
	ErrClosedWhileConnecting = errors.New("livesync: closed while connecting")
)

type Config struct {
	URL string
	// Scope is a gate id or models.AdminScope
	Scope            string
	Header           http.Header
	HandshakeTimeout time.Duration
	CloseTimeout     time.Duration
	EventBuffer      int
}

// Client is a single live feed connection. Events and Status are shared by
// every connection the client makes; a new Connect is allowed once the
// previous one has returned to Disconnected. There is no automatic reconnect.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	events chan Event
	status chan State
	logger *slog.Logger

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	closing    bool
	cancelDial context.CancelFunc
	stop       chan struct{}
	done       chan struct{}
	pending    []State
	pumping    bool

	writeMu sync.Mutex
}

func NewClient(cfg Config) *Client {
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.CloseTimeout == 0 {
		cfg.CloseTimeout = 2 * time.Second
	}
	if cfg.EventBuffer == 0 {
		cfg.EventBuffer = 64
	}
	return &Client{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		events: make(chan Event, cfg.EventBuffer),
		status: make(chan State, 32),
		logger: logger.WithFields("component", "livesync", "scope", cfg.Scope),
	}
}

// Events is the inbound stream. It has a single consumer and is never closed.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Status receives every state transition in order. Transitions past the
// buffer wait in a queue until the reader catches up.
func (c *Client) Status() <-chan State {
	return c.status
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setStateLocked(s State) {
	c.state = s
	c.pending = append(c.pending, s)
	if !c.pumping {
		c.pumping = true
		go c.pumpStatus()
	}
}

// pumpStatus delivers queued transitions without holding mu, so a slow
// status reader never stalls the connection. It exits once the queue is empty.
func (c *Client) pumpStatus() {
	for {
		c.mu.Lock()
		if len(c.pending) == 0 {
			c.pumping = false
			c.mu.Unlock()
			return
		}
		s := c.pending[0]
		c.pending = c.pending[1:]
		c.mu.Unlock()

		c.status <- s
	}
}

// Connect dials the feed and subscribes to the configured scope
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.closing, c.cancelDial = false, cancel
	c.setStateLocked(Connecting)
	c.mu.Unlock()

	conn, resp, err := c.dialer.DialContext(dialCtx, c.cfg.URL, c.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	c.cancelDial = nil
	if c.closing {
		c.setStateLocked(Closed)
		c.setStateLocked(Disconnected)
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		c.logger.Info("Live feed closed before the handshake finished")
		return ErrClosedWhileConnecting
	}
	if err != nil {
		c.setStateLocked(Error)
		c.setStateLocked(Disconnected)
		c.mu.Unlock()
		return fmt.Errorf("livesync: dial %s: %w", c.cfg.URL, err)
	}

	stop, done := make(chan struct{}), make(chan struct{})
	c.conn, c.stop, c.done = conn, stop, done
	c.setStateLocked(Open)
	c.mu.Unlock()

	go c.readLoop(conn, stop, done)

	if err := c.send(conn, models.MessageSubscribe); err != nil {
		c.logger.Warn("Failed to send subscribe", "error", err)
	}
	c.logger.Info("Live feed connected")
	return nil
}

// Close unsubscribes and closes the connection. Unsubscribe is sent only
// while the connection is open. Closing during Connect aborts the handshake
// and Connect returns ErrClosedWhileConnecting; in any other state Close is a
// no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == Connecting {
		c.closing = true
		if c.cancelDial != nil {
			c.cancelDial()
		}
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	if conn == nil || c.state != Open {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	stop, done := c.stop, c.done
	close(stop)
	c.mu.Unlock()

	if err := c.send(conn, models.MessageUnsubscribe); err != nil {
		c.logger.Debug("Failed to send unsubscribe", "error", err)
	}

	c.writeMu.Lock()
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.cfg.CloseTimeout))
	c.writeMu.Unlock()
	if err != nil {
		conn.Close()
	}

	select {
	case <-done:
	case <-time.After(c.cfg.CloseTimeout):
		conn.Close()
		<-done
	}
	return nil
}

func (c *Client) send(conn *websocket.Conn, typ string) error {
	env, err := models.NewEnvelope(typ, models.ScopePayload{GateID: c.cfg.Scope})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(env)
}

func (c *Client) readLoop(conn *websocket.Conn, stop, done chan struct{}) {
	defer close(done)
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.finish(conn, err)
			return
		}

		ev, ok := c.decode(data)
		if !ok {
			continue
		}
		select {
		case c.events <- ev:
		case <-stop:
		}
	}
}

func (c *Client) finish(conn *websocket.Conn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.conn = nil

	if c.closing || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.setStateLocked(Closed)
		c.logger.Info("Live feed closed")
	} else {
		c.setStateLocked(Error)
		c.logger.Warn("Live feed dropped", "error", err)
	}
	c.setStateLocked(Disconnected)
}

func (c *Client) decode(data []byte) (Event, bool) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Debug("Ignoring malformed frame", "error", err)
		return nil, false
	}

	switch env.Type {
	case models.MessageZoneUpdate:
		var zone models.Zone
		if err := json.Unmarshal(env.Payload, &zone); err != nil || zone.ID == "" {
			c.logger.Debug("Ignoring malformed zone update", "error", err)
			return nil, false
		}
		return ZoneUpdate{Zone: zone}, true
	case models.MessageAdminUpdate:
		var update models.AdminUpdate
		if err := json.Unmarshal(env.Payload, &update); err != nil || update.Action == "" {
			c.logger.Debug("Ignoring malformed admin update", "error", err)
			return nil, false
		}
		return AdminUpdate{Update: update}, true
	}
	c.logger.Debug("Ignoring frame with unknown type", "type", env.Type)
	return nil, false
}
