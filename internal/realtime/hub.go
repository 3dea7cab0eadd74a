// Package realtime serves the live feed. Clients subscribe to a gate id or to
// the admin scope and receive zone-update and admin-update envelopes.
package realtime

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"parkgate/internal/config"
	"parkgate/internal/logger"
	"parkgate/internal/messaging"
	"parkgate/internal/metrics"
	"parkgate/internal/models"
)

const maxMessageSize = 4096

type Hub struct {
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	scopes map[string]struct{}
	closed bool
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}

	h := &Hub{cfg: cfg, clients: make(map[*client]struct{})}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin allows every origin when no list is configured
func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, r.Header.Get("Origin"))
}

// Serve - GET /ws
func (h *Hub) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithContext(c.Request.Context()).Warn("WebSocket upgrade failed", "error", err)
		return
	}

	cl := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.cfg.SendBuffer),
		scopes: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	metrics.WebSocketClients.Inc()

	go cl.writePump()
	cl.readPump()
}

// Broadcast sends env once to every client subscribed to any of scopes.
// A client whose send buffer is full is disconnected.
func (h *Hub) Broadcast(env models.Envelope, scopes ...string) {
	frame, err := json.Marshal(env)
	if err != nil {
		logger.Get().Error("Failed to encode live feed frame", "error", err, "type", env.Type)
		return
	}

	h.mu.RLock()
	var slow []*client
	for cl := range h.clients {
		if !cl.subscribed(scopes) {
			continue
		}
		select {
		case cl.send <- frame:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		logger.Get().Warn("Dropping slow live feed client", "remote", cl.conn.RemoteAddr().String())
		h.remove(cl)
	}
}

// PublishZone fans a zone snapshot out to its gates and the admin scope
func (h *Hub) PublishZone(zone models.Zone) {
	env, err := models.NewEnvelope(models.MessageZoneUpdate, zone)
	if err != nil {
		return
	}
	scopes := append([]string{models.AdminScope}, zone.GateIDs...)
	h.Broadcast(env, scopes...)
}

// PublishAdmin sends an admin update to the admin scope
func (h *Hub) PublishAdmin(update models.AdminUpdate) {
	env, err := models.NewEnvelope(models.MessageAdminUpdate, update)
	if err != nil {
		return
	}
	h.Broadcast(env, models.AdminScope)
}

// Relay subscribes the hub to the bus. The returned function unsubscribes.
func (h *Hub) Relay(bus messaging.Bus) (func(), error) {
	stopZones, err := bus.Subscribe(messaging.SubjectZoneUpdate, func(data []byte) error {
		var zone models.Zone
		if err := json.Unmarshal(data, &zone); err != nil {
			return err
		}
		h.PublishZone(zone)
		return nil
	})
	if err != nil {
		return nil, err
	}

	stopAdmin, err := bus.Subscribe(messaging.SubjectAdminUpdate, func(data []byte) error {
		var update models.AdminUpdate
		if err := json.Unmarshal(data, &update); err != nil {
			return err
		}
		h.PublishAdmin(update)
		return nil
	})
	if err != nil {
		stopZones()
		return nil, err
	}

	return func() {
		stopZones()
		stopAdmin()
	}, nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.RLock()
	all := make([]*client, 0, len(h.clients))
	for cl := range h.clients {
		all = append(all, cl)
	}
	h.mu.RUnlock()

	for _, cl := range all {
		h.remove(cl)
	}
}

func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	delete(h.clients, cl)
	h.mu.Unlock()
	if !ok {
		return
	}

	metrics.WebSocketClients.Dec()
	cl.mu.Lock()
	if !cl.closed {
		cl.closed = true
		close(cl.send)
	}
	cl.mu.Unlock()
	cl.conn.Close()
}

func (cl *client) subscribed(scopes []string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for _, s := range scopes {
		if _, ok := cl.scopes[s]; ok {
			return true
		}
	}
	return false
}

func (cl *client) readPump() {
	defer cl.hub.remove(cl)

	cl.conn.SetReadLimit(maxMessageSize)
	pongWait := 2 * cl.hub.cfg.PingInterval
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Get().Debug("Live feed client read failed", "error", err)
			}
			return
		}
		cl.handle(data)
	}
}

// handle applies a subscribe or unsubscribe frame. Anything else is ignored.
func (cl *client) handle(data []byte) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Get().Debug("Ignoring malformed live feed frame", "error", err)
		return
	}

	var scope models.ScopePayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &scope); err != nil {
			logger.Get().Debug("Ignoring malformed live feed payload", "error", err, "type", env.Type)
			return
		}
	}
	if scope.GateID == "" {
		return
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()
	switch env.Type {
	case models.MessageSubscribe:
		cl.scopes[scope.GateID] = struct{}{}
	case models.MessageUnsubscribe:
		delete(cl.scopes, scope.GateID)
	}
}

func (cl *client) writePump() {
	ticker := time.NewTicker(cl.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(cl.hub.cfg.WriteTimeout))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(cl.hub.cfg.WriteTimeout))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) subscriberCount(scope string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for cl := range h.clients {
		if cl.subscribed([]string{scope}) {
			n++
		}
	}
	return n
}
