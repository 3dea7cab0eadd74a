package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkgate/internal/config"
	"parkgate/internal/messaging"
	"parkgate/internal/models"
)

func newTestServer(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(config.WebSocketConfig{SendBuffer: 8, WriteTimeout: time.Second, PingInterval: time.Minute})
	r := gin.New()
	r.GET("/ws", hub.Serve)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func subscribe(t *testing.T, hub *Hub, conn *websocket.Conn, scope string) {
	t.Helper()
	payload, _ := json.Marshal(models.ScopePayload{GateID: scope})
	require.NoError(t, conn.WriteJSON(models.Envelope{Type: models.MessageSubscribe, Payload: payload}))
	require.Eventually(t, func() bool { return hub.subscriberCount(scope) > 0 }, time.Second, 5*time.Millisecond)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env models.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHub_ZoneUpdateReachesGateAndAdmin(t *testing.T) {
	hub, url := newTestServer(t)

	gate := dial(t, url)
	subscribe(t, hub, gate, "gate_1")
	admin := dial(t, url)
	subscribe(t, hub, admin, models.AdminScope)
	other := dial(t, url)
	subscribe(t, hub, other, "gate_2")

	hub.PublishZone(models.Zone{ID: "zone_a", GateIDs: []string{"gate_1"}, Version: 7})

	for _, conn := range []*websocket.Conn{gate, admin} {
		env := readEnvelope(t, conn)
		assert.Equal(t, models.MessageZoneUpdate, env.Type)
		var zone models.Zone
		require.NoError(t, json.Unmarshal(env.Payload, &zone))
		assert.Equal(t, int64(7), zone.Version)
	}

	// gate_2 only sees what is meant for it
	hub.PublishZone(models.Zone{ID: "zone_b", GateIDs: []string{"gate_2"}})
	env := readEnvelope(t, other)
	var zone models.Zone
	require.NoError(t, json.Unmarshal(env.Payload, &zone))
	assert.Equal(t, "zone_b", zone.ID)
}

func TestHub_AdminUpdateOnlyToAdminScope(t *testing.T) {
	hub, url := newTestServer(t)

	gate := dial(t, url)
	subscribe(t, hub, gate, "gate_1")
	admin := dial(t, url)
	subscribe(t, hub, admin, models.AdminScope)

	hub.PublishAdmin(models.AdminUpdate{ID: "a1", Action: "zone.closed", AdminID: "u1"})
	env := readEnvelope(t, admin)
	assert.Equal(t, models.MessageAdminUpdate, env.Type)

	hub.PublishZone(models.Zone{ID: "zone_a", GateIDs: []string{"gate_1"}})
	env = readEnvelope(t, gate)
	assert.Equal(t, models.MessageZoneUpdate, env.Type, "admin update was not delivered to the gate scope")
}

func TestHub_UnsubscribeAndMalformedFrames(t *testing.T) {
	hub, url := newTestServer(t)

	conn := dial(t, url)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe","payload":42}`)))
	subscribe(t, hub, conn, "gate_1")

	payload, _ := json.Marshal(models.ScopePayload{GateID: "gate_1"})
	require.NoError(t, conn.WriteJSON(models.Envelope{Type: models.MessageUnsubscribe, Payload: payload}))
	assert.Eventually(t, func() bool { return hub.subscriberCount("gate_1") == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_RelayFromBus(t *testing.T) {
	hub, url := newTestServer(t)
	bus := messaging.NewLocalBus()
	stop, err := hub.Relay(bus)
	require.NoError(t, err)
	defer stop()

	conn := dial(t, url)
	subscribe(t, hub, conn, models.AdminScope)

	require.NoError(t, bus.Publish(messaging.SubjectAdminUpdate, models.AdminUpdate{ID: "a1", Action: "gate.created"}))
	env := readEnvelope(t, conn)
	assert.Equal(t, models.MessageAdminUpdate, env.Type)

	var update models.AdminUpdate
	require.NoError(t, json.Unmarshal(env.Payload, &update))
	assert.Equal(t, "gate.created", update.Action)
}

func TestHub_CheckOrigin(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{AllowedOrigins: []string{"https://desk.example"}})

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "https://desk.example")
	assert.True(t, hub.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, hub.checkOrigin(req))
}
