package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "parkgate/internal/errors"
	"parkgate/internal/models"
	"parkgate/internal/search"
)

type stubAuth struct{}

func (stubAuth) Login(_ context.Context, username, password string) (*models.LoginResponse, error) {
	if username == "admin" && password == "secret" {
		return &models.LoginResponse{User: models.SessionUser{ID: "u1", Username: "admin", Role: models.RoleAdmin}, Token: "tok"}, nil
	}
	return nil, fmt.Errorf("%w: invalid username or password", apperrors.ErrUnauthorized)
}

type stubMaster struct{}

func (stubMaster) ListGates(context.Context) ([]models.Gate, error) {
	return []models.Gate{{ID: "gate_1", Name: "Main", ZoneIDs: []string{"zone_a"}}}, nil
}

func (stubMaster) ListCategories(context.Context) ([]models.Category, error) {
	return nil, nil
}

func (stubMaster) ListZones(_ context.Context, gateID string) ([]models.Zone, error) {
	if gateID == "missing" {
		return nil, fmt.Errorf("%w: gate missing", apperrors.ErrNotFound)
	}
	return []models.Zone{{ID: "zone_a", GateIDs: []string{"gate_1"}, Open: true}}, nil
}

func (stubMaster) GetSubscription(_ context.Context, id string) (*models.Subscription, error) {
	return nil, fmt.Errorf("%w: subscription %s", apperrors.ErrNotFound, id)
}

type stubTickets struct {
	checkin  func(*models.CheckinRequest) (*models.CheckinResponse, error)
	checkout func(*models.CheckoutRequest) (*models.CheckoutResponse, error)
	filter   models.TicketFilter
}

func (s *stubTickets) Checkin(_ context.Context, req *models.CheckinRequest) (*models.CheckinResponse, error) {
	return s.checkin(req)
}

func (s *stubTickets) Checkout(_ context.Context, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	return s.checkout(req)
}

func (s *stubTickets) Get(_ context.Context, id string) (*models.Ticket, error) {
	return nil, fmt.Errorf("%w: ticket %s", apperrors.ErrNotFound, id)
}

func (s *stubTickets) List(_ context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	s.filter = filter
	return nil, nil
}

// stubAdmin implements only what the tests call; anything else panics
type stubAdmin struct {
	AdminAPI
	reportQuery search.TicketQuery
	openCalls   []bool
}

func (s *stubAdmin) CreateCategory(_ context.Context, req *models.CategoryRequest) (*models.Category, error) {
	if req.Name == "dup" {
		return nil, fmt.Errorf("%w: category already exists", apperrors.ErrConflict)
	}
	return &models.Category{ID: "cat_1", Name: req.Name, RateNormal: *req.RateNormal, RateSpecial: *req.RateSpecial}, nil
}

func (s *stubAdmin) DeleteZone(_ context.Context, id string) error {
	if id == "missing" {
		return fmt.Errorf("%w: zone missing", apperrors.ErrNotFound)
	}
	return nil
}

func (s *stubAdmin) SetZoneOpen(_ context.Context, id string, open bool) (*models.Zone, error) {
	s.openCalls = append(s.openCalls, open)
	return &models.Zone{ID: id, Open: open}, nil
}

func (s *stubAdmin) TicketReport(_ context.Context, q search.TicketQuery) (*search.TicketReport, error) {
	s.reportQuery = q
	return &search.TicketReport{Total: 0, Tickets: []search.TicketDocument{}}, nil
}

func (s *stubAdmin) AuditLog(context.Context, int) ([]models.AuditEntry, error) {
	return nil, errors.New("connection refused")
}

func setupRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.POST("/auth/login", h.Login)
	r.GET("/master/gates", h.ListGates)
	r.GET("/master/zones", h.ListZones)
	r.GET("/master/categories", h.ListCategories)
	r.GET("/subscriptions/:id", h.GetSubscription)
	r.POST("/tickets/checkin", h.Checkin)
	r.POST("/tickets/checkout", h.Checkout)
	r.GET("/tickets/:id", h.GetTicket)

	admin := r.Group("/admin")
	{
		admin.POST("/categories", h.CreateCategory)
		admin.DELETE("/zones/:id", h.DeleteZone)
		admin.PUT("/zones/:id/open", h.SetZoneOpen)
		admin.GET("/tickets", h.ListTickets)
		admin.GET("/audit-log", h.AuditLog)
		admin.GET("/reports/tickets", h.TicketReport)
	}
	return r
}

func newTestHandlers() (*Handlers, *stubTickets, *stubAdmin) {
	tickets := &stubTickets{}
	admin := &stubAdmin{}
	return &Handlers{auth: stubAuth{}, master: stubMaster{}, tickets: tickets, admin: admin}, tickets, admin
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestLogin(t *testing.T) {
	h, _, _ := newTestHandlers()
	r := setupRouter(h)

	w := do(r, http.MethodPost, "/auth/login", models.LoginRequest{Username: "admin", Password: "secret"})
	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "tok", resp.Token)

	w = do(r, http.MethodPost, "/auth/login", models.LoginRequest{Username: "admin", Password: "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, errorBody(t, w), "invalid username or password")

	w = do(r, http.MethodPost, "/auth/login", map[string]string{"username": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMasterEndpoints(t *testing.T) {
	h, _, _ := newTestHandlers()
	r := setupRouter(h)

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/master/gates", http.StatusOK, `[{"id":"gate_1"`},
		{"/master/zones?gateId=gate_1", http.StatusOK, `"gateIds":["gate_1"]`},
		{"/master/zones?gateId=missing", http.StatusNotFound, `"error"`},
		{"/master/categories", http.StatusOK, `[]`},
		{"/subscriptions/sub_9", http.StatusNotFound, `subscription sub_9`},
		{"/tickets/t_9", http.StatusNotFound, `ticket t_9`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := do(r, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestCheckin(t *testing.T) {
	h, tickets, _ := newTestHandlers()
	r := setupRouter(h)

	tickets.checkin = func(req *models.CheckinRequest) (*models.CheckinResponse, error) {
		if req.ZoneID == "full" {
			return nil, fmt.Errorf("%w: no slots available for visitors", apperrors.ErrAdmissionDenied)
		}
		return &models.CheckinResponse{
			Ticket:    models.Ticket{ID: "t1", GateID: req.GateID, ZoneID: req.ZoneID, Type: req.Type},
			ZoneState: models.Zone{ID: req.ZoneID, Version: 2},
		}, nil
	}

	w := do(r, http.MethodPost, "/tickets/checkin", models.CheckinRequest{GateID: "gate_1", ZoneID: "zone_a", Type: "visitor"})
	assert.Equal(t, http.StatusCreated, w.Code)
	var resp models.CheckinResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "t1", resp.Ticket.ID)
	assert.Equal(t, int64(2), resp.ZoneState.Version)

	w = do(r, http.MethodPost, "/tickets/checkin", models.CheckinRequest{GateID: "gate_1", ZoneID: "full", Type: "visitor"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, errorBody(t, w), "no slots available")

	w = do(r, http.MethodPost, "/tickets/checkin", models.CheckinRequest{GateID: "gate_1", ZoneID: "zone_a", Type: "vip"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckout(t *testing.T) {
	h, tickets, _ := newTestHandlers()
	r := setupRouter(h)

	checkout := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	tickets.checkout = func(req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
		return &models.CheckoutResponse{
			Ticket:        models.Ticket{ID: req.TicketID, CheckoutAt: &checkout},
			Breakdown:     []models.BreakdownSegment{{RateMode: models.RateModeNormal, Hours: 2, Rate: 5, Amount: 10}},
			TotalAmount:   10,
			DurationHours: 2,
		}, nil
	}

	w := do(r, http.MethodPost, "/tickets/checkout", models.CheckoutRequest{TicketID: "t1"})
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	for _, key := range []string{"ticket", "breakdown", "totalAmount", "durationHours", "zoneState"} {
		assert.Contains(t, body, key)
	}

	w = do(r, http.MethodPost, "/tickets/checkout", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminEndpoints(t *testing.T) {
	h, tickets, admin := newTestHandlers()
	r := setupRouter(h)

	rate := 5.0
	w := do(r, http.MethodPost, "/admin/categories", models.CategoryRequest{Name: "Premium", RateNormal: &rate, RateSpecial: &rate})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodPost, "/admin/categories", models.CategoryRequest{Name: "dup", RateNormal: &rate, RateSpecial: &rate})
	assert.Equal(t, http.StatusConflict, w.Code)

	negative := -1.0
	w = do(r, http.MethodPost, "/admin/categories", models.CategoryRequest{Name: "Bad", RateNormal: &negative, RateSpecial: &rate})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodDelete, "/admin/zones/zone_a", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodDelete, "/admin/zones/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPut, "/admin/zones/zone_a/open", map[string]bool{"open": false})
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(r, http.MethodPut, "/admin/zones/zone_a/open", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []bool{false}, admin.openCalls)

	w = do(r, http.MethodGet, "/admin/tickets?status=open&gateId=gate_1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Equal(t, "open", tickets.filter.Status)
	assert.Equal(t, "gate_1", tickets.filter.GateID)

	w = do(r, http.MethodGet, "/admin/tickets?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/admin/audit-log", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to load audit log", errorBody(t, w))
}

func TestTicketReportQuery(t *testing.T) {
	h, _, admin := newTestHandlers()
	r := setupRouter(h)

	w := do(r, http.MethodGet, "/admin/reports/tickets?zoneId=zone_a&from=2024-03-01T00:00:00Z&pageSize=50", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "zone_a", admin.reportQuery.ZoneID)
	require.NotNil(t, admin.reportQuery.From)
	assert.Nil(t, admin.reportQuery.To)
	assert.Equal(t, 1, admin.reportQuery.Page)
	assert.Equal(t, 50, admin.reportQuery.PageSize)

	w = do(r, http.MethodGet, "/admin/reports/tickets?to=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/admin/reports/tickets?pageSize=1000", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
