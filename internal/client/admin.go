package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"parkgate/internal/models"
	"parkgate/internal/search"
)

func (c *Client) AdminCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	return out, c.do(ctx, http.MethodGet, "/admin/categories", nil, &out)
}

func (c *Client) CreateCategory(ctx context.Context, req models.CategoryRequest) (*models.Category, error) {
	var out models.Category
	return &out, c.do(ctx, http.MethodPost, "/admin/categories", req, &out)
}

func (c *Client) UpdateCategory(ctx context.Context, id string, req models.CategoryRequest) (*models.Category, error) {
	var out models.Category
	return &out, c.do(ctx, http.MethodPut, "/admin/categories/"+url.PathEscape(id), req, &out)
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/categories/"+url.PathEscape(id), nil, nil)
}

func (c *Client) AdminZones(ctx context.Context) ([]models.Zone, error) {
	var out []models.Zone
	return out, c.do(ctx, http.MethodGet, "/admin/zones", nil, &out)
}

func (c *Client) CreateZone(ctx context.Context, req models.ZoneRequest) (*models.Zone, error) {
	var out models.Zone
	return &out, c.do(ctx, http.MethodPost, "/admin/zones", req, &out)
}

func (c *Client) UpdateZone(ctx context.Context, id string, req models.ZoneRequest) (*models.Zone, error) {
	var out models.Zone
	return &out, c.do(ctx, http.MethodPut, "/admin/zones/"+url.PathEscape(id), req, &out)
}

func (c *Client) DeleteZone(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/zones/"+url.PathEscape(id), nil, nil)
}

func (c *Client) SetZoneOpen(ctx context.Context, id string, open bool) (*models.Zone, error) {
	var out models.Zone
	return &out, c.do(ctx, http.MethodPut, "/admin/zones/"+url.PathEscape(id)+"/open", models.SetZoneOpenRequest{Open: &open}, &out)
}

func (c *Client) AdminGates(ctx context.Context) ([]models.Gate, error) {
	var out []models.Gate
	return out, c.do(ctx, http.MethodGet, "/admin/gates", nil, &out)
}

func (c *Client) CreateGate(ctx context.Context, req models.GateRequest) (*models.Gate, error) {
	var out models.Gate
	return &out, c.do(ctx, http.MethodPost, "/admin/gates", req, &out)
}

func (c *Client) UpdateGate(ctx context.Context, id string, req models.GateRequest) (*models.Gate, error) {
	var out models.Gate
	return &out, c.do(ctx, http.MethodPut, "/admin/gates/"+url.PathEscape(id), req, &out)
}

func (c *Client) DeleteGate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/gates/"+url.PathEscape(id), nil, nil)
}

func (c *Client) RushHours(ctx context.Context) ([]models.RushHour, error) {
	var out []models.RushHour
	return out, c.do(ctx, http.MethodGet, "/admin/rush-hours", nil, &out)
}

func (c *Client) CreateRushHour(ctx context.Context, req models.RushHourRequest) (*models.RushHour, error) {
	var out models.RushHour
	return &out, c.do(ctx, http.MethodPost, "/admin/rush-hours", req, &out)
}

func (c *Client) UpdateRushHour(ctx context.Context, id string, req models.RushHourRequest) (*models.RushHour, error) {
	var out models.RushHour
	return &out, c.do(ctx, http.MethodPut, "/admin/rush-hours/"+url.PathEscape(id), req, &out)
}

func (c *Client) DeleteRushHour(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/rush-hours/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Vacations(ctx context.Context) ([]models.Vacation, error) {
	var out []models.Vacation
	return out, c.do(ctx, http.MethodGet, "/admin/vacations", nil, &out)
}

func (c *Client) CreateVacation(ctx context.Context, req models.VacationRequest) (*models.Vacation, error) {
	var out models.Vacation
	return &out, c.do(ctx, http.MethodPost, "/admin/vacations", req, &out)
}

func (c *Client) UpdateVacation(ctx context.Context, id string, req models.VacationRequest) (*models.Vacation, error) {
	var out models.Vacation
	return &out, c.do(ctx, http.MethodPut, "/admin/vacations/"+url.PathEscape(id), req, &out)
}

func (c *Client) DeleteVacation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/vacations/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Subscriptions(ctx context.Context) ([]models.Subscription, error) {
	var out []models.Subscription
	return out, c.do(ctx, http.MethodGet, "/admin/subscriptions", nil, &out)
}

func (c *Client) CreateSubscription(ctx context.Context, req models.SubscriptionRequest) (*models.Subscription, error) {
	var out models.Subscription
	return &out, c.do(ctx, http.MethodPost, "/admin/subscriptions", req, &out)
}

func (c *Client) UpdateSubscription(ctx context.Context, id string, req models.SubscriptionRequest) (*models.Subscription, error) {
	var out models.Subscription
	return &out, c.do(ctx, http.MethodPut, "/admin/subscriptions/"+url.PathEscape(id), req, &out)
}

func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/subscriptions/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var out []models.User
	return out, c.do(ctx, http.MethodGet, "/admin/users", nil, &out)
}

func (c *Client) CreateUser(ctx context.Context, req models.UserRequest) (*models.User, error) {
	var out models.User
	return &out, c.do(ctx, http.MethodPost, "/admin/users", req, &out)
}

func (c *Client) UpdateUser(ctx context.Context, id string, req models.UserRequest) (*models.User, error) {
	var out models.User
	return &out, c.do(ctx, http.MethodPut, "/admin/users/"+url.PathEscape(id), req, &out)
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/admin/users/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ParkingState(ctx context.Context) ([]models.ParkingStateEntry, error) {
	var out []models.ParkingStateEntry
	return out, c.do(ctx, http.MethodGet, "/admin/reports/parking-state", nil, &out)
}

// Tickets lists tickets by status ("open", "closed" or "" for all)
func (c *Client) Tickets(ctx context.Context, status string) ([]models.Ticket, error) {
	path := "/admin/tickets"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var out []models.Ticket
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

func (c *Client) AuditLog(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	return out, c.do(ctx, http.MethodGet, "/admin/audit-log?limit="+strconv.Itoa(limit), nil, &out)
}

func (c *Client) TicketReport(ctx context.Context, q search.TicketQuery) (*search.TicketReport, error) {
	params := url.Values{}
	for key, value := range map[string]string{"gateId": q.GateID, "zoneId": q.ZoneID, "type": q.Type} {
		if value != "" {
			params.Set(key, value)
		}
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.From != nil {
		params.Set("from", q.From.Format(time.RFC3339))
	}
	if q.To != nil {
		params.Set("to", q.To.Format(time.RFC3339))
	}

	path := "/admin/reports/tickets"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var out search.TicketReport
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
