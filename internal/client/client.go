// Package client is the typed REST client used by attendant tools and the
// smoke validator.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"parkgate/internal/models"
)

// TokenSource supplies the bearer token for each request. An empty token
// sends no Authorization header.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// APIError is a non-2xx response. Message holds the response's "error" or
// "message" field and is empty when the body carried neither.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

func New(cfg Config, tokens TokenSource) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
	}
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Error
		if apiErr.Message == "" {
			apiErr.Message = body.Message
		}
	}
	return apiErr
}

// Auth

func (c *Client) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	var out models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Username: username, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Master data

func (c *Client) Gates(ctx context.Context) ([]models.Gate, error) {
	var out []models.Gate
	return out, c.do(ctx, http.MethodGet, "/master/gates", nil, &out)
}

// Zones lists the zones of a gate, or every zone when gateID is empty
func (c *Client) Zones(ctx context.Context, gateID string) ([]models.Zone, error) {
	path := "/master/zones"
	if gateID != "" {
		path += "?gateId=" + url.QueryEscape(gateID)
	}
	var out []models.Zone
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

func (c *Client) Categories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	return out, c.do(ctx, http.MethodGet, "/master/categories", nil, &out)
}

func (c *Client) Subscription(ctx context.Context, id string) (*models.Subscription, error) {
	var out models.Subscription
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tickets

func (c *Client) Checkin(ctx context.Context, req models.CheckinRequest) (*models.CheckinResponse, error) {
	var out models.CheckinResponse
	if err := c.do(ctx, http.MethodPost, "/tickets/checkin", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Checkout(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	var out models.CheckoutResponse
	if err := c.do(ctx, http.MethodPost, "/tickets/checkout", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Ticket(ctx context.Context, id string) (*models.Ticket, error) {
	var out models.Ticket
	if err := c.do(ctx, http.MethodGet, "/tickets/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
