// Package session holds the attendant's client-side state: the login that
// survives restarts and the ticket of the flow in progress.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"parkgate/internal/client"
	"parkgate/internal/logger"
	"parkgate/internal/models"
)

// Storage keys
const (
	AuthKey   = "parking-auth"
	TicketKey = "parking-ticket"
)

const loginFailed = "Login failed"

// AuthState is the persisted login
type AuthState struct {
	User            *models.SessionUser `json:"user"`
	Token           string              `json:"token"`
	IsAuthenticated bool                `json:"isAuthenticated"`
}

// Snapshot is what subscribers receive after every change
type Snapshot struct {
	Auth   AuthState
	Ticket *models.Ticket
}

type LoginResult struct {
	Success bool
	Error   string
}

// Authenticator performs the login request
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*models.LoginResponse, error)
}

type envelope struct {
	State   json.RawMessage `json:"state"`
	Version int             `json:"version"`
}

// Store is the session state container. Writes go to memory first and are
// then persisted; a storage failure is logged and never fails the caller.
type Store struct {
	api     Authenticator
	durable Storage
	tab     Storage
	logger  *slog.Logger

	mu     sync.RWMutex
	auth   AuthState
	ticket *models.Ticket
	subs   map[int]func(Snapshot)
	nextID int
}

// New restores persisted state. Unreadable state is discarded.
func New(api Authenticator, durable, tab Storage) *Store {
	s := &Store{
		api:     api,
		durable: durable,
		tab:     tab,
		logger:  logger.WithFields("component", "session"),
		subs:    make(map[int]func(Snapshot)),
	}

	var auth AuthState
	if s.load(durable, AuthKey, &auth) {
		s.auth = auth
	}
	var ticket *models.Ticket
	if s.load(tab, TicketKey, &ticket) {
		s.ticket = ticket
	}
	return s
}

func (s *Store) load(st Storage, key string, dst any) bool {
	raw, err := st.Read(key)
	if errors.Is(err, ErrNotStored) {
		return false
	}
	if err != nil {
		s.logger.Warn("Failed to read session state", "key", key, "error", err)
		return false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.State == nil {
		s.logger.Warn("Discarding unreadable session state", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(env.State, dst); err != nil {
		s.logger.Warn("Discarding unreadable session state", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) persist(st Storage, key string, state any) {
	raw, err := json.Marshal(state)
	if err == nil {
		raw, err = json.Marshal(envelope{State: raw})
	}
	if err == nil {
		err = st.Write(key, raw)
	}
	if err != nil {
		s.logger.Error("Failed to persist session state", "key", key, "error", err)
	}
}

// Login authenticates against the API. On failure the state is left as it was.
func (s *Store) Login(ctx context.Context, username, password string) LoginResult {
	resp, err := s.api.Login(ctx, username, password)
	if err != nil {
		return LoginResult{Error: loginError(err)}
	}

	user := resp.User
	s.mu.Lock()
	s.auth = AuthState{User: &user, Token: resp.Token, IsAuthenticated: true}
	s.persist(s.durable, AuthKey, s.auth)
	s.mu.Unlock()

	s.logger.Info("Logged in", "username", user.Username, "role", user.Role)
	s.notify()
	return LoginResult{Success: true}
}

func loginError(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return loginFailed
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return loginFailed
}

// Logout clears the login unconditionally
func (s *Store) Logout() {
	s.mu.Lock()
	s.auth = AuthState{}
	if err := s.durable.Delete(AuthKey); err != nil {
		s.logger.Error("Failed to remove session state", "key", AuthKey, "error", err)
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) Auth() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.auth
	if out.User != nil {
		user := *out.User
		out.User = &user
	}
	return out
}

// Token implements client.TokenSource
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth.Token
}

func (s *Store) SetTicket(t models.Ticket) {
	s.mu.Lock()
	s.ticket = &t
	s.persist(s.tab, TicketKey, s.ticket)
	s.mu.Unlock()
	s.notify()
}

// UpdateCheckout stamps the held ticket as checked out. Without a held
// ticket it does nothing.
func (s *Store) UpdateCheckout(at time.Time) {
	s.mu.Lock()
	if s.ticket == nil {
		s.mu.Unlock()
		return
	}
	t := *s.ticket
	t.CheckoutAt = &at
	s.ticket = &t
	s.persist(s.tab, TicketKey, s.ticket)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) ClearTicket() {
	s.mu.Lock()
	s.ticket = nil
	if err := s.tab.Delete(TicketKey); err != nil {
		s.logger.Error("Failed to remove session state", "key", TicketKey, "error", err)
	}
	s.mu.Unlock()
	s.notify()
}

// Ticket returns a copy of the held ticket, or nil
func (s *Store) Ticket() *models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ticket == nil {
		return nil
	}
	t := *s.ticket
	return &t
}

// Subscribe registers fn for every change. The returned func unregisters it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	snap := Snapshot{Auth: s.Auth(), Ticket: s.Ticket()}
	for _, fn := range fns {
		fn(snap)
	}
}
