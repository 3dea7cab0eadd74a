package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkgate/internal/client"
	"parkgate/internal/models"
)

type stubAuth struct {
	resp *models.LoginResponse
	err  error
}

func (s stubAuth) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	return s.resp, s.err
}

func okAuth() stubAuth {
	return stubAuth{resp: &models.LoginResponse{
		Token: "jwt",
		User:  models.SessionUser{ID: "u1", Username: "anna", Role: models.RoleEmployee},
	}}
}

func sampleTicket() models.Ticket {
	return models.Ticket{
		ID:        "t-1",
		GateID:    "gate_1",
		ZoneID:    "zone_a",
		Type:      models.TicketVisitor,
		CheckinAt: time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	}
}

func TestLoginPersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	durable, err := NewFileStorage(dir)
	require.NoError(t, err)

	s := New(okAuth(), durable, NewMemoryStorage())
	res := s.Login(context.Background(), "anna", "secret")
	require.True(t, res.Success)
	assert.Empty(t, res.Error)
	assert.Equal(t, "jwt", s.Token())

	raw, err := os.ReadFile(filepath.Join(dir, AuthKey+".json"))
	require.NoError(t, err)
	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.JSONEq(t, `0`, string(env["version"]))
	assert.Contains(t, string(env["state"]), `"isAuthenticated":true`)

	restored := New(okAuth(), durable, NewMemoryStorage())
	auth := restored.Auth()
	assert.True(t, auth.IsAuthenticated)
	require.NotNil(t, auth.User)
	assert.Equal(t, "anna", auth.User.Username)

	restored.Logout()
	assert.Equal(t, AuthState{}, restored.Auth())
	_, err = os.Stat(filepath.Join(dir, AuthKey+".json"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoginErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"api error field", &client.APIError{Status: 401, Message: "Invalid credentials"}, "Invalid credentials"},
		{"api error without body", &client.APIError{Status: 500}, "Login failed"},
		{"transport", errors.New("dial tcp: connection refused"), "dial tcp: connection refused"},
		{"empty transport text", errors.New(""), "Login failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(stubAuth{err: tt.err}, NewMemoryStorage(), NewMemoryStorage())
			res := s.Login(context.Background(), "anna", "bad")
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Error)
			assert.False(t, s.Auth().IsAuthenticated)
		})
	}
}

func TestFailedLoginKeepsPreviousState(t *testing.T) {
	durable := NewMemoryStorage()
	s := New(okAuth(), durable, NewMemoryStorage())
	require.True(t, s.Login(context.Background(), "anna", "secret").Success)

	s.api = stubAuth{err: &client.APIError{Status: 401, Message: "nope"}}
	assert.False(t, s.Login(context.Background(), "anna", "bad").Success)
	assert.Equal(t, "jwt", s.Token())
}

func TestTicketTransitions(t *testing.T) {
	s := New(okAuth(), NewMemoryStorage(), NewMemoryStorage())

	s.UpdateCheckout(time.Now())
	assert.Nil(t, s.Ticket(), "update without a ticket is a no-op")

	ticket := sampleTicket()
	s.SetTicket(ticket)
	checkout := ticket.CheckinAt.Add(2 * time.Hour)
	s.UpdateCheckout(checkout)

	got := s.Ticket()
	require.NotNil(t, got)
	require.NotNil(t, got.CheckoutAt)
	assert.True(t, checkout.Equal(*got.CheckoutAt))
	got.CheckoutAt = nil
	assert.Equal(t, ticket, *got)

	s.ClearTicket()
	assert.Nil(t, s.Ticket())
}

func TestTicketScopedToTabStorage(t *testing.T) {
	tab := NewMemoryStorage()
	s := New(okAuth(), NewMemoryStorage(), tab)
	s.SetTicket(sampleTicket())

	sameTab := New(okAuth(), NewMemoryStorage(), tab)
	require.NotNil(t, sameTab.Ticket())
	assert.Equal(t, "t-1", sameTab.Ticket().ID)

	otherTab := New(okAuth(), NewMemoryStorage(), NewMemoryStorage())
	assert.Nil(t, otherTab.Ticket())
}

func TestCorruptStateDiscarded(t *testing.T) {
	durable := NewMemoryStorage()
	require.NoError(t, durable.Write(AuthKey, []byte("{broken")))

	s := New(okAuth(), durable, NewMemoryStorage())
	assert.False(t, s.Auth().IsAuthenticated)
}

func TestSubscribe(t *testing.T) {
	s := New(okAuth(), NewMemoryStorage(), NewMemoryStorage())

	var snaps []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) { snaps = append(snaps, snap) })

	s.Login(context.Background(), "anna", "secret")
	s.SetTicket(sampleTicket())
	unsubscribe()
	s.ClearTicket()

	require.Len(t, snaps, 2)
	assert.True(t, snaps[0].Auth.IsAuthenticated)
	assert.Nil(t, snaps[0].Ticket)
	require.NotNil(t, snaps[1].Ticket)
}

func TestFileStorageRejectsBadKeys(t *testing.T) {
	st, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, st.Write("../escape", []byte("{}")))
	_, err = st.Read("missing")
	assert.ErrorIs(t, err, ErrNotStored)
	assert.NoError(t, st.Delete("missing"))
}
