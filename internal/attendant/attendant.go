// Package attendant implements the gate attendant flows on top of the REST
// client, the session store and the local zone map.
package attendant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parkgate/internal/models"
)

// API is the part of the REST client the flows use
type API interface {
	Zones(ctx context.Context, gateID string) ([]models.Zone, error)
	Subscription(ctx context.Context, id string) (*models.Subscription, error)
	Checkin(ctx context.Context, req models.CheckinRequest) (*models.CheckinResponse, error)
	Checkout(ctx context.Context, req models.CheckoutRequest) (*models.CheckoutResponse, error)
}

// TicketStore holds the ticket of the flow in progress
type TicketStore interface {
	SetTicket(t models.Ticket)
	UpdateCheckout(at time.Time)
	ClearTicket()
}

// ValidationError is bad input caught before any request is made
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrStale is returned when a flow moved on while a request was in flight.
// The response has been dropped.
var ErrStale = errors.New("attendant: result dropped, flow has moved on")

// ErrWrongStep is returned for an action the current step does not offer
var ErrWrongStep = errors.New("attendant: action not available in this step")

// DeniedError means the zone cannot take this admission right now
type DeniedError struct {
	ZoneID string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("zone %s: %s", e.ZoneID, e.Reason)
}
