package models

import (
	"encoding/json"
	"time"
)

// WebSocket message types
const (
	MessageSubscribe   = "subscribe"
	MessageUnsubscribe = "unsubscribe"
	MessageZoneUpdate  = "zone-update"
	MessageAdminUpdate = "admin-update"
)

// AdminScope is the subscription scope for administrative broadcasts
const AdminScope = "admin"

// Envelope is the frame shape in both directions on the live feed
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ScopePayload is the payload of subscribe and unsubscribe
type ScopePayload struct {
	GateID string `json:"gateId"`
}

// AdminUpdate is broadcast after every administrative mutation
type AdminUpdate struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	AdminID    string    `json:"adminId"`
	TargetType string    `json:"targetType,omitempty"`
	TargetID   string    `json:"targetId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// TicketClosedEvent is published once per checkout, and again when a closed
// subscriber ticket is converted to a visitor one
type TicketClosedEvent struct {
	Ticket        Ticket    `json:"ticket"`
	DurationHours float64   `json:"durationHours"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewEnvelope marshals payload into an envelope of type typ
func NewEnvelope(typ string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: typ}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: typ, Payload: raw}, nil
}
