package models

import (
	"time"
)

const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// Ticket types
const (
	TicketVisitor    = "visitor"
	TicketSubscriber = "subscriber"
)

// Breakdown rate modes
const (
	RateModeNormal  = "normal"
	RateModeSpecial = "special"
)

// User represents an attendant or administrator account
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	IsActive     bool      `json:"isActive" db:"is_active"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Category holds the rate table shared by its zones
type Category struct {
	ID          string  `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Description string  `json:"description" db:"description"`
	RateNormal  float64 `json:"rateNormal" db:"rate_normal"`
	RateSpecial float64 `json:"rateSpecial" db:"rate_special"`
}

// Gate is a physical access point
type Gate struct {
	ID       string   `json:"id" db:"id"`
	Name     string   `json:"name" db:"name"`
	Location string   `json:"location" db:"location"`
	ZoneIDs  []string `json:"zoneIds"`
}

// Zone is a priced, capacity-bounded parking area. Rates are copied from the
// zone's category when the snapshot is read.
type Zone struct {
	ID                      string    `json:"id" db:"id"`
	Name                    string    `json:"name" db:"name"`
	CategoryID              string    `json:"categoryId" db:"category_id"`
	GateIDs                 []string  `json:"gateIds" db:"gate_ids"`
	TotalSlots              int       `json:"totalSlots" db:"total_slots"`
	ReservedSlots           int       `json:"reservedSlots" db:"reserved_slots"`
	Occupied                int       `json:"occupied" db:"occupied"`
	Free                    int       `json:"free" db:"free"`
	Reserved                int       `json:"reserved" db:"reserved"`
	AvailableForVisitors    int       `json:"availableForVisitors" db:"available_for_visitors"`
	AvailableForSubscribers int       `json:"availableForSubscribers" db:"available_for_subscribers"`
	RateNormal              float64   `json:"rateNormal"`
	RateSpecial             float64   `json:"rateSpecial"`
	Open                    bool      `json:"open" db:"open"`
	SpecialActive           bool      `json:"specialActive"`
	Version                 int64     `json:"version" db:"version"`
	UpdatedAt               time.Time `json:"updatedAt" db:"updated_at"`
}

// HasGate reports whether the zone is reachable from the gate
func (z *Zone) HasGate(gateID string) bool {
	for _, id := range z.GateIDs {
		if id == gateID {
			return true
		}
	}
	return false
}

// RushHour is a weekly recurring special-rate window. From and To are "HH:MM".
type RushHour struct {
	ID      string `json:"id" db:"id"`
	WeekDay int    `json:"weekDay" db:"week_day"`
	From    string `json:"from" db:"from_time"`
	To      string `json:"to" db:"to_time"`
}

// Vacation is a special-rate window over whole calendar days. From and To are "YYYY-MM-DD", both inclusive.
type Vacation struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	From string `json:"from" db:"from_date"`
	To   string `json:"to" db:"to_date"`
}

// Car registered on a subscription
type Car struct {
	Plate string `json:"plate" db:"plate" binding:"required"`
	Brand string `json:"brand" db:"brand"`
	Model string `json:"model" db:"model"`
	Color string `json:"color" db:"color"`
}

// Subscription grants subscriber admission to zones of one category
type Subscription struct {
	ID        string    `json:"id" db:"id"`
	UserName  string    `json:"userName" db:"user_name"`
	Category  string    `json:"category" db:"category_id"`
	Active    bool      `json:"active" db:"active"`
	Cars      []Car     `json:"cars"`
	StartsAt  time.Time `json:"startsAt" db:"starts_at"`
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`
}

// Usable reports whether the subscription is active and within its validity window at now
func (s *Subscription) Usable(now time.Time) bool {
	if s == nil || !s.Active {
		return false
	}
	return !now.Before(s.StartsAt) && !now.After(s.ExpiresAt)
}

// BreakdownSegment is one contiguous sub-interval priced under a single rate
type BreakdownSegment struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Hours    float64   `json:"hours"`
	RateMode string    `json:"rateMode"`
	Rate     float64   `json:"rate"`
	Amount   float64   `json:"amount"`
}

// Ticket is a single parking session
type Ticket struct {
	ID             string             `json:"id" db:"id"`
	GateID         string             `json:"gateId" db:"gate_id"`
	ZoneID         string             `json:"zoneId" db:"zone_id"`
	Type           string             `json:"type" db:"type"`
	SubscriptionID *string            `json:"subscriptionId,omitempty" db:"subscription_id"`
	CheckinAt      time.Time          `json:"checkinAt" db:"checkin_at"`
	CheckoutAt     *time.Time         `json:"checkoutAt" db:"checkout_at"`
	TotalAmount    *float64           `json:"totalAmount,omitempty" db:"total_amount"`
	Breakdown      []BreakdownSegment `json:"breakdown,omitempty" db:"breakdown"`
}

// IsOpen reports whether the ticket has not been checked out yet
func (t *Ticket) IsOpen() bool {
	return t.CheckoutAt == nil
}

// AuditEntry records one administrative action
type AuditEntry struct {
	ID         string    `json:"id" db:"id"`
	Action     string    `json:"action" db:"action"`
	AdminID    string    `json:"adminId" db:"admin_id"`
	TargetType string    `json:"targetType,omitempty" db:"target_type"`
	TargetID   string    `json:"targetId,omitempty" db:"target_id"`
	Timestamp  time.Time `json:"timestamp" db:"created_at"`
}
