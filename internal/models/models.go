package models

// LoginRequest - POST /auth/login
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SessionUser is the user as returned to clients on login
type SessionUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginResponse struct {
	User  SessionUser `json:"user"`
	Token string      `json:"token"`
}

// CheckinRequest - POST /tickets/checkin
type CheckinRequest struct {
	GateID         string  `json:"gateId" binding:"required"`
	ZoneID         string  `json:"zoneId" binding:"required"`
	Type           string  `json:"type" binding:"required,oneof=visitor subscriber"`
	SubscriptionID *string `json:"subscriptionId,omitempty"`
}

type CheckinResponse struct {
	Ticket    Ticket `json:"ticket"`
	ZoneState Zone   `json:"zoneState"`
}

// CheckoutRequest - POST /tickets/checkout
type CheckoutRequest struct {
	TicketID              string `json:"ticketId" binding:"required"`
	ForceConvertToVisitor bool   `json:"forceConvertToVisitor,omitempty"`
}

type CheckoutResponse struct {
	Ticket        Ticket             `json:"ticket"`
	Breakdown     []BreakdownSegment `json:"breakdown"`
	TotalAmount   float64            `json:"totalAmount"`
	DurationHours float64            `json:"durationHours"`
	ZoneState     Zone               `json:"zoneState"`
}

// SetZoneOpenRequest - PUT /admin/zones/:id/open
type SetZoneOpenRequest struct {
	Open *bool `json:"open" binding:"required"`
}

type CategoryRequest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	RateNormal  *float64 `json:"rateNormal" binding:"required,gte=0"`
	RateSpecial *float64 `json:"rateSpecial" binding:"required,gte=0"`
}

type GateRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name" binding:"required"`
	Location string `json:"location"`
}

type ZoneRequest struct {
	ID            string   `json:"id"`
	Name          string   `json:"name" binding:"required"`
	CategoryID    string   `json:"categoryId" binding:"required"`
	GateIDs       []string `json:"gateIds"`
	TotalSlots    int      `json:"totalSlots" binding:"gte=0"`
	ReservedSlots int      `json:"reservedSlots" binding:"gte=0"`
	Open          *bool    `json:"open"`
}

type RushHourRequest struct {
	WeekDay int    `json:"weekDay" binding:"gte=0,lte=6"`
	From    string `json:"from" binding:"required"`
	To      string `json:"to" binding:"required"`
}

type VacationRequest struct {
	Name string `json:"name" binding:"required"`
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

type SubscriptionRequest struct {
	ID        string `json:"id"`
	UserName  string `json:"userName" binding:"required"`
	Category  string `json:"category" binding:"required"`
	Active    *bool  `json:"active"`
	Cars      []Car  `json:"cars" binding:"required,min=1,dive"`
	StartsAt  string `json:"startsAt" binding:"required"`
	ExpiresAt string `json:"expiresAt" binding:"required"`
}

type UserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password"`
	Role     string `json:"role" binding:"required,oneof=admin employee"`
	IsActive *bool  `json:"isActive"`
}

// ParkingStateEntry is one row of GET /admin/reports/parking-state
type ParkingStateEntry struct {
	Zone
	OpenTickets     int `json:"openTickets"`
	SubscriberCount int `json:"subscriberCount"`
}

// TicketFilter - GET /admin/tickets?status=
type TicketFilter struct {
	Status string `form:"status" binding:"omitempty,oneof=open closed"`
	GateID string `form:"gateId"`
	ZoneID string `form:"zoneId"`
	Limit  int    `form:"limit"`
}
