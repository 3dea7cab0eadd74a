package attendant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"parkgate/internal/logger"
	"parkgate/internal/models"
	"parkgate/internal/occupancy"
)

// ZoneOption is a zone as shown on the check-in screen
type ZoneOption struct {
	Zone       models.Zone
	Selectable bool
	Reason     string
}

// GateDesk is the check-in flow of one gate
type GateDesk struct {
	gateID  string
	api     API
	zones   *occupancy.ZoneMap
	tickets TicketStore
	now     func() time.Time
	logger  *slog.Logger

	mu           sync.Mutex
	tab          string
	subscription *models.Subscription
	generation   uint64
}

func NewGateDesk(gateID string, api API, zones *occupancy.ZoneMap, tickets TicketStore) *GateDesk {
	return &GateDesk{
		gateID:  gateID,
		api:     api,
		zones:   zones,
		tickets: tickets,
		now:     time.Now,
		tab:     models.TicketVisitor,
		logger:  logger.WithFields("component", "gatedesk", "gate_id", gateID),
	}
}

func (d *GateDesk) GateID() string {
	return d.gateID
}

// LoadZones replaces the local zone map with the gate's current zones
func (d *GateDesk) LoadZones(ctx context.Context) error {
	zones, err := d.api.Zones(ctx, d.gateID)
	if err != nil {
		return fmt.Errorf("failed to load zones: %w", err)
	}
	d.zones.ReplaceAll(zones)
	return nil
}

// SetTab switches between visitor and subscriber check-in. Any verified or
// pending subscription is dropped.
func (d *GateDesk) SetTab(kind string) error {
	if kind != models.TicketVisitor && kind != models.TicketSubscriber {
		return &ValidationError{Field: "type", Message: "must be visitor or subscriber"}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tab = kind
	d.subscription = nil
	d.generation++
	return nil
}

func (d *GateDesk) Tab() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tab
}

// Subscription returns the verified subscription, if any
func (d *GateDesk) Subscription() *models.Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.subscription
}

// VerifySubscription looks up id. A result that arrives after the tab was
// switched is dropped with ErrStale.
func (d *GateDesk) VerifySubscription(ctx context.Context, id string) (*models.Subscription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &ValidationError{Field: "subscriptionId", Message: "Please enter a subscription ID"}
	}

	d.mu.Lock()
	gen := d.generation
	d.mu.Unlock()

	sub, err := d.api.Subscription(ctx, id)

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.generation {
		return nil, ErrStale
	}
	if err != nil {
		d.subscription = nil
		return nil, fmt.Errorf("invalid subscription ID: %w", err)
	}
	d.subscription = sub
	return sub, nil
}

// Options lists the gate's zones with whether each can be picked on the
// current tab
func (d *GateDesk) Options() []ZoneOption {
	d.mu.Lock()
	kind, sub := d.tab, d.subscription
	d.mu.Unlock()

	now := d.now()
	zones := d.zones.List()
	out := make([]ZoneOption, 0, len(zones))
	for _, z := range zones {
		if !z.HasGate(d.gateID) {
			continue
		}
		opt := ZoneOption{Zone: z, Selectable: occupancy.Selectable(z, kind, sub, now)}
		if !opt.Selectable {
			opt.Reason = occupancy.DenyReason(z, kind, sub, now)
		}
		out = append(out, opt)
	}
	return out
}

// Checkin admits a vehicle into zoneID. The local zone is updated
// optimistically and then replaced by the server's zone state.
func (d *GateDesk) Checkin(ctx context.Context, zoneID string) (*models.CheckinResponse, error) {
	if strings.TrimSpace(zoneID) == "" {
		return nil, &ValidationError{Field: "zoneId", Message: "Please select a zone"}
	}

	d.mu.Lock()
	kind, sub, gen := d.tab, d.subscription, d.generation
	d.mu.Unlock()

	req := models.CheckinRequest{GateID: d.gateID, ZoneID: zoneID, Type: kind}
	if kind == models.TicketSubscriber {
		if sub == nil {
			return nil, &ValidationError{Field: "subscriptionId", Message: "Please verify your subscription first"}
		}
		req.SubscriptionID = &sub.ID
	}

	prev, ok := d.zones.Get(zoneID)
	if !ok {
		return nil, fmt.Errorf("zone %s is not shown at gate %s", zoneID, d.gateID)
	}
	if reason := occupancy.DenyReason(prev, kind, sub, d.now()); reason != "" {
		return nil, &DeniedError{ZoneID: zoneID, Reason: reason}
	}

	d.zones.AdmitLocal(zoneID, kind)

	resp, err := d.api.Checkin(ctx, req)
	if err != nil {
		// Same version as the optimistic copy, so this only undoes our own write
		d.zones.Apply(prev)
		return nil, err
	}

	d.zones.Apply(resp.ZoneState)
	d.tickets.SetTicket(resp.Ticket)
	d.logger.Info("Vehicle checked in", "ticket_id", resp.Ticket.ID, "zone_id", zoneID, "type", kind)

	d.mu.Lock()
	if gen == d.generation && kind == models.TicketSubscriber {
		d.subscription = nil
		d.generation++
	}
	d.mu.Unlock()
	return resp, nil
}
