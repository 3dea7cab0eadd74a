package service

import (
	"context"
	"time"

	"parkgate/internal/cache"
	"parkgate/internal/config"
	"parkgate/internal/logger"
	"parkgate/internal/messaging"
	"parkgate/internal/models"
	"parkgate/internal/pricing"
	"parkgate/internal/repository"
	"parkgate/internal/search"
)

type Services struct {
	Auth      *AuthService
	Master    *MasterService
	Tickets   *TicketService
	Admin     *AdminService
	Reconcile *ReconcileService
}

// WindowReader lists the special-rate windows
type WindowReader interface {
	ListRushHours(ctx context.Context) ([]models.RushHour, error)
	ListVacations(ctx context.Context) ([]models.Vacation, error)
}

// SubscriptionReader looks subscriptions up by id
type SubscriptionReader interface {
	GetByID(ctx context.Context, id string) (*models.Subscription, error)
}

// ZoneCache is the per-gate zone listing cache
type ZoneCache interface {
	GetGateZones(ctx context.Context, gateID string) ([]models.Zone, bool, error)
	SetGateZones(ctx context.Context, gateID string, zones []models.Zone) error
	InvalidateGates(ctx context.Context, gateIDs ...string) error
}

// NewServices wires every service. zoneCache and archive may be nil when
// redis or elasticsearch are disabled.
func NewServices(cfg *config.Config, repos *repository.Repositories, bus messaging.Publisher, zoneCache *cache.ZoneCache, archive *search.TicketArchive) *Services {
	var zc ZoneCache
	if zoneCache != nil {
		zc = zoneCache
	}
	var ta TicketSearcher
	if archive != nil {
		ta = archive
	}

	n := &notifier{bus: bus, cache: zc}
	windows := &windowLoader{reader: repos.Windows, location: cfg.Location()}

	return &Services{
		Auth:      NewAuthService(repos.Users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Master:    NewMasterService(repos.Gates, repos.Categories, repos.Zones, repos.Subscriptions, windows, zc),
		Tickets:   NewTicketService(repos.Tickets, repos.Subscriptions, windows, n),
		Admin:     NewAdminService(repos, windows, n, ta),
		Reconcile: NewReconcileService(repos.Zones, windows, n),
	}
}

// windowLoader resolves the pricing windows in the parking location
type windowLoader struct {
	reader   WindowReader
	location *time.Location
}

func (w *windowLoader) load(ctx context.Context) (pricing.Windows, error) {
	rushHours, err := w.reader.ListRushHours(ctx)
	if err != nil {
		return pricing.Windows{}, err
	}
	vacations, err := w.reader.ListVacations(ctx)
	if err != nil {
		return pricing.Windows{}, err
	}
	return pricing.Windows{RushHours: rushHours, Vacations: vacations, Location: w.location}, nil
}

// markSpecial sets SpecialActive on every zone for now
func markSpecial(zones []models.Zone, windows pricing.Windows, now time.Time) {
	special := pricing.IsSpecialAt(now, windows)
	for i := range zones {
		zones[i].SpecialActive = special
	}
}

// notifier publishes domain events. Publication failures are logged and never
// fail the operation that triggered them.
type notifier struct {
	bus   messaging.Publisher
	cache ZoneCache
}

func (n *notifier) invalidate(ctx context.Context, gateIDs []string) {
	if n.cache == nil || len(gateIDs) == 0 {
		return
	}
	if err := n.cache.InvalidateGates(ctx, gateIDs...); err != nil {
		logger.WithContext(ctx).Warn("Failed to invalidate zone cache", "error", err, "gates", gateIDs)
	}
}

func (n *notifier) zoneChanged(ctx context.Context, zone models.Zone) {
	n.invalidate(ctx, zone.GateIDs)
	if err := n.bus.Publish(messaging.SubjectZoneUpdate, zone); err != nil {
		logger.WithContext(ctx).Error("Failed to publish zone update",
			"error", err,
			"zone_id", zone.ID,
			"event_type", messaging.SubjectZoneUpdate)
	}
}

func (n *notifier) ticketClosed(ctx context.Context, event models.TicketClosedEvent) {
	if err := n.bus.Publish(messaging.SubjectTicketClosed, event); err != nil {
		logger.WithContext(ctx).Error("Failed to publish ticket closed event",
			"error", err,
			"ticket_id", event.Ticket.ID,
			"event_type", messaging.SubjectTicketClosed)
	}
}

func (n *notifier) adminAction(ctx context.Context, update models.AdminUpdate) {
	if err := n.bus.Publish(messaging.SubjectAdminUpdate, update); err != nil {
		logger.WithContext(ctx).Error("Failed to publish admin update",
			"error", err,
			"action", update.Action,
			"event_type", messaging.SubjectAdminUpdate)
	}
}
