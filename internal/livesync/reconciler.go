package livesync

import (
	"context"
	"log/slog"
	"sync"

	"parkgate/internal/client"
	"parkgate/internal/logger"
	"parkgate/internal/models"
	"parkgate/internal/occupancy"
)

// AuditTrailSize bounds the admin updates kept in memory
const AuditTrailSize = 50

// AuditTrail holds the most recent admin updates, newest first
type AuditTrail struct {
	mu      sync.Mutex
	limit   int
	entries []models.AdminUpdate
}

func NewAuditTrail(limit int) *AuditTrail {
	if limit <= 0 {
		limit = AuditTrailSize
	}
	return &AuditTrail{limit: limit}
}

func (a *AuditTrail) Push(u models.AdminUpdate) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append([]models.AdminUpdate{u}, a.entries...)
	if len(a.entries) > a.limit {
		a.entries = a.entries[:a.limit]
	}
}

func (a *AuditTrail) Entries() []models.AdminUpdate {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AdminUpdate, len(a.entries))
	copy(out, a.entries)
	return out
}

// Refetcher reloads the full zone list after an admin change
type Refetcher interface {
	RefetchZones(ctx context.Context) ([]models.Zone, error)
}

// APIRefetcher reloads zones over REST: the gate's zones, or every zone for
// the admin scope
type APIRefetcher struct {
	API   *client.Client
	Scope string
}

func (r APIRefetcher) RefetchZones(ctx context.Context) ([]models.Zone, error) {
	if r.Scope == models.AdminScope {
		return r.API.AdminZones(ctx)
	}
	return r.API.Zones(ctx, r.Scope)
}

// Reconciler applies feed events to the local zone map
type Reconciler struct {
	zones   *occupancy.ZoneMap
	trail   *AuditTrail
	refetch Refetcher
	logger  *slog.Logger
}

func NewReconciler(zones *occupancy.ZoneMap, trail *AuditTrail, refetch Refetcher) *Reconciler {
	return &Reconciler{
		zones:   zones,
		trail:   trail,
		refetch: refetch,
		logger:  logger.WithFields("component", "livesync.reconciler"),
	}
}

// Handle applies one event and reports whether local state changed
func (r *Reconciler) Handle(ctx context.Context, ev Event) bool {
	switch ev := ev.(type) {
	case ZoneUpdate:
		if !r.zones.Apply(ev.Zone) {
			r.logger.Debug("Stale zone update ignored", "zone_id", ev.Zone.ID, "version", ev.Zone.Version)
			return false
		}
		return true
	case AdminUpdate:
		r.trail.Push(ev.Update)
		if r.refetch == nil {
			return true
		}
		zones, err := r.refetch.RefetchZones(ctx)
		if err != nil {
			r.logger.Warn("Zone refetch after admin update failed", "action", ev.Update.Action, "error", err)
			return true
		}
		r.zones.ReplaceAll(zones)
		return true
	}
	return false
}

// Run handles events until ctx is done
func (r *Reconciler) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			r.Handle(ctx, ev)
		}
	}
}
