package service

import (
	"context"
	"fmt"
	"time"

	"parkgate/internal/logger"
	"parkgate/internal/metrics"
	"parkgate/internal/models"
	"parkgate/internal/occupancy"
	"parkgate/internal/repository"
)

// ZoneMutator is the zone storage the reconciliation pass needs
type ZoneMutator interface {
	List(ctx context.Context) ([]models.Zone, error)
	Mutate(ctx context.Context, id string, fn repository.ZoneMutator) (*models.Zone, error)
}

// ReconcileService rebuilds zone counters from the tickets that are actually
// open, correcting drift left by clamped or lost updates
type ReconcileService struct {
	zones   ZoneMutator
	windows *windowLoader
	notify  *notifier
	now     func() time.Time
}

func NewReconcileService(zones ZoneMutator, windows *windowLoader, notify *notifier) *ReconcileService {
	return &ReconcileService{zones: zones, windows: windows, notify: notify, now: time.Now}
}

// ReconcileAll recomputes every zone and returns the ids of the zones whose
// counters changed. A failing zone is logged and skipped.
func (s *ReconcileService) ReconcileAll(ctx context.Context) ([]string, error) {
	zones, err := s.zones.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}

	var corrected []models.Zone
	for _, z := range zones {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var changed bool
		zone, err := s.zones.Mutate(ctx, z.ID, func(zone models.Zone, open repository.OpenCounts) (models.Zone, bool, error) {
			next := occupancy.Recompute(zone, open.Visitors, open.Subscribers)
			changed = countersDiffer(zone, next)
			return next, changed, nil
		})
		if err != nil {
			logger.WithContext(ctx).Error("Failed to reconcile zone", "error", err, "zone_id", z.ID)
			continue
		}
		if zone != nil && changed {
			corrected = append(corrected, *zone)
		}
	}

	if len(corrected) > 0 {
		if windows, err := s.windows.load(ctx); err == nil {
			markSpecial(corrected, windows, s.now())
		}
	}
	ids := make([]string, 0, len(corrected))
	for _, z := range corrected {
		metrics.ReconciledZones.Inc()
		s.notify.zoneChanged(ctx, z)
		ids = append(ids, z.ID)
	}
	return ids, nil
}

func countersDiffer(a, b models.Zone) bool {
	return a.Occupied != b.Occupied ||
		a.Free != b.Free ||
		a.Reserved != b.Reserved ||
		a.AvailableForVisitors != b.AvailableForVisitors ||
		a.AvailableForSubscribers != b.AvailableForSubscribers
}
