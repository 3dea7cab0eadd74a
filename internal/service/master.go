package service

import (
	"context"
	"fmt"
	"time"

	apperrors "parkgate/internal/errors"
	"parkgate/internal/logger"
	"parkgate/internal/models"
)

type GateReader interface {
	List(ctx context.Context) ([]models.Gate, error)
	GetByID(ctx context.Context, id string) (*models.Gate, error)
}

type CategoryReader interface {
	List(ctx context.Context) ([]models.Category, error)
}

type ZoneReader interface {
	List(ctx context.Context) ([]models.Zone, error)
	ListByGate(ctx context.Context, gateID string) ([]models.Zone, error)
}

// MasterService serves the reference data attendant screens start from
type MasterService struct {
	gates         GateReader
	categories    CategoryReader
	zones         ZoneReader
	subscriptions SubscriptionReader
	windows       *windowLoader
	cache         ZoneCache
	now           func() time.Time
}

func NewMasterService(gates GateReader, categories CategoryReader, zones ZoneReader, subscriptions SubscriptionReader, windows *windowLoader, cache ZoneCache) *MasterService {
	return &MasterService{
		gates:         gates,
		categories:    categories,
		zones:         zones,
		subscriptions: subscriptions,
		windows:       windows,
		cache:         cache,
		now:           time.Now,
	}
}

func (s *MasterService) ListGates(ctx context.Context) ([]models.Gate, error) {
	gates, err := s.gates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list gates: %w", err)
	}
	return gates, nil
}

func (s *MasterService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// ListZones returns the zones of one gate, or every zone when gateID is
// empty. SpecialActive is computed at read time and never cached.
func (s *MasterService) ListZones(ctx context.Context, gateID string) ([]models.Zone, error) {
	zones, err := s.gateZones(ctx, gateID)
	if err != nil {
		return nil, err
	}

	windows, err := s.windows.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate windows: %w", err)
	}
	markSpecial(zones, windows, s.now())
	return zones, nil
}

func (s *MasterService) gateZones(ctx context.Context, gateID string) ([]models.Zone, error) {
	if gateID == "" {
		zones, err := s.zones.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list zones: %w", err)
		}
		return zones, nil
	}

	if s.cache != nil {
		zones, ok, err := s.cache.GetGateZones(ctx, gateID)
		if err != nil {
			logger.WithContext(ctx).Warn("Zone cache read failed", "error", err, "gate_id", gateID)
		} else if ok {
			return zones, nil
		}
	}

	gate, err := s.gates.GetByID(ctx, gateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get gate: %w", err)
	}
	if gate == nil {
		return nil, fmt.Errorf("%w: gate %s", apperrors.ErrNotFound, gateID)
	}

	zones, err := s.zones.ListByGate(ctx, gateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetGateZones(ctx, gateID, zones); err != nil {
			logger.WithContext(ctx).Warn("Zone cache write failed", "error", err, "gate_id", gateID)
		}
	}
	return zones, nil
}

func (s *MasterService) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	sub, err := s.subscriptions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: subscription %s", apperrors.ErrNotFound, id)
	}
	return sub, nil
}
