package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "parkgate/internal/errors"
	"parkgate/internal/logger"
	"parkgate/internal/metrics"
	"parkgate/internal/models"
	"parkgate/internal/occupancy"
	"parkgate/internal/pricing"
	"parkgate/internal/repository"
)

// TicketStore is the transactional ticket storage used by check-in and checkout
type TicketStore interface {
	GetByID(ctx context.Context, id string) (*models.Ticket, error)
	List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error)
	Admit(ctx context.Context, zoneID string, fn repository.AdmitFunc) (*models.Ticket, *models.Zone, error)
	Settle(ctx context.Context, ticketID string, fn repository.SettleFunc) (*models.Ticket, *models.Zone, error)
}

type TicketService struct {
	tickets       TicketStore
	subscriptions SubscriptionReader
	windows       *windowLoader
	notify        *notifier
	now           func() time.Time
}

func NewTicketService(tickets TicketStore, subscriptions SubscriptionReader, windows *windowLoader, notify *notifier) *TicketService {
	return &TicketService{
		tickets:       tickets,
		subscriptions: subscriptions,
		windows:       windows,
		notify:        notify,
		now:           time.Now,
	}
}

// Checkin admits a vehicle into a zone. The zone row is locked for the whole
// admission so concurrent check-ins cannot oversell the last slot.
func (s *TicketService) Checkin(ctx context.Context, req *models.CheckinRequest) (*models.CheckinResponse, error) {
	var sub *models.Subscription
	switch req.Type {
	case models.TicketVisitor:
		req.SubscriptionID = nil
	case models.TicketSubscriber:
		if req.SubscriptionID == nil || strings.TrimSpace(*req.SubscriptionID) == "" {
			return nil, fmt.Errorf("%w: subscriptionId is required for subscriber check-in", apperrors.ErrValidation)
		}
		var err error
		sub, err = s.subscriptions.GetByID(ctx, *req.SubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("failed to get subscription: %w", err)
		}
		if sub == nil {
			return nil, fmt.Errorf("%w: subscription %s", apperrors.ErrNotFound, *req.SubscriptionID)
		}
	default:
		return nil, fmt.Errorf("%w: unknown ticket type %q", apperrors.ErrValidation, req.Type)
	}

	windows, err := s.windows.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate windows: %w", err)
	}

	now := s.now().UTC()
	ticket, zone, err := s.tickets.Admit(ctx, req.ZoneID, func(zone models.Zone) (models.Zone, *models.Ticket, error) {
		if !zone.HasGate(req.GateID) {
			return zone, nil, fmt.Errorf("%w: zone %s is not served by gate %s", apperrors.ErrValidation, zone.ID, req.GateID)
		}
		if reason := occupancy.DenyReason(zone, req.Type, sub, now); reason != "" {
			return zone, nil, fmt.Errorf("%w: %s", apperrors.ErrAdmissionDenied, reason)
		}

		m := occupancy.Admit(zone, req.Type)
		if !m.Consistent() {
			metrics.RecordClamps(m.Inconsistencies)
			logger.WithContext(ctx).Warn("Zone counters clamped on admission",
				"zone_id", zone.ID, "fields", m.Inconsistencies)
		}

		return occupancy.DeriveAvailability(m.Zone), &models.Ticket{
			ID:             uuid.New().String(),
			GateID:         req.GateID,
			ZoneID:         zone.ID,
			Type:           req.Type,
			SubscriptionID: req.SubscriptionID,
			CheckinAt:      now,
		}, nil
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, apperrors.ErrAdmissionDenied) {
			outcome = "denied"
		}
		metrics.Checkins.WithLabelValues(req.Type, outcome).Inc()
		return nil, err
	}
	if ticket == nil {
		return nil, fmt.Errorf("%w: zone %s", apperrors.ErrNotFound, req.ZoneID)
	}

	zone.SpecialActive = pricing.IsSpecialAt(now, windows)
	metrics.Checkins.WithLabelValues(req.Type, "admitted").Inc()
	s.notify.zoneChanged(ctx, *zone)

	logger.WithContext(ctx).Info("Ticket checked in",
		"ticket_id", ticket.ID, "zone_id", zone.ID, "gate_id", ticket.GateID, "type", ticket.Type)

	return &models.CheckinResponse{Ticket: *ticket, ZoneState: *zone}, nil
}

// Checkout closes a ticket and prices it. Subscribers pay nothing unless
// ForceConvertToVisitor is set, which converts the ticket and charges visitor
// rates; that also works on a subscriber ticket that is already closed.
// Repeating a checkout on a closed ticket returns the stored result.
func (s *TicketService) Checkout(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	if strings.TrimSpace(req.TicketID) == "" {
		return nil, fmt.Errorf("%w: ticketId is required", apperrors.ErrValidation)
	}

	windows, err := s.windows.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate windows: %w", err)
	}

	now := s.now().UTC()
	var (
		breakdown pricing.Breakdown
		replay    bool
		released  bool
	)
	ticket, zone, err := s.tickets.Settle(ctx, req.TicketID, func(t models.Ticket, zone models.Zone) (models.Ticket, models.Zone, bool, error) {
		closed := !t.IsOpen()
		convert := req.ForceConvertToVisitor && t.Type == models.TicketSubscriber

		if closed && !convert {
			replay = true
			return t, zone, false, nil
		}

		checkoutAt := now
		if closed {
			checkoutAt = *t.CheckoutAt
		}

		rateNormal, rateSpecial := zone.RateNormal, zone.RateSpecial
		if t.Type == models.TicketSubscriber && !convert {
			rateNormal, rateSpecial = 0, 0
		}

		b, err := pricing.ComputeBreakdown(t.CheckinAt, checkoutAt, rateNormal, rateSpecial, windows)
		if err != nil {
			return t, zone, false, fmt.Errorf("failed to price ticket %s: %w", t.ID, err)
		}
		breakdown = b

		kind := t.Type
		amount := b.Amount
		t.CheckoutAt = &checkoutAt
		t.TotalAmount = &amount
		t.Breakdown = b.Segments
		if convert {
			t.Type = models.TicketVisitor
			t.SubscriptionID = nil
		}

		if closed {
			return t, zone, false, nil
		}

		m := occupancy.Release(zone, kind)
		if !m.Consistent() {
			metrics.RecordClamps(m.Inconsistencies)
			logger.WithContext(ctx).Warn("Zone counters clamped on release",
				"zone_id", zone.ID, "fields", m.Inconsistencies)
		}
		released = true
		return t, occupancy.DeriveAvailability(m.Zone), true, nil
	})
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, fmt.Errorf("%w: ticket %s", apperrors.ErrNotFound, req.TicketID)
	}

	if replay {
		breakdown = storedBreakdown(*ticket)
	}

	zone.SpecialActive = pricing.IsSpecialAt(now, windows)
	if released {
		s.notify.zoneChanged(ctx, *zone)
	}
	if !replay {
		metrics.Checkouts.WithLabelValues(ticket.Type).Inc()
		metrics.Revenue.Add(breakdown.Amount)
		s.notify.ticketClosed(ctx, models.TicketClosedEvent{
			Ticket:        *ticket,
			DurationHours: breakdown.DurationHours,
			Timestamp:     now,
		})
		logger.WithContext(ctx).Info("Ticket checked out",
			"ticket_id", ticket.ID, "type", ticket.Type, "amount", breakdown.Amount)
	}

	segments := breakdown.Segments
	if segments == nil {
		segments = []models.BreakdownSegment{}
	}
	return &models.CheckoutResponse{
		Ticket:        *ticket,
		Breakdown:     segments,
		TotalAmount:   breakdown.Amount,
		DurationHours: breakdown.DurationHours,
		ZoneState:     *zone,
	}, nil
}

func storedBreakdown(t models.Ticket) pricing.Breakdown {
	b := pricing.Breakdown{Segments: t.Breakdown}
	if t.TotalAmount != nil {
		b.Amount = *t.TotalAmount
	}
	if t.CheckoutAt != nil {
		b.DurationHours = t.CheckoutAt.Sub(t.CheckinAt).Hours()
	}
	return b
}

func (s *TicketService) Get(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if ticket == nil {
		return nil, fmt.Errorf("%w: ticket %s", apperrors.ErrNotFound, id)
	}
	return ticket, nil
}

func (s *TicketService) List(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}
