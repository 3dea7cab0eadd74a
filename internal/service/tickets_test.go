package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "parkgate/internal/errors"
	"parkgate/internal/messaging"
	"parkgate/internal/models"
)

// Monday
var monday10 = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

func testZone() models.Zone {
	return models.Zone{
		ID:                      "zone_a",
		Name:                    "Zone A",
		CategoryID:              "cat_premium",
		GateIDs:                 []string{"gate_1"},
		TotalSlots:              10,
		ReservedSlots:           2,
		Free:                    8,
		Reserved:                2,
		AvailableForVisitors:    8,
		AvailableForSubscribers: 10,
		RateNormal:              5,
		RateSpecial:             8,
		Open:                    true,
		Version:                 1,
	}
}

type ticketFixture struct {
	svc   *TicketService
	store *memoryStore
	bus   *recordingBus
}

func newTicketFixture(subs fakeSubscriptions, zones ...models.Zone) *ticketFixture {
	store := newMemoryStore(zones...)
	bus := &recordingBus{}
	windows := &windowLoader{
		reader:   &fakeWindows{rushHours: []models.RushHour{{ID: "rh1", WeekDay: 1, From: "11:00", To: "11:30"}}},
		location: time.UTC,
	}
	svc := NewTicketService(store, subs, windows, &notifier{bus: bus})
	return &ticketFixture{svc: svc, store: store, bus: bus}
}

func activeSubscription() *models.Subscription {
	return &models.Subscription{
		ID:        "sub_1",
		UserName:  "Aida",
		Category:  "cat_premium",
		Active:    true,
		StartsAt:  monday10.AddDate(0, -1, 0),
		ExpiresAt: monday10.AddDate(0, 1, 0),
	}
}

func strPtr(s string) *string { return &s }

func TestCheckinCheckout_VisitorRushHourTotal(t *testing.T) {
	f := newTicketFixture(nil, testZone())
	ctx := context.Background()

	f.svc.now = fixedClock(monday10)
	in, err := f.svc.Checkin(ctx, &models.CheckinRequest{GateID: "gate_1", ZoneID: "zone_a", Type: models.TicketVisitor})
	require.NoError(t, err)
	assert.Equal(t, 1, in.ZoneState.Occupied)
	assert.Equal(t, 7, in.ZoneState.Free)
	assert.Equal(t, 7, in.ZoneState.AvailableForVisitors)
	assert.Equal(t, 9, in.ZoneState.AvailableForSubscribers)
	assert.Equal(t, int64(2), in.ZoneState.Version)
	assert.NotEmpty(t, in.Ticket.ID)

	f.svc.now = fixedClock(monday10.Add(2 * time.Hour))
	out, err := f.svc.Checkout(ctx, &models.CheckoutRequest{TicketID: in.Ticket.ID})
	require.NoError(t, err)

	assert.Equal(t, 11.5, out.TotalAmount)
	assert.Equal(t, 2.0, out.DurationHours)
	require.Len(t, out.Breakdown, 3)
	assert.Equal(t, models.RateModeSpecial, out.Breakdown[1].RateMode)
	require.NotNil(t, out.Ticket.CheckoutAt)
	assert.Equal(t, 0, out.ZoneState.Occupied)
	assert.Equal(t, 8, out.ZoneState.AvailableForVisitors)

	assert.Equal(t, []string{
		messaging.SubjectZoneUpdate,
		messaging.SubjectZoneUpdate,
		messaging.SubjectTicketClosed,
	}, f.bus.subjects())
}

func TestCheckin_Denied(t *testing.T) {
	closed := testZone()
	closed.Open = false

	full := testZone()
	full.Free, full.AvailableForVisitors = 0, 0

	expired := activeSubscription()
	expired.ExpiresAt = monday10.Add(-time.Minute)

	otherCategory := activeSubscription()
	otherCategory.ID = "sub_other"
	otherCategory.Category = "cat_economy"

	tests := []struct {
		name string
		zone models.Zone
		req  models.CheckinRequest
		subs fakeSubscriptions
		want error
	}{
		{"closed zone", closed, models.CheckinRequest{GateID: "gate_1", ZoneID: "zone_a", Type: models.TicketVisitor}, nil, apperrors.ErrAdmissionDenied},
		{"no visitor slots", full, models.CheckinRequest{GateID: "gate_1", ZoneID: "zone_a", Type: models.TicketVisitor}, nil, apperrors.ErrAdmissionDenied},
		{"inactive subscription", testZone(), models.CheckinRequest{GateID: "gate_1", ZoneID: "zone_a", Type: models.TicketSubscriber, SubscriptionID: strPtr("sub_1")}, fakeSubscriptions{"sub_1": expired}, apperrors.ErrAdmissionDenied},
		{"category mismatch", testZone(), models.CheckinRequest{GateID: "gate_1", ZoneID: "zone_a", Type: models.TicketSubscriber, SubscriptionID: strPtr("sub_other")}, fakeSubscriptions{"sub_other": otherCategory}, apperrors.ErrAdmissionDenied},
		{"missing subscription id", testZone(), models.CheckinRequest{GateID: "gate_1", ZoneID: "zone_a", Type: models.TicketSubscriber}, nil, apperrors.ErrValidation},
		{"unknown subscription", testZone(), models.CheckinRequest{GateID: "gate_1", ZoneID: "zone_a", Type: models.TicketSubscriber, SubscriptionID: strPtr("nope")}, fakeSubscriptions{}, apperrors.ErrNotFound},
		{"wrong gate", testZone(), models.CheckinRequest{GateID: "gate_9", ZoneID: "zone_a", Type: models.TicketVisitor}, nil, apperrors.ErrValidation},
		{"unknown zone", testZone(), models.CheckinRequest{GateID: "gate_1", ZoneID: "zone_x", Type: models.TicketVisitor}, nil, apperrors.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTicketFixture(tt.subs, tt.zone)
			f.svc.now = fixedClock(monday10)

			req := tt.req
			_, err := f.svc.Checkin(context.Background(), &req)
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.store.tickets)
			assert.Empty(t, f.bus.subjects())
		})
	}
}

func TestCheckin_SubscriberUsesReservedPool(t *testing.T) {
	f := newTicketFixture(fakeSubscriptions{"sub_1": activeSubscription()}, testZone())
	f.svc.now = fixedClock(monday10)

	in, err := f.svc.Checkin(context.Background(), &models.CheckinRequest{
		GateID: "gate_1", ZoneID: "zone_a", Type: models.TicketSubscriber, SubscriptionID: strPtr("sub_1"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, in.ZoneState.Reserved)
	assert.Equal(t, 8, in.ZoneState.Free)
	assert.Equal(t, 8, in.ZoneState.AvailableForVisitors)
	assert.Equal(t, 9, in.ZoneState.AvailableForSubscribers)
}

func TestCheckout_SubscriberIsFreeUnlessConverted(t *testing.T) {
	f := newTicketFixture(fakeSubscriptions{"sub_1": activeSubscription()}, testZone())
	ctx := context.Background()

	f.svc.now = fixedClock(monday10)
	in, err := f.svc.Checkin(ctx, &models.CheckinRequest{
		GateID: "gate_1", ZoneID: "zone_a", Type: models.TicketSubscriber, SubscriptionID: strPtr("sub_1"),
	})
	require.NoError(t, err)

	f.svc.now = fixedClock(monday10.Add(2 * time.Hour))
	out, err := f.svc.Checkout(ctx, &models.CheckoutRequest{TicketID: in.Ticket.ID})
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.TotalAmount)
	assert.Equal(t, models.TicketSubscriber, out.Ticket.Type)
	assert.Equal(t, 2, out.ZoneState.Reserved)
	zoneVersion := out.ZoneState.Version

	// converting the already closed ticket re-prices it without touching the zone
	f.svc.now = fixedClock(monday10.Add(3 * time.Hour))
	converted, err := f.svc.Checkout(ctx, &models.CheckoutRequest{TicketID: in.Ticket.ID, ForceConvertToVisitor: true})
	require.NoError(t, err)
	assert.Equal(t, 11.5, converted.TotalAmount)
	assert.Equal(t, models.TicketVisitor, converted.Ticket.Type)
	assert.Nil(t, converted.Ticket.SubscriptionID)
	assert.True(t, converted.Ticket.CheckoutAt.Equal(monday10.Add(2*time.Hour)))
	assert.Equal(t, zoneVersion, converted.ZoneState.Version)

	stored, err := f.svc.Get(ctx, in.Ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketVisitor, stored.Type)
	assert.Nil(t, stored.SubscriptionID)
}

func TestCheckout_ConvertOpenSubscriberTicket(t *testing.T) {
	f := newTicketFixture(fakeSubscriptions{"sub_1": activeSubscription()}, testZone())
	ctx := context.Background()

	f.svc.now = fixedClock(monday10)
	in, err := f.svc.Checkin(ctx, &models.CheckinRequest{
		GateID: "gate_1", ZoneID: "zone_a", Type: models.TicketSubscriber, SubscriptionID: strPtr("sub_1"),
	})
	require.NoError(t, err)

	f.svc.now = fixedClock(monday10.Add(2 * time.Hour))
	out, err := f.svc.Checkout(ctx, &models.CheckoutRequest{TicketID: in.Ticket.ID, ForceConvertToVisitor: true})
	require.NoError(t, err)
	assert.Equal(t, 11.5, out.TotalAmount)

	// the subscriber slot goes back to the reserved pool
	assert.Equal(t, 2, out.ZoneState.Reserved)
	assert.Equal(t, 8, out.ZoneState.Free)
	assert.Equal(t, 0, out.ZoneState.Occupied)
}

func TestCheckout_ReplayReturnsStoredResult(t *testing.T) {
	f := newTicketFixture(nil, testZone())
	ctx := context.Background()

	f.svc.now = fixedClock(monday10)
	in, err := f.svc.Checkin(ctx, &models.CheckinRequest{GateID: "gate_1", ZoneID: "zone_a", Type: models.TicketVisitor})
	require.NoError(t, err)

	f.svc.now = fixedClock(monday10.Add(2 * time.Hour))
	first, err := f.svc.Checkout(ctx, &models.CheckoutRequest{TicketID: in.Ticket.ID})
	require.NoError(t, err)
	published := len(f.bus.subjects())

	f.svc.now = fixedClock(monday10.Add(5 * time.Hour))
	second, err := f.svc.Checkout(ctx, &models.CheckoutRequest{TicketID: in.Ticket.ID})
	require.NoError(t, err)

	assert.Equal(t, first.TotalAmount, second.TotalAmount)
	assert.Equal(t, first.Breakdown, second.Breakdown)
	assert.Equal(t, 2.0, second.DurationHours)
	assert.Equal(t, 0, second.ZoneState.Occupied, "zone is released only once")
	assert.Len(t, f.bus.subjects(), published)
}

func TestCheckout_UnknownTicket(t *testing.T) {
	f := newTicketFixture(nil, testZone())

	_, err := f.svc.Checkout(context.Background(), &models.CheckoutRequest{TicketID: "missing"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.Checkout(context.Background(), &models.CheckoutRequest{TicketID: "  "})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestCheckout_PublishesTicketClosedEvent(t *testing.T) {
	f := newTicketFixture(nil, testZone())
	ctx := context.Background()

	f.svc.now = fixedClock(monday10)
	in, err := f.svc.Checkin(ctx, &models.CheckinRequest{GateID: "gate_1", ZoneID: "zone_a", Type: models.TicketVisitor})
	require.NoError(t, err)
	f.svc.now = fixedClock(monday10.Add(90 * time.Minute))
	_, err = f.svc.Checkout(ctx, &models.CheckoutRequest{TicketID: in.Ticket.ID})
	require.NoError(t, err)

	last := f.bus.messages[len(f.bus.messages)-1]
	require.Equal(t, messaging.SubjectTicketClosed, last.subject)

	var event models.TicketClosedEvent
	require.NoError(t, json.Unmarshal(last.payload, &event))
	assert.Equal(t, in.Ticket.ID, event.Ticket.ID)
	assert.Equal(t, 1.5, event.DurationHours)
	require.NotNil(t, event.Ticket.TotalAmount)
	assert.Equal(t, 9.0, *event.Ticket.TotalAmount)
}
