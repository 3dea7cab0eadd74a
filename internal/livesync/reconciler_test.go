package livesync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkgate/internal/models"
	"parkgate/internal/occupancy"
)

type stubRefetcher struct {
	zones []models.Zone
	err   error
	calls int
}

func (s *stubRefetcher) RefetchZones(ctx context.Context) ([]models.Zone, error) {
	s.calls++
	return s.zones, s.err
}

func openZone(id string, version int64, free int) models.Zone {
	return occupancy.DeriveAvailability(models.Zone{
		ID: id, Open: true, TotalSlots: 10, Free: free, Occupied: 10 - free, Version: version,
	})
}

func TestZoneUpdateReplacesOptimisticAdmission(t *testing.T) {
	zones := occupancy.NewZoneMap()
	zones.Apply(openZone("zone_a", 3, 5))
	rec := NewReconciler(zones, NewAuditTrail(0), nil)

	_, ok := zones.AdmitLocal("zone_a", models.TicketVisitor)
	require.True(t, ok)

	server := openZone("zone_a", 4, 5)
	assert.True(t, rec.Handle(context.Background(), ZoneUpdate{Zone: server}))

	got, _ := zones.Get("zone_a")
	assert.Equal(t, server, got)
}

func TestStaleZoneUpdateIgnored(t *testing.T) {
	zones := occupancy.NewZoneMap()
	zones.Apply(openZone("zone_a", 9, 2))
	rec := NewReconciler(zones, NewAuditTrail(0), nil)

	assert.False(t, rec.Handle(context.Background(), ZoneUpdate{Zone: openZone("zone_a", 8, 7)}))
	got, _ := zones.Get("zone_a")
	assert.Equal(t, 2, got.Free)
}

func TestAdminUpdateRefetches(t *testing.T) {
	zones := occupancy.NewZoneMap()
	zones.Apply(openZone("zone_a", 1, 5))
	zones.Apply(openZone("zone_old", 1, 5))
	trail := NewAuditTrail(0)
	refetch := &stubRefetcher{zones: []models.Zone{openZone("zone_a", 2, 4)}}
	rec := NewReconciler(zones, trail, refetch)

	assert.True(t, rec.Handle(context.Background(), AdminUpdate{Update: models.AdminUpdate{ID: "a1", Action: "zone.deleted"}}))

	assert.Equal(t, 1, refetch.calls)
	assert.Equal(t, 1, zones.Len())
	got, _ := zones.Get("zone_a")
	assert.Equal(t, int64(2), got.Version)
	require.Len(t, trail.Entries(), 1)
}

func TestAdminUpdateRefetchFailureKeepsZones(t *testing.T) {
	zones := occupancy.NewZoneMap()
	zones.Apply(openZone("zone_a", 1, 5))
	rec := NewReconciler(zones, NewAuditTrail(0), &stubRefetcher{err: errors.New("offline")})

	rec.Handle(context.Background(), AdminUpdate{Update: models.AdminUpdate{Action: "gate.updated"}})
	assert.Equal(t, 1, zones.Len())
}

func TestAuditTrailBoundedNewestFirst(t *testing.T) {
	trail := NewAuditTrail(AuditTrailSize)
	for i := 0; i < AuditTrailSize+5; i++ {
		trail.Push(models.AdminUpdate{ID: fmt.Sprint(i)})
	}

	entries := trail.Entries()
	require.Len(t, entries, AuditTrailSize)
	assert.Equal(t, fmt.Sprint(AuditTrailSize+4), entries[0].ID)
	assert.Equal(t, "5", entries[len(entries)-1].ID)
}

func TestRunStopsOnCancel(t *testing.T) {
	zones := occupancy.NewZoneMap()
	rec := NewReconciler(zones, NewAuditTrail(0), nil)
	events := make(chan Event, 1)
	events <- ZoneUpdate{Zone: openZone("zone_a", 1, 5)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx, events)
		close(done)
	}()

	require.Eventually(t, func() bool { return zones.Len() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
