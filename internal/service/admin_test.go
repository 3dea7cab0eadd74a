package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"parkgate/internal/logger"
	"parkgate/internal/messaging"
	"parkgate/internal/models"
)

type stubZoneLister struct {
	zones []models.Zone
	err   error
}

func (s stubZoneLister) List(context.Context) ([]models.Zone, error) {
	return s.zones, s.err
}

func newAdminFixture() (*AdminService, *recordingBus) {
	bus := &recordingBus{}
	svc := &AdminService{
		windows: &windowLoader{reader: &fakeWindows{}, location: time.UTC},
		notify:  &notifier{bus: bus},
		now:     fixedClock(monday10),
	}
	return svc, bus
}

func TestAnnounceCategoryZones(t *testing.T) {
	svc, bus := newAdminFixture()

	premium := testZone()
	economy := testZone()
	economy.ID, economy.CategoryID = "zone_e", "cat_economy"

	svc.announceCategoryZones(context.Background(), stubZoneLister{zones: []models.Zone{premium, economy}}, "cat_premium")

	assert.Equal(t, []string{messaging.SubjectZoneUpdate}, bus.subjects())
}

func TestAnnounceCategoryZones_ListFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWriter(&buf, "debug", "json")
	t.Cleanup(func() { logger.Init("INFO", "json") })

	svc, bus := newAdminFixture()
	svc.announceCategoryZones(context.Background(), stubZoneLister{err: errors.New("connection reset")}, "cat_premium")

	assert.Empty(t, bus.subjects())
	assert.Contains(t, buf.String(), "Failed to list zones for category update")
	assert.Contains(t, buf.String(), `"category_id":"cat_premium"`)
	assert.Contains(t, buf.String(), "connection reset")
}
