package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkgate/internal/attendant"
	"parkgate/internal/models"
)

func TestFeedURL(t *testing.T) {
	tests := []struct {
		api     string
		want    string
		wantErr bool
	}{
		{"http://localhost:3000/api/v1", "ws://localhost:3000/ws", false},
		{"https://parking.example.com/api/v1?x=1", "wss://parking.example.com/ws", false},
		{"ftp://nope", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.api, func(t *testing.T) {
			got, err := feedURL(tt.api)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderZones(t *testing.T) {
	var buf bytes.Buffer
	renderZones(&buf, []attendant.ZoneOption{
		{Zone: models.Zone{ID: "zone_a", Name: "Zone A", TotalSlots: 10, Occupied: 3, RateNormal: 5}, Selectable: true},
		{Zone: models.Zone{ID: "zone_b", Name: "Zone B", SpecialActive: true, RateSpecial: 8}, Reason: "zone is closed"},
	})

	out := buf.String()
	assert.Contains(t, out, "zone_a")
	assert.Contains(t, out, "3/10")
	assert.Contains(t, out, "8.00*")
	assert.Contains(t, out, "zone is closed")
}

func TestRenderBreakdown(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.Local)
	var buf bytes.Buffer
	renderBreakdown(&buf, models.CheckoutResponse{
		Breakdown: []models.BreakdownSegment{
			{From: t0, To: t0.Add(time.Hour), Hours: 1, RateMode: models.RateModeNormal, Rate: 5, Amount: 5},
			{From: t0.Add(time.Hour), To: t0.Add(90 * time.Minute), Hours: 0.5, RateMode: models.RateModeSpecial, Rate: 8, Amount: 4},
		},
		TotalAmount:   9,
		DurationHours: 1.5,
	})

	out := buf.String()
	assert.Contains(t, out, "10:00")
	assert.Contains(t, out, "special")
	assert.Contains(t, out, "Total    9.00")
}

func TestUnknownCommand(t *testing.T) {
	assert.Error(t, run([]string{"frobnicate"}))
	assert.NoError(t, run([]string{"help"}))
}
