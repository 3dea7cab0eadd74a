// Package pricing splits a parking interval into normal and special rate
// segments and totals the charge.
package pricing

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"parkgate/internal/models"
)

var (
	ErrInvalidInterval = errors.New("checkout is before checkin")
	ErrInvalidRate     = errors.New("rate must be a non-negative number")
	ErrInvalidWindow   = errors.New("malformed special-rate window")
)

// Breakdown is the priced result for one interval. Amount is rounded to cents
// once, over the unrounded segment amounts.
type Breakdown struct {
	Segments      []models.BreakdownSegment `json:"breakdown"`
	Amount        float64                   `json:"totalAmount"`
	DurationHours float64                   `json:"durationHours"`
}

// ComputeBreakdown prices [checkinAt, checkoutAt). Window membership is
// half-open, so an instant on a boundary belongs to the segment starting there.
// Overlapping rush hours and vacations count as a single special state.
func ComputeBreakdown(checkinAt, checkoutAt time.Time, rateNormal, rateSpecial float64, windows Windows) (Breakdown, error) {
	if checkoutAt.Before(checkinAt) {
		return Breakdown{}, ErrInvalidInterval
	}
	if !validRate(rateNormal) || !validRate(rateSpecial) {
		return Breakdown{}, ErrInvalidRate
	}

	spans, err := windows.spans(checkinAt, checkoutAt)
	if err != nil {
		return Breakdown{}, err
	}

	rateFor := func(special bool) (string, float64) {
		if special {
			return models.RateModeSpecial, rateSpecial
		}
		return models.RateModeNormal, rateNormal
	}

	if checkinAt.Equal(checkoutAt) {
		mode, rate := rateFor(specialAt(spans, checkinAt))
		return Breakdown{
			Segments: []models.BreakdownSegment{{
				From: checkinAt, To: checkoutAt, RateMode: mode, Rate: rate,
			}},
		}, nil
	}

	var segments []models.BreakdownSegment
	bounds := boundaries(checkinAt, checkoutAt, spans)
	for i := 0; i < len(bounds)-1; i++ {
		from, to := bounds[i], bounds[i+1]
		mode, rate := rateFor(specialAt(spans, from))

		if n := len(segments); n > 0 && segments[n-1].RateMode == mode {
			segments[n-1].To = to
			continue
		}
		segments = append(segments, models.BreakdownSegment{From: from, To: to, RateMode: mode, Rate: rate})
	}

	total := decimal.Zero
	for i := range segments {
		seg := &segments[i]
		seg.Hours = seg.To.Sub(seg.From).Hours()
		seg.Amount = seg.Hours * seg.Rate
		total = total.Add(decimal.NewFromFloat(seg.Hours).Mul(decimal.NewFromFloat(seg.Rate)))
	}

	return Breakdown{
		Segments:      segments,
		Amount:        total.Round(2).InexactFloat64(),
		DurationHours: checkoutAt.Sub(checkinAt).Hours(),
	}, nil
}

func validRate(r float64) bool {
	return r >= 0 && !math.IsNaN(r) && !math.IsInf(r, 0)
}

func specialAt(spans []span, t time.Time) bool {
	for _, s := range spans {
		if s.contains(t) {
			return true
		}
	}
	return false
}

// boundaries returns the sorted, de-duplicated instants where special
// membership may flip, clipped to [from, to].
func boundaries(from, to time.Time, spans []span) []time.Time {
	points := []time.Time{from, to}
	for _, s := range spans {
		if s.from.After(from) && s.from.Before(to) {
			points = append(points, s.from)
		}
		if s.to.After(from) && s.to.Before(to) {
			points = append(points, s.to)
		}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Before(points[j]) })

	out := points[:1]
	for _, p := range points[1:] {
		if !p.Equal(out[len(out)-1]) {
			out = append(out, p)
		}
	}
	return out
}
