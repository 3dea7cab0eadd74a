package pricing

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"parkgate/internal/models"
)

// Windows is the set of special-rate windows applicable to a zone's category
type Windows struct {
	RushHours []models.RushHour
	Vacations []models.Vacation
	// Location is the wall clock rush hours and vacation days are defined in.
	// Nil means UTC.
	Location *time.Location
}

type span struct {
	from, to time.Time
}

func (s span) contains(t time.Time) bool {
	return !t.Before(s.from) && t.Before(s.to)
}

func (w Windows) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// spans expands every window into concrete instants overlapping [from, to).
// Zero-length windows are dropped.
func (w Windows) spans(from, to time.Time) ([]span, error) {
	loc := w.location()
	var out []span

	keep := func(s span) {
		if !s.from.Before(s.to) {
			return
		}
		// an empty [from, to) still needs the window covering `from`
		if s.to.After(from) && (s.from.Before(to) || (from.Equal(to) && s.contains(from))) {
			out = append(out, s)
		}
	}

	if len(w.RushHours) > 0 {
		first := from.In(loc)
		last := to.In(loc)
		day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)
		end := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc)

		for _, rh := range w.RushHours {
			fh, fm, err := parseClock(rh.From)
			if err != nil {
				return nil, fmt.Errorf("rush hour %s: %w", rh.ID, err)
			}
			th, tm, err := parseClock(rh.To)
			if err != nil {
				return nil, fmt.Errorf("rush hour %s: %w", rh.ID, err)
			}
			for d := day; !d.After(end); d = time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc) {
				if int(d.Weekday()) != rh.WeekDay {
					continue
				}
				keep(span{
					from: time.Date(d.Year(), d.Month(), d.Day(), fh, fm, 0, 0, loc),
					to:   time.Date(d.Year(), d.Month(), d.Day(), th, tm, 0, 0, loc),
				})
			}
		}
	}

	for _, v := range w.Vacations {
		start, err := time.ParseInLocation(time.DateOnly, v.From, loc)
		if err != nil {
			return nil, fmt.Errorf("vacation %s: %w: from %q", v.ID, ErrInvalidWindow, v.From)
		}
		last, err := time.ParseInLocation(time.DateOnly, v.To, loc)
		if err != nil {
			return nil, fmt.Errorf("vacation %s: %w: to %q", v.ID, ErrInvalidWindow, v.To)
		}
		keep(span{
			from: start,
			to:   time.Date(last.Year(), last.Month(), last.Day()+1, 0, 0, 0, 0, loc),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].from.Before(out[j].from) })
	return out, nil
}

// parseClock parses "HH:MM". "24:00" is accepted as the end of the day.
func parseClock(s string) (int, int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("%w: time of day %q", ErrInvalidWindow, s)
	}
	h, errH := strconv.Atoi(s[:2])
	m, errM := strconv.Atoi(s[3:])
	if errH != nil || errM != nil || h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, 0, fmt.Errorf("%w: time of day %q", ErrInvalidWindow, s)
	}
	return h, m, nil
}

// IsSpecialAt reports whether t falls inside any rush hour or vacation
func IsSpecialAt(t time.Time, w Windows) bool {
	spans, err := w.spans(t, t)
	if err != nil {
		return false
	}
	return specialAt(spans, t)
}

// ValidateRushHour checks the weekday and that From is before To
func ValidateRushHour(rh models.RushHour) error {
	if rh.WeekDay < 0 || rh.WeekDay > 6 {
		return fmt.Errorf("%w: week day %d", ErrInvalidWindow, rh.WeekDay)
	}
	fh, fm, err := parseClock(rh.From)
	if err != nil {
		return err
	}
	th, tm, err := parseClock(rh.To)
	if err != nil {
		return err
	}
	if fh*60+fm >= th*60+tm {
		return fmt.Errorf("%w: %s is not before %s", ErrInvalidWindow, rh.From, rh.To)
	}
	return nil
}

// ValidateVacation checks both dates parse and From is not after To
func ValidateVacation(v models.Vacation) error {
	from, err := time.Parse(time.DateOnly, v.From)
	if err != nil {
		return fmt.Errorf("%w: from %q", ErrInvalidWindow, v.From)
	}
	to, err := time.Parse(time.DateOnly, v.To)
	if err != nil {
		return fmt.Errorf("%w: to %q", ErrInvalidWindow, v.To)
	}
	if to.Before(from) {
		return fmt.Errorf("%w: %s is after %s", ErrInvalidWindow, v.From, v.To)
	}
	return nil
}
