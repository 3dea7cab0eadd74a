// Package occupancy holds the zone capacity counters and the admission rules
// shared by the server and attendant clients.
package occupancy

import (
	"time"

	"parkgate/internal/models"
)

// Mutation is the result of an admission or release. Inconsistencies lists the
// counters that would have gone negative and were clamped at zero.
type Mutation struct {
	Zone            models.Zone
	Inconsistencies []string
}

// Consistent reports whether the mutation applied without clamping
func (m Mutation) Consistent() bool {
	return len(m.Inconsistencies) == 0
}

// CanAdmit decides whether a check-in of kind may proceed on zone at now.
// A closed zone never admits.
func CanAdmit(zone models.Zone, kind string, sub *models.Subscription, now time.Time) bool {
	return DenyReason(zone, kind, sub, now) == ""
}

// DenyReason explains why CanAdmit is false, or returns "" when it is true
func DenyReason(zone models.Zone, kind string, sub *models.Subscription, now time.Time) string {
	if !zone.Open {
		return "zone is closed"
	}
	switch kind {
	case models.TicketVisitor:
		if zone.AvailableForVisitors <= 0 {
			return "no slots available for visitors"
		}
	case models.TicketSubscriber:
		switch {
		case sub == nil:
			return "subscription is required"
		case !sub.Usable(now):
			return "subscription is inactive or outside its validity period"
		case sub.Category != zone.CategoryID:
			return "subscription category does not match the zone"
		case zone.AvailableForSubscribers <= 0:
			return "no slots available for subscribers"
		}
	default:
		return "unknown ticket type"
	}
	return ""
}

// Selectable is the predicate attendant screens use to enable a zone
func Selectable(zone models.Zone, kind string, sub *models.Subscription, now time.Time) bool {
	return CanAdmit(zone, kind, sub, now)
}

// Admit applies one check-in to the counters. Visitors take a free slot;
// subscribers take a reserved slot first, then a free one.
func Admit(zone models.Zone, kind string) Mutation {
	m := Mutation{Zone: zone}
	z := &m.Zone

	z.Occupied++
	switch kind {
	case models.TicketSubscriber:
		z.AvailableForSubscribers = m.dec("availableForSubscribers", z.AvailableForSubscribers)
		if z.Reserved > 0 {
			z.Reserved--
		} else {
			z.Free = m.dec("free", z.Free)
		}
	default:
		z.AvailableForVisitors = m.dec("availableForVisitors", z.AvailableForVisitors)
		z.Free = m.dec("free", z.Free)
	}
	return m
}

// Release is the inverse of Admit. A subscriber's slot goes back to the
// reserved pool until it reaches ReservedSlots.
func Release(zone models.Zone, kind string) Mutation {
	m := Mutation{Zone: zone}
	z := &m.Zone

	z.Occupied = m.dec("occupied", z.Occupied)
	switch kind {
	case models.TicketSubscriber:
		z.AvailableForSubscribers++
		if z.Reserved < z.ReservedSlots {
			z.Reserved++
		} else {
			z.Free++
		}
	default:
		z.AvailableForVisitors++
		z.Free++
	}
	return m
}

// DeriveAvailability sets the availability counters from free and reserved.
// Subscribers may use both pools, visitors only the free one.
func DeriveAvailability(zone models.Zone) models.Zone {
	zone.AvailableForVisitors = max(0, zone.Free)
	zone.AvailableForSubscribers = max(0, zone.Free+zone.Reserved)
	return zone
}

// Recompute rebuilds every counter from the zone's configuration and the
// number of tickets still open in it.
func Recompute(zone models.Zone, openVisitors, openSubscribers int) models.Zone {
	zone.Occupied = openVisitors + openSubscribers
	zone.Reserved = max(0, min(zone.ReservedSlots, zone.TotalSlots)-openSubscribers)
	zone.Free = max(0, zone.TotalSlots-zone.Occupied-zone.Reserved)
	return DeriveAvailability(zone)
}

func (m *Mutation) dec(field string, v int) int {
	if v <= 0 {
		m.Inconsistencies = append(m.Inconsistencies, field)
		return 0
	}
	return v - 1
}
