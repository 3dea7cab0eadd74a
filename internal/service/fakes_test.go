package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"parkgate/internal/models"
	"parkgate/internal/repository"
)

type published struct {
	subject string
	payload []byte
}

type recordingBus struct {
	mu       sync.Mutex
	messages []published
}

func (b *recordingBus) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, published{subject: subject, payload: payload})
	return nil
}

func (b *recordingBus) subjects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.messages))
	for i, m := range b.messages {
		out[i] = m.subject
	}
	return out
}

type fakeWindows struct {
	rushHours []models.RushHour
	vacations []models.Vacation
}

func (f *fakeWindows) ListRushHours(context.Context) ([]models.RushHour, error) {
	return f.rushHours, nil
}

func (f *fakeWindows) ListVacations(context.Context) ([]models.Vacation, error) {
	return f.vacations, nil
}

type fakeSubscriptions map[string]*models.Subscription

func (f fakeSubscriptions) GetByID(_ context.Context, id string) (*models.Subscription, error) {
	return f[id], nil
}

// memoryStore keeps zones and tickets in maps and runs the mutation callbacks
// the way the postgres repositories do, bumping the zone version on writes
type memoryStore struct {
	zones   map[string]models.Zone
	tickets map[string]models.Ticket
}

func newMemoryStore(zones ...models.Zone) *memoryStore {
	s := &memoryStore{zones: map[string]models.Zone{}, tickets: map[string]models.Ticket{}}
	for _, z := range zones {
		s.zones[z.ID] = z
	}
	return s
}

func (s *memoryStore) GetByID(_ context.Context, id string) (*models.Ticket, error) {
	t, ok := s.tickets[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *memoryStore) List(_ context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	var out []models.Ticket
	for _, t := range s.tickets {
		if filter.Status == "open" && !t.IsOpen() || filter.Status == "closed" && t.IsOpen() {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) Admit(_ context.Context, zoneID string, fn repository.AdmitFunc) (*models.Ticket, *models.Zone, error) {
	zone, ok := s.zones[zoneID]
	if !ok {
		return nil, nil, nil
	}
	next, t, err := fn(zone)
	if err != nil {
		return nil, nil, err
	}
	next.Version++
	s.zones[zoneID] = next
	s.tickets[t.ID] = *t
	return t, &next, nil
}

func (s *memoryStore) Settle(_ context.Context, ticketID string, fn repository.SettleFunc) (*models.Ticket, *models.Zone, error) {
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return nil, nil, nil
	}
	zone := s.zones[ticket.ZoneID]
	t, next, changed, err := fn(ticket, zone)
	if err != nil {
		return nil, nil, err
	}
	t = repository.ApplySettlement(ticket, t)
	s.tickets[ticketID] = t
	if changed {
		next.Version++
		s.zones[zone.ID] = next
		zone = next
	}
	return &t, &zone, nil
}

func (s *memoryStore) openCounts(zoneID string) repository.OpenCounts {
	var c repository.OpenCounts
	for _, t := range s.tickets {
		if t.ZoneID != zoneID || !t.IsOpen() {
			continue
		}
		if t.Type == models.TicketSubscriber {
			c.Subscribers++
		} else {
			c.Visitors++
		}
	}
	return c
}

// zoneRepo exposes the memory store through the reconciliation interface
type zoneRepo struct{ *memoryStore }

func (r zoneRepo) List(context.Context) ([]models.Zone, error) {
	out := make([]models.Zone, 0, len(r.zones))
	for _, z := range r.zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r zoneRepo) Mutate(_ context.Context, id string, fn repository.ZoneMutator) (*models.Zone, error) {
	zone, ok := r.zones[id]
	if !ok {
		return nil, nil
	}
	next, changed, err := fn(zone, r.openCounts(id))
	if err != nil {
		return nil, err
	}
	if !changed {
		return &zone, nil
	}
	next.Version++
	r.zones[id] = next
	return &next, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
