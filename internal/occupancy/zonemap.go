package occupancy

import (
	"sort"
	"sync"

	"parkgate/internal/models"
)

// ZoneMap is the client-side keyed-by-id zone store. Every write replaces the
// whole zone. Snapshots older than the held version are rejected; version 0
// means unversioned and is always taken in arrival order.
type ZoneMap struct {
	mu    sync.RWMutex
	zones map[string]models.Zone
}

func NewZoneMap() *ZoneMap {
	return &ZoneMap{zones: make(map[string]models.Zone)}
}

// Apply stores zone unless a newer version is already held
func (m *ZoneMap) Apply(zone models.Zone) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(zone)
}

func (m *ZoneMap) applyLocked(zone models.Zone) bool {
	if held, ok := m.zones[zone.ID]; ok && zone.Version != 0 && zone.Version < held.Version {
		return false
	}
	m.zones[zone.ID] = zone
	return true
}

// ReplaceAll loads a full listing. Zones missing from the listing are dropped.
func (m *ZoneMap) ReplaceAll(zones []models.Zone) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{}, len(zones))
	for _, z := range zones {
		seen[z.ID] = struct{}{}
		m.applyLocked(z)
	}
	for id := range m.zones {
		if _, ok := seen[id]; !ok {
			delete(m.zones, id)
		}
	}
}

// AdmitLocal applies an optimistic admission. The result keeps the version of
// the snapshot it came from so the server's reply always supersedes it.
func (m *ZoneMap) AdmitLocal(id, kind string) (Mutation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	zone, ok := m.zones[id]
	if !ok {
		return Mutation{}, false
	}
	mut := Admit(zone, kind)
	m.zones[id] = mut.Zone
	return mut, true
}

func (m *ZoneMap) Get(id string) (models.Zone, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.zones[id]
	return z, ok
}

// List returns the zones ordered by name, then id
func (m *ZoneMap) List() []models.Zone {
	m.mu.RLock()
	out := make([]models.Zone, 0, len(m.zones))
	for _, z := range m.zones {
		out = append(out, z)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *ZoneMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.zones)
}
