package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hydrosight/waterbodies/internal/inventory"
)

// Memory is an in-process Store for tests and dry runs.
type Memory struct {
	mu          sync.Mutex
	waterbodies map[string]inventory.Waterbody
	obs         map[string]Observation
}

func NewMemory() *Memory {
	return &Memory{
		waterbodies: make(map[string]inventory.Waterbody),
		obs:         make(map[string]Observation),
	}
}

func (m *Memory) UpsertWaterbodies(_ context.Context, ws []inventory.Waterbody, update bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range ws {
		if _, ok := m.waterbodies[w.UID]; ok && !update {
			continue
		}
		m.waterbodies[w.UID] = w
	}
	return nil
}

func (m *Memory) LoadWaterbodies(_ context.Context) ([]inventory.Waterbody, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]inventory.Waterbody, 0, len(m.waterbodies))
	for _, w := range m.waterbodies {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func (m *Memory) UpsertObservations(_ context.Context, obs []Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range obs {
		m.obs[o.OBSID] = o
	}
	return nil
}

func (m *Memory) TaskObservationsExist(_ context.Context, taskID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.obs {
		if strings.HasPrefix(id, taskID+"_") {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) LastObservationDay(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last string
	for _, o := range m.obs {
		if o.SolarDay > last {
			last = o.SolarDay
		}
	}
	return last, nil
}

// Observations returns all stored observations sorted by obs_id, for tests.
func (m *Memory) Observations() []Observation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Observation, 0, len(m.obs))
	for _, o := range m.obs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OBSID < out[j].OBSID })
	return out
}
