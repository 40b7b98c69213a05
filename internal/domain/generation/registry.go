package generation

import (
	"sort"
	"sync"
	"time"

	"github.com/elevare/server/internal/model"
)

// Observer receives every state transition.
type Observer func(Snapshot)

type machineKey struct {
	userID  string
	feature model.FeatureType
}

// Registry holds one machine per user and feature. Features run
// independently of each other.
type Registry struct {
	mu        sync.Mutex
	machines  map[machineKey]*Machine
	leases    map[machineKey]int
	observers map[int]Observer
	nextID    int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		machines:  make(map[machineKey]*Machine),
		leases:    make(map[machineKey]int),
		observers: make(map[int]Observer),
	}
}

// For returns the machine of a user's feature, creating it idle.
func (r *Registry) For(userID string, feature model.FeatureType) *Machine {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := machineKey{userID: userID, feature: feature}
	if m, ok := r.machines[key]; ok {
		return m
	}
	m := NewMachine(userID, feature, r.broadcast)
	r.machines[key] = m
	return m
}

// Acquire returns the machine of a user's feature like For, and keeps it
// registered until release is called. Prune skips leased machines.
func (r *Registry) Acquire(userID string, feature model.FeatureType) (m *Machine, release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := machineKey{userID: userID, feature: feature}
	m, ok := r.machines[key]
	if !ok {
		m = NewMachine(userID, feature, r.broadcast)
		r.machines[key] = m
	}
	r.leases[key]++

	var once sync.Once
	return m, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.leases[key]--; r.leases[key] <= 0 {
				delete(r.leases, key)
			}
		})
	}
}

// Lookup returns an existing machine.
func (r *Registry) Lookup(userID string, feature model.FeatureType) (*Machine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.machines[machineKey{userID: userID, feature: feature}]
	return m, ok
}

// Snapshots returns the state of every machine of a user, ordered by feature.
func (r *Registry) Snapshots(userID string) []Snapshot {
	r.mu.Lock()
	var machines []*Machine
	for key, m := range r.machines {
		if key.userID == userID {
			machines = append(machines, m)
		}
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(machines))
	for _, m := range machines {
		out = append(out, m.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Feature < out[j].Feature })
	return out
}

// Subscribe registers an observer and returns its unsubscribe function.
func (r *Registry) Subscribe(obs Observer) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.observers[id] = obs
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.observers, id)
		r.mu.Unlock()
	}
}

// Prune drops machines whose last attempt finished before cutoff and that
// are not leased by Acquire. It returns the number of machines removed.
func (r *Registry) Prune(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, m := range r.machines {
		if r.leases[key] > 0 {
			continue
		}
		snap := m.Snapshot()
		if snap.State.IsTerminal() && snap.FinishedAt.Before(cutoff) {
			delete(r.machines, key)
			removed++
		}
	}
	return removed
}

func (r *Registry) broadcast(snap Snapshot) {
	r.mu.Lock()
	observers := make([]Observer, 0, len(r.observers))
	for _, obs := range r.observers {
		observers = append(observers, obs)
	}
	r.mu.Unlock()

	for _, obs := range observers {
		obs(snap)
	}
}
