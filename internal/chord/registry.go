package chord

import "slices"

// Registry maps ids to registrations and owns the id counter.
type Registry struct {
	nextID  ID
	entries map[ID]*Registration
	order   []ID
}

// NewRegistry returns an empty registry whose first id is 1.
func NewRegistry() *Registry {
	return &Registry{
		nextID:  1,
		entries: make(map[ID]*Registration),
	}
}

func (r *Registry) allocate() ID {
	id := r.nextID
	r.nextID++
	return id
}

func (r *Registry) insert(reg *Registration) {
	if _, exists := r.entries[reg.id]; exists {
		return
	}
	r.entries[reg.id] = reg
	// Ids are allocated monotonically, so appending keeps order sorted.
	r.order = append(r.order, reg.id)
}

func (r *Registry) remove(id ID) bool {
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return true
}

func (r *Registry) get(id ID) (*Registration, bool) {
	reg, ok := r.entries[id]
	return reg, ok
}

// snapshot returns the current registrations in registration order.
func (r *Registry) snapshot() []*Registration {
	regs := make([]*Registration, 0, len(r.order))
	for _, id := range r.order {
		regs = append(regs, r.entries[id])
	}
	return regs
}

// forEachMatching visits, in registration order, every registration whose chord
// contains key. The set visited is fixed when the call starts: registrations
// added or removed by the visitor only affect later calls.
func (r *Registry) forEachMatching(key string, visit func(*Registration)) {
	for _, reg := range r.snapshot() {
		if reg.state.Has(key) {
			visit(reg)
		}
	}
}

// Len returns the number of live registrations.
func (r *Registry) Len() int { return len(r.entries) }

// IDs returns the live ids in registration order.
func (r *Registry) IDs() []ID {
	out := make([]ID, len(r.order))
	copy(out, r.order)
	return out
}
