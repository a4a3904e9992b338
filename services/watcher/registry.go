package watcher

import "sync"

// RemovalPolicy decides what happens when an office that was flagged as
// a false positive proves bookable again. The upstream behavior was
// observed doing both, so the choice is explicit configuration rather
// than an accident of which code path runs first.
type RemovalPolicy string

const (
	// drop only the re-observed office
	RemoveOne RemovalPolicy = "remove-one"
	// wipe the whole registry; the portal defect tends to clear for
	// every office at once when its backing data refreshes
	FlushAll RemovalPolicy = "flush-all"
)

// FalsePositiveRegistry remembers offices whose "reservable" UI marker
// is known to be stale. Membership is advisory: a flagged office is
// skipped for deep inspection on the current pass but may safely be
// re-inspected once cleared. One instance is shared by every session
// in the process.
type FalsePositiveRegistry struct {
	mu      sync.Mutex
	policy  RemovalPolicy
	flagged map[string]struct{}
}

func NewFalsePositiveRegistry(policy RemovalPolicy) *FalsePositiveRegistry {
	if policy == "" {
		policy = RemoveOne
	}
	return &FalsePositiveRegistry{
		policy:  policy,
		flagged: make(map[string]struct{}),
	}
}

func (r *FalsePositiveRegistry) Flag(officeName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flagged[officeName] = struct{}{}
}

func (r *FalsePositiveRegistry) Flagged(officeName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.flagged[officeName]
	return ok
}

// Clear records that officeName was re-observed as genuinely bookable
// and applies the removal policy.
func (r *FalsePositiveRegistry) Clear(officeName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.policy {
	case FlushAll:
		r.flagged = make(map[string]struct{})
	default:
		delete(r.flagged, officeName)
	}
}

func (r *FalsePositiveRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flagged)
}
