package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Func is a cleanup handler run during graceful shutdown. It should honour
// the deadline on ctx.
type Func func(ctx context.Context) error

type entry struct {
	name     string
	priority int // lower runs earlier
	fn       Func
}

// Registry keeps cleanup handlers ordered by priority. It runs at most once;
// registrations after Run are ignored.
//
// Priorities used by the serve command:
//   - 10: stop accepting HTTP and drain in-flight generations
//   - 50: flush metrics and other buffered state
//   - 90: sync the logger
type Registry struct {
	mu      sync.Mutex
	entries []entry
	ran     bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fn under name. Equal priorities run in registration order.
func (r *Registry) Register(name string, priority int, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ran {
		return
	}
	r.entries = append(r.entries, entry{name: name, priority: priority, fn: fn})
}

// Run executes every handler in priority order, continuing past failures.
// Each error is wrapped with the handler name.
func (r *Registry) Run(ctx context.Context) []error {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return nil
	}
	r.ran = true
	sorted := r.sortedLocked()
	r.mu.Unlock()

	var errs []error
	for _, e := range sorted {
		if err := e.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown: %s: %w", e.name, err))
		}
	}
	return errs
}

// Names lists handler names in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	sorted := r.sortedLocked()
	names := make([]string, len(sorted))
	for i, e := range sorted {
		names[i] = e.name
	}
	return names
}

func (r *Registry) sortedLocked() []entry {
	sorted := make([]entry, len(r.entries))
	copy(sorted, r.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].priority < sorted[j].priority
	})
	return sorted
}
