package collector

import (
	"fmt"
	"sort"
)

// Registration couples a collector with its run policy.
type Registration struct {
	Collector Collector

	// Priority fixes the section's position in the assembled payload;
	// smaller sorts earlier. Ties break on ID so output stays
	// deterministic.
	Priority int

	// Required marks a collector whose failure (or empty output) must
	// abort the whole run.
	Required bool
}

// Registry is the static set of known collectors. It is assembled once at
// startup; per-run descriptor lists are derived from it via Enabled.
type Registry struct {
	regs []Registration
	byID map[string]Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Registration)}
}

// Register adds a collector. IDs must be unique.
func (r *Registry) Register(reg Registration) error {
	if reg.Collector == nil {
		return fmt.Errorf("registration requires a collector")
	}
	id := reg.Collector.ID()
	if id == "" {
		return fmt.Errorf("collector has empty id")
	}
	if _, dup := r.byID[id]; dup {
		return fmt.Errorf("collector %q already registered", id)
	}
	r.byID[id] = reg
	r.regs = append(r.regs, reg)
	return nil
}

// Lookup returns the registration for id.
func (r *Registry) Lookup(id string) (Registration, bool) {
	reg, ok := r.byID[id]
	return reg, ok
}

// MustRegister is Register that panics on error; for static wiring at
// startup where a duplicate is a programming mistake.
func (r *Registry) MustRegister(reg Registration) {
	if err := r.Register(reg); err != nil {
		panic(err)
	}
}

// Enabled returns the registrations gated on by the enablement map, sorted
// into the fixed assembly order (priority, then ID). A collector runs only
// when its ID maps to true.
func (r *Registry) Enabled(enabled map[string]bool) []Registration {
	out := make([]Registration, 0, len(r.regs))
	for _, reg := range r.regs {
		if enabled[reg.Collector.ID()] {
			out = append(out, reg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Collector.ID() < out[j].Collector.ID()
	})
	return out
}

// All returns every registration in assembly order.
func (r *Registry) All() []Registration {
	regs := make([]Registration, len(r.regs))
	copy(regs, r.regs)
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].Priority != regs[j].Priority {
			return regs[i].Priority < regs[j].Priority
		}
		return regs[i].Collector.ID() < regs[j].Collector.ID()
	})
	return regs
}

// IDs returns all registered collector IDs in assembly order.
func (r *Registry) IDs() []string {
	regs := r.All()
	ids := make([]string, len(regs))
	for i, reg := range regs {
		ids[i] = reg.Collector.ID()
	}
	return ids
}

// Len returns the number of registered collectors.
func (r *Registry) Len() int { return len(r.regs) }
