package provider

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Factory builds a driver. Factories validate their configuration and return
// ErrMissingCredential before any network activity.
type Factory func() (Driver, error)

// Registry maps canonical driver names to factories.
//
// Resolution normalizes the requested name, applies the alias table and builds
// a fresh driver on every call; the registry keeps no per-call state.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	opts      *registryOptions
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		opts:      newRegistryOptions(opts...),
	}
}

// Normalize strips "-", "_" and spaces from name and lowercases it.
func Normalize(name string) string {
	return strings.ToLower(strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ':
			return -1
		}
		return r
	}, name))
}

// Canonical returns the canonical driver name for name.
func (r *Registry) Canonical(name string) string {
	n := Normalize(name)
	if c, ok := r.opts.aliases[n]; ok {
		return c
	}
	return n
}

// Register adds a factory under a canonical driver name.
func (r *Registry) Register(name string, f Factory) error {
	if f == nil {
		return fmt.Errorf("%w: nil factory for %q", ErrInvalidDriverName, name)
	}
	if name == "" || Normalize(name) != name {
		return fmt.Errorf("%w: %q is not canonical (use %q)", ErrInvalidDriverName, name, Normalize(name))
	}
	if target, ok := r.opts.aliases[name]; ok {
		return fmt.Errorf("%w: %q is an alias of %q", ErrInvalidDriverName, name, target)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateDriver, name)
	}
	r.factories[name] = f
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(name string, f Factory) {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
}

// Has reports whether a driver is registered under the canonical form of name.
func (r *Registry) Has(name string) bool {
	c := r.Canonical(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[c]
	return ok
}

// Names returns the registered driver names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Default returns the configured default driver for c, or "".
func (r *Registry) Default(c Capability) string {
	return r.opts.defaults[c]
}

// Supported reports whether the canonical driver is officially supported for c.
func (r *Registry) Supported(c Capability, canonical string) bool {
	return slices.Contains(r.opts.supported[c], canonical)
}

// Resolve returns a sender for capability c.
// An empty driver selects the configured default for c.
//
// It returns a *DriverError wrapping ErrDriverNotSupported when no factory
// matches and ErrContractViolation when the driver cannot serve c. Errors from
// the factory, such as ErrMissingCredential, are returned wrapped.
func (r *Registry) Resolve(c Capability, driver string) (Sender, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCapability, c)
	}

	requested := driver
	if requested == "" {
		requested = r.Default(c)
	}
	if requested == "" {
		return nil, &DriverError{Capability: c, Err: ErrDriverNotSupported}
	}

	canonical := r.Canonical(requested)
	if !r.Supported(c, canonical) {
		r.opts.logger.Warn("driver is not officially supported for capability",
			"capability", c, "driver", requested, "canonical", canonical)
	}

	r.mu.RLock()
	f, ok := r.factories[canonical]
	r.mu.RUnlock()
	if !ok {
		return nil, &DriverError{
			Capability: c,
			Requested:  requested,
			Canonical:  canonical,
			Err:        ErrDriverNotSupported,
		}
	}

	d, err := f()
	if err != nil {
		return nil, fmt.Errorf("provider: build %s: %w", canonical, err)
	}

	s, err := Bind(c, d)
	if err != nil {
		var de *DriverError
		if errors.As(err, &de) {
			de.Requested = requested
			de.Canonical = canonical
		}
		return nil, err
	}
	return s, nil
}
