package provider

import "sync"

// Registry lazily constructs the shared provider client on first use.
// The client is stateless, so one instance serves every session.
type Registry struct {
	once  sync.Once
	build func() (Provider, error)

	p   Provider
	err error
}

// NewRegistry wraps a provider factory. The factory runs at most once.
func NewRegistry(build func() (Provider, error)) *Registry {
	return &Registry{build: build}
}

// Get returns the shared provider, constructing it on the first call.
// A construction error is sticky and returned to every caller.
func (r *Registry) Get() (Provider, error) {
	r.once.Do(func() {
		r.p, r.err = r.build()
	})
	return r.p, r.err
}
