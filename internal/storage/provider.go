// Package storage defines where the pipeline reads its URL list from and where
// it writes results. Locations are plain paths or scheme-qualified URIs such as
// gs://bucket/object; a Router dispatches each location to the Provider that
// owns its scheme.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Provider opens readable and writable streams for locations it owns.
type Provider interface {
	// OpenReader opens location for sequential reading.
	OpenReader(ctx context.Context, location string) (io.ReadCloser, error)
	// OpenWriter creates or truncates location for writing. The data is only
	// guaranteed to be persisted once the writer is closed.
	OpenWriter(ctx context.Context, location string) (io.WriteCloser, error)
}

// Router selects a Provider by location scheme, falling back to a default
// for locations without one.
type Router struct {
	fallback Provider
	schemes  map[string]Provider
}

// NewRouter builds a Router that sends scheme-less locations to fallback.
func NewRouter(fallback Provider) *Router {
	return &Router{
		fallback: fallback,
		schemes:  make(map[string]Provider),
	}
}

// Register routes locations with the given scheme (for example "gs") to p.
func (r *Router) Register(scheme string, p Provider) {
	r.schemes[strings.ToLower(scheme)] = p
}

// OpenReader implements Provider.
func (r *Router) OpenReader(ctx context.Context, location string) (io.ReadCloser, error) {
	p, err := r.resolve(location)
	if err != nil {
		return nil, err
	}
	return p.OpenReader(ctx, location)
}

// OpenWriter implements Provider.
func (r *Router) OpenWriter(ctx context.Context, location string) (io.WriteCloser, error) {
	p, err := r.resolve(location)
	if err != nil {
		return nil, err
	}
	return p.OpenWriter(ctx, location)
}

func (r *Router) resolve(location string) (Provider, error) {
	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("location is required")
	}
	scheme := Scheme(location)
	if scheme == "" || scheme == "file" {
		if r.fallback == nil {
			return nil, fmt.Errorf("no provider for %q", location)
		}
		return r.fallback, nil
	}
	p, ok := r.schemes[scheme]
	if !ok {
		return nil, fmt.Errorf("no provider registered for scheme %q", scheme)
	}
	return p, nil
}

// Scheme returns the lowercase scheme of location, or "" when it has none.
func Scheme(location string) string {
	idx := strings.Index(location, "://")
	if idx <= 0 {
		return ""
	}
	return strings.ToLower(location[:idx])
}
