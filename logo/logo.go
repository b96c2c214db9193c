// Package logo turns the logo references stored on templates into URLs a
// mail client can fetch.
//
// References are either plain URLs, which are used as they are, or object
// storage URIs (s3://bucket/key, gs://bucket/key) handled by the s3 and gcs
// subpackages. A [Mux] routes a reference to the resolver for its scheme.
package logo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

var (
	// ErrInvalidURI is returned for a malformed object storage URI.
	ErrInvalidURI = errors.New("logo: invalid uri")
	// ErrUnsupportedScheme is returned when no resolver handles a scheme.
	ErrUnsupportedScheme = errors.New("logo: unsupported scheme")
)

// URLResolver resolves a stored logo reference to a fetchable URL.
type URLResolver interface {
	ResolveURL(ctx context.Context, ref string) (string, error)
}

// Uploader stores a logo image and returns the reference to persist.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, content io.Reader) (string, error)
}

// Store is an object storage backend for logos.
type Store interface {
	URLResolver
	Uploader
}

// Func adapts a function to URLResolver.
type Func func(ctx context.Context, ref string) (string, error)

// ResolveURL calls f.
func (f Func) ResolveURL(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// passthrough schemes are already fetchable.
var passthrough = map[string]bool{"": true, "http": true, "https": true, "data": true, "cid": true}

// Mux dispatches references to resolvers by URI scheme.
// The zero value is ready to use and resolves only passthrough references.
type Mux struct {
	mu        sync.RWMutex
	resolvers map[string]URLResolver
}

// NewMux creates a Mux.
func NewMux() *Mux {
	return &Mux{resolvers: make(map[string]URLResolver)}
}

// Handle registers r for scheme, replacing any previous resolver.
func (m *Mux) Handle(scheme string, r URLResolver) *Mux {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolvers == nil {
		m.resolvers = make(map[string]URLResolver)
	}
	m.resolvers[strings.ToLower(scheme)] = r
	return m
}

// ResolveURL resolves ref with the resolver registered for its scheme.
// Plain URLs and relative paths are returned unchanged.
func (m *Mux) ResolveURL(ctx context.Context, ref string) (string, error) {
	scheme := Scheme(ref)
	m.mu.RLock()
	r, ok := m.resolvers[scheme]
	m.mu.RUnlock()
	if ok {
		return r.ResolveURL(ctx, ref)
	}
	if passthrough[scheme] {
		return ref, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
}

// Scheme returns the lowercased scheme of ref, or "" when it has none.
func Scheme(ref string) string {
	i := strings.Index(ref, ":")
	if i <= 0 {
		return ""
	}
	s := ref[:i]
	for j, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case j > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return ""
		}
	}
	return strings.ToLower(s)
}

// ParseURI splits a scheme://bucket/key URI.
func ParseURI(ref, scheme string) (bucket, key string, err error) {
	prefix := scheme + "://"
	if !strings.HasPrefix(ref, prefix) {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURI, ref)
	}
	bucket, key, ok := strings.Cut(ref[len(prefix):], "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w (no key): %s", ErrInvalidURI, ref)
	}
	return bucket, key, nil
}

// FormatURI builds a scheme://bucket/key URI.
func FormatURI(scheme, bucket, key string) string {
	return scheme + "://" + bucket + "/" + strings.TrimPrefix(key, "/")
}
