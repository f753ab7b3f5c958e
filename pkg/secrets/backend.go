package secrets

import (
	"context"
	"strings"
	"sync"

	"github.com/flowplane/flowplane/pkg/apierr"
)

// Backend fetches the plaintext bytes a BackendReference points at. Each
// backend owns one name (its prefix in the reference string), kept as
// an open interface rather than a closed enum so new backend kinds can
// register without touching existing dispatch code.
type Backend interface {
	Name() string
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Resolver dispatches a BackendReference ("backend:path") to the
// registered Backend.
type Resolver struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewResolver returns an empty resolver; call Register to add backends.
func NewResolver() *Resolver {
	return &Resolver{backends: make(map[string]Backend)}
}

// Register adds or replaces a backend under its own Name().
func (r *Resolver) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name()] = b
}

// Resolve fetches the plaintext referenced by ref ("backend:path").
func (r *Resolver) Resolve(ctx context.Context, ref string) ([]byte, error) {
	backend, path, err := r.split(ref)
	if err != nil {
		return nil, err
	}
	return backend.Fetch(ctx, path)
}

func (r *Resolver) split(ref string) (Backend, string, error) {
	name, path, ok := strings.Cut(ref, ":")
	if !ok {
		return nil, "", apierr.Validationf("backend reference %q must be of the form backend:path", ref)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	if !ok {
		return nil, "", apierr.New(apierr.Backend, "secret_backend", name, nil)
	}
	return b, path, nil
}
