// Package model holds the xDS snapshot engine's resource cache: the
// "arena + index" pattern of an atomically-swapped, fully-built
// resource set, read without locking by every connected session and
// rewritten wholesale by a periodic rebuild or an on-demand signal
// after a materializer write. Grounded in the atomic-swap idiom
// throughout the pack's cache-style components, adapted for
// per-(scope,type_url) version counters rather than one global version.
package model

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/protobuf/proto"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/filters"
	"github.com/flowplane/flowplane/pkg/secrets"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
	"github.com/flowplane/flowplane/pkg/xds/resources"
	"github.com/flowplane/flowplane/pkg/xds/scope"
)

// index is one point-in-time, fully-built view of every resource row in
// storage, keyed by name within each type.
type index struct {
	listeners map[string]resources.Built
	routes    map[string]resources.Built
	clusters  map[string]resources.Built
	endpoints map[string]resources.Built // ClusterLoadAssignment, keyed by cluster name
	secrets   map[string]resources.Built
}

func emptyIndex() *index {
	return &index{
		listeners: map[string]resources.Built{},
		routes:    map[string]resources.Built{},
		clusters:  map[string]resources.Built{},
		endpoints: map[string]resources.Built{},
		secrets:   map[string]resources.Built{},
	}
}

// Cache is the xDS snapshot engine. It owns the resource index and the
// per-(scope,type_url) version counters derived from it.
type Cache struct {
	store     storage.Transactor
	converter *filters.Converter
	resolver  *secrets.Resolver

	idx atomic.Pointer[index]

	mu       sync.Mutex
	versions map[string]uint64
	lastHash map[string]uint64
}

// NewCache builds an empty Cache; call Rebuild before serving any
// snapshot, or the engine will correctly, if uselessly, report zero
// resources of every type.
func NewCache(store storage.Transactor, converter *filters.Converter, resolver *secrets.Resolver) *Cache {
	c := &Cache{
		store:     store,
		converter: converter,
		resolver:  resolver,
		versions:  map[string]uint64{},
		lastHash:  map[string]uint64{},
	}
	c.idx.Store(emptyIndex())
	return c
}

// Rebuild reloads every cluster, route configuration, listener, and
// secret row from storage, builds its Envoy wire form, and atomically
// swaps the result in. Concurrent SnapshotFor calls always see either
// the old or the new index, never a partially-built one.
func (c *Cache) Rebuild(ctx context.Context) error {
	next := emptyIndex()

	err := c.store.View(ctx, func(tx storage.Tx) error {
		clusters, err := tx.Clusters().ListAll(0, 0)
		if err != nil {
			return err
		}
		for _, cl := range clusters {
			built, err := resources.BuildCluster(cl)
			if err != nil {
				return fmt.Errorf("build cluster %q: %w", cl.Name, err)
			}
			next.clusters[built.Name] = built

			epBuilt, err := resources.BuildEndpoint(cl)
			if err != nil {
				return fmt.Errorf("build endpoint %q: %w", cl.Name, err)
			}
			next.endpoints[epBuilt.Name] = epBuilt
		}

		routes, err := tx.Routes().ListAll(0, 0)
		if err != nil {
			return err
		}
		for _, rc := range routes {
			built, err := resources.BuildRouteConfiguration(rc, c.converter)
			if err != nil {
				return fmt.Errorf("build route configuration %q: %w", rc.Name, err)
			}
			next.routes[built.Name] = built
		}

		listeners, err := tx.Listeners().ListAll(0, 0)
		if err != nil {
			return err
		}
		for _, l := range listeners {
			built, err := resources.BuildListener(l, c.converter)
			if err != nil {
				return fmt.Errorf("build listener %q: %w", l.Name, err)
			}
			next.listeners[built.Name] = built
		}

		secretRows, err := tx.Secrets().ListAll(0, 0)
		if err != nil {
			return err
		}
		for _, s := range secretRows {
			certPEM, keyPEM, err := c.resolveSecretMaterial(ctx, s)
			if err != nil {
				return fmt.Errorf("resolve secret %q: %w", s.Name, err)
			}
			built, err := resources.BuildSecret(s, certPEM, keyPEM)
			if err != nil {
				return fmt.Errorf("build secret %q: %w", s.Name, err)
			}
			next.secrets[built.Name] = built
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.idx.Store(next)
	return nil
}

// resolveSecretMaterial extracts PEM bytes for a Secret row, either from
// its inline Configuration or by fetching through the backend resolver.
// A tls_certificate sourced from a backend expects its private key under
// the same reference with ":key" appended to the path — this package
// never talks to a backend directly, so the convention lives here rather
// than inside pkg/secrets.
func (c *Cache) resolveSecretMaterial(ctx context.Context, s *types.Secret) (cert, key []byte, err error) {
	switch {
	case s.Configuration != nil:
		switch s.SecretType {
		case types.SecretTLSCertificate:
			return []byte(stringField(s.Configuration, "certificate_chain")), []byte(stringField(s.Configuration, "private_key")), nil
		case types.SecretValidationContext:
			return []byte(stringField(s.Configuration, "trusted_ca")), nil, nil
		default:
			return []byte(stringField(s.Configuration, "value")), nil, nil
		}
	case s.BackendReference != "":
		if c.resolver == nil {
			return nil, nil, apierr.New(apierr.Config, "secret_backend", s.Name, fmt.Errorf("no secret resolver configured"))
		}
		cert, err = c.resolver.Resolve(ctx, s.BackendReference)
		if err != nil {
			return nil, nil, err
		}
		if s.SecretType == types.SecretTLSCertificate {
			key, err = c.resolver.Resolve(ctx, s.BackendReference+":key")
			if err != nil {
				return nil, nil, err
			}
		}
		return cert, key, nil
	default:
		return nil, nil, apierr.Validationf("secret %q has neither inline configuration nor a backend reference", s.Name)
	}
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// SnapshotFor returns the scope-filtered, versioned Snapshot of typeURL
// for sc, using the most recently rebuilt index. The returned version
// number only advances when the content (by aggregate hash) actually
// changed since the last call for this (scope, type_url) pair — a
// rebuild that reloads byte-identical data from storage does not bump
// the version a connected proxy has already acked.
func (c *Cache) SnapshotFor(sc scope.Scope, typeURL types.TypeURL) (*types.Snapshot, error) {
	idx := c.idx.Load()
	ns := visibleNames(sc, idx)

	var built map[string]resources.Built
	var names []string
	switch typeURL {
	case types.TypeURLListener:
		built, names = idx.listeners, sortedKeys(ns.listeners)
	case types.TypeURLRouteConfiguration:
		built, names = idx.routes, sortedKeys(ns.routes)
	case types.TypeURLCluster:
		built, names = idx.clusters, sortedKeys(ns.clusters)
	case types.TypeURLClusterLoadAssignment:
		built, names = idx.endpoints, sortedKeys(ns.clusters)
	case types.TypeURLSecret:
		built, names = idx.secrets, sortedKeys(ns.secrets)
	default:
		return nil, apierr.Validationf("unknown xds type url %q", typeURL)
	}

	out := make([]types.NamedResource, 0, len(names))
	var aggregate uint64
	for _, name := range names {
		b, ok := built[name]
		if !ok {
			// Referenced by a visible listener or route but not itself
			// built yet (the referent row does not exist in storage).
			// Cross-reference consistency means never describing a
			// resource the proxy cannot itself resolve, so it is
			// silently dropped from this type's resource list; the
			// referencing listener or route still gets sent, Envoy
			// marks it unready until the dependency appears.
			continue
		}
		anyBytes, err := proto.Marshal(b.Any)
		if err != nil {
			return nil, apierr.Wrap(apierr.Internal, fmt.Errorf("marshal any for %q: %w", name, err))
		}
		out = append(out, types.NamedResource{Name: name, Any: anyBytes, Hash: b.Hash})
		aggregate = aggregate*31 + b.Hash
	}

	key := sc.Key() + "/" + string(typeURL)
	c.mu.Lock()
	if last, seen := c.lastHash[key]; !seen || last != aggregate {
		c.versions[key]++
		c.lastHash[key] = aggregate
	}
	version := c.versions[key]
	c.mu.Unlock()

	return &types.Snapshot{
		TypeURL:       typeURL,
		VersionNumber: version,
		Resources:     out,
		GeneratedAt:   time.Now(),
	}, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
