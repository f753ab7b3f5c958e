package types

import (
	"time"

	"github.com/flowplane/flowplane/pkg/apierr"
)

// MatchType mirrors PathMatchKind for the materializer's input spec
// shape, kept distinct so API wire structs don't leak internal route
// representation.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchPrefix   MatchType = "prefix"
	MatchRegex    MatchType = "regex"
	MatchTemplate MatchType = "template"
)

// UpstreamTarget is one upstream the materializer will turn into (or
// reuse as) a Cluster.
type UpstreamTarget struct {
	Host   string
	Port   uint32
	Weight uint32 // 0 for a single-target route
}

// RouteSpec is one route of an ApiDefinitionSpec, the materializer's
// input shape.
type RouteSpec struct {
	Name            string
	MatchType       MatchType
	MatchValue      string
	Targets         []UpstreamTarget
	TimeoutSeconds  uint32
	RewritePrefix   string
	RewriteRegex    string
	RouteOrder      *int // nil means "append at end"
	FilterRefs      []FilterAttachment
}

// Validate checks the shape of a single route spec.
func (r *RouteSpec) Validate() error {
	if r.MatchValue == "" {
		return apierr.Validationf("route %q match value must not be empty", r.Name)
	}
	if len(r.Targets) == 0 {
		return apierr.Validationf("route %q must declare at least one target", r.Name)
	}
	if len(r.Targets) > 1 {
		var sum uint64
		for _, t := range r.Targets {
			sum += uint64(t.Weight)
		}
		if sum == 0 {
			return apierr.Validationf("route %q has multiple targets but no weights", r.Name)
		}
	}
	return nil
}

// ApiDefinitionSpec is the materializer's input.
type ApiDefinitionSpec struct {
	ID                string
	TeamID            string
	Domain            string
	ListenerIsolation bool
	IsolationListener *ListenerSpec // required iff ListenerIsolation
	TargetListeners   []string      // listener names this definition may merge into when not isolated
	TLSConfig         *TLSContext
	Routes            []RouteSpec
	// FilterRefs are listener-scoped filter attachments applied to
	// whichever listener (shared or isolated) this definition targets —
	// e.g. the global CORS/header-mutation filters an OpenAPI document's
	// root-level x-flowplane-filters maps onto.
	FilterRefs        []FilterAttachment
	Version           uint64
	BootstrapURI      string
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Materialized* record what the compile step produced for this
	// definition, so a later delete can cascade to exactly the
	// resources this definition owns
	// without touching a cluster or route configuration another
	// definition still references.
	MaterializedClusterIDs  []string
	MaterializedRouteID     string
	MaterializedListenerID  string // only set when ListenerIsolation is true
}

// ListenerSpec describes the isolation listener to create.
type ListenerSpec struct {
	Name    string
	Address string
	Port    uint32
}

// Validate enforces the ApiDefinition invariants that don't require a
// repository: ListenerIsolation <=> IsolationListener presence, and
// every route's own shape.
func (a *ApiDefinitionSpec) Validate() error {
	if a.Domain == "" {
		return apierr.Validationf("api definition domain must not be empty")
	}
	if a.ListenerIsolation && a.IsolationListener == nil {
		return apierr.Validationf("listener_isolation requires an isolation_listener")
	}
	if !a.ListenerIsolation && a.IsolationListener != nil {
		return apierr.Validationf("isolation_listener set without listener_isolation")
	}
	if a.IsolationListener != nil {
		if a.IsolationListener.Name == "" {
			return apierr.Validationf("isolation listener must have a name")
		}
		if a.IsolationListener.Port < 1 || a.IsolationListener.Port > 65535 {
			return apierr.Validationf("isolation listener port %d out of range", a.IsolationListener.Port)
		}
	}
	for i := range a.Routes {
		if err := a.Routes[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
