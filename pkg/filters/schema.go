package filters

import (
	"sync"

	"github.com/flowplane/flowplane/pkg/apierr"
)

// PerRouteBehavior describes how a filter type may be overridden below
// the listener scope.
type PerRouteBehavior string

const (
	NotSupported PerRouteBehavior = "not_supported"
	DisableOnly  PerRouteBehavior = "disable_only"
	FullOverride PerRouteBehavior = "full_override"
)

// EnvoyBinding names the wire identifiers a known filter type resolves
// to: the HTTP filter chain name, the Any type URL for its listener-level
// config, and (if supported) the type URL for its per-route override.
type EnvoyBinding struct {
	TypeURL         string
	HTTPFilterName  string
	PerRouteTypeURL string
}

// Capabilities records what a filter type supports beyond the basic
// listener-scoped config.
type Capabilities struct {
	PerRouteBehavior PerRouteBehavior
}

// FilterSchemaDefinition is the registry value for one filter_type.
type FilterSchemaDefinition struct {
	FilterType   string
	Envoy        EnvoyBinding
	Capabilities Capabilities
}

// Registry maps filter_type strings to their schema definition. The
// zero value is usable once seeded; Registry is safe for concurrent
// reads after construction and for registration calls guarded by its
// own mutex, so new filter types can register themselves at startup.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]FilterSchemaDefinition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]FilterSchemaDefinition)}
}

// NewBuiltinRegistry returns a registry seeded with the known filter
// set: CORS, JWT, header mutation, local rate limit, compression,
// custom response, OAuth2, and MCP.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, s := range builtinSchemas {
		r.Register(s)
	}
	return r
}

// Register adds or replaces a schema definition.
func (r *Registry) Register(def FilterSchemaDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[def.FilterType] = def
}

// Get returns the schema for filterType, or false if unknown.
func (r *Registry) Get(filterType string) (FilterSchemaDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.schemas[filterType]
	return def, ok
}

// MustGet is like Get but returns an apierr.Config error for an unknown
// filter_type.
func (r *Registry) MustGet(filterType string) (FilterSchemaDefinition, error) {
	def, ok := r.Get(filterType)
	if !ok {
		return FilterSchemaDefinition{}, apierr.New(apierr.Config, "filter_type", filterType, nil)
	}
	return def, nil
}

// Contains reports whether filterType is registered.
func (r *Registry) Contains(filterType string) bool {
	_, ok := r.Get(filterType)
	return ok
}

var builtinSchemas = []FilterSchemaDefinition{
	{
		FilterType: "cors",
		Envoy: EnvoyBinding{
			TypeURL:        "type.googleapis.com/envoy.extensions.filters.http.cors.v3.Cors",
			HTTPFilterName: "envoy.filters.http.cors",
		},
		Capabilities: Capabilities{PerRouteBehavior: NotSupported},
	},
	{
		FilterType: "jwt_auth",
		Envoy: EnvoyBinding{
			TypeURL:        "type.googleapis.com/envoy.extensions.filters.http.jwt_authn.v3.JwtAuthentication",
			HTTPFilterName: "envoy.filters.http.jwt_authn",
		},
		Capabilities: Capabilities{PerRouteBehavior: NotSupported},
	},
	{
		FilterType: "header_mutation",
		Envoy: EnvoyBinding{
			TypeURL:         "type.googleapis.com/envoy.extensions.filters.http.header_mutation.v3.HeaderMutation",
			HTTPFilterName:  "envoy.filters.http.header_mutation",
			PerRouteTypeURL: "type.googleapis.com/envoy.extensions.filters.http.header_mutation.v3.HeaderMutationPerRoute",
		},
		Capabilities: Capabilities{PerRouteBehavior: FullOverride},
	},
	{
		FilterType: "local_rate_limit",
		Envoy: EnvoyBinding{
			TypeURL:        "type.googleapis.com/envoy.extensions.filters.http.local_ratelimit.v3.LocalRateLimit",
			HTTPFilterName: "envoy.filters.http.local_ratelimit",
		},
		Capabilities: Capabilities{PerRouteBehavior: NotSupported},
	},
	{
		FilterType: "compressor",
		Envoy: EnvoyBinding{
			TypeURL:        "type.googleapis.com/envoy.extensions.filters.http.compressor.v3.Compressor",
			HTTPFilterName: "envoy.filters.http.compressor",
		},
		Capabilities: Capabilities{PerRouteBehavior: DisableOnly},
	},
	{
		FilterType: "custom_response",
		Envoy: EnvoyBinding{
			TypeURL:        "type.googleapis.com/envoy.extensions.filters.http.custom_response.v3.CustomResponse",
			HTTPFilterName: "envoy.filters.http.custom_response",
		},
		Capabilities: Capabilities{PerRouteBehavior: NotSupported},
	},
	{
		FilterType: "oauth2",
		Envoy: EnvoyBinding{
			TypeURL:        "type.googleapis.com/envoy.extensions.filters.http.oauth2.v3.OAuth2",
			HTTPFilterName: "envoy.filters.http.oauth2",
		},
		Capabilities: Capabilities{PerRouteBehavior: NotSupported},
	},
	{
		FilterType: "mcp",
		Envoy: EnvoyBinding{
			TypeURL:         "type.googleapis.com/google.protobuf.Struct",
			HTTPFilterName:  "envoy.filters.http.golang",
			PerRouteTypeURL: "type.googleapis.com/google.protobuf.Struct",
		},
		Capabilities: Capabilities{PerRouteBehavior: DisableOnly},
	},
}
