package filters

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/flowplane/flowplane/pkg/apierr"
)

// structTypeURL is used for filters that have no specific Envoy message
// and simply forward a google.protobuf.Struct payload.
const structTypeURL = "type.googleapis.com/google.protobuf.Struct"

// Converter turns filter_type + JSON configuration into wire Any values,
// looking up the type URL and capabilities through a Registry rather
// than switching on filter_type in code.
type Converter struct {
	registry *Registry
}

// NewConverter builds a Converter bound to registry.
func NewConverter(registry *Registry) *Converter {
	return &Converter{registry: registry}
}

// ToListenerAny converts config to an Any for listener/HCM-scoped
// injection, addressed by the schema's type URL.
func (c *Converter) ToListenerAny(filterType string, config map[string]any) (*anypb.Any, error) {
	schema, err := c.registry.MustGet(filterType)
	if err != nil {
		return nil, err
	}
	st, err := JSONToStruct(config)
	if err != nil {
		return nil, err
	}
	return structAny(schema.Envoy.TypeURL, st)
}

// ToPerRouteAny converts config to a (http_filter_name, Any) pair for a
// virtual-host or route-scoped override. It returns ok=false when the
// filter type does not support per-route overrides — never an error,
// since "not supported" is an expected, silent outcome.
func (c *Converter) ToPerRouteAny(filterType string, config map[string]any) (name string, any *anypb.Any, ok bool, err error) {
	schema, err := c.registry.MustGet(filterType)
	if err != nil {
		return "", nil, false, err
	}
	if schema.Capabilities.PerRouteBehavior == NotSupported || schema.Envoy.PerRouteTypeURL == "" {
		return "", nil, false, nil
	}
	st, err := JSONToStruct(config)
	if err != nil {
		return "", nil, false, err
	}
	a, err := structAny(schema.Envoy.PerRouteTypeURL, st)
	if err != nil {
		return "", nil, false, err
	}
	return schema.Envoy.HTTPFilterName, a, true, nil
}

// CreateEmptyAny builds a placeholder Any for a filter type that needs
// no configuration.
func (c *Converter) CreateEmptyAny(filterType string) (*anypb.Any, error) {
	schema, err := c.registry.MustGet(filterType)
	if err != nil {
		return nil, err
	}
	return structAny(schema.Envoy.TypeURL, &structpb.Struct{})
}

// FilterName returns the HTTP filter name registered for filterType.
func (c *Converter) FilterName(filterType string) (string, bool) {
	schema, ok := c.registry.Get(filterType)
	if !ok {
		return "", false
	}
	return schema.Envoy.HTTPFilterName, true
}

func structAny(typeURL string, st *structpb.Struct) (*anypb.Any, error) {
	data, err := proto.Marshal(st)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, err)
	}
	return &anypb.Any{TypeUrl: typeURL, Value: data}, nil
}

// CreateGenericStructAny wraps config as a bare google.protobuf.Struct
// Any, for a custom filter_type the registry has no specific binding
// for.
func CreateGenericStructAny(config map[string]any) (*anypb.Any, error) {
	st, err := JSONToStruct(config)
	if err != nil {
		return nil, err
	}
	return structAny(structTypeURL, st)
}

// JSONToStruct converts a JSON-decoded map into a protobuf Struct. It
// rejects nothing structpb itself would accept: values must already be
// the concrete types encoding/json produces (map[string]any, []any,
// string, float64/json.Number, bool, nil).
func JSONToStruct(config map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(config)
	if err != nil {
		return nil, apierr.Validationf("filter configuration is not struct-representable: %v", err)
	}
	return st, nil
}

// StructToJSON converts a protobuf Struct back into a plain map, for
// debugging and round-trip tests.
func StructToJSON(st *structpb.Struct) map[string]any {
	if st == nil {
		return nil
	}
	return st.AsMap()
}
