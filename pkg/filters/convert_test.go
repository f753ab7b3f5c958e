package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowplane/flowplane/pkg/apierr"
)

func TestJSONToStruct_RoundTrip(t *testing.T) {
	cfg := map[string]any{
		"key":     "value",
		"number":  float64(42),
		"boolean": true,
		"nested":  map[string]any{"inner": "deep"},
		"items":   []any{float64(1), float64(2), float64(3)},
	}
	st, err := JSONToStruct(cfg)
	require.NoError(t, err)
	back := StructToJSON(st)
	assert.Equal(t, "value", back["key"])
	assert.Equal(t, true, back["boolean"])
	assert.Equal(t, "deep", back["nested"].(map[string]any)["inner"])
}

func TestRegistry_KnownAndUnknownFilters(t *testing.T) {
	reg := NewBuiltinRegistry()
	assert.True(t, reg.Contains("header_mutation"))
	assert.True(t, reg.Contains("jwt_auth"))
	assert.False(t, reg.Contains("unknown_filter"))
}

func TestConverter_ToListenerAny(t *testing.T) {
	conv := NewConverter(NewBuiltinRegistry())
	any, err := conv.ToListenerAny("header_mutation", map[string]any{
		"request_headers_to_add": []any{
			map[string]any{"key": "X-Test", "value": "test-value", "append": false},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, any.TypeUrl, "HeaderMutation")
}

func TestConverter_ToListenerAny_UnknownFilterIsConfigError(t *testing.T) {
	conv := NewConverter(NewBuiltinRegistry())
	_, err := conv.ToListenerAny("unknown_filter", map[string]any{"key": "value"})
	require.Error(t, err)
	assert.Equal(t, apierr.Config, apierr.KindOf(err))
}

func TestConverter_ToPerRouteAny(t *testing.T) {
	conv := NewConverter(NewBuiltinRegistry())
	name, any, ok, err := conv.ToPerRouteAny("header_mutation", map[string]any{
		"request_headers_to_add": []any{map[string]any{"key": "X-Route-Header", "value": "route-value"}},
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "envoy.filters.http.header_mutation", name)
	assert.Contains(t, any.TypeUrl, "HeaderMutationPerRoute")
}

func TestConverter_ToPerRouteAny_NotSupportedReturnsFalse(t *testing.T) {
	conv := NewConverter(NewBuiltinRegistry())
	_, _, ok, err := conv.ToPerRouteAny("cors", map[string]any{"key": "value"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConverter_CreateEmptyAny(t *testing.T) {
	conv := NewConverter(NewBuiltinRegistry())
	any, err := conv.CreateEmptyAny("header_mutation")
	require.NoError(t, err)
	assert.Contains(t, any.TypeUrl, "HeaderMutation")
}

func TestCreateGenericStructAny(t *testing.T) {
	any, err := CreateGenericStructAny(map[string]any{"key": "value"})
	require.NoError(t, err)
	assert.Equal(t, structTypeURL, any.TypeUrl)
}
