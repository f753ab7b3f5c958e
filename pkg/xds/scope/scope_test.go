package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromMetadata_NoTeamIsAll(t *testing.T) {
	s := FromMetadata(nil)
	assert.Equal(t, All, s.Kind)
	assert.Equal(t, "all", s.Key())
}

func TestFromMetadata_TeamOnlyIsTeamScope(t *testing.T) {
	s := FromMetadata(map[string]any{"team": "payments"})
	assert.Equal(t, Team, s.Kind)
	assert.Equal(t, "payments", s.Team)
	assert.False(t, s.IncludeDefault)
}

func TestFromMetadata_IncludeDefaultFlag(t *testing.T) {
	s := FromMetadata(map[string]any{"team": "payments", "include_default": true})
	assert.True(t, s.IncludeDefault)
	assert.Equal(t, "team:payments:include_default=true", s.Key())
}

func TestFromMetadata_ListenerAllowlistAsSlice(t *testing.T) {
	s := FromMetadata(map[string]any{
		"team":               "payments",
		"listener_allowlist": []any{"edge-b", "edge-a"},
	})
	assert.Equal(t, Allowlist, s.Kind)
	assert.Equal(t, []string{"edge-a", "edge-b"}, s.ListenerNames, "names must be sorted for a stable Key()")
}

func TestFromMetadata_ListenerAllowlistAsCSVString(t *testing.T) {
	s := FromMetadata(map[string]any{
		"team":               "payments",
		"listener_allowlist": "edge-b, edge-a ,",
	})
	assert.Equal(t, Allowlist, s.Kind)
	assert.Equal(t, []string{"edge-a", "edge-b"}, s.ListenerNames)
}

func TestScopeKey_DistinguishesDistinctScopes(t *testing.T) {
	a := FromMetadata(map[string]any{"team": "payments"})
	b := FromMetadata(map[string]any{"team": "checkout"})
	assert.NotEqual(t, a.Key(), b.Key())
}
