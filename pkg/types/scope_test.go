package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		kind    ScopeKind
	}{
		{name: "admin all", raw: "admin:all", kind: ScopeKindAdminAll},
		{name: "org admin", raw: "org:acme:admin", kind: ScopeKindOrgAdmin},
		{name: "team resource", raw: "team:payments:clusters:write", kind: ScopeKindTeamResource},
		{name: "resource only", raw: "clusters:read", kind: ScopeKindResource},
		{name: "bad action", raw: "clusters:delete", wantErr: true},
		{name: "empty team", raw: "team::clusters:write", wantErr: true},
		{name: "garbage", raw: "not-a-scope", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, err := ParseScope(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, scope.Kind)
		})
	}
}

func TestAuthContext_OrgAdminFor(t *testing.T) {
	orgAdmin, err := ParseScope("org:acme:admin")
	require.NoError(t, err)

	ctx := AuthContext{OrgName: "acme", Scopes: []Scope{orgAdmin}}
	assert.True(t, ctx.OrgAdminFor("acme"))
	assert.False(t, ctx.OrgAdminFor("other"))

	// Context claims a different org than the scope names: must not honor.
	mismatched := AuthContext{OrgName: "other", Scopes: []Scope{orgAdmin}}
	assert.False(t, mismatched.OrgAdminFor("acme"))
}

func TestAuthContext_TeamScope(t *testing.T) {
	s, err := ParseScope("team:payments:clusters:write")
	require.NoError(t, err)
	ctx := AuthContext{Scopes: []Scope{s}}

	assert.True(t, ctx.TeamScope("payments", "clusters", "write"))
	assert.False(t, ctx.TeamScope("payments", "clusters", "read"))
	assert.False(t, ctx.TeamScope("billing", "clusters", "write"))
}
