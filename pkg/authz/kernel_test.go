package authz

import (
	"context"
	"testing"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustScope(t *testing.T, raw string) types.Scope {
	t.Helper()
	s, err := types.ParseScope(raw)
	require.NoError(t, err)
	return s
}

func TestCheckResourceAccess_Rules(t *testing.T) {
	k := New(nil)
	payments := "payments-team-id"

	t.Run("admin:all allows governance resources only", func(t *testing.T) {
		ctx := types.AuthContext{Scopes: []types.Scope{mustScope(t, "admin:all")}}
		assert.True(t, k.CheckResourceAccess(ctx, "orgs", Write, nil, "", false))
		assert.False(t, k.CheckResourceAccess(ctx, "clusters", Write, &payments, "", false))
	})

	t.Run("global resource reads always allowed", func(t *testing.T) {
		ctx := types.AuthContext{}
		assert.True(t, k.CheckResourceAccess(ctx, "listeners", Read, nil, "", false))
		assert.False(t, k.CheckResourceAccess(ctx, "listeners", Write, nil, "", false))
		assert.True(t, k.CheckResourceAccess(ctx, "listeners", Write, nil, "", true))
	})

	t.Run("org admin scope allows any team in that org", func(t *testing.T) {
		ctx := types.AuthContext{OrgName: "acme", Scopes: []types.Scope{mustScope(t, "org:acme:admin")}}
		assert.True(t, k.CheckResourceAccess(ctx, "clusters", Write, &payments, "acme", false))
	})

	t.Run("team scope allows only the matching team", func(t *testing.T) {
		ctx := types.AuthContext{Scopes: []types.Scope{mustScope(t, "team:payments:clusters:write")}}
		team := "payments"
		other := "billing"
		assert.True(t, k.CheckResourceAccess(ctx, "clusters", Write, &team, "acme", false))
		assert.False(t, k.CheckResourceAccess(ctx, "clusters", Write, &other, "acme", false))
	})

	t.Run("resource scope is team independent", func(t *testing.T) {
		ctx := types.AuthContext{Scopes: []types.Scope{mustScope(t, "clusters:read")}}
		assert.True(t, k.CheckResourceAccess(ctx, "clusters", Read, &payments, "acme", false))
	})

	t.Run("admin:all alone denies tenant writes", func(t *testing.T) {
		ctx := types.AuthContext{Scopes: []types.Scope{mustScope(t, "admin:all")}}
		assert.False(t, k.CheckResourceAccess(ctx, "clusters", Write, &payments, "acme", false))
	})
}

func TestVerifyOrgBoundary(t *testing.T) {
	k := New(nil)
	assert.NoError(t, k.VerifyOrgBoundary("org-a", "org-a"))
	assert.NoError(t, k.VerifyOrgBoundary("", "org-a"))
	err := k.VerifyOrgBoundary("org-a", "org-b")
	require.Error(t, err)
	assert.Equal(t, apierr.NotFound, apierr.KindOf(err))
}

type recordingMeter struct {
	calls [][3]string
}

func (m *recordingMeter) CrossTeamAttempt(from, to, kind string) {
	m.calls = append(m.calls, [3]string{from, to, kind})
}

func TestVerifyTeamAccess_DeniesAndMeters(t *testing.T) {
	meter := &recordingMeter{}
	k := New(meter)

	err := k.VerifyTeamAccess(context.Background(), "clusters", "pay-up", "team-a", map[string]bool{"team-b": true}, "team-b")
	require.Error(t, err)
	assert.Equal(t, apierr.NotFound, apierr.KindOf(err))
	require.Len(t, meter.calls, 1)
	assert.Equal(t, [3]string{"team-b", "team-a", "clusters"}, meter.calls[0])

	// global resource always allowed
	assert.NoError(t, k.VerifyTeamAccess(context.Background(), "listeners", "default-gateway-listener", "", nil, "team-b"))

	// in-scope team allowed
	assert.NoError(t, k.VerifyTeamAccess(context.Background(), "clusters", "pay-up", "team-a", map[string]bool{"team-a": true}, "team-a"))
}

// TestResolveTeamIDs_CrossOrgIsolation proves the same team name in two
// different orgs resolves to distinct ids.
type fakeLookup map[[2]string]string

func (f fakeLookup) LookupTeamID(orgID, name string) (string, bool) {
	id, ok := f[[2]string{orgID, name}]
	return id, ok
}

func TestResolveTeamIDs_CrossOrgIsolation(t *testing.T) {
	lookup := fakeLookup{
		{"org-a", "engineering"}: "team-a-eng",
		{"org-b", "engineering"}: "team-b-eng",
	}

	idsA, err := ResolveTeamIDs(lookup, "org-a", []string{"engineering"})
	require.NoError(t, err)
	idsB, err := ResolveTeamIDs(lookup, "org-b", []string{"engineering"})
	require.NoError(t, err)

	assert.NotEqual(t, idsA, idsB)
}

func TestResolveTeamIDs_AllOrNothing(t *testing.T) {
	lookup := fakeLookup{
		{"org-a", "engineering"}: "team-a-eng",
	}
	_, err := ResolveTeamIDs(lookup, "org-a", []string{"engineering", "ghost"})
	require.Error(t, err)
	assert.Equal(t, apierr.NotFound, apierr.KindOf(err))
}

func TestResolveTeamIDs_IdempotentOnUUID(t *testing.T) {
	lookup := fakeLookup{}
	uuid := "11111111-1111-1111-1111-111111111111"
	ids, err := ResolveTeamIDs(lookup, "org-a", []string{uuid})
	require.NoError(t, err)
	assert.Equal(t, []string{uuid}, ids)
}
