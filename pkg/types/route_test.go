package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteMatch_TemplateMustBePureePlaceholders(t *testing.T) {
	valid := RouteMatch{PathKind: PathTemplate, PathValue: "/users/{id}/orders/{orderId}"}
	require.NoError(t, valid.Validate())

	invalid := RouteMatch{PathKind: PathTemplate, PathValue: "/users/pre{id}fix"}
	assert.Error(t, invalid.Validate())
}

func TestRouteAction_WeightedRequiresConsistentTotal(t *testing.T) {
	a := RouteAction{
		Kind: ActionWeighted,
		WeightedClusters: []WeightedClusterRef{
			{Cluster: "a", Weight: 60},
			{Cluster: "b", Weight: 40},
		},
		TotalWeight: 100,
	}
	require.NoError(t, a.Validate())

	a.TotalWeight = 50
	assert.Error(t, a.Validate())

	empty := RouteAction{Kind: ActionWeighted}
	assert.Error(t, empty.Validate())
}

func TestRouteConfigData_DisjointDomains(t *testing.T) {
	cfg := RouteConfigData{
		VirtualHosts: []VirtualHost{
			{Name: "a", Domains: []string{"a.example.com"}},
			{Name: "b", Domains: []string{"a.example.com"}},
		},
	}
	assert.Error(t, cfg.Validate())

	cfg.VirtualHosts[1].Domains = []string{"b.example.com"}
	assert.NoError(t, cfg.Validate())
}

func TestRouteConfigData_SortVirtualHostsByName(t *testing.T) {
	cfg := RouteConfigData{
		VirtualHosts: []VirtualHost{
			{Name: "zeta", Domains: []string{"z.example.com"}},
			{Name: "alpha", Domains: []string{"a.example.com"}},
		},
	}
	cfg.SortVirtualHostsByName()
	require.Len(t, cfg.VirtualHosts, 2)
	assert.Equal(t, "alpha", cfg.VirtualHosts[0].Name)
	assert.Equal(t, "zeta", cfg.VirtualHosts[1].Name)
}
