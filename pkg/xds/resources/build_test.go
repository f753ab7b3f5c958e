package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowplane/flowplane/pkg/filters"
	"github.com/flowplane/flowplane/pkg/types"
)

func testCluster() *types.Cluster {
	return &types.Cluster{
		ID:                    "c1",
		Name:                  "cluster-a",
		ServiceName:           "cluster-a",
		Endpoints:             []types.Endpoint{{Host: "10.0.0.1", Port: 8080}},
		ConnectTimeoutSeconds: 5,
		LbPolicy:              types.LbPolicy{Kind: types.LbRoundRobin},
	}
}

func TestBuildCluster_IsDeterministic(t *testing.T) {
	c := testCluster()
	a, err := BuildCluster(c)
	require.NoError(t, err)
	b, err := BuildCluster(c)
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash, "identical input must hash identically")
	assert.Equal(t, ClusterTypeURL, a.Any.TypeUrl)
	assert.Equal(t, "cluster-a", a.Name)
}

func TestBuildCluster_HashChangesWithEndpoints(t *testing.T) {
	c := testCluster()
	a, err := BuildCluster(c)
	require.NoError(t, err)

	c2 := testCluster()
	c2.Endpoints = []types.Endpoint{{Host: "10.0.0.2", Port: 9090}}
	b, err := BuildCluster(c2)
	require.NoError(t, err)

	assert.NotEqual(t, a.Hash, b.Hash)
}

func TestBuildEndpoint_NamesMatchCluster(t *testing.T) {
	built, err := BuildEndpoint(testCluster())
	require.NoError(t, err)
	assert.Equal(t, "cluster-a", built.Name)
	assert.Equal(t, EndpointTypeURL, built.Any.TypeUrl)
}

func TestBuildRouteConfiguration_CollectsClusterRefs(t *testing.T) {
	rc := &types.RouteConfiguration{
		ID:   "rc1",
		Name: "default-gateway-routes",
		Configuration: types.RouteConfigData{
			VirtualHosts: []types.VirtualHost{
				{
					Name:    "api.example.com",
					Domains: []string{"api.example.com"},
					Routes: []types.RouteRule{
						{
							Name:  "r1",
							Match: types.RouteMatch{PathKind: types.PathPrefix, PathValue: "/"},
							Action: types.RouteAction{
								Kind:    types.ActionForward,
								Cluster: "cluster-a",
							},
						},
					},
				},
			},
		},
	}
	built, err := BuildRouteConfiguration(rc, filters.NewConverter(filters.NewBuiltinRegistry()))
	require.NoError(t, err)
	assert.Equal(t, RouteTypeURL, built.Any.TypeUrl)
	assert.Contains(t, built.ClusterRefs, "cluster-a")
}

func TestBuildListener_CollectsRouteRefs(t *testing.T) {
	l := &types.Listener{
		ID:      "l1",
		Name:    types.DefaultGatewayListenerName,
		Address: "0.0.0.0",
		Port:    10000,
		FilterChains: []types.FilterChain{
			{Filters: []types.NetworkFilter{{Kind: types.NetworkFilterHTTPConnectionManager, RouteConfigRef: "default-gateway-routes"}}},
		},
	}
	built, err := BuildListener(l, filters.NewConverter(filters.NewBuiltinRegistry()))
	require.NoError(t, err)
	assert.Equal(t, ListenerTypeURL, built.Any.TypeUrl)
	assert.Contains(t, built.RouteRefs, "default-gateway-routes")
}
