package materializer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

func sharedSpec(domain string) *types.ApiDefinitionSpec {
	return &types.ApiDefinitionSpec{
		TeamID: "team-1",
		Domain: domain,
		Routes: []types.RouteSpec{
			{
				MatchType:  types.MatchPrefix,
				MatchValue: "/",
				Targets:    []types.UpstreamTarget{{Host: "10.0.0.1", Port: 8080}},
			},
		},
	}
}

func TestCreateDefinition_SharedListenerMergesIntoGatewayRoutes(t *testing.T) {
	m, store := newTestMaterializer(t)
	ctx := context.Background()

	result, err := m.CreateDefinition(ctx, sharedSpec("api.example.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, result.Definition.ID)
	assert.Len(t, result.RouteIDs, 1)
	assert.Equal(t, "/api/v1/api-definitions/"+result.Definition.ID+"/bootstrap", result.BootstrapURI)

	require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
		rc, err := tx.Routes().GetByName("", types.DefaultGatewayRoutesName)
		require.NoError(t, err)
		require.Len(t, rc.Configuration.VirtualHosts, 1)
		assert.Equal(t, "api.example.com", rc.Configuration.VirtualHosts[0].Name)

		clusters, err := tx.Clusters().ListByTeam("team-1", 0, 0)
		require.NoError(t, err)
		assert.Len(t, clusters, 1)
		return nil
	}))
}

func TestCreateDefinition_DuplicateSharedDomainConflicts(t *testing.T) {
	m, _ := newTestMaterializer(t)
	ctx := context.Background()

	_, err := m.CreateDefinition(ctx, sharedSpec("dup.example.com"))
	require.NoError(t, err)

	_, err = m.CreateDefinition(ctx, sharedSpec("dup.example.com"))
	require.Error(t, err)
}

func TestCreateDefinition_ReusesIdenticalCluster(t *testing.T) {
	m, store := newTestMaterializer(t)
	ctx := context.Background()

	_, err := m.CreateDefinition(ctx, sharedSpec("a.example.com"))
	require.NoError(t, err)

	spec := sharedSpec("b.example.com")
	_, err = m.CreateDefinition(ctx, spec)
	require.NoError(t, err)

	require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
		clusters, err := tx.Clusters().ListByTeam("team-1", 0, 0)
		require.NoError(t, err)
		assert.Len(t, clusters, 1, "two definitions with identical upstream targets must share one cluster")
		return nil
	}))
}

func TestCreateDefinition_ListenerIsolationCreatesDedicatedListener(t *testing.T) {
	m, store := newTestMaterializer(t)
	ctx := context.Background()

	spec := sharedSpec("isolated.example.com")
	spec.ListenerIsolation = true
	spec.IsolationListener = &types.ListenerSpec{Name: "isolated-listener", Port: 20001}

	result, err := m.CreateDefinition(ctx, spec)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Definition.MaterializedListenerID)

	require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
		l, err := tx.Listeners().GetByID(result.Definition.MaterializedListenerID)
		require.NoError(t, err)
		assert.Equal(t, uint32(20001), l.Port)
		return nil
	}))
}

func TestCreateDefinition_RejectsUnknownFilterRef(t *testing.T) {
	m, _ := newTestMaterializer(t)
	spec := sharedSpec("filters.example.com")
	spec.FilterRefs = []types.FilterAttachment{{FilterName: "no-such-filter"}}

	_, err := m.CreateDefinition(context.Background(), spec)
	require.Error(t, err)
}
