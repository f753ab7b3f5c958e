package materializer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

func isolatedSpec(domain string, port uint32) *types.ApiDefinitionSpec {
	return &types.ApiDefinitionSpec{
		TeamID:            "team-1",
		Domain:            domain,
		ListenerIsolation: true,
		IsolationListener: &types.ListenerSpec{Name: domain + "-listener", Port: port},
		Routes: []types.RouteSpec{
			{MatchType: types.MatchPrefix, MatchValue: "/one", Targets: []types.UpstreamTarget{{Host: "10.0.0.1", Port: 8080}}},
			{MatchType: types.MatchPrefix, MatchValue: "/two", Targets: []types.UpstreamTarget{{Host: "10.0.0.2", Port: 8080}}},
		},
	}
}

// TestDeleteDefinition_CascadesIsolatedResources is §8 S2: deleting an
// isolated definition removes its owned clusters and its isolation
// listener/route configuration, and never touches the shared listener.
func TestDeleteDefinition_CascadesIsolatedResources(t *testing.T) {
	m, store := newTestMaterializer(t)
	ctx := context.Background()

	require.NoError(t, store.WithinTx(ctx, func(tx storage.Tx) error {
		return m.EnsureDefaultGatewayListener(tx, "0.0.0.0", 10000)
	}))

	result, err := m.CreateDefinition(ctx, isolatedSpec("cascade.example.com", 9999))
	require.NoError(t, err)

	var clusterIDs []string
	var listenerID, routeID string
	require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
		def, err := tx.ApiDefinitions().GetByID(result.Definition.ID)
		require.NoError(t, err)
		clusterIDs = def.MaterializedClusterIDs
		listenerID = def.MaterializedListenerID
		routeID = def.MaterializedRouteID
		assert.Len(t, clusterIDs, 2)
		return nil
	}))

	require.NoError(t, m.DeleteDefinition(ctx, result.Definition.ID))

	require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
		_, err := tx.ApiDefinitions().GetByID(result.Definition.ID)
		assert.Equal(t, apierr.NotFound, apierr.KindOf(err))

		for _, cid := range clusterIDs {
			_, err := tx.Clusters().GetByID(cid)
			assert.Equal(t, apierr.NotFound, apierr.KindOf(err), "owned cluster must be gone")
		}

		_, err = tx.Listeners().GetByID(listenerID)
		assert.Equal(t, apierr.NotFound, apierr.KindOf(err), "isolation listener must be gone")

		_, err = tx.Routes().GetByID(routeID)
		assert.Equal(t, apierr.NotFound, apierr.KindOf(err), "isolation route configuration must be gone")

		shared, err := tx.Listeners().GetByName("", types.DefaultGatewayListenerName)
		require.NoError(t, err, "shared gateway listener must be unaffected")
		assert.Equal(t, uint32(10000), shared.Port)
		return nil
	}))
}

// TestDeleteDefinition_SharedOnlyRemovesOwnedVHost verifies invariant 2:
// deleting one definition on the shared listener must not disturb a
// sibling definition's virtual host.
func TestDeleteDefinition_SharedOnlyRemovesOwnedVHost(t *testing.T) {
	m, store := newTestMaterializer(t)
	ctx := context.Background()

	first, err := m.CreateDefinition(ctx, sharedSpec("keep.example.com"))
	require.NoError(t, err)
	gone, err := m.CreateDefinition(ctx, sharedSpec("remove.example.com"))
	require.NoError(t, err)

	require.NoError(t, m.DeleteDefinition(ctx, gone.Definition.ID))

	require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
		rc, err := tx.Routes().GetByName("", types.DefaultGatewayRoutesName)
		require.NoError(t, err)
		require.Len(t, rc.Configuration.VirtualHosts, 1)
		assert.Equal(t, "keep.example.com", rc.Configuration.VirtualHosts[0].Name)

		_, err = tx.ApiDefinitions().GetByID(first.Definition.ID)
		assert.NoError(t, err, "surviving definition must remain untouched")
		return nil
	}))
}
