package materializer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowplane/flowplane/pkg/apierr"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

func TestUpdateDefinition_ListenerIsolationIsImmutable(t *testing.T) {
	m, _ := newTestMaterializer(t)
	ctx := context.Background()

	result, err := m.CreateDefinition(ctx, sharedSpec("immutable.example.com"))
	require.NoError(t, err)

	_, err = m.UpdateDefinition(ctx, result.Definition.ID, result.Definition.Routes, nil, true)
	require.Error(t, err)
	assert.Equal(t, apierr.Validation, apierr.KindOf(err))
}

func TestUpdateDefinition_ReplacesRoutesAndReordersVHost(t *testing.T) {
	m, store := newTestMaterializer(t)
	ctx := context.Background()

	result, err := m.CreateDefinition(ctx, sharedSpec("update.example.com"))
	require.NoError(t, err)

	newRoutes := []types.RouteSpec{
		{MatchType: types.MatchPrefix, MatchValue: "/a", Targets: []types.UpstreamTarget{{Host: "10.0.0.9", Port: 9090}}},
		{MatchType: types.MatchExact, MatchValue: "/b", Targets: []types.UpstreamTarget{{Host: "10.0.0.10", Port: 9090}}},
	}
	_, err = m.UpdateDefinition(ctx, result.Definition.ID, newRoutes, nil, false)
	require.NoError(t, err)

	require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
		def, err := tx.ApiDefinitions().GetByID(result.Definition.ID)
		require.NoError(t, err)
		assert.Len(t, def.Routes, 2)
		assert.Equal(t, uint64(2), def.Version)

		rc, err := tx.Routes().GetByID(def.MaterializedRouteID)
		require.NoError(t, err)
		var vh *types.VirtualHost
		for i := range rc.Configuration.VirtualHosts {
			if rc.Configuration.VirtualHosts[i].Name == "update.example.com" {
				vh = &rc.Configuration.VirtualHosts[i]
			}
		}
		require.NotNil(t, vh)
		assert.Len(t, vh.Routes, 2)
		return nil
	}))
}

// TestAppendRoute_ConcurrentCallsEachCommitExactlyOnce is §8 S6: two
// concurrent append_route calls on the same definition each commit; the
// final route list has old+2 entries and the definition's version has
// advanced by exactly 2. BoltDB serializes writers, so "concurrent" here
// means "issued concurrently and left to the store's own serialization",
// matching the spec's "order between them is determined by commit
// order" — the test asserts the invariant that survives any interleaving,
// not a specific order.
func TestAppendRoute_ConcurrentCallsEachCommitExactlyOnce(t *testing.T) {
	m, store := newTestMaterializer(t)
	ctx := context.Background()

	result, err := m.CreateDefinition(ctx, sharedSpec("concurrent.example.com"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	routeSpecs := []types.RouteSpec{
		{MatchType: types.MatchPrefix, MatchValue: "/x", Targets: []types.UpstreamTarget{{Host: "10.0.1.1", Port: 80}}},
		{MatchType: types.MatchPrefix, MatchValue: "/y", Targets: []types.UpstreamTarget{{Host: "10.0.1.2", Port: 80}}},
	}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.AppendRoute(ctx, result.Definition.ID, routeSpecs[i])
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
		def, err := tx.ApiDefinitions().GetByID(result.Definition.ID)
		require.NoError(t, err)
		assert.Len(t, def.Routes, 3, "one initial route plus two appended")
		assert.Equal(t, uint64(3), def.Version, "version bumps once per successful append on top of create")

		rc, err := tx.Routes().GetByID(def.MaterializedRouteID)
		require.NoError(t, err)
		var vh *types.VirtualHost
		for i := range rc.Configuration.VirtualHosts {
			if rc.Configuration.VirtualHosts[i].Name == "concurrent.example.com" {
				vh = &rc.Configuration.VirtualHosts[i]
			}
		}
		require.NotNil(t, vh)
		assert.Len(t, vh.Routes, 3)
		return nil
	}))
}
