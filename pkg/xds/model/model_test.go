package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowplane/flowplane/pkg/filters"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
	"github.com/flowplane/flowplane/pkg/xds/scope"
)

func newTestStore(t *testing.T) *storage.BoltStore {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCache_SnapshotForVersionAdvancesOnlyOnContentChange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cache := NewCache(store, filters.NewConverter(filters.NewBuiltinRegistry()), nil)

	require.NoError(t, store.WithinTx(ctx, func(tx storage.Tx) error {
		c := &types.Cluster{
			Name: "c1", ServiceName: "c1",
			Endpoints:             []types.Endpoint{{Host: "10.0.0.1", Port: 80}},
			ConnectTimeoutSeconds: 5,
			LbPolicy:              types.LbPolicy{Kind: types.LbRoundRobin},
		}
		return tx.Clusters().Create(c)
	}))

	require.NoError(t, cache.Rebuild(ctx))
	all := scope.Scope{Kind: scope.All}

	snap1, err := cache.SnapshotFor(all, types.TypeURLCluster)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap1.VersionNumber)
	require.Len(t, snap1.Resources, 1)

	// Rebuild with byte-identical content: version must not advance.
	require.NoError(t, cache.Rebuild(ctx))
	snap2, err := cache.SnapshotFor(all, types.TypeURLCluster)
	require.NoError(t, err)
	assert.Equal(t, snap1.VersionNumber, snap2.VersionNumber, "unchanged content must not bump version")

	// Mutate, then rebuild: version must advance.
	require.NoError(t, store.WithinTx(ctx, func(tx storage.Tx) error {
		c, err := tx.Clusters().GetByName("", "c1")
		require.NoError(t, err)
		c.ConnectTimeoutSeconds = 9
		return tx.Clusters().Update(c)
	}))
	require.NoError(t, cache.Rebuild(ctx))
	snap3, err := cache.SnapshotFor(all, types.TypeURLCluster)
	require.NoError(t, err)
	assert.Greater(t, snap3.VersionNumber, snap2.VersionNumber)
}

func TestCache_TeamScopeExcludesOtherTeamsResources(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	cache := NewCache(store, filters.NewConverter(filters.NewBuiltinRegistry()), nil)

	require.NoError(t, store.WithinTx(ctx, func(tx storage.Tx) error {
		a := &types.Listener{TeamID: "team-a", Name: "team-a-listener", Address: "0.0.0.0", Port: 9001}
		b := &types.Listener{TeamID: "team-b", Name: "team-b-listener", Address: "0.0.0.0", Port: 9002}
		if err := tx.Listeners().Create(a); err != nil {
			return err
		}
		return tx.Listeners().Create(b)
	}))
	require.NoError(t, cache.Rebuild(ctx))

	teamA := scope.Scope{Kind: scope.Team, Team: "team-a"}
	snap, err := cache.SnapshotFor(teamA, types.TypeURLListener)
	require.NoError(t, err)
	require.Len(t, snap.Resources, 1)
	assert.Equal(t, "team-a-listener", snap.Resources[0].Name)
}
