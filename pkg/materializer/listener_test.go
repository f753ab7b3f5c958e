package materializer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowplane/flowplane/pkg/events"
	"github.com/flowplane/flowplane/pkg/filters"
	"github.com/flowplane/flowplane/pkg/storage"
	"github.com/flowplane/flowplane/pkg/types"
)

func newTestMaterializer(t *testing.T) (*Materializer, *storage.BoltStore) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, filters.NewBuiltinRegistry(), events.NewBroker()), store
}

func TestEnsureDefaultGatewayListener_CreatesOnce(t *testing.T) {
	m, store := newTestMaterializer(t)
	ctx := context.Background()

	require.NoError(t, store.WithinTx(ctx, func(tx storage.Tx) error {
		return m.EnsureDefaultGatewayListener(tx, "0.0.0.0", 10000)
	}))

	var listener *types.Listener
	var routes *types.RouteConfiguration
	require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
		var err error
		listener, err = tx.Listeners().GetByName("", types.DefaultGatewayListenerName)
		require.NoError(t, err)
		routes, err = tx.Routes().GetByName("", types.DefaultGatewayRoutesName)
		return err
	}))
	assert.Equal(t, uint32(10000), listener.Port)
	assert.Equal(t, "0.0.0.0", listener.Address)
	assert.Empty(t, routes.Configuration.VirtualHosts)

	// Calling again must not create a second row or error.
	require.NoError(t, store.WithinTx(ctx, func(tx storage.Tx) error {
		return m.EnsureDefaultGatewayListener(tx, "127.0.0.1", 20000)
	}))
	require.NoError(t, store.View(ctx, func(tx storage.Tx) error {
		again, err := tx.Listeners().GetByID(listener.ID)
		require.NoError(t, err)
		assert.Equal(t, listener.Port, again.Port, "existing listener must not be overwritten")
		return nil
	}))
}
