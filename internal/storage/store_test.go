package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/proxy"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/storage"
)

// backends runs fn against every Store implementation.
func backends(t *testing.T, fn func(t *testing.T, store storage.Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		store := NewMemoryStore()
		defer store.Close()
		fn(t, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := OpenSQLite(context.Background(), ":memory:")
		require.NoError(t, err)
		defer store.Close()
		fn(t, store)
	})
}

var (
	proxyAddr = proxy.BytesToAddress([]byte{0x01})
	implA     = proxy.BytesToAddress([]byte{0x0a})
	implB     = proxy.BytesToAddress([]byte{0x0b})
	alice     = proxy.AccountIdentity(proxy.BytesToAddress([]byte{0xa1}))
)

func TestStore_CommitMakesWritesVisible(t *testing.T) {
	backends(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()

		tx, err := store.Begin(ctx, proxyAddr)
		require.NoError(t, err)
		initialized, err := tx.Initialized(ctx)
		require.NoError(t, err)
		assert.False(t, initialized)

		require.NoError(t, tx.SetOwner(ctx, alice))
		require.NoError(t, tx.SetRoute(ctx, 2, implB))
		require.NoError(t, tx.SetRoute(ctx, 1, implA))
		require.NoError(t, tx.Commit())

		tx, err = store.Begin(ctx, proxyAddr)
		require.NoError(t, err)
		defer tx.Rollback()

		initialized, err = tx.Initialized(ctx)
		require.NoError(t, err)
		assert.True(t, initialized)

		owner, err := tx.Owner(ctx)
		require.NoError(t, err)
		assert.Equal(t, alice, owner)

		routes, err := tx.Routes(ctx)
		require.NoError(t, err)
		want := []storage.Route{
			{Selector: 1, Implementation: implA},
			{Selector: 2, Implementation: implB},
		}
		if diff := cmp.Diff(want, routes); diff != "" {
			t.Errorf("routes mismatch (-want +got):\n%s", diff)
		}

		contracts, err := store.Contracts(ctx)
		require.NoError(t, err)
		assert.Equal(t, []proxy.Address{proxyAddr}, contracts)
	})
}

func TestStore_RollbackDiscardsWrites(t *testing.T) {
	backends(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()

		tx, err := store.Begin(ctx, proxyAddr)
		require.NoError(t, err)
		require.NoError(t, tx.SetOwner(ctx, alice))
		require.NoError(t, tx.SetRoute(ctx, 1, implA))
		require.NoError(t, tx.Commit())

		tx, err = store.Begin(ctx, proxyAddr)
		require.NoError(t, err)
		require.NoError(t, tx.SetOwner(ctx, proxy.Identity{}))
		require.NoError(t, tx.DeleteRoute(ctx, 1))
		require.NoError(t, tx.Rollback())

		tx, err = store.Begin(ctx, proxyAddr)
		require.NoError(t, err)
		defer tx.Rollback()

		owner, err := tx.Owner(ctx)
		require.NoError(t, err)
		assert.Equal(t, alice, owner)

		addr, ok, err := tx.Route(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, implA, addr)
	})
}

func TestStore_RouteOverwriteAndDelete(t *testing.T) {
	backends(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()

		tx, err := store.Begin(ctx, proxyAddr)
		require.NoError(t, err)
		defer tx.Rollback()

		require.NoError(t, tx.SetRoute(ctx, 7, implA))
		require.NoError(t, tx.SetRoute(ctx, 7, implB))

		routes, err := tx.Routes(ctx)
		require.NoError(t, err)
		require.Len(t, routes, 1)
		assert.Equal(t, implB, routes[0].Implementation)

		require.NoError(t, tx.DeleteRoute(ctx, 7))
		require.NoError(t, tx.DeleteRoute(ctx, 7), "deleting an absent route is not an error")

		_, ok, err := tx.Route(ctx, 7)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_FinishedTx(t *testing.T) {
	backends(t, func(t *testing.T, store storage.Store) {
		ctx := context.Background()

		tx, err := store.Begin(ctx, proxyAddr)
		require.NoError(t, err)
		require.NoError(t, tx.SetOwner(ctx, alice))
		require.NoError(t, tx.Commit())

		assert.ErrorIs(t, tx.Commit(), storage.ErrTxDone)
		assert.ErrorIs(t, tx.SetRoute(ctx, 1, implA), storage.ErrTxDone)
		assert.NoError(t, tx.Rollback(), "rollback after commit is a no-op")
	})
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err := store.Begin(context.Background(), proxyAddr)
	assert.ErrorIs(t, err, storage.ErrStoreClosed)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Begin(ctx, proxyAddr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "proxy.db")

	store, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	tx, err := store.Begin(ctx, proxyAddr)
	require.NoError(t, err)
	require.NoError(t, tx.SetOwner(ctx, alice))
	require.NoError(t, tx.SetRoute(ctx, 3, implA))
	require.NoError(t, tx.Commit())
	require.NoError(t, store.Close())

	store, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	tx, err = store.Begin(ctx, proxyAddr)
	require.NoError(t, err)
	defer tx.Rollback()

	owner, err := tx.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)

	addr, ok, err := tx.Route(ctx, 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, implA, addr)
}
