// SPDX-License-Identifier: MIT

package authz

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "acl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStorePragmas(t *testing.T) {
	store := newTestStore(t)

	var mode string
	require.NoError(t, store.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, store.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestStoreGrantRevoke(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Grant(ctx, RoleUser, "U_ALICE"))
	require.NoError(t, store.Grant(ctx, RoleUser, "U_BOB"))

	ids, err := store.Active(ctx, RoleUser)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"U_ALICE", "U_BOB"}, ids)

	// Soft delete hides the entry.
	require.NoError(t, store.Revoke(ctx, RoleUser, "U_BOB"))
	ids, err = store.Active(ctx, RoleUser)
	require.NoError(t, err)
	assert.Equal(t, []string{"U_ALICE"}, ids)

	// Re-granting revives it.
	require.NoError(t, store.Grant(ctx, RoleUser, "U_BOB"))
	ids, err = store.Active(ctx, RoleUser)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"U_ALICE", "U_BOB"}, ids)
}

func TestCacheFailClosedBeforeRefresh(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Grant(context.Background(), RoleChannel, "C_OPS"))

	cache := NewCache(store)

	// Nothing is allowed until the first refresh succeeds.
	assert.False(t, cache.ChannelAllowed("C_OPS"))
	assert.False(t, cache.MentionerAllowed("U_ALICE"))
	assert.False(t, cache.UserAllowed("U_ALICE"))
	assert.False(t, cache.ApproverAllowed("U_ALICE"))
	assert.True(t, cache.RefreshedAt().IsZero())
}

func TestCachePredicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Grant(ctx, RoleChannel, "C_OPS"))
	require.NoError(t, store.Grant(ctx, RoleMentioner, "U_ALICE"))
	require.NoError(t, store.Grant(ctx, RoleUser, "U_ALICE"))
	require.NoError(t, store.Grant(ctx, RoleUser, "U_BOB"))
	require.NoError(t, store.Grant(ctx, RoleApprover, "U_BOB"))

	cache := NewCache(store)
	require.NoError(t, cache.Refresh(ctx))

	assert.True(t, cache.ChannelAllowed("C_OPS"))
	assert.False(t, cache.ChannelAllowed("C_RANDOM"))

	assert.True(t, cache.MentionerAllowed("U_ALICE"))
	assert.False(t, cache.MentionerAllowed("U_BOB"))

	assert.True(t, cache.UserAllowed("U_BOB"))
	assert.True(t, cache.ApproverAllowed("U_BOB"))
	assert.False(t, cache.ApproverAllowed("U_ALICE"))

	assert.False(t, cache.RefreshedAt().IsZero())
}

func TestCacheEmptyListDeniesAll(t *testing.T) {
	store := newTestStore(t)
	cache := NewCache(store)
	require.NoError(t, cache.Refresh(context.Background()))

	// A successfully refreshed but empty list still allows nobody.
	assert.False(t, cache.UserAllowed("U_ANY"))
}

func TestCacheRefreshPicksUpRevocation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Grant(ctx, RoleApprover, "U_BOB"))
	cache := NewCache(store)
	require.NoError(t, cache.Refresh(ctx))
	require.True(t, cache.ApproverAllowed("U_BOB"))

	require.NoError(t, store.Revoke(ctx, RoleApprover, "U_BOB"))
	require.NoError(t, cache.Refresh(ctx))
	assert.False(t, cache.ApproverAllowed("U_BOB"))
}
