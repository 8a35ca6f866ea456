package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testQueries runs against TEST_DATABASE_URL inside a transaction that is
// rolled back when the test ends.
func testQueries(t *testing.T) *Queries {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })
	return New(tx)
}

func TestAdminQueries(t *testing.T) {
	q := testQueries(t)
	ctx := context.Background()

	username := "admin-" + uuid.NewString()[:8]
	admin, err := q.CreateAdmin(ctx, CreateAdminParams{Username: username, PasswordHash: "hash"})
	require.NoError(t, err)
	assert.True(t, admin.IsActive)
	assert.False(t, admin.LastLogin.Valid)

	got, err := q.GetActiveAdminByUsername(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)

	_, err = q.GetActiveAdminByUsername(ctx, "missing-"+username)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = q.GetAdmin(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, q.UpdateAdminPassword(ctx, UpdateAdminPasswordParams{ID: admin.ID, PasswordHash: "new-hash"}))
	got, err = q.GetAdmin(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)

	err = q.UpdateAdminPassword(ctx, UpdateAdminPasswordParams{ID: uuid.New(), PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := q.CountAdmins(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}

func TestTouchAdminLastLoginOnlyMovesForward(t *testing.T) {
	q := testQueries(t)
	ctx := context.Background()

	admin, err := q.CreateAdmin(ctx, CreateAdminParams{Username: "admin-" + uuid.NewString()[:8], PasswordHash: "hash"})
	require.NoError(t, err)

	later := time.Now().UTC().Truncate(time.Second)
	earlier := later.Add(-time.Hour)

	require.NoError(t, q.TouchAdminLastLogin(ctx, TouchAdminLastLoginParams{ID: admin.ID, LastLogin: later}))
	require.NoError(t, q.TouchAdminLastLogin(ctx, TouchAdminLastLoginParams{ID: admin.ID, LastLogin: earlier}))

	got, err := q.GetAdmin(ctx, admin.ID)
	require.NoError(t, err)
	require.True(t, got.LastLogin.Valid)
	assert.True(t, got.LastLogin.Time.Equal(later))
}

func TestNodeQueries(t *testing.T) {
	q := testQueries(t)
	ctx := context.Background()

	created, err := q.CreateNode(ctx, CreateNodeParams{Name: "zz-edge-" + uuid.NewString()[:8], Address: "10.0.0.1", Port: 443})
	require.NoError(t, err)
	assert.True(t, created.Enabled)

	nodes, err := q.ListNodes(ctx)
	require.NoError(t, err)
	var found bool
	for _, n := range nodes {
		if n.ID == created.ID {
			found = true
			assert.Equal(t, int32(443), n.Port)
		}
	}
	assert.True(t, found)
}
