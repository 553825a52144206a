package registry_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/logger"
	"github.com/oggyb/devmatch/internal/registry"
	"github.com/oggyb/devmatch/internal/repository"
)

func setupRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(database))

	return registry.New(repository.NewMatchRepository(database), logger.Discard())
}

func TestAddMatch_Idempotent(t *testing.T) {
	ctx := context.Background()
	r := setupRegistry(t)

	first, created, err := r.AddMatch(ctx, "a", "b", false)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, first.IsConnected)

	second, created, err := r.AddMatch(ctx, "a", "b", false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	matches, err := r.MatchesFor(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

// AddMatch(A,B) then AddMatch(B,A, connected) ends with one connected record.
func TestAddMatch_ReversedPromotes(t *testing.T) {
	ctx := context.Background()
	r := setupRegistry(t)

	first, _, err := r.AddMatch(ctx, "a", "b", false)
	require.NoError(t, err)

	second, created, err := r.AddMatch(ctx, "b", "a", true)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsConnected)
	assert.NotNil(t, second.ConnectedAt)

	forB, err := r.MatchesFor(ctx, "b")
	require.NoError(t, err)
	require.Len(t, forB, 1)
	assert.True(t, forB[0].IsConnected)
}

func TestIsConnected_Monotonic(t *testing.T) {
	ctx := context.Background()
	r := setupRegistry(t)

	m, _, err := r.AddMatch(ctx, "a", "b", true)
	require.NoError(t, err)
	require.True(t, m.IsConnected)

	again, _, err := r.AddMatch(ctx, "a", "b", false)
	require.NoError(t, err)
	assert.True(t, again.IsConnected, "never demoted")

	got, changed, err := r.SetConnected(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, got.IsConnected)

	n, err := r.CountConnected(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSetConnected(t *testing.T) {
	ctx := context.Background()
	r := setupRegistry(t)

	m, _, _ := r.AddMatch(ctx, "a", "b", false)
	got, changed, err := r.SetConnected(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, got.IsConnected)

	unknown, changed, err := r.SetConnected(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, unknown)
	assert.False(t, changed)

	missing, err := r.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	found, err := r.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, found.ID)
}

func TestReject(t *testing.T) {
	ctx := context.Background()
	r := setupRegistry(t)

	pending, _, err := r.AddMatch(ctx, "a", "b", false)
	require.NoError(t, err)
	assert.Equal(t, db.MatchPending, pending.Status())

	m, changed, err := r.Reject(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, m.RejectedAt)
	assert.Equal(t, db.MatchRejected, m.Status())

	_, changed, err = r.Reject(ctx, pending.ID)
	require.NoError(t, err)
	assert.False(t, changed, "already rejected")

	// a later mutual like still connects the pair
	m2, _, err := r.AddMatch(ctx, "b", "a", true)
	require.NoError(t, err)
	assert.Equal(t, db.MatchAccepted, m2.Status())

	_, changed, err = r.Reject(ctx, pending.ID)
	require.NoError(t, err)
	assert.False(t, changed, "connected matches stay connected")

	m, changed, err = r.Reject(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.False(t, changed)
}
