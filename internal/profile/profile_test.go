package profile_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/devmatch/internal/activity"
	"github.com/oggyb/devmatch/internal/cache"
	"github.com/oggyb/devmatch/internal/config"
	"github.com/oggyb/devmatch/internal/db"
	"github.com/oggyb/devmatch/internal/domain"
	"github.com/oggyb/devmatch/internal/logger"
	"github.com/oggyb/devmatch/internal/profile"
	"github.com/oggyb/devmatch/internal/repository"
)

func setupService(t *testing.T) (*profile.Service, *activity.Service) {
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
	require.NoError(t, db.SeedTestData(database))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	act := activity.NewService(cache.NewRedisCache(cfg), logger.Discard())
	return profile.NewService(repository.NewProfileRepository(database), act, logger.Discard()), act
}

func TestSkills(t *testing.T) {
	assert.Equal(t, []string{"Go", "Vue.js"}, profile.Skills([]string{" Go ", "", "go", "Vue.js", "  "}))
	assert.Empty(t, profile.Skills(nil))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, act := setupService(t)

	before, err := svc.Get(ctx, "1")
	require.NoError(t, err)

	got, err := svc.Update(ctx, "1", profile.Edit{
		Name:      " Jane Q. Dev ",
		Bio:       "Rust and Go",
		Skills:    []string{"Rust", "Go", "rust"},
		GithubURL: "https://github.com/jane",
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Q. Dev", got.Name)
	assert.Equal(t, []string{"Rust", "Go"}, got.Skills)
	assert.Empty(t, got.Location, "cleared fields are written")
	assert.Equal(t, before.Email, got.Email)
	assert.Equal(t, before.Avatar, got.Avatar)

	entries, err := act.All(ctx, "1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, activity.ActionProfileUpdated, entries[0].Action)
}

func TestUpdate_Rejects(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.Update(ctx, "1", profile.Edit{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Update(ctx, "1", profile.Edit{Name: "x", GithubURL: "not a url"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Update(ctx, "nobody", profile.Edit{Name: "x"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
