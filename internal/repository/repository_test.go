package repository_test

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
	"github.com/oggyb/devmatch/internal/domain"
	"github.com/oggyb/devmatch/internal/repository"
)

// setup in-memory DB, one per test
func setupTestDB(t *testing.T) *gorm.DB {
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
	return database
}

func TestSwipeUpsert_OverwritesAndKeepsID(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSwipeRepository(setupTestDB(t))

	first, err := repo.Upsert(ctx, "u", "1", true)
	require.NoError(t, err)
	assert.True(t, first.IsLiked)
	assert.NotEmpty(t, first.ID)

	second, err := repo.Upsert(ctx, "u", "1", false)
	require.NoError(t, err)
	assert.False(t, second.IsLiked)
	assert.Equal(t, first.ID, second.ID, "re-swipe keeps the original record id")

	ids, err := repo.SwipedIDs(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)
}

func TestSwipeHasLiked(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSwipeRepository(setupTestDB(t))

	_, _ = repo.Upsert(ctx, "a", "b", true)
	_, _ = repo.Upsert(ctx, "b", "c", false)

	liked, err := repo.HasLiked(ctx, "a", "b")
	require.NoError(t, err)
	assert.True(t, liked)

	liked, err = repo.HasLiked(ctx, "b", "a")
	require.NoError(t, err)
	assert.False(t, liked)

	liked, err = repo.HasLiked(ctx, "b", "c")
	require.NoError(t, err)
	assert.False(t, liked, "a pass is not a like")
}

func TestSwipeLikersAndCounts(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSwipeRepository(setupTestDB(t))

	// 1 and 2 liked me, I passed 2 → only 1 counts
	_, _ = repo.Upsert(ctx, "1", "me", true)
	_, _ = repo.Upsert(ctx, "2", "me", true)
	_, _ = repo.Upsert(ctx, "me", "2", false)
	_, _ = repo.Upsert(ctx, "me", "3", true)

	likers, next, err := repo.GetLikers(ctx, "me", nil, 10)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, likers, 1)
	assert.Equal(t, "1", likers[0].SwiperID)

	count, err := repo.CountLikers(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	sent, err := repo.CountLikesSent(ctx, "me")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sent)
}

func TestSwipeLikersPagination(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewSwipeRepository(setupTestDB(t))

	for i := 1; i <= 3; i++ {
		_, err := repo.Upsert(ctx, fmt.Sprintf("liker-%d", i), "me", true)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	page1, next, err := repo.GetLikers(ctx, "me", nil, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotNil(t, next)
	assert.Equal(t, "liker-3", page1[0].SwiperID)

	page2, next, err := repo.GetLikers(ctx, "me", next, 2)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, page2, 1)
	assert.Equal(t, "liker-1", page2[0].SwiperID)
}

func TestMatchEnsure_IdempotentEitherOrder(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	m1, created, err := repo.Ensure(ctx, "a", "b", false)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, m1.IsConnected)

	m2, created, err := repo.Ensure(ctx, "b", "a", true)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, m1.ID, m2.ID)
	assert.True(t, m2.IsConnected)
	assert.NotNil(t, m2.ConnectedAt)

	// never demoted
	m3, _, err := repo.Ensure(ctx, "a", "b", false)
	require.NoError(t, err)
	assert.True(t, m3.IsConnected)

	list, err := repo.ListForUser(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMatchSetConnected(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMatchRepository(setupTestDB(t))

	m, _, err := repo.Ensure(ctx, "a", "b", false)
	require.NoError(t, err)

	got, changed, err := repo.SetConnected(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, got)
	assert.True(t, got.IsConnected)

	got, changed, err = repo.SetConnected(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	require.NotNil(t, got)
	assert.True(t, got.IsConnected)

	got, changed, err = repo.SetConnected(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Nil(t, got)

	n, err := repo.CountConnected(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestProfileListExcept(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	profiles := db.DemoProfiles()
	require.NoError(t, database.Create(&profiles).Error)

	repo := repository.NewProfileRepository(database)
	got, err := repo.ListExcept(ctx, []string{"1", "2"})
	require.NoError(t, err)
	assert.Len(t, got, len(profiles)-2)
	for _, p := range got {
		assert.NotContains(t, []string{"1", "2"}, p.ID)
	}

	all, err := repo.ListExcept(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, len(profiles))
}

func TestChatThreadAndMessages(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewChatRepository(setupTestDB(t))

	th, created, err := repo.EnsureThread(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := repo.EnsureThread(ctx, "a", "b")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, th.ID, again.ID)

	for i := 0; i < 3; i++ {
		msg := &db.ChatMessage{
			ID:         fmt.Sprintf("m-%d", i),
			ThreadID:   th.ID,
			SenderID:   "a",
			ReceiverID: "b",
			Content:    fmt.Sprintf("hello %d", i),
		}
		require.NoError(t, repo.AppendMessage(ctx, msg))
		time.Sleep(2 * time.Millisecond)
	}

	page, next, err := repo.ListMessages(ctx, th.ID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotNil(t, next)
	assert.Equal(t, "m-2", page[0].ID)

	rest, next, err := repo.ListMessages(ctx, th.ID, next, 2)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, rest, 1)
	assert.Equal(t, "m-0", rest[0].ID)

	unread, err := repo.CountUnread(ctx, th.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	n, err := repo.MarkRead(ctx, th.ID, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	last, err := repo.LastMessage(ctx, th.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "m-2", last.ID)

	stored, err := repo.GetThread(ctx, th.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastMessageAt)
}

func TestNotificationReadState(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewNotificationRepository(setupTestDB(t))

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &db.Notification{
			ID: fmt.Sprintf("n-%d", i), UserID: "u", Title: "t", Kind: "info", DisplayDurationMs: 3000,
		}))
	}
	require.NoError(t, repo.Create(ctx, &db.Notification{ID: "other", UserID: "v", Kind: "info"}))

	unread, err := repo.CountUnread(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	ok, err := repo.MarkRead(ctx, "u", "n-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkRead(ctx, "u", "n-1")
	require.NoError(t, err)
	assert.False(t, ok, "second mark is a no-op")

	ok, err = repo.MarkRead(ctx, "u", "other")
	require.NoError(t, err)
	assert.False(t, ok, "cannot touch another user's notification")

	n, err := repo.MarkAllRead(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	deleted, err := repo.Delete(ctx, "u", "n-0")
	require.NoError(t, err)
	assert.True(t, deleted)

	list, _, err := repo.ListForUser(ctx, "u", nil, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, repo.DeleteAll(ctx, "u"))
	list, _, err = repo.ListForUser(ctx, "u", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReportCreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewReportRepository(setupTestDB(t))

	require.NoError(t, repo.Create(ctx, &db.Report{
		ID: "r1", ReporterID: "u", Type: "user", TargetID: "2",
		Category: "harassment", Subcategory: "bullying", Description: "rude messages again",
	}))

	list, err := repo.ListByReporter(ctx, "u")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "harassment", list[0].Category)
}

func TestUserFindActiveByEmail(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	require.NoError(t, database.Create(&db.User{ID: "u", Email: "John@Example.com", PasswordHash: "x", Active: true}).Error)

	repo := repository.NewUserRepository(database)
	u, err := repo.FindActiveByEmail(ctx, " john@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "u", u.ID)

	require.NoError(t, repo.TouchLogin(ctx, "u", time.Now().UTC()))

	_, err = repo.FindActiveByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserCreateWithProfile(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	repo := repository.NewUserRepository(database)

	u := &db.User{ID: "n1", Email: "new@example.com", FirstName: "New", LastName: "Dev", PasswordHash: "x", Active: true}
	require.NoError(t, repo.CreateWithProfile(ctx, u, &db.Profile{ID: "n1", Name: "New Dev", Email: u.Email}))

	p, err := repository.NewProfileRepository(database).Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "New Dev", p.Name)

	dup := &db.User{ID: "n2", Email: "NEW@example.com", PasswordHash: "x"}
	err = repo.CreateWithProfile(ctx, dup, &db.Profile{ID: "n2", Name: "Dup"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = repository.NewProfileRepository(database).Get(ctx, "n2")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "nothing half-written")
}

func TestProfileUpdate(t *testing.T) {
	ctx := context.Background()
	database := setupTestDB(t)
	require.NoError(t, database.Create(&db.Profile{ID: "p", Name: "Old", Email: "p@example.com", Skills: []string{"Go"}}).Error)
	repo := repository.NewProfileRepository(database)

	got, err := repo.Update(ctx, db.Profile{ID: "p", Name: "New", Bio: "", Skills: []string{"Go", "Rust"}})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.Equal(t, []string{"Go", "Rust"}, got.Skills)
	assert.Equal(t, "p@example.com", got.Email, "email is not editable here")

	_, err = repo.Update(ctx, db.Profile{ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
