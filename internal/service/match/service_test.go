package match_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/amberapp/amber-core/internal/app"
	"github.com/amberapp/amber-core/internal/cache"
	"github.com/amberapp/amber-core/internal/config"
	"github.com/amberapp/amber-core/internal/db"
	svcErr "github.com/amberapp/amber-core/internal/errors"
	"github.com/amberapp/amber-core/internal/service/match"
)

func setupService(t *testing.T) (*match.Service, *gorm.DB) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, dbase.AutoMigrate(&db.User{}, &db.UserPreference{}, &db.Block{}, &db.Like{}, &db.Match{}))

	users := []db.User{
		{ID: 1, Username: "alice", Email: "a@test.com", PasswordHash: "x", Name: "Alice", Gender: "female"},
		{ID: 2, Username: "bob", Email: "b@test.com", PasswordHash: "x", Name: "Bob", Gender: "male"},
		{ID: 3, Username: "carol", Email: "c@test.com", PasswordHash: "x", Name: "Carol", Gender: "female"},
	}
	require.NoError(t, dbase.Create(&users).Error)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	redisCache := cache.NewRedisCache(cfg)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	appCtx := app.New(cfg, dbase, redisCache, log)
	return match.NewService(appCtx), dbase
}

func matchedIDs(matches []match.MatchedUser) []uint64 {
	ids := make([]uint64, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	return ids
}

// TestLike_Scenario covers the canonical flow: Alice likes Bob (one-sided),
// Bob likes Alice back (match), and both now see each other in their match
// lists.
func TestLike_Scenario(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	result, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, result.IsMatch)
	assert.Nil(t, result.MatchedUser)

	result, err = svc.Like(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, result.IsMatch)
	require.NotNil(t, result.MatchedUser)
	assert.Equal(t, uint64(1), result.MatchedUser.ID)
	assert.Equal(t, "Alice", result.MatchedUser.Name)

	aliceMatches, err := svc.Matches(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, matchedIDs(aliceMatches))

	bobMatches, err := svc.Matches(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, matchedIDs(bobMatches))
}

func TestLike_Self(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.Like(ctx, 1, 1)
	assert.ErrorIs(t, err, svcErr.ErrSelfInteraction)
}

func TestLike_BlockedPair(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	// Bob blocked Alice; Alice's like must fail even though she is the
	// blocked party, not the blocker.
	require.NoError(t, gdb.Create(&db.Block{BlockerID: 2, BlockedID: 1}).Error)

	_, err := svc.Like(ctx, 1, 2)
	assert.ErrorIs(t, err, svcErr.ErrBlockedInteraction)
}

func TestLike_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	_, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	_, err = svc.Like(ctx, 1, 2)
	require.NoError(t, err)

	var count int64
	require.NoError(t, gdb.Model(&db.Like{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// TestLike_LikingAThirdPartyDoesNotMatch guards against reciprocity leaking
// across pairs: both liking Carol must not match Alice and Bob.
func TestLike_LikingAThirdPartyDoesNotMatch(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	result, err := svc.Like(ctx, 1, 3)
	require.NoError(t, err)
	assert.False(t, result.IsMatch)

	result, err = svc.Like(ctx, 2, 3)
	require.NoError(t, err)
	assert.False(t, result.IsMatch)
}

// TestUnlike_EndsMatchAndRelikeRestoresIt walks the full reactivation loop:
// match, unlike (match ends), re-like (same rows reactivate, match reported
// again).
func TestUnlike_EndsMatchAndRelikeRestoresIt(t *testing.T) {
	ctx := context.Background()
	svc, gdb := setupService(t)

	_, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	_, err = svc.Like(ctx, 2, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Unlike(ctx, 1, 2))

	matches, err := svc.Matches(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, matches)

	// Re-like reactivates the original row instead of inserting a second one.
	result, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, result.IsMatch)

	var likeCount int64
	require.NoError(t, gdb.Model(&db.Like{}).Count(&likeCount).Error)
	assert.Equal(t, int64(2), likeCount)

	var matchCount int64
	require.NoError(t, gdb.Model(&db.Match{}).Count(&matchCount).Error)
	assert.Equal(t, int64(1), matchCount)
}

func TestMatchCount_CacheFallback(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.Like(ctx, 1, 2)
	require.NoError(t, err)
	_, err = svc.Like(ctx, 2, 1)
	require.NoError(t, err)

	// First call → DB, second → cache.
	count, err := svc.MatchCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = svc.MatchCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
