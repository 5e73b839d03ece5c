package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/amberapp/amber-core/internal/db"
	"github.com/amberapp/amber-core/internal/repository"
)

func TestUpsertActive_Insert(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewLikeRepository(dbase)

	require.NoError(t, repo.UpsertActive(ctx, 1, 2))

	var like db.Like
	require.NoError(t, dbase.First(&like).Error)
	assert.Equal(t, uint64(1), like.FromUserID)
	assert.Equal(t, uint64(2), like.ToUserID)
	assert.True(t, like.IsActive)
	assert.Nil(t, like.UnlikedAt)
}

func TestUpsertActive_DoubleLikeKeepsOneRow(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewLikeRepository(dbase)

	require.NoError(t, repo.UpsertActive(ctx, 1, 2))
	require.NoError(t, repo.UpsertActive(ctx, 1, 2))

	var count int64
	require.NoError(t, dbase.Model(&db.Like{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsertActive_ReactivatesAfterUnlike(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewLikeRepository(dbase)

	require.NoError(t, repo.UpsertActive(ctx, 1, 2))
	require.NoError(t, repo.Deactivate(ctx, 1, 2))

	var like db.Like
	require.NoError(t, dbase.First(&like).Error)
	assert.False(t, like.IsActive)
	assert.NotNil(t, like.UnlikedAt)

	// Re-like: the PK conflict reactivates the same row.
	require.NoError(t, repo.UpsertActive(ctx, 1, 2))

	var count int64
	require.NoError(t, dbase.Model(&db.Like{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	like = db.Like{}
	require.NoError(t, dbase.First(&like).Error)
	assert.True(t, like.IsActive)
	assert.Nil(t, like.UnlikedAt)
}

func TestDeactivate_MissingLike(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewLikeRepository(dbase)

	err := repo.Deactivate(ctx, 1, 2)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestHasActiveLike_DirectionMatters(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewLikeRepository(dbase)

	require.NoError(t, repo.UpsertActive(ctx, 1, 2))

	forward, err := repo.HasActiveLike(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, forward)

	reverse, err := repo.HasActiveLike(ctx, 2, 1)
	require.NoError(t, err)
	assert.False(t, reverse)
}

func TestHasActiveLike_IgnoresInactive(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewLikeRepository(dbase)

	require.NoError(t, repo.UpsertActive(ctx, 1, 2))
	require.NoError(t, repo.Deactivate(ctx, 1, 2))

	active, err := repo.HasActiveLike(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestLikedPeers_IncludesInactive(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewLikeRepository(dbase)

	require.NoError(t, repo.UpsertActive(ctx, 1, 2))
	require.NoError(t, repo.UpsertActive(ctx, 1, 3))
	require.NoError(t, repo.Deactivate(ctx, 1, 3))

	// Once swiped, never re-shown — the unliked user still counts.
	peers, err := repo.LikedPeers(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{2, 3}, peers)
}
