package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/amberapp/amber-core/internal/db"
	svcErr "github.com/amberapp/amber-core/internal/errors"
)

// BlockRepository resolves blocking relationships. Blocks are written by the
// moderation flow; this core only reads them.
type BlockRepository struct {
	db *gorm.DB
}

// NewBlockRepository creates a new repository bound to the given DB connection.
func NewBlockRepository(database *gorm.DB) *BlockRepository {
	return &BlockRepository{db: database}
}

// BlockedPeers returns every user in a blocking relationship with userID,
// whichever direction the block points. The two directions are unioned into
// one "invisible to each other" set.
//
// A query failure is fatal to the enclosing operation. Returning an empty set
// on error would leak blocked users into candidate pools.
func (r *BlockRepository) BlockedPeers(ctx context.Context, userID uint64) (map[uint64]struct{}, error) {
	var blocks []db.Block
	err := r.db.WithContext(ctx).
		Where("blocker_id = ? OR blocked_id = ?", userID, userID).
		Find(&blocks).Error
	if err != nil {
		return nil, svcErr.Storage("load blocks", err)
	}

	peers := make(map[uint64]struct{}, len(blocks))
	for _, b := range blocks {
		if b.BlockerID == userID {
			peers[b.BlockedID] = struct{}{}
		} else {
			peers[b.BlockerID] = struct{}{}
		}
	}
	return peers, nil
}

// IsBlockedPair reports whether a block exists between the two users in
// either direction.
func (r *BlockRepository) IsBlockedPair(ctx context.Context, a, b uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, svcErr.Storage("check block pair", err)
	}
	return count > 0, nil
}
