package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amberapp/amber-core/internal/db"
	svcErr "github.com/amberapp/amber-core/internal/errors"
)

// LikeRepository provides data access for directed like edges.
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new repository bound to the given DB connection.
// Pass a transaction handle to make like and match writes atomic.
func NewLikeRepository(database *gorm.DB) *LikeRepository {
	return &LikeRepository{db: database}
}

// UpsertActive records from → to as an active like.
//
// Behavior:
//   - First like for the ordered pair → a new row is inserted.
//   - A prior row exists (typically deactivated by an unlike) → the conflict
//     on the composite PK reactivates it: is_active = true, unliked_at = NULL.
//
// The PK conflict is the idempotency mechanism: two concurrent likes on the
// same ordered pair race safely into one reactivated row.
func (r *LikeRepository) UpsertActive(ctx context.Context, fromID, toID uint64) error {
	like := db.Like{
		FromUserID: fromID,
		ToUserID:   toID,
		IsActive:   true,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "from_user_id"}, {Name: "to_user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"is_active":  true,
				"unliked_at": nil,
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(&like).Error
	return svcErr.Storage("upsert like", err)
}

// HasActiveLike reports whether an active like from → to exists. Used for the
// reverse-direction reciprocity check.
func (r *LikeRepository) HasActiveLike(ctx context.Context, fromID, toID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("from_user_id = ? AND to_user_id = ? AND is_active = ?", fromID, toID, true).
		Count(&count).Error
	if err != nil {
		return false, svcErr.Storage("check reverse like", err)
	}
	return count > 0, nil
}

// Deactivate marks the from → to like as unliked. The row stays in place so a
// later like reactivates it instead of inserting a duplicate.
func (r *LikeRepository) Deactivate(ctx context.Context, fromID, toID uint64) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("from_user_id = ? AND to_user_id = ? AND is_active = ?", fromID, toID, true).
		Updates(map[string]interface{}{"is_active": false, "unliked_at": &now})
	if result.Error != nil {
		return svcErr.Storage("deactivate like", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LikedPeers returns every user the given user has ever swiped on, active or
// not. Once swiped, a user is never re-shown, regardless of like or unlike.
func (r *LikeRepository) LikedPeers(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("from_user_id = ?", userID).
		Pluck("to_user_id", &ids).Error
	if err != nil {
		return nil, svcErr.Storage("load liked peers", err)
	}
	return ids, nil
}
