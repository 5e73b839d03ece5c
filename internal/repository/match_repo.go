package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amberapp/amber-core/internal/db"
	svcErr "github.com/amberapp/amber-core/internal/errors"
)

// MatchRepository provides data access for the unordered match state of user
// pairs. Pairs are stored normalized (UserAID < UserBID).
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// UpsertActive materializes the match for a pair. Reciprocity detection calls
// this in the same transaction as the like write, so a reported match is
// always durably visible to subsequent reads.
//
// A deactivated row (unmatch via unlike or block) is reactivated through the
// composite-PK conflict, mirroring the like reactivation path.
func (r *MatchRepository) UpsertActive(ctx context.Context, a, b uint64) error {
	lo, hi := db.NormalizePair(a, b)
	match := db.Match{
		UserAID:  lo,
		UserBID:  hi,
		IsActive: true,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_a_id"}, {Name: "user_b_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"is_active": true,
			}),
		}).
		Create(&match).Error
	return svcErr.Storage("upsert match", err)
}

// HasActiveMatch reports whether the pair is currently matched.
func (r *MatchRepository) HasActiveMatch(ctx context.Context, a, b uint64) (bool, error) {
	lo, hi := db.NormalizePair(a, b)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user_a_id = ? AND user_b_id = ? AND is_active = ?", lo, hi, true).
		Count(&count).Error
	if err != nil {
		return false, svcErr.Storage("check match", err)
	}
	return count > 0, nil
}

// DeactivateForPair ends the match for a pair, if one is active. Called when
// either like is withdrawn, and by the moderation flow when a block is
// introduced between the pair. Missing or already-inactive rows are a no-op.
func (r *MatchRepository) DeactivateForPair(ctx context.Context, a, b uint64) error {
	lo, hi := db.NormalizePair(a, b)
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("user_a_id = ? AND user_b_id = ? AND is_active = ?", lo, hi, true).
		Update("is_active", false).Error
	return svcErr.Storage("deactivate match", err)
}

// ActivePeers returns the other party of every active match involving userID,
// in storage order.
func (r *MatchRepository) ActivePeers(ctx context.Context, userID uint64) ([]uint64, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("(user_a_id = ? OR user_b_id = ?) AND is_active = ?", userID, userID, true).
		Find(&matches).Error
	if err != nil {
		return nil, svcErr.Storage("load active matches", err)
	}

	peers := make([]uint64, 0, len(matches))
	for _, m := range matches {
		if m.UserAID == userID {
			peers = append(peers, m.UserBID)
		} else {
			peers = append(peers, m.UserAID)
		}
	}
	return peers, nil
}

// CountActive returns the number of active matches for userID. Used as the DB
// fallback behind the Redis match-count cache.
func (r *MatchRepository) CountActive(ctx context.Context, userID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("(user_a_id = ? OR user_b_id = ?) AND is_active = ?", userID, userID, true).
		Count(&count).Error
	if err != nil {
		return 0, svcErr.Storage("count matches", err)
	}
	return count, nil
}
