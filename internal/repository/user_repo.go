package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/amberapp/amber-core/internal/db"
	svcErr "github.com/amberapp/amber-core/internal/errors"
)

// UserRepository reads user profiles and discovery preferences. Profiles are
// owned by the account layer; this core never mutates them.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// GetByID returns the user's profile. gorm.ErrRecordNotFound passes through
// untouched so callers can distinguish a missing user from a failed query.
func (r *UserRepository) GetByID(ctx context.Context, userID uint64) (*db.User, error) {
	var user db.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	} else if err != nil {
		return nil, svcErr.Storage("load user", err)
	}
	return &user, nil
}

// GetByIDs returns the profiles for the given ids, in storage order. Missing
// ids are simply absent from the result.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []uint64) ([]db.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []db.User
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, svcErr.Storage("load users", err)
	}
	return users, nil
}

// PageExcluding returns up to limit active users other than selfID, in
// storage order. No ranking is applied; filtering happens in the discovery
// service.
func (r *UserRepository) PageExcluding(ctx context.Context, selfID uint64, limit int) ([]db.User, error) {
	var users []db.User
	err := r.db.WithContext(ctx).
		Where("id <> ? AND active = ?", selfID, true).
		Order("id").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, svcErr.Storage("load candidate page", err)
	}
	return users, nil
}

// GetPreference returns the user's discovery preference row. A missing row is
// reported as an empty preference (accept all genders); only a failed query
// is an error, and it fails the whole discovery call — partial
// personalization is not offered as a fallback.
func (r *UserRepository) GetPreference(ctx context.Context, userID uint64) (db.UserPreference, error) {
	var pref db.UserPreference
	err := r.db.WithContext(ctx).First(&pref, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.UserPreference{UserID: userID}, nil
	} else if err != nil {
		return db.UserPreference{}, svcErr.Storage("load preference", err)
	}
	return pref, nil
}
