package db

import (
	"strings"
	"time"
)

// User table. Display attributes are read-only to the relationship core;
// activity fields are maintained by the session layer.
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Name         string `gorm:"size:128;not null"`
	Birthdate    time.Time
	Bio          string    `gorm:"size:500"`
	AvatarURL    string    `gorm:"size:255"`
	Gender       string    `gorm:"size:16;not null"`
	Active       bool      `gorm:"default:true"`
	LastActiveAt time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// UserPreference holds a user's stated discovery preferences. One row per
// user; AcceptedGenders is a comma-separated list, empty meaning no filter.
type UserPreference struct {
	UserID          uint64    `gorm:"primaryKey"`
	AcceptedGenders string    `gorm:"size:128"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// AcceptedList splits AcceptedGenders into its entries. Empty input yields
// nil, which callers interpret as "accept all genders".
func (p UserPreference) AcceptedList() []string {
	s := strings.TrimSpace(p.AcceptedGenders)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Block is a directed edge written by the moderation flow and consumed
// read-only here. Presence of either direction between two users makes them
// mutually invisible.
//
// Composite PK: (BlockerID, BlockedID).
type Block struct {
	BlockerID uint64    `gorm:"primaryKey"`
	BlockedID uint64    `gorm:"primaryKey;index:idx_blocked_blocker"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Like is a directed swipe-right edge.
//
// Composite PK: (FromUserID, ToUserID) — uniqueness per ordered pair is the
// mechanism that turns a re-like into a reactivation instead of a duplicate
// row. Rows are never deleted, only deactivated.
//
// Index idx_to_from_active(to_user_id, from_user_id, is_active) gives an O(1)
// reverse-direction lookup for reciprocity checks.
type Like struct {
	FromUserID uint64     `gorm:"primaryKey"`
	ToUserID   uint64     `gorm:"primaryKey;index:idx_to_from_active,priority:1"`
	IsActive   bool       `gorm:"not null;default:true;index:idx_to_from_active,priority:3"`
	UnlikedAt  *time.Time
	CreatedAt  time.Time  `gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime"`
}

// Match is the unordered "can converse" state of a pair. The pair is stored
// normalized with UserAID < UserBID so one row covers both directions.
//
// Active becomes true exactly when both directed likes are active, false when
// either like is deactivated or a block is introduced between the pair.
type Match struct {
	UserAID   uint64    `gorm:"primaryKey;index:idx_match_a_active,priority:1"`
	UserBID   uint64    `gorm:"primaryKey;index:idx_match_b_active,priority:1"`
	IsActive  bool      `gorm:"not null;default:true;index:idx_match_a_active,priority:2;index:idx_match_b_active,priority:2"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// NormalizePair orders an unordered user pair for Match storage.
func NormalizePair(a, b uint64) (uint64, uint64) {
	if a > b {
		return b, a
	}
	return a, b
}
