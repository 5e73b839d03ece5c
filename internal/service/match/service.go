package match

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/amberapp/amber-core/internal/app"
	svcErr "github.com/amberapp/amber-core/internal/errors"
	"github.com/amberapp/amber-core/internal/repository"
)

// Service records like edges, detects reciprocity and exposes the resulting
// matches. The like and the match it may create are written in one
// transaction: there is no partial-success state.
type Service struct {
	appCtx  *app.AppContext
	users   *repository.UserRepository
	blocks  *repository.BlockRepository
	matches *repository.MatchRepository
}

// NewService creates a new match service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:  appCtx,
		users:   repository.NewUserRepository(appCtx.DB),
		blocks:  repository.NewBlockRepository(appCtx.DB),
		matches: repository.NewMatchRepository(appCtx.DB),
	}
}

// MatchedUser is the profile returned when a like completes a match.
type MatchedUser struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Birthdate time.Time `json:"birthdate"`
	Bio       string    `json:"bio"`
	AvatarURL string    `json:"avatar_url"`
	Online    bool      `json:"online"`
}

// LikeResult reports the outcome of a swipe. A one-sided like is a normal,
// terminal outcome, not an error.
type LikeResult struct {
	IsMatch     bool         `json:"is_match"`
	MatchedUser *MatchedUser `json:"matched_user,omitempty"`
}

// Like records fromID → toID as an active like and reports whether it
// completed a match.
//
// Behavior:
//   - fromID == toID fails with SelfInteraction.
//   - A block in either direction fails with BlockedInteraction.
//   - The like is upserted; a prior unliked row is reactivated through the
//     ordered-pair uniqueness constraint.
//   - If the reverse like is active, the match row is written in the same
//     transaction, so matchesOf and conversation provisioning see it as soon
//     as this call returns.
func (s *Service) Like(ctx context.Context, fromID, toID uint64) (*LikeResult, error) {
	s.appCtx.Logger.Debug("Like called", "from", fromID, "to", toID)

	if fromID == toID {
		return nil, svcErr.ErrSelfInteraction
	}

	blocked, err := s.blocks.IsBlockedPair(ctx, fromID, toID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, svcErr.ErrBlockedInteraction
	}

	var mutual bool
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		likes := repository.NewLikeRepository(tx)
		if err := likes.UpsertActive(ctx, fromID, toID); err != nil {
			return err
		}

		reverse, err := likes.HasActiveLike(ctx, toID, fromID)
		if err != nil {
			return err
		}
		if !reverse {
			return nil
		}

		mutual = true
		return repository.NewMatchRepository(tx).UpsertActive(ctx, fromID, toID)
	})
	if err != nil {
		// Transaction errors are already typed by the repositories.
		var sErr *svcErr.StorageError
		if errors.As(err, &sErr) {
			return nil, err
		}
		return nil, svcErr.Storage("like transaction", err)
	}

	if !mutual {
		return &LikeResult{IsMatch: false}, nil
	}

	// Match state changed for both users; drop their cached counts.
	_ = s.appCtx.RedisCache.InvalidateMatchCount(ctx, fromID)
	_ = s.appCtx.RedisCache.InvalidateMatchCount(ctx, toID)

	other, err := s.users.GetByID(ctx, toID)
	if err != nil {
		return nil, err
	}

	online, _ := s.appCtx.RedisCache.IsOnline(ctx, toID)

	s.appCtx.Logger.Info("match created", "a", fromID, "b", toID)

	return &LikeResult{
		IsMatch:     true,
		MatchedUser: &MatchedUser{
			ID:        other.ID,
			Name:      other.Name,
			Birthdate: other.Birthdate,
			Bio:       other.Bio,
			AvatarURL: other.AvatarURL,
			Online:    online,
		},
	}, nil
}

// Unlike withdraws the fromID → toID like. The like row is deactivated, never
// deleted, so a later like reactivates it. Any active match of the pair ends
// with it.
func (s *Service) Unlike(ctx context.Context, fromID, toID uint64) error {
	s.appCtx.Logger.Debug("Unlike called", "from", fromID, "to", toID)

	if fromID == toID {
		return svcErr.ErrSelfInteraction
	}

	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewLikeRepository(tx).Deactivate(ctx, fromID, toID); err != nil {
			return err
		}
		return repository.NewMatchRepository(tx).DeactivateForPair(ctx, fromID, toID)
	})
	if err != nil {
		return err
	}

	_ = s.appCtx.RedisCache.InvalidateMatchCount(ctx, fromID)
	_ = s.appCtx.RedisCache.InvalidateMatchCount(ctx, toID)
	return nil
}

// Matches returns the profile of every active match partner of userID, in
// storage order, with their current online flag.
func (s *Service) Matches(ctx context.Context, userID uint64) ([]MatchedUser, error) {
	peers, err := s.matches.ActivePeers(ctx, userID)
	if err != nil {
		return nil, err
	}

	users, err := s.users.GetByIDs(ctx, peers)
	if err != nil {
		return nil, err
	}

	out := make([]MatchedUser, 0, len(users))
	for _, u := range users {
		online, _ := s.appCtx.RedisCache.IsOnline(ctx, u.ID)
		out = append(out, MatchedUser{
			ID:        u.ID,
			Name:      u.Name,
			Birthdate: u.Birthdate,
			Bio:       u.Bio,
			AvatarURL: u.AvatarURL,
			Online:    online,
		})
	}
	return out, nil
}

// MatchCount returns the number of active matches, cache-first:
//  1. Redis (matches:count:<id>) with TTL refresh on hit.
//  2. DB fallback, then the cache is repopulated with a fresh TTL.
func (s *Service) MatchCount(ctx context.Context, userID uint64) (int64, error) {
	if n, hit, err := s.appCtx.RedisCache.GetMatchCount(ctx, userID); err == nil && hit {
		return n, nil
	}

	count, err := s.matches.CountActive(ctx, userID)
	if err != nil {
		return 0, err
	}

	_ = s.appCtx.RedisCache.UpdateMatchCount(ctx, userID, count)
	return count, nil
}
