package discovery

import (
	"context"
	"time"

	"github.com/amberapp/amber-core/internal/app"
	"github.com/amberapp/amber-core/internal/repository"
)

// Service computes the candidate pool shown on a discovery-session load.
// It combines the block set, the already-interacted set and the requester's
// stated preferences over a page of the user pool.
type Service struct {
	appCtx  *app.AppContext
	users   *repository.UserRepository
	blocks  *repository.BlockRepository
	likes   *repository.LikeRepository
	matches *repository.MatchRepository
}

// NewService creates a new discovery service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:  appCtx,
		users:   repository.NewUserRepository(appCtx.DB),
		blocks:  repository.NewBlockRepository(appCtx.DB),
		likes:   repository.NewLikeRepository(appCtx.DB),
		matches: repository.NewMatchRepository(appCtx.DB),
	}
}

// Candidate is one entry of the candidate pool, trimmed to display fields.
type Candidate struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Birthdate time.Time `json:"birthdate"`
	Bio       string    `json:"bio"`
	AvatarURL string    `json:"avatar_url"`
	Gender    string    `json:"gender"`
}

// PotentialMatches returns the pool of users eligible to be shown to userID,
// capped at the configured page size.
//
// Behavior:
//   - Fetches a page of active users excluding the requester, in storage
//     order; no ranking is applied.
//   - Filters out blocked peers (either direction), previously swiped users
//     (liked or passed, active or not), active match partners, and users
//     whose gender is not in the requester's accepted list (an empty list
//     accepts all genders).
//   - Any lookup failure fails the whole call; partial personalization is
//     never offered. An empty pool after filtering is a normal result.
func (s *Service) PotentialMatches(ctx context.Context, userID uint64) ([]Candidate, error) {
	s.appCtx.Logger.Debug("PotentialMatches called", "user", userID)

	page, err := s.users.PageExcluding(ctx, userID, s.appCtx.Cfg.Discovery.PageSize)
	if err != nil {
		return nil, err
	}

	pref, err := s.users.GetPreference(ctx, userID)
	if err != nil {
		return nil, err
	}

	blocked, err := s.blocks.BlockedPeers(ctx, userID)
	if err != nil {
		return nil, err
	}

	interacted, err := s.interactedPeers(ctx, userID)
	if err != nil {
		return nil, err
	}

	accepted := make(map[string]struct{})
	for _, g := range pref.AcceptedList() {
		accepted[g] = struct{}{}
	}

	candidates := make([]Candidate, 0, len(page))
	for _, u := range page {
		if _, hit := blocked[u.ID]; hit {
			continue
		}
		if _, hit := interacted[u.ID]; hit {
			continue
		}
		if len(accepted) > 0 {
			if _, ok := accepted[u.Gender]; !ok {
				continue
			}
		}
		candidates = append(candidates, Candidate{
			ID:        u.ID,
			Name:      u.Name,
			Birthdate: u.Birthdate,
			Bio:       u.Bio,
			AvatarURL: u.AvatarURL,
			Gender:    u.Gender,
		})
	}

	s.appCtx.Logger.Debug("PotentialMatches result", "user", userID, "count", len(candidates))

	return candidates, nil
}

// interactedPeers unions everyone the user has swiped on (active or not) with
// the other party of every currently-active match.
func (s *Service) interactedPeers(ctx context.Context, userID uint64) (map[uint64]struct{}, error) {
	liked, err := s.likes.LikedPeers(ctx, userID)
	if err != nil {
		return nil, err
	}
	matched, err := s.matches.ActivePeers(ctx, userID)
	if err != nil {
		return nil, err
	}

	peers := make(map[uint64]struct{}, len(liked)+len(matched))
	for _, id := range liked {
		peers[id] = struct{}{}
	}
	for _, id := range matched {
		peers[id] = struct{}{}
	}
	return peers, nil
}
