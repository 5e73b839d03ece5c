package chat

import (
	"context"

	"github.com/amberapp/amber-core/internal/app"
	svcErr "github.com/amberapp/amber-core/internal/errors"
	"github.com/amberapp/amber-core/internal/repository"
	"github.com/amberapp/amber-core/internal/stream"
	"github.com/amberapp/amber-core/internal/utils/convid"
)

// Service provisions conversations and call sessions in the chat transport.
// Provisioning is gated on an active match: a channel in the transport grants
// message-send capability, so this is authorization, not convenience.
type Service struct {
	appCtx    *app.AppContext
	matches   *repository.MatchRepository
	transport stream.Transport
}

// NewService creates a new chat service with dependencies from AppContext and
// the shared transport handle used for provisioning calls.
func NewService(appCtx *app.AppContext, transport stream.Transport) *Service {
	return &Service{
		appCtx:    appCtx,
		matches:   repository.NewMatchRepository(appCtx.DB),
		transport: transport,
	}
}

// EnsureConversation validates the match and makes the pair's conversation
// reachable in the transport under its derived id.
//
// Behavior:
//   - No active match between the two ids → NotMatched.
//   - The id is derived from the sorted pair; creation with exactly these two
//     members is idempotent — "already exists" is absorbed by the transport
//     client, any other failure surfaces as TransportError.
func (s *Service) EnsureConversation(ctx context.Context, requesterID, otherID uint64) (string, error) {
	if err := s.gate(ctx, requesterID, otherID); err != nil {
		return "", err
	}

	id := convid.Derive(convid.ConversationPrefix, requesterID, otherID)
	if err := s.transport.EnsureChannel(ctx, id, []uint64{requesterID, otherID}); err != nil {
		return "", err
	}

	s.appCtx.Logger.Debug("conversation ensured", "id", id, "requester", requesterID, "other", otherID)
	return id, nil
}

// EnsureCallSession validates the match and returns the pair's call-session
// id. Same precondition and derivation as conversations, under the call
// prefix; nothing is created in the transport — call sessions are provisioned
// lazily by the call itself.
func (s *Service) EnsureCallSession(ctx context.Context, requesterID, otherID uint64) (string, error) {
	if err := s.gate(ctx, requesterID, otherID); err != nil {
		return "", err
	}
	return convid.Derive(convid.CallPrefix, requesterID, otherID), nil
}

func (s *Service) gate(ctx context.Context, requesterID, otherID uint64) error {
	if requesterID == otherID {
		return svcErr.ErrSelfInteraction
	}
	matched, err := s.matches.HasActiveMatch(ctx, requesterID, otherID)
	if err != nil {
		return err
	}
	if !matched {
		return svcErr.ErrNotMatched
	}
	return nil
}
