package notify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amberapp/amber-core/internal/db"
	"github.com/amberapp/amber-core/internal/notify"
	"github.com/amberapp/amber-core/internal/stream"
	"github.com/amberapp/amber-core/internal/stream/streamtest"
)

// profileStub answers sender lookups from a fixed map and counts calls so
// tests can assert the per-sender cache.
type profileStub struct {
	users map[uint64]*db.User
	calls int
	err   error
}

func (p *profileStub) GetByID(ctx context.Context, userID uint64) (*db.User, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	user, ok := p.users[userID]
	if !ok {
		return nil, errors.New("no such user")
	}
	return user, nil
}

func newProfileStub() *profileStub {
	return &profileStub{users: map[uint64]*db.User{
		7: {ID: 7, Name: "Nadia", AvatarURL: "https://cdn.test/7.jpg"},
		8: {ID: 8, Name: "Omar", AvatarURL: "https://cdn.test/8.jpg"},
	}}
}

func setupListener(t *testing.T, userID uint64, channels ...string) (*notify.Listener, *streamtest.Fake, *profileStub, *[]notify.Event) {
	t.Helper()

	fake := streamtest.New()
	fake.ChannelsByMember[userID] = channels

	profiles := newProfileStub()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Emission is synchronous in the fake, so plain append is safe here.
	events := &[]notify.Event{}
	listener := notify.NewListener(userID, fake, profiles, log, func(ev notify.Event) {
		*events = append(*events, ev)
	})
	return listener, fake, profiles, events
}

func msg(id, channelID string, senderID uint64, text string) stream.Message {
	return stream.Message{
		ID:        id,
		ChannelID: channelID,
		SenderID:  senderID,
		Text:      text,
		SentAt:    time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestStart_WatchesExistingConversations(t *testing.T) {
	listener, fake, _, _ := setupListener(t, 1, "match_12n8", "match_139x")

	require.NoError(t, listener.Start(context.Background()))
	t.Cleanup(listener.Stop)

	assert.Equal(t, notify.StateWatching, listener.State())
	assert.True(t, fake.IsWatching("match_12n8"))
	assert.True(t, fake.IsWatching("match_139x"))
}

func TestStart_ConnectFailureLeavesDisconnected(t *testing.T) {
	listener, fake, _, _ := setupListener(t, 1)
	fake.ConnectErr = errors.New("dial refused")

	err := listener.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, notify.StateDisconnected, listener.State())

	// A second start after the failure must work once the fault clears.
	fake.ConnectErr = nil
	require.NoError(t, listener.Start(context.Background()))
	t.Cleanup(listener.Stop)
	assert.Equal(t, notify.StateWatching, listener.State())
}

func TestHandleMessage_EmitsNotification(t *testing.T) {
	listener, fake, _, events := setupListener(t, 1, "match_12n8")
	require.NoError(t, listener.Start(context.Background()))
	t.Cleanup(listener.Stop)

	fake.EmitMessage(msg("m1", "match_12n8", 7, "hey there"))

	require.Len(t, *events, 1)
	ev := (*events)[0]
	assert.Equal(t, uint64(7), ev.SenderID)
	assert.Equal(t, "Nadia", ev.SenderName)
	assert.Equal(t, "https://cdn.test/7.jpg", ev.SenderAvatar)
	assert.Equal(t, "hey there", ev.Preview)
	assert.Equal(t, "match_12n8", ev.ConversationID)
}

func TestHandleMessage_SkipsOwnEcho(t *testing.T) {
	listener, fake, _, events := setupListener(t, 1, "match_12n8")
	require.NoError(t, listener.Start(context.Background()))
	t.Cleanup(listener.Stop)

	fake.EmitMessage(msg("m1", "match_12n8", 1, "my own message"))
	assert.Empty(t, *events)
}

func TestHandleMessage_DropsAdjacentRedelivery(t *testing.T) {
	listener, fake, _, events := setupListener(t, 1, "match_12n8")
	require.NoError(t, listener.Start(context.Background()))
	t.Cleanup(listener.Stop)

	fake.EmitMessage(msg("m1", "match_12n8", 7, "hello"))
	fake.EmitMessage(msg("m1", "match_12n8", 7, "hello"))
	fake.EmitMessage(msg("m2", "match_12n8", 7, "again"))

	require.Len(t, *events, 2)
	assert.Equal(t, "hello", (*events)[0].Preview)
	assert.Equal(t, "again", (*events)[1].Preview)
}

func TestHandleMessage_SkipsCallInvites(t *testing.T) {
	listener, fake, _, events := setupListener(t, 1, "match_12n8")
	require.NoError(t, listener.Start(context.Background()))
	t.Cleanup(listener.Stop)

	fake.EmitMessage(msg("m1", "match_12n8", 7, stream.CallInvitePrefix+"call_12n8"))
	assert.Empty(t, *events)

	// A redelivered invite stays suppressed via the recorded id.
	fake.EmitMessage(msg("m1", "match_12n8", 7, stream.CallInvitePrefix+"call_12n8"))
	assert.Empty(t, *events)
}

func TestHandleMessage_SuppressesViewedConversation(t *testing.T) {
	listener, fake, _, events := setupListener(t, 1, "match_12n8", "match_139x")
	require.NoError(t, listener.Start(context.Background()))
	t.Cleanup(listener.Stop)

	listener.SetViewing("match_12n8")

	fake.EmitMessage(msg("m1", "match_12n8", 7, "on screen"))
	fake.EmitMessage(msg("m2", "match_139x", 8, "off screen"))

	require.Len(t, *events, 1)
	assert.Equal(t, "match_139x", (*events)[0].ConversationID)

	// Navigating away re-enables notifications for the conversation.
	listener.SetViewing("")
	fake.EmitMessage(msg("m3", "match_12n8", 7, "visible again"))
	assert.Len(t, *events, 2)
}

func TestHandleAdded_WatchesNewConversation(t *testing.T) {
	listener, fake, _, events := setupListener(t, 1)
	require.NoError(t, listener.Start(context.Background()))
	t.Cleanup(listener.Stop)

	fake.EmitMessage(msg("m0", "match_1xyz", 7, "before add"))
	assert.Empty(t, *events)

	fake.EmitAddedToChannel("match_1xyz")
	assert.True(t, fake.IsWatching("match_1xyz"))

	fake.EmitMessage(msg("m1", "match_1xyz", 7, "after add"))
	require.Len(t, *events, 1)
	assert.Equal(t, "after add", (*events)[0].Preview)
}

func TestHandleMessage_CachesSenderProfile(t *testing.T) {
	listener, fake, profiles, events := setupListener(t, 1, "match_12n8")
	require.NoError(t, listener.Start(context.Background()))
	t.Cleanup(listener.Stop)

	fake.EmitMessage(msg("m1", "match_12n8", 7, "one"))
	fake.EmitMessage(msg("m2", "match_12n8", 7, "two"))
	fake.EmitMessage(msg("m3", "match_12n8", 8, "three"))

	assert.Len(t, *events, 3)
	assert.Equal(t, 2, profiles.calls)
}

func TestHandleMessage_LookupFailureDropsQuietly(t *testing.T) {
	listener, fake, profiles, events := setupListener(t, 1, "match_12n8")
	require.NoError(t, listener.Start(context.Background()))
	t.Cleanup(listener.Stop)

	profiles.err = errors.New("db gone")
	fake.EmitMessage(msg("m1", "match_12n8", 7, "lost"))
	assert.Empty(t, *events)

	profiles.err = nil
	fake.EmitMessage(msg("m2", "match_12n8", 7, "recovered"))
	assert.Len(t, *events, 1)
}

func TestStop_TearsDownInOrder(t *testing.T) {
	listener, fake, _, _ := setupListener(t, 1, "match_12n8", "match_139x")
	require.NoError(t, listener.Start(context.Background()))

	listener.Stop()

	assert.Equal(t, notify.StateDisconnected, listener.State())
	assert.Zero(t, fake.HandlerCount())
	assert.Equal(t, 2, fake.MsgUnsubCount)
	assert.Equal(t, 1, fake.AddedUnsubCount)
	assert.ElementsMatch(t, []string{"match_12n8", "match_139x"}, fake.UnwatchOrder)
	assert.True(t, fake.Disconnected)
	assert.True(t, fake.UnsubBeforeClose)

	// Idempotent: a second stop does nothing.
	listener.Stop()
	assert.Equal(t, 2, fake.MsgUnsubCount)
}
