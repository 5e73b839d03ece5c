package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amberapp/amber-core/internal/db"
	"github.com/amberapp/amber-core/internal/stream"
)

// State of a listener. One listener exists per authenticated session; it
// moves Disconnected → Connecting → Watching on start and back to
// Disconnected on teardown or identity change.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateWatching
)

// Event is the transient notification handed to the UI session. Never
// persisted; its lifetime is a single toast.
type Event struct {
	SenderID       uint64    `json:"sender_id"`
	SenderName     string    `json:"sender_name"`
	SenderAvatar   string    `json:"sender_avatar"`
	Preview        string    `json:"preview"`
	ConversationID string    `json:"conversation_id"`
	SentAt         time.Time `json:"sent_at"`
}

// ProfileSource resolves sender display data. Satisfied by
// repository.UserRepository.
type ProfileSource interface {
	GetByID(ctx context.Context, userID uint64) (*db.User, error)
}

type cachedProfile struct {
	name   string
	avatar string
}

const profileLookupTimeout = 5 * time.Second

// Listener routes the transport's live events for one user session into
// deduplicated, suppression-filtered notifications.
//
// Concurrency: the transport invokes handleMessage from its delivery
// callback, one channel's events in delivery order. lastMsgID and the profile
// cache are touched only on that path (single writer). The viewed
// conversation is set from the session's read path, so it is the one shared
// scalar and lives in an atomic.
type Listener struct {
	userID    uint64
	transport stream.Transport
	profiles  ProfileSource
	log       *slog.Logger
	emit      func(Event)

	state  atomic.Int32
	active atomic.Value // string: conversation id the user is viewing

	// Event-path state, single writer.
	lastMsgID    string
	profileCache map[uint64]cachedProfile

	mu         sync.Mutex // guards subscription bookkeeping below
	unsubs     map[string]func()
	unsubAdded func()
	watched    []string
}

// NewListener builds a stopped listener. emit receives at most one Event per
// distinct incoming message and must not block for long; the session's send
// buffer provides the slack.
func NewListener(userID uint64, transport stream.Transport, profiles ProfileSource, log *slog.Logger, emit func(Event)) *Listener {
	l := &Listener{
		userID:       userID,
		transport:    transport,
		profiles:     profiles,
		log:          log,
		emit:         emit,
		profileCache: make(map[uint64]cachedProfile),
		unsubs:       make(map[string]func()),
	}
	l.active.Store("")
	return l
}

// State returns the listener's current lifecycle state.
func (l *Listener) State() State {
	return State(l.state.Load())
}

// Start connects to the transport and begins watching every conversation the
// user is a member of. A failure leaves the listener Disconnected; the
// session keeps running in degraded, non-notifying mode — the caller logs and
// moves on.
func (l *Listener) Start(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return fmt.Errorf("listener already started")
	}

	if err := l.transport.Connect(ctx, l.userID); err != nil {
		l.state.Store(int32(StateDisconnected))
		return err
	}

	channels, err := l.transport.Channels(ctx, l.userID)
	if err != nil {
		_ = l.transport.Disconnect()
		l.state.Store(int32(StateDisconnected))
		return err
	}

	// Register the global handler first so a conversation created while the
	// initial watch loop runs is not missed.
	l.mu.Lock()
	l.unsubAdded = l.transport.OnAddedToChannel(l.handleAdded)
	l.mu.Unlock()

	for _, ch := range channels {
		if err := l.watchChannel(ctx, ch); err != nil {
			l.log.Warn("watch failed, channel not notifying", "channel", ch, "err", err)
		}
	}

	l.state.Store(int32(StateWatching))
	return nil
}

// watchChannel subscribes one conversation, once.
func (l *Listener) watchChannel(ctx context.Context, channelID string) error {
	l.mu.Lock()
	if _, dup := l.unsubs[channelID]; dup {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	if err := l.transport.Watch(ctx, channelID); err != nil {
		return err
	}

	unsub := l.transport.OnMessageNew(channelID, l.handleMessage)

	l.mu.Lock()
	l.unsubs[channelID] = unsub
	l.watched = append(l.watched, channelID)
	l.mu.Unlock()
	return nil
}

// handleAdded starts watching a conversation the user was added to after the
// listener came up. No reconnect needed.
func (l *Listener) handleAdded(ev stream.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), profileLookupTimeout)
	defer cancel()
	if err := l.watchChannel(ctx, ev.ChannelID); err != nil {
		l.log.Warn("dynamic watch failed", "channel", ev.ChannelID, "err", err)
	}
}

// handleMessage filters one inbound message down to zero or one notification.
//
// Drop order: own echo; adjacent redelivery of the last-processed id;
// call-invitation control text; the conversation currently on screen. The
// last-processed id is recorded before the remaining checks so a redelivered
// suppressed message stays suppressed.
func (l *Listener) handleMessage(ev stream.Event) {
	m := ev.Message

	if m.SenderID == l.userID {
		return
	}
	if m.ID != "" && m.ID == l.lastMsgID {
		return
	}
	l.lastMsgID = m.ID

	if strings.HasPrefix(m.Text, stream.CallInvitePrefix) {
		return
	}
	if l.Viewing() == m.ChannelID {
		return
	}

	prof, err := l.senderProfile(m.SenderID)
	if err != nil {
		// Degraded: skip this notification, keep the session alive.
		l.log.Warn("sender lookup failed, notification dropped", "sender", m.SenderID, "err", err)
		return
	}

	l.emit(Event{
		SenderID:       m.SenderID,
		SenderName:     prof.name,
		SenderAvatar:   prof.avatar,
		Preview:        m.Text,
		ConversationID: m.ChannelID,
		SentAt:         m.SentAt,
	})
}

// senderProfile resolves display data, cached per sender for the listener's
// lifetime. Called only from the event path.
func (l *Listener) senderProfile(senderID uint64) (cachedProfile, error) {
	if prof, hit := l.profileCache[senderID]; hit {
		return prof, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), profileLookupTimeout)
	defer cancel()

	user, err := l.profiles.GetByID(ctx, senderID)
	if err != nil {
		return cachedProfile{}, err
	}

	prof := cachedProfile{name: user.Name, avatar: user.AvatarURL}
	l.profileCache[senderID] = prof
	return prof, nil
}

// SetViewing records the conversation the user currently has on screen.
// Messages for it are suppressed. Pass "" when the user navigates elsewhere.
func (l *Listener) SetViewing(conversationID string) {
	l.active.Store(conversationID)
}

// Viewing returns the conversation currently on screen, or "".
func (l *Listener) Viewing() string {
	return l.active.Load().(string)
}

// Stop tears the listener down: per-conversation handlers first, then the
// global added-to-channel handler, then every watch, then the connection.
// Partial teardown must not leave handlers firing into a disposed session, so
// the order is fixed. Safe to call more than once.
func (l *Listener) Stop() {
	l.mu.Lock()
	unsubs := l.unsubs
	unsubAdded := l.unsubAdded
	watched := l.watched
	l.unsubs = make(map[string]func())
	l.unsubAdded = nil
	l.watched = nil
	l.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	if unsubAdded != nil {
		unsubAdded()
	}

	ctx, cancel := context.WithTimeout(context.Background(), profileLookupTimeout)
	defer cancel()
	for _, ch := range watched {
		if err := l.transport.Unwatch(ctx, ch); err != nil {
			l.log.Warn("unwatch failed during teardown", "channel", ch, "err", err)
		}
	}

	if err := l.transport.Disconnect(); err != nil {
		l.log.Warn("transport disconnect failed", "err", err)
	}
	l.state.Store(int32(StateDisconnected))
}
