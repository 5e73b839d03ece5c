// Package streamtest provides a scripted, in-memory stream.Transport so
// router and provisioning logic can be exercised without a network.
package streamtest

import (
	"context"
	"sync"

	svcErr "github.com/amberapp/amber-core/internal/errors"
	"github.com/amberapp/amber-core/internal/stream"
)

// Fake implements stream.Transport. Events are delivered synchronously from
// Emit, matching the callback-driven push model of the real transport.
type Fake struct {
	mu sync.Mutex

	ConnectedUser uint64
	Connected     bool
	ConnectErr    error

	// ChannelsByMember seeds the membership answer for Channels.
	ChannelsByMember map[uint64][]string
	ChannelsErr      error

	// Existing marks channel ids whose creation returns "already exists";
	// EnsureChannel absorbs that, so calls still succeed.
	Existing    map[string]bool
	CreateErr   error
	CreateCalls []CreateCall

	Watched      map[string]bool
	WatchErr     error
	UnwatchOrder []string

	nextSubID   int
	msgHandlers map[string]map[int]stream.Handler
	addHandlers map[int]stream.Handler

	// Teardown bookkeeping for lifecycle assertions.
	Disconnected     bool
	MsgUnsubCount    int
	AddedUnsubCount  int
	UnsubBeforeClose bool
}

// CreateCall records one EnsureChannel invocation.
type CreateCall struct {
	ChannelID string
	Members   []uint64
}

func New() *Fake {
	return &Fake{
		ChannelsByMember: make(map[uint64][]string),
		Existing:         make(map[string]bool),
		Watched:          make(map[string]bool),
		msgHandlers:      make(map[string]map[int]stream.Handler),
		addHandlers:      make(map[int]stream.Handler),
	}
}

func (f *Fake) Connect(ctx context.Context, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.Connected = true
	f.ConnectedUser = userID
	return nil
}

func (f *Fake) EnsureChannel(ctx context.Context, channelID string, memberIDs []uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return svcErr.Transport("ensure channel", f.CreateErr)
	}
	f.CreateCalls = append(f.CreateCalls, CreateCall{ChannelID: channelID, Members: memberIDs})
	if f.Existing[channelID] {
		return nil // absorbed "already exists"
	}
	f.Existing[channelID] = true
	return nil
}

func (f *Fake) Channels(ctx context.Context, memberID uint64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ChannelsErr != nil {
		return nil, f.ChannelsErr
	}
	return f.ChannelsByMember[memberID], nil
}

func (f *Fake) Watch(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WatchErr != nil {
		return f.WatchErr
	}
	f.Watched[channelID] = true
	return nil
}

func (f *Fake) Unwatch(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Watched, channelID)
	f.UnwatchOrder = append(f.UnwatchOrder, channelID)
	return nil
}

func (f *Fake) OnMessageNew(channelID string, h stream.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.msgHandlers[channelID] == nil {
		f.msgHandlers[channelID] = make(map[int]stream.Handler)
	}
	id := f.nextSubID
	f.nextSubID++
	f.msgHandlers[channelID][id] = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.msgHandlers[channelID], id)
		f.MsgUnsubCount++
		if !f.Disconnected {
			f.UnsubBeforeClose = true
		}
	}
}

func (f *Fake) OnAddedToChannel(h stream.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSubID
	f.nextSubID++
	f.addHandlers[id] = h
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.addHandlers, id)
		f.AddedUnsubCount++
	}
}

func (f *Fake) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connected = false
	f.Disconnected = true
	return nil
}

// EmitMessage replays one message.new event to the handlers of its channel,
// synchronously and in call order.
func (f *Fake) EmitMessage(m stream.Message) {
	f.mu.Lock()
	handlers := make([]stream.Handler, 0, len(f.msgHandlers[m.ChannelID]))
	for _, h := range f.msgHandlers[m.ChannelID] {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	ev := stream.Event{Type: stream.EventMessageNew, ChannelID: m.ChannelID, Message: m}
	for _, h := range handlers {
		h(ev)
	}
}

// EmitAddedToChannel replays an added-to-channel notification.
func (f *Fake) EmitAddedToChannel(channelID string) {
	f.mu.Lock()
	handlers := make([]stream.Handler, 0, len(f.addHandlers))
	for _, h := range f.addHandlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	ev := stream.Event{Type: stream.EventAddedToChannel, ChannelID: channelID}
	for _, h := range handlers {
		h(ev)
	}
}

// IsWatching reports whether the channel is currently watched.
func (f *Fake) IsWatching(channelID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Watched[channelID]
}

// HandlerCount returns the live message-handler count across channels.
func (f *Fake) HandlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgHandlers {
		n += len(m)
	}
	return n + len(f.addHandlers)
}

var _ stream.Transport = (*Fake)(nil)
