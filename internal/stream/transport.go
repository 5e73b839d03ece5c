// Package stream is the narrow boundary to the hosted chat transport. The
// relationship core only needs connect/watch/event/unwatch/disconnect plus
// idempotent channel provisioning, so the Transport interface exposes exactly
// that and nothing else; router logic stays testable against a scripted fake.
package stream

import (
	"context"
	"time"
)

// Event types pushed by the transport.
const (
	EventMessageNew     = "message.new"
	EventAddedToChannel = "notification.added_to_channel"
)

// CallInvitePrefix marks call-invitation control messages carried in-band as
// message text. The notification router must never surface them.
const CallInvitePrefix = "::call-invite::"

// Message is an inbound chat message as delivered by the transport.
type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	SenderID  uint64    `json:"sender_id"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sent_at"`
}

// Event is a single push from the transport's live stream.
type Event struct {
	Type      string  `json:"type"`
	ChannelID string  `json:"channel_id"`
	Message   Message `json:"message"`
}

// Handler consumes one transport event. Handlers for a single channel are
// invoked in transport delivery order; no cross-channel order is guaranteed.
type Handler func(Event)

// Transport abstracts the hosted chat service.
//
// Implementations must make EnsureChannel idempotent: an "already exists"
// response from the service is absorbed and treated as success. Every other
// failure surfaces as a TransportError.
type Transport interface {
	// Connect establishes the live event connection for the given user.
	Connect(ctx context.Context, userID uint64) error

	// EnsureChannel creates the channel with exactly these members, or
	// succeeds silently if it already exists.
	EnsureChannel(ctx context.Context, channelID string, memberIDs []uint64) error

	// Channels lists the ids of every channel the user is a member of.
	Channels(ctx context.Context, memberID uint64) ([]string, error)

	// Watch subscribes the connection to a channel's events.
	Watch(ctx context.Context, channelID string) error

	// Unwatch stops a channel subscription.
	Unwatch(ctx context.Context, channelID string) error

	// OnMessageNew registers a handler for message.new events on one channel.
	// The returned func removes the handler.
	OnMessageNew(channelID string, h Handler) (unsubscribe func())

	// OnAddedToChannel registers a handler fired when the connected user is
	// added to a channel after the connection was established.
	OnAddedToChannel(h Handler) (unsubscribe func())

	// Disconnect releases the connection. Safe to call when not connected.
	Disconnect() error
}
