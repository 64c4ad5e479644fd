// Package event defines the typed events exchanged over the live channel.
// Inbound events are server-originated; Outbound commands are user actions.
// The channel transports them verbatim and never interprets payloads.
package event

import "chatsync/domain"

// Inbound is a server-originated channel event. The interface is sealed so
// a handler switch covers every possible case.
type Inbound interface {
	isInbound()
}

// ChannelUp signals that the live channel finished its handshake.
type ChannelUp struct{}

// ChannelError signals a transport-level failure. The channel stays in
// whatever state it settled in; no automatic reconnection.
type ChannelError struct {
	Message string
}

// ChannelDown signals that the channel closed without a transport error.
type ChannelDown struct{}

// RoomCreated acknowledges a create_room request with the new code.
type RoomCreated struct {
	Room string `json:"room"`
}

// RoomJoined acknowledges a join_room request.
type RoomJoined struct {
	Room string `json:"room"`
}

// RoomLeft notifies that the server removed this client from its room,
// whether or not the client asked to leave.
type RoomLeft struct{}

// MessageReceived carries one live chat message.
type MessageReceived struct {
	Message domain.Message
}

// PresenceUpdated carries the full replacement roster of connected users.
type PresenceUpdated struct {
	Users []domain.PresenceEntry `json:"users"`
}

func (ChannelUp) isInbound()       {}
func (ChannelError) isInbound()    {}
func (ChannelDown) isInbound()     {}
func (RoomCreated) isInbound()     {}
func (RoomJoined) isInbound()      {}
func (RoomLeft) isInbound()        {}
func (MessageReceived) isInbound() {}
func (PresenceUpdated) isInbound() {}
