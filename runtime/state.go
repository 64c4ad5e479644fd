// Package runtime reconciles the persisted session, the live channel and
// history fetches into one consistent client state. All state is owned by a
// single controller loop; readers only ever see snapshot copies.
package runtime

import "chatsync/domain"

// State is the full client view: who am I, what room am I in, what messages
// exist, who else is present. It is mutated only by the controller loop.
type State struct {
	Session    domain.Session
	Connection domain.ConnectionStatus
	Room       domain.RoomState
	Messages   []domain.Message
	Roster     []domain.PresenceEntry

	// Notice is a transient status line ("Connected", "You left the room").
	Notice string
	// ChannelError is the persistent transport-error banner. It survives
	// notices and is only cleared when the channel comes back up.
	ChannelError string
	// LoadingHistory is set while a history fetch is in flight.
	LoadingHistory bool
}

func (s State) clone() State {
	out := s
	out.Messages = append([]domain.Message(nil), s.Messages...)
	out.Roster = append([]domain.PresenceEntry(nil), s.Roster...)
	return out
}
