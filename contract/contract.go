//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"

	"chatsync/domain"
	"chatsync/domain/event"
)

// Channel is the bidirectional typed-event interface over the live
// connection. Implementations own exactly one underlying connection and
// pass server payloads through without interpreting them.
type Channel interface {
	// Open dials the channel for the given session token. Calling Open with
	// the token already connected is a no-op; calling it with a different
	// token first closes the existing connection.
	Open(ctx context.Context, token string) error
	// Close releases the connection unconditionally. Safe to call when
	// already closed.
	Close() error
	Emit(cmd event.Outbound) error
	Events() <-chan event.Inbound
}

// AuthAPI issues a single login or register attempt against the identity
// service. No retries; one attempt per user action.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (domain.Session, error)
	Register(ctx context.Context, username, email, password string) (domain.Session, error)
}

// HistoryAPI fetches the past messages of a room.
type HistoryAPI interface {
	Fetch(ctx context.Context, room, token string) ([]domain.Message, error)
}

// SessionRepository is the durable store behind the session, the last-known
// room code, and the device id. Load never fails: missing or malformed data
// reads back as an absent session.
type SessionRepository interface {
	Load() domain.Session
	Save(session domain.Session) error
	Clear() error

	LastRoom() string
	SaveLastRoom(code string) error
	ClearLastRoom() error

	DeviceID() (string, error)
}
