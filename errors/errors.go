package errors

import "fmt"

var (
	ErrAuthUnreachable    = fmt.Errorf("authentication service unreachable")
	ErrHistoryUnavailable = fmt.Errorf("room history unavailable")
	ErrChannelClosed      = fmt.Errorf("channel is closed")
	ErrNotAuthenticated   = fmt.Errorf("not authenticated")
	ErrNotConnected       = fmt.Errorf("channel not connected")
	ErrNotInRoom          = fmt.Errorf("no room joined")
	ErrEmptyRoomCode      = fmt.Errorf("room code must not be empty")
	ErrEmptyMessage       = fmt.Errorf("message must not be empty")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
)

// AuthRejected carries the rejection reason sent by the identity service.
// The message is shown to the user verbatim, unlike transport failures
// which are reported generically.
type AuthRejected struct {
	Message string
}

func (e *AuthRejected) Error() string {
	if e.Message == "" {
		return "authentication rejected"
	}
	return fmt.Sprintf("authentication rejected: %s", e.Message)
}
