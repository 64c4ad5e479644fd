package domain

// ConnectionState enumerates the channel lifecycle as observed by the client.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connected
	Errored
)

func (s ConnectionState) String() string {
	switch s {
	case Connected:
		return "Connected"
	case Errored:
		return "Errored"
	default:
		return "Disconnected"
	}
}

// ConnectionStatus pairs the state with the last transport error reason.
// Reason is only meaningful when State is Errored.
type ConnectionStatus struct {
	State  ConnectionState
	Reason string
}
