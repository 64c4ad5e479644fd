package event

// Outbound is a client command emitted on the live channel. Name returns
// the wire event name; the payload shape is up to each command.
type Outbound interface {
	Name() string
	Payload() any
}

type CreateRoom struct{}

func (CreateRoom) Name() string { return "create_room" }
func (CreateRoom) Payload() any { return nil }

type JoinRoom struct {
	Room string
}

func (c JoinRoom) Name() string { return "join_room" }
func (c JoinRoom) Payload() any { return c.Room }

type LeaveRoom struct{}

func (LeaveRoom) Name() string { return "leave_room" }
func (LeaveRoom) Payload() any { return nil }

// SendMessage posts a trimmed message to the current room. The local stream
// is not touched; the message only appears once the server echoes it back.
type SendMessage struct {
	Message string `json:"message"`
	Room    string `json:"room"`
}

func (c SendMessage) Name() string { return "send_room_message" }
func (c SendMessage) Payload() any { return c }
