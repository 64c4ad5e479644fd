package ws

import (
	"encoding/json"
	"fmt"

	"chatsync/domain"
	"chatsync/domain/event"
)

// envelope is the wire framing of every channel message: an event name and
// an event-specific JSON payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type roomPayload struct {
	Room string `json:"room"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func encode(cmd event.Outbound) ([]byte, error) {
	env := envelope{Event: cmd.Name()}
	if payload := cmd.Payload(); payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", cmd.Name(), err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// decode maps a raw frame to its typed inbound event. Unknown event names
// are reported so the caller can log and skip them.
func decode(raw []byte) (event.Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch env.Event {
	case "room_created":
		var p roomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("room_created payload: %w", err)
		}
		return event.RoomCreated{Room: p.Room}, nil
	case "room_joined":
		var p roomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("room_joined payload: %w", err)
		}
		return event.RoomJoined{Room: p.Room}, nil
	case "room_left":
		return event.RoomLeft{}, nil
	case "receive_room_message":
		var msg domain.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("receive_room_message payload: %w", err)
		}
		return event.MessageReceived{Message: msg}, nil
	case "online_users":
		var users []domain.PresenceEntry
		if err := json.Unmarshal(env.Data, &users); err != nil {
			return nil, fmt.Errorf("online_users payload: %w", err)
		}
		return event.PresenceUpdated{Users: users}, nil
	case "connect_error":
		var p errorPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("connect_error payload: %w", err)
		}
		return event.ChannelError{Message: p.Message}, nil
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
}
