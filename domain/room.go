package domain

// RoomState tracks room membership. The empty code means no room is joined;
// exactly one room is active per session at a time.
type RoomState struct {
	Code string
}

func (r RoomState) InRoom() bool {
	return r.Code != ""
}
