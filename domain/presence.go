package domain

// PresenceEntry is one connected user in the roster. The server always
// sends the full roster as a replacement snapshot, never a delta.
type PresenceEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
