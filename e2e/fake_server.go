// Package e2e drives the full client stack against an in-process chat
// server. The fake server implements just enough of the REST and channel
// protocol for the scenarios; it is test scaffolding, not a deliverable.
package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatsync/domain"
)

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type member struct {
	conn     *websocket.Conn
	username string
	room     string
	writeMu  sync.Mutex
}

func (m *member) send(name string, data any) error {
	env := map[string]any{"event": name}
	if data != nil {
		env["data"] = data
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return m.conn.WriteJSON(env)
}

// fakeServer is a minimal chat backend: any credentials are accepted, the
// token encodes the username, rooms are named sequentially and history is
// whatever the test seeded.
type fakeServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader
	debug    bool

	mu       sync.Mutex
	members  map[*member]struct{}
	history  map[string][]domain.Message
	nextRoom int
}

func newFakeServer(debug bool) *fakeServer {
	f := &fakeServer{
		debug:    debug,
		members:  make(map[*member]struct{}),
		history:  make(map[string][]domain.Message),
		nextRoom: 1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", f.handleAuth)
	mux.HandleFunc("/api/auth/register", f.handleAuth)
	mux.HandleFunc("/api/messages", f.handleHistory)
	mux.HandleFunc("/ws", f.handleChannel)
	f.server = httptest.NewServer(mux)
	return f
}

func (f *fakeServer) Close() {
	f.server.Close()
}

func (f *fakeServer) URL() string {
	return f.server.URL
}

func (f *fakeServer) ChannelURL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
}

// SeedHistory installs the canned past messages of a room.
func (f *fakeServer) SeedHistory(room string, messages []domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[room] = messages
}

func usernameFromToken(token string) string {
	return strings.TrimPrefix(token, "T-")
}

func (f *fakeServer) handleAuth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Malformed request"})
		return
	}

	username := body.Username
	if username == "" {
		// Login derives the username from the email local part.
		username = strings.SplitN(body.Email, "@", 2)[0]
	}
	if body.Password == "denied" {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Wrong password"})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"token": "T-" + username,
		"user":  map[string]string{"id": "id-" + username, "username": username},
	})
}

func (f *fakeServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	room := r.URL.Query().Get("room")

	f.mu.Lock()
	messages := append([]domain.Message(nil), f.history[room]...)
	f.mu.Unlock()

	_ = json.NewEncoder(w).Encode(messages)
}

func (f *fakeServer) handleChannel(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m := &member{conn: conn, username: usernameFromToken(token)}
	f.mu.Lock()
	f.members[m] = struct{}{}
	f.mu.Unlock()
	f.broadcastPresence()

	defer func() {
		f.mu.Lock()
		delete(f.members, m)
		f.mu.Unlock()
		f.broadcastPresence()
		_ = conn.Close()
	}()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			continue
		}
		if f.debug {
			fmt.Printf("fake server <- %s %s\n", env.Event, string(env.Data))
		}
		f.dispatch(m, env)
	}
}

func (f *fakeServer) dispatch(m *member, env envelope) {
	switch env.Event {
	case "create_room":
		f.mu.Lock()
		room := fmt.Sprintf("R%03d", f.nextRoom)
		f.nextRoom++
		m.room = room
		f.mu.Unlock()
		_ = m.send("room_created", map[string]string{"room": room})
	case "join_room":
		var room string
		_ = json.Unmarshal(env.Data, &room)
		f.mu.Lock()
		m.room = room
		f.mu.Unlock()
		_ = m.send("room_joined", map[string]string{"room": room})
	case "leave_room":
		f.mu.Lock()
		m.room = ""
		f.mu.Unlock()
		_ = m.send("room_left", nil)
	case "send_room_message":
		var payload struct {
			Message string `json:"message"`
			Room    string `json:"room"`
		}
		_ = json.Unmarshal(env.Data, &payload)
		f.broadcastMessage(m.username, payload.Room, payload.Message)
	}
}

// broadcastMessage echoes the message to every member of the room, sender
// included, and appends it to the canned history.
func (f *fakeServer) broadcastMessage(sender, room, content string) {
	message := domain.Message{
		SenderName: sender,
		Content:    content,
		Timestamp:  time.Now().UTC(),
		Room:       room,
	}

	f.mu.Lock()
	f.history[room] = append(f.history[room], message)
	var targets []*member
	for member := range f.members {
		if member.room == room {
			targets = append(targets, member)
		}
	}
	f.mu.Unlock()

	for _, target := range targets {
		_ = target.send("receive_room_message", message)
	}
}

func (f *fakeServer) broadcastPresence() {
	f.mu.Lock()
	var roster []domain.PresenceEntry
	var targets []*member
	for member := range f.members {
		roster = append(roster, domain.PresenceEntry{ID: "id-" + member.username, Username: member.username})
		targets = append(targets, member)
	}
	f.mu.Unlock()

	for _, target := range targets {
		_ = target.send("online_users", roster)
	}
}
