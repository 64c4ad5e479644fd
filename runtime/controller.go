package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chatsync/auth"
	"chatsync/contract"
	"chatsync/domain"
	"chatsync/domain/event"
	"chatsync/errors"
)

const actionBuffer = 64

// Controller owns the whole client state and is the single logical thread
// of the system: user actions, channel events and async completions are
// processed one at a time by Run. Create, join and send are
// acknowledgement-gated; leave is the one optimistic transition, applied
// locally before the server confirms. That asymmetry is deliberate (instant
// responsiveness on leave) and must not be "fixed".
type Controller struct {
	log      *slog.Logger
	sessions contract.SessionRepository
	authAPI  contract.AuthAPI
	history  contract.HistoryAPI
	channel  contract.Channel

	actions chan action
	updates chan struct{}

	// Loop-owned. Never touched outside Run and its handlers.
	state        State
	authInFlight bool
	fetchGen     uint64
	buffered     []domain.Message

	mu        sync.Mutex
	published State
}

func NewController(log *slog.Logger, sessions contract.SessionRepository,
	authAPI contract.AuthAPI, history contract.HistoryAPI, channel contract.Channel) *Controller {
	return &Controller{
		log:      log,
		sessions: sessions,
		authAPI:  authAPI,
		history:  history,
		channel:  channel,
		actions:  make(chan action, actionBuffer),
		updates:  make(chan struct{}, 1),
	}
}

// Run restores the persisted session, opens the channel when one is present
// and processes events until the context is cancelled. It must be called
// exactly once.
func (c *Controller) Run(ctx context.Context) {
	// 1. Seed state from the durable store. A stored token that is plainly
	// expired is treated exactly like no session at all.
	session := c.sessions.Load()
	if session.Present() && !auth.TokenUsable(session.Token, time.Now()) {
		c.log.Info("Discarding expired persisted session")
		_ = c.sessions.Clear()
		session = domain.Session{}
	}
	c.state.Session = session

	// 2. One channel per non-absent session.
	if session.Present() {
		if err := c.channel.Open(ctx, session.Token); err != nil {
			c.log.Warn(fmt.Sprintf("Channel open failed on restore: %v", err))
		}
	}
	c.publish()

	// 3. Serialize everything through this loop.
	events := c.channel.Events()
	for {
		select {
		case <-ctx.Done():
			_ = c.channel.Close()
			return
		case a := <-c.actions:
			c.handleAction(ctx, a)
			c.publish()
		case ev := <-events:
			c.handleEvent(ctx, ev)
			c.publish()
		}
	}
}

// Snapshot returns a copy of the last published state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published.clone()
}

// Updates signals after each processed action or event. The channel is
// coalescing: a pending signal absorbs newer ones.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

func (c *Controller) Login(email, password string)              { c.dispatch(loginAction{email, password}) }
func (c *Controller) Register(username, email, password string) { c.dispatch(registerAction{username, email, password}) }
func (c *Controller) Logout()                                   { c.dispatch(logoutAction{}) }
func (c *Controller) CreateRoom()                               { c.dispatch(createRoomAction{}) }
func (c *Controller) JoinRoom(code string)                      { c.dispatch(joinRoomAction{code}) }
func (c *Controller) LeaveRoom()                                { c.dispatch(leaveRoomAction{}) }
func (c *Controller) SendMessage(text string)                   { c.dispatch(sendMessageAction{text}) }

// LastRoom exposes the persisted room code as a prefill. It is never used
// for automatic rejoin.
func (c *Controller) LastRoom() string {
	return c.sessions.LastRoom()
}

func (c *Controller) dispatch(a action) {
	select {
	case c.actions <- a:
	default:
		c.log.Warn(fmt.Sprintf("Action buffer full, dropping %T", a))
	}
}

func (c *Controller) handleAction(ctx context.Context, a action) {
	switch act := a.(type) {
	case loginAction:
		c.startAuth(ctx, func(ctx context.Context) (domain.Session, error) {
			return c.authAPI.Login(ctx, act.email, act.password)
		})
	case registerAction:
		c.startAuth(ctx, func(ctx context.Context) (domain.Session, error) {
			return c.authAPI.Register(ctx, act.username, act.email, act.password)
		})
	case authResult:
		c.finishAuth(ctx, act)
	case logoutAction:
		c.logout()
	case createRoomAction:
		if err := c.roomOpAllowed(); err != nil {
			c.reject("create room", err)
			return
		}
		if err := c.channel.Emit(event.CreateRoom{}); err != nil {
			c.reject("create room", err)
		}
	case joinRoomAction:
		code := strings.TrimSpace(act.code)
		if code == "" {
			c.reject("join room", errors.ErrEmptyRoomCode)
			return
		}
		if err := c.roomOpAllowed(); err != nil {
			c.reject("join room", err)
			return
		}
		if err := c.channel.Emit(event.JoinRoom{Room: code}); err != nil {
			c.reject("join room", err)
		}
	case leaveRoomAction:
		c.leaveRoom(true)
	case sendMessageAction:
		text := strings.TrimSpace(act.text)
		if text == "" {
			c.reject("send", errors.ErrEmptyMessage)
			return
		}
		if err := c.roomOpAllowed(); err != nil {
			c.reject("send", err)
			return
		}
		if !c.state.Room.InRoom() {
			c.reject("send", errors.ErrNotInRoom)
			return
		}
		// No optimistic append: the message shows up once the server
		// echoes it back.
		if err := c.channel.Emit(event.SendMessage{Message: text, Room: c.state.Room.Code}); err != nil {
			c.reject("send", err)
		}
	case historyResult:
		c.finishFetch(act)
	}
}

func (c *Controller) handleEvent(ctx context.Context, ev event.Inbound) {
	switch e := ev.(type) {
	case event.ChannelUp:
		c.state.Connection = domain.ConnectionStatus{State: domain.Connected}
		c.state.ChannelError = ""
		c.state.Notice = "Connected"
	case event.ChannelDown:
		c.state.Connection = domain.ConnectionStatus{State: domain.Disconnected}
	case event.ChannelError:
		c.state.Connection = domain.ConnectionStatus{State: domain.Errored, Reason: e.Message}
		c.state.ChannelError = e.Message
	case event.RoomCreated:
		c.enterRoom(ctx, e.Room, false)
	case event.RoomJoined:
		c.enterRoom(ctx, e.Room, true)
	case event.RoomLeft:
		// Server-side eviction produces the same reset as a local leave,
		// minus the emit.
		c.leaveRoom(false)
	case event.MessageReceived:
		c.appendMessage(e.Message)
	case event.PresenceUpdated:
		// Replacement snapshot, no diffing.
		c.state.Roster = e.Users
	}
}

// startAuth launches a single authentication attempt off-loop. Its
// completion re-enters the loop as an authResult.
func (c *Controller) startAuth(ctx context.Context, call func(context.Context) (domain.Session, error)) {
	if c.authInFlight {
		c.log.Info("Ignoring auth action, another attempt is in flight")
		return
	}
	c.authInFlight = true
	c.state.Notice = "Please wait..."

	go func() {
		session, err := call(ctx)
		c.complete(authResult{session: session, err: err})
	}()
}

func (c *Controller) finishAuth(ctx context.Context, res authResult) {
	c.authInFlight = false
	if res.err != nil {
		// AuthRejected messages are shown verbatim; anything else gets a
		// generic line.
		c.state.Notice = res.err.Error()
		c.log.Info(fmt.Sprintf("Authentication failed: %v", res.err))
		return
	}

	c.state.Session = res.session
	c.state.Notice = ""
	if err := c.sessions.Save(res.session); err != nil {
		c.log.Error(fmt.Sprintf("Persisting session failed: %v", err))
	}

	// Session changed: the channel is keyed on the token.
	if err := c.channel.Open(ctx, res.session.Token); err != nil {
		c.log.Warn(fmt.Sprintf("Channel open failed: %v", err))
	}
}

// logout destroys the session and resets every piece of derived state,
// regardless of what was going on.
func (c *Controller) logout() {
	_ = c.channel.Close()
	if err := c.sessions.Clear(); err != nil {
		c.log.Error(fmt.Sprintf("Clearing session failed: %v", err))
	}
	c.state.Session = domain.Session{}
	c.state.Connection = domain.ConnectionStatus{State: domain.Disconnected}
	c.resetRoom()
	c.state.Roster = nil
	c.state.Notice = ""
	c.state.ChannelError = ""
}

// enterRoom applies a room_created or room_joined acknowledgement. Both are
// acknowledgement-gated: nothing changed locally when the request was sent.
func (c *Controller) enterRoom(ctx context.Context, code string, withHistory bool) {
	c.state.Room = domain.RoomState{Code: code}
	c.resetStream()
	c.state.Notice = ""
	if err := c.sessions.SaveLastRoom(code); err != nil {
		c.log.Warn(fmt.Sprintf("Persisting room code failed: %v", err))
	}
	if withHistory {
		c.startFetch(ctx, code)
	}
}

// leaveRoom resets to the initial NoRoom state. When requested is true the
// reset is optimistic and the leave_room request goes out afterwards.
func (c *Controller) leaveRoom(requested bool) {
	if requested && !c.state.Room.InRoom() {
		return
	}
	c.resetRoom()
	c.state.Notice = "You left the room"
	if !requested {
		return
	}
	if err := c.channel.Emit(event.LeaveRoom{}); err != nil {
		c.log.Warn(fmt.Sprintf("Leave request failed: %v", err))
	}
}

// appendMessage applies room-code filtering before appending: a tagged
// message from another room (e.g. arriving during a leave transition) is
// dropped; untagged messages are accepted while in a room for compatibility
// with servers that do not tag echoes.
func (c *Controller) appendMessage(msg domain.Message) {
	if !c.state.Room.InRoom() {
		c.log.Debug("Dropping message received outside any room")
		return
	}
	if msg.Room != "" && msg.Room != c.state.Room.Code {
		c.log.Debug(fmt.Sprintf("Dropping message tagged for room %s", msg.Room))
		return
	}
	c.state.Messages = append(c.state.Messages, msg)
	if c.state.LoadingHistory {
		// Live arrivals during the fetch window take part in the merge.
		c.buffered = append(c.buffered, msg)
	}
}

// startFetch launches the history fetch for a freshly joined room. The
// result is tagged so a completion for a stale room or generation can be
// recognized and discarded.
func (c *Controller) startFetch(ctx context.Context, room string) {
	c.fetchGen++
	gen := c.fetchGen
	token := c.state.Session.Token
	c.state.LoadingHistory = true
	c.buffered = nil

	go func() {
		messages, err := c.history.Fetch(ctx, room, token)
		c.complete(historyResult{room: room, gen: gen, messages: messages, err: err})
	}()
}

func (c *Controller) finishFetch(res historyResult) {
	if res.gen != c.fetchGen || res.room != c.state.Room.Code {
		c.log.Debug(fmt.Sprintf("Discarding stale history fetch for room %s", res.room))
		return
	}
	c.state.LoadingHistory = false

	if res.err != nil {
		// Stream untouched on failure, only a notice.
		c.buffered = nil
		c.state.Notice = "Failed to load messages"
		c.log.Warn(fmt.Sprintf("History fetch failed: %v", res.err))
		return
	}

	c.state.Messages = mergeHistory(res.messages, c.buffered)
	c.buffered = nil
}

func (c *Controller) resetStream() {
	c.state.Messages = nil
	c.buffered = nil
	c.state.LoadingHistory = false
	c.fetchGen++ // invalidates any in-flight fetch
}

func (c *Controller) resetRoom() {
	c.state.Room = domain.RoomState{}
	c.resetStream()
	if err := c.sessions.ClearLastRoom(); err != nil {
		c.log.Warn(fmt.Sprintf("Clearing room code failed: %v", err))
	}
}

// roomOpAllowed enforces the invariant that no room operation is valid
// while the session is absent or the channel is not connected.
func (c *Controller) roomOpAllowed() error {
	if !c.state.Session.Present() {
		return errors.ErrNotAuthenticated
	}
	if c.state.Connection.State != domain.Connected {
		return errors.ErrNotConnected
	}
	return nil
}

func (c *Controller) reject(op string, err error) {
	c.state.Notice = err.Error()
	c.log.Info(fmt.Sprintf("Rejected %s: %v", op, err))
}

// complete feeds an async completion back into the loop. Unlike dispatch it
// blocks: completions are never dropped.
func (c *Controller) complete(a action) {
	c.actions <- a
}

func (c *Controller) publish() {
	c.mu.Lock()
	c.published = c.state.clone()
	c.mu.Unlock()

	select {
	case c.updates <- struct{}{}:
	default:
	}
}
