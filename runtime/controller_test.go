package runtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"chatsync/domain"
	"chatsync/domain/event"
	chaterrors "chatsync/errors"
	"chatsync/mocks"
)

type fixture struct {
	controller *Controller
	authAPI    *mocks.MockAuthAPI
	history    *mocks.MockHistoryAPI
	channel    *mocks.MockChannel
	sessions   *mocks.MockSessionRepository
	events     chan event.Inbound
}

// newFixture starts a controller loop against mocks. The stored session is
// what the repository reports at startup; expectations beyond the startup
// sequence are declared by each test before it acts.
func newFixture(t *testing.T, stored domain.Session) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		authAPI:  mocks.NewMockAuthAPI(ctrl),
		history:  mocks.NewMockHistoryAPI(ctrl),
		channel:  mocks.NewMockChannel(ctrl),
		sessions: mocks.NewMockSessionRepository(ctrl),
		events:   make(chan event.Inbound, 16),
	}

	f.channel.EXPECT().Events().Return((<-chan event.Inbound)(f.events)).AnyTimes()
	f.channel.EXPECT().Close().Return(nil).AnyTimes()
	f.sessions.EXPECT().Load().Return(stored).Times(1)
	if stored.Present() {
		f.channel.EXPECT().Open(gomock.Any(), stored.Token).Return(nil).Times(1)
	}

	f.controller = NewController(logs.GetLoggerFromLevel(slog.LevelError),
		f.sessions, f.authAPI, f.history, f.channel)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.controller.Run(ctx)

	return f
}

func (f *fixture) wait(t *testing.T, cond func(State) bool) State {
	t.Helper()
	var last State
	require.Eventually(t, func() bool {
		last = f.controller.Snapshot()
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func (f *fixture) connect(t *testing.T) {
	t.Helper()
	f.events <- event.ChannelUp{}
	f.wait(t, func(s State) bool { return s.Connection.State == domain.Connected })
}

func storedSession() domain.Session {
	return domain.Session{Token: "T1", User: domain.User{ID: "u-1", Username: "alice"}}
}

func TestController_RestoresPersistedSession(t *testing.T) {
	f := newFixture(t, storedSession())

	state := f.wait(t, func(s State) bool { return s.Session.Present() })
	require.Equal(t, "alice", state.Session.User.Username)

	f.connect(t)
}

func TestController_DiscardsExpiredStoredToken(t *testing.T) {
	req := require.New(t)
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	req.NoError(err)

	ctrl := gomock.NewController(t)
	authAPI := mocks.NewMockAuthAPI(ctrl)
	history := mocks.NewMockHistoryAPI(ctrl)
	channel := mocks.NewMockChannel(ctrl)
	sessions := mocks.NewMockSessionRepository(ctrl)

	events := make(chan event.Inbound)
	channel.EXPECT().Events().Return((<-chan event.Inbound)(events)).AnyTimes()
	channel.EXPECT().Close().Return(nil).AnyTimes()
	sessions.EXPECT().Load().Return(domain.Session{Token: expired, User: domain.User{Username: "alice"}})
	// The expired record is wiped and no channel is opened.
	sessions.EXPECT().Clear().Return(nil).Times(1)

	controller := NewController(logs.GetLoggerFromLevel(slog.LevelError), sessions, authAPI, history, channel)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go controller.Run(ctx)

	// Run publishes once after the seed phase; wait for that signal so the
	// Load/Clear calls above have happened before the test finishes.
	select {
	case <-controller.Updates():
	case <-time.After(2 * time.Second):
		t.Fatal("controller never published its initial state")
	}

	require.Eventually(t, func() bool {
		return !controller.Snapshot().Session.Present()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestController_Register(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, domain.Session{})

	session := storedSession()
	f.authAPI.EXPECT().
		Register(gomock.Any(), "alice", "alice@x.com", "pw").
		Return(session, nil).
		Times(1)
	// Session must be persisted exactly as returned.
	f.sessions.EXPECT().Save(session).Return(nil).Times(1)
	f.channel.EXPECT().Open(gomock.Any(), "T1").Return(nil).Times(1)

	f.controller.Register("alice", "alice@x.com", "pw")

	state := f.wait(t, func(s State) bool { return s.Session.Present() })
	req.Equal(session, state.Session)
	req.Empty(state.Notice)
}

func TestController_LoginRejected(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, domain.Session{})

	f.authAPI.EXPECT().
		Login(gomock.Any(), "alice@x.com", "bad").
		Return(domain.Session{}, &chaterrors.AuthRejected{Message: "Wrong password"}).
		Times(1)

	f.controller.Login("alice@x.com", "bad")

	state := f.wait(t, func(s State) bool { return s.Notice != "" && s.Notice != "Please wait..." })
	req.Contains(state.Notice, "Wrong password")
	req.False(state.Session.Present())
}

func TestController_Logout(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, storedSession())
	f.connect(t)

	f.channel.EXPECT().Emit(event.CreateRoom{}).Return(nil).Times(1)
	f.sessions.EXPECT().SaveLastRoom("AB12").Return(nil).Times(1)
	f.controller.CreateRoom()
	f.events <- event.RoomCreated{Room: "AB12"}
	f.events <- event.MessageReceived{Message: msg("bob", "hi", time.Now())}
	f.events <- event.PresenceUpdated{Users: []domain.PresenceEntry{{ID: "u-2", Username: "bob"}}}
	f.wait(t, func(s State) bool { return len(s.Messages) == 1 && len(s.Roster) == 1 })

	f.sessions.EXPECT().Clear().Return(nil).Times(1)
	f.sessions.EXPECT().ClearLastRoom().Return(nil).Times(1)
	f.controller.Logout()

	state := f.wait(t, func(s State) bool { return !s.Session.Present() })
	req.False(state.Room.InRoom())
	req.Empty(state.Messages)
	req.Empty(state.Roster)
	req.Equal(domain.Disconnected, state.Connection.State)
}

func TestController_CreateRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, storedSession())
	f.connect(t)

	f.channel.EXPECT().Emit(event.CreateRoom{}).Return(nil).Times(1)
	f.controller.CreateRoom()

	// Acknowledgement-gated: nothing changes until the server confirms.
	require.Never(t, func() bool {
		return f.controller.Snapshot().Room.InRoom()
	}, 100*time.Millisecond, 10*time.Millisecond)

	f.sessions.EXPECT().SaveLastRoom("AB12").Return(nil).Times(1)
	f.events <- event.RoomCreated{Room: "AB12"}

	state := f.wait(t, func(s State) bool { return s.Room.Code == "AB12" })
	req.Empty(state.Messages)
}

func TestController_RoomOpsRequireConnection(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, storedSession())
	// No ChannelUp: session present but channel not connected. Any Emit
	// would be an unexpected mock call.

	f.controller.CreateRoom()
	state := f.wait(t, func(s State) bool { return s.Notice != "" })
	req.Equal(chaterrors.ErrNotConnected.Error(), state.Notice)
}

func TestController_RoomOpsRequireSession(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, domain.Session{})

	f.controller.JoinRoom("ZZ99")
	state := f.wait(t, func(s State) bool { return s.Notice != "" })
	req.Equal(chaterrors.ErrNotAuthenticated.Error(), state.Notice)
}

func TestController_JoinRequiresCode(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, storedSession())
	f.connect(t)

	f.controller.JoinRoom("   ")
	state := f.wait(t, func(s State) bool { return s.Notice != "" && s.Notice != "Connected" })
	req.Equal(chaterrors.ErrEmptyRoomCode.Error(), state.Notice)
}

func TestController_JoinFetchesHistory(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, storedSession())
	f.connect(t)

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	m1 := msg("alice", "one", base)
	m2 := msg("bob", "two", base.Add(time.Second))

	f.channel.EXPECT().Emit(event.JoinRoom{Room: "ZZ99"}).Return(nil).Times(1)
	f.sessions.EXPECT().SaveLastRoom("ZZ99").Return(nil).Times(1)
	f.history.EXPECT().
		Fetch(gomock.Any(), "ZZ99", "T1").
		Return([]domain.Message{m1, m2}, nil).
		Times(1)

	f.controller.JoinRoom("ZZ99")
	f.events <- event.RoomJoined{Room: "ZZ99"}

	state := f.wait(t, func(s State) bool { return len(s.Messages) == 2 && !s.LoadingHistory })
	req.Equal("ZZ99", state.Room.Code)
	req.Equal([]domain.Message{m1, m2}, state.Messages)
}

func TestController_HistoryLiveMerge(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, storedSession())
	f.connect(t)

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	h1 := msg("alice", "old", base)
	live1 := msg("bob", "during-fetch-1", base.Add(time.Minute))
	live2 := msg("carol", "during-fetch-2", base.Add(2*time.Minute))

	release := make(chan struct{})
	f.channel.EXPECT().Emit(event.JoinRoom{Room: "ZZ99"}).Return(nil).Times(1)
	f.sessions.EXPECT().SaveLastRoom("ZZ99").Return(nil).Times(1)
	f.history.EXPECT().
		Fetch(gomock.Any(), "ZZ99", "T1").
		DoAndReturn(func(context.Context, string, string) ([]domain.Message, error) {
			<-release
			// live1 also made it into the fetched history.
			return []domain.Message{h1, live1}, nil
		}).
		Times(1)

	f.controller.JoinRoom("ZZ99")
	f.events <- event.RoomJoined{Room: "ZZ99"}

	// Live messages during the fetch window are visible immediately.
	f.events <- event.MessageReceived{Message: live1}
	f.events <- event.MessageReceived{Message: live2}
	f.wait(t, func(s State) bool { return len(s.Messages) == 2 && s.LoadingHistory })

	close(release)

	// No message lost, none duplicated.
	state := f.wait(t, func(s State) bool { return !s.LoadingHistory })
	req.Equal([]domain.Message{h1, live1, live2}, state.Messages)
}

func TestController_HistoryFailureLeavesStream(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, storedSession())
	f.connect(t)

	live := msg("bob", "live", time.Now())

	release := make(chan struct{})
	f.channel.EXPECT().Emit(event.JoinRoom{Room: "ZZ99"}).Return(nil).Times(1)
	f.sessions.EXPECT().SaveLastRoom("ZZ99").Return(nil).Times(1)
	f.history.EXPECT().
		Fetch(gomock.Any(), "ZZ99", "T1").
		DoAndReturn(func(context.Context, string, string) ([]domain.Message, error) {
			<-release
			return nil, chaterrors.ErrHistoryUnavailable
		}).
		Times(1)

	f.controller.JoinRoom("ZZ99")
	f.events <- event.RoomJoined{Room: "ZZ99"}
	f.events <- event.MessageReceived{Message: live}
	f.wait(t, func(s State) bool { return len(s.Messages) == 1 })

	close(release)

	state := f.wait(t, func(s State) bool { return !s.LoadingHistory })
	req.Equal("Failed to load messages", state.Notice)
	req.Equal([]domain.Message{live}, state.Messages)
}

func TestController_StaleFetchDiscarded(t *testing.T) {
	f := newFixture(t, storedSession())
	f.connect(t)

	release := make(chan struct{})
	f.channel.EXPECT().Emit(event.JoinRoom{Room: "ZZ99"}).Return(nil).Times(1)
	f.sessions.EXPECT().SaveLastRoom("ZZ99").Return(nil).Times(1)
	f.history.EXPECT().
		Fetch(gomock.Any(), "ZZ99", "T1").
		DoAndReturn(func(context.Context, string, string) ([]domain.Message, error) {
			<-release
			return []domain.Message{msg("alice", "stale", time.Now())}, nil
		}).
		Times(1)

	f.controller.JoinRoom("ZZ99")
	f.events <- event.RoomJoined{Room: "ZZ99"}
	f.wait(t, func(s State) bool { return s.Room.Code == "ZZ99" })

	// Leave before the fetch resolves.
	f.channel.EXPECT().Emit(event.LeaveRoom{}).Return(nil).Times(1)
	f.sessions.EXPECT().ClearLastRoom().Return(nil).Times(1)
	f.controller.LeaveRoom()
	f.wait(t, func(s State) bool { return !s.Room.InRoom() })

	close(release)

	// The stale result must never be applied.
	require.Never(t, func() bool {
		return len(f.controller.Snapshot().Messages) > 0
	}, 200*time.Millisecond, 10*time.Millisecond)
}

func TestController_OptimisticLeave(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, storedSession())
	f.connect(t)

	f.channel.EXPECT().Emit(event.CreateRoom{}).Return(nil).Times(1)
	f.sessions.EXPECT().SaveLastRoom("AB12").Return(nil).Times(1)
	f.controller.CreateRoom()
	f.events <- event.RoomCreated{Room: "AB12"}
	f.events <- event.MessageReceived{Message: msg("bob", "hi", time.Now())}
	f.wait(t, func(s State) bool { return len(s.Messages) == 1 })

	// The reset applies before any room_left acknowledgement arrives.
	f.channel.EXPECT().Emit(event.LeaveRoom{}).Return(nil).Times(1)
	f.sessions.EXPECT().ClearLastRoom().Return(nil).MinTimes(1)
	f.controller.LeaveRoom()

	state := f.wait(t, func(s State) bool { return !s.Room.InRoom() })
	req.Empty(state.Messages)
	req.Equal("You left the room", state.Notice)

	// The late server event produces the identical state.
	f.events <- event.RoomLeft{}
	state = f.wait(t, func(s State) bool { return s.Notice == "You left the room" })
	req.False(state.Room.InRoom())
	req.Empty(state.Messages)
}

func TestController_ServerInitiatedLeave(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, storedSession())
	f.connect(t)

	f.channel.EXPECT().Emit(event.CreateRoom{}).Return(nil).Times(1)
	f.sessions.EXPECT().SaveLastRoom("AB12").Return(nil).Times(1)
	f.controller.CreateRoom()
	f.events <- event.RoomCreated{Room: "AB12"}
	f.events <- event.MessageReceived{Message: msg("bob", "hi", time.Now())}
	f.wait(t, func(s State) bool { return len(s.Messages) == 1 })

	// Eviction without any local request: same reset, no leave_room emit.
	f.sessions.EXPECT().ClearLastRoom().Return(nil).Times(1)
	f.events <- event.RoomLeft{}

	state := f.wait(t, func(s State) bool { return !s.Room.InRoom() })
	req.Empty(state.Messages)
	req.Equal("You left the room", state.Notice)
}

func TestController_SendMessage(t *testing.T) {
	f := newFixture(t, storedSession())
	f.connect(t)

	f.channel.EXPECT().Emit(event.CreateRoom{}).Return(nil).Times(1)
	f.sessions.EXPECT().SaveLastRoom("AB12").Return(nil).Times(1)
	f.controller.CreateRoom()
	f.events <- event.RoomCreated{Room: "AB12"}
	f.wait(t, func(s State) bool { return s.Room.InRoom() })

	sent := make(chan struct{})
	f.channel.EXPECT().
		Emit(event.SendMessage{Message: "hello", Room: "AB12"}).
		Do(func(event.Outbound) { close(sent) }).
		Return(nil).
		Times(1)

	f.controller.SendMessage("  hello  ")
	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("send was not emitted")
	}

	// No optimistic append.
	require.Never(t, func() bool {
		return len(f.controller.Snapshot().Messages) > 0
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestController_SendRejectsBlankText(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, storedSession())
	f.connect(t)

	f.controller.SendMessage("   ")
	state := f.wait(t, func(s State) bool { return s.Notice != "" && s.Notice != "Connected" })
	req.Equal(chaterrors.ErrEmptyMessage.Error(), state.Notice)
}

func TestController_MessageFiltering(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, storedSession())
	f.connect(t)

	// Outside any room, nothing is appended.
	f.events <- event.MessageReceived{Message: msg("bob", "ghost", time.Now())}
	require.Never(t, func() bool {
		return len(f.controller.Snapshot().Messages) > 0
	}, 100*time.Millisecond, 10*time.Millisecond)

	f.channel.EXPECT().Emit(event.CreateRoom{}).Return(nil).Times(1)
	f.sessions.EXPECT().SaveLastRoom("AB12").Return(nil).Times(1)
	f.controller.CreateRoom()
	f.events <- event.RoomCreated{Room: "AB12"}
	f.wait(t, func(s State) bool { return s.Room.InRoom() })

	tagged := msg("bob", "mine", time.Now())
	tagged.Room = "AB12"
	foreign := msg("bob", "not-mine", time.Now())
	foreign.Room = "ZZ99"
	untagged := msg("bob", "legacy", time.Now())

	f.events <- event.MessageReceived{Message: foreign}
	f.events <- event.MessageReceived{Message: tagged}
	f.events <- event.MessageReceived{Message: untagged}

	state := f.wait(t, func(s State) bool { return len(s.Messages) == 2 })
	req.Equal("mine", state.Messages[0].Content)
	req.Equal("legacy", state.Messages[1].Content)
}

func TestController_PresenceReplacement(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, storedSession())
	f.connect(t)

	roster := []domain.PresenceEntry{{ID: "u-1", Username: "alice"}, {ID: "u-2", Username: "bob"}}
	f.events <- event.PresenceUpdated{Users: roster}
	f.events <- event.PresenceUpdated{Users: roster}

	// Idempotent: applying the same roster twice equals applying it once.
	state := f.wait(t, func(s State) bool { return len(s.Roster) == 2 })
	req.Equal(roster, state.Roster)

	// Replacement, not a delta.
	f.events <- event.PresenceUpdated{Users: []domain.PresenceEntry{{ID: "u-2", Username: "bob"}}}
	state = f.wait(t, func(s State) bool { return len(s.Roster) == 1 })
	req.Equal("bob", state.Roster[0].Username)
}

func TestController_ChannelErrorBanner(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, storedSession())
	f.connect(t)

	f.events <- event.ChannelError{Message: "Invalid token"}
	state := f.wait(t, func(s State) bool { return s.Connection.State == domain.Errored })
	req.Equal("Invalid token", state.ChannelError)

	// The banner clears only when the channel comes back up.
	f.events <- event.ChannelUp{}
	state = f.wait(t, func(s State) bool { return s.Connection.State == domain.Connected })
	req.Empty(state.ChannelError)
}
