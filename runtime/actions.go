package runtime

import "chatsync/domain"

// action is a unit of work serialized through the controller loop: user
// intents and completions of asynchronous calls. The interface is sealed.
type action interface {
	isAction()
}

type loginAction struct {
	email, password string
}

type registerAction struct {
	username, email, password string
}

type logoutAction struct{}

type createRoomAction struct{}

type joinRoomAction struct {
	code string
}

type leaveRoomAction struct{}

type sendMessageAction struct {
	text string
}

// authResult is the completion of a login or register call.
type authResult struct {
	session domain.Session
	err     error
}

// historyResult is the completion of a history fetch, tagged with the room
// and generation it was issued for so stale results can be discarded.
type historyResult struct {
	room     string
	gen      uint64
	messages []domain.Message
	err      error
}

func (loginAction) isAction()       {}
func (registerAction) isAction()    {}
func (logoutAction) isAction()      {}
func (createRoomAction) isAction()  {}
func (joinRoomAction) isAction()    {}
func (leaveRoomAction) isAction()   {}
func (sendMessageAction) isAction() {}
func (authResult) isAction()        {}
func (historyResult) isAction()     {}
