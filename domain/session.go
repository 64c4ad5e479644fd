// Package domain contains core concepts of the chat synchronization layer.
// This file defines the authenticated Session and its rules.
// Token and user are always present together or absent together.
package domain

// User identifies an authenticated account as reported by the identity service.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Session is the authenticated state of the client. A zero Session means
// "not logged in". It is persisted on every change and destroyed on logout.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Present reports whether the session carries credentials.
// The token/user both-or-neither invariant is enforced here: a session
// with only one of the two is treated as absent.
func (s Session) Present() bool {
	return s.Token != "" && s.User.Username != ""
}

// Credentials is the ephemeral input for login and register.
// It is never retained after the request is submitted.
type Credentials struct {
	Username string `validate:"omitempty,min=2,max=32"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,max=72"`
}
