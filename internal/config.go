package internal

import (
	"fmt"
	"strings"
)

// Config defines the client environment variables.
type Config struct {
	// ServerURL is the HTTP base of the chat service, e.g. http://localhost:3001.
	ServerURL string `env:"CHAT_SERVER_URL,default=http://localhost:3001"`
	// ChannelURL is the websocket endpoint. Derived from ServerURL when empty.
	ChannelURL     string `env:"CHAT_CHANNEL_URL"`
	BadgerFilepath string `env:"BADGER_FILEPATH,default=.chatsync"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
}

// ResolveChannelURL returns the websocket endpoint, deriving ws(s)://.../ws
// from the server URL when none is configured explicitly.
func (c Config) ResolveChannelURL() (string, error) {
	if c.ChannelURL != "" {
		return c.ChannelURL, nil
	}
	switch {
	case strings.HasPrefix(c.ServerURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.ServerURL, "http://") + "/ws", nil
	case strings.HasPrefix(c.ServerURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.ServerURL, "https://") + "/ws", nil
	default:
		return "", fmt.Errorf("CHAT_SERVER_URL must start with http:// or https://, got %q", c.ServerURL)
	}
}
