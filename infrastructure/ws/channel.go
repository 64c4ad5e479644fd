// Package ws implements the live event channel over a websocket connection.
// It owns at most one connection and passes server payloads through verbatim.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatsync/domain/event"
	"chatsync/errors"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	eventBuffer = 64
)

// liveConn bundles one websocket connection with its shutdown state so a
// replaced connection can be torn down exactly once.
type liveConn struct {
	ws   *websocket.Conn
	done chan struct{}
	once sync.Once
}

func (l *liveConn) stop() {
	l.once.Do(func() {
		close(l.done)
		_ = l.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = l.ws.Close()
	})
}

// Channel dials the chat server's websocket endpoint and exchanges
// envelope-framed events. Open is idempotent by token; Close is
// unconditional and safe to repeat. There is no automatic reconnection.
type Channel struct {
	url string
	log *slog.Logger

	mu    sync.Mutex
	cur   *liveConn
	token string

	events chan event.Inbound
}

func NewChannel(url string, log *slog.Logger) *Channel {
	return &Channel{
		url:    url,
		log:    log,
		events: make(chan event.Inbound, eventBuffer),
	}
}

func (c *Channel) Events() <-chan event.Inbound {
	return c.events
}

// Open dials the endpoint with the session token as a bearer header.
// A second Open with the same token while connected is a no-op; a different
// token first closes the existing connection.
func (c *Channel) Open(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != nil {
		if c.token == token {
			return nil
		}
		c.cur.stop()
		c.cur = nil
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		c.publish(event.ChannelError{Message: err.Error()})
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	live := &liveConn{ws: conn, done: make(chan struct{})}
	c.cur = live
	c.token = token

	go c.readLoop(live)
	go c.pingLoop(live)

	c.publish(event.ChannelUp{})
	return nil
}

// Close releases the current connection. Safe to call when already closed.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return nil
	}
	c.cur.stop()
	c.cur = nil
	c.token = ""
	c.publish(event.ChannelDown{})
	return nil
}

// Emit sends one client command on the channel.
func (c *Channel) Emit(cmd event.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return errors.ErrChannelClosed
	}

	frame, err := encode(cmd)
	if err != nil {
		return err
	}
	_ = c.cur.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.cur.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("emit %s: %w", cmd.Name(), err)
	}
	return nil
}

// readLoop pumps frames from the connection into the events channel until
// the connection dies or is replaced.
func (c *Channel) readLoop(live *liveConn) {
	live.ws.SetReadLimit(maxMessageSize)
	_ = live.ws.SetReadDeadline(time.Now().Add(pongWait))
	live.ws.SetPongHandler(func(string) error {
		return live.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := live.ws.ReadMessage()
		if err != nil {
			c.teardown(live, err)
			return
		}

		ev, err := decode(frame)
		if err != nil {
			c.log.Warn(fmt.Sprintf("Skipping frame: %v", err))
			continue
		}
		c.publish(ev)
	}
}

// pingLoop keeps the connection alive; the read deadline is extended by the
// pong handler in readLoop.
func (c *Channel) pingLoop(live *liveConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-live.done:
			return
		case <-ticker.C:
			err := live.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			if err != nil {
				return
			}
		}
	}
}

// teardown handles a read failure. If the connection was already replaced
// or closed locally the error is expected and stays silent; otherwise it is
// surfaced as a channel error.
func (c *Channel) teardown(live *liveConn, err error) {
	c.mu.Lock()
	local := c.cur != live
	if !local {
		c.cur = nil
		c.token = ""
	}
	c.mu.Unlock()

	live.stop()
	if local {
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.publish(event.ChannelDown{})
		return
	}
	c.log.Warn(fmt.Sprintf("Channel read error: %v", err))
	c.publish(event.ChannelError{Message: err.Error()})
}

func (c *Channel) publish(ev event.Inbound) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn(fmt.Sprintf("Event buffer full, dropping %T", ev))
	}
}
