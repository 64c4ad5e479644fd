package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"chatsync/domain"
	"chatsync/runtime"
)

// renderer is the terminal front of the controller: it turns state
// snapshots into printed lines and slash commands into controller calls.
// It holds no chat state of its own beyond display bookkeeping.
type renderer struct {
	controller *runtime.Controller

	printed    int
	lastNotice string
	lastStatus domain.ConnectionState
}

func newRenderer(controller *runtime.Controller) *renderer {
	return &renderer{controller: controller, lastStatus: domain.Disconnected}
}

func (r *renderer) banner(serverURL string) {
	color.Green.Printf(">>> chatsync connected to %s\n", serverURL)
	fmt.Println("Commands: /login EMAIL PASSWORD | /register USERNAME EMAIL PASSWORD |")
	fmt.Println("          /create | /join CODE | /leave | /who | /logout | /quit")
	if last := r.controller.LastRoom(); last != "" {
		color.Gray.Printf("Last room was %s (use /join %s to return)\n", last, last)
	}
}

// follow prints every state change pushed by the controller loop.
func (r *renderer) follow(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.controller.Updates():
			r.render(r.controller.Snapshot())
		}
	}
}

func (r *renderer) render(state runtime.State) {
	if state.Connection.State != r.lastStatus {
		r.lastStatus = state.Connection.State
		switch state.Connection.State {
		case domain.Connected:
			color.Green.Println("* channel connected")
		case domain.Errored:
			color.Red.Printf("* channel error: %s\n", state.Connection.Reason)
		default:
			color.Gray.Println("* channel disconnected")
		}
	}

	if state.Notice != "" && state.Notice != r.lastNotice {
		color.Yellow.Printf("* %s\n", state.Notice)
	}
	r.lastNotice = state.Notice

	// The stream shrinks on room transitions and on history replacement;
	// start over from the top in that case.
	if len(state.Messages) < r.printed {
		r.printed = 0
	}
	for _, msg := range state.Messages[r.printed:] {
		own := msg.SenderName == state.Session.User.Username
		name := msg.SenderName
		if own {
			name = "you"
		}
		fmt.Printf("%s %s %s\n",
			color.Gray.Sprint(msg.Timestamp.Format(time.TimeOnly)),
			color.Cyan.Sprintf("%s:", name),
			msg.Content,
		)
	}
	r.printed = len(state.Messages)
}

func (r *renderer) handle(line string) {
	if !strings.HasPrefix(line, "/") {
		r.controller.SendMessage(line)
		return
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/login":
		if len(fields) != 3 {
			color.Red.Println("usage: /login EMAIL PASSWORD")
			return
		}
		r.controller.Login(fields[1], fields[2])
	case "/register":
		if len(fields) != 4 {
			color.Red.Println("usage: /register USERNAME EMAIL PASSWORD")
			return
		}
		r.controller.Register(fields[1], fields[2], fields[3])
	case "/create":
		r.controller.CreateRoom()
	case "/join":
		if len(fields) != 2 {
			color.Red.Println("usage: /join CODE")
			return
		}
		r.controller.JoinRoom(fields[1])
	case "/leave":
		r.controller.LeaveRoom()
	case "/who":
		r.who(r.controller.Snapshot())
	case "/logout":
		r.controller.Logout()
	default:
		color.Red.Printf("unknown command %s\n", fields[0])
	}
}

// who renders the presence roster as a table.
func (r *renderer) who(state runtime.State) {
	if len(state.Roster) == 0 {
		color.Gray.Println("nobody online")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Username"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	rows := lo.Map(state.Roster, func(entry domain.PresenceEntry, _ int) []string {
		return []string{entry.ID, entry.Username}
	})
	table.AppendBulk(rows)
	table.Render()
}
