package ui

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// SessionSummary holds the figures shown after leaving a room.
type SessionSummary struct {
	Room             string
	Duration         time.Duration
	PeersSeen        int
	MessagesSent     int
	MessagesReceived int
}

// RenderSessionSummary prints the end-of-session table.
func RenderSessionSummary(s SessionSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Room", s.Room},
		{"Duration", s.Duration.Round(time.Second).String()},
		{"Peers seen", fmt.Sprintf("%d", s.PeersSeen)},
		{"Messages sent", fmt.Sprintf("%d", s.MessagesSent)},
		{"Messages received", fmt.Sprintf("%d", s.MessagesReceived)},
	})
	t.Render()
}
