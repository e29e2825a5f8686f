package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/huddlechat/huddle/internal/session"
)

const maxVisibleLines = 200

// ChatStats is what the chat session tallies for the exit summary.
type ChatStats struct {
	MessagesSent     int
	MessagesReceived int
	PeersSeen        int
}

type eventMsg session.Event

type streamClosedMsg struct{}

// ChatModel is the bubbletea model for the in-room chat view. It consumes
// the controller's event stream and broadcasts typed lines over the mesh.
type ChatModel struct {
	room    string
	localID string

	events <-chan session.Event
	send   func(text string) int

	input   textinput.Model
	spinner spinner.Model

	lines  []string
	status string
	peers  map[string]struct{}
	seen   map[string]struct{}
	stats  ChatStats

	quitting bool
}

// NewChatModel builds the chat view. send is the broadcast function and
// must return the number of peers reached.
func NewChatModel(room string, events <-chan session.Event, send func(string) int) *ChatModel {
	input := textinput.New()
	input.Placeholder = "Type a message and press enter"
	input.CharLimit = 512
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	return &ChatModel{
		room:    room,
		events:  events,
		send:    send,
		input:   input,
		spinner: sp,
		status:  "Connecting to peers...",
		peers:   make(map[string]struct{}),
		seen:    make(map[string]struct{}),
	}
}

// Stats returns the session tallies; read it after the program finishes.
func (m *ChatModel) Stats() ChatStats {
	m.stats.PeersSeen = len(m.seen)
	return m.stats
}

func (m *ChatModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.nextEvent())
}

func (m *ChatModel) nextEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			m.submit()
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.apply(session.Event(msg))
		return m, m.nextEvent()

	case streamClosedMsg:
		m.quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *ChatModel) submit() {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return
	}
	m.input.Reset()

	sent := m.send(text)
	m.appendLine(SelfStyle.Render("You: ") + text)
	if sent == 0 {
		m.status = "No open data channels — waiting for peers to connect"
		return
	}
	m.status = fmt.Sprintf("Message sent to %d peer(s)", sent)
	m.stats.MessagesSent++
}

func (m *ChatModel) apply(ev session.Event) {
	switch ev.Kind {
	case session.EventJoined:
		m.localID = ev.PeerID
		m.status = fmt.Sprintf("Joined room: %s (you: %s)", m.room, shortID(ev.PeerID))

	case session.EventPeerUp:
		m.peers[ev.PeerID] = struct{}{}
		m.seen[ev.PeerID] = struct{}{}
		m.status = "Data channel open with " + shortID(ev.PeerID)
		m.appendLine(MutedStyle.Render(fmt.Sprintf("%s %s connected", IconPeer, shortID(ev.PeerID))))

	case session.EventPeerDown:
		delete(m.peers, ev.PeerID)
		m.status = "Peer left: " + shortID(ev.PeerID)
		m.appendLine(MutedStyle.Render(fmt.Sprintf("%s %s left", IconPeer, shortID(ev.PeerID))))

	case session.EventChat:
		m.stats.MessagesReceived++
		m.appendLine(PeerStyle.Render(shortID(ev.PeerID)+": ") + ev.Text)

	case session.EventStatus:
		m.status = ev.Text

	case session.EventDisconnected:
		m.status = "Signaling disconnected"
		m.quitting = true
	}
}

func (m *ChatModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxVisibleLines {
		m.lines = m.lines[len(m.lines)-maxVisibleLines:]
	}
}

func (m *ChatModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s %s %s\n\n",
		IconRoom,
		TitleStyle.Render("Room "+m.room),
		MutedStyle.Render(fmt.Sprintf("%d peer(s) connected", len(m.peers)))))

	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.lines) == 0 {
		b.WriteString(MutedStyle.Render(fmt.Sprintf("%s No messages yet", IconChat)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if len(m.peers) == 0 {
		b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), MutedStyle.Render(m.status)))
	} else {
		b.WriteString(MutedStyle.Render(m.status) + "\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n" + MutedStyle.Render("Press esc to leave the room"))

	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RunChat runs the chat TUI until the user leaves or the session ends and
// returns the session tallies.
func RunChat(room string, events <-chan session.Event, send func(string) int) (ChatStats, error) {
	model := NewChatModel(room, events, send)
	program := tea.NewProgram(model)

	final, err := program.Run()
	if err != nil {
		return ChatStats{}, err
	}
	if m, ok := final.(*ChatModel); ok {
		return m.Stats(), nil
	}
	return model.Stats(), nil
}
