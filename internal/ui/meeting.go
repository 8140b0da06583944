package ui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/huddlemesh/huddle/internal/admission"
	"github.com/huddlemesh/huddle/internal/room"
)

type snapshotMsg room.Snapshot

type sessionDoneMsg struct{}

// meetingModel is the Bubble Tea model for a live meeting: it consumes
// view snapshots from the session and translates key presses into
// session actions.
type meetingModel struct {
	session  *room.Session
	snap     room.Snapshot
	haveSnap bool
	spinner  spinner.Model
	quitting bool
}

func newMeetingModel(session *room.Session) *meetingModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &meetingModel{session: session, spinner: s}
}

// RunMeeting drives the meeting UI until the user leaves or the
// session ends. Inline mode keeps prior terminal output visible.
func RunMeeting(session *room.Session) error {
	program := tea.NewProgram(newMeetingModel(session))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("meeting ui: %w", err)
	}
	return nil
}

func (m *meetingModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForUpdates())
}

func (m *meetingModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		select {
		case snap := <-m.session.Updates():
			return snapshotMsg(snap)
		case <-m.session.Done():
			return sessionDoneMsg{}
		}
	}
}

func (m *meetingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case snapshotMsg:
		m.snap = room.Snapshot(msg)
		m.haveSnap = true
		return m, m.listenForUpdates()
	case sessionDoneMsg:
		m.quitting = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *meetingModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.session.Leave()
		return m, tea.Quit
	case "m":
		m.act("toggle audio", m.session.ToggleAudio)
	case "v":
		m.act("toggle video", m.session.ToggleVideo)
	case "s":
		m.act("toggle screen share", func() error {
			return m.session.ToggleScreenShare(context.Background())
		})
	case "h":
		raised := m.snap.Self.RaisedHand
		m.act("raise hand", func() error { return m.session.RaiseHand(!raised) })
	case "p":
		m.act("pin", m.togglePin)
	case "o":
		m.act("toggle spotlight", m.session.ToggleSpotlight)
	case "c":
		m.act("toggle chat", func() error { return m.session.TogglePanel(room.PanelChat) })
	case "a":
		if len(m.snap.PendingRequests) > 0 {
			id := m.snap.PendingRequests[0].ParticipantID
			m.act("approve", func() error { return m.session.Approve(id) })
		}
	case "x":
		if len(m.snap.PendingRequests) > 0 {
			id := m.snap.PendingRequests[0].ParticipantID
			m.act("reject", func() error { return m.session.Reject(id) })
		}
	}
	return m, nil
}

// togglePin pins the first remote stream, or unpins whatever is pinned.
func (m *meetingModel) togglePin() error {
	if m.snap.PinnedID != "" {
		return m.session.Pin(m.snap.PinnedID)
	}
	if len(m.snap.Participants) > 0 {
		return m.session.Pin(m.snap.Participants[0].ID)
	}
	return nil
}

// act runs a session action off the UI goroutine; actions block until
// the session loop has applied them.
func (m *meetingModel) act(name string, fn func() error) {
	go func() {
		if err := fn(); err != nil {
			slog.Warn("Action failed", "action", name, "error", err)
		}
	}()
}

func (m *meetingModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.haveSnap {
		return fmt.Sprintf("%s Connecting…\n", m.spinner.View())
	}

	if m.snap.Admission == admission.PendingApproval {
		return fmt.Sprintf("%s Waiting for the host to let you in…\n", m.spinner.View())
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s Room %s", IconRoom, m.snap.RoomID)))
	b.WriteString("\n")
	b.WriteString(RosterView(m.snap))
	b.WriteString("\n")

	if waiting := WaitingRoomView(m.snap); waiting != "" {
		b.WriteString(waiting)
		b.WriteString("\n")
	}
	if m.snap.Panels.Chat {
		b.WriteString(ChatView(m.snap, 8))
		b.WriteString("\n")
	}

	help := "m mic · v cam · s screen · h hand · p pin · o spotlight · c chat · a/x admit/reject · q leave"
	b.WriteString(FooterStyle.Render(help))
	b.WriteString("\n")
	return b.String()
}
