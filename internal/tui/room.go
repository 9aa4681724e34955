package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dkeye/DriveChat/internal/app"
	"github.com/dkeye/DriveChat/internal/core"
	"github.com/dkeye/DriveChat/internal/domain"
)

const (
	cmdLeave  = "/leave"
	cmdReturn = "/return"
)

func (m Model) updateRoom(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Leave):
		return m.reset()

	case key.Matches(msg, m.keys.PageUp):
		m.log.LineUp(max(m.log.Height/2, 1))
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.log.LineDown(max(m.log.Height/2, 1))
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submitDraft()
	}

	var cmd tea.Cmd
	m.draft, cmd = m.draft.Update(msg)
	m.roomHint = ""
	return m, cmd
}

func (m Model) submitDraft() (tea.Model, tea.Cmd) {
	text := m.draft.Value()
	switch strings.TrimSpace(text) {
	case cmdLeave:
		return m.reset()
	case cmdReturn:
		m.draft.Reset()
		if !m.session.ReturnFromRestStop() {
			m.roomHint = "You can only return while in the rest stop."
		}
		m.refreshLog()
		return m, nil
	}
	if m.session.Send(text) {
		m.draft.Reset()
		m.roomHint = ""
	}
	return m, nil
}

// refreshLog re-renders the message log and keeps it pinned to the
// bottom.
func (m *Model) refreshLog() {
	if m.session == nil {
		m.log.SetContent("")
		return
	}
	entries := m.session.Log()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, m.renderEntry(e))
	}
	m.log.SetContent(strings.Join(lines, "\n"))
	m.log.GotoBottom()
}

func (m Model) renderEntry(e core.Entry) string {
	st := m.styles
	switch e.Kind {
	case core.EntrySystem:
		return st.system.Width(m.log.Width).Render(e.Content)
	case core.EntryChat:
		if e.IsOwn(m.session.Username()) {
			return st.own.Render("You: " + e.Content)
		}
		return st.sender.Render(e.Sender+":") + " " + e.Content
	default:
		return e.Raw
	}
}

func (m Model) viewRoom() string {
	st := m.styles
	s := m.session
	room := s.Room()

	var b strings.Builder
	b.WriteString(st.title.Render("Chat Room: " + domain.DisplayName(room.ID)))
	switch {
	case s.State() == app.StateConnecting:
		b.WriteString("  " + st.faint.Render("connecting..."))
	case s.InRestStop():
		if _, ok := s.ReturnRoom(); ok {
			b.WriteString("  " + st.notice.Render(cmdReturn+" to go back"))
		}
	case s.Remaining() > 0:
		b.WriteString("  " + st.faint.Render("rest stop in "+formatRemaining(s.Remaining())))
	}
	b.WriteString("\n")
	b.WriteString(m.viewRoster())
	b.WriteString("\n")

	b.WriteString(st.border.Render(m.log.View()))
	b.WriteString("\n")
	b.WriteString(m.draft.View())
	b.WriteString("\n")

	if m.roomHint != "" {
		b.WriteString(st.notice.Render(m.roomHint) + "\n")
	}
	if m.blocking != "" {
		b.WriteString(st.blocking.Render(m.blocking+"\n(enter to dismiss)") + "\n")
	}
	b.WriteString(st.faint.Render("enter: send  " + cmdLeave + " or C-l: leave  pgup/pgdown: scroll  C-c: quit"))
	return b.String()
}

func (m Model) viewRoster() string {
	s := m.session
	roster := s.Roster()
	capacity := "?"
	if c := s.Room().Capacity; c > 0 {
		capacity = fmt.Sprint(c)
	}
	names := make([]string, 0, len(roster))
	for _, name := range roster {
		if name == s.Username() {
			name += " (You)"
		}
		names = append(names, name)
	}
	return m.styles.label.Render(fmt.Sprintf("Active Users (%d/%s): ", len(roster), capacity)) + strings.Join(names, ", ")
}

func formatRemaining(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
