package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dkeye/DriveChat/internal/app"
	"github.com/dkeye/DriveChat/internal/domain"
)

var roles = []domain.Role{domain.RolePassenger, domain.RoleDriver}

func (m Model) joinFields() []joinField {
	fields := []joinField{fieldUsername, fieldRole, fieldTransport}
	if m.flow.CreateMode() {
		fields = append(fields, fieldRoomName)
	}
	return fields
}

func (m *Model) setFocus(f joinField) {
	m.focus = f
	m.username.Blur()
	m.roomName.Blur()
	switch f {
	case fieldUsername:
		m.username.Focus()
	case fieldRoomName:
		m.roomName.Focus()
	}
}

func (m *Model) moveFocus(delta int) {
	fields := m.joinFields()
	i := slices.Index(fields, m.focus)
	if i < 0 {
		i = 0
	}
	m.setFocus(fields[(i+delta+len(fields))%len(fields)])
}

// syncRoomName shows the generated default as the placeholder so the
// user sees what an untouched name field will create.
func (m *Model) syncRoomName() {
	m.roomName.Placeholder = string(m.flow.RoomName())
	if m.flow.CustomName() == "" {
		m.roomName.SetValue("")
	}
}

func (m Model) updateJoin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		if m.flow.CreateMode() {
			return m.startCreate()
		}
		return m.startRandom()

	case key.Matches(msg, m.keys.Refresh):
		if m.listPending {
			return m, nil
		}
		m.listPending = true
		return m, m.fetchListing()

	case key.Matches(msg, m.keys.CreateMode):
		m.flow.EnterCreateMode()
		m.syncRoomName()
		m.inline = ""
		if m.flow.Transport() != "" {
			m.setFocus(fieldRoomName)
		}
		return m, nil

	case key.Matches(msg, m.keys.Back):
		if m.busy() {
			m.flow.Abandon()
			return m, nil
		}
		if m.flow.CreateMode() {
			m.flow.Cancel()
			m.syncRoomName()
			m.setFocus(fieldTransport)
		}
		return m, nil

	case key.Matches(msg, m.keys.NextField):
		m.moveFocus(1)
		return m, nil

	case key.Matches(msg, m.keys.PrevField):
		m.moveFocus(-1)
		return m, nil
	}

	switch m.focus {
	case fieldRole:
		m.chooseRole(msg)
		return m, nil
	case fieldTransport:
		m.chooseTransport(msg)
		return m, nil
	}

	var cmd tea.Cmd
	if m.focus == fieldUsername {
		m.username, cmd = m.username.Update(msg)
		m.flow.SetUsername(m.username.Value())
	} else {
		m.roomName, cmd = m.roomName.Update(msg)
		m.flow.SetRoomName(m.roomName.Value())
		m.roomName.Placeholder = string(m.flow.RoomName())
	}
	m.inline = ""
	return m, cmd
}

func (m *Model) chooseRole(msg tea.KeyMsg) {
	i := slices.Index(roles, m.flow.Role())
	switch {
	case key.Matches(msg, m.keys.Left):
		i = max(i-1, 0)
	case key.Matches(msg, m.keys.Right):
		i = min(i+1, len(roles)-1)
	case msg.String() == "p":
		i = 0
	case msg.String() == "d":
		i = 1
	default:
		return
	}
	m.flow.SelectRole(roles[i])
	m.syncRoomName()
	m.inline = ""
}

func (m *Model) chooseTransport(msg tea.KeyMsg) {
	types := domain.TransportTypes
	i := slices.Index(types, m.flow.Transport())
	switch s := msg.String(); {
	case key.Matches(msg, m.keys.Left):
		i = max(i-1, 0)
	case key.Matches(msg, m.keys.Right):
		i = min(i+1, len(types)-1)
	case len(s) == 1 && s[0] >= '1' && int(s[0]-'1') < len(types):
		i = int(s[0] - '1')
	default:
		return
	}
	m.flow.SelectTransport(types[i])
	m.syncRoomName()
	m.inline = ""
}

func (m Model) startCreate() (tea.Model, tea.Cmd) {
	a, err := m.flow.BeginCreate()
	if err != nil {
		m.inline = hint(err)
		return m, nil
	}
	dir := m.opts.Directory
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		capacity, err := dir.CreateRoom(ctx, a.Request)
		return createdMsg{attempt: a, capacity: capacity, err: err}
	})
}

func (m Model) startRandom() (tea.Model, tea.Cmd) {
	a, err := m.flow.BeginRandom()
	if err != nil {
		m.inline = hint(err)
		return m, nil
	}
	dir := m.opts.Directory
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		room, found, err := dir.FindRandomRoom(ctx, a.Transport, a.Role)
		return randomMsg{attempt: a, room: room, found: found, err: err}
	})
}

func hint(err error) string {
	s := err.Error()
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

func (m Model) viewJoin() string {
	st := m.styles
	var b strings.Builder

	b.WriteString(st.title.Render("DriveChat"))
	b.WriteString("\n\n")

	b.WriteString(m.fieldLabel(fieldUsername, "Username:  "))
	b.WriteString(m.username.View())
	b.WriteString("\n")

	b.WriteString(m.fieldLabel(fieldRole, "Role:      "))
	for _, r := range roles {
		b.WriteString(m.choice(string(r), r == m.flow.Role()))
		b.WriteString("  ")
	}
	b.WriteString("\n")

	b.WriteString(m.fieldLabel(fieldTransport, "Transport: "))
	for i, t := range domain.TransportTypes {
		b.WriteString(m.choice(fmt.Sprintf("%d %s (%d)", i+1, t, t.Capacity()), t == m.flow.Transport()))
		b.WriteString("  ")
	}
	b.WriteString("\n")

	if m.flow.CreateMode() {
		b.WriteString(m.fieldLabel(fieldRoomName, "Room name: "))
		b.WriteString(m.roomName.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	action, enabled := "enter: find a room", m.flow.CanJoinRandom()
	if m.flow.CreateMode() {
		action, enabled = "enter: create room", m.flow.CanCreate()
	}
	if enabled {
		b.WriteString(st.label.Render(action))
	} else {
		b.WriteString(st.faint.Render(action))
	}
	b.WriteString("\n")

	switch m.flow.Step() {
	case app.StepCreating:
		b.WriteString(m.spinner.View() + " Creating room...\n")
	case app.StepJoining:
		b.WriteString(m.spinner.View() + " Finding a room...\n")
	}
	if n := m.flow.Notice(); n != "" {
		b.WriteString(st.notice.Render(n) + "\n")
	}
	if m.inline != "" {
		b.WriteString(st.notice.Render(m.inline) + "\n")
	}

	if m.hasListing {
		b.WriteString("\n" + st.label.Render("Rooms:") + "\n")
		b.WriteString(m.viewListing())
	}

	if m.blocking != "" {
		b.WriteString("\n" + st.blocking.Render(m.blocking+"\n(enter to dismiss)") + "\n")
	}

	b.WriteString("\n" + st.faint.Render("tab: next field  ←/→: choose  C-n: create  esc: back  C-r: list rooms  C-c: quit"))
	return b.String()
}

func (m Model) viewListing() string {
	if len(m.listing.Rooms) == 0 {
		return m.styles.faint.Render("  no rooms") + "\n"
	}
	var b strings.Builder
	for _, id := range m.listing.Rooms {
		capacity := "?"
		if c, ok := m.listing.Capacity[id]; ok {
			capacity = fmt.Sprint(c)
		}
		fmt.Fprintf(&b, "  %-24s %d/%s\n", id, m.listing.Occupancy[id], capacity)
	}
	return b.String()
}

func (m Model) fieldLabel(f joinField, text string) string {
	if m.focus == f {
		return m.styles.focused.Render(text)
	}
	return m.styles.label.Render(text)
}

func (m Model) choice(text string, chosen bool) string {
	if chosen {
		return m.styles.chosen.Render("[" + text + "]")
	}
	return m.styles.faint.Render(" " + text + " ")
}
