// Package tui is the terminal front end: a join screen that turns
// role, transport type and room name into a room, and a room screen
// that shows the live session.
//
// Everything that happens off the bubbletea event loop (channel frames,
// countdown ticks, directory answers) reaches the model as a tea.Msg,
// so all state changes happen inside Update.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/DriveChat/internal/app"
	"github.com/dkeye/DriveChat/internal/clock"
	"github.com/dkeye/DriveChat/internal/core"
	"github.com/dkeye/DriveChat/internal/domain"
)

const requestTimeout = 10 * time.Second

type Options struct {
	Directory     core.Directory
	Dialer        core.Dialer
	Clock         clock.Clock
	RestStopAfter time.Duration
	// Send delivers a message into the running program from any
	// goroutine; main wires it to tea.Program.Send.
	Send  func(tea.Msg)
	Theme Theme
}

type screen int

const (
	screenJoin screen = iota
	screenRoom
)

type joinField int

const (
	fieldUsername joinField = iota
	fieldRole
	fieldTransport
	fieldRoomName
)

type sessionMsg struct {
	session *app.Session
	ev      app.Event
}

type createdMsg struct {
	attempt  app.CreateAttempt
	capacity int
	err      error
}

type randomMsg struct {
	attempt app.RandomAttempt
	room    domain.Room
	found   bool
	err     error
}

type listingMsg struct {
	listing core.Listing
	err     error
}

type Model struct {
	opts   Options
	keys   KeyMap
	styles styles

	width  int
	height int

	screen   screen
	flow     *app.JoinFlow
	session  *app.Session
	focus    joinField
	username textinput.Model
	roomName textinput.Model
	draft    textinput.Model
	log      viewport.Model
	spinner  spinner.Model

	listing     core.Listing
	hasListing  bool
	listPending bool

	// inline is a validation hint on the join screen; roomHint the same
	// on the room screen. blocking must be dismissed before anything
	// else is accepted.
	inline   string
	roomHint string
	blocking string
}

func New(opts Options) Model {
	if opts.Theme == (Theme{}) {
		opts.Theme = DefaultTheme
	}
	if opts.Send == nil {
		opts.Send = func(tea.Msg) {}
	}

	username := textinput.New()
	username.Placeholder = "your name"
	username.CharLimit = domain.MaxUsernameLen
	username.Focus()

	roomName := textinput.New()
	roomName.CharLimit = domain.MaxRoomNameLen

	draft := textinput.New()
	draft.Placeholder = "Type a message"
	draft.Prompt = "> "

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return Model{
		opts:     opts,
		keys:     DefaultKeyMap,
		styles:   newStyles(opts.Theme),
		flow:     app.NewJoinFlow(),
		username: username,
		roomName: roomName,
		draft:    draft,
		log:      viewport.New(80, 10),
		spinner:  spin,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if m.session != nil {
				m.session.Close()
			}
			return m, tea.Quit
		}
		if m.blocking != "" {
			return m.dismiss(msg)
		}
		if m.screen == screenRoom {
			return m.updateRoom(msg)
		}
		return m.updateJoin(msg)

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case sessionMsg:
		return m.applySession(msg)

	case createdMsg:
		return m.applyOutcome(m.flow.ResolveCreate(msg.attempt, msg.capacity, msg.err))

	case randomMsg:
		return m.applyOutcome(m.flow.ResolveRandom(msg.attempt, msg.room, msg.found, msg.err))

	case listingMsg:
		m.listPending = false
		if msg.err != nil {
			log.Warn().Err(msg.err).Str("module", "tui").Msg("room listing failed")
			return m, nil
		}
		m.listing = msg.listing
		m.hasListing = true
		return m, nil
	}

	var cmd tea.Cmd
	switch {
	case m.screen == screenRoom:
		m.draft, cmd = m.draft.Update(msg)
	case m.focus == fieldUsername:
		m.username, cmd = m.username.Update(msg)
	case m.focus == fieldRoomName:
		m.roomName, cmd = m.roomName.Update(msg)
	}
	return m, cmd
}

func (m Model) View() string {
	if m.screen == screenRoom {
		return m.viewRoom()
	}
	return m.viewJoin()
}

func (m Model) busy() bool {
	step := m.flow.Step()
	return step == app.StepCreating || step == app.StepJoining
}

// dismiss clears the blocking notice. A notice about a lost session
// leads back to a fresh join screen.
func (m Model) dismiss(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !key.Matches(msg, m.keys.Submit, m.keys.Back) {
		return m, nil
	}
	m.blocking = ""
	if m.screen == screenRoom && m.session != nil && m.session.State() == app.StateDisconnected {
		return m.reset()
	}
	return m, nil
}

// reset is a full client reload: the session is closed and every piece
// of state starts over.
func (m Model) reset() (tea.Model, tea.Cmd) {
	if m.session != nil {
		m.session.Close()
	}
	log.Info().Str("module", "tui").Msg("reset to join screen")
	fresh := New(m.opts)
	fresh.width, fresh.height = m.width, m.height
	fresh.resize()
	return fresh, textinput.Blink
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.draft.Width = max(m.width-4, 10)
	m.username.Width = max(m.width-16, 10)
	m.roomName.Width = max(m.width-16, 10)
	m.log.Width = m.width
	// header, roster, two borders, draft, help
	m.log.Height = max(m.height-6, 3)
	m.refreshLog()
}

func (m Model) fetchListing() tea.Cmd {
	dir := m.opts.Directory
	if dir == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		listing, err := dir.ListRooms(ctx)
		return listingMsg{listing: listing, err: err}
	}
}

func (m Model) applyOutcome(out app.Outcome) (tea.Model, tea.Cmd) {
	switch out.Kind {
	case app.OutcomeStale:
		return m, nil
	case app.OutcomeNoRoom:
		if out.RouteToCreate {
			m.syncRoomName()
			m.setFocus(fieldRoomName)
		}
		return m, nil
	case app.OutcomeRejected, app.OutcomeFailed:
		m.blocking = out.Message
		return m, nil
	}
	return m.enterRoom(out.Room)
}

func (m Model) enterRoom(room domain.Room) (tea.Model, tea.Cmd) {
	var sess *app.Session
	send := m.opts.Send
	sess, err := app.NewSession(app.SessionConfig{
		Username:      m.flow.Username(),
		Role:          m.flow.Role(),
		Dialer:        m.opts.Dialer,
		Directory:     m.opts.Directory,
		Clock:         m.opts.Clock,
		RestStopAfter: m.opts.RestStopAfter,
		Post: func(ev app.Event) {
			send(sessionMsg{session: sess, ev: ev})
		},
	})
	if err != nil {
		m.blocking = err.Error()
		return m, nil
	}
	m.session = sess
	m.screen = screenRoom
	m.username.Blur()
	m.roomName.Blur()
	sess.Join(room.ID, room.Capacity)
	m.refreshLog()
	cmd := m.draft.Focus()
	return m, cmd
}

func (m Model) applySession(msg sessionMsg) (tea.Model, tea.Cmd) {
	if m.session == nil || msg.session != m.session {
		return m, nil
	}
	before := m.session.State()
	if !m.session.Handle(msg.ev) {
		return m, nil
	}
	if before != app.StateDisconnected && m.session.State() == app.StateDisconnected {
		m.blocking = m.session.Notice()
		if m.blocking == "" {
			m.blocking = "Connection closed."
		}
	}
	m.refreshLog()
	return m, nil
}
