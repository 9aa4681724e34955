// Package ws is the websocket side of the session channel.
package ws

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/DriveChat/internal/core"
	"github.com/dkeye/DriveChat/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrNotOpen      = errors.New("channel not open")
)

type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	// PingPeriod of zero disables client pings.
	PingPeriod time.Duration
	ReadLimit  int64
	SendQueue  int
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 32
	}
	return o
}

// Dialer opens channels at <server>/ws/{room}/{username}.
type Dialer struct {
	base   *url.URL
	opts   Options
	dialer *websocket.Dialer
}

var _ core.Dialer = (*Dialer)(nil)

// NewDialer accepts http(s) or ws(s) server URLs.
func NewDialer(serverURL string, opts Options) (*Dialer, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("server url %q: unsupported scheme", serverURL)
	}
	opts = opts.withDefaults()
	return &Dialer{
		base: u,
		opts: opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
		},
	}, nil
}

// Address is the channel URL for (room, username). A role is sent as
// the role query parameter.
func (d *Dialer) Address(room domain.RoomID, username string, role domain.Role) string {
	addr := d.base.String() + "/ws/" + url.PathEscape(string(room)) + "/" + url.PathEscape(username)
	if role != "" {
		addr += "?" + url.Values{"role": {string(role)}}.Encode()
	}
	return addr
}

func (d *Dialer) Dial(room domain.RoomID, username string, role domain.Role, handler core.ChannelHandler) core.Channel {
	ch := &Channel{
		room:    room,
		opts:    d.opts,
		handler: handler,
		send:    make(chan []byte, d.opts.SendQueue),
		done:    make(chan struct{}),
		state:   core.StateConnecting,
	}
	go ch.run(d, d.Address(room, username, role))
	return ch
}

// Channel is one websocket connection. Only the write pump writes data
// frames; Close uses WriteControl, which gorilla allows concurrently.
type Channel struct {
	room    domain.RoomID
	opts    Options
	handler core.ChannelHandler
	send    chan []byte
	done    chan struct{}

	mu    sync.Mutex
	state core.ChannelState
	conn  *websocket.Conn
}

func (c *Channel) State() core.ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) Send(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != core.StateOpen {
		return ErrNotOpen
	}
	select {
	case c.send <- []byte(text):
		return nil
	default:
		return ErrBackpressure
	}
}

// Close tears the channel down from any state. Safe to call repeatedly.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.state == core.StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = core.StateClosed
	close(c.done)
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(c.opts.WriteTimeout)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
	log.Info().Str("module", "adapters.ws").Str("room", string(c.room)).Msg("channel closed")
}

func (c *Channel) closedByUs() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Channel) run(d *Dialer, addr string) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	defer cancel()

	log.Info().Str("module", "adapters.ws").Str("addr", addr).Msg("dialing")
	conn, resp, err := d.dialer.DialContext(ctx, addr, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		ev := core.ChannelEvent{Kind: core.EventClosed}
		if !c.closedByUs() {
			ev.Err = fmt.Errorf("dial %s: %w", c.room, err)
		}
		c.finish(ev)
		return
	}

	c.mu.Lock()
	if c.state == core.StateClosed {
		c.mu.Unlock()
		_ = conn.Close()
		c.finish(core.ChannelEvent{Kind: core.EventClosed})
		return
	}
	c.state = core.StateOpen
	c.conn = conn
	c.mu.Unlock()

	conn.SetReadLimit(c.opts.ReadLimit)
	c.handler(core.ChannelEvent{Kind: core.EventOpen})
	log.Info().Str("module", "adapters.ws").Str("room", string(c.room)).Msg("channel open")

	quit := make(chan struct{})
	go c.writePump(conn, quit)
	c.readPump(conn)
	close(quit)
}

func (c *Channel) readPump(conn *websocket.Conn) {
	var ev core.ChannelEvent
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			ev = c.closeEvent(err)
			break
		}
		c.handler(core.ChannelEvent{Kind: core.EventFrame, Text: string(data)})
	}
	c.mu.Lock()
	c.state = core.StateClosed
	c.mu.Unlock()
	_ = conn.Close()
	c.finish(ev)
}

func (c *Channel) closeEvent(err error) core.ChannelEvent {
	ev := core.ChannelEvent{Kind: core.EventClosed}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		ev.Reason = ce.Text
		if ce.Code != websocket.CloseNormalClosure && ce.Code != websocket.CloseGoingAway {
			ev.Err = err
		}
		return ev
	}
	if !c.closedByUs() {
		ev.Err = err
	}
	return ev
}

func (c *Channel) writePump(conn *websocket.Conn, quit <-chan struct{}) {
	var ping <-chan time.Time
	if c.opts.PingPeriod > 0 {
		ticker := time.NewTicker(c.opts.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case <-c.done:
			return
		case <-quit:
			return
		case <-ping:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump ping")
				_ = conn.Close()
				return
			}
		case data := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump set deadline")
				_ = conn.Close()
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump write error")
				_ = conn.Close()
				return
			}
		}
	}
}

// finish reports the terminal event; it is always the last event.
func (c *Channel) finish(ev core.ChannelEvent) {
	c.mu.Lock()
	c.state = core.StateClosed
	c.mu.Unlock()
	if ev.Err != nil {
		log.Warn().Err(ev.Err).Str("module", "adapters.ws").Str("room", string(c.room)).Msg("channel lost")
	}
	c.handler(ev)
}
