package ws

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/DriveChat/internal/domain"
	"github.com/dkeye/DriveChat/internal/relay"
)

var ErrConnClosed = errors.New("connection closed")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServerConn is the relay side of one client connection.
type ServerConn struct {
	conn *websocket.Conn
	send chan []byte
	opts Options

	mu     sync.RWMutex
	closed bool
}

var _ relay.Conn = (*ServerConn)(nil)

func (c *ServerConn) TrySend(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrBackpressure
	}
}

// Kick sends a close frame with code and reason and drops the
// connection. Frames still queued are discarded.
func (c *ServerConn) Kick(code int, reason string) {
	if !c.markClosed() {
		return
	}
	deadline := time.Now().Add(c.opts.WriteTimeout)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.conn.Close()
}

func (c *ServerConn) Close() {
	if c.markClosed() {
		_ = c.conn.Close()
	}
}

func (c *ServerConn) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

// Serve upgrades the request and runs the member until the client
// goes away. It blocks for the lifetime of the connection.
func Serve(hub *relay.Hub, opts Options, w http.ResponseWriter, r *http.Request, room domain.RoomID, username string, role domain.Role) {
	opts = opts.withDefaults()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
		return
	}
	c := &ServerConn{conn: conn, send: make(chan []byte, opts.SendQueue), opts: opts}
	go c.writePump()

	sid, err := hub.Join(room, username, role, c)
	if err != nil {
		if !errors.Is(err, relay.ErrRoomFull) {
			log.Warn().Err(err).Str("module", "adapters.ws").Str("room", string(room)).Str("user", username).Msg("join rejected")
			c.Kick(websocket.ClosePolicyViolation, err.Error())
		}
		return
	}
	c.readPump(hub, sid)
}

func (c *ServerConn) readPump(hub *relay.Hub, sid relay.SessionID) {
	defer func() {
		log.Info().Str("module", "adapters.ws").Str("sid", string(sid)).Msg("readPump closing")
		hub.Leave(sid)
		c.Close()
	}()

	c.conn.SetReadLimit(c.opts.ReadLimit)
	if c.opts.PingPeriod > 0 {
		pongWait := c.opts.PingPeriod * 10 / 9
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error().Err(err).Str("module", "adapters.ws").Str("sid", string(sid)).Msg("readPump read error")
			}
			return
		}
		hub.Chat(sid, string(data))
	}
}

func (c *ServerConn) writePump() {
	var ping <-chan time.Time
	if c.opts.PingPeriod > 0 {
		ticker := time.NewTicker(c.opts.PingPeriod)
		defer ticker.Stop()
		ping = ticker.C
	}
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump set deadline")
				_ = c.conn.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump write error")
				_ = c.conn.Close()
				return
			}
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}
