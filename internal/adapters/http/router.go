package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/DriveChat/internal/adapters/ws"
	"github.com/dkeye/DriveChat/internal/config"
	"github.com/dkeye/DriveChat/internal/core"
	"github.com/dkeye/DriveChat/internal/domain"
	"github.com/dkeye/DriveChat/internal/relay"
)

// SetupRouter wires the relay's REST directory and websocket endpoint.
func SetupRouter(cfg *config.Config, hub *relay.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	wsOpts := ws.Options{
		PingPeriod: cfg.PingPeriod,
		ReadLimit:  cfg.ReadLimit,
		SendQueue:  cfg.SendQueue,
	}

	r.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, hub.Listing())
	})

	r.GET("/rooms/random", func(c *gin.Context) {
		t, err := domain.ParseTransportType(c.Query("transport_type"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Unknown transport type"})
			return
		}
		role := domain.RolePassenger
		if q := c.Query("user_type"); q != "" {
			if role, err = domain.ParseRole(q); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"detail": "Unknown user type"})
				return
			}
		}
		room, ok := hub.RandomRoom(t, role)
		if !ok {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, room)
	})

	r.POST("/rooms", func(c *gin.Context) {
		var req core.CreateRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid room payload"})
			return
		}
		room, err := hub.CreateRoom(req)
		switch {
		case errors.Is(err, relay.ErrRoomExists):
			c.JSON(http.StatusConflict, gin.H{"detail": "Room already exists"})
			return
		case err != nil:
			c.JSON(http.StatusBadRequest, gin.H{"detail": detailOf(err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":  "Room created",
			"room":     room.ID,
			"capacity": room.Capacity,
		})
	})

	r.POST("/rooms/:name/move", func(c *gin.Context) {
		var req struct {
			To domain.RoomID `json:"to"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid move payload"})
			return
		}
		n, err := hub.Move(domain.RoomID(c.Param("name")), req.To)
		switch {
		case errors.Is(err, relay.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, gin.H{"detail": "Room not found"})
			return
		case err != nil:
			c.JSON(http.StatusBadRequest, gin.H{"detail": detailOf(err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"moved": n, "to": req.To})
	})

	r.GET("/ws/:room/:username", func(c *gin.Context) {
		room := domain.RoomID(c.Param("room"))
		username := c.Param("username")
		role := domain.RolePassenger
		if q := c.Query("role"); q != "" {
			var err error
			if role, err = domain.ParseRole(q); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"detail": "Unknown user type"})
				return
			}
		}
		log.Info().Str("module", "adapters.http").Str("room", string(room)).Str("user", username).Str("role", string(role)).Msg("ws endpoint hit")
		ws.Serve(hub, wsOpts, c.Writer, c.Request, room, username, role)
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}

func detailOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNameEmpty):
		return "Room name is required"
	case errors.Is(err, domain.ErrRoomNameTooLong):
		return "Room name is too long"
	case errors.Is(err, domain.ErrRoomNameInvalid):
		return "Room name contains reserved characters"
	case errors.Is(err, relay.ErrBadCapacity):
		return "Capacity must be positive"
	default:
		return err.Error()
	}
}
