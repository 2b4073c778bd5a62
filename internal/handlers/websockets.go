package handlers

import (
	"errors"
	"net/http"
	"time"

	"stagetimer/internal/hub"
	"stagetimer/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	maxMsgSize = 1 << 12 // 4 KB

	// CloseRoomNotFound is the reserved close code for a handshake against
	// an unknown room.
	CloseRoomNotFound = 4004
)

// Upgrader for HTTP -> WebSocket. Consider tightening CheckOrigin in production.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origins for production
}

// wsConnect upgrades the request and admits the connection to the room
// named in the path. Role and device name travel as query parameters.
func (h *Handler) wsConnect(c *gin.Context) {
	roomID := c.Param("room_id")
	role := c.Query("role")
	name := c.Query("name")
	password := c.Query("password")

	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}

	conn := hub.NewWSConn(raw)
	deviceID, err := h.services.Join(conn, roomID, role, name, password)
	if err != nil {
		h.rejectConn(raw, roomID, err)
		return
	}
	if h.log != nil {
		h.log.Infow("ws_connected", "room_id", roomID, "device_id", deviceID, "role", role)
	}

	raw.SetReadLimit(maxMsgSize)
	_ = raw.SetReadDeadline(time.Now().Add(h.ws.IdleDisconnect))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(h.ws.IdleDisconnect))
	})

	// Ping writer keeps idle viewers alive until they stop answering.
	done := make(chan struct{})
	go h.pingLoop(conn, done)

	h.readLoop(c, conn, raw, roomID)

	close(done)
	h.services.Leave(conn)
}

// readLoop feeds inbound frames to the protocol handler until the
// connection drops. Each frame extends the idle deadline.
func (h *Handler) readLoop(c *gin.Context, conn *hub.WSConn, raw *websocket.Conn, roomID string) {
	for {
		_, data, err := raw.ReadMessage()
		if err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "room_id", roomID, "err", err)
			}
			return
		}
		_ = raw.SetReadDeadline(time.Now().Add(h.ws.IdleDisconnect))
		h.proto.Dispatch(c.Request.Context(), conn, roomID, data)
	}
}

// pingLoop sends websocket pings until done closes or a write fails.
func (h *Handler) pingLoop(conn *hub.WSConn, done <-chan struct{}) {
	ticker := time.NewTicker(h.ws.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		}
	}
}

// rejectConn closes a just-upgraded connection with the close code that
// matches the admission failure. 4004 is reserved for unknown rooms.
func (h *Handler) rejectConn(raw *websocket.Conn, roomID string, err error) {
	code := websocket.CloseInternalServerErr
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		code = CloseRoomNotFound
	case errors.Is(err, service.ErrWrongPassword):
		code = websocket.ClosePolicyViolation
	case errors.Is(err, service.ErrConnectionLimit):
		code = websocket.CloseTryAgainLater
	}
	if h.log != nil {
		h.log.Infow("ws_join_rejected", "room_id", roomID, "code", code, "err", err)
	}
	msg := websocket.FormatCloseMessage(code, err.Error())
	_ = raw.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = raw.Close()
}
