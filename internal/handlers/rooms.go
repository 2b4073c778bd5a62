package handlers

import (
	"errors"
	"net/http"

	"stagetimer/internal/models"
	"stagetimer/internal/service"
	"stagetimer/internal/timer"

	"github.com/gin-gonic/gin"
)

// Common response constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errCreateRoom      = "failed to create room"
	errRemoveRoom      = "failed to remove room"
	errAddTimer        = "failed to add timer"
	errRemoveTimer     = "failed to remove timer"
	errControlTimer    = "failed to control timer"
	errCreateMessage   = "failed to create message"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// statusForDomainError maps a domain error onto an HTTP status, or 0 when
// the error is not a recognized domain error.
func statusForDomainError(err error) int {
	switch {
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, timer.ErrTimerNotFound):
		return http.StatusNotFound
	case errors.Is(err, timer.ErrDuplicateTimer):
		return http.StatusConflict
	case errors.Is(err, timer.ErrInvalidKind),
		errors.Is(err, timer.ErrInvalidDuration),
		errors.Is(err, timer.ErrInvalidThresholds),
		errors.Is(err, service.ErrInvalidAction),
		errors.Is(err, service.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRoomLimit), errors.Is(err, service.ErrConnectionLimit):
		return http.StatusTooManyRequests
	}
	return 0
}

// respondDomainError writes the mapped status for a domain error, falling
// back to 500 with the supplied message for unexpected failures.
func (h *Handler) respondDomainError(c *gin.Context, err error, userMsg, logKey string, kv ...interface{}) {
	if code := statusForDomainError(err); code != 0 {
		c.JSON(code, gin.H{"error": err.Error()})
		return
	}
	h.logAndJSONError(c, http.StatusInternalServerError, userMsg, logKey, err, kv...)
}

// CreateRoomRequest is the payload of POST /api/v1/rooms.
type CreateRoomRequest struct {
	Title    string `json:"title" binding:"required" example:"Company all-hands"`
	Password string `json:"password,omitempty"`
}

// ControlRequest is the payload of the timer control endpoint.
type ControlRequest struct {
	Action string              `json:"action" binding:"required" example:"start"`
	Data   *models.ControlData `json:"data,omitempty"`
}

// roomURLs builds the page URLs handed back from room creation. The pages
// themselves live on the frontend; the core only mints the paths.
func roomURLs(roomID string) gin.H {
	return gin.H{
		"controller": "/controller/" + roomID,
		"viewer":     "/viewer/" + roomID,
		"agenda":     "/agenda/" + roomID,
	}
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Create room
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        body  body   CreateRoomRequest  true  "Room payload"
// @Success      200   {object}  map[string]interface{}  "room, urls"
// @Failure      400   {object}  map[string]string
// @Failure      429   {object}  map[string]string
// @Router       /api/v1/rooms [post]
func (h *Handler) createRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	room, err := h.services.CreateRoom(c.Request.Context(), req.Title, req.Password)
	if err != nil {
		h.respondDomainError(c, err, errCreateRoom, "room_create_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room": room,
		"urls": roomURLs(room.ID),
	})
}

// @Summary      Get room
// @Tags         rooms
// @Produce      json
// @Param        room_id  path  string  true  "Room id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/rooms/{room_id} [get]
func (h *Handler) getRoom(c *gin.Context) {
	room, err := h.services.GetRoom(c.Param("room_id"))
	if err != nil {
		h.respondDomainError(c, err, "failed to load room", "room_get_failed")
		return
	}
	c.JSON(http.StatusOK, room)
}

// @Summary      Remove room
// @Tags         rooms
// @Produce      json
// @Param        room_id  path  string  true  "Room id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/rooms/{room_id} [delete]
func (h *Handler) deleteRoom(c *gin.Context) {
	if err := h.services.RemoveRoom(c.Request.Context(), c.Param("room_id")); err != nil {
		h.respondDomainError(c, err, errRemoveRoom, "room_remove_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Add timer
// @Description  kind is one of countdown, countup, clock, hidden
// @Tags         timers
// @Accept       json
// @Produce      json
// @Param        room_id  path  string              true  "Room id"
// @Param        body     body  models.TimerConfig  true  "Timer config"
// @Success      200  {object}  models.TimerSnapshot
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/v1/rooms/{room_id}/timers [post]
func (h *Handler) addTimer(c *gin.Context) {
	var cfg models.TimerConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	snap, err := h.services.AddTimer(c.Request.Context(), c.Param("room_id"), cfg)
	if err != nil {
		h.respondDomainError(c, err, errAddTimer, "timer_add_failed", "room_id", c.Param("room_id"))
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      List timers
// @Tags         timers
// @Produce      json
// @Param        room_id  path  string  true  "Room id"
// @Success      200  {object}  map[string]interface{}  "count, timers"
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/rooms/{room_id}/timers [get]
func (h *Handler) listTimers(c *gin.Context) {
	snaps, err := h.services.ListTimers(c.Param("room_id"))
	if err != nil {
		h.respondDomainError(c, err, "failed to list timers", "timer_list_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(snaps),
		"timers": snaps,
	})
}

// @Summary      Remove timer
// @Tags         timers
// @Produce      json
// @Param        room_id   path  string  true  "Room id"
// @Param        timer_id  path  string  true  "Timer id"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/rooms/{room_id}/timers/{timer_id} [delete]
func (h *Handler) removeTimer(c *gin.Context) {
	err := h.services.RemoveTimer(c.Request.Context(), c.Param("room_id"), c.Param("timer_id"))
	if err != nil {
		h.respondDomainError(c, err, errRemoveTimer, "timer_remove_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusOK})
}

// @Summary      Control timer
// @Description  action is one of start, stop, pause, reset, add_time; add_time takes data.seconds
// @Tags         timers
// @Accept       json
// @Produce      json
// @Param        room_id   path  string          true  "Room id"
// @Param        timer_id  path  string          true  "Timer id"
// @Param        body      body  ControlRequest  true  "Control payload"
// @Success      200  {object}  models.TimerSnapshot
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/rooms/{room_id}/timers/{timer_id}/control [post]
func (h *Handler) controlTimer(c *gin.Context) {
	var req ControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	snap, err := h.services.ControlTimer(c.Request.Context(), c.Param("room_id"), c.Param("timer_id"), req.Action, req.Data)
	if err != nil {
		h.respondDomainError(c, err, errControlTimer, "timer_control_failed",
			"room_id", c.Param("room_id"), "timer_id", c.Param("timer_id"), "action", req.Action)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      Send display message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        room_id  path  string          true  "Room id"
// @Param        body     body  models.Message  true  "Message payload"
// @Success      200  {object}  models.Message
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/rooms/{room_id}/messages [post]
func (h *Handler) createMessage(c *gin.Context) {
	var msg models.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	out, err := h.services.CreateMessage(c.Request.Context(), c.Param("room_id"), msg)
	if err != nil {
		h.respondDomainError(c, err, errCreateMessage, "message_create_failed", "room_id", c.Param("room_id"))
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary      List devices
// @Tags         devices
// @Produce      json
// @Param        room_id  path  string  true  "Room id"
// @Success      200  {object}  map[string]interface{}  "count, devices"
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/rooms/{room_id}/devices [get]
func (h *Handler) listDevices(c *gin.Context) {
	devices, err := h.services.ListDevices(c.Param("room_id"))
	if err != nil {
		h.respondDomainError(c, err, "failed to list devices", "device_list_failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(devices),
		"devices": devices,
	})
}
