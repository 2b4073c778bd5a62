// Package protocol decodes inbound client frames, applies them through the
// room service, and encodes the replies. It never terminates a connection
// on bad input: malformed or unknown frames are logged and dropped because
// clients always converge on the authoritative state via broadcasts.
package protocol

import (
	"context"
	"encoding/json"
	"errors"

	"stagetimer/internal/hub"
	"stagetimer/internal/logger"
	"stagetimer/internal/models"
	"stagetimer/internal/service"
	"stagetimer/internal/timer"
)

// Handler dispatches frames for established connections.
type Handler struct {
	rooms service.Rooms
	mgr   *hub.Manager
	log   *logger.Logger
}

// NewHandler builds a protocol handler over the room service.
func NewHandler(rooms service.Rooms, mgr *hub.Manager, log *logger.Logger) *Handler {
	return &Handler{rooms: rooms, mgr: mgr, log: log}
}

// Dispatch handles one raw inbound frame from conn. Every frame counts as
// device activity regardless of whether it parses.
func (h *Handler) Dispatch(ctx context.Context, conn hub.Conn, roomID string, raw []byte) {
	h.rooms.Touch(conn)

	var frame models.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		if h.log != nil {
			h.log.Infow("ws_frame_malformed", "room_id", roomID, "err", err)
		}
		return
	}

	switch frame.Type {
	case models.FrameTimerControl:
		h.handleControl(ctx, roomID, frame)
	case models.FrameDisplayMessage:
		h.handleMessage(ctx, roomID, frame)
	case models.FrameDeviceUpdate:
		h.handleDeviceUpdate(conn, roomID, frame)
	case models.FramePing:
		h.mgr.Send(conn, models.OutboundFrame{Type: models.FramePong})
	default:
		if h.log != nil {
			h.log.Infow("ws_frame_unknown_type", "room_id", roomID, "type", frame.Type)
		}
	}
}

// handleControl routes a control action to the room service, which emits
// the timer_control echo and the timer_update in contract order. Unknown
// timers and bad actions are no-ops on this path.
func (h *Handler) handleControl(ctx context.Context, roomID string, frame models.InboundFrame) {
	_, err := h.rooms.ControlTimer(ctx, roomID, frame.TimerID, frame.Action, frame.Data)
	if err == nil {
		return
	}
	if h.log != nil {
		switch {
		case errors.Is(err, timer.ErrTimerNotFound):
			h.log.Infow("ws_control_unknown_timer", "room_id", roomID, "timer_id", frame.TimerID)
		case errors.Is(err, service.ErrInvalidAction):
			h.log.Infow("ws_control_invalid_action", "room_id", roomID, "action", frame.Action)
		default:
			h.log.Errorw("ws_control_failed", "room_id", roomID, "timer_id", frame.TimerID, "err", err)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, roomID string, frame models.InboundFrame) {
	if frame.Message == nil {
		if h.log != nil {
			h.log.Infow("ws_message_missing_payload", "room_id", roomID)
		}
		return
	}
	if _, err := h.rooms.CreateMessage(ctx, roomID, *frame.Message); err != nil && h.log != nil {
		h.log.Infow("ws_message_rejected", "room_id", roomID, "err", err)
	}
}

func (h *Handler) handleDeviceUpdate(conn hub.Conn, roomID string, frame models.InboundFrame) {
	if frame.Device == nil {
		if h.log != nil {
			h.log.Infow("ws_device_update_missing_payload", "room_id", roomID)
		}
		return
	}
	h.rooms.UpdateDevice(conn, roomID, *frame.Device)
}
