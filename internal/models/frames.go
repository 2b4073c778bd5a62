package models

// Frame type discriminators for the WebSocket protocol.
const (
	// inbound
	FrameTimerControl   = "timer_control"
	FrameDisplayMessage = "display_message"
	FrameDeviceUpdate   = "device_update"
	FramePing           = "ping"

	// outbound
	FrameWelcome            = "welcome"
	FrameDeviceConnected    = "device_connected"
	FrameDeviceDisconnected = "device_disconnected"
	FrameDeviceUpdated      = "device_updated"
	FrameTimerUpdate        = "timer_update"
	FramePong               = "pong"
)

// ControlData carries action-specific parameters; today only add_time
// uses it.
type ControlData struct {
	Seconds int `json:"seconds,omitempty"`
}

// InboundFrame is the decoded shape of any client frame. Fields beyond
// Type are populated per frame type.
type InboundFrame struct {
	Type    string        `json:"type"`
	Action  string        `json:"action,omitempty"`
	TimerID string        `json:"timer_id,omitempty"`
	Data    *ControlData  `json:"data,omitempty"`
	Message *Message      `json:"message,omitempty"`
	Device  *DeviceUpdate `json:"device,omitempty"`
}

// OutboundFrame is the wire shape of every server-to-client frame. Only
// the fields relevant to the frame type are set; the rest are omitted.
type OutboundFrame struct {
	Type     string         `json:"type"`
	RoomID   string         `json:"room_id,omitempty"`
	DeviceID string         `json:"device_id,omitempty"`
	Action   string         `json:"action,omitempty"`
	TimerID  string         `json:"timer_id,omitempty"`
	Timer    *TimerSnapshot `json:"timer,omitempty"`
	Device   *Device        `json:"device,omitempty"`
	Devices  []Device       `json:"devices,omitempty"`
	Message  *Message       `json:"message,omitempty"`
	Messages []Message      `json:"messages,omitempty"`
}

// WelcomeFrame builds the frame sent once to a freshly connected client.
func WelcomeFrame(roomID, deviceID string, devices []Device, tail []Message) OutboundFrame {
	return OutboundFrame{
		Type:     FrameWelcome,
		RoomID:   roomID,
		DeviceID: deviceID,
		Devices:  devices,
		Messages: tail,
	}
}

// DeviceFrame builds a device lifecycle frame of the given type.
func DeviceFrame(typ string, d Device) OutboundFrame {
	return OutboundFrame{Type: typ, Device: &d}
}

// ControlEchoFrame mirrors an applied control action back to the room.
func ControlEchoFrame(action, timerID string) OutboundFrame {
	return OutboundFrame{Type: FrameTimerControl, Action: action, TimerID: timerID}
}

// TimerUpdateFrame carries a fresh timer snapshot.
func TimerUpdateFrame(snap TimerSnapshot) OutboundFrame {
	return OutboundFrame{Type: FrameTimerUpdate, TimerID: snap.ID, Timer: &snap}
}

// MessageFrame broadcasts a display overlay.
func MessageFrame(m Message) OutboundFrame {
	return OutboundFrame{Type: FrameDisplayMessage, Message: &m}
}
