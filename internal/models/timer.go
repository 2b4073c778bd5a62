package models

// TimerKind selects how a timer derives its display value.
type TimerKind string

const (
	KindCountdown TimerKind = "countdown"
	KindCountup   TimerKind = "countup"
	KindClock     TimerKind = "clock"
	KindHidden    TimerKind = "hidden"
)

// Valid reports whether the kind is one of the known values.
func (k TimerKind) Valid() bool {
	switch k {
	case KindCountdown, KindCountup, KindClock, KindHidden:
		return true
	}
	return false
}

// TimerState is the lifecycle state of a timer.
type TimerState string

const (
	StateStopped  TimerState = "stopped"
	StateRunning  TimerState = "running"
	StatePaused   TimerState = "paused"
	StateFinished TimerState = "finished"
)

// WarningLevel is the derived display colour of a countdown timer.
type WarningLevel string

const (
	WarningNormal WarningLevel = "normal"
	WarningYellow WarningLevel = "yellow"
	WarningRed    WarningLevel = "red"
)

// TimerConfig is the caller-supplied shape for creating a timer.
// ID is optional; a blank ID gets a generated one.
type TimerConfig struct {
	ID              string    `json:"id,omitempty"`
	Title           string    `json:"title"`
	DurationSeconds float64   `json:"duration_seconds"`
	Kind            TimerKind `json:"kind"`
	WrapUpYellow    float64   `json:"wrap_up_yellow,omitempty"`
	WrapUpRed       float64   `json:"wrap_up_red,omitempty"`
	AutoStart       bool      `json:"auto_start,omitempty"`
	AutoStop        bool      `json:"auto_stop,omitempty"`
	AllowOvertime   bool      `json:"allow_overtime,omitempty"`
}

// TimerSnapshot is the serializable view of a timer at one instant.
// It is what goes over the wire in timer_update frames and what the
// store round-trips.
type TimerSnapshot struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Kind            TimerKind    `json:"kind"`
	DurationSeconds float64      `json:"duration_seconds"`
	CurrentTime     float64      `json:"current_time"`
	DisplayTime     string       `json:"display_time"`
	WarningLevel    WarningLevel `json:"warning_level"`
	State           TimerState   `json:"state"`
	WrapUpYellow    float64      `json:"wrap_up_yellow,omitempty"`
	WrapUpRed       float64      `json:"wrap_up_red,omitempty"`
	AutoStart       bool         `json:"auto_start,omitempty"`
	AutoStop        bool         `json:"auto_stop,omitempty"`
	AllowOvertime   bool         `json:"allow_overtime,omitempty"`
}

// Control actions accepted over both the HTTP and WebSocket paths.
const (
	ActionStart   = "start"
	ActionStop    = "stop"
	ActionPause   = "pause"
	ActionReset   = "reset"
	ActionAddTime = "add_time"
)
