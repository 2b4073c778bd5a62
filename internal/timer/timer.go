package timer

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"stagetimer/internal/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Validation errors returned by the factory.
var (
	ErrInvalidKind       = errors.New("invalid timer kind: must be countdown, countup, clock, or hidden")
	ErrInvalidDuration   = errors.New("invalid duration: must be >= 0")
	ErrInvalidThresholds = errors.New("invalid wrap-up thresholds: need yellow >= red >= 0")
)

// Timer is a single countdown/countup/clock instance. All exported methods
// take the timer's lock; callers never observe a half-applied transition.
//
// current_time is always re-derived from the clock source via the start
// reference, the paused accumulator, and the AddTime offset, so a Tick at
// any instant lands on the exact value regardless of tick phase.
type Timer struct {
	mu sync.Mutex

	id       string
	title    string
	kind     models.TimerKind
	duration float64 // seconds, immutable

	yellow        float64
	red           float64
	autoStart     bool
	autoStop      bool
	allowOvertime bool

	clock clockwork.Clock

	state        models.TimerState
	startRef     time.Time     // latched on start; zero while stopped
	pausedAccum  time.Duration // total time spent paused since startRef
	pauseInstant time.Time     // set while paused
	offset       float64       // seconds granted/taken by AddTime
	current      float64       // last derived display value
}

// New constructs a timer from config, validating kind, duration, and
// thresholds. A blank ID gets a generated UUID.
func New(cfg models.TimerConfig, clock clockwork.Clock) (*Timer, error) {
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("%w (got %q)", ErrInvalidKind, cfg.Kind)
	}
	if cfg.DurationSeconds < 0 {
		return nil, ErrInvalidDuration
	}
	if cfg.WrapUpRed < 0 || cfg.WrapUpYellow < cfg.WrapUpRed {
		return nil, ErrInvalidThresholds
	}
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	t := &Timer{
		id:            id,
		title:         cfg.Title,
		kind:          cfg.Kind,
		duration:      cfg.DurationSeconds,
		yellow:        cfg.WrapUpYellow,
		red:           cfg.WrapUpRed,
		autoStart:     cfg.AutoStart,
		autoStop:      cfg.AutoStop,
		allowOvertime: cfg.AllowOvertime,
		clock:         clock,
		state:         models.StateStopped,
	}
	t.current = t.restingValue()
	return t, nil
}

// ID returns the immutable timer id.
func (t *Timer) ID() string { return t.id }

// Kind returns the timer kind.
func (t *Timer) Kind() models.TimerKind { return t.kind }

// restingValue is current_time in the stopped state.
func (t *Timer) restingValue() float64 {
	switch t.kind {
	case models.KindCountdown:
		return t.duration
	case models.KindClock:
		return secondsOfDay(t.clock.Now())
	default:
		return 0
	}
}

// Start latches the start reference, or compensates the paused accumulator
// when resuming. Repeated calls while running are no-ops, as is starting a
// finished timer.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	switch t.state {
	case models.StateStopped:
		t.startRef = now
		t.pausedAccum = 0
	case models.StatePaused:
		t.pausedAccum += now.Sub(t.pauseInstant)
		t.pauseInstant = time.Time{}
	default:
		return
	}
	t.state = models.StateRunning
	// no finish transition here: a zero-duration countdown still reports
	// one running update before the next tick finishes it
	t.deriveUnchecked(now)
	t.clamp()
}

// Stop returns the timer to its initial resting state. Reset is the same
// operation under a different API verb.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = models.StateStopped
	t.startRef = time.Time{}
	t.pauseInstant = time.Time{}
	t.pausedAccum = 0
	t.offset = 0
	t.current = t.restingValue()
}

// Reset is equivalent to Stop.
func (t *Timer) Reset() { t.Stop() }

// Pause records the pause instant. Only valid from running; a no-op
// otherwise. Clock timers cannot pause.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != models.StateRunning || t.kind == models.KindClock {
		return
	}
	now := t.clock.Now()
	t.derive(now)
	if t.state != models.StateRunning {
		// derive can land on finished at the zero boundary
		return
	}
	t.pauseInstant = now
	t.state = models.StatePaused
}

// AddTime grants (positive) or takes (negative) seconds in the direction
// the UI verb means: more time to finish. Valid in any state. A finished
// countdown that gains time goes back to running.
func (t *Timer) AddTime(seconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.kind == models.KindClock || t.kind == models.KindHidden {
		return
	}
	t.offset += float64(seconds)
	now := t.clock.Now()
	if t.state == models.StateFinished {
		t.deriveUnchecked(now)
		if t.kind == models.KindCountdown && t.current > 0 {
			t.state = models.StateRunning
		}
		if t.kind == models.KindCountup && t.current < t.duration {
			t.state = models.StateRunning
		}
	}
	t.derive(now)
}

// Tick advances the timer to wall-time now. Idempotent: the value depends
// only on now, never on how many ticks happened before.
func (t *Timer) Tick(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.derive(now)
}

// runningElapsed is seconds of actual running time at instant now.
func (t *Timer) runningElapsed(now time.Time) float64 {
	if t.startRef.IsZero() {
		return 0
	}
	ref := now
	if t.state == models.StatePaused {
		ref = t.pauseInstant
	}
	return ref.Sub(t.startRef).Seconds() - t.pausedAccum.Seconds()
}

// deriveUnchecked recomputes current without applying clamp or finish
// transitions.
func (t *Timer) deriveUnchecked(now time.Time) {
	switch t.kind {
	case models.KindCountdown:
		t.current = t.duration + t.offset - t.runningElapsed(now)
	case models.KindCountup:
		t.current = t.runningElapsed(now) - t.offset
	case models.KindClock:
		t.current = secondsOfDay(now)
	case models.KindHidden:
		t.current = 0
	}
}

// clamp bounds current without touching state.
func (t *Timer) clamp() {
	switch t.kind {
	case models.KindCountdown:
		if t.current <= 0 && !t.allowOvertime {
			t.current = 0
		}
	case models.KindCountup:
		if t.current < 0 {
			t.current = 0
		}
		if t.current >= t.duration && t.autoStop && !t.allowOvertime {
			t.current = t.duration
		}
	}
}

// derive recomputes current from now and applies clamping and the finish
// transition. Caller holds the lock.
func (t *Timer) derive(now time.Time) {
	switch t.kind {
	case models.KindClock:
		t.current = secondsOfDay(now)
		return
	case models.KindHidden:
		t.current = 0
		return
	}
	if t.state == models.StateFinished {
		return
	}

	t.deriveUnchecked(now)

	switch t.kind {
	case models.KindCountdown:
		if t.current <= 0 && !t.allowOvertime {
			t.current = 0
			if t.state == models.StateRunning {
				t.state = models.StateFinished
			}
		}
	case models.KindCountup:
		if t.current < 0 {
			t.current = 0
		}
		if t.current >= t.duration && t.autoStop && !t.allowOvertime {
			t.current = t.duration
			if t.state == models.StateRunning {
				t.state = models.StateFinished
			}
		}
	}
}

// State returns the current lifecycle state.
func (t *Timer) State() models.TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// CurrentTime returns the last derived display value in seconds.
func (t *Timer) CurrentTime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// WarningLevel derives the display colour. Only countdown timers warn.
func (t *Timer) WarningLevel() models.WarningLevel {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.warningLevel()
}

func (t *Timer) warningLevel() models.WarningLevel {
	if t.kind != models.KindCountdown {
		return models.WarningNormal
	}
	switch {
	case t.current <= t.red:
		return models.WarningRed
	case t.current <= t.yellow:
		return models.WarningYellow
	default:
		return models.WarningNormal
	}
}

// DisplayTime formats current_time as HH:MM:SS when hours are present
// (always for the clock kind), else MM:SS. Overtime gets a leading minus.
func (t *Timer) DisplayTime() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.displayTime()
}

func (t *Timer) displayTime() string {
	if t.kind == models.KindHidden {
		return ""
	}
	return FormatSeconds(t.current, t.kind == models.KindClock)
}

// Snapshot returns the serializable view of the timer.
func (t *Timer) Snapshot() models.TimerSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return models.TimerSnapshot{
		ID:              t.id,
		Title:           t.title,
		Kind:            t.kind,
		DurationSeconds: t.duration,
		CurrentTime:     t.current,
		DisplayTime:     t.displayTime(),
		WarningLevel:    t.warningLevel(),
		State:           t.state,
		WrapUpYellow:    t.yellow,
		WrapUpRed:       t.red,
		AutoStart:       t.autoStart,
		AutoStop:        t.autoStop,
		AllowOvertime:   t.allowOvertime,
	}
}

// Restore rehydrates state and current_time from a persisted snapshot.
// Running timers come back paused at their persisted value so an operator
// can resume them; the clock kind re-derives from the wall clock.
func (t *Timer) Restore(snap models.TimerSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.kind == models.KindClock || t.kind == models.KindHidden {
		return
	}
	now := t.clock.Now()
	switch snap.State {
	case models.StateRunning, models.StatePaused:
		t.state = models.StatePaused
		t.startRef = now
		t.pauseInstant = now
		t.pausedAccum = 0
		// offset positions current at the persisted value
		switch t.kind {
		case models.KindCountdown:
			t.offset = snap.CurrentTime - t.duration
		case models.KindCountup:
			t.offset = -snap.CurrentTime
		}
	case models.StateFinished:
		t.state = models.StateFinished
	default:
		t.state = models.StateStopped
	}
	t.deriveUnchecked(now)
	if t.state == models.StateFinished {
		t.current = snap.CurrentTime
	}
	if t.state == models.StateStopped {
		t.current = t.restingValue()
	}
}

// FormatSeconds renders a seconds value as MM:SS, or HH:MM:SS when hours
// are present or forced.
func FormatSeconds(secs float64, forceHours bool) string {
	neg := secs < 0
	total := int(math.Abs(secs))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	var out string
	if h > 0 || forceHours {
		out = fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	} else {
		out = fmt.Sprintf("%02d:%02d", m, s)
	}
	if neg {
		return "-" + out
	}
	return out
}

// secondsOfDay converts a wall-clock instant to seconds since local
// midnight.
func secondsOfDay(now time.Time) float64 {
	h, m, s := now.Clock()
	return float64(h*3600 + m*60 + s)
}
