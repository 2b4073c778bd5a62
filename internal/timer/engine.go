package timer

import (
	"context"
	"errors"
	"sync"
	"time"

	"stagetimer/internal/logger"
	"stagetimer/internal/models"

	"github.com/jonboulle/clockwork"
)

// Registry errors.
var (
	ErrDuplicateTimer = errors.New("timer id already exists")
	ErrTimerNotFound  = errors.New("timer not found")
)

// UpdateFunc receives a timer due for a tick, with the cycle's now. The
// subscriber applies Tick and takes the snapshot itself, inside whatever
// ordering domain it broadcasts under, so a tick can never publish state
// older than a concurrently applied control action. Called once per running
// timer per cycle; the engine recovers from panics inside it so one broken
// subscriber cannot stall the loop.
type UpdateFunc func(roomID string, t *Timer, now time.Time)

type entry struct {
	roomID string
	timer  *Timer
}

// Engine owns the timer registry and the periodic tick loop. It guarantees
// at most one timer per id and tolerates tick slippage: every cycle reads a
// fresh now from the clock instead of accumulating from prior ticks.
type Engine struct {
	mu      sync.RWMutex
	entries map[string]entry

	clock    clockwork.Clock
	onUpdate UpdateFunc
	log      *logger.Logger
}

// NewEngine builds an engine around the given clock. The update callback
// may be nil when nothing listens (tests).
func NewEngine(clock clockwork.Clock, onUpdate UpdateFunc, log *logger.Logger) *Engine {
	return &Engine{
		entries:  make(map[string]entry),
		clock:    clock,
		onUpdate: onUpdate,
		log:      log,
	}
}

// SetUpdateFunc installs the per-tick callback. Must be called before Run.
func (e *Engine) SetUpdateFunc(fn UpdateFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onUpdate = fn
}

// Add validates the config, constructs the timer, and registers it under
// the owning room. Safe to call while the tick loop is running. A
// caller-supplied id that is already registered is a conflict.
func (e *Engine) Add(roomID string, cfg models.TimerConfig) (*Timer, error) {
	t, err := New(cfg, e.clock)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.entries[t.ID()]; ok {
		return nil, ErrDuplicateTimer
	}
	e.entries[t.ID()] = entry{roomID: roomID, timer: t}
	return t, nil
}

// Remove stops the timer and drops it from the registry. Removing an
// unknown id is a no-op.
func (e *Engine) Remove(id string) {
	e.mu.Lock()
	ent, ok := e.entries[id]
	delete(e.entries, id)
	e.mu.Unlock()

	if ok {
		ent.timer.Stop()
	}
}

// Get returns the timer for id, or nil when unknown.
func (e *Engine) Get(id string) *Timer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if ent, ok := e.entries[id]; ok {
		return ent.timer
	}
	return nil
}

// RoomOf returns the owning room id for a timer, or "" when unknown.
func (e *Engine) RoomOf(id string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.entries[id].roomID
}

// Run drives the tick loop until ctx is canceled. Each cycle reads a fresh
// now and hands every running timer to the subscriber. A timer removed
// concurrently is skipped silently.
func (e *Engine) Run(ctx context.Context, tick time.Duration) {
	ticker := e.clock.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			e.tickAll(e.clock.Now())
		}
	}
}

// tickAll walks the registry and dispatches every running timer.
func (e *Engine) tickAll(now time.Time) {
	e.mu.RLock()
	batch := make([]entry, 0, len(e.entries))
	for _, ent := range e.entries {
		batch = append(batch, ent)
	}
	onUpdate := e.onUpdate
	e.mu.RUnlock()

	for _, ent := range batch {
		e.tickOne(ent, now, onUpdate)
	}
}

// tickOne hands a single running timer to the subscriber with panic
// isolation: a failure in one timer or its subscriber logs and moves on to
// the next. Without a subscriber the engine ticks the timer itself.
func (e *Engine) tickOne(ent entry, now time.Time, onUpdate UpdateFunc) {
	defer func() {
		if r := recover(); r != nil && e.log != nil {
			e.log.Errorw("tick_failed", "timer_id", ent.timer.ID(), "room_id", ent.roomID, "panic", r)
		}
	}()

	if ent.timer.State() != models.StateRunning {
		return
	}
	if onUpdate == nil {
		ent.timer.Tick(now)
		return
	}
	onUpdate(ent.roomID, ent.timer, now)
}
