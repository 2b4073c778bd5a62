package service

import (
	"context"
	"fmt"

	"stagetimer/internal/models"
	"stagetimer/internal/timer"
)

func timerNotFound(id string) error {
	return fmt.Errorf("%w: %s", timer.ErrTimerNotFound, id)
}

// AddTimer constructs a timer inside the room, honoring auto_start, and
// broadcasts its first snapshot so connected clients render it.
func (s *RoomService) AddTimer(ctx context.Context, roomID string, cfg models.TimerConfig) (models.TimerSnapshot, error) {
	e, err := s.entry(roomID)
	if err != nil {
		return models.TimerSnapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, err := s.engine.Add(roomID, cfg)
	if err != nil {
		return models.TimerSnapshot{}, err
	}
	e.room.TimerOrder = append(e.room.TimerOrder, t.ID())

	if cfg.AutoStart {
		t.Start()
		e.room.ActiveTimerID = t.ID()
	}

	snap := t.Snapshot()
	s.hub.Broadcast(roomID, models.TimerUpdateFrame(snap), nil)

	if err := s.repo.SaveRoom(ctx, *e.room); err != nil {
		return models.TimerSnapshot{}, err
	}
	if err := s.persistTimers(ctx, e); err != nil {
		return models.TimerSnapshot{}, err
	}
	return snap, nil
}

// RemoveTimer stops and drops a timer from its room.
func (s *RoomService) RemoveTimer(ctx context.Context, roomID, timerID string) error {
	e, err := s.entry(roomID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if s.engine.Get(timerID) == nil || s.engine.RoomOf(timerID) != roomID {
		return timerNotFound(timerID)
	}
	s.engine.Remove(timerID)
	e.room.TimerOrder = removeString(e.room.TimerOrder, timerID)
	if e.room.ActiveTimerID == timerID {
		e.room.ActiveTimerID = ""
	}

	if err := s.repo.SaveRoom(ctx, *e.room); err != nil {
		return err
	}
	return s.persistTimers(ctx, e)
}

// ListTimers returns the room's timer snapshots in creation order.
func (s *RoomService) ListTimers(roomID string) ([]models.TimerSnapshot, error) {
	e, err := s.entry(roomID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.TimerSnapshot, 0, len(e.room.TimerOrder))
	for _, id := range e.room.TimerOrder {
		if t := s.engine.Get(id); t != nil {
			out = append(out, t.Snapshot())
		}
	}
	return out, nil
}

// ControlTimer applies a control action under the room section and emits
// the timer_control echo followed by the timer_update snapshot. That frame
// order is part of the protocol contract: the echo lets controller UIs
// flash the pressed button before the state lands.
func (s *RoomService) ControlTimer(ctx context.Context, roomID, timerID, action string, data *models.ControlData) (models.TimerSnapshot, error) {
	e, err := s.entry(roomID)
	if err != nil {
		return models.TimerSnapshot{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t := s.engine.Get(timerID)
	if t == nil || s.engine.RoomOf(timerID) != roomID {
		return models.TimerSnapshot{}, timerNotFound(timerID)
	}

	switch action {
	case models.ActionStart:
		t.Start()
		e.room.ActiveTimerID = timerID
	case models.ActionStop, models.ActionReset:
		t.Stop()
		if e.room.ActiveTimerID == timerID {
			e.room.ActiveTimerID = ""
		}
	case models.ActionPause:
		t.Pause()
	case models.ActionAddTime:
		if data == nil {
			return models.TimerSnapshot{}, ErrInvalidAction
		}
		t.AddTime(data.Seconds)
	default:
		return models.TimerSnapshot{}, ErrInvalidAction
	}

	snap := t.Snapshot()
	s.hub.Broadcast(roomID, models.ControlEchoFrame(action, timerID), nil)
	s.hub.Broadcast(roomID, models.TimerUpdateFrame(snap), nil)

	if err := s.persistTimers(ctx, e); err != nil && s.log != nil {
		s.log.Errorw("timer_persist_failed", "room_id", roomID, "timer_id", timerID, "err", err)
	}
	return snap, nil
}

func removeString(ss []string, want string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != want {
			out = append(out, s)
		}
	}
	return out
}
