package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"stagetimer/internal/hub"
	"stagetimer/internal/logger"
	"stagetimer/internal/models"
	"stagetimer/internal/repository"
	"stagetimer/internal/timer"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
)

// messageTailLen bounds the per-room message history kept for late joiners.
const messageTailLen = 20

// roomEntry pairs a room with its critical section. Every mutation of the
// room, its timers, or its broadcast stream holds mu for the whole
// mutate-then-broadcast pair, which is what makes per-room delivery order
// equal application order.
type roomEntry struct {
	mu       sync.Mutex
	room     *models.Room
	messages []models.Message
}

// RoomService owns the room registry and orchestrates the engine, the
// connection manager, and the snapshot store.
type RoomService struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry

	repo   repository.RoomRepo
	engine *timer.Engine
	hub    *hub.Manager
	clock  clockwork.Clock
	limits Limits
	log    *logger.Logger
}

// NewRoomService builds an empty registry around its collaborators.
func NewRoomService(repo repository.RoomRepo, eng *timer.Engine, mgr *hub.Manager, clock clockwork.Clock, limits Limits, log *logger.Logger) *RoomService {
	return &RoomService{
		rooms:  make(map[string]*roomEntry),
		repo:   repo,
		engine: eng,
		hub:    mgr,
		clock:  clock,
		limits: limits,
		log:    log,
	}
}

// newRoomID returns a short URL-safe token (first group of a UUID).
func newRoomID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// entry resolves a room or reports ErrRoomNotFound.
func (s *RoomService) entry(roomID string) (*roomEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return e, nil
}

// CreateRoom registers a new room, hashing the optional password, and
// persists it.
func (s *RoomService) CreateRoom(ctx context.Context, title, password string) (models.RoomSnapshot, error) {
	var hash string
	if password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return models.RoomSnapshot{}, err
		}
		hash = string(b)
	}

	room := &models.Room{
		ID:           newRoomID(),
		Title:        title,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now().UTC(),
	}

	s.mu.Lock()
	if s.limits.MaxRooms > 0 && len(s.rooms) >= s.limits.MaxRooms {
		s.mu.Unlock()
		return models.RoomSnapshot{}, ErrRoomLimit
	}
	s.rooms[room.ID] = &roomEntry{room: room}
	s.mu.Unlock()

	if err := s.repo.SaveRoom(ctx, *room); err != nil {
		// unregister so a failed create never occupies the registry
		s.mu.Lock()
		delete(s.rooms, room.ID)
		s.mu.Unlock()
		return models.RoomSnapshot{}, err
	}
	return s.snapshot(room), nil
}

// GetRoom returns a room snapshot.
func (s *RoomService) GetRoom(roomID string) (models.RoomSnapshot, error) {
	e, err := s.entry(roomID)
	if err != nil {
		return models.RoomSnapshot{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return s.snapshot(e.room), nil
}

// RemoveRoom drops the room, its timers, and every live connection to it.
// Teardown runs inside the room section so the closing disconnect
// broadcasts stay ordered against any in-flight control or tick.
func (s *RoomService) RemoveRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	e, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return ErrRoomNotFound
	}
	delete(s.rooms, roomID)
	s.mu.Unlock()

	e.mu.Lock()
	for _, id := range e.room.TimerOrder {
		s.engine.Remove(id)
	}
	s.hub.CloseRoom(roomID)
	e.mu.Unlock()

	return s.repo.DeleteRoom(ctx, roomID)
}

// Join admits a connection to a room: password check, admission cap, then
// device registration inside the room section so the welcome and
// device_connected frames slot into the room's event order.
func (s *RoomService) Join(conn hub.Conn, roomID, role, name, password string) (string, error) {
	e, err := s.entry(roomID)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.room.HasPassword() {
		if bcrypt.CompareHashAndPassword([]byte(e.room.PasswordHash), []byte(password)) != nil {
			return "", ErrWrongPassword
		}
	}
	if max := s.limits.MaxConnectionsPerRoom; max > 0 && s.hub.ConnectionCount(roomID) >= max {
		return "", ErrConnectionLimit
	}

	tail := append([]models.Message(nil), e.messages...)
	return s.hub.Connect(conn, roomID, role, name, tail), nil
}

// Leave disconnects a connection. The disconnect runs inside the room
// section so the device_disconnected broadcast serializes with control and
// tick broadcasts; every connection in the room sees the same event order.
// Safe on unknown connections.
func (s *RoomService) Leave(conn hub.Conn) {
	if roomID := s.hub.RoomOf(conn); roomID != "" {
		if e, err := s.entry(roomID); err == nil {
			e.mu.Lock()
			defer e.mu.Unlock()
			s.hub.Disconnect(conn)
			return
		}
	}
	s.hub.Disconnect(conn)
}

// CloseAll disconnects every connection room by room, each under its room
// section; used at shutdown. A final hub sweep catches connections whose
// room vanished mid-close.
func (s *RoomService) CloseAll() {
	s.mu.RLock()
	entries := make(map[string]*roomEntry, len(s.rooms))
	for id, e := range s.rooms {
		entries[id] = e
	}
	s.mu.RUnlock()

	for id, e := range entries {
		e.mu.Lock()
		s.hub.CloseRoom(id)
		e.mu.Unlock()
	}
	s.hub.CloseAll()
}

// Touch refreshes the device's last_seen.
func (s *RoomService) Touch(conn hub.Conn) {
	s.hub.Touch(conn)
}

// UpdateDevice patches the connection's device record and announces the
// change to the room.
func (s *RoomService) UpdateDevice(conn hub.Conn, roomID string, patch models.DeviceUpdate) {
	e, err := s.entry(roomID)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if d := s.hub.UpdateDevice(conn, patch); d != nil {
		s.hub.Broadcast(roomID, models.DeviceFrame(models.FrameDeviceUpdated, *d), nil)
	}
}

// ListDevices returns the room's live device records.
func (s *RoomService) ListDevices(roomID string) ([]models.Device, error) {
	if _, err := s.entry(roomID); err != nil {
		return nil, err
	}
	return s.hub.Devices(roomID), nil
}

// onTimerTick is the engine's per-tick callback. It borrows the room
// section per timer: tick, snapshot, and broadcast all happen inside it, so
// a tick update can never carry state older than a control action whose
// echo already went out. Persists the terminal snapshot when a timer
// finishes.
func (s *RoomService) onTimerTick(roomID string, t *timer.Timer, now time.Time) {
	e, err := s.entry(roomID)
	if err != nil {
		// room removed while the tick was in flight
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	t.Tick(now)
	snap := t.Snapshot()
	s.hub.Broadcast(roomID, models.TimerUpdateFrame(snap), nil)

	if snap.State == models.StateFinished {
		if err := s.persistTimers(context.Background(), e); err != nil && s.log != nil {
			s.log.Errorw("timer_persist_failed", "room_id", roomID, "timer_id", snap.ID, "err", err)
		}
	}
}

// Restore rehydrates rooms and timers from the store at boot. Timers that
// were running come back paused at their persisted value.
func (s *RoomService) Restore(ctx context.Context) error {
	rooms, err := s.repo.LoadRooms(ctx)
	if err != nil {
		return err
	}

	for i := range rooms {
		room := rooms[i]
		snaps, err := s.repo.LoadTimers(ctx, room.ID)
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			t, err := s.engine.Add(room.ID, configFromSnapshot(snap))
			if err != nil {
				if s.log != nil {
					s.log.Errorw("timer_restore_failed", "room_id", room.ID, "timer_id", snap.ID, "err", err)
				}
				continue
			}
			t.Restore(snap)
		}
		tail, err := s.repo.ListMessages(ctx, room.ID, messageTailLen)
		if err != nil {
			return err
		}

		s.mu.Lock()
		s.rooms[room.ID] = &roomEntry{room: &room, messages: tail}
		s.mu.Unlock()
	}
	return nil
}

// Flush persists every room and its timer snapshots; called at shutdown.
func (s *RoomService) Flush(ctx context.Context) error {
	s.mu.RLock()
	entries := make([]*roomEntry, 0, len(s.rooms))
	for _, e := range s.rooms {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for _, e := range entries {
		e.mu.Lock()
		err := s.repo.SaveRoom(ctx, *e.room)
		if err == nil {
			err = s.persistTimers(ctx, e)
		}
		e.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// persistTimers saves the room's current timer snapshots. Caller holds the
// room section.
func (s *RoomService) persistTimers(ctx context.Context, e *roomEntry) error {
	snaps := make([]models.TimerSnapshot, 0, len(e.room.TimerOrder))
	for _, id := range e.room.TimerOrder {
		if t := s.engine.Get(id); t != nil {
			snaps = append(snaps, t.Snapshot())
		}
	}
	return s.repo.SaveTimers(ctx, e.room.ID, snaps)
}

// snapshot builds the API view of a room.
func (s *RoomService) snapshot(room *models.Room) models.RoomSnapshot {
	return models.RoomSnapshot{
		ID:            room.ID,
		Title:         room.Title,
		CreatedAt:     room.CreatedAt,
		TimerOrder:    append([]string(nil), room.TimerOrder...),
		ActiveTimerID: room.ActiveTimerID,
		DeviceCount:   s.hub.ConnectionCount(room.ID),
	}
}

// configFromSnapshot rebuilds the construction config of a persisted timer.
func configFromSnapshot(snap models.TimerSnapshot) models.TimerConfig {
	return models.TimerConfig{
		ID:              snap.ID,
		Title:           snap.Title,
		DurationSeconds: snap.DurationSeconds,
		Kind:            snap.Kind,
		WrapUpYellow:    snap.WrapUpYellow,
		WrapUpRed:       snap.WrapUpRed,
		AutoStart:       snap.AutoStart,
		AutoStop:        snap.AutoStop,
		AllowOvertime:   snap.AllowOvertime,
	}
}
