package service

import (
	"context"
	"errors"

	"stagetimer/internal/hub"
	"stagetimer/internal/logger"
	"stagetimer/internal/models"
	"stagetimer/internal/repository"
	"stagetimer/internal/timer"

	"github.com/jonboulle/clockwork"
)

// Domain errors surfaced to the HTTP layer for status mapping.
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomLimit       = errors.New("room limit reached")
	ErrConnectionLimit = errors.New("connection limit reached for room")
	ErrInvalidAction   = errors.New("invalid control action")
	ErrInvalidMessage  = errors.New("invalid message")
	ErrWrongPassword   = errors.New("wrong room password")
)

// Rooms is the orchestration surface: room lifecycle, timer control,
// display messages, and device/connection handling. Every mutating
// operation runs inside the room's critical section and broadcasts before
// releasing it, so delivery order always matches application order.
type Rooms interface {
	CreateRoom(ctx context.Context, title, password string) (models.RoomSnapshot, error)
	GetRoom(roomID string) (models.RoomSnapshot, error)
	RemoveRoom(ctx context.Context, roomID string) error

	AddTimer(ctx context.Context, roomID string, cfg models.TimerConfig) (models.TimerSnapshot, error)
	RemoveTimer(ctx context.Context, roomID, timerID string) error
	ListTimers(roomID string) ([]models.TimerSnapshot, error)
	ControlTimer(ctx context.Context, roomID, timerID, action string, data *models.ControlData) (models.TimerSnapshot, error)

	CreateMessage(ctx context.Context, roomID string, msg models.Message) (models.Message, error)
	ListDevices(roomID string) ([]models.Device, error)

	Join(conn hub.Conn, roomID, role, name, password string) (string, error)
	Leave(conn hub.Conn)
	Touch(conn hub.Conn)
	UpdateDevice(conn hub.Conn, roomID string, patch models.DeviceUpdate)
	CloseAll()

	Restore(ctx context.Context) error
	Flush(ctx context.Context) error
}

// Limits carries the admission caps from config; zero means unlimited.
type Limits struct {
	MaxRooms              int
	MaxConnectionsPerRoom int
}

// Service aggregates the sub-services behind their interfaces.
type Service struct {
	Rooms
}

// NewService wires the room service to the engine, the connection manager,
// and the snapshot store, and installs the engine's per-tick broadcast
// callback.
func NewService(repo repository.RoomRepo, eng *timer.Engine, mgr *hub.Manager, clock clockwork.Clock, limits Limits, log *logger.Logger) *Service {
	rs := NewRoomService(repo, eng, mgr, clock, limits, log)
	eng.SetUpdateFunc(rs.onTimerTick)
	return &Service{Rooms: rs}
}
