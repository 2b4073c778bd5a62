package handlers

import (
	"context"

	"stagetimer/internal/hub"
	"stagetimer/internal/models"
	"stagetimer/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockRooms struct {
	room      models.RoomSnapshot
	roomErr   error
	removeErr error

	snap       models.TimerSnapshot
	snapErr    error
	timers     []models.TimerSnapshot
	timersErr  error
	controlErr error

	msg    models.Message
	msgErr error

	devices    []models.Device
	devicesErr error

	lastTitle    string
	lastPassword string
	lastRoomID   string
	lastTimerID  string
	lastCfg      models.TimerConfig
	lastAction   string
	lastData     *models.ControlData
	lastMsg      models.Message

	createCalls  int
	removeCalls  int
	controlCalls int
}

func (m *mockRooms) CreateRoom(ctx context.Context, title, password string) (models.RoomSnapshot, error) {
	m.createCalls++
	m.lastTitle = title
	m.lastPassword = password
	return m.room, m.roomErr
}

func (m *mockRooms) GetRoom(roomID string) (models.RoomSnapshot, error) {
	m.lastRoomID = roomID
	return m.room, m.roomErr
}

func (m *mockRooms) RemoveRoom(ctx context.Context, roomID string) error {
	m.removeCalls++
	m.lastRoomID = roomID
	return m.removeErr
}

func (m *mockRooms) AddTimer(ctx context.Context, roomID string, cfg models.TimerConfig) (models.TimerSnapshot, error) {
	m.lastRoomID = roomID
	m.lastCfg = cfg
	return m.snap, m.snapErr
}

func (m *mockRooms) RemoveTimer(ctx context.Context, roomID, timerID string) error {
	m.lastRoomID = roomID
	m.lastTimerID = timerID
	return m.snapErr
}

func (m *mockRooms) ListTimers(roomID string) ([]models.TimerSnapshot, error) {
	m.lastRoomID = roomID
	return m.timers, m.timersErr
}

func (m *mockRooms) ControlTimer(ctx context.Context, roomID, timerID, action string, data *models.ControlData) (models.TimerSnapshot, error) {
	m.controlCalls++
	m.lastRoomID = roomID
	m.lastTimerID = timerID
	m.lastAction = action
	m.lastData = data
	return m.snap, m.controlErr
}

func (m *mockRooms) CreateMessage(ctx context.Context, roomID string, msg models.Message) (models.Message, error) {
	m.lastRoomID = roomID
	m.lastMsg = msg
	return m.msg, m.msgErr
}

func (m *mockRooms) ListDevices(roomID string) ([]models.Device, error) {
	m.lastRoomID = roomID
	return m.devices, m.devicesErr
}

func (m *mockRooms) Join(conn hub.Conn, roomID, role, name, password string) (string, error) {
	return "", nil
}
func (m *mockRooms) Leave(conn hub.Conn) {}
func (m *mockRooms) Touch(conn hub.Conn) {}
func (m *mockRooms) UpdateDevice(conn hub.Conn, roomID string, patch models.DeviceUpdate) {}
func (m *mockRooms) CloseAll()                         {}
func (m *mockRooms) Restore(ctx context.Context) error { return nil }
func (m *mockRooms) Flush(ctx context.Context) error   { return nil }

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, DefaultWSConfig(), nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
