package hub

import (
	"sync"

	"stagetimer/internal/logger"
	"stagetimer/internal/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Conn is the transport the manager fans out to. Production wraps
// *websocket.Conn (see wsconn.go); tests substitute an in-memory fake.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type connInfo struct {
	roomID string
	device models.Device
}

type roomConns struct {
	// insertion-ordered so broadcasts walk connections deterministically
	order []Conn
	conns map[Conn]*connInfo
}

// Manager tracks live connections per room and routes frames to them.
// Connection set, device records, and the room→conn index live in one
// aggregate behind one lock so they can never drift apart.
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*roomConns
	index map[Conn]string // conn -> room id

	clock clockwork.Clock
	log   *logger.Logger
}

// NewManager builds an empty connection manager.
func NewManager(clock clockwork.Clock, log *logger.Logger) *Manager {
	return &Manager{
		rooms: make(map[string]*roomConns),
		index: make(map[Conn]string),
		clock: clock,
		log:   log,
	}
}

// Connect registers conn under roomID with a fresh device record, sends it
// the welcome frame (its device id, the room id, the current device list,
// and the recent message tail), and announces device_connected to everyone
// else in the room. Returns the allocated device id.
func (m *Manager) Connect(conn Conn, roomID, role, name string, tail []models.Message) string {
	now := m.clock.Now().UTC()
	dev := models.Device{
		ID:          uuid.NewString(),
		Name:        name,
		Role:        models.NormalizeRole(role),
		ConnectedAt: now,
		LastSeen:    now,
	}

	m.mu.Lock()
	rc, ok := m.rooms[roomID]
	if !ok {
		rc = &roomConns{conns: make(map[Conn]*connInfo)}
		m.rooms[roomID] = rc
	}
	rc.order = append(rc.order, conn)
	rc.conns[conn] = &connInfo{roomID: roomID, device: dev}
	m.index[conn] = roomID
	devices := rc.deviceList()
	m.mu.Unlock()

	m.Send(conn, models.WelcomeFrame(roomID, dev.ID, devices, tail))
	m.Broadcast(roomID, models.DeviceFrame(models.FrameDeviceConnected, dev), conn)
	return dev.ID
}

// Disconnect removes the connection's device record and tells the rest of
// the room. Idempotent; unknown connections are ignored. A room entry with
// zero connections is dropped from the manager.
func (m *Manager) Disconnect(conn Conn) {
	m.mu.Lock()
	roomID, ok := m.index[conn]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.index, conn)
	rc := m.rooms[roomID]
	info := rc.conns[conn]
	delete(rc.conns, conn)
	rc.dropFromOrder(conn)
	empty := len(rc.conns) == 0
	if empty {
		delete(m.rooms, roomID)
	}
	m.mu.Unlock()

	_ = conn.Close()
	if m.log != nil {
		m.log.Infow("device_disconnected", "room_id", roomID, "device_id", info.device.ID)
	}
	if !empty {
		m.Broadcast(roomID, models.DeviceFrame(models.FrameDeviceDisconnected, info.device), nil)
	}
}

// Send writes one frame to one connection. An I/O failure disconnects it.
func (m *Manager) Send(conn Conn, frame models.OutboundFrame) {
	if err := conn.WriteJSON(frame); err != nil {
		if m.log != nil {
			m.log.Infow("ws_write_failed", "err", err)
		}
		m.Disconnect(conn)
	}
}

// Broadcast sends a frame to every connection in the room except the
// optional excluded one. Write failures are collected and the failed
// connections disconnected afterwards; one slow or dead consumer never
// stops delivery to the others.
func (m *Manager) Broadcast(roomID string, frame models.OutboundFrame, except Conn) {
	m.mu.Lock()
	rc, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return
	}
	targets := make([]Conn, 0, len(rc.order))
	for _, c := range rc.order {
		if c != except {
			targets = append(targets, c)
		}
	}
	m.mu.Unlock()

	var failed []Conn
	for _, c := range targets {
		if err := c.WriteJSON(frame); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		if m.log != nil {
			m.log.Infow("ws_broadcast_write_failed", "room_id", roomID)
		}
		m.Disconnect(c)
	}
}

// RoomOf returns the room a connection is registered in, or "" for an
// unknown connection.
func (m *Manager) RoomOf(conn Conn) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index[conn]
}

// Devices returns the device records of a room in connection order.
func (m *Manager) Devices(roomID string) []models.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	rc, ok := m.rooms[roomID]
	if !ok {
		return nil
	}
	return rc.deviceList()
}

// ConnectionCount returns the number of live connections in a room.
func (m *Manager) ConnectionCount(roomID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rc, ok := m.rooms[roomID]; ok {
		return len(rc.conns)
	}
	return 0
}

// Touch refreshes last_seen for the connection's device. Called on every
// inbound frame.
func (m *Manager) Touch(conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if roomID, ok := m.index[conn]; ok {
		if info, ok := m.rooms[roomID].conns[conn]; ok {
			info.device.LastSeen = m.clock.Now().UTC()
		}
	}
}

// DeviceOf returns the device record for a connection, or nil when the
// connection is not registered.
func (m *Manager) DeviceOf(conn Conn) *models.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	if roomID, ok := m.index[conn]; ok {
		if info, ok := m.rooms[roomID].conns[conn]; ok {
			d := info.device
			return &d
		}
	}
	return nil
}

// UpdateDevice patches the device record behind conn and returns the
// updated copy, or nil when the connection is unknown.
func (m *Manager) UpdateDevice(conn Conn, patch models.DeviceUpdate) *models.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	roomID, ok := m.index[conn]
	if !ok {
		return nil
	}
	info, ok := m.rooms[roomID].conns[conn]
	if !ok {
		return nil
	}
	if patch.Name != nil {
		info.device.Name = *patch.Name
	}
	if patch.Role != nil {
		info.device.Role = models.NormalizeRole(*patch.Role)
	}
	d := info.device
	return &d
}

// CloseRoom disconnects every connection in the room.
func (m *Manager) CloseRoom(roomID string) {
	m.mu.Lock()
	rc, ok := m.rooms[roomID]
	var targets []Conn
	if ok {
		targets = append(targets, rc.order...)
	}
	m.mu.Unlock()

	for _, c := range targets {
		m.Disconnect(c)
	}
}

// CloseAll disconnects everything; used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	var targets []Conn
	for _, rc := range m.rooms {
		targets = append(targets, rc.order...)
	}
	m.mu.Unlock()

	for _, c := range targets {
		m.Disconnect(c)
	}
}

func (rc *roomConns) deviceList() []models.Device {
	out := make([]models.Device, 0, len(rc.order))
	for _, c := range rc.order {
		if info, ok := rc.conns[c]; ok {
			out = append(out, info.device)
		}
	}
	return out
}

func (rc *roomConns) dropFromOrder(conn Conn) {
	for i, c := range rc.order {
		if c == conn {
			rc.order = append(rc.order[:i], rc.order[i+1:]...)
			return
		}
	}
}
