package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stagetimer/internal/models"
	"stagetimer/internal/service"
	"stagetimer/internal/timer"
)

func TestRoomHandlers_CreateGetDelete(t *testing.T) {
	rooms := &mockRooms{room: models.RoomSnapshot{ID: "ab12cd34", Title: "All hands", CreatedAt: time.Now()}}
	r := newTestRouter(&service.Service{Rooms: rooms})

	// POST /rooms → 200 with room and page urls
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms", bytes.NewBufferString(`{"title":"All hands","password":"s3cret"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("create status=%d, body=%s", w.Code, w.Body.String())
	}
	if rooms.lastTitle != "All hands" || rooms.lastPassword != "s3cret" {
		t.Fatalf("wrong CreateRoom params: %q %q", rooms.lastTitle, rooms.lastPassword)
	}
	var created struct {
		Room models.RoomSnapshot `json:"room"`
		URLs map[string]string   `json:"urls"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal create response: %v", err)
	}
	if created.Room.ID != "ab12cd34" {
		t.Fatalf("unexpected room: %+v", created.Room)
	}
	if created.URLs["controller"] != "/controller/ab12cd34" || created.URLs["viewer"] != "/viewer/ab12cd34" {
		t.Fatalf("unexpected urls: %+v", created.URLs)
	}

	// missing title → 400 before the service is reached
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/rooms", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing title, got %d", w.Code)
	}
	if rooms.createCalls != 1 {
		t.Fatalf("CreateRoom calls=%d, want 1", rooms.createCalls)
	}

	// GET /rooms/:id → 200 with snapshot
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/rooms/ab12cd34", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get status=%d, body=%s", w.Code, w.Body.String())
	}
	if rooms.lastRoomID != "ab12cd34" {
		t.Fatalf("GetRoom id=%q", rooms.lastRoomID)
	}

	// DELETE /rooms/:id → 200
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/rooms/ab12cd34", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delete status=%d, body=%s", w.Code, w.Body.String())
	}
	if rooms.removeCalls != 1 {
		t.Fatalf("RemoveRoom calls=%d, want 1", rooms.removeCalls)
	}
}

func TestRoomHandlers_DomainErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"room not found", service.ErrRoomNotFound, http.StatusNotFound},
		{"timer not found", timer.ErrTimerNotFound, http.StatusNotFound},
		{"duplicate timer", timer.ErrDuplicateTimer, http.StatusConflict},
		{"invalid kind", timer.ErrInvalidKind, http.StatusBadRequest},
		{"invalid duration", timer.ErrInvalidDuration, http.StatusBadRequest},
		{"invalid thresholds", timer.ErrInvalidThresholds, http.StatusBadRequest},
		{"room limit", service.ErrRoomLimit, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rooms := &mockRooms{snapErr: tc.err}
			r := newTestRouter(&service.Service{Rooms: rooms})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/r1/timers",
				bytes.NewBufferString(`{"title":"x","kind":"countdown","duration_seconds":60}`))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status=%d, want %d (body=%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

func TestTimerHandlers_AddListRemove(t *testing.T) {
	rooms := &mockRooms{
		snap: models.TimerSnapshot{ID: "t1", Kind: models.KindCountdown, DurationSeconds: 600, CurrentTime: 600, State: models.StateStopped},
		timers: []models.TimerSnapshot{
			{ID: "t1"}, {ID: "t2"},
		},
	}
	r := newTestRouter(&service.Service{Rooms: rooms})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/r1/timers",
		bytes.NewBufferString(`{"id":"t1","title":"Keynote","kind":"countdown","duration_seconds":600,"wrap_up_yellow":60,"wrap_up_red":30}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("add status=%d, body=%s", w.Code, w.Body.String())
	}
	if rooms.lastCfg.ID != "t1" || rooms.lastCfg.Kind != models.KindCountdown || rooms.lastCfg.WrapUpYellow != 60 {
		t.Fatalf("wrong AddTimer config: %+v", rooms.lastCfg)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/rooms/r1/timers", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list status=%d, body=%s", w.Code, w.Body.String())
	}
	var listed struct {
		Count  int                    `json:"count"`
		Timers []models.TimerSnapshot `json:"timers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if listed.Count != 2 || len(listed.Timers) != 2 {
		t.Fatalf("unexpected list: %+v", listed)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/rooms/r1/timers/t1", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status=%d, body=%s", w.Code, w.Body.String())
	}
	if rooms.lastTimerID != "t1" {
		t.Fatalf("RemoveTimer id=%q", rooms.lastTimerID)
	}
}

func TestControlTimerHandler(t *testing.T) {
	rooms := &mockRooms{
		snap: models.TimerSnapshot{ID: "t1", State: models.StateRunning, CurrentTime: 630},
	}
	r := newTestRouter(&service.Service{Rooms: rooms})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/r1/timers/t1/control",
		bytes.NewBufferString(`{"action":"add_time","data":{"seconds":30}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("control status=%d, body=%s", w.Code, w.Body.String())
	}
	if rooms.lastAction != models.ActionAddTime {
		t.Fatalf("action=%q", rooms.lastAction)
	}
	if rooms.lastData == nil || rooms.lastData.Seconds != 30 {
		t.Fatalf("data=%+v", rooms.lastData)
	}
	var snap models.TimerSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.CurrentTime != 630 || snap.State != models.StateRunning {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	// missing action → 400 before the service is reached
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/rooms/r1/timers/t1/control", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing action, got %d", w.Code)
	}
	if rooms.controlCalls != 1 {
		t.Fatalf("ControlTimer calls=%d, want 1", rooms.controlCalls)
	}

	// invalid action from the service → 400
	rooms.controlErr = service.ErrInvalidAction
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/rooms/r1/timers/t1/control",
		bytes.NewBufferString(`{"action":"explode"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid action, got %d", w.Code)
	}
}

func TestMessageAndDeviceHandlers(t *testing.T) {
	rooms := &mockRooms{
		msg: models.Message{ID: "m1", Content: "wrap up", Color: "red"},
		devices: []models.Device{
			{ID: "d1", Name: "booth", Role: models.RoleController},
		},
	}
	r := newTestRouter(&service.Service{Rooms: rooms})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms/r1/messages",
		bytes.NewBufferString(`{"content":"wrap up","color":"red","bold":true}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("message status=%d, body=%s", w.Code, w.Body.String())
	}
	if rooms.lastMsg.Content != "wrap up" || !rooms.lastMsg.Bold {
		t.Fatalf("wrong CreateMessage payload: %+v", rooms.lastMsg)
	}

	rooms.msgErr = service.ErrInvalidMessage
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/rooms/r1/messages", bytes.NewBufferString(`{"content":""}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid message, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/rooms/r1/devices", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("devices status=%d, body=%s", w.Code, w.Body.String())
	}
	var devResp struct {
		Count   int             `json:"count"`
		Devices []models.Device `json:"devices"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &devResp); err != nil {
		t.Fatalf("unmarshal devices: %v", err)
	}
	if devResp.Count != 1 || devResp.Devices[0].ID != "d1" {
		t.Fatalf("unexpected devices: %+v", devResp)
	}
}

func TestHealthHandler(t *testing.T) {
	r := newTestRouter(&service.Service{Rooms: &mockRooms{}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("health status=%d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if body["status"] != statusOK {
		t.Fatalf("health body=%v", body)
	}
}
