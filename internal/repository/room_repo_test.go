package repository_test

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"stagetimer/internal/models"
	"stagetimer/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
)

type sqlmockArgumentFunc func(v driver.Value) bool

func (f sqlmockArgumentFunc) Match(v driver.Value) bool {
	return f(v)
}

func TestRoomSQLite_SaveRoom_MarshalsOrderAndUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewRoomSQLite(db)

	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	room := models.Room{
		ID:            "ab12cd34",
		Title:         "All hands",
		PasswordHash:  "$2a$10$hash",
		CreatedAt:     created,
		TimerOrder:    []string{"t1", "t2"},
		ActiveTimerID: "t1",
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rooms")).
		WithArgs(
			room.ID,
			room.Title,
			room.PasswordHash,
			created,
			`["t1","t2"]`,
			room.ActiveTimerID,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.SaveRoom(context.Background(), room); err != nil {
		t.Fatalf("SaveRoom() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoomSQLite_SaveRoom_ZeroCreatedAtGetsUTCNow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewRoomSQLite(db)

	isUTCRecent := sqlmockArgumentFunc(func(v driver.Value) bool {
		tm, ok := v.(time.Time)
		if !ok || tm.Location() != time.UTC {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rooms")).
		WithArgs("r1", "untitled", "", isUTCRecent, "null", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.SaveRoom(context.Background(), models.Room{ID: "r1", Title: "untitled"}); err != nil {
		t.Fatalf("SaveRoom() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoomSQLite_LoadRooms_DecodesOrderJSON(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewRoomSQLite(db)

	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "title", "password_hash", "created_at", "timer_order", "active_timer_id"}).
		AddRow("r1", "All hands", "", created, `["t1","t2"]`, "t1").
		AddRow("r2", "Rehearsal", "hash", created.Add(time.Hour), "", "")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, password_hash, created_at, timer_order, active_timer_id")).
		WillReturnRows(rows)

	got, err := repo.LoadRooms(context.Background())
	if err != nil {
		t.Fatalf("LoadRooms() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d rooms, want 2", len(got))
	}
	if got[0].ID != "r1" || len(got[0].TimerOrder) != 2 || got[0].TimerOrder[1] != "t2" {
		t.Fatalf("first room = %+v", got[0])
	}
	if got[1].TimerOrder != nil {
		t.Fatalf("blank order should stay nil, got %+v", got[1].TimerOrder)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoomSQLite_DeleteRoom_CascadesInOneTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewRoomSQLite(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM room_timers WHERE room_id=?")).
		WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM room_messages WHERE room_id=?")).
		WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rooms WHERE id=?")).
		WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.DeleteRoom(context.Background(), "r1"); err != nil {
		t.Fatalf("DeleteRoom() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoomSQLite_SaveTimers_ReplacesSnapshotsInOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewRoomSQLite(db)

	snaps := []models.TimerSnapshot{
		{ID: "t1", Kind: models.KindCountdown, DurationSeconds: 600, CurrentTime: 500, State: models.StatePaused},
		{ID: "t2", Kind: models.KindCountup, DurationSeconds: 300, CurrentTime: 0, State: models.StateStopped},
	}

	isSnapshotOf := func(id string) sqlmockArgumentFunc {
		return func(v driver.Value) bool {
			s, ok := v.(string)
			if !ok {
				return false
			}
			var snap models.TimerSnapshot
			return json.Unmarshal([]byte(s), &snap) == nil && snap.ID == id
		}
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM room_timers WHERE room_id=?")).
		WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO room_timers")).
		WithArgs("t1", "r1", 0, isSnapshotOf("t1")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO room_timers")).
		WithArgs("t2", "r1", 1, isSnapshotOf("t2")).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	if err := repo.SaveTimers(context.Background(), "r1", snaps); err != nil {
		t.Fatalf("SaveTimers() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoomSQLite_SaveTimers_RollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewRoomSQLite(db)

	boom := errors.New("disk full")
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM room_timers WHERE room_id=?")).
		WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO room_timers")).
		WillReturnError(boom)
	mock.ExpectRollback()

	err = repo.SaveTimers(context.Background(), "r1", []models.TimerSnapshot{{ID: "t1"}})
	if !errors.Is(err, boom) {
		t.Fatalf("SaveTimers() error = %v, want %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoomSQLite_LoadTimers_DecodesSavedOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewRoomSQLite(db)

	s1, _ := json.Marshal(models.TimerSnapshot{ID: "t1", Kind: models.KindCountdown, CurrentTime: 500, State: models.StatePaused})
	s2, _ := json.Marshal(models.TimerSnapshot{ID: "t2", Kind: models.KindCountup, State: models.StateStopped})
	rows := sqlmock.NewRows([]string{"snapshot"}).AddRow(string(s1)).AddRow(string(s2))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT snapshot FROM room_timers")).
		WithArgs("r1").WillReturnRows(rows)

	got, err := repo.LoadTimers(context.Background(), "r1")
	if err != nil {
		t.Fatalf("LoadTimers() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "t1" || got[0].CurrentTime != 500 || got[1].ID != "t2" {
		t.Fatalf("loaded = %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoomSQLite_AppendMessage_InsertsThenPrunes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewRoomSQLite(db)

	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	msg := models.Message{ID: "m1", Content: "wrap up", Color: "red", CreatedAt: created}

	isPayload := sqlmockArgumentFunc(func(v driver.Value) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		var m models.Message
		return json.Unmarshal([]byte(s), &m) == nil && m.ID == "m1" && m.Content == "wrap up"
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO room_messages")).
		WithArgs("m1", "r1", created, isPayload).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM room_messages WHERE room_id=? AND id NOT IN")).
		WithArgs("r1", "r1", 20).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.AppendMessage(context.Background(), "r1", msg); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRoomSQLite_ListMessages_FlipsToChronologicalOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewRoomSQLite(db)

	// DB returns newest first; callers want oldest first
	m1, _ := json.Marshal(models.Message{ID: "newer", Content: "b"})
	m2, _ := json.Marshal(models.Message{ID: "older", Content: "a"})
	rows := sqlmock.NewRows([]string{"payload"}).AddRow(string(m1)).AddRow(string(m2))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payload FROM room_messages")).
		WithArgs("r1", 20).WillReturnRows(rows)

	got, err := repo.ListMessages(context.Background(), "r1", 20)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "older" || got[1].ID != "newer" {
		t.Fatalf("order = %+v, want oldest first", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
