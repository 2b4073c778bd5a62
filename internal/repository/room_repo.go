package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"stagetimer/internal/models"
)

// RoomSQLite persists room and timer snapshots in SQLite.
type RoomSQLite struct {
	db *sql.DB
}

// NewRoomSQLite wraps an open database handle.
func NewRoomSQLite(db *sql.DB) *RoomSQLite {
	return &RoomSQLite{db: db}
}

const (
	upsertRoomSQL = `
		INSERT INTO rooms (id, title, password_hash, created_at, timer_order, active_timer_id)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title,
			password_hash=excluded.password_hash,
			timer_order=excluded.timer_order,
			active_timer_id=excluded.active_timer_id
	`

	selectRoomsSQL = `
		SELECT id, title, password_hash, created_at, timer_order, active_timer_id
		FROM rooms ORDER BY created_at
	`

	deleteRoomSQL         = `DELETE FROM rooms WHERE id=?`
	deleteRoomTimersSQL   = `DELETE FROM room_timers WHERE room_id=?`
	deleteRoomMessagesSQL = `DELETE FROM room_messages WHERE room_id=?`

	insertTimerSQL = `
		INSERT INTO room_timers (id, room_id, position, snapshot)
		VALUES (?, ?, ?, ?)
	`

	selectTimersSQL = `
		SELECT snapshot FROM room_timers WHERE room_id=? ORDER BY position
	`

	insertMessageSQL = `
		INSERT INTO room_messages (id, room_id, created_at, payload)
		VALUES (?, ?, ?, ?)
	`

	pruneMessagesSQL = `
		DELETE FROM room_messages WHERE room_id=? AND id NOT IN (
			SELECT id FROM room_messages WHERE room_id=? ORDER BY created_at DESC LIMIT ?
		)
	`

	selectMessagesSQL = `
		SELECT payload FROM room_messages WHERE room_id=? ORDER BY created_at DESC LIMIT ?
	`
)

// messageTailKeep bounds how many messages stay persisted per room.
const messageTailKeep = 20

// SaveRoom upserts the room row. The timer id order travels as JSON.
func (r *RoomSQLite) SaveRoom(ctx context.Context, room models.Room) error {
	order, err := json.Marshal(room.TimerOrder)
	if err != nil {
		return err
	}
	created := room.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	} else {
		created = created.UTC()
	}

	_, err = r.db.ExecContext(ctx, upsertRoomSQL,
		room.ID,
		room.Title,
		room.PasswordHash,
		created,
		string(order),
		room.ActiveTimerID,
	)
	return err
}

// LoadRooms fetches every persisted room in creation order.
func (r *RoomSQLite) LoadRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := r.db.QueryContext(ctx, selectRoomsSQL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Room
	for rows.Next() {
		var room models.Room
		var orderJSON string
		if err := rows.Scan(
			&room.ID,
			&room.Title,
			&room.PasswordHash,
			&room.CreatedAt,
			&orderJSON,
			&room.ActiveTimerID,
		); err != nil {
			return nil, err
		}
		if orderJSON != "" {
			if err := json.Unmarshal([]byte(orderJSON), &room.TimerOrder); err != nil {
				return nil, fmt.Errorf("decode timer order for room %s: %w", room.ID, err)
			}
		}
		room.CreatedAt = room.CreatedAt.UTC()
		out = append(out, room)
	}
	return out, rows.Err()
}

// DeleteRoom removes the room row and everything hanging off it.
func (r *RoomSQLite) DeleteRoom(ctx context.Context, roomID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{deleteRoomTimersSQL, deleteRoomMessagesSQL, deleteRoomSQL} {
		if _, err := tx.ExecContext(ctx, stmt, roomID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveTimers replaces the room's timer snapshots in one transaction,
// preserving their order.
func (r *RoomSQLite) SaveTimers(ctx context.Context, roomID string, snaps []models.TimerSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, deleteRoomTimersSQL, roomID); err != nil {
		return err
	}
	for i, snap := range snaps {
		payload, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insertTimerSQL, snap.ID, roomID, i, string(payload)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadTimers returns the room's persisted snapshots in saved order.
func (r *RoomSQLite) LoadTimers(ctx context.Context, roomID string) ([]models.TimerSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, selectTimersSQL, roomID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.TimerSnapshot
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var snap models.TimerSnapshot
		if err := json.Unmarshal([]byte(payload), &snap); err != nil {
			return nil, fmt.Errorf("decode timer snapshot in room %s: %w", roomID, err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// AppendMessage stores a message and prunes the room tail to its cap.
func (r *RoomSQLite) AppendMessage(ctx context.Context, roomID string, m models.Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, insertMessageSQL, m.ID, roomID, m.CreatedAt.UTC(), string(payload)); err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, pruneMessagesSQL, roomID, roomID, messageTailKeep)
	return err
}

// ListMessages returns up to limit recent messages, oldest first.
func (r *RoomSQLite) ListMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, selectMessagesSQL, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var newestFirst []models.Message
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var m models.Message
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			return nil, fmt.Errorf("decode message in room %s: %w", roomID, err)
		}
		newestFirst = append(newestFirst, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// flip to chronological order for replay
	out := make([]models.Message, len(newestFirst))
	for i, m := range newestFirst {
		out[len(out)-1-i] = m
	}
	return out, nil
}
