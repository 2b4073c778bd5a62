package repository

import (
	"context"
	"database/sql"

	"stagetimer/internal/models"
)

// RoomRepo round-trips room, timer, and message-tail snapshots. The core
// only requires that a snapshot comes back equal; the schema is an
// implementation detail of the SQLite store.
type RoomRepo interface {
	SaveRoom(ctx context.Context, room models.Room) error
	LoadRooms(ctx context.Context) ([]models.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error

	SaveTimers(ctx context.Context, roomID string, snaps []models.TimerSnapshot) error
	LoadTimers(ctx context.Context, roomID string) ([]models.TimerSnapshot, error)

	AppendMessage(ctx context.Context, roomID string, m models.Message) error
	ListMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)
}

// Repository aggregates the store interfaces.
type Repository struct {
	Rooms RoomRepo
}

// NewRepository wires the SQLite-backed stores.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Rooms: NewRoomSQLite(db),
	}
}
