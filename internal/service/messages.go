package service

import (
	"context"
	"fmt"
	"strings"

	"stagetimer/internal/models"

	"github.com/google/uuid"
)

// CreateMessage enriches a display overlay with id and timestamp, keeps it
// in the room's bounded tail for late joiners, and fans it out. Content is
// only length-checked; rendering flags pass through untouched.
func (s *RoomService) CreateMessage(ctx context.Context, roomID string, msg models.Message) (models.Message, error) {
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return models.Message{}, fmt.Errorf("%w: empty content", ErrInvalidMessage)
	}
	if len(content) > models.MaxMessageContentLen {
		return models.Message{}, fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidMessage, models.MaxMessageContentLen)
	}

	e, err := s.entry(roomID)
	if err != nil {
		return models.Message{}, err
	}

	msg.ID = uuid.NewString()
	msg.Content = content
	msg.CreatedAt = s.clock.Now().UTC()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.messages = append(e.messages, msg)
	if len(e.messages) > messageTailLen {
		e.messages = e.messages[len(e.messages)-messageTailLen:]
	}

	// tail persistence is best-effort; messages are not durable state
	if err := s.repo.AppendMessage(ctx, roomID, msg); err != nil && s.log != nil {
		s.log.Errorw("message_persist_failed", "room_id", roomID, "err", err)
	}

	s.hub.Broadcast(roomID, models.MessageFrame(msg), nil)
	return msg, nil
}
