package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"conference_core/internal/domain"
)

// SessionRepository - мок repository.SessionRepository.
type SessionRepository struct {
	mock.Mock
}

func (m *SessionRepository) SaveSession(ctx context.Context, participantID uuid.UUID, span *domain.Session) error {
	args := m.Called(ctx, participantID, span)
	return args.Error(0)
}

func (m *SessionRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) (map[uuid.UUID][]*domain.Session, error) {
	args := m.Called(ctx, roomID)
	if spans, ok := args.Get(0).(map[uuid.UUID][]*domain.Session); ok {
		return spans, args.Error(1)
	}
	return nil, args.Error(1)
}
