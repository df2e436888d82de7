package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"conference_core/internal/domain"
)

// ParticipantRepository - мок repository.ParticipantRepository.
type ParticipantRepository struct {
	mock.Mock
}

func (m *ParticipantRepository) Upsert(ctx context.Context, p *domain.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *ParticipantRepository) UpdateTotals(ctx context.Context, participantID uuid.UUID, totalDurationSec int64, leftAt *time.Time) error {
	args := m.Called(ctx, participantID, totalDurationSec, leftAt)
	return args.Error(0)
}

func (m *ParticipantRepository) UpdateMediaState(ctx context.Context, participantID uuid.UUID, micState, cameraState string) error {
	args := m.Called(ctx, participantID, micState, cameraState)
	return args.Error(0)
}

func (m *ParticipantRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error) {
	args := m.Called(ctx, roomID)
	if list, ok := args.Get(0).([]*domain.Participant); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
