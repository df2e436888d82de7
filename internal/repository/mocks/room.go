package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"conference_core/internal/domain"
)

// RoomRepository - мок repository.RoomRepository для тестов сервисов.
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) Create(ctx context.Context, meta *domain.RoomMeta) error {
	args := m.Called(ctx, meta)
	return args.Error(0)
}

func (m *RoomRepository) GetMeta(ctx context.Context, id uuid.UUID) (*domain.RoomMeta, error) {
	args := m.Called(ctx, id)
	if meta, ok := args.Get(0).(*domain.RoomMeta); ok {
		return meta, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoomRepository) Update(ctx context.Context, meta *domain.RoomMeta) error {
	args := m.Called(ctx, meta)
	return args.Error(0)
}

func (m *RoomRepository) SetStatus(ctx context.Context, id uuid.UUID, status string, endedAt *time.Time) error {
	args := m.Called(ctx, id, status, endedAt)
	return args.Error(0)
}
