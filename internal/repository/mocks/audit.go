package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"conference_core/internal/domain"
)

// AuditRepository - мок repository.AuditRepository.
type AuditRepository struct {
	mock.Mock
}

func (m *AuditRepository) CreateEntry(ctx context.Context, entry *domain.AuditEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
