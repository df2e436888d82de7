package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"conference_core/internal/domain"
	"conference_core/internal/repository"
	"conference_core/pkg/logger"
)

type AuditService interface {
	LogEvent(ctx context.Context, actor Actor, roomID *uuid.UUID, eventType string, payload map[string]interface{}) error
}

// Actor - кто совершил действие: авторизованный пользователь, пир в
// комнате или система.
type Actor struct {
	UserID *uuid.UUID
	PeerID string
	Role   string
}

var SystemActor = Actor{Role: domain.ActorRoleSystem}

type auditService struct {
	auditRepo repository.AuditRepository
	log       logger.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, log logger.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		log:       log,
	}
}

func (s *auditService) LogEvent(ctx context.Context, actor Actor, roomID *uuid.UUID, eventType string, payload map[string]interface{}) error {
	if payload == nil {
		payload = make(map[string]interface{})
	}

	entry := &domain.AuditEntry{
		EventTime:   time.Now(),
		ActorUserID: actor.UserID,
		ActorPeerID: actor.PeerID,
		ActorRole:   actor.Role,
		RoomID:      roomID,
		EventType:   eventType,
		Payload:     payload,
	}

	return s.auditRepo.CreateEntry(ctx, entry)
}
