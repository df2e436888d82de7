package service

import (
	"github.com/google/uuid"

	"conference_core/internal/domain"
	"conference_core/pkg/errors"
	"conference_core/pkg/logger"
)

// SignalRelay пересылает конверты сигналинга (offer/answer/candidate)
// между двумя участниками комнаты. Содержимое конверта ядро не трогает.
// Медленный адресат возвращается списком выбывших, отправителю это не
// ошибка.
type SignalRelay interface {
	Relay(roomID uuid.UUID, fromPeerID string, env *domain.SignalEnvelope) ([]*droppedPeer, error)
}

type signalRelay struct {
	registry *RoomRegistry
	log      logger.Logger
}

func NewSignalRelay(registry *RoomRegistry, log logger.Logger) SignalRelay {
	return &signalRelay{
		registry: registry,
		log:      log,
	}
}

func (s *signalRelay) Relay(roomID uuid.UUID, fromPeerID string, env *domain.SignalEnvelope) ([]*droppedPeer, error) {
	if env == nil || !domain.ValidSignalType(env.Type) {
		return nil, errors.ErrInvalidSignal
	}

	room, ok := s.registry.Get(roomID)
	if !ok {
		return nil, errors.ErrNotAMember
	}
	return room.Forward(fromPeerID, env)
}
