package service

import (
	"conference_core/internal/config"
	"conference_core/internal/repository"
	"conference_core/pkg/logger"
)

type Services struct {
	Meeting     MeetingService
	Coordinator RoomCoordinator
	Relay       SignalRelay
	Registry    *RoomRegistry
	RateLimit   RateLimitService
	Audit       AuditService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, log logger.Logger) *Services {
	audit := NewAuditService(repos.Audit, log)
	registry := NewRoomRegistry(repos.Room, log)
	relay := NewSignalRelay(registry, log)

	return &Services{
		Meeting:     NewMeetingService(repos.Room, repos.Participant, repos.Session, audit, cfg.Room, log),
		Coordinator: NewRoomCoordinator(registry, relay, repos, audit, cfg.Storage, log),
		Relay:       relay,
		Registry:    registry,
		RateLimit:   NewRateLimitService(repos.RateLimit, log),
		Audit:       audit,
	}
}
