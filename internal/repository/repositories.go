package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"conference_core/pkg/logger"
)

type Repositories struct {
	Room        RoomRepository
	Participant ParticipantRepository
	Session     SessionRepository
	Audit       AuditRepository
	RateLimit   RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		Room:        NewRoomRepository(db, log),
		Participant: NewParticipantRepository(db, log),
		Session:     NewSessionRepository(db, log),
		Audit:       NewAuditRepository(db, log),
		RateLimit:   NewRateLimitRepository(redis, log),
	}
}
