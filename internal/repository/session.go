package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"conference_core/internal/domain"
	"conference_core/pkg/logger"
)

type SessionRepository interface {
	SaveSession(ctx context.Context, participantID uuid.UUID, span *domain.Session) error
	ListByRoom(ctx context.Context, roomID uuid.UUID) (map[uuid.UUID][]*domain.Session, error)
}

type sessionRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewSessionRepository(db *pgxpool.Pool, log logger.Logger) SessionRepository {
	return &sessionRepository{db: db, log: log}
}

// SaveSession дозаписывает закрытый интервал присутствия участника.
func (r *sessionRepository) SaveSession(ctx context.Context, participantID uuid.UUID, span *domain.Session) error {
	query := `
		INSERT INTO sessions (participant_id, joined_at, left_at, duration_sec)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.Exec(ctx, query, participantID, span.JoinedAt, span.LeftAt, span.DurationSec)
	if err != nil {
		r.log.Error("Failed to save session", "participant_id", participantID, "error", err)
		return err
	}

	return nil
}

// ListByRoom собирает интервалы всех участников комнаты, сгруппированные
// по участнику, в порядке открытия.
func (r *sessionRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) (map[uuid.UUID][]*domain.Session, error) {
	query := `
		SELECT s.participant_id, s.joined_at, s.left_at, s.duration_sec
		FROM sessions s
		JOIN participants p ON p.id = s.participant_id
		WHERE p.room_id = $1
		ORDER BY s.joined_at
	`

	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		r.log.Error("Failed to list sessions", "room_id", roomID, "error", err)
		return nil, err
	}
	defer rows.Close()

	spans := make(map[uuid.UUID][]*domain.Session)
	for rows.Next() {
		var participantID uuid.UUID
		span := &domain.Session{}
		if err := rows.Scan(&participantID, &span.JoinedAt, &span.LeftAt, &span.DurationSec); err != nil {
			r.log.Error("Failed to scan session", "error", err)
			return nil, err
		}
		spans[participantID] = append(spans[participantID], span)
	}

	return spans, nil
}
