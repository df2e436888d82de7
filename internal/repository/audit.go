package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"conference_core/internal/domain"
	"conference_core/pkg/logger"
)

type AuditRepository interface {
	CreateEntry(ctx context.Context, entry *domain.AuditEntry) error
}

type auditRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewAuditRepository(db *pgxpool.Pool, log logger.Logger) AuditRepository {
	return &auditRepository{db: db, log: log}
}

func (r *auditRepository) CreateEntry(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_log (event_time, actor_user_id, actor_peer_id, actor_role, room_id, event_type, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := r.db.QueryRow(ctx, query,
		entry.EventTime, entry.ActorUserID, entry.ActorPeerID, entry.ActorRole,
		entry.RoomID, entry.EventType, entry.Payload,
	).Scan(&entry.ID)

	if err != nil {
		r.log.Error("Failed to create audit entry", "error", err)
		return err
	}

	return nil
}
