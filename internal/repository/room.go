package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"conference_core/internal/domain"
	"conference_core/pkg/errors"
	"conference_core/pkg/logger"
)

type RoomRepository interface {
	Create(ctx context.Context, meta *domain.RoomMeta) error
	GetMeta(ctx context.Context, id uuid.UUID) (*domain.RoomMeta, error)
	Update(ctx context.Context, meta *domain.RoomMeta) error
	SetStatus(ctx context.Context, id uuid.UUID, status string, endedAt *time.Time) error
}

type roomRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewRoomRepository(db *pgxpool.Pool, log logger.Logger) RoomRepository {
	return &roomRepository{db: db, log: log}
}

func (r *roomRepository) Create(ctx context.Context, meta *domain.RoomMeta) error {
	query := `
		INSERT INTO rooms (id, title, status, host_user_id, host_peer_id,
		                   max_participants, passcode_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		meta.ID, meta.Title, meta.Status, meta.HostUserID, meta.HostPeerID,
		meta.MaxParticipants, meta.PasscodeHash, meta.CreatedAt, meta.UpdatedAt,
	).Scan(&meta.CreatedAt, &meta.UpdatedAt)

	if err != nil {
		r.log.Error("Failed to create room", "error", err)
		return err
	}

	return nil
}

// GetMeta отдаёт метаданные комнаты для допуска: хеш пароля,
// вместимость, личность хоста, статус.
func (r *roomRepository) GetMeta(ctx context.Context, id uuid.UUID) (*domain.RoomMeta, error) {
	query := `
		SELECT id, title, status, host_user_id, host_peer_id,
		       max_participants, passcode_hash, created_at, updated_at, ended_at
		FROM rooms
		WHERE id = $1
	`

	meta := &domain.RoomMeta{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&meta.ID, &meta.Title, &meta.Status, &meta.HostUserID, &meta.HostPeerID,
		&meta.MaxParticipants, &meta.PasscodeHash, &meta.CreatedAt, &meta.UpdatedAt, &meta.EndedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrRoomNotFound
		}
		r.log.Error("Failed to load room meta", "room_id", id, "error", err)
		return nil, errors.ErrStorageUnavailable
	}

	return meta, nil
}

func (r *roomRepository) Update(ctx context.Context, meta *domain.RoomMeta) error {
	query := `
		UPDATE rooms
		SET title = $2, status = $3, max_participants = $4, passcode_hash = $5, updated_at = $6
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		meta.ID, meta.Title, meta.Status, meta.MaxParticipants, meta.PasscodeHash, time.Now(),
	).Scan(&meta.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.ErrRoomNotFound
		}
		r.log.Error("Failed to update room", "room_id", meta.ID, "error", err)
		return err
	}

	return nil
}

func (r *roomRepository) SetStatus(ctx context.Context, id uuid.UUID, status string, endedAt *time.Time) error {
	query := `
		UPDATE rooms
		SET status = $2, ended_at = $3, updated_at = $4
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, status, endedAt, time.Now())
	if err != nil {
		r.log.Error("Failed to set room status", "room_id", id, "status", status, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrRoomNotFound
	}

	return nil
}
