package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"conference_core/internal/domain"
	"conference_core/pkg/logger"
)

type ParticipantRepository interface {
	Upsert(ctx context.Context, p *domain.Participant) error
	UpdateTotals(ctx context.Context, participantID uuid.UUID, totalDurationSec int64, leftAt *time.Time) error
	UpdateMediaState(ctx context.Context, participantID uuid.UUID, micState, cameraState string) error
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error)
}

type participantRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewParticipantRepository(db *pgxpool.Pool, log logger.Logger) ParticipantRepository {
	return &participantRepository{db: db, log: log}
}

// Upsert пишет строку участника: вставка при первом входе, обновление
// при переподключении и выходе.
func (r *participantRepository) Upsert(ctx context.Context, p *domain.Participant) error {
	query := `
		INSERT INTO participants (id, room_id, peer_id, user_id, display_name, role,
		                          mic_state, camera_state, joined_at, left_at, total_duration_sec)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    role = EXCLUDED.role,
		    mic_state = EXCLUDED.mic_state,
		    camera_state = EXCLUDED.camera_state,
		    left_at = EXCLUDED.left_at,
		    total_duration_sec = EXCLUDED.total_duration_sec
	`

	_, err := r.db.Exec(ctx, query,
		p.ID, p.RoomID, p.PeerID, p.UserID, p.DisplayName, p.Role,
		p.MicState, p.CameraState, p.JoinedAt, p.LeftAt, p.TotalDurationSec,
	)

	if err != nil {
		r.log.Error("Failed to upsert participant", "participant_id", p.ID, "error", err)
		return err
	}

	return nil
}

// UpdateTotals пишет пересчитанную суммарную длительность и момент
// выхода участника.
func (r *participantRepository) UpdateTotals(ctx context.Context, participantID uuid.UUID, totalDurationSec int64, leftAt *time.Time) error {
	query := `
		UPDATE participants
		SET total_duration_sec = $2, left_at = $3
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, participantID, totalDurationSec, leftAt)
	if err != nil {
		r.log.Error("Failed to update participant totals", "participant_id", participantID, "error", err)
		return err
	}

	return nil
}

func (r *participantRepository) UpdateMediaState(ctx context.Context, participantID uuid.UUID, micState, cameraState string) error {
	query := `
		UPDATE participants
		SET mic_state = $2, camera_state = $3
		WHERE id = $1
	`

	_, err := r.db.Exec(ctx, query, participantID, micState, cameraState)
	if err != nil {
		r.log.Error("Failed to update participant media state", "participant_id", participantID, "error", err)
		return err
	}

	return nil
}

func (r *participantRepository) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error) {
	query := `
		SELECT id, room_id, peer_id, user_id, display_name, role,
		       mic_state, camera_state, joined_at, left_at, total_duration_sec
		FROM participants
		WHERE room_id = $1
		ORDER BY joined_at
	`

	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		r.log.Error("Failed to list participants", "room_id", roomID, "error", err)
		return nil, err
	}
	defer rows.Close()

	var participants []*domain.Participant
	for rows.Next() {
		p := &domain.Participant{}
		err := rows.Scan(
			&p.ID, &p.RoomID, &p.PeerID, &p.UserID, &p.DisplayName, &p.Role,
			&p.MicState, &p.CameraState, &p.JoinedAt, &p.LeftAt, &p.TotalDurationSec,
		)
		if err != nil {
			r.log.Error("Failed to scan participant", "error", err)
			return nil, err
		}
		participants = append(participants, p)
	}

	return participants, nil
}
