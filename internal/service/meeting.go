package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"conference_core/internal/config"
	"conference_core/internal/domain"
	"conference_core/internal/repository"
	"conference_core/pkg/errors"
	"conference_core/pkg/logger"
)

type CreateRoomInput struct {
	Title           string
	Passcode        string
	MaxParticipants int
	HostPeerID      string
}

type UpdateRoomInput struct {
	Title           *string
	Passcode        *string
	MaxParticipants *int
}

// AttendanceRecord - участник и все его интервалы присутствия.
type AttendanceRecord struct {
	Participant *domain.Participant `json:"participant"`
	Spans       []*domain.Session   `json:"spans"`
}

// MeetingService управляет метаданными встреч: создание, правка,
// выдача журнала посещаемости. Живым составом занимается координатор.
type MeetingService interface {
	Create(ctx context.Context, hostUserID uuid.UUID, in CreateRoomInput) (*domain.RoomMeta, error)
	GetByID(ctx context.Context, roomID uuid.UUID) (*domain.RoomMeta, error)
	Update(ctx context.Context, roomID uuid.UUID, userID uuid.UUID, admin bool, in UpdateRoomInput) (*domain.RoomMeta, error)
	Attendance(ctx context.Context, roomID uuid.UUID) ([]*AttendanceRecord, error)
}

type meetingService struct {
	roomRepo        repository.RoomRepository
	participantRepo repository.ParticipantRepository
	sessionRepo     repository.SessionRepository
	audit           AuditService
	cfg             config.RoomConfig
	log             logger.Logger
}

func NewMeetingService(
	roomRepo repository.RoomRepository,
	participantRepo repository.ParticipantRepository,
	sessionRepo repository.SessionRepository,
	audit AuditService,
	cfg config.RoomConfig,
	log logger.Logger,
) MeetingService {
	return &meetingService{
		roomRepo:        roomRepo,
		participantRepo: participantRepo,
		sessionRepo:     sessionRepo,
		audit:           audit,
		cfg:             cfg,
		log:             log,
	}
}

func (s *meetingService) Create(ctx context.Context, hostUserID uuid.UUID, in CreateRoomInput) (*domain.RoomMeta, error) {
	if in.Title == "" {
		return nil, errors.ErrBadRequest
	}
	if in.MaxParticipants <= 0 || in.MaxParticipants > s.cfg.MaxCapacity {
		in.MaxParticipants = s.cfg.DefaultCapacity
	}

	now := time.Now()
	meta := &domain.RoomMeta{
		ID:              uuid.New(),
		Title:           in.Title,
		Status:          domain.RoomStatusActive,
		HostUserID:      &hostUserID,
		HostPeerID:      in.HostPeerID,
		MaxParticipants: in.MaxParticipants,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if in.Passcode != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Passcode), bcrypt.DefaultCost)
		if err != nil {
			s.log.Error("Failed to hash passcode", "error", err)
			return nil, errors.ErrInternalServer
		}
		h := string(hash)
		meta.PasscodeHash = &h
	}

	if err := s.roomRepo.Create(ctx, meta); err != nil {
		s.log.Error("Failed to create room", "error", err)
		return nil, err
	}

	// Аудит
	s.audit.LogEvent(ctx, Actor{UserID: &hostUserID, PeerID: in.HostPeerID, Role: domain.ParticipantRoleHost},
		&meta.ID, domain.EventTypeRoomCreated, map[string]interface{}{
			"title":            meta.Title,
			"max_participants": meta.MaxParticipants,
			"has_passcode":     meta.HasPasscode(),
		})

	s.log.Info("Room created", "room_id", meta.ID, "host_user_id", hostUserID)
	return meta, nil
}

func (s *meetingService) GetByID(ctx context.Context, roomID uuid.UUID) (*domain.RoomMeta, error) {
	return s.roomRepo.GetMeta(ctx, roomID)
}

func (s *meetingService) Update(ctx context.Context, roomID uuid.UUID, userID uuid.UUID, admin bool, in UpdateRoomInput) (*domain.RoomMeta, error) {
	meta, err := s.roomRepo.GetMeta(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if meta.Status != domain.RoomStatusActive {
		return nil, errors.ErrRoomClosed
	}

	isHost := meta.HostUserID != nil && *meta.HostUserID == userID
	if !isHost && !admin {
		return nil, errors.ErrForbidden
	}

	if in.Title != nil {
		if *in.Title == "" {
			return nil, errors.ErrBadRequest
		}
		meta.Title = *in.Title
	}
	if in.MaxParticipants != nil {
		if *in.MaxParticipants > 0 && *in.MaxParticipants <= s.cfg.MaxCapacity {
			meta.MaxParticipants = *in.MaxParticipants
		}
	}
	if in.Passcode != nil {
		if *in.Passcode == "" {
			meta.PasscodeHash = nil
		} else {
			hash, err := bcrypt.GenerateFromPassword([]byte(*in.Passcode), bcrypt.DefaultCost)
			if err != nil {
				s.log.Error("Failed to hash passcode", "error", err)
				return nil, errors.ErrInternalServer
			}
			h := string(hash)
			meta.PasscodeHash = &h
		}
	}
	meta.UpdatedAt = time.Now()

	if err := s.roomRepo.Update(ctx, meta); err != nil {
		s.log.Error("Failed to update room", "room_id", roomID, "error", err)
		return nil, err
	}

	actorRole := domain.ParticipantRoleHost
	if !isHost {
		actorRole = domain.ParticipantRoleAdmin
	}
	s.audit.LogEvent(ctx, Actor{UserID: &userID, Role: actorRole},
		&meta.ID, domain.EventTypeRoomUpdated, map[string]interface{}{"title": meta.Title})

	return meta, nil
}

// Attendance собирает журнал посещаемости комнаты: строки участников в
// порядке первого входа и их интервалы. Работает и для завершённых
// встреч.
func (s *meetingService) Attendance(ctx context.Context, roomID uuid.UUID) ([]*AttendanceRecord, error) {
	if _, err := s.roomRepo.GetMeta(ctx, roomID); err != nil {
		return nil, err
	}

	participants, err := s.participantRepo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	spans, err := s.sessionRepo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	records := make([]*AttendanceRecord, 0, len(participants))
	for _, p := range participants {
		records = append(records, &AttendanceRecord{
			Participant: p,
			Spans:       spans[p.ID],
		})
	}
	return records, nil
}
