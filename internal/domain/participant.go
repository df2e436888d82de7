package domain

import (
	"time"

	"github.com/google/uuid"
)

type Participant struct {
	ID               uuid.UUID  `json:"id"`
	RoomID           uuid.UUID  `json:"room_id"`
	PeerID           string     `json:"peer_id"`
	UserID           *uuid.UUID `json:"user_id,omitempty"`
	DisplayName      string     `json:"display_name"`
	Role             string     `json:"role"`
	MicState         string     `json:"mic_state"`
	CameraState      string     `json:"camera_state"`
	JoinedAt         time.Time  `json:"joined_at"`
	LeftAt           *time.Time `json:"left_at,omitempty"`
	TotalDurationSec int64      `json:"total_duration_sec"`
}

const (
	ParticipantRoleHost   = "host"
	ParticipantRoleCoHost = "co_host"
	ParticipantRoleAdmin  = "admin"
	ParticipantRoleMember = "member"
)

// IsModerator - роли, которым разрешено принудительно менять медиа-состояние
// других участников.
func IsModerator(role string) bool {
	return role == ParticipantRoleHost || role == ParticipantRoleCoHost || role == ParticipantRoleAdmin
}

// CanManageRoom - роли, которым разрешено менять роли участников и завершать
// встречу.
func CanManageRoom(role string) bool {
	return role == ParticipantRoleHost || role == ParticipantRoleAdmin
}

func ValidRole(role string) bool {
	switch role {
	case ParticipantRoleHost, ParticipantRoleCoHost, ParticipantRoleAdmin, ParticipantRoleMember:
		return true
	}
	return false
}
