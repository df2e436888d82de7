package domain

import (
	"time"

	"github.com/google/uuid"
)

type RoomMeta struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Status          string     `json:"status"`
	HostUserID      *uuid.UUID `json:"host_user_id,omitempty"`
	HostPeerID      string     `json:"host_peer_id"`
	MaxParticipants int        `json:"max_participants"`
	PasscodeHash    *string    `json:"-"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
}

func (m *RoomMeta) HasPasscode() bool {
	return m.PasscodeHash != nil && *m.PasscodeHash != ""
}

const (
	RoomStatusActive = "active"
	RoomStatusEnded  = "ended"
)
