package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditEntry struct {
	ID          int64                  `json:"id"`
	EventTime   time.Time              `json:"event_time"`
	ActorUserID *uuid.UUID             `json:"actor_user_id,omitempty"`
	ActorPeerID string                 `json:"actor_peer_id,omitempty"`
	ActorRole   string                 `json:"actor_role"`
	RoomID      *uuid.UUID             `json:"room_id,omitempty"`
	EventType   string                 `json:"event_type"`
	Payload     map[string]interface{} `json:"payload"`
}

const (
	ActorRoleSystem = "system"
)

const (
	EventTypeRoomCreated  = "ROOM_CREATED"
	EventTypeRoomUpdated  = "ROOM_UPDATED"
	EventTypeRoomJoined   = "ROOM_JOINED"
	EventTypeRoomLeft     = "ROOM_LEFT"
	EventTypeMediaForced  = "MEDIA_FORCED"
	EventTypeRoleChanged  = "ROLE_CHANGED"
	EventTypeMeetingEnded = "MEETING_ENDED"
)
