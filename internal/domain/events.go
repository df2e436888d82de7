package domain

import "time"

// Типы исходящих событий на сокете
const (
	TypeRoomState    = "room-state"    // снапшот комнаты вошедшему
	TypePeerJoined   = "peer-joined"   // участник присоединился
	TypePeerLeft     = "peer-left"     // участник вышел
	TypeMediaChanged = "media-changed" // сменилось состояние микрофона/камеры
	TypeRoleChanged  = "role-changed"  // сменилась роль участника
	TypeMeetingEnded = "meeting-ended" // встреча завершена
	TypeSignal       = "signal"        // переслан конверт сигналинга
	TypeRejected     = "rejected"      // отказ по последнему запросу (только отправителю)
)

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

type MemberInfo struct {
	PeerID      string    `json:"peer_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	Mic         string    `json:"mic"`
	Camera      string    `json:"camera"`
	JoinedAt    time.Time `json:"joined_at"`
}

type RoomStatePayload struct {
	RoomID  string       `json:"room_id"`
	Self    string       `json:"self"`
	Members []MemberInfo `json:"members"`
}

type PeerLeftPayload struct {
	PeerID string `json:"peer_id"`
	Reason string `json:"reason,omitempty"`
}

type MediaChangedPayload struct {
	PeerID string `json:"peer_id"`
	Mic    string `json:"mic"`
	Camera string `json:"camera"`
	By     string `json:"by,omitempty"`
}

type RoleChangedPayload struct {
	PeerID string `json:"peer_id"`
	Role   string `json:"role"`
}

type MeetingEndedPayload struct {
	Reason string `json:"reason"`
}

type RejectedPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
