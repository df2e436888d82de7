package domain

// Состояния микрофона: on, off, muted, muted_by_host.
// Состояния камеры: on, off, off_by_admin.
const (
	MediaOn          = "on"
	MediaOff         = "off"
	MediaMuted       = "muted"
	MediaMutedByHost = "muted_by_host"
	MediaOffByAdmin  = "off_by_admin"
)

const (
	MediaFieldMic    = "mic"
	MediaFieldCamera = "camera"
)

const (
	AuthoritySelf      = "self"
	AuthorityModerator = "moderator"
)

// MediaAuthorityOf - уровень полномочий, которым установлено состояние.
// Принудительные состояния может снять только модератор.
func MediaAuthorityOf(state string) string {
	switch state {
	case MediaMutedByHost, MediaOffByAdmin:
		return AuthorityModerator
	default:
		return AuthoritySelf
	}
}

func ForcedMediaState(state string) bool {
	return MediaAuthorityOf(state) == AuthorityModerator
}

func ValidMediaState(field, state string) bool {
	switch field {
	case MediaFieldMic:
		return state == MediaOn || state == MediaOff || state == MediaMuted || state == MediaMutedByHost
	case MediaFieldCamera:
		return state == MediaOn || state == MediaOff || state == MediaOffByAdmin
	}
	return false
}
