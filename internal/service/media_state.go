package service

import (
	"conference_core/internal/domain"
	"conference_core/pkg/errors"
)

// MediaAuthority хранит состояния микрофона и камеры участников одной
// комнаты и применяет правила полномочий. Не синхронизирован: все вызовы
// идут под блокировкой комнаты-владельца.
type MediaAuthority struct {
	mic    map[string]string
	camera map[string]string
}

func NewMediaAuthority() *MediaAuthority {
	return &MediaAuthority{
		mic:    make(map[string]string),
		camera: make(map[string]string),
	}
}

// Init создаёт записи участника при входе. Принудительные состояния
// прошлого подключения переподключение не переживают.
func (a *MediaAuthority) Init(peerID string, micOn, cameraOn bool) {
	a.mic[peerID] = domain.MediaOff
	if micOn {
		a.mic[peerID] = domain.MediaOn
	}
	a.camera[peerID] = domain.MediaOff
	if cameraOn {
		a.camera[peerID] = domain.MediaOn
	}
}

// Drop удаляет записи участника при отключении.
func (a *MediaAuthority) Drop(peerID string) {
	delete(a.mic, peerID)
	delete(a.camera, peerID)
}

func (a *MediaAuthority) States(peerID string) (mic, camera string) {
	return a.mic[peerID], a.camera[peerID]
}

// SelfUpdate - смена собственного состояния. Состояние с модераторскими
// полномочиями участник снять не может, как не может и установить его
// себе сам: запрос отклоняется, состояние не меняется.
func (a *MediaAuthority) SelfUpdate(peerID, field, value string) error {
	if !domain.ValidMediaState(field, value) {
		return errors.ErrInvalidMediaState
	}
	if domain.ForcedMediaState(value) {
		return errors.ErrForbidden
	}

	current, ok := a.state(field, peerID)
	if !ok {
		return errors.ErrNotAMember
	}
	if domain.ForcedMediaState(current) {
		return errors.ErrForbidden
	}

	a.set(field, peerID, value)
	return nil
}

// ModeratorUpdate - смена состояния участника модератором. Только так
// ставятся muted_by_host и off_by_admin. Снятие принудительного
// состояния приводит в off, а не в on.
func (a *MediaAuthority) ModeratorUpdate(actorRole, peerID, field, value string) error {
	if !domain.IsModerator(actorRole) {
		return errors.ErrForbidden
	}
	if !domain.ValidMediaState(field, value) {
		return errors.ErrInvalidMediaState
	}

	current, ok := a.state(field, peerID)
	if !ok {
		return errors.ErrNotAMember
	}

	if domain.ForcedMediaState(current) && !domain.ForcedMediaState(value) {
		value = domain.MediaOff
	}
	a.set(field, peerID, value)
	return nil
}

func (a *MediaAuthority) state(field, peerID string) (string, bool) {
	switch field {
	case domain.MediaFieldMic:
		s, ok := a.mic[peerID]
		return s, ok
	case domain.MediaFieldCamera:
		s, ok := a.camera[peerID]
		return s, ok
	}
	return "", false
}

func (a *MediaAuthority) set(field, peerID, value string) {
	switch field {
	case domain.MediaFieldMic:
		a.mic[peerID] = value
	case domain.MediaFieldCamera:
		a.camera[peerID] = value
	}
}
