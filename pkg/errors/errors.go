package errors

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrInternalServer     = errors.New("internal server error")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomClosed         = errors.New("room closed")
	ErrRoomFull           = errors.New("room full")
	ErrWrongPasscode      = errors.New("wrong passcode")
	ErrNotAMember         = errors.New("not a member of the room")
	ErrUnknownTarget      = errors.New("unknown target peer")
	ErrAlreadyActive      = errors.New("session already active")
	ErrNoActiveSession    = errors.New("no active session")
	ErrInvalidMediaState  = errors.New("invalid media state")
	ErrInvalidSignal      = errors.New("invalid signal type")
	ErrBackpressure       = errors.New("peer send queue full")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

type APIError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

func HTTPStatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrUnknownTarget):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotAMember):
		return http.StatusForbidden
	case errors.Is(err, ErrRoomFull), errors.Is(err, ErrRoomClosed), errors.Is(err, ErrAlreadyActive):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrWrongPasscode), errors.Is(err, ErrInvalidMediaState), errors.Is(err, ErrInvalidSignal):
		return http.StatusBadRequest
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeFromError переводит сентинельные ошибки в коды отказов для событий
// `rejected` на сокете.
func CodeFromError(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, ErrRoomClosed):
		return "ROOM_CLOSED"
	case errors.Is(err, ErrRoomFull):
		return "ROOM_FULL"
	case errors.Is(err, ErrWrongPasscode):
		return "WRONG_PASSCODE"
	case errors.Is(err, ErrNotAMember):
		return "NOT_A_MEMBER"
	case errors.Is(err, ErrUnknownTarget):
		return "UNKNOWN_TARGET"
	case errors.Is(err, ErrAlreadyActive):
		return "ALREADY_ACTIVE"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrInvalidMediaState):
		return "INVALID_MEDIA_STATE"
	case errors.Is(err, ErrInvalidSignal):
		return "INVALID_SIGNAL"
	case errors.Is(err, ErrStorageUnavailable):
		return "STORAGE_UNAVAILABLE"
	case errors.Is(err, ErrBackpressure):
		return "BACKPRESSURE"
	default:
		return "BAD_REQUEST"
	}
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}
