package service

import (
	"encoding/json"

	"conference_core/internal/domain"
)

// Frame - закодированное событие, готовое к отправке. Кодируется один
// раз на рассылку и кладётся в очереди всех адресатов как есть.
type Frame []byte

// PeerConn - исходящая сторона соединения с пиром. TrySend никогда не
// блокируется: при переполненной очереди возвращает ErrBackpressure,
// и координатор отключает отстающего пира вместо ожидания.
type PeerConn interface {
	TrySend(f Frame) error
	Close()
}

func encodeEvent(eventType string, payload interface{}) Frame {
	b, _ := json.Marshal(domain.Event{Type: eventType, Payload: payload})
	return Frame(b)
}
