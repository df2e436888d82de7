package domain

import "time"

// Session - один непрерывный интервал присутствия участника в комнате.
// Открыта, пока LeftAt == nil.
type Session struct {
	JoinedAt    time.Time  `json:"joined_at"`
	LeftAt      *time.Time `json:"left_at,omitempty"`
	DurationSec int64      `json:"duration_sec"`
}

func (s *Session) Open() bool {
	return s.LeftAt == nil
}

// Malformed - запись без валидного момента входа. Такие записи
// игнорируются при подсчёте длительности и удаляются при восстановлении.
func (s *Session) Malformed() bool {
	return s == nil || s.JoinedAt.IsZero()
}

// SpanSeconds считает длительность закрытого интервала, отрицательные
// значения обрезаются до нуля.
func SpanSeconds(joinedAt time.Time, leftAt time.Time) int64 {
	d := leftAt.Sub(joinedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
