package service

import (
	"time"

	"conference_core/internal/domain"
	"conference_core/pkg/errors"
)

// SessionLedger ведёт интервалы присутствия участников одной комнаты:
// открытие при входе, закрытие при выходе, пересчёт суммарной
// длительности. Не синхронизирован: все вызовы идут под блокировкой
// комнаты-владельца.
type SessionLedger struct {
	spans map[string][]*domain.Session
}

func NewSessionLedger() *SessionLedger {
	return &SessionLedger{
		spans: make(map[string][]*domain.Session),
	}
}

// Open открывает новый интервал. Если у участника уже есть открытый
// интервал, возвращает ErrAlreadyActive и ничего не меняет.
func (l *SessionLedger) Open(peerID string, at time.Time) (*domain.Session, error) {
	if l.Active(peerID) != nil {
		return nil, errors.ErrAlreadyActive
	}

	s := &domain.Session{JoinedAt: at}
	l.spans[peerID] = append(l.spans[peerID], s)
	return s, nil
}

// Close закрывает открытый интервал и пересчитывает суммарную
// длительность по закрытым интервалам. Испорченные записи, встреченные
// при пересчёте, удаляются. Без открытого интервала возвращает
// ErrNoActiveSession, итог не меняется.
func (l *SessionLedger) Close(peerID string, at time.Time) (*domain.Session, int64, error) {
	l.Repair(peerID)

	s := l.Active(peerID)
	if s == nil {
		return nil, l.Total(peerID), errors.ErrNoActiveSession
	}

	left := at
	s.LeftAt = &left
	s.DurationSec = domain.SpanSeconds(s.JoinedAt, left)
	return s, l.Total(peerID), nil
}

// Active - открытый интервал участника, если он есть. Испорченные записи
// открытым интервалом не считаются и вход не блокируют.
func (l *SessionLedger) Active(peerID string) *domain.Session {
	for _, s := range l.spans[peerID] {
		if !s.Malformed() && s.Open() {
			return s
		}
	}
	return nil
}

// Total - сумма длительностей закрытых корректных интервалов. Всегда
// считается заново, накопленному значению не доверяем.
func (l *SessionLedger) Total(peerID string) int64 {
	var total int64
	for _, s := range l.spans[peerID] {
		if s.Malformed() || s.Open() {
			continue
		}
		total += s.DurationSec
	}
	return total
}

// Repair удаляет записи участника без валидного момента входа и
// возвращает пересчитанный итог.
func (l *SessionLedger) Repair(peerID string) int64 {
	var kept []*domain.Session
	for _, s := range l.spans[peerID] {
		if s.Malformed() {
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		delete(l.spans, peerID)
	} else {
		l.spans[peerID] = kept
	}
	return l.Total(peerID)
}

// Spans - копия списка интервалов участника в порядке открытия.
func (l *SessionLedger) Spans(peerID string) []*domain.Session {
	out := make([]*domain.Session, len(l.spans[peerID]))
	copy(out, l.spans[peerID])
	return out
}
