package service

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conference_core/internal/domain"
	"conference_core/pkg/errors"
)

func TestSessionLedger_OpenCloseSequence(t *testing.T) {
	l := NewSessionLedger()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	span, err := l.Open("alice", base)
	require.NoError(t, err)
	require.NotNil(t, span)
	assert.True(t, span.Open())

	// повторное открытие при живом интервале отклоняется
	_, err = l.Open("alice", base.Add(time.Second))
	require.ErrorIs(t, err, errors.ErrAlreadyActive)

	closed, total, err := l.Close("alice", base.Add(42*time.Second))
	require.NoError(t, err)
	assert.False(t, closed.Open())
	assert.EqualValues(t, 42, closed.DurationSec)
	assert.EqualValues(t, 42, total)

	// после закрытия можно открыть следующий
	_, err = l.Open("alice", base.Add(time.Minute))
	require.NoError(t, err)
}

// Случайные последовательности открытий и закрытий: открытых интервалов
// никогда не больше одного, итог всегда равен сумме закрытых.
func TestSessionLedger_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := NewSessionLedger()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	open := false
	var openedAt time.Time
	var wantTotal int64

	for i := 0; i < 500; i++ {
		now = now.Add(time.Duration(rng.Intn(90)+1) * time.Second)

		if rng.Intn(2) == 0 {
			_, err := l.Open("alice", now)
			if open {
				require.ErrorIs(t, err, errors.ErrAlreadyActive)
			} else {
				require.NoError(t, err)
				open = true
				openedAt = now
			}
		} else {
			_, total, err := l.Close("alice", now)
			if open {
				require.NoError(t, err)
				wantTotal += int64(now.Sub(openedAt) / time.Second)
				open = false
			} else {
				require.ErrorIs(t, err, errors.ErrNoActiveSession)
			}
			assert.Equal(t, wantTotal, total)
		}

		openCount := 0
		var sumClosed int64
		for _, s := range l.Spans("alice") {
			if s.Malformed() {
				continue
			}
			if s.Open() {
				openCount++
			} else {
				sumClosed += s.DurationSec
			}
		}
		require.LessOrEqual(t, openCount, 1)
		assert.Equal(t, wantTotal, sumClosed)
		assert.Equal(t, wantTotal, l.Total("alice"))
	}
}

func TestSessionLedger_CloseWithoutOpenSpan(t *testing.T) {
	l := NewSessionLedger()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := l.Open("bob", base)
	require.NoError(t, err)
	_, _, err = l.Close("bob", base.Add(10*time.Second))
	require.NoError(t, err)

	// закрытие без открытого интервала ничего не меняет
	span, total, err := l.Close("bob", base.Add(30*time.Second))
	require.ErrorIs(t, err, errors.ErrNoActiveSession)
	assert.Nil(t, span)
	assert.EqualValues(t, 10, total)
	assert.EqualValues(t, 10, l.Total("bob"))
	assert.Len(t, l.Spans("bob"), 1)
}

func TestSessionLedger_RepairDropsMalformedEntries(t *testing.T) {
	l := NewSessionLedger()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	leftFirst := base.Add(10 * time.Second)
	joinedLast := base.Add(time.Minute)
	leftLast := joinedLast.Add(30 * time.Second)

	l.spans["carol"] = []*domain.Session{
		{JoinedAt: base, LeftAt: &leftFirst, DurationSec: 10},
		{}, // запись без момента входа
		{JoinedAt: joinedLast, LeftAt: &leftLast, DurationSec: 30},
	}

	total := l.Repair("carol")

	assert.EqualValues(t, 40, total)
	assert.Len(t, l.Spans("carol"), 2)
	assert.EqualValues(t, 40, l.Total("carol"))
}

func TestSessionLedger_MalformedEntryDoesNotBlockOpen(t *testing.T) {
	l := NewSessionLedger()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// открытая на вид запись без момента входа не считается живым интервалом
	l.spans["dave"] = []*domain.Session{{}}

	span, err := l.Open("dave", base)
	require.NoError(t, err)
	require.NotNil(t, span)

	// Close по пути чинит журнал: повреждённая запись исчезает
	closed, total, err := l.Close("dave", base.Add(5*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 5, closed.DurationSec)
	assert.EqualValues(t, 5, total)
	assert.Len(t, l.Spans("dave"), 1)
}

func TestSessionLedger_NegativeSpanClampedToZero(t *testing.T) {
	l := NewSessionLedger()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := l.Open("erin", base)
	require.NoError(t, err)

	closed, total, err := l.Close("erin", base.Add(-10*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 0, closed.DurationSec)
	assert.EqualValues(t, 0, total)
}
