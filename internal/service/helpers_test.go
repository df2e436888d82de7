package service

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"conference_core/internal/domain"
	"conference_core/pkg/errors"
)

// fakeConn - пирское соединение для тестов: копит кадры в памяти.
// capacity >= 0 ограничивает очередь, -1 - без ограничения.
type fakeConn struct {
	mu       sync.Mutex
	capacity int
	frames   []Frame
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{capacity: -1}
}

func newFakeConnWithCapacity(n int) *fakeConn {
	return &fakeConn{capacity: n}
}

func (c *fakeConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capacity >= 0 && len(c.frames) >= c.capacity {
		return errors.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) sent() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

type wireEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func decodeFrames(t *testing.T, frames []Frame) []wireEvent {
	t.Helper()
	out := make([]wireEvent, 0, len(frames))
	for _, f := range frames {
		var ev wireEvent
		require.NoError(t, json.Unmarshal(f, &ev))
		out = append(out, ev)
	}
	return out
}

func eventsOfType(t *testing.T, c *fakeConn, eventType string) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	for _, ev := range decodeFrames(t, c.sent()) {
		if ev.Type == eventType {
			out = append(out, ev.Payload)
		}
	}
	return out
}

func lastEvent(t *testing.T, c *fakeConn) wireEvent {
	t.Helper()
	frames := c.sent()
	require.NotEmpty(t, frames)
	var ev wireEvent
	require.NoError(t, json.Unmarshal(frames[len(frames)-1], &ev))
	return ev
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func testMeta(capacity int) *domain.RoomMeta {
	return &domain.RoomMeta{
		ID:              uuid.New(),
		Title:           "Weekly sync",
		Status:          domain.RoomStatusActive,
		HostPeerID:      "host",
		MaxParticipants: capacity,
		CreatedAt:       time.Now(),
	}
}

func withPasscode(meta *domain.RoomMeta, passcode string) *domain.RoomMeta {
	hash, _ := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.MinCost)
	s := string(hash)
	meta.PasscodeHash = &s
	return meta
}

func testJoin(peerID string, at time.Time) JoinParams {
	return JoinParams{
		PeerID:      peerID,
		DisplayName: peerID,
		MicOn:       true,
		CameraOn:    true,
		At:          at,
	}
}
