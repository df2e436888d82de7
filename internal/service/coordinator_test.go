package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"conference_core/internal/config"
	"conference_core/internal/domain"
	"conference_core/internal/repository"
	"conference_core/internal/repository/mocks"
	"conference_core/pkg/errors"
)

type coordinatorFixture struct {
	rooms    *mocks.RoomRepository
	parts    *mocks.ParticipantRepository
	sessions *mocks.SessionRepository
	audits   *mocks.AuditRepository
	registry *RoomRegistry
	coord    RoomCoordinator
}

func newCoordinatorFixture() *coordinatorFixture {
	f := &coordinatorFixture{
		rooms:    new(mocks.RoomRepository),
		parts:    new(mocks.ParticipantRepository),
		sessions: new(mocks.SessionRepository),
		audits:   new(mocks.AuditRepository),
	}
	repos := &repository.Repositories{
		Room:        f.rooms,
		Participant: f.parts,
		Session:     f.sessions,
		Audit:       f.audits,
	}
	f.registry = NewRoomRegistry(f.rooms, nopLogger{})
	relay := NewSignalRelay(f.registry, nopLogger{})
	audit := NewAuditService(f.audits, nopLogger{})
	f.coord = NewRoomCoordinator(f.registry, relay, repos, audit, config.StorageConfig{
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
	}, nopLogger{})
	return f
}

// expectQuietPersistence разрешает все записи в хранилище без проверок.
func (f *coordinatorFixture) expectQuietPersistence() {
	f.parts.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.parts.On("UpdateTotals", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.parts.On("UpdateMediaState", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("SaveSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.audits.On("CreateEntry", mock.Anything, mock.Anything).Return(nil)
	f.rooms.On("SetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func (f *coordinatorFixture) auditEvents(eventType string) []*domain.AuditEntry {
	var out []*domain.AuditEntry
	for _, call := range f.audits.Calls {
		if call.Method != "CreateEntry" {
			continue
		}
		entry := call.Arguments.Get(1).(*domain.AuditEntry)
		if entry.EventType == eventType {
			out = append(out, entry)
		}
	}
	return out
}

func TestRoomCoordinator_SessionLifecycleScenario(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := testMeta(10)

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Once()
	f.parts.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.audits.On("CreateEntry", mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("SaveSession", mock.Anything, mock.Anything, mock.MatchedBy(func(s *domain.Session) bool {
		return !s.Open() && s.DurationSec >= 20 && s.DurationSec <= 25
	})).Return(nil).Once()
	f.parts.On("UpdateTotals", mock.Anything, mock.Anything, mock.MatchedBy(func(total int64) bool {
		return total >= 20 && total <= 25
	}), mock.Anything).Return(nil).Once()

	aliceConn := newFakeConn()
	snapshot, err := f.coord.Connect(ctx, meta.ID, testJoin("alice", time.Now().Add(-20*time.Second)), aliceConn)
	require.NoError(t, err)
	require.Len(t, snapshot.Members, 1)

	bobConn := newFakeConn()
	snapshot, err = f.coord.Connect(ctx, meta.ID, testJoin("bob", time.Now().Add(-15*time.Second)), bobConn)
	require.NoError(t, err)
	require.Len(t, snapshot.Members, 2)

	err = f.coord.Signal(ctx, meta.ID, "alice", &domain.SignalEnvelope{To: "bob", Type: domain.SignalOffer})
	require.NoError(t, err)
	signals := eventsOfType(t, bobConn, domain.TypeSignal)
	require.Len(t, signals, 1)
	var env domain.SignalEnvelope
	require.NoError(t, json.Unmarshal(signals[0], &env))
	assert.Equal(t, "alice", env.From)

	f.coord.Disconnect(ctx, meta.ID, "alice", aliceConn, "left")

	members, err := f.coord.MembersOf(meta.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "bob", members[0].PeerID)

	left := eventsOfType(t, bobConn, domain.TypePeerLeft)
	require.Len(t, left, 1)
	var payload domain.PeerLeftPayload
	require.NoError(t, json.Unmarshal(left[0], &payload))
	assert.Equal(t, "alice", payload.PeerID)

	assert.Len(t, f.auditEvents(domain.EventTypeRoomJoined), 2)
	assert.Len(t, f.auditEvents(domain.EventTypeRoomLeft), 1)
	f.sessions.AssertExpectations(t)
	f.parts.AssertExpectations(t)
}

func TestRoomCoordinator_EmptyRoomRebuiltOnNextConnect(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := testMeta(10)

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Twice()
	f.expectQuietPersistence()

	conn := newFakeConn()
	_, err := f.coord.Connect(ctx, meta.ID, testJoin("alice", time.Now()), conn)
	require.NoError(t, err)

	f.coord.Disconnect(ctx, meta.ID, "alice", conn, "left")
	_, ok := f.registry.Get(meta.ID)
	assert.False(t, ok)

	// следующий вход собирает комнату заново из метаданных
	snapshot, err := f.coord.Connect(ctx, meta.ID, testJoin("alice", time.Now()), newFakeConn())
	require.NoError(t, err)
	require.Len(t, snapshot.Members, 1)
	assert.Equal(t, "alice", snapshot.Members[0].PeerID)

	f.rooms.AssertExpectations(t)
}

func TestRoomCoordinator_ConnectRejections(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := withPasscode(testMeta(1), "sesame")

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Once()
	f.expectQuietPersistence()

	p := testJoin("alice", time.Now())
	p.Passcode = "guess"
	conn := newFakeConn()
	_, err := f.coord.Connect(ctx, meta.ID, p, conn)
	require.ErrorIs(t, err, errors.ErrWrongPasscode)
	assert.Empty(t, conn.sent())

	p.Passcode = "sesame"
	_, err = f.coord.Connect(ctx, meta.ID, p, newFakeConn())
	require.NoError(t, err)

	// вместимость исчерпана
	full := testJoin("bob", time.Now())
	full.Passcode = "sesame"
	_, err = f.coord.Connect(ctx, meta.ID, full, newFakeConn())
	require.ErrorIs(t, err, errors.ErrRoomFull)

	members, err := f.coord.MembersOf(meta.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRoomCoordinator_TakeoverClosesOldConnection(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := testMeta(10)

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Once()
	f.expectQuietPersistence()

	conn1 := newFakeConn()
	_, err := f.coord.Connect(ctx, meta.ID, testJoin("alice", time.Now()), conn1)
	require.NoError(t, err)

	conn2 := newFakeConn()
	snapshot, err := f.coord.Connect(ctx, meta.ID, testJoin("alice", time.Now()), conn2)
	require.NoError(t, err)
	require.Len(t, snapshot.Members, 1)

	assert.True(t, conn1.Closed())
	assert.False(t, conn2.Closed())

	// повторный вход не плодит ни строк в хранилище, ни записей аудита
	f.parts.AssertNumberOfCalls(t, "Upsert", 1)
	assert.Len(t, f.auditEvents(domain.EventTypeRoomJoined), 1)

	// выход с вытесненным соединением ничего не делает
	f.coord.Disconnect(ctx, meta.ID, "alice", conn1, "left")
	members, err := f.coord.MembersOf(meta.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRoomCoordinator_SlowPeerKicked(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := testMeta(10)

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Once()
	f.expectQuietPersistence()

	bobConn := newFakeConnWithCapacity(2)
	_, err := f.coord.Connect(ctx, meta.ID, testJoin("bob", time.Now().Add(-30*time.Second)), bobConn)
	require.NoError(t, err)
	aliceConn := newFakeConn()
	_, err = f.coord.Connect(ctx, meta.ID, testJoin("alice", time.Now()), aliceConn)
	require.NoError(t, err)

	// рассылка не влезает в очередь боба - его отключают, остальные живут
	err = f.coord.MediaSelf(ctx, meta.ID, "alice", domain.MediaFieldMic, domain.MediaMuted)
	require.NoError(t, err)

	assert.True(t, bobConn.Closed())
	members, err := f.coord.MembersOf(meta.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "alice", members[0].PeerID)

	left := eventsOfType(t, aliceConn, domain.TypePeerLeft)
	require.Len(t, left, 1)
	var payload domain.PeerLeftPayload
	require.NoError(t, json.Unmarshal(left[0], &payload))
	assert.Equal(t, "bob", payload.PeerID)
	assert.Equal(t, ReasonSlowConsumer, payload.Reason)

	// интервал выбывшего дозаписан
	f.sessions.AssertNumberOfCalls(t, "SaveSession", 1)
	events := f.auditEvents(domain.EventTypeRoomLeft)
	require.Len(t, events, 1)
	assert.Equal(t, ReasonSlowConsumer, events[0].Payload["reason"])
}

func TestRoomCoordinator_StorageRetriesThenSucceeds(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := testMeta(10)

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Once()
	f.parts.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.parts.On("UpdateTotals", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.audits.On("CreateEntry", mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("SaveSession", mock.Anything, mock.Anything, mock.Anything).Return(errors.ErrStorageUnavailable).Twice()
	f.sessions.On("SaveSession", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	conn := newFakeConn()
	_, err := f.coord.Connect(ctx, meta.ID, testJoin("alice", time.Now()), conn)
	require.NoError(t, err)
	f.coord.Disconnect(ctx, meta.ID, "alice", conn, "left")

	f.sessions.AssertNumberOfCalls(t, "SaveSession", 3)
	f.sessions.AssertExpectations(t)
}

func TestRoomCoordinator_StorageRetriesExhaustedDropRecord(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := testMeta(10)

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Once()
	f.parts.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.parts.On("UpdateTotals", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.parts.On("UpdateMediaState", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.audits.On("CreateEntry", mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("SaveSession", mock.Anything, mock.Anything, mock.Anything).Return(errors.ErrStorageUnavailable)

	aliceConn := newFakeConn()
	_, err := f.coord.Connect(ctx, meta.ID, testJoin("alice", time.Now()), aliceConn)
	require.NoError(t, err)
	bobConn := newFakeConn()
	_, err = f.coord.Connect(ctx, meta.ID, testJoin("bob", time.Now()), bobConn)
	require.NoError(t, err)

	// запись теряется после исчерпания повторов, комната живёт дальше
	f.coord.Disconnect(ctx, meta.ID, "alice", aliceConn, "left")
	f.sessions.AssertNumberOfCalls(t, "SaveSession", 3)

	members, err := f.coord.MembersOf(meta.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.NoError(t, f.coord.MediaSelf(ctx, meta.ID, "bob", domain.MediaFieldCamera, domain.MediaOff))
}

func TestRoomCoordinator_EndMeetingFlushesAndMarksEnded(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := testMeta(10)

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Once()
	f.rooms.On("SetStatus", mock.Anything, meta.ID, domain.RoomStatusEnded, mock.Anything).Return(nil).Once()
	f.parts.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.parts.On("UpdateTotals", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("SaveSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.audits.On("CreateEntry", mock.Anything, mock.Anything).Return(nil)

	hostConn := newFakeConn()
	_, err := f.coord.Connect(ctx, meta.ID, testJoin("host", time.Now()), hostConn)
	require.NoError(t, err)
	bobConn := newFakeConn()
	_, err = f.coord.Connect(ctx, meta.ID, testJoin("bob", time.Now()), bobConn)
	require.NoError(t, err)

	// рядовой участник встречу не завершит
	err = f.coord.EndMeeting(ctx, meta.ID, "bob", "")
	require.ErrorIs(t, err, errors.ErrForbidden)

	err = f.coord.EndMeeting(ctx, meta.ID, "host", "")
	require.NoError(t, err)

	for _, conn := range []*fakeConn{hostConn, bobConn} {
		ended := eventsOfType(t, conn, domain.TypeMeetingEnded)
		require.Len(t, ended, 1)
		var payload domain.MeetingEndedPayload
		require.NoError(t, json.Unmarshal(ended[0], &payload))
		assert.Equal(t, ReasonEndedByHost, payload.Reason)
		assert.True(t, conn.Closed())
	}

	// интервалы всех участников дозаписаны, статус встречи обновлён
	f.sessions.AssertNumberOfCalls(t, "SaveSession", 2)
	f.parts.AssertNumberOfCalls(t, "UpdateTotals", 2)
	f.rooms.AssertExpectations(t)
	require.Len(t, f.auditEvents(domain.EventTypeMeetingEnded), 1)

	_, ok := f.registry.Get(meta.ID)
	assert.False(t, ok)

	// поздний вход по той же ссылке упирается в закрытую запись
	endedMeta := *meta
	endedMeta.Status = domain.RoomStatusEnded
	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(&endedMeta, nil).Once()
	_, err = f.coord.Connect(ctx, meta.ID, testJoin("late", time.Now()), newFakeConn())
	require.ErrorIs(t, err, errors.ErrRoomClosed)
}

func TestRoomCoordinator_EndMeetingRequiresMembership(t *testing.T) {
	f := newCoordinatorFixture()
	err := f.coord.EndMeeting(context.Background(), uuid.New(), "ghost", "")
	require.ErrorIs(t, err, errors.ErrNotAMember)
}

func TestRoomCoordinator_EndMeetingByUserWithoutLiveRoom(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := testMeta(10)
	hostUID := uuid.New()
	meta.HostUserID = &hostUID

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Once()
	f.rooms.On("SetStatus", mock.Anything, meta.ID, domain.RoomStatusEnded, mock.Anything).Return(nil).Once()
	f.audits.On("CreateEntry", mock.Anything, mock.Anything).Return(nil)

	err := f.coord.EndMeetingByUser(ctx, meta.ID, &hostUID, false, "")
	require.NoError(t, err)

	f.rooms.AssertExpectations(t)
	events := f.auditEvents(domain.EventTypeMeetingEnded)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ParticipantRoleHost, events[0].ActorRole)
}

func TestRoomCoordinator_EndMeetingByUserAuthority(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := testMeta(10)
	hostUID := uuid.New()
	strangerUID := uuid.New()
	meta.HostUserID = &hostUID

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil)
	f.audits.On("CreateEntry", mock.Anything, mock.Anything).Return(nil)

	// посторонний пользователь без прав администратора получает отказ
	err := f.coord.EndMeetingByUser(ctx, meta.ID, &strangerUID, false, "")
	require.ErrorIs(t, err, errors.ErrForbidden)
	f.rooms.AssertNumberOfCalls(t, "SetStatus", 0)

	// администратору можно
	f.rooms.On("SetStatus", mock.Anything, meta.ID, domain.RoomStatusEnded, mock.Anything).Return(nil).Once()
	err = f.coord.EndMeetingByUser(ctx, meta.ID, &strangerUID, true, "")
	require.NoError(t, err)
	events := f.auditEvents(domain.EventTypeMeetingEnded)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ParticipantRoleAdmin, events[0].ActorRole)
}

func TestRoomCoordinator_EndMeetingByUserAlreadyEnded(t *testing.T) {
	f := newCoordinatorFixture()
	meta := testMeta(10)
	meta.Status = domain.RoomStatusEnded
	hostUID := uuid.New()
	meta.HostUserID = &hostUID

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Once()

	err := f.coord.EndMeetingByUser(context.Background(), meta.ID, &hostUID, false, "")
	require.ErrorIs(t, err, errors.ErrRoomClosed)
}

func TestRoomCoordinator_EndMeetingByUserEndsLiveRoom(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := testMeta(10)
	hostUID := uuid.New()
	meta.HostUserID = &hostUID

	// метаданные читаются при подъёме комнаты и при REST-завершении
	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Twice()
	f.expectQuietPersistence()

	conn := newFakeConn()
	_, err := f.coord.Connect(ctx, meta.ID, testJoin("alice", time.Now()), conn)
	require.NoError(t, err)

	err = f.coord.EndMeetingByUser(ctx, meta.ID, &hostUID, false, "moderated")
	require.NoError(t, err)

	assert.True(t, conn.Closed())
	ended := eventsOfType(t, conn, domain.TypeMeetingEnded)
	require.Len(t, ended, 1)
	// статус пишется один раз, из завершения живой комнаты
	f.rooms.AssertNumberOfCalls(t, "SetStatus", 1)
	_, ok := f.registry.Get(meta.ID)
	assert.False(t, ok)
}

func TestRoomCoordinator_DisconnectIsIdempotent(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := testMeta(10)

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Once()
	f.expectQuietPersistence()

	aliceConn := newFakeConn()
	_, err := f.coord.Connect(ctx, meta.ID, testJoin("alice", time.Now()), aliceConn)
	require.NoError(t, err)
	_, err = f.coord.Connect(ctx, meta.ID, testJoin("bob", time.Now()), newFakeConn())
	require.NoError(t, err)

	f.coord.Disconnect(ctx, meta.ID, "alice", aliceConn, "left")
	f.coord.Disconnect(ctx, meta.ID, "alice", aliceConn, "left")
	f.coord.Disconnect(ctx, uuid.New(), "alice", aliceConn, "left")

	f.parts.AssertNumberOfCalls(t, "UpdateTotals", 1)
	assert.Len(t, f.auditEvents(domain.EventTypeRoomLeft), 1)

	members, err := f.coord.MembersOf(meta.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRoomCoordinator_SignalErrors(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := testMeta(10)

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Once()
	f.expectQuietPersistence()

	_, err := f.coord.Connect(ctx, meta.ID, testJoin("alice", time.Now()), newFakeConn())
	require.NoError(t, err)
	bobConn := newFakeConn()
	_, err = f.coord.Connect(ctx, meta.ID, testJoin("bob", time.Now()), bobConn)
	require.NoError(t, err)

	err = f.coord.Signal(ctx, meta.ID, "alice", &domain.SignalEnvelope{To: "ghost", Type: domain.SignalOffer})
	require.ErrorIs(t, err, errors.ErrUnknownTarget)

	err = f.coord.Signal(ctx, uuid.New(), "alice", &domain.SignalEnvelope{To: "bob", Type: domain.SignalOffer})
	require.ErrorIs(t, err, errors.ErrNotAMember)

	// ошибки отправителя до адресата не доходят
	assert.Empty(t, eventsOfType(t, bobConn, domain.TypeSignal))
}

func TestRoomCoordinator_ModeratorMediaPersistsAndAudits(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := testMeta(10)

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Once()
	f.parts.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.parts.On("UpdateMediaState", mock.Anything, mock.Anything, domain.MediaMutedByHost, domain.MediaOn).Return(nil).Once()
	f.audits.On("CreateEntry", mock.Anything, mock.Anything).Return(nil)

	_, err := f.coord.Connect(ctx, meta.ID, testJoin("host", time.Now()), newFakeConn())
	require.NoError(t, err)
	_, err = f.coord.Connect(ctx, meta.ID, testJoin("bob", time.Now()), newFakeConn())
	require.NoError(t, err)

	err = f.coord.MediaModerator(ctx, meta.ID, "host", "bob", domain.MediaFieldMic, domain.MediaMutedByHost)
	require.NoError(t, err)

	f.parts.AssertExpectations(t)
	events := f.auditEvents(domain.EventTypeMediaForced)
	require.Len(t, events, 1)
	assert.Equal(t, "host", events[0].ActorPeerID)
	assert.Equal(t, "bob", events[0].Payload["target_peer_id"])

	// отказ не оставляет следов ни в хранилище, ни в аудите
	err = f.coord.MediaModerator(ctx, meta.ID, "bob", "host", domain.MediaFieldMic, domain.MediaMutedByHost)
	require.ErrorIs(t, err, errors.ErrForbidden)
	require.Len(t, f.auditEvents(domain.EventTypeMediaForced), 1)
}

func TestRoomCoordinator_ChangeRolePersistsAndAudits(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta := testMeta(10)

	f.rooms.On("GetMeta", mock.Anything, meta.ID).Return(meta, nil).Once()
	f.parts.On("Upsert", mock.Anything, mock.MatchedBy(func(p *domain.Participant) bool {
		return p.PeerID == "bob" && p.Role == domain.ParticipantRoleCoHost
	})).Return(nil).Once()
	f.parts.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.audits.On("CreateEntry", mock.Anything, mock.Anything).Return(nil)

	_, err := f.coord.Connect(ctx, meta.ID, testJoin("host", time.Now()), newFakeConn())
	require.NoError(t, err)
	_, err = f.coord.Connect(ctx, meta.ID, testJoin("bob", time.Now()), newFakeConn())
	require.NoError(t, err)

	err = f.coord.ChangeRole(ctx, meta.ID, "host", "bob", domain.ParticipantRoleCoHost)
	require.NoError(t, err)

	f.parts.AssertExpectations(t)
	events := f.auditEvents(domain.EventTypeRoleChanged)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ParticipantRoleCoHost, events[0].Payload["role"])
}

func TestRoomCoordinator_ShutdownFlushesWithoutClosingRows(t *testing.T) {
	f := newCoordinatorFixture()
	ctx := context.Background()
	meta1 := testMeta(10)
	meta2 := testMeta(10)

	f.rooms.On("GetMeta", mock.Anything, meta1.ID).Return(meta1, nil).Once()
	f.rooms.On("GetMeta", mock.Anything, meta2.ID).Return(meta2, nil).Once()
	f.parts.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.parts.On("UpdateTotals", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.sessions.On("SaveSession", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.audits.On("CreateEntry", mock.Anything, mock.Anything).Return(nil)

	conn1 := newFakeConn()
	_, err := f.coord.Connect(ctx, meta1.ID, testJoin("alice", time.Now()), conn1)
	require.NoError(t, err)
	conn2 := newFakeConn()
	_, err = f.coord.Connect(ctx, meta2.ID, testJoin("bob", time.Now()), conn2)
	require.NoError(t, err)

	f.coord.Shutdown(ctx)

	for _, conn := range []*fakeConn{conn1, conn2} {
		assert.True(t, conn.Closed())
		ended := eventsOfType(t, conn, domain.TypeMeetingEnded)
		require.Len(t, ended, 1)
		var payload domain.MeetingEndedPayload
		require.NoError(t, json.Unmarshal(ended[0], &payload))
		assert.Equal(t, ReasonServerShutdown, payload.Reason)
	}

	// интервалы дозаписаны, но статус встреч в хранилище не менялся:
	// после рестарта они продолжатся
	f.sessions.AssertNumberOfCalls(t, "SaveSession", 2)
	f.rooms.AssertNumberOfCalls(t, "SetStatus", 0)
	assert.Empty(t, f.registry.Rooms())

	events := f.auditEvents(domain.EventTypeMeetingEnded)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, domain.ActorRoleSystem, e.ActorRole)
	}
}
