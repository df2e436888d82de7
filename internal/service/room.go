package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"conference_core/internal/domain"
	"conference_core/pkg/errors"
	"conference_core/pkg/logger"
)

// Room - живое состояние одной встречи: состав, журнал интервалов,
// медиа-состояния. На комнату один мьютекс: мутации состояния и
// постановка рассылок в очереди происходят под ним, поэтому все
// участники видят события комнаты в одном порядке. Комнаты независимы
// друг от друга.
type Room struct {
	mu sync.Mutex

	meta         *domain.RoomMeta
	members      map[string]*member
	participants map[string]*domain.Participant
	order        []string
	ledger       *SessionLedger
	media        *MediaAuthority
	destroyed    bool

	log logger.Logger
}

type member struct {
	participant *domain.Participant
	conn        PeerConn
}

type droppedPeer struct {
	peerID string
	conn   PeerConn
}

// cloneParticipant снимает копию строки участника: результаты операций
// уходят за пределы блокировки комнаты, а оригинал продолжает меняться.
func cloneParticipant(p *domain.Participant) *domain.Participant {
	cp := *p
	return &cp
}

func newRoom(meta *domain.RoomMeta, log logger.Logger) *Room {
	return &Room{
		meta:         meta,
		members:      make(map[string]*member),
		participants: make(map[string]*domain.Participant),
		ledger:       NewSessionLedger(),
		media:        NewMediaAuthority(),
		log:          log,
	}
}

func (r *Room) ID() uuid.UUID {
	return r.meta.ID
}

func (r *Room) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

type JoinParams struct {
	PeerID      string
	UserID      *uuid.UUID
	DisplayName string
	Passcode    string
	MicOn       bool
	CameraOn    bool
	Admin       bool
	At          time.Time
}

type JoinResult struct {
	Participant *domain.Participant
	Snapshot    *domain.RoomStatePayload
	Rejoined    bool
	Superseded  PeerConn
	Dropped     []*droppedPeer
}

// Join пускает пира в комнату: проверка пароля и вместимости, открытие
// интервала, инициализация медиа-состояний, рассылка peer-joined
// остальным. Снапшот комнаты ставится в очередь вошедшему ещё в
// критической секции, чтобы последующие события его не обогнали.
// Повторный вход активного пира - вытеснение старого соединения.
func (r *Room) Join(p JoinParams, conn PeerConn) (*JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return nil, errors.ErrRoomClosed
	}

	if r.meta.HasPasscode() {
		if bcrypt.CompareHashAndPassword([]byte(*r.meta.PasscodeHash), []byte(p.Passcode)) != nil {
			return nil, errors.ErrWrongPasscode
		}
	}

	existing := r.members[p.PeerID]
	if existing == nil && len(r.members) >= r.meta.MaxParticipants {
		return nil, errors.ErrRoomFull
	}

	result := &JoinResult{}

	if existing != nil {
		// Вытеснение: интервал и медиа-состояния продолжают жить,
		// меняется только соединение. Снапшот уходит до подмены: если
		// новое соединение не приняло даже его, старое остаётся в строю.
		result.Snapshot = r.snapshotLocked(p.PeerID)
		if err := conn.TrySend(encodeEvent(domain.TypeRoomState, result.Snapshot)); err != nil {
			return nil, errors.ErrBackpressure
		}
		result.Rejoined = true
		result.Participant = cloneParticipant(existing.participant)
		if existing.conn != conn {
			result.Superseded = existing.conn
			existing.conn = conn
		}
		return result, nil
	}

	row := r.participants[p.PeerID]
	if row == nil {
		row = &domain.Participant{
			ID:       uuid.New(),
			RoomID:   r.meta.ID,
			PeerID:   p.PeerID,
			UserID:   p.UserID,
			JoinedAt: p.At,
			Role:     r.roleFor(p),
		}
		r.participants[p.PeerID] = row
	}
	if p.DisplayName != "" {
		row.DisplayName = p.DisplayName
	}
	row.LeftAt = nil

	if _, err := r.ledger.Open(p.PeerID, p.At); err != nil {
		r.log.Warn("Ledger span already open on join", "room_id", r.meta.ID, "peer_id", p.PeerID)
	}
	r.media.Init(p.PeerID, p.MicOn, p.CameraOn)
	row.MicState, row.CameraState = r.media.States(p.PeerID)

	m := &member{participant: row, conn: conn}
	r.members[p.PeerID] = m
	r.order = append(r.order, p.PeerID)

	result.Participant = cloneParticipant(row)
	result.Snapshot = r.snapshotLocked(p.PeerID)
	if err := conn.TrySend(encodeEvent(domain.TypeRoomState, result.Snapshot)); err != nil {
		// свежая очередь не приняла даже снапшот - входа не было
		delete(r.members, p.PeerID)
		r.removeFromOrderLocked(p.PeerID)
		r.ledger.Close(p.PeerID, p.At)
		r.media.Drop(p.PeerID)
		return nil, errors.ErrBackpressure
	}

	result.Dropped = r.broadcastLocked(encodeEvent(domain.TypePeerJoined, r.memberInfoLocked(m)), p.PeerID)

	return result, nil
}

func (r *Room) roleFor(p JoinParams) string {
	if p.PeerID == r.meta.HostPeerID {
		return domain.ParticipantRoleHost
	}
	if p.UserID != nil && r.meta.HostUserID != nil && *p.UserID == *r.meta.HostUserID {
		return domain.ParticipantRoleHost
	}
	if p.Admin {
		return domain.ParticipantRoleAdmin
	}
	return domain.ParticipantRoleMember
}

type LeaveResult struct {
	Participant *domain.Participant
	Conn        PeerConn
	Span        *domain.Session
	TotalSec    int64
	Empty       bool
	Dropped     []*droppedPeer
}

// Leave закрывает интервал участника и убирает его из состава. Выход
// неизвестного пира или устаревшего (вытесненного) соединения - no-op с
// ErrNotAMember. Когда состав пустеет, комната помечается уничтоженной:
// следующий вход по этому roomID соберёт свежую комнату.
func (r *Room) Leave(peerID string, conn PeerConn, at time.Time, reason string) (*LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[peerID]
	if !ok {
		return nil, errors.ErrNotAMember
	}
	if conn != nil && m.conn != conn {
		return nil, errors.ErrNotAMember
	}

	delete(r.members, peerID)
	r.removeFromOrderLocked(peerID)

	span, total, err := r.ledger.Close(peerID, at)
	if err != nil {
		span = nil
	}
	m.participant.MicState, m.participant.CameraState = r.media.States(peerID)
	r.media.Drop(peerID)
	m.participant.LeftAt = &at
	m.participant.TotalDurationSec = total

	frame := encodeEvent(domain.TypePeerLeft, domain.PeerLeftPayload{PeerID: peerID, Reason: reason})
	dropped := r.broadcastLocked(frame, peerID)

	empty := len(r.members) == 0
	if empty {
		r.destroyed = true
	}

	return &LeaveResult{
		Participant: cloneParticipant(m.participant),
		Conn:        m.conn,
		Span:        span,
		TotalSec:    total,
		Empty:       empty,
		Dropped:     dropped,
	}, nil
}

type MediaResult struct {
	Participant *domain.Participant
	Actor       *domain.Participant
	Mic         string
	Camera      string
	Dropped     []*droppedPeer
}

// SelfMedia применяет собственную смену медиа-состояния участника и
// рассылает media-changed всем, включая инициатора.
func (r *Room) SelfMedia(peerID, field, value string) (*MediaResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[peerID]
	if !ok {
		return nil, errors.ErrNotAMember
	}

	if err := r.media.SelfUpdate(peerID, field, value); err != nil {
		return nil, err
	}

	return r.mediaChangedLocked(m, nil), nil
}

// ModeratorMedia - принудительная смена состояния участника модератором.
func (r *Room) ModeratorMedia(actorPeerID, targetPeerID, field, value string) (*MediaResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	actor, ok := r.members[actorPeerID]
	if !ok {
		return nil, errors.ErrNotAMember
	}
	target, ok := r.members[targetPeerID]
	if !ok {
		return nil, errors.ErrUnknownTarget
	}

	if err := r.media.ModeratorUpdate(actor.participant.Role, targetPeerID, field, value); err != nil {
		return nil, err
	}

	return r.mediaChangedLocked(target, actor.participant), nil
}

func (r *Room) mediaChangedLocked(target *member, actor *domain.Participant) *MediaResult {
	peerID := target.participant.PeerID
	mic, camera := r.media.States(peerID)
	target.participant.MicState = mic
	target.participant.CameraState = camera

	payload := domain.MediaChangedPayload{PeerID: peerID, Mic: mic, Camera: camera}
	if actor != nil {
		payload.By = actor.PeerID
	}
	dropped := r.broadcastLocked(encodeEvent(domain.TypeMediaChanged, payload), "")

	result := &MediaResult{
		Participant: cloneParticipant(target.participant),
		Mic:         mic,
		Camera:      camera,
		Dropped:     dropped,
	}
	if actor != nil {
		result.Actor = cloneParticipant(actor)
	}
	return result
}

type RoleResult struct {
	Actor   *domain.Participant
	Target  *domain.Participant
	Dropped []*droppedPeer
}

// ChangeRole меняет роль участника. Доступно хосту и администратору.
// Назначать можно co_host и member: хост определяется только
// метаданными комнаты.
func (r *Room) ChangeRole(actorPeerID, targetPeerID, role string) (*RoleResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	actor, ok := r.members[actorPeerID]
	if !ok {
		return nil, errors.ErrNotAMember
	}
	if !domain.CanManageRoom(actor.participant.Role) {
		return nil, errors.ErrForbidden
	}
	if role != domain.ParticipantRoleCoHost && role != domain.ParticipantRoleMember {
		return nil, errors.ErrBadRequest
	}
	target, ok := r.members[targetPeerID]
	if !ok {
		return nil, errors.ErrUnknownTarget
	}

	target.participant.Role = role
	payload := domain.RoleChangedPayload{PeerID: targetPeerID, Role: role}
	dropped := r.broadcastLocked(encodeEvent(domain.TypeRoleChanged, payload), "")

	return &RoleResult{
		Actor:   cloneParticipant(actor.participant),
		Target:  cloneParticipant(target.participant),
		Dropped: dropped,
	}, nil
}

// Member - снимок строки участника, если он в составе.
func (r *Room) Member(peerID string) (*domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[peerID]
	if !ok {
		return nil, false
	}
	return cloneParticipant(m.participant), true
}

type MemberFlush struct {
	Participant *domain.Participant
	Span        *domain.Session
	TotalSec    int64
}

type EndResult struct {
	Reason string
	Flush  []*MemberFlush
	Conns  []PeerConn
}

// End завершает встречу: meeting-ended всем, закрытие всех интервалов,
// комната помечается уничтоженной. Соединения закрывает координатор уже
// после выхода из критической секции.
func (r *Room) End(at time.Time, reason string) (*EndResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return nil, errors.ErrRoomClosed
	}

	r.broadcastLocked(encodeEvent(domain.TypeMeetingEnded, domain.MeetingEndedPayload{Reason: reason}), "")

	result := &EndResult{Reason: reason}
	for _, peerID := range r.order {
		m, ok := r.members[peerID]
		if !ok {
			continue
		}
		span, total, err := r.ledger.Close(peerID, at)
		if err != nil {
			span = nil
		}
		m.participant.MicState, m.participant.CameraState = r.media.States(peerID)
		r.media.Drop(peerID)
		m.participant.LeftAt = &at
		m.participant.TotalDurationSec = total
		result.Flush = append(result.Flush, &MemberFlush{Participant: cloneParticipant(m.participant), Span: span, TotalSec: total})
		result.Conns = append(result.Conns, m.conn)
	}
	r.members = make(map[string]*member)
	r.order = nil
	r.destroyed = true

	return result, nil
}

// Forward доставляет конверт сигналинга адресату. Содержимое не
// разбирается и не переписывается, подставляется только отправитель.
// Переполненная очередь адресата - не ошибка отправителя: адресат
// возвращается в списке выбывших.
func (r *Room) Forward(fromPeerID string, env *domain.SignalEnvelope) ([]*droppedPeer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[fromPeerID]; !ok {
		return nil, errors.ErrNotAMember
	}
	target, ok := r.members[env.To]
	if !ok {
		return nil, errors.ErrUnknownTarget
	}

	env.From = fromPeerID
	if err := target.conn.TrySend(encodeEvent(domain.TypeSignal, env)); err != nil {
		return []*droppedPeer{{peerID: env.To, conn: target.conn}}, nil
	}
	return nil, nil
}

// Members - снимок состава в порядке входа.
func (r *Room) Members() []domain.MemberInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked("").Members
}

func (r *Room) snapshotLocked(self string) *domain.RoomStatePayload {
	members := make([]domain.MemberInfo, 0, len(r.order))
	for _, peerID := range r.order {
		m, ok := r.members[peerID]
		if !ok {
			continue
		}
		members = append(members, r.memberInfoLocked(m))
	}
	return &domain.RoomStatePayload{RoomID: r.meta.ID.String(), Self: self, Members: members}
}

func (r *Room) memberInfoLocked(m *member) domain.MemberInfo {
	peerID := m.participant.PeerID
	mic, camera := r.media.States(peerID)
	joinedAt := m.participant.JoinedAt
	if s := r.ledger.Active(peerID); s != nil {
		joinedAt = s.JoinedAt
	}
	return domain.MemberInfo{
		PeerID:      peerID,
		DisplayName: m.participant.DisplayName,
		Role:        m.participant.Role,
		Mic:         mic,
		Camera:      camera,
		JoinedAt:    joinedAt,
	}
}

// broadcastLocked ставит кадр в очередь каждому участнику, кроме except.
// Переполненные очереди собираются в список: таких пиров координатор
// отключит после выхода из критической секции.
func (r *Room) broadcastLocked(f Frame, except string) []*droppedPeer {
	var dropped []*droppedPeer
	for peerID, m := range r.members {
		if peerID == except {
			continue
		}
		if err := m.conn.TrySend(f); err != nil {
			dropped = append(dropped, &droppedPeer{peerID: peerID, conn: m.conn})
		}
	}
	return dropped
}

func (r *Room) removeFromOrderLocked(peerID string) {
	for i, id := range r.order {
		if id == peerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
