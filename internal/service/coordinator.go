package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"conference_core/internal/config"
	"conference_core/internal/domain"
	"conference_core/internal/repository"
	"conference_core/pkg/errors"
	"conference_core/pkg/logger"
)

// Причины выхода, которые ядро подставляет само. Произвольные причины
// от клиентов и обработчиков тоже допустимы.
const (
	ReasonConnectionClosed = "connection closed"
	ReasonSlowConsumer     = "slow consumer"
	ReasonEndedByHost      = "ended by host"
	ReasonServerShutdown   = "server shutdown"
)

// RoomCoordinator - единственная точка входа обработчиков в живые
// комнаты. Комната меняет своё состояние под собственной блокировкой,
// координатор делает всё остальное уже снаружи: закрывает вытесненные и
// переполненные соединения, дозаписывает интервалы в хранилище, ведёт
// журнал аудита.
type RoomCoordinator interface {
	Connect(ctx context.Context, roomID uuid.UUID, p JoinParams, conn PeerConn) (*domain.RoomStatePayload, error)
	Disconnect(ctx context.Context, roomID uuid.UUID, peerID string, conn PeerConn, reason string)
	Signal(ctx context.Context, roomID uuid.UUID, fromPeerID string, env *domain.SignalEnvelope) error
	MediaSelf(ctx context.Context, roomID uuid.UUID, peerID, field, value string) error
	MediaModerator(ctx context.Context, roomID uuid.UUID, actorPeerID, targetPeerID, field, value string) error
	ChangeRole(ctx context.Context, roomID uuid.UUID, actorPeerID, targetPeerID, role string) error
	EndMeeting(ctx context.Context, roomID uuid.UUID, actorPeerID, reason string) error
	EndMeetingByUser(ctx context.Context, roomID uuid.UUID, userID *uuid.UUID, admin bool, reason string) error
	MembersOf(roomID uuid.UUID) ([]domain.MemberInfo, error)
	Shutdown(ctx context.Context)
}

type roomCoordinator struct {
	registry *RoomRegistry
	relay    SignalRelay
	repos    *repository.Repositories
	audit    AuditService
	cfg      config.StorageConfig
	log      logger.Logger
}

func NewRoomCoordinator(
	registry *RoomRegistry,
	relay SignalRelay,
	repos *repository.Repositories,
	audit AuditService,
	cfg config.StorageConfig,
	log logger.Logger,
) RoomCoordinator {
	return &roomCoordinator{
		registry: registry,
		relay:    relay,
		repos:    repos,
		audit:    audit,
		cfg:      cfg,
		log:      log,
	}
}

// Connect заводит пира в комнату. Если комната опустела и умерла между
// выборкой из реестра и входом, вторая попытка соберёт свежую.
func (c *roomCoordinator) Connect(ctx context.Context, roomID uuid.UUID, p JoinParams, conn PeerConn) (*domain.RoomStatePayload, error) {
	if p.At.IsZero() {
		p.At = time.Now()
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		room, err := c.registry.GetOrCreate(ctx, roomID)
		if err != nil {
			return nil, err
		}

		res, err := room.Join(p, conn)
		if errors.Is(err, errors.ErrRoomClosed) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		if res.Superseded != nil {
			c.log.Info("Peer connection superseded", "room_id", roomID, "peer_id", p.PeerID)
			res.Superseded.Close()
		}
		c.kickDropped(ctx, room, res.Dropped)
		if !res.Rejoined {
			c.persistParticipant(ctx, res.Participant)
			c.appendAudit(ctx, actorOf(res.Participant), roomID, domain.EventTypeRoomJoined, map[string]interface{}{
				"display_name": res.Participant.DisplayName,
			})
		}
		return res.Snapshot, nil
	}
	return nil, lastErr
}

// Disconnect выводит пира из комнаты. Идемпотентен: повторный вызов,
// вызов для чужой комнаты или с вытесненным соединением ничего не
// делает.
func (c *roomCoordinator) Disconnect(ctx context.Context, roomID uuid.UUID, peerID string, conn PeerConn, reason string) {
	room, ok := c.registry.Get(roomID)
	if !ok {
		return
	}

	res, err := room.Leave(peerID, conn, time.Now(), reason)
	if err != nil {
		return
	}
	c.finishLeave(ctx, room, res, reason)
}

// Signal пересылает конверт адресату. Переполненная очередь адресата
// не считается ошибкой отправителя: адресат отключается.
func (c *roomCoordinator) Signal(ctx context.Context, roomID uuid.UUID, fromPeerID string, env *domain.SignalEnvelope) error {
	dropped, err := c.relay.Relay(roomID, fromPeerID, env)
	if err != nil {
		return err
	}
	if len(dropped) > 0 {
		if room, ok := c.registry.Get(roomID); ok {
			c.kickDropped(ctx, room, dropped)
		}
	}
	return nil
}

func (c *roomCoordinator) MediaSelf(ctx context.Context, roomID uuid.UUID, peerID, field, value string) error {
	room, ok := c.registry.Get(roomID)
	if !ok {
		return errors.ErrNotAMember
	}

	res, err := room.SelfMedia(peerID, field, value)
	if err != nil {
		return err
	}
	c.kickDropped(ctx, room, res.Dropped)
	c.persistMedia(ctx, res.Participant)
	return nil
}

func (c *roomCoordinator) MediaModerator(ctx context.Context, roomID uuid.UUID, actorPeerID, targetPeerID, field, value string) error {
	room, ok := c.registry.Get(roomID)
	if !ok {
		return errors.ErrNotAMember
	}

	res, err := room.ModeratorMedia(actorPeerID, targetPeerID, field, value)
	if err != nil {
		return err
	}
	c.kickDropped(ctx, room, res.Dropped)
	c.persistMedia(ctx, res.Participant)
	c.appendAudit(ctx, actorOf(res.Actor), roomID, domain.EventTypeMediaForced, map[string]interface{}{
		"target_peer_id": targetPeerID,
		"field":          field,
		"value":          value,
	})
	return nil
}

func (c *roomCoordinator) ChangeRole(ctx context.Context, roomID uuid.UUID, actorPeerID, targetPeerID, role string) error {
	room, ok := c.registry.Get(roomID)
	if !ok {
		return errors.ErrNotAMember
	}

	res, err := room.ChangeRole(actorPeerID, targetPeerID, role)
	if err != nil {
		return err
	}
	c.kickDropped(ctx, room, res.Dropped)
	c.persistParticipant(ctx, res.Target)
	c.appendAudit(ctx, actorOf(res.Actor), roomID, domain.EventTypeRoleChanged, map[string]interface{}{
		"target_peer_id": targetPeerID,
		"role":           role,
	})
	return nil
}

// EndMeeting завершает встречу по команде участника. Доступно хосту и
// администратору.
func (c *roomCoordinator) EndMeeting(ctx context.Context, roomID uuid.UUID, actorPeerID, reason string) error {
	room, ok := c.registry.Get(roomID)
	if !ok {
		return errors.ErrNotAMember
	}
	actor, ok := room.Member(actorPeerID)
	if !ok {
		return errors.ErrNotAMember
	}
	if !domain.CanManageRoom(actor.Role) {
		return errors.ErrForbidden
	}
	if reason == "" {
		reason = ReasonEndedByHost
	}
	return c.endRoom(ctx, room, actorOf(actor), reason, true)
}

// EndMeetingByUser завершает встречу по REST-запросу хоста или
// администратора, в том числе когда живой комнаты нет.
func (c *roomCoordinator) EndMeetingByUser(ctx context.Context, roomID uuid.UUID, userID *uuid.UUID, admin bool, reason string) error {
	meta, err := c.repos.Room.GetMeta(ctx, roomID)
	if err != nil {
		return err
	}
	if meta.Status != domain.RoomStatusActive {
		return errors.ErrRoomClosed
	}

	isHost := userID != nil && meta.HostUserID != nil && *userID == *meta.HostUserID
	if !isHost && !admin {
		return errors.ErrForbidden
	}

	actor := Actor{UserID: userID, Role: domain.ParticipantRoleHost}
	if !isHost {
		actor.Role = domain.ParticipantRoleAdmin
	}
	if reason == "" {
		reason = ReasonEndedByHost
	}

	if room, ok := c.registry.Get(roomID); ok {
		err := c.endRoom(ctx, room, actor, reason, true)
		if !errors.Is(err, errors.ErrRoomClosed) {
			return err
		}
		// живая комната уже умерла сама - остаётся только статус
	}

	now := time.Now()
	if err := c.repos.Room.SetStatus(ctx, roomID, domain.RoomStatusEnded, &now); err != nil {
		return err
	}
	c.appendAudit(ctx, actor, roomID, domain.EventTypeMeetingEnded, map[string]interface{}{"reason": reason})
	return nil
}

// MembersOf - живой состав комнаты в порядке входа.
func (c *roomCoordinator) MembersOf(roomID uuid.UUID) ([]domain.MemberInfo, error) {
	room, ok := c.registry.Get(roomID)
	if !ok {
		return nil, errors.ErrRoomNotFound
	}
	return room.Members(), nil
}

// Shutdown завершает все живые комнаты при остановке сервера. Статус
// комнат в хранилище не трогается: после рестарта встречи продолжатся.
func (c *roomCoordinator) Shutdown(ctx context.Context) {
	for _, room := range c.registry.Rooms() {
		if err := c.endRoom(ctx, room, SystemActor, ReasonServerShutdown, false); err != nil && !errors.Is(err, errors.ErrRoomClosed) {
			c.log.Error("Failed to end room on shutdown", "room_id", room.ID(), "error", err)
		}
	}
}

// endRoom рассылает meeting-ended, закрывает соединения и дозаписывает
// интервалы всех участников. markEnded управляет статусом в хранилище.
func (c *roomCoordinator) endRoom(ctx context.Context, room *Room, actor Actor, reason string, markEnded bool) error {
	now := time.Now()
	res, err := room.End(now, reason)
	if err != nil {
		return err
	}

	for _, conn := range res.Conns {
		conn.Close()
	}
	for _, f := range res.Flush {
		c.persistSpan(ctx, f.Participant, f.Span, f.TotalSec)
	}
	c.registry.Evict(room.ID(), room)

	if markEnded {
		if err := c.withRetry(ctx, func(ctx context.Context) error {
			return c.repos.Room.SetStatus(ctx, room.ID(), domain.RoomStatusEnded, &now)
		}); err != nil {
			c.log.Error("Failed to mark room ended", "room_id", room.ID(), "error", err)
		}
	}
	c.appendAudit(ctx, actor, room.ID(), domain.EventTypeMeetingEnded, map[string]interface{}{"reason": reason})
	c.log.Info("Meeting ended", "room_id", room.ID(), "reason", reason, "participants", len(res.Flush))
	return nil
}

func (c *roomCoordinator) finishLeave(ctx context.Context, room *Room, res *LeaveResult, reason string) {
	c.persistSpan(ctx, res.Participant, res.Span, res.TotalSec)
	c.appendAudit(ctx, actorOf(res.Participant), room.ID(), domain.EventTypeRoomLeft, map[string]interface{}{"reason": reason})
	c.kickDropped(ctx, room, res.Dropped)
	if res.Empty {
		c.registry.Evict(room.ID(), room)
		c.log.Info("Room emptied", "room_id", room.ID())
	}
}

// kickDropped отключает пиров, чья очередь переполнилась. Их выход сам
// рассылает peer-left и может переполнить чью-то ещё очередь, поэтому
// список обходится до исчерпания.
func (c *roomCoordinator) kickDropped(ctx context.Context, room *Room, dropped []*droppedPeer) {
	for len(dropped) > 0 {
		d := dropped[0]
		dropped = dropped[1:]

		c.log.Warn("Dropping slow peer", "room_id", room.ID(), "peer_id", d.peerID)
		d.conn.Close()

		res, err := room.Leave(d.peerID, d.conn, time.Now(), ReasonSlowConsumer)
		if err != nil {
			continue
		}
		c.persistSpan(ctx, res.Participant, res.Span, res.TotalSec)
		c.appendAudit(ctx, actorOf(res.Participant), room.ID(), domain.EventTypeRoomLeft, map[string]interface{}{"reason": ReasonSlowConsumer})
		if res.Empty {
			c.registry.Evict(room.ID(), room)
		}
		dropped = append(dropped, res.Dropped...)
	}
}

// persistSpan дозаписывает закрытый интервал и пересчитанный итог с
// ограниченными повторами. После исчерпания повторов запись теряется с
// записью в лог, живое состояние комнаты от хранилища не зависит.
func (c *roomCoordinator) persistSpan(ctx context.Context, p *domain.Participant, span *domain.Session, total int64) {
	if span != nil {
		if err := c.withRetry(ctx, func(ctx context.Context) error {
			return c.repos.Session.SaveSession(ctx, p.ID, span)
		}); err != nil {
			c.log.Error("Dropping session span after retries", "participant_id", p.ID, "peer_id", p.PeerID, "error", err)
		}
	}
	if err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.repos.Participant.UpdateTotals(ctx, p.ID, total, p.LeftAt)
	}); err != nil {
		c.log.Error("Dropping participant totals after retries", "participant_id", p.ID, "peer_id", p.PeerID, "error", err)
	}
}

func (c *roomCoordinator) persistParticipant(ctx context.Context, p *domain.Participant) {
	if err := c.repos.Participant.Upsert(ctx, p); err != nil {
		c.log.Warn("Failed to persist participant", "participant_id", p.ID, "error", err)
	}
}

func (c *roomCoordinator) persistMedia(ctx context.Context, p *domain.Participant) {
	if err := c.repos.Participant.UpdateMediaState(ctx, p.ID, p.MicState, p.CameraState); err != nil {
		c.log.Warn("Failed to persist media state", "participant_id", p.ID, "error", err)
	}
}

func (c *roomCoordinator) appendAudit(ctx context.Context, actor Actor, roomID uuid.UUID, eventType string, payload map[string]interface{}) {
	if err := c.audit.LogEvent(ctx, actor, &roomID, eventType, payload); err != nil {
		c.log.Warn("Failed to append audit entry", "room_id", roomID, "event_type", eventType, "error", err)
	}
}

// withRetry повторяет запись в хранилище с экспоненциальной паузой.
func (c *roomCoordinator) withRetry(ctx context.Context, op func(context.Context) error) error {
	attempts := c.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := c.cfg.RetryBackoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func actorOf(p *domain.Participant) Actor {
	return Actor{UserID: p.UserID, PeerID: p.PeerID, Role: p.Role}
}
