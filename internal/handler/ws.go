package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"conference_core/internal/config"
	"conference_core/internal/domain"
	"conference_core/internal/service"
	"conference_core/pkg/errors"
	"conference_core/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшене нужно проверять origin
	},
}

// wsPeer - исходящая сторона пирского соединения. Очередь ограничена:
// TrySend никогда не блокируется, переполнение возвращает ошибку и
// координатор отключает такого пира.
type wsPeer struct {
	conn *websocket.Conn
	send chan service.Frame
	done chan struct{}
	once sync.Once
}

func (p *wsPeer) TrySend(f service.Frame) error {
	select {
	case <-p.done:
		return errors.ErrBackpressure
	default:
	}
	select {
	case p.send <- f:
		return nil
	default:
		return errors.ErrBackpressure
	}
}

// Close останавливает приём новых кадров. Сокет закроет writePump,
// дослав уже поставленные в очередь кадры: событие meeting-ended или
// снапшот не должны теряться из-за закрытия.
func (p *wsPeer) Close() {
	p.once.Do(func() {
		close(p.done)
	})
}

// Входящий конверт. Исходящие события идут тем же конвертом domain.Event.
type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wsJoinRequest struct {
	RoomID      string `json:"room_id"`
	DisplayName string `json:"display_name"`
	Passcode    string `json:"passcode"`
	Mic         *bool  `json:"mic"`
	Camera      *bool  `json:"camera"`
}

type wsMediaRequest struct {
	TargetPeerID string  `json:"target_peer_id"`
	Mic          *string `json:"mic"`
	Camera       *string `json:"camera"`
}

type wsRoleRequest struct {
	TargetPeerID string `json:"target_peer_id"`
	Role         string `json:"role"`
}

type wsEndRequest struct {
	Reason string `json:"reason"`
}

type WebSocketHandler struct {
	coordinator service.RoomCoordinator
	cfg         *config.Config
	log         logger.Logger
}

func NewWebSocketHandler(coordinator service.RoomCoordinator, cfg *config.Config, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		coordinator: coordinator,
		cfg:         cfg,
		log:         log,
	}
}

// Handle обслуживает пирское соединение. Первым делом клиент шлёт
// join с room_id - до этого пира не знает ни одна комната. Соединение
// привязывается к комнате до leave или разрыва; снапшот и все события
// приходят конвертом {type, payload}.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	peerID := c.GetString("participant_id")

	var userID *uuid.UUID
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(uuid.UUID); ok {
			userID = &id
		}
	}
	tokenName := c.GetString("display_name")
	isAdmin := c.GetBool("is_admin")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	peer := &wsPeer{
		conn: ws,
		send: make(chan service.Frame, h.cfg.WS.SendBuffer),
		done: make(chan struct{}),
	}
	defer peer.Close()

	ws.SetReadLimit(h.cfg.WS.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.WS.PongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.WS.PongTimeout))
	})

	go h.writePump(peer)

	h.log.Info("Peer connected", "peer_id", peerID)

	var roomID uuid.UUID
	joined := false
	reason := service.ReasonConnectionClosed
	defer func() {
		if joined {
			// Disconnect идемпотентен: для уже отключённого или
			// вытесненного пира это no-op
			h.coordinator.Disconnect(context.Background(), roomID, peerID, peer, reason)
		}
		h.log.Info("Peer disconnected", "peer_id", peerID, "reason", reason)
	}()

	ctx := c.Request.Context()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.reject(peer, errors.ErrBadRequest)
			continue
		}

		switch msg.Type {
		case "join":
			var req wsJoinRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				h.reject(peer, errors.ErrBadRequest)
				continue
			}
			rid, err := uuid.Parse(req.RoomID)
			if err != nil {
				h.reject(peer, errors.ErrBadRequest)
				continue
			}
			if joined && rid != roomID {
				// сначала leave, одна комната на соединение
				h.reject(peer, errors.ErrAlreadyActive)
				continue
			}
			name := req.DisplayName
			if name == "" {
				name = tokenName
			}
			params := service.JoinParams{
				PeerID:      peerID,
				UserID:      userID,
				DisplayName: name,
				Passcode:    req.Passcode,
				MicOn:       req.Mic == nil || *req.Mic,
				CameraOn:    req.Camera == nil || *req.Camera,
				Admin:       isAdmin,
			}
			if _, err := h.coordinator.Connect(ctx, rid, params, peer); err != nil {
				if errors.Is(err, errors.ErrBackpressure) {
					reason = service.ReasonSlowConsumer
					return
				}
				h.reject(peer, err)
				continue
			}
			roomID = rid
			joined = true

		case "leave":
			if joined {
				h.coordinator.Disconnect(ctx, roomID, peerID, peer, "left")
				joined = false
			}

		case "signal":
			var env domain.SignalEnvelope
			if err := json.Unmarshal(msg.Payload, &env); err != nil {
				h.reject(peer, errors.ErrInvalidSignal)
				continue
			}
			if !joined {
				h.reject(peer, errors.ErrNotAMember)
				continue
			}
			if err := h.coordinator.Signal(ctx, roomID, peerID, &env); err != nil {
				h.reject(peer, err)
			}

		case "media-state":
			var req wsMediaRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				h.reject(peer, errors.ErrBadRequest)
				continue
			}
			if !joined {
				h.reject(peer, errors.ErrNotAMember)
				continue
			}
			if req.Mic == nil && req.Camera == nil {
				h.reject(peer, errors.ErrBadRequest)
				continue
			}
			if req.Mic != nil {
				if err := h.applyMedia(ctx, roomID, peerID, req.TargetPeerID, domain.MediaFieldMic, *req.Mic); err != nil {
					h.reject(peer, err)
				}
			}
			if req.Camera != nil {
				if err := h.applyMedia(ctx, roomID, peerID, req.TargetPeerID, domain.MediaFieldCamera, *req.Camera); err != nil {
					h.reject(peer, err)
				}
			}

		case "change-role":
			var req wsRoleRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				h.reject(peer, errors.ErrBadRequest)
				continue
			}
			if !joined {
				h.reject(peer, errors.ErrNotAMember)
				continue
			}
			if err := h.coordinator.ChangeRole(ctx, roomID, peerID, req.TargetPeerID, req.Role); err != nil {
				h.reject(peer, err)
			}

		case "end-meeting":
			var req wsEndRequest
			if len(msg.Payload) > 0 {
				if err := json.Unmarshal(msg.Payload, &req); err != nil {
					h.reject(peer, errors.ErrBadRequest)
					continue
				}
			}
			if !joined {
				h.reject(peer, errors.ErrNotAMember)
				continue
			}
			if err := h.coordinator.EndMeeting(ctx, roomID, peerID, req.Reason); err != nil {
				h.reject(peer, err)
			}

		default:
			h.reject(peer, errors.ErrBadRequest)
		}
	}
}

func (h *WebSocketHandler) applyMedia(ctx context.Context, roomID uuid.UUID, peerID, target, field, value string) error {
	if target == "" || target == peerID {
		return h.coordinator.MediaSelf(ctx, roomID, peerID, field, value)
	}
	return h.coordinator.MediaModerator(ctx, roomID, peerID, target, field, value)
}

// writePump - единственный писатель сокета: выгребает очередь и
// пингует клиента. Обрыв записи закрывает соединение, читающая сторона
// завершится сама.
func (h *WebSocketHandler) writePump(p *wsPeer) {
	ticker := time.NewTicker(h.cfg.WS.PingPeriod)
	defer ticker.Stop()
	defer func() { _ = p.conn.Close() }()

	for {
		select {
		case <-p.done:
			h.drainAndClose(p)
			return
		case f := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(h.cfg.WS.WriteTimeout))
			if err := p.conn.WriteMessage(websocket.TextMessage, f); err != nil {
				p.Close()
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(h.cfg.WS.WriteTimeout))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.Close()
				return
			}
		}
	}
}

// drainAndClose дописывает кадры, поставленные в очередь до Close, и
// прощается с клиентом нормальным закрытием.
func (h *WebSocketHandler) drainAndClose(p *wsPeer) {
	for {
		select {
		case f := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(h.cfg.WS.WriteTimeout))
			if err := p.conn.WriteMessage(websocket.TextMessage, f); err != nil {
				return
			}
		default:
			_ = p.conn.SetWriteDeadline(time.Now().Add(h.cfg.WS.WriteTimeout))
			_ = p.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// reject шлёт отказ только инициатору запроса.
func (h *WebSocketHandler) reject(p *wsPeer, err error) {
	payload := domain.RejectedPayload{
		Code:    errors.CodeFromError(err),
		Message: err.Error(),
	}
	b, merr := json.Marshal(domain.Event{Type: domain.TypeRejected, Payload: payload})
	if merr != nil {
		return
	}
	_ = p.TrySend(service.Frame(b))
}
