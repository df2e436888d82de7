package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"conference_core/internal/config"
	"conference_core/internal/service"
	"conference_core/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Room      *RoomHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(),
		Room:      NewRoomHandler(services.Meeting, services.Coordinator, log),
		WebSocket: NewWebSocketHandler(services.Coordinator, cfg, log),
	}
}

// userIDFrom достаёт идентификатор авторизованного пользователя из
// контекста запроса.
func userIDFrom(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get("user_id")
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
