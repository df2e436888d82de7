package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"conference_core/internal/domain"
	"conference_core/internal/service"
	"conference_core/pkg/errors"
	"conference_core/pkg/logger"
)

type RoomHandler struct {
	meetingService service.MeetingService
	coordinator    service.RoomCoordinator
	log            logger.Logger
}

func NewRoomHandler(meetingService service.MeetingService, coordinator service.RoomCoordinator, log logger.Logger) *RoomHandler {
	return &RoomHandler{
		meetingService: meetingService,
		coordinator:    coordinator,
		log:            log,
	}
}

type CreateRoomRequest struct {
	Title           string `json:"title" binding:"required"`
	Passcode        string `json:"passcode"`
	MaxParticipants int    `json:"max_participants"`
}

func (h *RoomHandler) Create(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		c.Error(errors.ErrUnauthorized)
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta, err := h.meetingService.Create(c.Request.Context(), userID, service.CreateRoomInput{
		Title:           req.Title,
		Passcode:        req.Passcode,
		MaxParticipants: req.MaxParticipants,
		HostPeerID:      c.GetString("participant_id"),
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, meta)
}

func (h *RoomHandler) GetByID(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	meta, err := h.meetingService.GetByID(c.Request.Context(), roomID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, meta)
}

type UpdateRoomRequest struct {
	Title           *string `json:"title,omitempty"`
	Passcode        *string `json:"passcode,omitempty"`
	MaxParticipants *int    `json:"max_participants,omitempty"`
}

func (h *RoomHandler) Update(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		c.Error(errors.ErrUnauthorized)
		return
	}
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	var req UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta, err := h.meetingService.Update(c.Request.Context(), roomID, userID, c.GetBool("is_admin"), service.UpdateRoomInput{
		Title:           req.Title,
		Passcode:        req.Passcode,
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, meta)
}

// Delete завершает встречу: всем участникам уходит meeting-ended,
// комната помечается завершённой и не принимает новых входов.
func (h *RoomHandler) Delete(c *gin.Context) {
	userID, ok := userIDFrom(c)
	if !ok {
		c.Error(errors.ErrUnauthorized)
		return
	}
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	if err := h.coordinator.EndMeetingByUser(c.Request.Context(), roomID, &userID, c.GetBool("is_admin"), service.ReasonEndedByHost); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Meeting ended"})
}

// GetMembers - живой состав комнаты в порядке входа. Для существующей,
// но пустой комнаты список пуст.
func (h *RoomHandler) GetMembers(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	members, err := h.coordinator.MembersOf(roomID)
	if errors.Is(err, errors.ErrRoomNotFound) {
		// комнаты нет в реестре живых - она существует, но в ней никого
		if _, err := h.meetingService.GetByID(c.Request.Context(), roomID); err != nil {
			c.Error(err)
			return
		}
		members = nil
	} else if err != nil {
		c.Error(err)
		return
	}
	if members == nil {
		members = []domain.MemberInfo{}
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// GetAttendance - журнал посещаемости: участники и их интервалы
// присутствия. Работает и для завершённых встреч.
func (h *RoomHandler) GetAttendance(c *gin.Context) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return
	}

	records, err := h.meetingService.Attendance(c.Request.Context(), roomID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"attendance": records})
}
