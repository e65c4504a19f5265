package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/bunker/internal/handlers/dto"
	"github.com/thereayou/bunker/internal/middleware"
	"github.com/thereayou/bunker/internal/models"
	"github.com/thereayou/bunker/internal/services"
)

type RoomHandler struct {
	rooms   *services.RoomService
	queries *services.QueryService
	conns   ConnResolver
}

func NewRoomHandler(rooms *services.RoomService, queries *services.QueryService, conns ConnResolver) *RoomHandler {
	return &RoomHandler{rooms: rooms, queries: queries, conns: conns}
}

// CreateRoom создает новую комнату
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID := middleware.CurrentUser(c)

	var req dto.CreateRoomRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Name == "" {
		req.Name = c.Query("name")
	}

	room, err := h.rooms.Create(c.Request.Context(), userID, req.Name, boundConn(c, h.conns, userID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

// GetRoom комната с последними сообщениями и участниками
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	detail, err := h.queries.Room(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// JoinRoom добавляет пользователя в комнату, повторный вызов ничего не меняет
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	userID := middleware.CurrentUser(c)
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	res, err := h.rooms.Join(c.Request.Context(), userID, roomID, boundConn(c, h.conns, userID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, formatJoinResponse(res))
}

// LeaveRoom удаляет пользователя из комнаты, выход из чужой комнаты ничего не делает
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	userID := middleware.CurrentUser(c)
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	left, err := h.rooms.Leave(c.Request.Context(), userID, roomID, boundConn(c, h.conns, userID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"left": left})
}

// formatJoinResponse комната плюс членство текущего пользователя
func formatJoinResponse(res *services.JoinResult) gin.H {
	return gin.H{
		"id":        res.Room.ID,
		"name":      res.Room.Name,
		"createdAt": res.Room.CreatedAt,
		"member":    formatMemberResponse(res.Member),
		"joined":    res.Joined,
	}
}

func formatMemberResponse(m *models.RoomMember) gin.H {
	return gin.H{
		"id":        m.ID,
		"room":      m.RoomID,
		"role":      m.Role,
		"createdAt": m.CreatedAt,
		"user": gin.H{
			"id":       m.User.ID,
			"nick":     m.User.Nick,
			"busy":     m.User.Busy,
			"typingIn": m.User.TypingIn,
		},
	}
}
