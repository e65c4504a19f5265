package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/bunker/internal/database"
	"github.com/thereayou/bunker/internal/handlers/dto"
	"github.com/thereayou/bunker/internal/middleware"
	"github.com/thereayou/bunker/internal/models"
	"github.com/thereayou/bunker/internal/services"
)

type UserReader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type UserHandler struct {
	users    UserReader
	presence *services.PresenceService
	rooms    *services.RoomService
	conns    ConnResolver
}

func NewUserHandler(users UserReader, presence *services.PresenceService, rooms *services.RoomService, conns ConnResolver) *UserHandler {
	return &UserHandler{users: users, presence: presence, rooms: rooms, conns: conns}
}

// GetMe возвращает информацию о текущем пользователе
func (h *UserHandler) GetMe(c *gin.Context) {
	userID := middleware.CurrentUser(c)

	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			err = &services.InvalidInputError{Msg: "Requested user does not exist"}
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// Init пользователь и его комнаты. Привязанное соединение подписывается на все комнаты
func (h *UserHandler) Init(c *gin.Context) {
	userID := middleware.CurrentUser(c)

	state, err := h.rooms.Resume(c.Request.Context(), userID, boundConn(c, h.conns, userID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// Connect подписывает новое соединение на комнаты пользователя
func (h *UserHandler) Connect(c *gin.Context) {
	userID := middleware.CurrentUser(c)

	conn := boundConn(c, h.conns, userID)
	if conn == nil {
		respondError(c, &services.InvalidInputError{Msg: "connection is required"})
		return
	}

	state, err := h.rooms.Resume(c.Request.Context(), userID, conn)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"connection": conn.ConnID(), "rooms": len(state.Rooms)})
}

// UpdateActivity меняет busy и typingIn текущего пользователя
func (h *UserHandler) UpdateActivity(c *gin.Context) {
	userID := middleware.CurrentUser(c)

	var req dto.ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	presence, err := h.presence.Update(c.Request.Context(), userID, services.PresenceChange{
		Busy:      req.Busy,
		SetTyping: req.TypingIn.Set,
		TypingIn:  req.TypingIn.RoomID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, presence)
}
