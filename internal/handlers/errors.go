package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/bunker/internal/services"
	"github.com/thereayou/bunker/internal/websocket"
)

// respondError переводит ошибку сервиса в статус: неверный ввод 400,
// запрет 403, все остальное 500 без подробностей
func respondError(c *gin.Context, err error) {
	var invalid *services.InvalidInputError
	var denied *services.ForbiddenError

	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Msg})
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{"error": denied.Msg})
	default:
		log.Error().Str("module", "handlers").
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Err(err).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// publicError текст ошибки, который можно показать клиенту websocket
func publicError(err error) string {
	var invalid *services.InvalidInputError
	var denied *services.ForbiddenError

	switch {
	case errors.As(err, &invalid):
		return invalid.Msg
	case errors.As(err, &denied):
		return denied.Msg
	case errors.Is(err, websocket.ErrInvalidMessage):
		return err.Error()
	default:
		return "internal server error"
	}
}

// roomIDParam разбирает :id, при ошибке отвечает 400
func roomIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return uuid.Nil, false
	}
	return id, true
}
