package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/bunker/internal/handlers/dto"
	"github.com/thereayou/bunker/internal/middleware"
	"github.com/thereayou/bunker/internal/services"
)

type HTTPMessageHandler struct {
	messages *services.MessageService
	queries  *services.QueryService
}

func NewHTTPMessageHandler(messages *services.MessageService, queries *services.QueryService) *HTTPMessageHandler {
	return &HTTPMessageHandler{messages: messages, queries: queries}
}

// SendMessage отправляет сообщение в комнату. text берется из тела или из query
func (h *HTTPMessageHandler) SendMessage(c *gin.Context) {
	userID := middleware.CurrentUser(c)
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	var req dto.MessageRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if req.Text == "" {
		req.Text = c.Query("text")
	}

	message, err := h.messages.Post(c.Request.Context(), roomID, userID, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

// GetRoomMessages страница истории, новые первыми
func (h *HTTPMessageHandler) GetRoomMessages(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	skip := 0
	if s := c.Query("skip"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "skip must be an integer"})
			return
		}
		skip = parsed
	}

	messages, err := h.queries.Messages(c.Request.Context(), roomID, skip)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// GetHistory сообщения в [startDate, endDate)
func (h *HTTPMessageHandler) GetHistory(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	start, err := parseDate(c.Query("startDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid startDate"})
		return
	}
	end, err := parseDate(c.Query("endDate"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid endDate"})
		return
	}

	messages, err := h.queries.History(c.Request.Context(), roomID, start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

// GetMedia сообщения со ссылками
func (h *HTTPMessageHandler) GetMedia(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	media, err := h.queries.Media(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, media)
}

// parseDate принимает RFC3339 или миллисекунды unix
func parseDate(v string) (time.Time, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339, v)
}
