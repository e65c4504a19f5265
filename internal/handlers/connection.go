package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/bunker/internal/pubsub"
)

const ConnectionHeader = "X-Connection-ID"

// ConnResolver находит websocket соединение пользователя по id
type ConnResolver interface {
	Lookup(connID, userID uuid.UUID) (pubsub.Conn, bool)
}

// boundConn соединение, от имени которого пришел запрос. nil, если его нет
// или оно принадлежит другому пользователю
func boundConn(c *gin.Context, conns ConnResolver, userID uuid.UUID) pubsub.Conn {
	if conns == nil {
		return nil
	}

	raw := c.GetHeader(ConnectionHeader)
	if raw == "" {
		raw = c.Query("connection")
	}
	if raw == "" {
		return nil
	}

	connID, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}

	conn, ok := conns.Lookup(connID, userID)
	if !ok {
		return nil
	}
	return conn
}
