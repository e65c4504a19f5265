package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType определяет типы сообщений
type MessageType string

const (
	// Системные типы
	TypeConnect MessageType = "connect"
	TypePing    MessageType = "ping"
	TypePong    MessageType = "pong"
	TypeError   MessageType = "error"
	TypeAck     MessageType = "ack"

	// События сущностей, type совпадает с pubsub.EventKind
	TypeCreate  MessageType = "create"
	TypeUpdate  MessageType = "update"
	TypeDestroy MessageType = "destroy"

	// От клиента: новое сообщение, к клиенту: событие message комнаты
	TypeMessage MessageType = "message"

	// Действия клиента
	TypeRoomJoin  MessageType = "room_join"
	TypeRoomLeave MessageType = "room_leave"
	TypeTyping    MessageType = "typing"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Model     string          `json:"model,omitempty"`
	ID        *uuid.UUID      `json:"id,omitempty"`
	RoomID    *uuid.UUID      `json:"room_id,omitempty"`
	UserID    uuid.UUID       `json:"user_id"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
