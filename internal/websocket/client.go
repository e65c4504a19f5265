package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/bunker/internal/pubsub"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения
	maxMessageSize = 64 * 1024

	sendBuffer = 256
)

type ClientMessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, msg *Message) error
}

// Client одно websocket соединение пользователя
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub

	mu     sync.RWMutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		Hub:    hub,
	}
}

// ConnID идентификатор соединения для pubsub.Registry
func (c *Client) ConnID() uuid.UUID {
	return c.ID
}

// Deliver кладет событие в очередь отправки, не блокируясь
func (c *Client) Deliver(ev pubsub.Event) error {
	msg := Message{
		Type:      MessageType(ev.Kind),
		Model:     string(ev.Ref.Kind),
		ID:        &ev.Ref.ID,
		UserID:    c.UserID,
		Timestamp: time.Now(),
	}
	if ev.Ref.Kind == pubsub.KindRoom {
		roomID := ev.Ref.ID
		msg.RoomID = &roomID
	}

	if ev.Data != nil {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return err
		}
		msg.Data = data
	}

	return c.enqueue(msg)
}

// ReadPump читает сообщения от клиента
func (c *Client) ReadPump(ctx context.Context, handler ClientMessageHandler) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		err := c.Conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Str("module", "websocket.client").Str("conn", c.ID.String()).Err(err).Msg("read failed")
			}
			break
		}

		msg.UserID = c.UserID

		if msg.Type == TypePong {
			continue
		}

		if handler != nil {
			if err := handler.HandleMessage(ctx, c, &msg); err != nil {
				log.Debug().Str("module", "websocket.client").Str("conn", c.ID.String()).
					Str("type", string(msg.Type)).Err(err).Msg("message rejected")
			}
		}
	}
}

// WritePump отправляет сообщения клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage отправляет клиенту сообщение с произвольными данными
func (c *Client) SendMessage(msgType MessageType, roomID *uuid.UUID, data interface{}) error {
	msg := Message{
		Type:      msgType,
		RoomID:    roomID,
		UserID:    c.UserID,
		Timestamp: time.Now(),
	}

	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return err
		}
		msg.Data = jsonData
	}

	return c.enqueue(msg)
}

func (c *Client) SendError(errorMsg string) {
	c.SendMessage(TypeError, nil, map[string]string{
		"error": errorMsg,
	})
}

func (c *Client) enqueue(msg Message) error {
	msgData, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}

	select {
	case c.Send <- msgData:
		return nil
	default:
		return ErrClientQueueFull
	}
}

// close закрывает очередь отправки, после этого Deliver возвращает ErrClientClosed
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
