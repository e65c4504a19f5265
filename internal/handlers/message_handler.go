package handlers

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/bunker/internal/handlers/dto"
	"github.com/thereayou/bunker/internal/services"
	"github.com/thereayou/bunker/internal/websocket"
)

// MessageHandler обрабатывает действия, пришедшие по websocket.
// Соединение клиента и есть соединение запроса, подписки вешаются на него
type MessageHandler struct {
	rooms    *services.RoomService
	messages *services.MessageService
	presence *services.PresenceService
}

func NewMessageHandler(rooms *services.RoomService, messages *services.MessageService, presence *services.PresenceService) *MessageHandler {
	return &MessageHandler{
		rooms:    rooms,
		messages: messages,
		presence: presence,
	}
}

func (h *MessageHandler) HandleMessage(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	var err error

	switch msg.Type {
	case websocket.TypeMessage:
		err = h.handleTextMessage(ctx, client, msg)

	case websocket.TypeRoomJoin:
		err = h.handleJoin(ctx, client, msg)

	case websocket.TypeRoomLeave:
		err = h.handleLeave(ctx, client, msg)

	case websocket.TypeTyping:
		err = h.handleTyping(ctx, client, msg)

	default:
		log.Debug().Str("module", "handlers.ws").Str("type", string(msg.Type)).Msg("unknown message type")
		err = websocket.ErrInvalidMessage
	}

	if err != nil {
		client.SendError(publicError(err))
	}
	return err
}

func (h *MessageHandler) handleTextMessage(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	roomID, err := messageRoom(msg)
	if err != nil {
		return err
	}

	var payload dto.WSMessagePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		return websocket.ErrInvalidMessage
	}

	message, err := h.messages.Post(ctx, roomID, client.UserID, payload.Text)
	if err != nil {
		return err
	}

	return client.SendMessage(websocket.TypeAck, &roomID, gin.H{"message": message.ID})
}

func (h *MessageHandler) handleJoin(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	roomID, err := messageRoom(msg)
	if err != nil {
		return err
	}

	res, err := h.rooms.Join(ctx, client.UserID, roomID, client)
	if err != nil {
		return err
	}

	return client.SendMessage(websocket.TypeAck, &roomID, formatJoinResponse(res))
}

func (h *MessageHandler) handleLeave(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	roomID, err := messageRoom(msg)
	if err != nil {
		return err
	}

	left, err := h.rooms.Leave(ctx, client.UserID, roomID, client)
	if err != nil {
		return err
	}

	return client.SendMessage(websocket.TypeAck, &roomID, gin.H{"left": left})
}

func (h *MessageHandler) handleTyping(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	roomID, err := messageRoom(msg)
	if err != nil {
		return err
	}

	return h.presence.SetTyping(ctx, client.UserID, roomID)
}

// messageRoom комната из конверта или из data.room_id
func messageRoom(msg *websocket.Message) (uuid.UUID, error) {
	if msg.RoomID != nil {
		return *msg.RoomID, nil
	}

	var payload dto.WSRoomPayload
	if len(msg.Data) == 0 || json.Unmarshal(msg.Data, &payload) != nil || payload.RoomID == uuid.Nil {
		return uuid.Nil, &services.InvalidInputError{Msg: "room_id is required"}
	}
	return payload.RoomID, nil
}
