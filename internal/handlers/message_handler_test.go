package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/thereayou/bunker/internal/pubsub"
	"github.com/thereayou/bunker/internal/services"
	"github.com/thereayou/bunker/internal/storetest"
	"github.com/thereayou/bunker/internal/websocket"
)

type wsEnv struct {
	store    *storetest.Store
	registry *pubsub.Registry
	rooms    *services.RoomService
	handler  *MessageHandler
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()

	store := storetest.New()
	registry := pubsub.NewRegistry()
	t.Cleanup(registry.Close)

	presence := services.NewPresenceService(store, registry)
	messages := services.NewMessageService(store, registry, presence, 0)
	rooms := services.NewRoomService(store, registry, messages)
	return &wsEnv{
		store:    store,
		registry: registry,
		rooms:    rooms,
		handler:  NewMessageHandler(rooms, messages, presence),
	}
}

func (e *wsEnv) client(userID uuid.UUID) *websocket.Client {
	c := websocket.NewClient(nil, nil, userID)
	e.registry.Register(c)
	return c
}

// nextFrame первый кадр нужного типа из очереди клиента
func nextFrame(t *testing.T, c *websocket.Client, typ websocket.MessageType) websocket.Message {
	t.Helper()

	for {
		select {
		case raw := <-c.Send:
			var msg websocket.Message
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("decode frame: %v", err)
			}
			if msg.Type == typ {
				return msg
			}
		default:
			t.Fatalf("no %s frame queued", typ)
			return websocket.Message{}
		}
	}
}

func rawJSON(v interface{}) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

// TestWSJoinSubscribesClient вход через сокет привязывает сам сокет
func TestWSJoinSubscribesClient(t *testing.T) {
	e := newWSEnv(t)
	ctx := context.Background()
	owner := e.store.AddUser("owner")
	guest := e.store.AddUser("guest")
	room, _ := e.rooms.Create(ctx, owner.ID, "Lobby", nil)

	c := e.client(guest.ID)
	err := e.handler.HandleMessage(ctx, c, &websocket.Message{
		Type: websocket.TypeRoomJoin,
		Data: rawJSON(map[string]uuid.UUID{"room_id": room.ID}),
	})
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	ack := nextFrame(t, c, websocket.TypeAck)
	if ack.RoomID == nil || *ack.RoomID != room.ID {
		t.Errorf("ack room = %v, want %s", ack.RoomID, room.ID)
	}
	if !e.registry.IsSubscribed(c.ID, pubsub.Room(room.ID), pubsub.EventMessage) {
		t.Error("socket not subscribed to room messages")
	}
}

// TestWSMessageAndTyping сообщения и typing через сокет
func TestWSMessageAndTyping(t *testing.T) {
	e := newWSEnv(t)
	ctx := context.Background()
	owner := e.store.AddUser("owner")
	c := e.client(owner.ID)
	room, _ := e.rooms.Create(ctx, owner.ID, "Lobby", c)

	err := e.handler.HandleMessage(ctx, c, &websocket.Message{Type: websocket.TypeTyping, RoomID: &room.ID})
	if err != nil {
		t.Fatalf("typing: %v", err)
	}
	u, _ := e.store.GetUser(ctx, owner.ID)
	if u.TypingIn == nil || *u.TypingIn != room.ID {
		t.Fatalf("typingIn = %v, want %s", u.TypingIn, room.ID)
	}

	err = e.handler.HandleMessage(ctx, c, &websocket.Message{
		Type:   websocket.TypeMessage,
		RoomID: &room.ID,
		Data:   rawJSON(map[string]string{"text": "hello"}),
	})
	if err != nil {
		t.Fatalf("message: %v", err)
	}

	if stored := e.store.Messages(room.ID); len(stored) != 1 || stored[0].Text != "hello" {
		t.Fatalf("stored = %+v", stored)
	}
	u, _ = e.store.GetUser(ctx, owner.ID)
	if u.TypingIn != nil {
		t.Error("typing flag survived a posted message")
	}
}

// TestWSErrors кадры ошибок клиенту
func TestWSErrors(t *testing.T) {
	e := newWSEnv(t)
	ctx := context.Background()
	owner := e.store.AddUser("owner")
	stranger := e.store.AddUser("stranger")
	room, _ := e.rooms.Create(ctx, owner.ID, "Lobby", nil)

	tests := []struct {
		name    string
		user    uuid.UUID
		msg     *websocket.Message
		wantErr error
		text    string
	}{
		{
			name:    "unknown type",
			user:    owner.ID,
			msg:     &websocket.Message{Type: "dance"},
			wantErr: websocket.ErrInvalidMessage,
			text:    websocket.ErrInvalidMessage.Error(),
		},
		{
			name:    "missing room",
			user:    owner.ID,
			msg:     &websocket.Message{Type: websocket.TypeRoomLeave},
			wantErr: services.ErrInvalidInput,
			text:    "room_id is required",
		},
		{
			name:    "not a member",
			user:    stranger.ID,
			msg:     &websocket.Message{Type: websocket.TypeMessage, RoomID: &room.ID, Data: rawJSON(map[string]string{"text": "hi"})},
			wantErr: services.ErrForbidden,
			text:    "Must be a member of this room",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.client(tt.user)
			err := e.handler.HandleMessage(ctx, c, tt.msg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}

			frame := nextFrame(t, c, websocket.TypeError)
			var body map[string]string
			json.Unmarshal(frame.Data, &body)
			if body["error"] != tt.text {
				t.Errorf("error frame = %q, want %q", body["error"], tt.text)
			}
		})
	}
}
