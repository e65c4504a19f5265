package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/thereayou/bunker/internal/pubsub"
)

// presenceLog запоминает, для кого сбрасывалось присутствие
type presenceLog struct {
	mu      sync.Mutex
	cleared []uuid.UUID
}

func (p *presenceLog) Clear(ctx context.Context, userID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = append(p.cleared, userID)
	return nil
}

func (p *presenceLog) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cleared)
}

func readFrame(t *testing.T, c *Client) Message {
	t.Helper()

	select {
	case raw, ok := <-c.Send:
		if !ok {
			t.Fatal("send queue closed")
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return msg
	default:
		t.Fatal("no frame queued")
	}
	return Message{}
}

// TestDeliverRoomEvent конверт события комнаты: тип, модель, id комнаты и данные
func TestDeliverRoomEvent(t *testing.T) {
	c := NewClient(nil, nil, uuid.New())
	roomID := uuid.New()

	if err := c.Deliver(pubsub.Event{Ref: pubsub.Room(roomID), Kind: pubsub.EventMessage, Data: map[string]string{"text": "hi"}}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	msg := readFrame(t, c)
	if msg.Type != TypeMessage || msg.Model != string(pubsub.KindRoom) {
		t.Errorf("frame type/model = %s/%s", msg.Type, msg.Model)
	}
	if msg.RoomID == nil || *msg.RoomID != roomID || msg.ID == nil || *msg.ID != roomID {
		t.Errorf("frame ids = %v %v, want %s", msg.ID, msg.RoomID, roomID)
	}
	if string(msg.Data) != `{"text":"hi"}` {
		t.Errorf("frame data = %s", msg.Data)
	}
}

// TestDeliverUserEventHasNoRoom у событий не комнаты есть только id сущности
func TestDeliverUserEventHasNoRoom(t *testing.T) {
	c := NewClient(nil, nil, uuid.New())
	userID := uuid.New()

	c.Deliver(pubsub.Event{Ref: pubsub.User(userID), Kind: pubsub.EventUpdate})

	msg := readFrame(t, c)
	if msg.RoomID != nil {
		t.Errorf("user event has room %s", msg.RoomID)
	}
	if msg.Type != TypeUpdate || msg.ID == nil || *msg.ID != userID {
		t.Errorf("frame = %+v", msg)
	}
}

// TestDeliverQueueLimits переполненная и закрытая очередь
func TestDeliverQueueLimits(t *testing.T) {
	c := NewClient(nil, nil, uuid.New())
	ev := pubsub.Event{Ref: pubsub.User(uuid.New()), Kind: pubsub.EventUpdate}

	for i := 0; i < sendBuffer; i++ {
		if err := c.Deliver(ev); err != nil {
			t.Fatalf("Deliver %d: %v", i, err)
		}
	}
	if err := c.Deliver(ev); !errors.Is(err, ErrClientQueueFull) {
		t.Fatalf("Deliver on full queue = %v, want ErrClientQueueFull", err)
	}

	c.close()
	c.close()
	if err := c.Deliver(ev); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("Deliver after close = %v, want ErrClientClosed", err)
	}
}

// TestHubRegisterAndUnregister регистрация клиента в registry и уборка при отключении
func TestHubRegisterAndUnregister(t *testing.T) {
	registry := pubsub.NewRegistry()
	h := NewHub(registry, nil)
	defer h.Stop()

	userID := uuid.New()
	c := NewClient(h, nil, userID)
	h.registerClient(c)

	connect := readFrame(t, c)
	if connect.Type != TypeConnect || string(connect.Data) != `{"connection_id":"`+c.ID.String()+`"}` {
		t.Errorf("connect frame = %+v", connect)
	}

	if conn, ok := h.Lookup(c.ID, userID); !ok || conn.ConnID() != c.ID {
		t.Fatal("Lookup did not find the client")
	}
	if _, ok := h.Lookup(c.ID, uuid.New()); ok {
		t.Error("Lookup returned a connection of another user")
	}
	if !registry.IsSubscribed(c.ID, pubsub.MembershipsOf(userID), pubsub.EventCreate) {
		t.Error("client does not watch its memberships")
	}

	registry.Subscribe(c, []pubsub.Ref{pubsub.Room(uuid.New())}, pubsub.EventMessage)
	h.unregisterClient(c)

	if subs := registry.Subscriptions(c.ID); len(subs) != 0 {
		t.Errorf("%d subscriptions survived unregister", len(subs))
	}
	if _, ok := h.Lookup(c.ID, userID); ok {
		t.Error("Lookup found an unregistered client")
	}
	if err := c.Deliver(pubsub.Event{Ref: pubsub.User(userID), Kind: pubsub.EventUpdate}); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Deliver after unregister = %v, want ErrClientClosed", err)
	}
}

// TestHubClearsPresenceOnLastConnection присутствие сбрасывается только когда
// закрыто последнее соединение пользователя
func TestHubClearsPresenceOnLastConnection(t *testing.T) {
	presence := &presenceLog{}
	h := NewHub(pubsub.NewRegistry(), presence)
	defer h.Stop()

	userID := uuid.New()
	first, second := NewClient(h, nil, userID), NewClient(h, nil, userID)
	h.registerClient(first)
	h.registerClient(second)

	h.unregisterClient(first)
	if n := presence.count(); n != 0 {
		t.Fatalf("presence cleared %d times with a connection still open", n)
	}

	h.unregisterClient(second)
	h.unregisterClient(second)
	if n := presence.count(); n != 1 {
		t.Fatalf("presence cleared %d times, want 1", n)
	}
	if presence.cleared[0] != userID {
		t.Errorf("cleared %s, want %s", presence.cleared[0], userID)
	}
}

// TestHubRejectsClientAfterStop клиент, дошедший до регистрации после Stop,
// закрывается и не остается в registry
func TestHubRejectsClientAfterStop(t *testing.T) {
	registry := pubsub.NewRegistry()
	h := NewHub(registry, nil)
	h.Stop()

	userID := uuid.New()
	c := NewClient(h, nil, userID)
	h.registerClient(c)

	if _, ok := h.Lookup(c.ID, userID); ok {
		t.Fatal("client registered after Stop")
	}
	if err := registry.Subscribe(c, []pubsub.Ref{pubsub.User(userID)}, pubsub.EventUpdate); !errors.Is(err, pubsub.ErrUnknownConn) {
		t.Errorf("Subscribe = %v, want ErrUnknownConn", err)
	}
	if err := c.Deliver(pubsub.Event{Ref: pubsub.User(userID), Kind: pubsub.EventUpdate}); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Deliver = %v, want ErrClientClosed", err)
	}
}
