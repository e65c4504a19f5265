package services

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/thereayou/bunker/internal/pubsub"
	"github.com/thereayou/bunker/internal/storetest"
)

// recConn запоминает все доставленные события
type recConn struct {
	id uuid.UUID

	mu     sync.Mutex
	events []pubsub.Event
}

func (c *recConn) ConnID() uuid.UUID { return c.id }

func (c *recConn) Deliver(ev pubsub.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *recConn) received(ref pubsub.Ref, kind pubsub.EventKind) []pubsub.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []pubsub.Event
	for _, ev := range c.events {
		if ev.Ref == ref && ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (c *recConn) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *recConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

type testEnv struct {
	store    *storetest.Store
	registry *pubsub.Registry
	presence *PresenceService
	messages *MessageService
	rooms    *RoomService
	queries  *QueryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := storetest.New()
	registry := pubsub.NewRegistry()
	t.Cleanup(registry.Close)

	presence := NewPresenceService(store, registry)
	messages := NewMessageService(store, registry, presence, 0)
	return &testEnv{
		store:    store,
		registry: registry,
		presence: presence,
		messages: messages,
		rooms:    NewRoomService(store, registry, messages),
		queries:  NewQueryService(store),
	}
}

// conn открывает зарегистрированное соединение
func (e *testEnv) conn() *recConn {
	c := &recConn{id: uuid.New()}
	e.registry.Register(c)
	return c
}

func memberCount(t *testing.T, ev pubsub.Event) int {
	t.Helper()

	update, ok := ev.Data.(RoomUpdate)
	if !ok {
		t.Fatalf("update data has type %T, want RoomUpdate", ev.Data)
	}
	return len(update.Members)
}

func messageTexts(e *testEnv, roomID uuid.UUID) []string {
	var out []string
	for _, m := range e.store.Messages(roomID) {
		out = append(out, m.Text)
	}
	return out
}
