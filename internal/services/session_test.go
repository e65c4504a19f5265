package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/thereayou/bunker/internal/pubsub"
)

// TestResumeSubscribesNewConnection новое соединение после переподключения
// подписано на все комнаты пользователя и на их участников
func TestResumeSubscribesNewConnection(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.store.AddUser("owner")
	guest := e.store.AddUser("guest")

	lobby, _ := e.rooms.Create(ctx, owner.ID, "Lobby", nil)
	other, _ := e.rooms.Create(ctx, guest.ID, "Other", nil)
	if _, err := e.rooms.Join(ctx, guest.ID, lobby.ID, nil); err != nil {
		t.Fatalf("Join: %v", err)
	}

	conn := e.conn()
	state, err := e.rooms.Resume(ctx, guest.ID, conn)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}

	if state.User == nil || state.User.ID != guest.ID {
		t.Fatalf("user = %+v", state.User)
	}
	if len(state.Rooms) != 2 {
		t.Fatalf("got %d rooms, want 2", len(state.Rooms))
	}
	for _, r := range state.Rooms {
		if r.Room.ID != r.Member.RoomID || r.Room.Name == "" {
			t.Errorf("room not populated: %+v", r.Room)
		}
		if r.Member.User.ID != guest.ID {
			t.Errorf("member user = %s, want %s", r.Member.User.ID, guest.ID)
		}
	}

	for _, roomID := range []uuid.UUID{lobby.ID, other.ID} {
		for _, ev := range []pubsub.EventKind{pubsub.EventUpdate, pubsub.EventDestroy, pubsub.EventMessage} {
			if !e.registry.IsSubscribed(conn.id, pubsub.Room(roomID), ev) {
				t.Errorf("not subscribed to room %s %s", roomID, ev)
			}
		}
	}
	members, _ := e.store.ListMembers(ctx, lobby.ID)
	for _, m := range members {
		if !e.registry.IsSubscribed(conn.id, pubsub.Member(m.ID), pubsub.EventUpdate) {
			t.Errorf("not subscribed to member %s", m.User.Nick)
		}
		if !e.registry.IsSubscribed(conn.id, pubsub.User(m.UserID), pubsub.EventUpdate) {
			t.Errorf("not subscribed to user %s", m.User.Nick)
		}
	}
	if !e.registry.IsSubscribed(conn.id, pubsub.MembershipsOf(guest.ID), pubsub.EventCreate) {
		t.Error("not subscribed to own memberships")
	}

	// новая комната после переподключения доходит до соединения
	if _, err := e.rooms.Create(ctx, guest.ID, "Third", nil); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := conn.received(pubsub.MembershipsOf(guest.ID), pubsub.EventCreate); len(got) != 1 {
		t.Errorf("received %d membership events, want 1", len(got))
	}
}

// TestResumeWithoutConnection без соединения только читает состояние
func TestResumeWithoutConnection(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner := e.store.AddUser("owner")
	e.rooms.Create(ctx, owner.ID, "Lobby", nil)

	state, err := e.rooms.Resume(ctx, owner.ID, nil)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if len(state.Rooms) != 1 || state.Rooms[0].Room.Name != "Lobby" {
		t.Errorf("rooms = %+v", state.Rooms)
	}
}

// TestResumeUnknownUser несуществующий пользователь это неверный ввод
func TestResumeUnknownUser(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.rooms.Resume(context.Background(), uuid.New(), e.conn())
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Resume = %v, want invalid input", err)
	}
}

// TestResumeStoreFailure ошибка хранилища не выдается за неверный ввод
func TestResumeStoreFailure(t *testing.T) {
	e := newTestEnv(t)
	owner := e.store.AddUser("owner")
	e.store.Fail["ListUserMemberships"] = errors.New("connection refused")

	_, err := e.rooms.Resume(context.Background(), owner.ID, nil)
	if err == nil || errors.Is(err, ErrInvalidInput) {
		t.Fatalf("Resume = %v, want storage error", err)
	}
}
