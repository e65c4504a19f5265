package pubsub

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind тип сущности, на события которой подписываются
type Kind string

const (
	KindRoom        Kind = "room"
	KindRoomMember  Kind = "roommember"
	KindUser        Kind = "user"
	KindMemberships Kind = "memberships"
)

// EventKind вид события сущности
type EventKind string

const (
	EventCreate  EventKind = "create"
	EventUpdate  EventKind = "update"
	EventDestroy EventKind = "destroy"
	EventMessage EventKind = "message"
)

// Ref ссылка на сущность
type Ref struct {
	Kind Kind
	ID   uuid.UUID
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

func Room(id uuid.UUID) Ref { return Ref{Kind: KindRoom, ID: id} }

func Member(id uuid.UUID) Ref { return Ref{Kind: KindRoomMember, ID: id} }

func User(id uuid.UUID) Ref { return Ref{Kind: KindUser, ID: id} }

// MembershipsOf лента создания членств пользователя
func MembershipsOf(userID uuid.UUID) Ref { return Ref{Kind: KindMemberships, ID: userID} }

// Event то, что доставляется подписанному соединению
type Event struct {
	Ref  Ref
	Kind EventKind
	Data interface{}
}

// Subscription пара (сущность, событие) одного соединения
type Subscription struct {
	Ref   Ref
	Event EventKind
}

// Conn соединение, которому доставляются события. Deliver не должен блокироваться
type Conn interface {
	ConnID() uuid.UUID
	Deliver(ev Event) error
}
