package models

import (
	"github.com/google/uuid"
	"time"
)

const DefaultRoomName = "Untitled"

type Room struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleMember        Role = "member"
)

// RoomMember связь пользователя с комнатой, не больше одной на пару (room, user)
type RoomMember struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RoomID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_room_member" json:"room"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_room_member" json:"-"`
	Role      Role      `gorm:"not null;default:'member';check:role IN ('administrator','member')" json:"role"`
	CreatedAt time.Time `json:"createdAt"`

	// Связи
	User User `gorm:"foreignKey:UserID" json:"user"`
	Room Room `gorm:"foreignKey:RoomID" json:"-"`
}
