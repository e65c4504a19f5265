package models

import (
	"github.com/google/uuid"
	"time"
)

type Message struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RoomID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_message_room_created" json:"room"`
	AuthorID  *uuid.UUID `gorm:"type:uuid" json:"-"`
	Text      string     `gorm:"not null" json:"text"`
	System    bool       `gorm:"not null;default:false" json:"system"`
	CreatedAt time.Time  `gorm:"index:idx_message_room_created" json:"createdAt"`

	// Связи. Author пустой у системных сообщений
	Author *User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}

// MediaMessage проекция сообщения со ссылкой
type MediaMessage struct {
	ID        uuid.UUID  `json:"id"`
	Author    *uuid.UUID `json:"author"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
}
