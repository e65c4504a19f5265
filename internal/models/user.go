package models

import (
	"github.com/google/uuid"
	"time"
)

type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Nick         string     `gorm:"not null" json:"nick"`
	Email        string     `gorm:"uniqueIndex;not null" json:"-"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Busy         bool       `gorm:"not null;default:false" json:"busy"`
	TypingIn     *uuid.UUID `gorm:"type:uuid" json:"typingIn"`
	LastSeenAt   time.Time  `json:"lastSeenAt"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Presence текущее состояние busy/typing пользователя
type Presence struct {
	Busy     bool       `json:"busy"`
	TypingIn *uuid.UUID `json:"typingIn"`
}
