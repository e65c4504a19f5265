package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/thereayou/bunker/internal/database"
	"github.com/thereayou/bunker/internal/models"
	"github.com/thereayou/bunker/internal/pubsub"
)

// PresenceChange изменение присутствия. nil поле не меняется,
// TypingIn применяется только при SetTyping
type PresenceChange struct {
	Busy      *bool
	SetTyping bool
	TypingIn  *uuid.UUID
}

// PresenceService хранит флаги busy/typingIn и сообщает об их изменении
// подписчикам пользователя. Таймеров нет, все меняется только по событиям
type PresenceService struct {
	store    Store
	registry *pubsub.Registry
}

func NewPresenceService(store Store, registry *pubsub.Registry) *PresenceService {
	return &PresenceService{store: store, registry: registry}
}

// Update применяет изменение к текущему присутствию пользователя
func (s *PresenceService) Update(ctx context.Context, userID uuid.UUID, change PresenceChange) (*models.Presence, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, invalidInput("Requested user does not exist")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	p := models.Presence{Busy: user.Busy, TypingIn: user.TypingIn}
	if change.Busy != nil {
		p.Busy = *change.Busy
	}
	if change.SetTyping {
		p.TypingIn = change.TypingIn
	}

	if err := s.set(ctx, userID, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetTyping отмечает, что пользователь печатает в комнате
func (s *PresenceService) SetTyping(ctx context.Context, userID, roomID uuid.UUID) error {
	_, err := s.Update(ctx, userID, PresenceChange{SetTyping: true, TypingIn: &roomID})
	return err
}

// Clear снимает busy и typingIn
func (s *PresenceService) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.set(ctx, userID, models.Presence{})
}

func (s *PresenceService) set(ctx context.Context, userID uuid.UUID, p models.Presence) error {
	if err := s.store.UpdatePresence(ctx, userID, p); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return invalidInput("Requested user does not exist")
		}
		return fmt.Errorf("update presence: %w", err)
	}

	s.registry.Publish(pubsub.User(userID), pubsub.EventUpdate, p)
	return nil
}
