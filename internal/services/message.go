package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/bunker/internal/database"
	"github.com/thereayou/bunker/internal/metrics"
	"github.com/thereayou/bunker/internal/models"
	"github.com/thereayou/bunker/internal/pubsub"
)

const DefaultMaxMessageLength = 4000

// MessageService проверяет, сохраняет и рассылает сообщения комнаты
type MessageService struct {
	store     Store
	registry  *pubsub.Registry
	presence  *PresenceService
	maxLength int
}

func NewMessageService(store Store, registry *pubsub.Registry, presence *PresenceService, maxLength int) *MessageService {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	return &MessageService{
		store:     store,
		registry:  registry,
		presence:  presence,
		maxLength: maxLength,
	}
}

// Post сообщение пользователя в комнату, в которой он состоит
func (s *MessageService) Post(ctx context.Context, roomID, userID uuid.UUID, text string) (*models.Message, error) {
	member, err := s.store.GetMember(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, forbidden("Must be a member of this room")
		}
		return nil, fmt.Errorf("get member: %w", err)
	}

	return s.Create(ctx, member, text)
}

// Create сохраняет сообщение участника. Членство перепроверяется в момент вызова.
// Отмена ctx не прерывает сохранение и рассылку
func (s *MessageService) Create(ctx context.Context, member *models.RoomMember, text string) (*models.Message, error) {
	ctx = context.WithoutCancel(ctx)

	if member == nil {
		return nil, forbidden("Must be a member of this room")
	}

	n, err := s.store.CountMembers(ctx, member.RoomID, member.UserID)
	if err != nil {
		return nil, fmt.Errorf("count members: %w", err)
	}
	if n == 0 {
		return nil, forbidden("Must be a member of this room")
	}

	text, err = s.validate(text)
	if err != nil {
		return nil, err
	}

	authorID := member.UserID
	message := &models.Message{
		RoomID:   member.RoomID,
		AuthorID: &authorID,
		Text:     text,
	}
	if err := s.store.SaveMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	author := member.User
	author.Busy = false
	author.TypingIn = nil
	message.Author = &author

	s.registry.Publish(pubsub.Room(member.RoomID), pubsub.EventMessage, message)
	metrics.Messages.WithLabelValues("user").Inc()

	// Пользователь пишет, значит он не занят и уже не печатает
	if err := s.presence.Clear(ctx, member.UserID); err != nil {
		log.Warn().Str("module", "services.message").
			Str("user", member.UserID.String()).
			Err(err).Msg("failed to clear presence")
	}

	return message, nil
}

// System системное сообщение комнаты без автора
func (s *MessageService) System(ctx context.Context, roomID uuid.UUID, text string) (*models.Message, error) {
	message := &models.Message{
		RoomID: roomID,
		Text:   text,
		System: true,
	}
	if err := s.store.SaveMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("save system message: %w", err)
	}

	s.registry.Publish(pubsub.Room(roomID), pubsub.EventMessage, message)
	metrics.Messages.WithLabelValues("system").Inc()

	return message, nil
}

func (s *MessageService) validate(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", invalidInput("Message text is required")
	}
	if !utf8.ValidString(text) {
		return "", invalidInput("Message text must be valid UTF-8")
	}
	if utf8.RuneCountInString(text) > s.maxLength {
		return "", invalidInput(fmt.Sprintf("Message text must be at most %d characters", s.maxLength))
	}
	return text, nil
}
