package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/bunker/internal/database"
	"github.com/thereayou/bunker/internal/models"
	"golang.org/x/sync/errgroup"
)

const PageSize = 40

// RoomDetail комната с последними сообщениями и участниками
type RoomDetail struct {
	models.Room
	Messages []models.Message    `json:"messages"`
	Members  []models.RoomMember `json:"members"`
}

// QueryService чтение комнат и истории, без побочных эффектов
type QueryService struct {
	store Store
}

func NewQueryService(store Store) *QueryService {
	return &QueryService{store: store}
}

// Room комната, последние PageSize сообщений (старые первыми) и участники
func (s *QueryService) Room(ctx context.Context, roomID uuid.UUID) (*RoomDetail, error) {
	var (
		room     *models.Room
		messages []models.Message
		members  []models.RoomMember
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := s.store.GetRoom(gctx, roomID)
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		room = r
		return err
	})
	g.Go(func() error {
		m, err := s.store.LatestMessages(gctx, roomID, PageSize)
		messages = m
		return err
	})
	g.Go(func() error {
		m, err := s.store.ListMembers(gctx, roomID)
		members = m
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}

	if room == nil {
		return nil, invalidInput("Requested room does not exist")
	}

	return &RoomDetail{Room: *room, Messages: nonNil(messages), Members: nonNil(members)}, nil
}

// Messages страница сообщений, новые первыми
func (s *QueryService) Messages(ctx context.Context, roomID uuid.UUID, skip int) ([]models.Message, error) {
	if skip < 0 {
		return nil, invalidInput("skip must not be negative")
	}

	messages, err := s.store.PageMessages(ctx, roomID, skip, PageSize)
	if err != nil {
		return nil, fmt.Errorf("page messages: %w", err)
	}
	return nonNil(messages), nil
}

// History сообщения в [start, end), старые первыми
func (s *QueryService) History(ctx context.Context, roomID uuid.UUID, start, end time.Time) ([]models.Message, error) {
	if !end.After(start) {
		return nil, invalidInput("endDate must be after startDate")
	}

	messages, err := s.store.MessagesBetween(ctx, roomID, start, end)
	if err != nil {
		return nil, fmt.Errorf("messages between: %w", err)
	}
	return nonNil(messages), nil
}

// Media сообщения со ссылками, новые первыми
func (s *QueryService) Media(ctx context.Context, roomID uuid.UUID) ([]models.MediaMessage, error) {
	media, err := s.store.MediaMessages(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("media messages: %w", err)
	}
	return nonNil(media), nil
}

// nonNil чтобы в JSON был [], а не null
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
