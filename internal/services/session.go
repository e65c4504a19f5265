package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/bunker/internal/database"
	"github.com/thereayou/bunker/internal/models"
	"github.com/thereayou/bunker/internal/pubsub"
	"golang.org/x/sync/errgroup"
)

// RoomMembership комната и членство в ней текущего пользователя
type RoomMembership struct {
	Room   models.Room       `json:"room"`
	Member models.RoomMember `json:"member"`
}

// InitState пользователь и его комнаты, с этого клиент начинает после подключения
type InitState struct {
	User  *models.User     `json:"user"`
	Rooms []RoomMembership `json:"rooms"`
}

// Resume возвращает пользователя и все его комнаты. Привязанное соединение
// подписывается на каждую комнату так же, как после join: закрытие прошлого
// соединения сняло все его подписки
func (s *RoomService) Resume(ctx context.Context, userID uuid.UUID, conn pubsub.Conn) (*InitState, error) {
	var (
		user        *models.User
		memberships []models.RoomMember
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.store.GetUser(gctx, userID)
		if errors.Is(err, database.ErrNotFound) {
			return nil
		}
		user = u
		return err
	})
	g.Go(func() error {
		m, err := s.store.ListUserMemberships(gctx, userID)
		memberships = m
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load memberships: %w", err)
	}

	if user == nil {
		return nil, invalidInput("Requested user does not exist")
	}

	rooms := make([]RoomMembership, 0, len(memberships))
	for _, m := range memberships {
		room := m.Room
		m.Room = models.Room{}
		m.User = *user
		rooms = append(rooms, RoomMembership{Room: room, Member: m})
	}

	if conn != nil {
		lists := make([][]models.RoomMember, len(memberships))
		g, gctx := errgroup.WithContext(ctx)
		for i, m := range memberships {
			i, roomID := i, m.RoomID
			g.Go(func() error {
				l, err := s.store.ListMembers(gctx, roomID)
				lists[i] = l
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}

		s.subscribe(conn, []pubsub.Ref{pubsub.User(userID)}, pubsub.EventUpdate)
		s.subscribe(conn, []pubsub.Ref{pubsub.MembershipsOf(userID)}, pubsub.EventCreate)
		for i, m := range memberships {
			s.subscribeViewer(conn, m.RoomID, lists[i])
		}

		log.Debug().Str("module", "services.room").
			Str("user", userID.String()).
			Str("conn", conn.ConnID().String()).
			Int("rooms", len(memberships)).
			Msg("connection resubscribed")
	}

	return &InitState{User: user, Rooms: rooms}, nil
}
