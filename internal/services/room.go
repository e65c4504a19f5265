package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/thereayou/bunker/internal/database"
	"github.com/thereayou/bunker/internal/metrics"
	"github.com/thereayou/bunker/internal/models"
	"github.com/thereayou/bunker/internal/pubsub"
	"golang.org/x/sync/errgroup"
)

// RoomUpdate данные события update комнаты
type RoomUpdate struct {
	Members []models.RoomMember `json:"members"`
}

// JoinResult итог join. Joined false, если пользователь уже был участником
type JoinResult struct {
	Room   *models.Room       `json:"room"`
	Member *models.RoomMember `json:"member"`
	Joined bool               `json:"joined"`
}

// RoomService создание комнат, вход и выход участников.
// Каждая операция выполняется строго по шагам: изменение членства,
// затем чтение списка участников, затем рассылка. Блокировки на комнату нет,
// повторные проверки в join/leave делают операции идемпотентными
type RoomService struct {
	store    Store
	registry *pubsub.Registry
	messages *MessageService
}

func NewRoomService(store Store, registry *pubsub.Registry, messages *MessageService) *RoomService {
	return &RoomService{store: store, registry: registry, messages: messages}
}

// Create создает комнату, создатель становится администратором.
// Сама комната никому не рассылается, ее находят только по ссылке
func (s *RoomService) Create(ctx context.Context, requesterID uuid.UUID, name string, conn pubsub.Conn) (*models.Room, error) {
	ctx = context.WithoutCancel(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		name = models.DefaultRoomName
	}

	room := &models.Room{Name: name}
	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	member := &models.RoomMember{
		RoomID: room.ID,
		UserID: requesterID,
		Role:   models.RoleAdministrator,
	}
	if err := s.store.CreateMember(ctx, member); err != nil {
		return nil, fmt.Errorf("create administrator: %w", err)
	}

	s.registry.Publish(pubsub.MembershipsOf(requesterID), pubsub.EventCreate, member)
	s.subscribeViewer(conn, room.ID, []models.RoomMember{*member})

	metrics.RoomsCreated.Inc()
	log.Info().Str("module", "services.room").
		Str("room", room.ID.String()).
		Str("user", requesterID.String()).
		Msg("room created")

	return room, nil
}

// Join добавляет пользователя в комнату. Повторный join ничего не рассылает
// и возвращает существующее членство.
//
// Начатая операция доводится до конца, даже если вызывающий отменил ctx:
// иначе членство сохранится, а рассылка потеряется
func (s *RoomService) Join(ctx context.Context, requesterID, roomID uuid.UUID, conn pubsub.Conn) (*JoinResult, error) {
	ctx = context.WithoutCancel(ctx)

	var (
		room     *models.Room
		existing int64
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
		n, err := s.store.CountMembers(gctx, roomID, requesterID)
		existing = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}

	if room == nil {
		return nil, invalidInput("Requested room does not exist")
	}

	if existing > 0 {
		return s.rejoin(ctx, room, requesterID, conn)
	}

	created := &models.RoomMember{
		RoomID: roomID,
		UserID: requesterID,
		Role:   models.RoleMember,
	}
	if err := s.store.CreateMember(ctx, created); err != nil {
		if errors.Is(err, database.ErrDuplicateMember) {
			// параллельный join успел раньше
			return s.rejoin(ctx, room, requesterID, conn)
		}
		return nil, fmt.Errorf("create member: %w", err)
	}

	// Список участников читаем только после создания членства,
	// чтобы новый участник в него попал
	var (
		user    *models.User
		members []models.RoomMember
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.store.GetUser(gctx, requesterID)
		user = u
		return err
	})
	g.Go(func() error {
		r, err := s.store.GetRoom(gctx, roomID)
		if err == nil {
			room = r
		}
		return err
	})
	g.Go(func() error {
		m, err := s.store.ListMembers(gctx, roomID)
		members = m
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load room after join: %w", err)
	}

	created.User = *user

	s.registry.Publish(pubsub.Room(roomID), pubsub.EventUpdate, RoomUpdate{Members: members})
	s.registry.Publish(pubsub.MembershipsOf(requesterID), pubsub.EventCreate, created)

	if _, err := s.messages.System(ctx, roomID, user.Nick+" has joined the room"); err != nil {
		return nil, err
	}

	// Новый участник подписывается на всех, а те, кто уже смотрит комнату, на него
	s.subscribeViewer(conn, roomID, members)
	for _, viewer := range s.registry.Subscribers(pubsub.Room(roomID), pubsub.EventUpdate) {
		s.subscribe(viewer, []pubsub.Ref{pubsub.Member(created.ID)}, pubsub.EventUpdate, pubsub.EventDestroy)
		s.subscribe(viewer, []pubsub.Ref{pubsub.User(requesterID)}, pubsub.EventUpdate)
	}

	metrics.RoomJoins.Inc()
	log.Info().Str("module", "services.room").
		Str("room", roomID.String()).
		Str("user", requesterID.String()).
		Int("members", len(members)).
		Msg("user joined room")

	return &JoinResult{Room: room, Member: created, Joined: true}, nil
}

// rejoin возвращает существующее членство. Подписки соединения
// восстанавливаются, но ничего не рассылается
func (s *RoomService) rejoin(ctx context.Context, room *models.Room, requesterID uuid.UUID, conn pubsub.Conn) (*JoinResult, error) {
	member, err := s.store.GetMember(ctx, room.ID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}

	if conn != nil {
		members, err := s.store.ListMembers(ctx, room.ID)
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		s.subscribeViewer(conn, room.ID, members)
	}

	return &JoinResult{Room: room, Member: member, Joined: false}, nil
}

// Leave удаляет пользователя из комнаты. Выход из комнаты, в которой
// пользователь не состоит, ничего не делает и возвращает false.
//
// Подписки соединения на участников комнаты не снимаются, только на саму
// комнату. Они живут до закрытия соединения. Отмена ctx, как и в Join, не прерывает операцию
func (s *RoomService) Leave(ctx context.Context, requesterID, roomID uuid.UUID, conn pubsub.Conn) (bool, error) {
	ctx = context.WithoutCancel(ctx)

	n, err := s.store.CountMembers(ctx, roomID, requesterID)
	if err != nil {
		return false, fmt.Errorf("count members: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	deleted, err := s.store.DeleteMember(ctx, roomID, requesterID)
	if err != nil {
		return false, fmt.Errorf("delete member: %w", err)
	}
	if deleted == 0 {
		// параллельный leave успел раньше
		return false, nil
	}

	var (
		user    *models.User
		members []models.RoomMember
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.store.GetUser(gctx, requesterID)
		user = u
		return err
	})
	g.Go(func() error {
		m, err := s.store.ListMembers(gctx, roomID)
		members = m
		return err
	})
	if err := g.Wait(); err != nil {
		return false, fmt.Errorf("load room after leave: %w", err)
	}

	s.registry.Publish(pubsub.Room(roomID), pubsub.EventUpdate, RoomUpdate{Members: members})

	if _, err := s.messages.System(ctx, roomID, user.Nick+" has left the room"); err != nil {
		return false, err
	}

	if conn != nil {
		if err := s.registry.Unsubscribe(conn, []pubsub.Ref{pubsub.Room(roomID)},
			pubsub.EventUpdate, pubsub.EventDestroy, pubsub.EventMessage); err != nil {
			s.logConnGone(conn, err)
		}
	}

	metrics.RoomLeaves.Inc()
	log.Info().Str("module", "services.room").
		Str("room", roomID.String()).
		Str("user", requesterID.String()).
		Int("members", len(members)).
		Msg("user left room")

	return true, nil
}

// subscribeViewer подписывает соединение на комнату, всех ее участников и их пользователей
func (s *RoomService) subscribeViewer(conn pubsub.Conn, roomID uuid.UUID, members []models.RoomMember) {
	if conn == nil {
		return
	}

	memberRefs := make([]pubsub.Ref, 0, len(members))
	userRefs := make([]pubsub.Ref, 0, len(members))
	for _, m := range members {
		memberRefs = append(memberRefs, pubsub.Member(m.ID))
		userRefs = append(userRefs, pubsub.User(m.UserID))
	}

	s.subscribe(conn, []pubsub.Ref{pubsub.Room(roomID)}, pubsub.EventUpdate, pubsub.EventDestroy, pubsub.EventMessage)
	s.subscribe(conn, memberRefs, pubsub.EventUpdate, pubsub.EventDestroy)
	s.subscribe(conn, userRefs, pubsub.EventUpdate)
}

func (s *RoomService) subscribe(conn pubsub.Conn, refs []pubsub.Ref, events ...pubsub.EventKind) {
	if err := s.registry.Subscribe(conn, refs, events...); err != nil {
		s.logConnGone(conn, err)
	}
}

// logConnGone соединение закрылось посреди операции, это не ошибка операции
func (s *RoomService) logConnGone(conn pubsub.Conn, err error) {
	log.Debug().Str("module", "services.room").
		Str("conn", conn.ConnID().String()).
		Err(err).Msg("skipping subscription change")
}
