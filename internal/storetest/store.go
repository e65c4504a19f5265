// Package storetest in-memory реализация services.Store для тестов.
// Поведение совпадает с postgres: уникальное членство (room, user),
// ErrNotFound для отсутствующих записей, сортировки как в запросах database.
package storetest

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/bunker/internal/database"
	"github.com/thereayou/bunker/internal/models"
)

var mediaRe = regexp.MustCompile(`(?i)https?://`)

type memberKey struct {
	room uuid.UUID
	user uuid.UUID
}

type Store struct {
	mu       sync.Mutex
	now      time.Time
	rooms    map[uuid.UUID]models.Room
	users    map[uuid.UUID]models.User
	members  map[memberKey]models.RoomMember
	messages []models.Message

	// Fail, если задан, возвращается из метода с этим именем
	Fail map[string]error

	// After, если задан, вызывается после успешного метода с этим именем
	After map[string]func()
}

func New() *Store {
	return &Store{
		now:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		rooms:   make(map[uuid.UUID]models.Room),
		users:   make(map[uuid.UUID]models.User),
		members: make(map[memberKey]models.RoomMember),
		Fail:    make(map[string]error),
		After:   make(map[string]func()),
	}
}

// AddUser создает пользователя с ником
func (s *Store) AddUser(nick string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := models.User{ID: uuid.New(), Nick: nick, Email: nick + "@example.com", CreatedAt: s.tick()}
	s.users[u.ID] = u
	return &u
}

// SetUser перезаписывает пользователя целиком
func (s *Store) SetUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// Messages все сообщения комнаты в порядке создания
func (s *Store) Messages(roomID uuid.UUID) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Message
	for _, m := range s.messages {
		if m.RoomID == roomID {
			out = append(out, s.populate(m))
		}
	}
	return out
}

// MemberCount число членств в комнате
func (s *Store) MemberCount(roomID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.members {
		if k.room == roomID {
			n++
		}
	}
	return n
}

func (s *Store) CreateRoom(ctx context.Context, room *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "CreateRoom"); err != nil {
		return err
	}

	room.ID = uuid.New()
	room.CreatedAt = s.tick()
	s.rooms[room.ID] = *room
	return nil
}

func (s *Store) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "GetRoom"); err != nil {
		return nil, err
	}

	r, ok := s.rooms[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &r, nil
}

func (s *Store) CreateMember(ctx context.Context, member *models.RoomMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "CreateMember"); err != nil {
		return err
	}

	key := memberKey{room: member.RoomID, user: member.UserID}
	if _, ok := s.members[key]; ok {
		return database.ErrDuplicateMember
	}
	if member.Role == "" {
		member.Role = models.RoleMember
	}
	member.ID = uuid.New()
	member.CreatedAt = s.tick()

	stored := *member
	stored.User = models.User{}
	s.members[key] = stored
	s.done("CreateMember")
	return nil
}

func (s *Store) CountMembers(ctx context.Context, roomID, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "CountMembers"); err != nil {
		return 0, err
	}

	if _, ok := s.members[memberKey{room: roomID, user: userID}]; ok {
		return 1, nil
	}
	return 0, nil
}

func (s *Store) GetMember(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "GetMember"); err != nil {
		return nil, err
	}

	m, ok := s.members[memberKey{room: roomID, user: userID}]
	if !ok {
		return nil, database.ErrNotFound
	}
	m.User = s.users[m.UserID]
	return &m, nil
}

func (s *Store) ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "ListMembers"); err != nil {
		return nil, err
	}

	var out []models.RoomMember
	for k, m := range s.members {
		if k.room == roomID {
			m.User = s.users[m.UserID]
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListUserMemberships членства пользователя вместе с комнатами
func (s *Store) ListUserMemberships(ctx context.Context, userID uuid.UUID) ([]models.RoomMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "ListUserMemberships"); err != nil {
		return nil, err
	}

	var out []models.RoomMember
	for k, m := range s.members {
		if k.user == userID {
			m.Room = s.rooms[m.RoomID]
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteMember(ctx context.Context, roomID, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "DeleteMember"); err != nil {
		return 0, err
	}

	key := memberKey{room: roomID, user: userID}
	if _, ok := s.members[key]; !ok {
		return 0, nil
	}
	delete(s.members, key)
	s.done("DeleteMember")
	return 1, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "GetUser"); err != nil {
		return nil, err
	}

	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &u, nil
}

func (s *Store) UpdatePresence(ctx context.Context, userID uuid.UUID, p models.Presence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "UpdatePresence"); err != nil {
		return err
	}

	u, ok := s.users[userID]
	if !ok {
		return database.ErrNotFound
	}
	u.Busy = p.Busy
	u.TypingIn = p.TypingIn
	s.users[userID] = u
	return nil
}

func (s *Store) SaveMessage(ctx context.Context, message *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "SaveMessage"); err != nil {
		return err
	}

	message.ID = uuid.New()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.tick()
	}

	stored := *message
	stored.Author = nil
	s.messages = append(s.messages, stored)
	s.done("SaveMessage")
	return nil
}

func (s *Store) LatestMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	page, err := s.PageMessages(ctx, roomID, 0, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func (s *Store) PageMessages(ctx context.Context, roomID uuid.UUID, skip, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "PageMessages"); err != nil {
		return nil, err
	}

	all := s.roomMessages(roomID)
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if skip >= len(all) {
		return nil, nil
	}
	all = all[skip:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) MessagesBetween(ctx context.Context, roomID uuid.UUID, start, end time.Time) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "MessagesBetween"); err != nil {
		return nil, err
	}

	var out []models.Message
	for _, m := range s.roomMessages(roomID) {
		if !m.CreatedAt.Before(start) && m.CreatedAt.Before(end) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MediaMessages(ctx context.Context, roomID uuid.UUID) ([]models.MediaMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "MediaMessages"); err != nil {
		return nil, err
	}

	var out []models.MediaMessage
	for _, m := range s.roomMessages(roomID) {
		if mediaRe.MatchString(m.Text) {
			out = append(out, models.MediaMessage{ID: m.ID, Author: m.AuthorID, Text: m.Text, CreatedAt: m.CreatedAt})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) roomMessages(roomID uuid.UUID) []models.Message {
	var out []models.Message
	for _, m := range s.messages {
		if m.RoomID == roomID {
			out = append(out, s.populate(m))
		}
	}
	return out
}

func (s *Store) populate(m models.Message) models.Message {
	if m.AuthorID != nil {
		if u, ok := s.users[*m.AuthorID]; ok {
			m.Author = &u
		}
	}
	return m
}

// check как и gorm с WithContext, отмененный ctx ломает любой запрос
func (s *Store) check(ctx context.Context, method string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Fail[method]
}

// done вызывает хук After. Хук выполняется под s.mu, в хранилище из него не ходят
func (s *Store) done(method string) {
	if fn := s.After[method]; fn != nil {
		fn()
	}
}

// tick монотонные часы, чтобы порядок по времени был однозначным
func (s *Store) tick() time.Time {
	s.now = s.now.Add(time.Second)
	return s.now
}
