package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/bunker/internal/models"
)

// Store долговременное хранилище комнат, членств, пользователей и сообщений.
// GetX возвращают database.ErrNotFound, если записи нет; CreateMember
// возвращает database.ErrDuplicateMember при повторном членстве
type Store interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)

	CreateMember(ctx context.Context, member *models.RoomMember) error
	CountMembers(ctx context.Context, roomID, userID uuid.UUID) (int64, error)
	GetMember(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomMember, error)
	ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error)
	ListUserMemberships(ctx context.Context, userID uuid.UUID) ([]models.RoomMember, error)
	DeleteMember(ctx context.Context, roomID, userID uuid.UUID) (int64, error)

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePresence(ctx context.Context, userID uuid.UUID, p models.Presence) error

	SaveMessage(ctx context.Context, message *models.Message) error
	LatestMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error)
	PageMessages(ctx context.Context, roomID uuid.UUID, skip, limit int) ([]models.Message, error)
	MessagesBetween(ctx context.Context, roomID uuid.UUID, start, end time.Time) ([]models.Message, error)
	MediaMessages(ctx context.Context, roomID uuid.UUID) ([]models.MediaMessage, error)
}
