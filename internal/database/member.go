package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/bunker/internal/models"
	"gorm.io/gorm/clause"
)

// CreateMember создает членство. Уникальный индекс (room_id, user_id) не дает
// создать второе, в этом случае возвращается ErrDuplicateMember
func (d *Database) CreateMember(ctx context.Context, member *models.RoomMember) error {
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit("User", "Room").
		Create(member)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicateMember
	}
	return nil
}

func (d *Database) CountMembers(ctx context.Context, roomID, userID uuid.UUID) (int64, error) {
	var n int64
	err := d.db.WithContext(ctx).
		Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&n).Error
	return n, err
}

// GetMember получает членство вместе с пользователем
func (d *Database) GetMember(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomMember, error) {
	var member models.RoomMember
	err := d.db.WithContext(ctx).
		Preload("User").
		First(&member, "room_id = ? AND user_id = ?", roomID, userID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &member, nil
}

// ListMembers все участники комнаты в порядке вступления
func (d *Database) ListMembers(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error) {
	var members []models.RoomMember
	err := d.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC").
		Preload("User").
		Find(&members).Error
	return members, err
}

// ListUserMemberships членства пользователя с комнатами, старые первыми
func (d *Database) ListUserMemberships(ctx context.Context, userID uuid.UUID) ([]models.RoomMember, error) {
	var members []models.RoomMember
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Preload("Room").
		Find(&members).Error
	return members, err
}

func (d *Database) DeleteMember(ctx context.Context, roomID, userID uuid.UUID) (int64, error) {
	res := d.db.WithContext(ctx).
		Delete(&models.RoomMember{}, "room_id = ? AND user_id = ?", roomID, userID)
	return res.RowsAffected, res.Error
}
