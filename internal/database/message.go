package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/bunker/internal/models"
)

const mediaPattern = `https?://`

func (d *Database) SaveMessage(ctx context.Context, message *models.Message) error {
	return d.db.WithContext(ctx).Omit("Author").Create(message).Error
}

// LatestMessages последние limit сообщений комнаты, старые первыми
func (d *Database) LatestMessages(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	var messages []models.Message

	err := d.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Preload("Author").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Разворачиваем порядок, чтобы старые сообщения были первыми
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// PageMessages страница сообщений, новые первыми
func (d *Database) PageMessages(ctx context.Context, roomID uuid.UUID, skip, limit int) ([]models.Message, error) {
	var messages []models.Message

	err := d.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Offset(skip).
		Limit(limit).
		Preload("Author").
		Find(&messages).Error

	return messages, err
}

// MessagesBetween сообщения в [start, end) по возрастанию времени
func (d *Database) MessagesBetween(ctx context.Context, roomID uuid.UUID, start, end time.Time) ([]models.Message, error) {
	var messages []models.Message

	err := d.db.WithContext(ctx).
		Where("room_id = ? AND created_at >= ? AND created_at < ?", roomID, start, end).
		Order("created_at ASC").
		Preload("Author").
		Find(&messages).Error

	return messages, err
}

// MediaMessages сообщения со ссылками, новые первыми
func (d *Database) MediaMessages(ctx context.Context, roomID uuid.UUID) ([]models.MediaMessage, error) {
	var media []models.MediaMessage

	err := d.db.WithContext(ctx).
		Model(&models.Message{}).
		Select("id", "author_id AS author", "text", "created_at").
		Where("room_id = ? AND text ~* ?", roomID, mediaPattern).
		Order("created_at DESC").
		Scan(&media).Error

	return media, err
}
