package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"journal-workflow-api/config"
	"journal-workflow-api/models"
)

// NotificationService reads and acknowledges the in-app notifications of the caller.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	if db == nil {
		db = config.DB
	}
	return &NotificationService{db: db}
}

func (s *NotificationService) List(ctx context.Context, actor Actor, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	if !actor.authenticated() {
		return nil, ErrUnauthorized
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", actor.UserID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var items []models.Notification
	if err := q.Order("create_at DESC, notification_id DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, actor Actor) (int64, error) {
	if !actor.authenticated() {
		return 0, ErrUnauthorized
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", actor.UserID, false).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}

// MarkRead acknowledges one notification, or all of them when notificationID is 0.
func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, notificationID int) error {
	if !actor.authenticated() {
		return ErrUnauthorized
	}
	q := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", actor.UserID, false)
	if notificationID > 0 {
		q = q.Where("notification_id = ?", notificationID)
	}
	if err := q.Updates(map[string]interface{}{"is_read": true, "update_at": time.Now().UTC()}).Error; err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}
