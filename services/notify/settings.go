package notify

import (
	"context"
	"errors"

	"stockwatch_backend/models"

	"gorm.io/gorm"
)

// GormSettingsStore reads the push notification preference from the user
// table.
type GormSettingsStore struct {
	db *gorm.DB
}

// NewGormSettingsStore creates a settings store on the given database.
func NewGormSettingsStore(db *gorm.DB) *GormSettingsStore {
	return &GormSettingsStore{db: db}
}

// IsPushEnabled reports whether the user has push notifications enabled.
// An unknown user counts as disabled rather than an error.
func (s *GormSettingsStore) IsPushEnabled(ctx context.Context, userID uint) (bool, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("notify_push").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return user.NotifyPush, nil
}
