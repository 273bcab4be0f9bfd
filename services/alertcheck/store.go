package alertcheck

import (
	"context"
	"time"

	"stockwatch_backend/models"

	"gorm.io/gorm"
)

// AlertStore is the persistence surface the runner needs: load the pending
// set, and flip a single alert to fired exactly once.
type AlertStore interface {
	LoadPending(ctx context.Context) ([]models.Alert, error)
	// MarkTriggered transitions the alert from pending to fired. It reports
	// false when the alert was already fired (for example by an overlapping
	// run), in which case the caller must not dispatch a notification.
	MarkTriggered(ctx context.Context, alertID uint, at time.Time) (bool, error)
}

// GormAlertStore is the gorm-backed alert store.
type GormAlertStore struct {
	db *gorm.DB
}

// NewGormAlertStore creates an alert store on the given database.
func NewGormAlertStore(db *gorm.DB) *GormAlertStore {
	return &GormAlertStore{db: db}
}

// LoadPending loads all active, not-yet-triggered alerts.
func (s *GormAlertStore) LoadPending(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND is_triggered = ?", true, false).
		Find(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// MarkTriggered flips is_triggered/triggered_at with a compare-and-set so a
// read-then-write race between overlapping runs cannot double-fire an alert.
func (s *GormAlertStore) MarkTriggered(ctx context.Context, alertID uint, at time.Time) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ? AND is_triggered = ?", alertID, false).
		Updates(map[string]interface{}{
			"is_triggered": true,
			"triggered_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
