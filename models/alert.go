package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Market constants for alerts
const (
	MarketDomestic = "domestic"
	MarketForeign  = "foreign"
)

// Direction constants for alerts
const (
	DirectionAbove = "above"
	DirectionBelow = "below"
)

// Alert represents a user's standing price-threshold watch on one instrument.
// Created/edited by the alert CRUD API; this backend only flips
// is_triggered/triggered_at when the condition is first observed true.
type Alert struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"index" json:"user_id"`
	User        User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Market      string          `gorm:"index;not null" json:"market"` // domestic, foreign
	Ticker      string          `gorm:"index;not null" json:"ticker"`
	Name        string          `json:"name"` // display name, e.g. "삼성전자"
	TargetPrice decimal.Decimal `gorm:"type:decimal(20,4)" json:"target_price"`
	Direction   string          `gorm:"not null" json:"direction"` // above, below
	IsActive    bool            `gorm:"default:true" json:"is_active"`
	IsTriggered bool            `gorm:"default:false" json:"is_triggered"`
	TriggeredAt *time.Time      `json:"triggered_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// User represents an alert owner. Authentication lives elsewhere; this
// backend only reads the push notification preference.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Email      string    `gorm:"uniqueIndex;not null" json:"email"`
	FullName   string    `json:"full_name"`
	NotifyPush bool      `gorm:"default:true" json:"notify_push"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// InstrumentKey identifies a tradable instrument. Used as a map key so that
// alerts sharing an instrument are priced once per run.
type InstrumentKey struct {
	Market string
	Ticker string
}

// Key returns the alert's instrument key.
func (a *Alert) Key() InstrumentKey {
	return InstrumentKey{Market: a.Market, Ticker: a.Ticker}
}

// DirectionText returns the human-readable direction phrase used in
// notification titles.
func DirectionText(direction string) string {
	switch direction {
	case DirectionAbove:
		return "상승 도달"
	case DirectionBelow:
		return "하락 도달"
	}
	return direction
}

// ValidMarkets returns valid market values
func ValidMarkets() []string {
	return []string{MarketDomestic, MarketForeign}
}

// IsValidMarket checks if the market value is valid
func IsValidMarket(market string) bool {
	for _, valid := range ValidMarkets() {
		if market == valid {
			return true
		}
	}
	return false
}

// IsValidDirection checks if the direction value is valid
func IsValidDirection(direction string) bool {
	return direction == DirectionAbove || direction == DirectionBelow
}

// MigrateAlertModels runs database migrations for alert-related models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Alert{},
	)
}
