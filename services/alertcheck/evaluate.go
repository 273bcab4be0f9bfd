package alertcheck

import (
	"stockwatch_backend/models"

	"github.com/shopspring/decimal"
)

// ShouldTrigger reports whether an alert condition holds at the current
// price. Equality counts as triggered in both directions; no epsilon
// tolerance is applied. Target and current price must be in the same
// currency/unit, as delivered by the quote gateway for that instrument.
func ShouldTrigger(direction string, target, current decimal.Decimal) bool {
	switch direction {
	case models.DirectionAbove:
		return current.GreaterThanOrEqual(target)
	case models.DirectionBelow:
		return current.LessThanOrEqual(target)
	}
	return false
}
