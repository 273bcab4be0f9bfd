package alertcheck

import (
	"testing"

	"stockwatch_backend/models"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestShouldTrigger(t *testing.T) {
	tests := []struct {
		name      string
		direction string
		target    string
		current   string
		want      bool
	}{
		{"above: current over target", models.DirectionAbove, "100", "101", true},
		{"above: current at target", models.DirectionAbove, "100", "100", true},
		{"above: current under target", models.DirectionAbove, "100", "99.99", false},
		{"below: current under target", models.DirectionBelow, "50", "49", true},
		{"below: current at target", models.DirectionBelow, "50", "50", true},
		{"below: current just over target", models.DirectionBelow, "50", "50.01", false},
		{"unknown direction never triggers", "sideways", "100", "100", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldTrigger(tt.direction, dec(tt.target), dec(tt.current))
			if got != tt.want {
				t.Errorf("ShouldTrigger(%s, %s, %s) = %v, want %v",
					tt.direction, tt.target, tt.current, got, tt.want)
			}
		})
	}
}

// Equality counts as triggered in both directions. This is intentional
// behavior, not a bug; keep the explicit coverage so it does not get
// "fixed" by accident.
func TestShouldTriggerEquality(t *testing.T) {
	target := dec("71200")

	if !ShouldTrigger(models.DirectionAbove, target, target) {
		t.Error("above alert must trigger at exact target price")
	}
	if !ShouldTrigger(models.DirectionBelow, target, target) {
		t.Error("below alert must trigger at exact target price")
	}
}

// Increasing the current price never untrips an above alert, and decreasing
// never untrips a below alert.
func TestShouldTriggerMonotonic(t *testing.T) {
	target := dec("100")

	prices := []string{"100", "100.01", "150", "1000000"}
	for _, p := range prices {
		if !ShouldTrigger(models.DirectionAbove, target, dec(p)) {
			t.Errorf("above alert untriggered at %s despite crossing target", p)
		}
	}

	prices = []string{"100", "99.99", "50", "0.0001"}
	for _, p := range prices {
		if !ShouldTrigger(models.DirectionBelow, target, dec(p)) {
			t.Errorf("below alert untriggered at %s despite crossing target", p)
		}
	}
}
