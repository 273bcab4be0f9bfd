package models

import "testing"

func TestAlertKey(t *testing.T) {
	a := Alert{Market: MarketDomestic, Ticker: "005930"}
	b := Alert{Market: MarketDomestic, Ticker: "005930", Direction: DirectionBelow}

	if a.Key() != b.Key() {
		t.Errorf("alerts on the same instrument produced different keys: %v vs %v", a.Key(), b.Key())
	}

	c := Alert{Market: MarketForeign, Ticker: "005930"}
	if a.Key() == c.Key() {
		t.Error("same ticker on different markets must not share a key")
	}
}

func TestDirectionText(t *testing.T) {
	tests := []struct {
		direction string
		want      string
	}{
		{DirectionAbove, "상승 도달"},
		{DirectionBelow, "하락 도달"},
		{"sideways", "sideways"},
	}
	for _, tt := range tests {
		if got := DirectionText(tt.direction); got != tt.want {
			t.Errorf("DirectionText(%q) = %q, want %q", tt.direction, got, tt.want)
		}
	}
}

func TestValidators(t *testing.T) {
	if !IsValidMarket(MarketDomestic) || !IsValidMarket(MarketForeign) {
		t.Error("known markets rejected")
	}
	if IsValidMarket("crypto") || IsValidMarket("") {
		t.Error("unknown market accepted")
	}

	if !IsValidDirection(DirectionAbove) || !IsValidDirection(DirectionBelow) {
		t.Error("known directions rejected")
	}
	if IsValidDirection("ABOVE") || IsValidDirection("") {
		t.Error("unknown direction accepted")
	}
}
