package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Location is a venue open for micro-investment.
type Location struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	City          string          `json:"city"`
	Postcode      string          `json:"postcode"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	RaisedAmount  decimal.Decimal `json:"raised_amount"`
	MinInvestment decimal.Decimal `json:"min_investment"`
}

// Remaining is the amount still open for investment, never negative.
func (l Location) Remaining() decimal.Decimal {
	left := l.TargetAmount.Sub(l.RaisedAmount)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

type Investment struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	LocationID string          `json:"location_id"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}
