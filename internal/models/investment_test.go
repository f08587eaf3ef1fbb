package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLocationRemaining(t *testing.T) {
	loc := Location{
		TargetAmount: decimal.RequireFromString("50000.00"),
		RaisedAmount: decimal.RequireFromString("12500.50"),
	}
	assert.True(t, decimal.RequireFromString("37499.50").Equal(loc.Remaining()))

	loc.RaisedAmount = decimal.RequireFromString("60000")
	assert.True(t, loc.Remaining().IsZero())
}
