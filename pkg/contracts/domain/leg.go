package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Leg represents one executed fill: the atomic unit ingested by the core.
// Amount is the signed cash flow for the fill (negative = debit to the
// account) with fees already embedded by convention.
type Leg struct {
	ID         string          `json:"id" validate:"required"`
	Date       time.Time       `json:"date"`
	Underlying string          `json:"underlying" validate:"required"`
	IsOption   bool            `json:"is_option"`
	OptionType OptionType      `json:"option_type"`
	Strike     decimal.Decimal `json:"strike"`
	Expiration time.Time       `json:"expiration,omitempty"`
	Action     LegAction       `json:"action"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Amount     decimal.Decimal `json:"amount"`
	Fees       decimal.Decimal `json:"fees"`
}

// OptionType identifies the option contract type of a leg.
type OptionType string

const (
	OptionTypeNone OptionType = "none"
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// LegAction is the executed action of a fill.
type LegAction string

const (
	ActionBuyToOpen   LegAction = "buy_to_open"
	ActionSellToOpen  LegAction = "sell_to_open"
	ActionBuyToClose  LegAction = "buy_to_close"
	ActionSellToClose LegAction = "sell_to_close"
	ActionBuy         LegAction = "buy"
	ActionSell        LegAction = "sell"
	ActionExercise    LegAction = "exercise"
	ActionAssign      LegAction = "assign"
	ActionExpire      LegAction = "expire"
	ActionUnknown     LegAction = "unknown"
)

// IsOpening reports whether the action establishes new position quantity.
func (a LegAction) IsOpening() bool {
	switch a {
	case ActionBuyToOpen, ActionSellToOpen, ActionBuy:
		return true
	}
	return false
}

// IsClosing reports whether the action offsets existing position quantity.
// Exercise, assignment and expiration all terminate open option quantity.
func (a LegAction) IsClosing() bool {
	switch a {
	case ActionBuyToClose, ActionSellToClose, ActionSell, ActionExercise, ActionAssign, ActionExpire:
		return true
	}
	return false
}

// SameContract reports whether two option legs reference the same contract
// (type, strike and expiration all equal). Stock legs never match.
func (l Leg) SameContract(other Leg) bool {
	if !l.IsOption || !other.IsOption {
		return false
	}
	return l.OptionType == other.OptionType &&
		l.Strike.Equal(other.Strike) &&
		l.Expiration.Equal(other.Expiration)
}

// AbsQuantity returns the unsigned fill quantity.
func (l Leg) AbsQuantity() int64 {
	if l.Quantity < 0 {
		return -l.Quantity
	}
	return l.Quantity
}
