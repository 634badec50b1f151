package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is an economic position composed of one or more legs opened
// together on the same underlying. RealizedPL covers the closed portion
// only; a partially closed trade never reports speculative marks.
type Trade struct {
	TradeNum    string          `json:"trade_num" validate:"required"`
	Underlying  string          `json:"underlying" validate:"required"`
	Strategy    StrategyTag     `json:"strategy"`
	Direction   Direction       `json:"direction,omitempty"`
	Status      TradeStatus     `json:"status"`
	OpenDate    time.Time       `json:"open_date"`
	CloseDate   *time.Time      `json:"close_date,omitempty"`
	Legs        []Leg           `json:"legs"`
	RealizedPL  decimal.Decimal `json:"realized_pl"`
	AccountCode string          `json:"account_code,omitempty"`
	SubAccount  string          `json:"sub_account,omitempty"`
	Version     int64           `json:"version"`
}

// TradeStatus is the lifecycle state of a trade.
type TradeStatus string

const (
	StatusOpen    TradeStatus = "open"
	StatusPartial TradeStatus = "partial"
	StatusClosed  TradeStatus = "closed"
)

// StrategyTag is the closed enumeration of recognized strategy shapes.
// Anything outside the decision table is StrategyCustom, which downstream
// analytics treat as a first-class bucket rather than an error.
type StrategyTag string

const (
	StrategySingleLongCall  StrategyTag = "single_long_call"
	StrategySingleLongPut   StrategyTag = "single_long_put"
	StrategySingleShortCall StrategyTag = "single_short_call"
	StrategySingleShortPut  StrategyTag = "single_short_put"
	StrategyBullCallSpread  StrategyTag = "bull_call_spread"
	StrategyBearCallSpread  StrategyTag = "bear_call_spread"
	StrategyBullPutSpread   StrategyTag = "bull_put_spread"
	StrategyBearPutSpread   StrategyTag = "bear_put_spread"
	StrategyStraddle        StrategyTag = "straddle"
	StrategyStrangle        StrategyTag = "strangle"
	StrategyIronCondor      StrategyTag = "iron_condor"
	StrategyIronButterfly   StrategyTag = "iron_butterfly"
	StrategyCoveredCall     StrategyTag = "covered_call"
	StrategyStockLong       StrategyTag = "stock_long"
	StrategyStockShort      StrategyTag = "stock_short"
	StrategyCustom          StrategyTag = "custom"
)

// Valid reports whether the tag is a member of the closed enumeration.
func (s StrategyTag) Valid() bool {
	switch s {
	case StrategySingleLongCall, StrategySingleLongPut,
		StrategySingleShortCall, StrategySingleShortPut,
		StrategyBullCallSpread, StrategyBearCallSpread,
		StrategyBullPutSpread, StrategyBearPutSpread,
		StrategyStraddle, StrategyStrangle,
		StrategyIronCondor, StrategyIronButterfly,
		StrategyCoveredCall, StrategyStockLong, StrategyStockShort,
		StrategyCustom:
		return true
	}
	return false
}

// Direction qualifies strategies whose buy and sell variants share the same
// classification shape (straddles and strangles). It is a sub-field of the
// classification, not a separate tag.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// IsWin reports whether the trade counts as a win for win-rate and streak
// purposes. A break-even trade counts as a win.
func (t Trade) IsWin() bool {
	return t.RealizedPL.GreaterThanOrEqual(decimal.Zero)
}
