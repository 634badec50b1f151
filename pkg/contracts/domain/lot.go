package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockLot is one FIFO/LIFO/HIFO-matchable equity purchase.
// TotalCostBasis is immutable once the lot is created; corporate actions
// derive a new lot rather than mutating history. A lot with
// RemainingQuantity == 0 is terminal but retained for audit.
type StockLot struct {
	ID                string          `json:"id"`
	Symbol            string          `json:"symbol"`
	AcquiredDate      time.Time       `json:"acquired_date"`
	OriginalQuantity  int64           `json:"original_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	CostPerShare      decimal.Decimal `json:"cost_per_share"`
	TotalCostBasis    decimal.Decimal `json:"total_cost_basis"`
}

// MatchMethod selects the lot-consumption ordering for a sale.
type MatchMethod string

const (
	MethodFIFO   MatchMethod = "fifo"
	MethodLIFO   MatchMethod = "lifo"
	MethodHIFO   MatchMethod = "hifo"
	MethodMinTax MatchMethod = "minTax"
)

// Valid reports whether the method is one of the four supported orderings.
func (m MatchMethod) Valid() bool {
	switch m {
	case MethodFIFO, MethodLIFO, MethodHIFO, MethodMinTax:
		return true
	}
	return false
}

// Term is the tax holding-period classification of a consumed lot.
// A holding period of exactly 365 days is short-term; 366 days or more
// is long-term.
type Term string

const (
	TermShort Term = "short_term"
	TermLong  Term = "long_term"
)

// LotConsumption records one lot's contribution to a sale match.
type LotConsumption struct {
	LotID             string          `json:"lot_id"`
	QuantityConsumed  int64           `json:"quantity_consumed"`
	CostBasisConsumed decimal.Decimal `json:"cost_basis_consumed"`
	GainLoss          decimal.Decimal `json:"gain_loss"`
	Term              Term            `json:"term"`
}

// SaleMatch is the ephemeral result of matching a sale against open lots
// under one method. It is recomputed per query and never persisted; only
// the chosen method's consumption is committed.
type SaleMatch struct {
	Method        MatchMethod      `json:"method"`
	Consumptions  []LotConsumption `json:"consumptions"`
	TotalGainLoss decimal.Decimal  `json:"total_gain_loss"`
	ShortTermGain decimal.Decimal  `json:"short_term_gain"`
	LongTermGain  decimal.Decimal  `json:"long_term_gain"`
	EstimatedTax  decimal.Decimal  `json:"estimated_tax"`
}
