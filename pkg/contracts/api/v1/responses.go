package api

import (
	"tradeledger/pkg/contracts/domain"
)

// Transaction API Responses

// SkippedItem reports one input that could not be processed in a
// partial-success batch
type SkippedItem struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// TransactionIngestResponse reports the outcome of a normalization batch
type TransactionIngestResponse struct {
	Accepted int           `json:"accepted"`
	Skipped  []SkippedItem `json:"skipped,omitempty"`
	PoolSize int           `json:"poolSize"`
}

// Trade API Responses

// CommitActionResult describes what happened to one committed leg
type CommitActionResult struct {
	Action     string  `json:"action"`
	RealizedPL *string `json:"realizedPL,omitempty"`
}

// CommitLegsDetails carries per-leg results and skipped inputs
type CommitLegsDetails struct {
	Results []CommitActionResult `json:"results"`
	Skipped []string             `json:"skipped,omitempty"`
}

// CommitLegsResponse represents the outcome of a commit request
type CommitLegsResponse struct {
	Success   bool               `json:"success"`
	Committed int                `json:"committed"`
	TradeNum  string             `json:"tradeNum,omitempty"`
	Details   *CommitLegsDetails `json:"details,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// UncommitResponse represents the outcome of rolling back a trade's
// latest commit batch
type UncommitResponse struct {
	Success  bool   `json:"success"`
	TradeNum string `json:"tradeNum"`
	Restored int    `json:"restored"`
	Removed  bool   `json:"removed"`
}

// TradeListResponse represents a trade listing
type TradeListResponse struct {
	Trades []domain.Trade `json:"trades"`
	Total  int            `json:"total"`
}

// Lot API Responses

// LotListResponse lists a symbol's lots, exhausted lots included
type LotListResponse struct {
	Symbol string            `json:"symbol"`
	Lots   []domain.StockLot `json:"lots"`
}

// SaleScenarioSummary aggregates one matching method's outcome
type SaleScenarioSummary struct {
	TotalGainLoss string `json:"totalGainLoss"`
	ShortTermGain string `json:"shortTermGain"`
	LongTermGain  string `json:"longTermGain"`
	EstimatedTax  string `json:"estimatedTax"`
}

// SaleScenario carries a method's consumption plan and summary
type SaleScenario struct {
	Consumptions []domain.LotConsumption `json:"consumptions"`
	Summary      SaleScenarioSummary     `json:"summary"`
}

// SaleMatchResponse previews a sale under all four matching methods
type SaleMatchResponse struct {
	Scenarios  map[string]SaleScenario `json:"scenarios"`
	BestMethod string                  `json:"bestMethod"`
}

// SaleCommitSummary aggregates a committed sale
type SaleCommitSummary struct {
	TotalGainLoss string `json:"totalGainLoss"`
	ShortTermGain string `json:"shortTermGain"`
	LongTermGain  string `json:"longTermGain"`
}

// SaleCommitResponse represents the outcome of committing a sale
type SaleCommitResponse struct {
	Success bool               `json:"success"`
	Summary *SaleCommitSummary `json:"summary,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Health API Responses

// HealthCheckResponse represents service health
type HealthCheckResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}
