// Package api contains API contract definitions for the trade ledger.
// Version v1 represents the current stable API version.
package api

// Common request parameters

// DateRangeRequest represents a date range in requests
type DateRangeRequest struct {
	From string `json:"from" query:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `json:"to" query:"to" validate:"omitempty,datetime=2006-01-02"`
}

// Transaction API Requests

// RawOptionInput carries pre-parsed option detail on an incoming
// transaction. When absent the option symbol, if any, is parsed instead.
type RawOptionInput struct {
	Type       string `json:"type" validate:"required,oneof=call put"`
	Strike     string `json:"strike" validate:"required"`
	Expiration string `json:"expiration" validate:"required,datetime=2006-01-02"`
}

// RawTransactionInput represents one broker transaction to normalize
type RawTransactionInput struct {
	ID           string          `json:"id" validate:"required"`
	Date         string          `json:"date" validate:"required,datetime=2006-01-02"`
	Symbol       string          `json:"symbol" validate:"required"`
	Name         string          `json:"name,omitempty"`
	Subtype      string          `json:"subtype,omitempty"`
	ActionCode   string          `json:"actionCode,omitempty"`
	Quantity     int64           `json:"quantity" validate:"required"`
	Price        string          `json:"price,omitempty"`
	Amount       string          `json:"amount" validate:"required"`
	Fees         string          `json:"fees,omitempty"`
	Option       *RawOptionInput `json:"option,omitempty"`
	OptionSymbol string          `json:"optionSymbol,omitempty"`
}

// TransactionIngestRequest represents a batch of transactions to
// normalize into the uncommitted leg pool
type TransactionIngestRequest struct {
	Transactions []RawTransactionInput `json:"transactions" validate:"required,min=1,dive"`
}

// Trade API Requests

// CommitLegsRequest represents a request to commit pooled legs to a trade
type CommitLegsRequest struct {
	TransactionIDs []string `json:"transactionIds" validate:"required,min=1,dive,required"`
	TradeNum       string   `json:"tradeNum,omitempty"`
	Strategy       string   `json:"strategy,omitempty"`
	AccountCode    string   `json:"accountCode,omitempty"`
	SubAccount     string   `json:"subAccount,omitempty"`
}

// TradeListRequest represents a request to list trades
type TradeListRequest struct {
	Status     string `json:"status" query:"status" validate:"omitempty,oneof=open partial closed"`
	Underlying string `json:"underlying" query:"underlying"`
}

// Analytics API Requests

// AnalyticsSummaryRequest represents a performance summary request.
// The date range filters trades by close date.
type AnalyticsSummaryRequest struct {
	DateRange DateRangeRequest `json:"date_range,omitempty"`
}

// Lot API Requests

// LotCreateRequest represents a request to record a purchase lot
type LotCreateRequest struct {
	Symbol       string `json:"symbol" validate:"required"`
	AcquiredDate string `json:"acquiredDate" validate:"required,datetime=2006-01-02"`
	Quantity     int64  `json:"quantity" validate:"required,min=1"`
	CostPerShare string `json:"costPerShare" validate:"required"`
}

// SaleMatchRequest represents a request to preview a sale against open
// lots under every matching method
type SaleMatchRequest struct {
	Symbol       string `json:"symbol" validate:"required"`
	SaleQuantity int64  `json:"saleQuantity" validate:"required,min=1"`
	SalePrice    string `json:"salePrice" validate:"required"`
	SaleDate     string `json:"saleDate" validate:"required,datetime=2006-01-02"`
}

// SaleCommitRequest represents a request to commit a sale with a chosen
// matching method
type SaleCommitRequest struct {
	SaleTxnID      string `json:"saleTxnId" validate:"required"`
	Symbol         string `json:"symbol" validate:"required"`
	SaleQuantity   int64  `json:"saleQuantity" validate:"required,min=1"`
	SalePrice      string `json:"salePrice" validate:"required"`
	SaleDate       string `json:"saleDate" validate:"required,datetime=2006-01-02"`
	MatchingMethod string `json:"matchingMethod" validate:"required,oneof=fifo lifo hifo minTax"`
}

// Health API Requests

// HealthCheckRequest represents a health check request
type HealthCheckRequest struct {
	Verbose bool `json:"verbose" query:"verbose"`
}
