package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/normalize"
	"tradeledger/internal/taxlot"
	"tradeledger/internal/tradebook"
	"tradeledger/pkg/contracts/domain"
)

func newTradeService(t *testing.T) (*TradeService, *taxlot.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	book := tradebook.NewBook(logger)
	lots := taxlot.NewStore(taxlot.DefaultTaxRates(), logger)
	return NewTradeService(book, lots, nil, logger), lots
}

func TestIngestMirrorsEquityBuysIntoLots(t *testing.T) {
	svc, lots := newTradeService(t)
	ctx := context.Background()

	raws := []normalize.RawTransaction{
		{
			ID:       "buy1",
			Date:     time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
			Symbol:   "AAPL",
			Name:     "Buy",
			Quantity: 100,
			Price:    decimal.NewFromInt(180),
		},
		{
			ID:       "sell1",
			Date:     time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
			Symbol:   "AAPL",
			Name:     "Sell",
			Quantity: -50,
			Price:    decimal.NewFromInt(190),
		},
		{
			ID:     "opt1",
			Date:   time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
			Symbol: "AAPL",
			Name:   "Buy to Open",
			Option: &normalize.RawOption{Type: "call", Strike: decimal.NewFromInt(200)},
		},
	}

	result, err := svc.Ingest(ctx, raws)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Accepted)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, 3, result.PoolSize)

	// Only the equity buy creates a lot; the sale and the option do not.
	aapl := lots.Lots("AAPL")
	require.Len(t, aapl, 1)
	assert.Equal(t, int64(100), aapl[0].OriginalQuantity)
	assert.True(t, aapl[0].CostPerShare.Equal(decimal.NewFromInt(180)))
}

func TestIngestReportsSkipsAndDuplicates(t *testing.T) {
	svc, _ := newTradeService(t)
	ctx := context.Background()

	raws := []normalize.RawTransaction{
		{ID: "ok", Symbol: "AAPL", Name: "Buy", Quantity: 10},
		{ID: "amb", Symbol: "AAPL", Name: "Journal Entry"},
	}
	result, err := svc.Ingest(ctx, raws)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "amb", result.Skipped[0].ID)

	// Same id again is rejected as a duplicate.
	result, err = svc.Ingest(ctx, raws[:1])
	require.NoError(t, err)
	assert.Equal(t, 0, result.Accepted)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "ok", result.Skipped[0].ID)
	assert.Contains(t, result.Skipped[0].Reason, "duplicate")
}

func TestCommitLegsAllocatesTradeNum(t *testing.T) {
	svc, _ := newTradeService(t)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, []normalize.RawTransaction{
		{ID: "o1", Symbol: "AAPL", Name: "Buy", Quantity: 100, Date: time.Now()},
	})
	require.NoError(t, err)

	tradeNum, result, err := svc.CommitLegs(ctx, CommitLegsInput{TransactionIDs: []string{"o1"}})
	require.NoError(t, err)
	assert.Equal(t, "1", tradeNum)
	require.NotNil(t, result.Trade)
	assert.Equal(t, domain.StatusOpen, result.Trade.Status)
}

func TestCommitLegsRejectsUnknownStrategy(t *testing.T) {
	svc, _ := newTradeService(t)

	_, _, err := svc.CommitLegs(context.Background(), CommitLegsInput{
		TransactionIDs: []string{"x"},
		Strategy:       "flying_wedge",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized strategy")
}

func TestUncommitReportsTradeRemoval(t *testing.T) {
	svc, _ := newTradeService(t)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, []normalize.RawTransaction{
		{ID: "o1", Symbol: "AAPL", Name: "Buy", Quantity: 100, Date: time.Now()},
	})
	require.NoError(t, err)
	tradeNum, _, err := svc.CommitLegs(ctx, CommitLegsInput{TransactionIDs: []string{"o1"}})
	require.NoError(t, err)

	restored, removed, err := svc.Uncommit(ctx, tradeNum)
	require.NoError(t, err)
	assert.Len(t, restored, 1)
	assert.True(t, removed)

	_, _, err = svc.Uncommit(ctx, tradeNum)
	require.ErrorIs(t, err, tradebook.ErrNothingToUncommit)
}

func TestListTradesFilters(t *testing.T) {
	svc, _ := newTradeService(t)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, []normalize.RawTransaction{
		{ID: "a1", Symbol: "AAPL", Name: "Buy", Quantity: 100, Date: time.Now()},
		{ID: "m1", Symbol: "MSFT", Name: "Buy", Quantity: 100, Date: time.Now()},
	})
	require.NoError(t, err)
	_, _, err = svc.CommitLegs(ctx, CommitLegsInput{TransactionIDs: []string{"a1"}})
	require.NoError(t, err)
	_, _, err = svc.CommitLegs(ctx, CommitLegsInput{TransactionIDs: []string{"m1"}})
	require.NoError(t, err)

	all, err := svc.ListTrades(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	aapl, err := svc.ListTrades(ctx, "", "AAPL")
	require.NoError(t, err)
	require.Len(t, aapl, 1)
	assert.Equal(t, "AAPL", aapl[0].Underlying)

	closed, err := svc.ListTrades(ctx, string(domain.StatusClosed), "")
	require.NoError(t, err)
	assert.Empty(t, closed)
}
