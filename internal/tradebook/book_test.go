package tradebook

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/pkg/contracts/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func openLeg(id string, qty int64, amount string, d int) domain.Leg {
	return domain.Leg{
		ID:         id,
		Date:       day(d),
		Underlying: "AAPL",
		Action:     domain.ActionBuyToOpen,
		IsOption:   true,
		OptionType: domain.OptionTypeCall,
		Strike:     decimal.NewFromInt(150),
		Expiration: day(28),
		Quantity:   qty,
		Amount:     decimal.RequireFromString(amount),
	}
}

func closeLeg(id string, qty int64, amount string, d int) domain.Leg {
	return domain.Leg{
		ID:         id,
		Date:       day(d),
		Underlying: "AAPL",
		Action:     domain.ActionSellToClose,
		IsOption:   true,
		OptionType: domain.OptionTypeCall,
		Strike:     decimal.NewFromInt(150),
		Expiration: day(28),
		Quantity:   qty,
		Amount:     decimal.RequireFromString(amount),
	}
}

func TestAddToPoolRejectsDuplicates(t *testing.T) {
	b := NewBook(testLogger())

	rejected := b.AddToPool(openLeg("a", 1, "-100", 1), openLeg("b", 1, "-100", 1))
	assert.Empty(t, rejected)
	assert.Equal(t, 2, b.PoolSize())

	rejected = b.AddToPool(openLeg("a", 1, "-100", 1))
	assert.Equal(t, []string{"a"}, rejected)

	_, err := b.CommitOpen([]string{"a"}, "1", "")
	require.NoError(t, err)

	// Committed ids stay claimed even though they left the pool.
	rejected = b.AddToPool(openLeg("a", 1, "-100", 1))
	assert.Equal(t, []string{"a"}, rejected)
}

func TestCommitOpenCreatesTrade(t *testing.T) {
	b := NewBook(testLogger())
	b.AddToPool(openLeg("a", 2, "-500", 1))

	trade, err := b.CommitOpen([]string{"a"}, "7", "")
	require.NoError(t, err)
	require.NotNil(t, trade)

	assert.Equal(t, "7", trade.TradeNum)
	assert.Equal(t, "AAPL", trade.Underlying)
	assert.Equal(t, domain.StatusOpen, trade.Status)
	assert.Equal(t, domain.StrategySingleLongCall, trade.Strategy)
	assert.Equal(t, day(1), trade.OpenDate)
	assert.Nil(t, trade.CloseDate)
	assert.Equal(t, 0, b.PoolSize())
}

func TestTradeLifecyclePartialThenClosed(t *testing.T) {
	b := NewBook(testLogger())
	b.AddToPool(
		openLeg("o1", 10, "-1000", 1),
		closeLeg("c1", 4, "600", 5),
		closeLeg("c2", 6, "900", 9),
	)

	_, err := b.CommitOpen([]string{"o1"}, "1", "")
	require.NoError(t, err)

	portion, err := b.CommitClose([]string{"c1"}, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), portion.QuantityClosed)
	// 600 + (-1000 * 4/10) = 200
	assert.True(t, portion.RealizedPL.Equal(decimal.NewFromInt(200)), portion.RealizedPL.String())
	assert.Equal(t, domain.StatusPartial, portion.Status)
	assert.Nil(t, portion.CloseDate)

	portion, err = b.CommitClose([]string{"c2"}, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), portion.QuantityClosed)
	// 900 + (-1000 * 6/10) = 300
	assert.True(t, portion.RealizedPL.Equal(decimal.NewFromInt(300)), portion.RealizedPL.String())
	assert.Equal(t, domain.StatusClosed, portion.Status)
	require.NotNil(t, portion.CloseDate)
	assert.Equal(t, day(9), *portion.CloseDate)

	trade, ok := b.Trade("1")
	require.True(t, ok)
	assert.True(t, trade.RealizedPL.Equal(decimal.NewFromInt(500)), trade.RealizedPL.String())
}

func TestCommitMixedBatchOpensAndCloses(t *testing.T) {
	b := NewBook(testLogger())
	b.AddToPool(
		openLeg("o1", 5, "-500", 1),
		closeLeg("c1", 5, "700", 3),
	)

	result, err := b.Commit("1", "", []string{"o1", "c1"}, "ACCT", "SUB")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Committed)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "OPEN", result.Results[0].Action)
	assert.Equal(t, "CLOSE", result.Results[1].Action)
	require.NotNil(t, result.Results[1].RealizedPL)
	assert.True(t, result.Results[1].RealizedPL.Equal(decimal.NewFromInt(200)))

	require.NotNil(t, result.Trade)
	assert.Equal(t, domain.StatusClosed, result.Trade.Status)
	assert.Equal(t, "ACCT", result.Trade.AccountCode)
	assert.Equal(t, "SUB", result.Trade.SubAccount)
}

func TestCommitSkipsUnknownAndAmbiguousLegs(t *testing.T) {
	b := NewBook(testLogger())
	ambiguous := openLeg("amb", 1, "-100", 1)
	ambiguous.Action = domain.ActionUnknown
	b.AddToPool(openLeg("o1", 1, "-100", 1), ambiguous)

	result, err := b.Commit("1", "", []string{"o1", "amb", "missing"}, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Committed)
	assert.ElementsMatch(t, []string{"amb", "missing"}, result.Skipped)
}

func TestOverCloseRejectedWithoutMutation(t *testing.T) {
	b := NewBook(testLogger())
	b.AddToPool(
		openLeg("o1", 3, "-300", 1),
		closeLeg("c1", 5, "600", 4),
	)
	_, err := b.CommitOpen([]string{"o1"}, "1", "")
	require.NoError(t, err)

	before, _ := b.Trade("1")
	poolBefore := b.PoolSize()

	_, err = b.CommitClose([]string{"c1"}, "1")
	require.ErrorIs(t, err, ErrOverClose)

	after, ok := b.Trade("1")
	require.True(t, ok)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.Version, after.Version)
	assert.True(t, before.RealizedPL.Equal(after.RealizedPL))
	assert.Equal(t, poolBefore, b.PoolSize())
}

func TestTradeNumConflicts(t *testing.T) {
	b := NewBook(testLogger())

	t.Run("closing a missing trade", func(t *testing.T) {
		b.AddToPool(closeLeg("c0", 1, "100", 2))
		_, err := b.CommitClose([]string{"c0"}, "404")
		require.ErrorIs(t, err, ErrTradeNumConflict)
	})

	t.Run("opening into a closed trade", func(t *testing.T) {
		b.AddToPool(openLeg("o1", 1, "-100", 1), closeLeg("c1", 1, "150", 2))
		_, err := b.Commit("9", "", []string{"o1", "c1"}, "", "")
		require.NoError(t, err)

		b.AddToPool(openLeg("o2", 1, "-100", 3))
		_, err = b.CommitOpen([]string{"o2"}, "9", "")
		require.ErrorIs(t, err, ErrTradeNumConflict)
	})

	t.Run("opening into another underlying", func(t *testing.T) {
		b.AddToPool(openLeg("o3", 1, "-100", 1))
		_, err := b.CommitOpen([]string{"o3"}, "10", "")
		require.NoError(t, err)

		msft := openLeg("o4", 1, "-100", 2)
		msft.Underlying = "MSFT"
		b.AddToPool(msft)
		_, err = b.CommitOpen([]string{"o4"}, "10", "")
		require.ErrorIs(t, err, ErrTradeNumConflict)
	})
}

func TestExplicitStrategyTagOverridesClassifier(t *testing.T) {
	b := NewBook(testLogger())
	b.AddToPool(openLeg("o1", 1, "-100", 1))

	trade, err := b.CommitOpen([]string{"o1"}, "1", domain.StrategyCoveredCall)
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyCoveredCall, trade.Strategy)
}

func TestUncommitReversesLastBatch(t *testing.T) {
	b := NewBook(testLogger())
	b.AddToPool(
		openLeg("o1", 10, "-1000", 1),
		closeLeg("c1", 10, "1500", 5),
	)
	_, err := b.CommitOpen([]string{"o1"}, "1", "")
	require.NoError(t, err)
	_, err = b.CommitClose([]string{"c1"}, "1")
	require.NoError(t, err)

	restored, err := b.Uncommit("1")
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, "c1", restored[0].ID)

	trade, ok := b.Trade("1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusOpen, trade.Status)
	assert.True(t, trade.RealizedPL.IsZero())
	assert.Nil(t, trade.CloseDate)
	assert.Equal(t, 1, b.PoolSize())
}

func TestUncommitReversesMixedRequestAsAWhole(t *testing.T) {
	b := NewBook(testLogger())
	b.AddToPool(
		openLeg("o1", 5, "-500", 1),
		closeLeg("c1", 5, "700", 3),
	)

	_, err := b.Commit("1", "", []string{"o1", "c1"}, "", "")
	require.NoError(t, err)

	// One request committed both halves, so one uncommit restores both.
	restored, err := b.Uncommit("1")
	require.NoError(t, err)
	require.Len(t, restored, 2)
	assert.ElementsMatch(t, []string{"o1", "c1"},
		[]string{restored[0].ID, restored[1].ID})

	_, ok := b.Trade("1")
	assert.False(t, ok)
	assert.Equal(t, 2, b.PoolSize())
}

func TestUncommitMixedRequestRestoresPriorState(t *testing.T) {
	b := NewBook(testLogger())
	b.AddToPool(
		openLeg("o1", 10, "-1000", 1),
		openLeg("o2", 5, "-500", 2),
		closeLeg("c1", 5, "700", 4),
	)
	_, err := b.CommitOpen([]string{"o1"}, "1", "")
	require.NoError(t, err)

	_, err = b.Commit("1", "", []string{"o2", "c1"}, "", "")
	require.NoError(t, err)

	restored, err := b.Uncommit("1")
	require.NoError(t, err)
	assert.Len(t, restored, 2)

	trade, ok := b.Trade("1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusOpen, trade.Status)
	assert.Len(t, trade.Legs, 1)
	assert.Equal(t, "o1", trade.Legs[0].ID)
	assert.True(t, trade.RealizedPL.IsZero())
	assert.Equal(t, 2, b.PoolSize())
}

func TestUncommitLastOpenRemovesTrade(t *testing.T) {
	b := NewBook(testLogger())
	b.AddToPool(openLeg("o1", 1, "-100", 1))
	_, err := b.CommitOpen([]string{"o1"}, "1", "")
	require.NoError(t, err)

	restored, err := b.Uncommit("1")
	require.NoError(t, err)
	assert.Len(t, restored, 1)

	_, ok := b.Trade("1")
	assert.False(t, ok)
	assert.Equal(t, 1, b.PoolSize())

	_, err = b.Uncommit("1")
	require.ErrorIs(t, err, ErrNothingToUncommit)
}

func TestDescriptorMatchedCloseConsumesMatchingContract(t *testing.T) {
	b := NewBook(testLogger())
	other := openLeg("o2", 2, "-400", 1)
	other.Strike = decimal.NewFromInt(160)
	b.AddToPool(openLeg("o1", 2, "-200", 1), other)
	_, err := b.Commit("1", "", []string{"o1", "o2"}, "", "")
	require.NoError(t, err)

	// Closes only against the 150 strike.
	b.AddToPool(closeLeg("c1", 2, "300", 4))
	portion, err := b.CommitClose([]string{"c1"}, "1")
	require.NoError(t, err)
	// 300 + (-200 * 2/2) = 100
	assert.True(t, portion.RealizedPL.Equal(decimal.NewFromInt(100)), portion.RealizedPL.String())
	assert.Equal(t, domain.StatusPartial, portion.Status)
}

func TestProportionalAllocationDistributesRemainder(t *testing.T) {
	legs := []domain.Leg{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	remaining := map[string]int64{"a": 3, "b": 3, "c": 3}

	allocs := allocateProportionally(legs, remaining, 5)

	var total int64
	for _, take := range allocs {
		total += take
	}
	assert.Equal(t, int64(5), total)
	for id, take := range allocs {
		assert.LessOrEqual(t, take, remaining[id], id)
	}
}

func TestNextTradeNumMonotonic(t *testing.T) {
	b := NewBook(testLogger())
	assert.Equal(t, "1", b.NextTradeNum())
	assert.Equal(t, "2", b.NextTradeNum())
	assert.Equal(t, "3", b.NextTradeNum())
}

func TestSnapshotIsACopy(t *testing.T) {
	b := NewBook(testLogger())
	b.AddToPool(openLeg("o1", 1, "-100", 1))
	_, err := b.CommitOpen([]string{"o1"}, "1", "")
	require.NoError(t, err)

	snap := b.Snapshot()
	require.Len(t, snap, 1)
	snap[0].Legs[0].ID = "mutated"
	snap[0].RealizedPL = decimal.NewFromInt(999)

	trade, _ := b.Trade("1")
	assert.Equal(t, "o1", trade.Legs[0].ID)
	assert.True(t, trade.RealizedPL.IsZero())
}
