// Package analytics computes realized P&L statistics over trade snapshots.
//
// Every function is a pure read over the slice it is given; callers pass
// point-in-time copies (see tradebook.Snapshot), never the live store.
// Order-sensitive statistics (streaks, equity curve) scan trades in the
// order supplied by the caller, which is expected to be close-date
// ascending; the engine does not re-sort.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradeledger/pkg/contracts/domain"
)

// noLossProfitFactor is reported when there are no losing trades; both
// infinity and NaN are unrepresentable in most numeric consumers.
var noLossProfitFactor = decimal.NewFromInt(999)

// Filter restricts aggregation to trades closed within [From, To].
// Zero bounds are unbounded. Filters are applied before any aggregation
// because they change every derived statistic.
type Filter struct {
	From time.Time
	To   time.Time
}

func (f Filter) matches(t domain.Trade) bool {
	if t.CloseDate == nil {
		return false
	}
	if !f.From.IsZero() && t.CloseDate.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.CloseDate.After(f.To) {
		return false
	}
	return true
}

// ClosedTrades filters to closed trades within the date range, preserving
// the caller's order.
func ClosedTrades(trades []domain.Trade, f Filter) []domain.Trade {
	var closed []domain.Trade
	for _, t := range trades {
		if t.Status == domain.StatusClosed && f.matches(t) {
			closed = append(closed, t)
		}
	}
	return closed
}

// TotalRealizedPL sums realized P&L over the given trades. Partially
// closed trades contribute their closed portion only, by construction of
// Trade.RealizedPL.
func TotalRealizedPL(trades []domain.Trade) decimal.Decimal {
	total := decimal.Zero
	for _, t := range trades {
		total = total.Add(t.RealizedPL)
	}
	return total
}

// WinRate is the share of closed trades with non-negative realized P&L,
// rounded to the nearest integer percent. A break-even trade counts as a
// win.
func WinRate(closed []domain.Trade) int {
	if len(closed) == 0 {
		return 0
	}
	wins := 0
	for _, t := range closed {
		if t.IsWin() {
			wins++
		}
	}
	return int(decimal.NewFromInt(int64(wins * 100)).
		Div(decimal.NewFromInt(int64(len(closed)))).
		Round(0).IntPart())
}

// ProfitFactor is gross wins over the magnitude of gross losses. With no
// losses it returns the 999 sentinel.
func ProfitFactor(closed []domain.Trade) decimal.Decimal {
	wins, losses := decimal.Zero, decimal.Zero
	for _, t := range closed {
		if t.RealizedPL.IsNegative() {
			losses = losses.Add(t.RealizedPL)
		} else {
			wins = wins.Add(t.RealizedPL)
		}
	}
	if losses.IsZero() {
		return noLossProfitFactor
	}
	return wins.Div(losses.Abs())
}

// AverageWin is the mean realized P&L of winning trades, zero when none.
func AverageWin(closed []domain.Trade) decimal.Decimal {
	return averageWhere(closed, func(t domain.Trade) bool { return t.IsWin() })
}

// AverageLoss is the mean realized P&L of losing trades, zero when none.
func AverageLoss(closed []domain.Trade) decimal.Decimal {
	return averageWhere(closed, func(t domain.Trade) bool { return !t.IsWin() })
}

func averageWhere(closed []domain.Trade, keep func(domain.Trade) bool) decimal.Decimal {
	sum, n := decimal.Zero, int64(0)
	for _, t := range closed {
		if keep(t) {
			sum = sum.Add(t.RealizedPL)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(n))
}

// LongestStreak is the longest consecutive run of wins (or losses) in the
// supplied order.
func LongestStreak(closed []domain.Trade, wins bool) int {
	longest, current := 0, 0
	for _, t := range closed {
		if t.IsWin() == wins {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return longest
}

// EquityPoint is one step of the cumulative realized P&L curve.
type EquityPoint struct {
	Date         time.Time       `json:"date"`
	TradeNum     string          `json:"trade_num"`
	RealizedPL   decimal.Decimal `json:"realized_pl"`
	CumulativePL decimal.Decimal `json:"cumulative_pl"`
}

// EquityCurve is the cumulative realized P&L over closed trades in the
// supplied (close-date) order.
func EquityCurve(closed []domain.Trade) []EquityPoint {
	curve := make([]EquityPoint, 0, len(closed))
	cum := decimal.Zero
	for _, t := range closed {
		cum = cum.Add(t.RealizedPL)
		point := EquityPoint{TradeNum: t.TradeNum, RealizedPL: t.RealizedPL, CumulativePL: cum}
		if t.CloseDate != nil {
			point.Date = *t.CloseDate
		}
		curve = append(curve, point)
	}
	return curve
}

// CalendarBucket is one day's realized P&L.
type CalendarBucket struct {
	Date       string          `json:"date"` // ISO date
	RealizedPL decimal.Decimal `json:"realized_pl"`
	Trades     int             `json:"trades"`
}

// CalendarBuckets groups closed-trade P&L by ISO close date. The grouping
// key is the full date; truncating to a display window is a presentation
// concern, not this engine's.
func CalendarBuckets(closed []domain.Trade) []CalendarBucket {
	byDate := make(map[string]*CalendarBucket)
	for _, t := range closed {
		if t.CloseDate == nil {
			continue
		}
		key := t.CloseDate.Format("2006-01-02")
		bucket, ok := byDate[key]
		if !ok {
			bucket = &CalendarBucket{Date: key, RealizedPL: decimal.Zero}
			byDate[key] = bucket
		}
		bucket.RealizedPL = bucket.RealizedPL.Add(t.RealizedPL)
		bucket.Trades++
	}

	buckets := make([]CalendarBucket, 0, len(byDate))
	for _, b := range byDate {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date < buckets[j].Date })
	return buckets
}

// GroupStats aggregates one breakdown bucket. Custom-tagged trades are a
// first-class bucket with full P&L attribution.
type GroupStats struct {
	Trades     int             `json:"trades"`
	RealizedPL decimal.Decimal `json:"realized_pl"`
	WinRate    int             `json:"win_rate"`
}

// ByStrategy breaks closed trades down per strategy tag.
func ByStrategy(closed []domain.Trade) map[domain.StrategyTag]GroupStats {
	groups := make(map[domain.StrategyTag][]domain.Trade)
	for _, t := range closed {
		groups[t.Strategy] = append(groups[t.Strategy], t)
	}
	out := make(map[domain.StrategyTag]GroupStats, len(groups))
	for tag, ts := range groups {
		out[tag] = GroupStats{Trades: len(ts), RealizedPL: TotalRealizedPL(ts), WinRate: WinRate(ts)}
	}
	return out
}

// ByTicker breaks closed trades down per underlying.
func ByTicker(closed []domain.Trade) map[string]GroupStats {
	groups := make(map[string][]domain.Trade)
	for _, t := range closed {
		groups[t.Underlying] = append(groups[t.Underlying], t)
	}
	out := make(map[string]GroupStats, len(groups))
	for sym, ts := range groups {
		out[sym] = GroupStats{Trades: len(ts), RealizedPL: TotalRealizedPL(ts), WinRate: WinRate(ts)}
	}
	return out
}

// Summary bundles the derived statistics for one filtered trade set.
type Summary struct {
	ClosedTrades  int                                `json:"closed_trades"`
	OpenTrades    int                                `json:"open_trades"`
	RealizedPL    decimal.Decimal                    `json:"realized_pl"`
	WinRate       int                                `json:"win_rate"`
	ProfitFactor  decimal.Decimal                    `json:"profit_factor"`
	AverageWin    decimal.Decimal                    `json:"average_win"`
	AverageLoss   decimal.Decimal                    `json:"average_loss"`
	WinStreak     int                                `json:"win_streak"`
	LossStreak    int                                `json:"loss_streak"`
	EquityCurve   []EquityPoint                      `json:"equity_curve"`
	Calendar      []CalendarBucket                   `json:"calendar"`
	ByStrategy    map[domain.StrategyTag]GroupStats  `json:"by_strategy"`
	ByTicker      map[string]GroupStats              `json:"by_ticker"`
}

// Summarize computes the full statistics bundle over a snapshot. Closed
// trades are ordered by close date before the order-sensitive statistics
// run, satisfying their documented precondition.
func Summarize(trades []domain.Trade, f Filter) Summary {
	closed := ClosedTrades(trades, f)
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].CloseDate.Before(*closed[j].CloseDate)
	})

	open := 0
	for _, t := range trades {
		if t.Status != domain.StatusClosed {
			open++
		}
	}

	return Summary{
		ClosedTrades: len(closed),
		OpenTrades:   open,
		RealizedPL:   TotalRealizedPL(closed),
		WinRate:      WinRate(closed),
		ProfitFactor: ProfitFactor(closed),
		AverageWin:   AverageWin(closed),
		AverageLoss:  AverageLoss(closed),
		WinStreak:    LongestStreak(closed, true),
		LossStreak:   LongestStreak(closed, false),
		EquityCurve:  EquityCurve(closed),
		Calendar:     CalendarBuckets(closed),
		ByStrategy:   ByStrategy(closed),
		ByTicker:     ByTicker(closed),
	}
}
