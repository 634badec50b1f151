// Package tradebook assigns legs to trades and tracks their lifecycle.
//
// A Book owns two collections: an unassigned-leg pool keyed by leg id and
// the set of trades keyed by trade number. Commits are atomic: every
// mutation is validated in full against the locked state before anything
// is applied, so a failed commit leaves the book untouched. Batch-level
// semantics are partial-success — a malformed or already-committed leg is
// skipped, never fatal to the rest of the batch — while each individual
// trade mutation is all-or-nothing.
package tradebook

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradeledger/internal/strategy"
	"tradeledger/pkg/contracts/domain"
)

var (
	// ErrTradeNumConflict indicates a commit referenced a trade number in a
	// way that conflicts with its current state: reusing a closed trade's
	// number, opening into another underlying's trade, or closing a trade
	// that does not exist.
	ErrTradeNumConflict = errors.New("trade number conflict")

	// ErrOverClose indicates a close batch would offset more quantity than
	// is currently open. The commit is rejected rather than capped.
	ErrOverClose = errors.New("close exceeds open quantity")

	// ErrNothingToUncommit indicates the trade has no committed batches.
	ErrNothingToUncommit = errors.New("nothing to uncommit")
)

// Book is the in-memory trade ledger.
type Book struct {
	mu      sync.Mutex
	logger  *slog.Logger
	trades  map[string]*entry
	pool    map[string]domain.Leg
	nextNum int64
}

type batchKind int

const (
	batchOpen batchKind = iota
	batchClose
)

// batch records one applied half of a commit request so Uncommit can
// reverse it. A mixed request produces an open batch and a close batch
// sharing one seq; Uncommit pops every batch of the newest seq, so a
// request is always reversed as a whole.
type batch struct {
	kind     batchKind
	seq      uint64
	legIDs   []string
	consumed map[string]int64 // close batches: open quantity consumed per opening leg id
	realized decimal.Decimal  // close batches: P&L posted by this batch
}

type entry struct {
	trade   domain.Trade
	openQty map[string]int64 // remaining open quantity per opening leg id
	origQty map[string]int64 // original opening quantity per opening leg id
	batches []batch
	seq     uint64 // sequence of the most recent commit request
}

// NewBook creates an empty trade book.
func NewBook(logger *slog.Logger) *Book {
	return &Book{
		logger: logger.With(slog.String("component", "tradebook")),
		trades: make(map[string]*entry),
		pool:   make(map[string]domain.Leg),
	}
}

// AddToPool places normalized legs into the unassigned pool. A leg id
// already present (pooled or committed) is rejected in the returned skip
// list; the rest are added.
func (b *Book) AddToPool(legs ...domain.Leg) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var rejected []string
	for _, leg := range legs {
		if _, ok := b.pool[leg.ID]; ok {
			rejected = append(rejected, leg.ID)
			continue
		}
		if b.isCommitted(leg.ID) {
			rejected = append(rejected, leg.ID)
			continue
		}
		b.pool[leg.ID] = leg
	}
	return rejected
}

// PoolSize returns the number of unassigned legs.
func (b *Book) PoolSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pool)
}

// PoolLegs returns a copy of the unassigned pool.
func (b *Book) PoolLegs() []domain.Leg {
	b.mu.Lock()
	defer b.mu.Unlock()

	legs := make([]domain.Leg, 0, len(b.pool))
	for _, leg := range b.pool {
		legs = append(legs, leg)
	}
	sort.Slice(legs, func(i, j int) bool { return legs[i].ID < legs[j].ID })
	return legs
}

// NextTradeNum returns a fresh, monotonically increasing trade number.
func (b *Book) NextTradeNum() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextNum++
	return strconv.FormatInt(b.nextNum, 10)
}

// CommitAction describes one applied portion of a commit batch.
type CommitAction struct {
	Action     string           `json:"action"` // "OPEN" or "CLOSE"
	RealizedPL *decimal.Decimal `json:"realizedPL,omitempty"`
}

// CommitResult is the outcome of a commit batch.
type CommitResult struct {
	Committed int            `json:"committed"`
	Results   []CommitAction `json:"results"`
	Skipped   []string       `json:"skipped"`
	Trade     *domain.Trade  `json:"trade,omitempty"`
}

// ClosedPortion reports the effect of a close batch.
type ClosedPortion struct {
	TradeNum       string             `json:"trade_num"`
	QuantityClosed int64              `json:"quantity_closed"`
	RealizedPL     decimal.Decimal    `json:"realized_pl"`
	Status         domain.TradeStatus `json:"status"`
	CloseDate      *time.Time         `json:"close_date,omitempty"`
}

// Commit assigns the identified pool legs to the given trade. Opening legs
// extend (or create) the trade; closing legs offset open quantity and post
// realized P&L. Ids not found in the pool are skipped. When tag is empty
// the opening legs are classified by the strategy decision table.
//
// Trade-level failures (conflict, over-close) reject the whole batch and
// mutate nothing.
func (b *Book) Commit(tradeNum string, tag domain.StrategyTag, legIDs []string, accountCode, subAccount string) (*CommitResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := &CommitResult{}

	var opening, closing []domain.Leg
	for _, id := range legIDs {
		leg, ok := b.pool[id]
		if !ok {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		switch {
		case leg.Action.IsOpening():
			opening = append(opening, leg)
		case leg.Action.IsClosing():
			closing = append(closing, leg)
		default:
			result.Skipped = append(result.Skipped, id)
		}
	}
	if len(opening) == 0 && len(closing) == 0 {
		return result, nil
	}

	ent := b.trades[tradeNum]

	// Validate everything before mutating anything.
	if len(opening) > 0 {
		if err := b.validateOpen(ent, tradeNum, opening); err != nil {
			return nil, err
		}
	}
	var plan *closePlan
	if len(closing) > 0 {
		target := ent
		if target == nil && len(opening) == 0 {
			return nil, fmt.Errorf("%w: trade %s has no open legs to close", ErrTradeNumConflict, tradeNum)
		}
		var err error
		plan, err = b.planClose(target, opening, closing)
		if err != nil {
			return nil, err
		}
	}

	// Apply. Both halves of a mixed request carry the same sequence so
	// Uncommit never splits a request.
	seq := uint64(1)
	if ent != nil {
		seq = ent.seq + 1
	}
	if len(opening) > 0 {
		ent = b.applyOpen(ent, tradeNum, tag, opening, accountCode, subAccount, seq)
		result.Results = append(result.Results, CommitAction{Action: "OPEN"})
		result.Committed += len(opening)
	}
	if plan != nil {
		portion := b.applyClose(ent, closing, plan, seq)
		pl := portion.RealizedPL
		result.Results = append(result.Results, CommitAction{Action: "CLOSE", RealizedPL: &pl})
		result.Committed += len(closing)
	}
	ent.seq = seq

	ent.trade.Version++
	snapshot := copyTrade(ent.trade)
	result.Trade = &snapshot

	b.logger.Info("batch committed",
		slog.String("trade_num", tradeNum),
		slog.Int("committed", result.Committed),
		slog.Int("skipped", len(result.Skipped)),
		slog.String("status", string(ent.trade.Status)))

	return result, nil
}

// CommitOpen commits a pure opening batch.
func (b *Book) CommitOpen(legIDs []string, tradeNum string, tag domain.StrategyTag) (*domain.Trade, error) {
	res, err := b.Commit(tradeNum, tag, legIDs, "", "")
	if err != nil {
		return nil, err
	}
	return res.Trade, nil
}

// CommitClose commits a pure closing batch and reports the closed portion.
func (b *Book) CommitClose(legIDs []string, tradeNum string) (*ClosedPortion, error) {
	res, err := b.Commit(tradeNum, "", legIDs, "", "")
	if err != nil {
		return nil, err
	}
	if res.Trade == nil {
		return nil, fmt.Errorf("%w: trade %s", ErrTradeNumConflict, tradeNum)
	}
	portion := &ClosedPortion{
		TradeNum:  tradeNum,
		Status:    res.Trade.Status,
		CloseDate: res.Trade.CloseDate,
	}
	for _, r := range res.Results {
		if r.Action == "CLOSE" && r.RealizedPL != nil {
			portion.RealizedPL = *r.RealizedPL
		}
	}
	for _, id := range legIDs {
		for _, leg := range res.Trade.Legs {
			if leg.ID == id {
				portion.QuantityClosed += leg.AbsQuantity()
			}
		}
	}
	return portion, nil
}

func (b *Book) validateOpen(ent *entry, tradeNum string, opening []domain.Leg) error {
	underlying := opening[0].Underlying
	for _, leg := range opening[1:] {
		if leg.Underlying != underlying {
			return fmt.Errorf("%w: legs %s and %s have different underlyings",
				ErrTradeNumConflict, opening[0].ID, leg.ID)
		}
	}
	if ent == nil {
		return nil
	}
	if ent.trade.Status == domain.StatusClosed {
		return fmt.Errorf("%w: trade %s is closed", ErrTradeNumConflict, tradeNum)
	}
	if ent.trade.Underlying != underlying {
		return fmt.Errorf("%w: trade %s is on %s, not %s",
			ErrTradeNumConflict, tradeNum, ent.trade.Underlying, underlying)
	}
	return nil
}

func (b *Book) applyOpen(ent *entry, tradeNum string, tag domain.StrategyTag, opening []domain.Leg, accountCode, subAccount string, seq uint64) *entry {
	var dir domain.Direction
	if tag == "" || !tag.Valid() {
		if cls, err := strategy.Classify(opening); err == nil {
			tag, dir = cls.Tag, cls.Direction
		} else {
			tag = domain.StrategyCustom
		}
	}

	if ent == nil {
		ent = &entry{
			trade: domain.Trade{
				TradeNum:    tradeNum,
				Underlying:  opening[0].Underlying,
				Strategy:    tag,
				Direction:   dir,
				Status:      domain.StatusOpen,
				OpenDate:    earliestDate(opening),
				RealizedPL:  decimal.Zero,
				AccountCode: accountCode,
				SubAccount:  subAccount,
			},
			openQty: make(map[string]int64),
			origQty: make(map[string]int64),
		}
		b.trades[tradeNum] = ent
	}

	ids := make([]string, 0, len(opening))
	for _, leg := range opening {
		ent.trade.Legs = append(ent.trade.Legs, leg)
		ent.openQty[leg.ID] = leg.AbsQuantity()
		ent.origQty[leg.ID] = leg.AbsQuantity()
		ids = append(ids, leg.ID)
		delete(b.pool, leg.ID)
	}
	ent.batches = append(ent.batches, batch{kind: batchOpen, seq: seq, legIDs: ids})
	b.recomputeStatus(ent, nil)
	return ent
}

// closePlan maps closing legs onto open quantity without mutating state.
type closePlan struct {
	consumed map[string]int64
	realized decimal.Decimal
}

// planClose validates a close batch against the entry's remaining open
// quantity. Closing legs match opening legs by option descriptor equality
// when available; otherwise the quantity is allocated proportionally
// across all open legs.
func (b *Book) planClose(ent *entry, pendingOpen, closing []domain.Leg) (*closePlan, error) {
	// Work on a scratch copy of remaining quantities that includes any
	// opening legs committed in the same batch.
	remaining := make(map[string]int64)
	origQty := make(map[string]int64)
	var openLegs []domain.Leg
	if ent != nil {
		for _, leg := range ent.trade.Legs {
			if qty, ok := ent.openQty[leg.ID]; ok {
				remaining[leg.ID] = qty
				origQty[leg.ID] = ent.origQty[leg.ID]
				openLegs = append(openLegs, leg)
			}
		}
	}
	for _, leg := range pendingOpen {
		remaining[leg.ID] = leg.AbsQuantity()
		origQty[leg.ID] = leg.AbsQuantity()
		openLegs = append(openLegs, leg)
	}

	plan := &closePlan{consumed: make(map[string]int64), realized: decimal.Zero}

	for _, cl := range closing {
		qty := cl.AbsQuantity()

		candidates := openLegs
		if cl.IsOption {
			var matched []domain.Leg
			for _, ol := range openLegs {
				if ol.SameContract(cl) {
					matched = append(matched, ol)
				}
			}
			if len(matched) > 0 {
				candidates = matched
			}
		}

		var avail int64
		for _, ol := range candidates {
			avail += remaining[ol.ID]
		}
		if qty > avail {
			return nil, fmt.Errorf("%w: leg %s closes %d but only %d open",
				ErrOverClose, cl.ID, qty, avail)
		}

		legPL := cl.Amount
		if cl.IsOption && len(candidates) < len(openLegs) {
			// Descriptor match: consume in commit order.
			left := qty
			for _, ol := range candidates {
				if left == 0 {
					break
				}
				take := min64(left, remaining[ol.ID])
				if take == 0 {
					continue
				}
				remaining[ol.ID] -= take
				plan.consumed[ol.ID] += take
				legPL = legPL.Add(openFraction(ol, take, origQty[ol.ID]))
				left -= take
			}
		} else {
			// Proportional allocation across all open legs.
			allocs := allocateProportionally(openLegs, remaining, qty)
			for id, take := range allocs {
				remaining[id] -= take
				plan.consumed[id] += take
				ol := legByID(openLegs, id)
				legPL = legPL.Add(openFraction(ol, take, origQty[id]))
			}
		}
		plan.realized = plan.realized.Add(legPL)
	}

	return plan, nil
}

func (b *Book) applyClose(ent *entry, closing []domain.Leg, plan *closePlan, seq uint64) *ClosedPortion {
	ids := make([]string, 0, len(closing))
	var qtyClosed int64
	for _, leg := range closing {
		ent.trade.Legs = append(ent.trade.Legs, leg)
		ids = append(ids, leg.ID)
		qtyClosed += leg.AbsQuantity()
		delete(b.pool, leg.ID)
	}
	for id, take := range plan.consumed {
		ent.openQty[id] -= take
	}
	ent.trade.RealizedPL = ent.trade.RealizedPL.Add(plan.realized)
	ent.batches = append(ent.batches, batch{
		kind:     batchClose,
		seq:      seq,
		legIDs:   ids,
		consumed: plan.consumed,
		realized: plan.realized,
	})
	b.recomputeStatus(ent, closing)

	return &ClosedPortion{
		TradeNum:       ent.trade.TradeNum,
		QuantityClosed: qtyClosed,
		RealizedPL:     plan.realized,
		Status:         ent.trade.Status,
		CloseDate:      ent.trade.CloseDate,
	}
}

// recomputeStatus derives the lifecycle state from remaining open
// quantity. Fully offset means closed, with the close date stamped from
// the last closing leg.
func (b *Book) recomputeStatus(ent *entry, closing []domain.Leg) {
	var remaining, original int64
	for id, qty := range ent.openQty {
		remaining += qty
		original += ent.origQty[id]
	}
	switch {
	case remaining == 0 && original > 0:
		ent.trade.Status = domain.StatusClosed
		closeDate := lastClosingDate(ent.trade.Legs)
		if len(closing) > 0 {
			if d := lastClosingDate(closing); d.After(closeDate) {
				closeDate = d
			}
		}
		ent.trade.CloseDate = &closeDate
	case remaining < original:
		ent.trade.Status = domain.StatusPartial
		ent.trade.CloseDate = nil
	default:
		ent.trade.Status = domain.StatusOpen
		ent.trade.CloseDate = nil
	}
}

// Uncommit reverses the most recent commit request of the trade,
// restoring its legs to the unassigned pool. A mixed request is reversed
// as a whole; partial leg removal is never offered.
func (b *Book) Uncommit(tradeNum string) ([]domain.Leg, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ent, ok := b.trades[tradeNum]
	if !ok || len(ent.batches) == 0 {
		return nil, fmt.Errorf("%w: trade %s", ErrNothingToUncommit, tradeNum)
	}

	// Pop every batch of the newest sequence, close half before open half
	// so consumed quantity is restored before its opening legs go away.
	seq := ent.batches[len(ent.batches)-1].seq
	var popped []batch
	for len(ent.batches) > 0 && ent.batches[len(ent.batches)-1].seq == seq {
		popped = append(popped, ent.batches[len(ent.batches)-1])
		ent.batches = ent.batches[:len(ent.batches)-1]
	}

	var restored []domain.Leg
	for _, bat := range popped {
		for _, id := range bat.legIDs {
			leg := legByID(ent.trade.Legs, id)
			restored = append(restored, leg)
			b.pool[id] = leg
		}
		ent.trade.Legs = removeLegs(ent.trade.Legs, bat.legIDs)

		switch bat.kind {
		case batchClose:
			for id, take := range bat.consumed {
				ent.openQty[id] += take
			}
			ent.trade.RealizedPL = ent.trade.RealizedPL.Sub(bat.realized)
		case batchOpen:
			for _, id := range bat.legIDs {
				delete(ent.openQty, id)
				delete(ent.origQty, id)
			}
		}
	}

	if len(ent.batches) == 0 {
		delete(b.trades, tradeNum)
	} else {
		b.recomputeStatus(ent, nil)
		ent.trade.Version++
	}

	b.logger.Info("batch uncommitted",
		slog.String("trade_num", tradeNum),
		slog.Int("restored", len(restored)))

	return restored, nil
}

// Trade returns a copy of the identified trade.
func (b *Book) Trade(tradeNum string) (domain.Trade, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ent, ok := b.trades[tradeNum]
	if !ok {
		return domain.Trade{}, false
	}
	return copyTrade(ent.trade), true
}

// Snapshot returns a point-in-time deep copy of every trade, sorted by
// trade number. Analytics read snapshots, never the live store.
func (b *Book) Snapshot() []domain.Trade {
	b.mu.Lock()
	defer b.mu.Unlock()

	trades := make([]domain.Trade, 0, len(b.trades))
	for _, ent := range b.trades {
		trades = append(trades, copyTrade(ent.trade))
	}
	sort.Slice(trades, func(i, j int) bool { return trades[i].TradeNum < trades[j].TradeNum })
	return trades
}

func (b *Book) isCommitted(legID string) bool {
	for _, ent := range b.trades {
		for _, leg := range ent.trade.Legs {
			if leg.ID == legID {
				return true
			}
		}
	}
	return false
}

// openFraction is the opening leg's signed cash flow attributable to the
// consumed quantity. Summed with the closing leg's signed amount this
// yields the realized P&L of the closed portion, fees included, since
// fees are already embedded in each amount.
func openFraction(ol domain.Leg, consumed, orig int64) decimal.Decimal {
	if orig == 0 {
		return decimal.Zero
	}
	return ol.Amount.Mul(decimal.NewFromInt(consumed)).Div(decimal.NewFromInt(orig))
}

// allocateProportionally spreads qty across open legs pro rata to their
// remaining quantity, assigning remainders in leg order so the total
// always matches exactly.
func allocateProportionally(openLegs []domain.Leg, remaining map[string]int64, qty int64) map[string]int64 {
	var total int64
	for _, ol := range openLegs {
		total += remaining[ol.ID]
	}
	allocs := make(map[string]int64)
	if total == 0 {
		return allocs
	}

	var assigned int64
	for _, ol := range openLegs {
		share := qty * remaining[ol.ID] / total
		if share > 0 {
			allocs[ol.ID] = share
			assigned += share
		}
	}
	// Distribute the rounding remainder to legs that still have room.
	for _, ol := range openLegs {
		if assigned == qty {
			break
		}
		if remaining[ol.ID]-allocs[ol.ID] > 0 {
			allocs[ol.ID]++
			assigned++
		}
	}
	return allocs
}

func legByID(legs []domain.Leg, id string) domain.Leg {
	for _, l := range legs {
		if l.ID == id {
			return l
		}
	}
	return domain.Leg{}
}

func removeLegs(legs []domain.Leg, ids []string) []domain.Leg {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	out := legs[:0]
	for _, l := range legs {
		if !drop[l.ID] {
			out = append(out, l)
		}
	}
	return out
}

func earliestDate(legs []domain.Leg) time.Time {
	earliest := legs[0].Date
	for _, l := range legs[1:] {
		if l.Date.Before(earliest) {
			earliest = l.Date
		}
	}
	return earliest
}

func lastClosingDate(legs []domain.Leg) time.Time {
	var last time.Time
	for _, l := range legs {
		if l.Action.IsClosing() && l.Date.After(last) {
			last = l.Date
		}
	}
	return last
}

func copyTrade(t domain.Trade) domain.Trade {
	out := t
	out.Legs = append([]domain.Leg(nil), t.Legs...)
	if t.CloseDate != nil {
		d := *t.CloseDate
		out.CloseDate = &d
	}
	return out
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
