// Package taxlot matches equity sales against open purchase lots.
//
// The canonical store keeps each symbol's lots in acquisition order, which
// is also the FIFO consumption order. Alternative orderings (LIFO, HIFO,
// MinTax) are computed over copies; the canonical slice is never
// reordered. Propose is non-mutating and recomputed per query; Commit
// re-runs the chosen method under the lock and decrements remaining
// quantities all-or-nothing.
package taxlot

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradeledger/pkg/contracts/domain"
)

// ErrInsufficientLots indicates the sale quantity exceeds the remaining
// quantity across all of the symbol's lots. Nothing is mutated.
var ErrInsufficientLots = errors.New("insufficient lot quantity")

// longTermDays is the minimum holding period, in days, for long-term
// treatment. A holding period of exactly 365 days is short-term.
const longTermDays = 366

// TaxRates are the estimated marginal rates applied to short- and
// long-term gains when scoring methods.
type TaxRates struct {
	ShortTerm decimal.Decimal
	LongTerm  decimal.Decimal
}

// DefaultTaxRates mirror common US marginal brackets: 24% short-term,
// 15% long-term.
func DefaultTaxRates() TaxRates {
	return TaxRates{
		ShortTerm: decimal.NewFromFloat(0.24),
		LongTerm:  decimal.NewFromFloat(0.15),
	}
}

// Store is the in-memory lot ledger.
type Store struct {
	mu     sync.Mutex
	logger *slog.Logger
	rates  TaxRates
	lots   map[string][]*domain.StockLot // per symbol, acquisition order
}

// NewStore creates an empty lot store.
func NewStore(rates TaxRates, logger *slog.Logger) *Store {
	return &Store{
		logger: logger.With(slog.String("component", "taxlot")),
		rates:  rates,
		lots:   make(map[string][]*domain.StockLot),
	}
}

// AddLot records an equity purchase as a new open lot and returns it.
// Lots are kept ordered by acquisition date ascending.
func (s *Store) AddLot(symbol string, acquired time.Time, quantity int64, costPerShare decimal.Decimal) (domain.StockLot, error) {
	if quantity <= 0 {
		return domain.StockLot{}, fmt.Errorf("lot quantity must be positive, got %d", quantity)
	}

	lot := &domain.StockLot{
		ID:                uuid.New().String(),
		Symbol:            symbol,
		AcquiredDate:      acquired,
		OriginalQuantity:  quantity,
		RemainingQuantity: quantity,
		CostPerShare:      costPerShare,
		TotalCostBasis:    costPerShare.Mul(decimal.NewFromInt(quantity)),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lots := append(s.lots[symbol], lot)
	sort.SliceStable(lots, func(i, j int) bool {
		return lots[i].AcquiredDate.Before(lots[j].AcquiredDate)
	})
	s.lots[symbol] = lots

	return *lot, nil
}

// Lots returns a copy of the symbol's lots, exhausted lots included, for
// audit.
func (s *Store) Lots(symbol string) []domain.StockLot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.StockLot, 0, len(s.lots[symbol]))
	for _, lot := range s.lots[symbol] {
		out = append(out, *lot)
	}
	return out
}

// Proposal holds the four independent sale matches plus the recommended
// method (lowest estimated tax, ties broken toward FIFO).
type Proposal struct {
	FIFO       domain.SaleMatch   `json:"fifo"`
	LIFO       domain.SaleMatch   `json:"lifo"`
	HIFO       domain.SaleMatch   `json:"hifo"`
	MinTax     domain.SaleMatch   `json:"minTax"`
	BestMethod domain.MatchMethod `json:"bestMethod"`
}

// Match returns the scenario for the given method.
func (p *Proposal) Match(method domain.MatchMethod) domain.SaleMatch {
	switch method {
	case domain.MethodLIFO:
		return p.LIFO
	case domain.MethodHIFO:
		return p.HIFO
	case domain.MethodMinTax:
		return p.MinTax
	default:
		return p.FIFO
	}
}

// Propose computes all four sale matches without mutating any lot.
func (s *Store) Propose(symbol string, saleQty int64, salePrice decimal.Decimal, saleDate time.Time) (*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.propose(symbol, saleQty, salePrice, saleDate)
}

func (s *Store) propose(symbol string, saleQty int64, salePrice decimal.Decimal, saleDate time.Time) (*Proposal, error) {
	if saleQty <= 0 {
		return nil, fmt.Errorf("sale quantity must be positive, got %d", saleQty)
	}

	open := s.openLots(symbol)
	var available int64
	for _, lot := range open {
		available += lot.RemainingQuantity
	}
	if available < saleQty {
		return nil, fmt.Errorf("%w: %s has %d remaining, sale needs %d",
			ErrInsufficientLots, symbol, available, saleQty)
	}

	prop := &Proposal{
		FIFO:   s.matchOrdered(orderFIFO(open), domain.MethodFIFO, saleQty, salePrice, saleDate),
		LIFO:   s.matchOrdered(orderLIFO(open), domain.MethodLIFO, saleQty, salePrice, saleDate),
		HIFO:   s.matchOrdered(orderHIFO(open), domain.MethodHIFO, saleQty, salePrice, saleDate),
		MinTax: s.matchOrdered(s.orderMinTax(open, salePrice, saleDate), domain.MethodMinTax, saleQty, salePrice, saleDate),
	}
	prop.BestMethod = bestMethod(prop)
	return prop, nil
}

// Commit re-runs the proposal for the chosen method and atomically
// decrements the consumed lots. Insufficient quantity fails before any
// mutation.
func (s *Store) Commit(symbol string, saleQty int64, salePrice decimal.Decimal, saleDate time.Time, method domain.MatchMethod) (*domain.SaleMatch, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("unrecognized matching method %q", method)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prop, err := s.propose(symbol, saleQty, salePrice, saleDate)
	if err != nil {
		return nil, err
	}
	match := prop.Match(method)

	byID := make(map[string]*domain.StockLot, len(s.lots[symbol]))
	for _, lot := range s.lots[symbol] {
		byID[lot.ID] = lot
	}
	for _, c := range match.Consumptions {
		byID[c.LotID].RemainingQuantity -= c.QuantityConsumed
	}

	s.logger.Info("sale committed",
		slog.String("symbol", symbol),
		slog.Int64("quantity", saleQty),
		slog.String("method", string(method)),
		slog.String("gain_loss", match.TotalGainLoss.String()))

	return &match, nil
}

func (s *Store) openLots(symbol string) []*domain.StockLot {
	var open []*domain.StockLot
	for _, lot := range s.lots[symbol] {
		if lot.RemainingQuantity > 0 {
			open = append(open, lot)
		}
	}
	return open
}

// matchOrdered consumes lots in the given order until the sale quantity
// is covered.
func (s *Store) matchOrdered(ordered []*domain.StockLot, method domain.MatchMethod, saleQty int64, salePrice decimal.Decimal, saleDate time.Time) domain.SaleMatch {
	match := domain.SaleMatch{
		Method:        method,
		TotalGainLoss: decimal.Zero,
		ShortTermGain: decimal.Zero,
		LongTermGain:  decimal.Zero,
		EstimatedTax:  decimal.Zero,
	}

	left := saleQty
	for _, lot := range ordered {
		if left == 0 {
			break
		}
		take := lot.RemainingQuantity
		if take > left {
			take = left
		}
		qty := decimal.NewFromInt(take)
		basis := lot.CostPerShare.Mul(qty)
		gain := salePrice.Mul(qty).Sub(basis)
		term := holdingTerm(lot.AcquiredDate, saleDate)

		match.Consumptions = append(match.Consumptions, domain.LotConsumption{
			LotID:             lot.ID,
			QuantityConsumed:  take,
			CostBasisConsumed: basis,
			GainLoss:          gain,
			Term:              term,
		})
		match.TotalGainLoss = match.TotalGainLoss.Add(gain)
		if term == domain.TermLong {
			match.LongTermGain = match.LongTermGain.Add(gain)
			match.EstimatedTax = match.EstimatedTax.Add(gain.Mul(s.rates.LongTerm))
		} else {
			match.ShortTermGain = match.ShortTermGain.Add(gain)
			match.EstimatedTax = match.EstimatedTax.Add(gain.Mul(s.rates.ShortTerm))
		}
		left -= take
	}
	return match
}

func orderFIFO(open []*domain.StockLot) []*domain.StockLot {
	return append([]*domain.StockLot(nil), open...)
}

func orderLIFO(open []*domain.StockLot) []*domain.StockLot {
	out := orderFIFO(open)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// orderHIFO sorts by cost per share descending, ties broken by earliest
// acquisition.
func orderHIFO(open []*domain.StockLot) []*domain.StockLot {
	out := orderFIFO(open)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CostPerShare.Equal(out[j].CostPerShare) {
			return out[i].CostPerShare.GreaterThan(out[j].CostPerShare)
		}
		return out[i].AcquiredDate.Before(out[j].AcquiredDate)
	})
	return out
}

// orderMinTax is the documented greedy: long-term losses first, then
// short-term losses, then long-term gains, then short-term gains; within
// a class, lower per-share tax first. It is a heuristic, not an
// exhaustive optimum.
func (s *Store) orderMinTax(open []*domain.StockLot, salePrice decimal.Decimal, saleDate time.Time) []*domain.StockLot {
	rank := func(lot *domain.StockLot) int {
		gain := salePrice.Sub(lot.CostPerShare)
		long := holdingTerm(lot.AcquiredDate, saleDate) == domain.TermLong
		switch {
		case gain.IsNegative() && long:
			return 0
		case gain.IsNegative():
			return 1
		case long:
			return 2
		default:
			return 3
		}
	}
	perShareTax := func(lot *domain.StockLot) decimal.Decimal {
		gain := salePrice.Sub(lot.CostPerShare)
		if holdingTerm(lot.AcquiredDate, saleDate) == domain.TermLong {
			return gain.Mul(s.rates.LongTerm)
		}
		return gain.Mul(s.rates.ShortTerm)
	}

	out := orderFIFO(open)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i]), rank(out[j])
		if ri != rj {
			return ri < rj
		}
		ti, tj := perShareTax(out[i]), perShareTax(out[j])
		if !ti.Equal(tj) {
			return ti.LessThan(tj)
		}
		return out[i].AcquiredDate.Before(out[j].AcquiredDate)
	})
	return out
}

// bestMethod picks the lowest estimated tax; iteration order makes FIFO
// win exact ties deterministically.
func bestMethod(p *Proposal) domain.MatchMethod {
	best := domain.MethodFIFO
	bestTax := p.FIFO.EstimatedTax
	for _, candidate := range []struct {
		method domain.MatchMethod
		tax    decimal.Decimal
	}{
		{domain.MethodLIFO, p.LIFO.EstimatedTax},
		{domain.MethodHIFO, p.HIFO.EstimatedTax},
		{domain.MethodMinTax, p.MinTax.EstimatedTax},
	} {
		if candidate.tax.LessThan(bestTax) {
			best = candidate.method
			bestTax = candidate.tax
		}
	}
	return best
}

// holdingTerm classifies the holding period: exactly 365 days is
// short-term, 366 or more is long-term.
func holdingTerm(acquired, sale time.Time) domain.Term {
	days := int(sale.Sub(acquired).Hours() / 24)
	if days >= longTermDays {
		return domain.TermLong
	}
	return domain.TermShort
}
