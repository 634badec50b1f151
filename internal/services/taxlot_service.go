package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"tradeledger/internal/infrastructure"
	"tradeledger/internal/taxlot"
	"tradeledger/pkg/contracts/domain"
)

// TaxLotService handles purchase lots and stock sale matching.
type TaxLotService struct {
	store   *taxlot.Store
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewTaxLotService creates a new tax lot service
func NewTaxLotService(store *taxlot.Store, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *TaxLotService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaxLotService{
		store:   store,
		metrics: metrics,
		logger:  logger.With(slog.String("service", "taxlot")),
	}
}

// AddLot records an equity purchase as a new open lot.
func (s *TaxLotService) AddLot(ctx context.Context, symbol string, acquired time.Time, quantity int64, costPerShare decimal.Decimal) (domain.StockLot, error) {
	lot, err := s.store.AddLot(symbol, acquired, quantity, costPerShare)
	if err != nil {
		return domain.StockLot{}, err
	}

	if s.metrics != nil {
		s.metrics.LotsCreatedTotal.Add(ctx, 1)
	}

	s.logger.InfoContext(ctx, "lot created",
		slog.String("symbol", symbol),
		slog.Int64("quantity", quantity),
		slog.String("lot_id", lot.ID))

	return lot, nil
}

// Lots returns the symbol's lots, exhausted lots included.
func (s *TaxLotService) Lots(ctx context.Context, symbol string) []domain.StockLot {
	return s.store.Lots(symbol)
}

// Match previews a sale under all four matching methods without
// mutating any lot.
func (s *TaxLotService) Match(ctx context.Context, symbol string, saleQty int64, salePrice decimal.Decimal, saleDate time.Time) (*taxlot.Proposal, error) {
	prop, err := s.store.Propose(symbol, saleQty, salePrice, saleDate)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SaleMatchesTotal.Add(ctx, 1)
	}

	return prop, nil
}

// CommitSale matches and commits a sale using the chosen method.
func (s *TaxLotService) CommitSale(ctx context.Context, symbol string, saleQty int64, salePrice decimal.Decimal, saleDate time.Time, method domain.MatchMethod) (*domain.SaleMatch, error) {
	match, err := s.store.Commit(symbol, saleQty, salePrice, saleDate, method)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SaleCommitsTotal.Add(ctx, 1)
	}

	return match, nil
}
