package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradeledger/internal/infrastructure"
	"tradeledger/internal/normalize"
	"tradeledger/internal/taxlot"
	"tradeledger/internal/tradebook"
	"tradeledger/pkg/contracts/domain"
)

// TradeService handles transaction ingestion and trade lifecycle commits.
// Normalized equity purchases are mirrored into the lot store so stock
// sales can be matched later.
type TradeService struct {
	book    *tradebook.Book
	lots    *taxlot.Store
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
}

// NewTradeService creates a new trade service
func NewTradeService(book *tradebook.Book, lots *taxlot.Store, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *TradeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TradeService{
		book:    book,
		lots:    lots,
		metrics: metrics,
		logger:  logger.With(slog.String("service", "trade")),
	}
}

// IngestResult reports the outcome of a normalization batch.
type IngestResult struct {
	Accepted int
	Skipped  []normalize.SkippedLeg
	PoolSize int
}

// Ingest normalizes raw broker transactions into the uncommitted leg
// pool. Records that cannot be normalized are reported, not fatal.
// Equity buys also create purchase lots.
func (s *TradeService) Ingest(ctx context.Context, raws []normalize.RawTransaction) (*IngestResult, error) {
	legs, skipped := normalize.NormalizeBatch(raws)

	rejected := s.book.AddToPool(legs...)
	for _, id := range rejected {
		skipped = append(skipped, normalize.SkippedLeg{ID: id, Reason: "duplicate or already committed id"})
	}

	accepted := 0
	rejectedSet := make(map[string]struct{}, len(rejected))
	for _, id := range rejected {
		rejectedSet[id] = struct{}{}
	}
	for _, leg := range legs {
		if _, ok := rejectedSet[leg.ID]; ok {
			continue
		}
		accepted++

		if !leg.IsOption && leg.Action == domain.ActionBuy {
			if _, err := s.lots.AddLot(leg.Underlying, leg.Date, leg.AbsQuantity(), leg.Price); err != nil {
				s.logger.WarnContext(ctx, "lot creation skipped",
					slog.String("leg_id", leg.ID),
					slog.String("error", err.Error()))
			} else if s.metrics != nil {
				s.metrics.LotsCreatedTotal.Add(ctx, 1)
			}
		}
	}

	if s.metrics != nil {
		s.metrics.LegsNormalizedTotal.Add(ctx, int64(accepted))
		s.metrics.LegsSkippedTotal.Add(ctx, int64(len(skipped)))
	}

	s.logger.InfoContext(ctx, "transactions ingested",
		slog.Int("accepted", accepted),
		slog.Int("skipped", len(skipped)),
		slog.Int("pool_size", s.book.PoolSize()))

	return &IngestResult{
		Accepted: accepted,
		Skipped:  skipped,
		PoolSize: s.book.PoolSize(),
	}, nil
}

// CommitLegsInput carries one commit request.
type CommitLegsInput struct {
	TransactionIDs []string
	TradeNum       string
	Strategy       string
	AccountCode    string
	SubAccount     string
}

// CommitLegs assigns pooled legs to a trade. An empty trade number
// allocates the next sequential one. An empty strategy defers to the
// classifier; an unrecognized one is rejected.
func (s *TradeService) CommitLegs(ctx context.Context, in CommitLegsInput) (string, *tradebook.CommitResult, error) {
	tradeNum := in.TradeNum
	if tradeNum == "" {
		tradeNum = s.book.NextTradeNum()
	}

	tag := domain.StrategyTag(in.Strategy)
	if in.Strategy != "" && !tag.Valid() {
		return "", nil, fmt.Errorf("unrecognized strategy %q", in.Strategy)
	}

	start := time.Now()
	result, err := s.book.Commit(tradeNum, tag, in.TransactionIDs, in.AccountCode, in.SubAccount)
	infrastructure.RecordCommitMetrics(ctx, s.metrics, tradeNum, time.Since(start), err == nil)
	if err != nil {
		return "", nil, err
	}

	if s.metrics != nil && result.Trade != nil && result.Trade.Status == domain.StatusClosed {
		s.metrics.TradesClosedTotal.Add(ctx, 1)
	}

	return tradeNum, result, nil
}

// Uncommit rolls back the trade's most recent commit request and returns
// the restored legs.
func (s *TradeService) Uncommit(ctx context.Context, tradeNum string) ([]domain.Leg, bool, error) {
	restored, err := s.book.Uncommit(tradeNum)
	if err != nil {
		return nil, false, err
	}

	if s.metrics != nil {
		s.metrics.UncommitsTotal.Add(ctx, 1)
	}

	_, stillExists := s.book.Trade(tradeNum)

	s.logger.InfoContext(ctx, "batch uncommitted",
		slog.String("trade_num", tradeNum),
		slog.Int("restored", len(restored)),
		slog.Bool("trade_removed", !stillExists))

	return restored, !stillExists, nil
}

// ListTrades returns all trades, optionally filtered by status and
// underlying.
func (s *TradeService) ListTrades(ctx context.Context, status, underlying string) ([]domain.Trade, error) {
	trades := s.book.Snapshot()

	if status == "" && underlying == "" {
		return trades, nil
	}

	filtered := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if status != "" && t.Status != domain.TradeStatus(status) {
			continue
		}
		if underlying != "" && t.Underlying != underlying {
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered, nil
}

// Trade returns one trade by number.
func (s *TradeService) Trade(ctx context.Context, tradeNum string) (domain.Trade, bool) {
	return s.book.Trade(tradeNum)
}

// PoolLegs returns the uncommitted leg pool for inspection.
func (s *TradeService) PoolLegs(ctx context.Context) []domain.Leg {
	return s.book.PoolLegs()
}
