package services

import (
	"context"
	"log/slog"
	"time"

	"tradeledger/internal/analytics"
	"tradeledger/internal/tradebook"
)

// AnalyticsService computes realized performance summaries over the
// trade book.
type AnalyticsService struct {
	book   *tradebook.Book
	logger *slog.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(book *tradebook.Book, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsService{
		book:   book,
		logger: logger.With(slog.String("service", "analytics")),
	}
}

// Summary computes the full statistics bundle. The optional date range
// filters closed trades by close date.
func (s *AnalyticsService) Summary(ctx context.Context, from, to *time.Time) (analytics.Summary, error) {
	var f analytics.Filter
	if from != nil {
		f.From = *from
	}
	if to != nil {
		f.To = *to
	}

	trades := s.book.Snapshot()
	summary := analytics.Summarize(trades, f)

	s.logger.DebugContext(ctx, "summary computed",
		slog.Int("closed_trades", summary.ClosedTrades),
		slog.Int("open_trades", summary.OpenTrades))

	return summary, nil
}
