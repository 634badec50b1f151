// Package services implements the business logic layer of the trade
// ledger. It provides a clean separation between HTTP handlers and the
// core engines, ensuring that business rules are centralized and
// testable.
//
// Services follow these architectural principles:
//
//	1. Context propagation for cancellation and tracing
//	2. Dependency injection for loose coupling
//	3. Domain-focused methods that encapsulate business rules
//
// The package provides these core services:
//
//	- TradeService: transaction ingestion and trade lifecycle commits
//	- TaxLotService: purchase lots and sale matching
//	- AnalyticsService: realized performance summaries
//	- HealthService: system health checks
//
// Services return domain sentinel errors that handlers transform into
// RFC 7807 responses.
package services
