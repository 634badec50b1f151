// Package http implements HTTP request handlers for the trade ledger
// service. It provides a thin layer between HTTP transport and business
// logic, keeping handlers focused solely on HTTP concerns.
//
// Handlers in this package follow these principles:
//
//	1. Thin handlers - minimal logic, delegate to services
//	2. HTTP-only concerns - request parsing, response formatting
//	3. Error transformation - convert service errors to HTTP responses
//	4. Consistent patterns - standardized request/response handling
//
// A typical request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Engine
//
// Request bodies are validated with go-playground/validator struct tags
// before the service layer sees them. Domain sentinel errors come back
// up and are rendered as RFC 7807 problem details or as the endpoint's
// documented success/error envelope.
package http
