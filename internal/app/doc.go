// Package app wires configuration, logging, observability, services and the
// HTTP transport into a runnable application. It owns the dependency graph:
// construction order is config, logger, OpenTelemetry, domain stores,
// services, handlers, router, server.
package app
