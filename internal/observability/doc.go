// Package observability provides structured logging, Prometheus metrics and
// OpenTelemetry tracing for the embedeval pipeline.
//
// Logging is built on log/slog with secret redaction. Metrics are registered on a
// dedicated registry and written as a Prometheus textfile when a batch command
// finishes. Tracing exports over OTLP/gRPC when an endpoint is configured and is a
// no-op otherwise.
package observability
