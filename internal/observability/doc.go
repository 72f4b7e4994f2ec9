// Package observability provides logging and metrics support for the paper
// digest service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithPaperContext(logger, "2309.08600", "v2")
//	logger.Info().Msg("paper fetched")
//
// # Metrics
//
// Metrics are registered with the default Prometheus registry under the given
// namespace. Each process creates a single Metrics value:
//
//	m := observability.NewMetrics("paper_digest")
//	m.RecordRunStarted("detailed")
//	m.RecordStageFailed("fetch")
//
// A nil *Metrics is valid and records nothing, which keeps tests and the CLI
// free of registration concerns.
package observability
