// Package logging provides structured logging for bleflow.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the service.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("flow finished", "flow_id", id, "reason", reason)
//
// Never log secrets, tokens or password hashes.
package logging
