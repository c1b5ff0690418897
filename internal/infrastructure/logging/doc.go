// Package logging provides structured logging for the Insteon bridge.
//
// It wraps log/slog with JSON (default) or text output, level filtering and
// the default fields service and version:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("modem connected", "port", cfg.Modem.Port)
//
// Never log MQTT credentials.
package logging
