// Package logging provides structured logging for SchoolHub Core.
//
// It wraps log/slog so every component logs key/value pairs with the same
// default fields (service, version).
//
// Configuration lives in the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("account created", "role", "student", "account_id", 7)
//
// Never log passwords, tokens or reset links.
package logging
