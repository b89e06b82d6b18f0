// Package logging provides structured logging utilities for dida365-mcp.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "oauth.exchange")
//	logger.Info("token exchanged",
//	    logging.Status("success"))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("token persisted",
//	    "token", logging.SanitizeToken(token))
//
// # Security Considerations
//
// Access tokens and client secrets are never logged directly.
package logging
