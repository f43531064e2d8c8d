// Package logging provides structured logging helpers built on log/slog.
//
// It defines the canonical attribute keys used across the codebase, small
// constructors for common attributes, and sanitizers for sensitive values
// (OAuth tokens, email addresses) so that log output never leaks credentials
// or PII by accident.
package logging
