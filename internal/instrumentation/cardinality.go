package instrumentation

import "strings"

// Cardinality management helpers for metrics. Always use these when recording
// metrics with user identifiers; full email addresses explode label
// cardinality in Prometheus.

// ExtractUserDomain extracts the domain part from an email address.
//
// Example:
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
//	ExtractUserDomain("")                  // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// Common operation types for Google API metrics.
const (
	OperationGet    = "get"
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationSend   = "send"
	OperationShare  = "share"
)
