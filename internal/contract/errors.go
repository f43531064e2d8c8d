package contract

import "fmt"

// Error kinds form a closed taxonomy surfaced in the error envelope's
// error_type field.
const (
	// KindAuth indicates credentials are absent or expired and not
	// recoverable under the current operating mode.
	KindAuth = "AuthError"

	// KindService indicates the backing service handle was never
	// initialized. Recoverable: the caller may retry once the service
	// becomes available.
	KindService = "ServiceError"

	// KindValidation indicates the call payload failed schema validation.
	// A caller error, never retried automatically.
	KindValidation = "ValidationError"

	// Domain kinds: the external API call itself failed after a valid,
	// validated request.
	KindEmail       = "EmailError"
	KindSpreadsheet = "SpreadsheetError"
	KindSharing     = "SharingError"
	KindLink        = "LinkError"
)

// Error is the structured failure produced by tool handlers. It carries an
// error kind from the closed taxonomy, a human-readable message, and a
// free-form detail mapping with enough context to diagnose the failure
// without re-running the call.
type Error struct {
	Kind    string
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError creates an Error with an empty detail mapping.
func NewError(kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Details: make(map[string]any),
	}
}

// Errorf creates an Error with a formatted message.
func Errorf(kind, format string, args ...any) *Error {
	return NewError(kind, fmt.Sprintf(format, args...))
}

// WithDetail adds a key/value pair to the detail mapping and returns the
// Error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// ValidationError creates a KindValidation error for a bad input payload.
func ValidationError(message string) *Error {
	return NewError(KindValidation, message)
}

// ServiceUnavailable creates the canonical KindService error for a tool
// whose backing service handle is absent. The detail mapping always carries
// service_available=false so callers can distinguish this from an external
// failure of an initialized service.
func ServiceUnavailable(service string) *Error {
	return NewError(KindService, fmt.Sprintf("%s service not initialized", service)).
		WithDetail("service_available", false)
}

// errorEnvelope is the wire form of Error, embedded as the text content of
// a failed tool response.
type errorEnvelope struct {
	ErrorType string         `json:"error_type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details"`
}
