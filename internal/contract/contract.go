package contract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jernst/mailsheets/internal/logging"
)

// HandlerFunc is the handler signature expected by the MCP server for a
// registered tool.
type HandlerFunc = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Validatable is implemented by typed tool inputs that carry required-field
// constraints beyond what JSON decoding enforces.
type Validatable interface {
	Validate() *Error
}

// Tool wraps a typed handler so that every invocation yields exactly one
// well-formed envelope. The raw payload is decoded and validated before the
// handler runs; any handler failure (returned Error or panic) is rendered
// into the error envelope. domainKind is the error kind used for faults the
// handler did not classify itself, such as panics.
//
// Failure envelopes are returned as ordinary text results, not via the MCP
// isError flag: the contract uses a single channel and callers inspect the
// embedded JSON shape.
func Tool[In any, Out any](name, domainKind string, fn func(ctx context.Context, in In) (Out, *Error)) HandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				cerr := Errorf(domainKind, "unexpected failure: %v", r)
				slog.Error("tool handler panicked", logging.Tool(name), logging.Err(cerr))
				result = ErrorResult(cerr)
				err = nil
			}
		}()

		var in In
		if cerr := DecodeInput(request, &in); cerr != nil {
			slog.Debug("tool input rejected", logging.Tool(name), logging.Err(cerr))
			return ErrorResult(cerr), nil
		}

		out, cerr := fn(ctx, in)
		if cerr != nil {
			slog.Warn("tool failed", logging.Tool(name), logging.Err(cerr))
			return ErrorResult(cerr), nil
		}

		payload, merr := json.Marshal(out)
		if merr != nil {
			cerr := Errorf(domainKind, "failed to encode result: %v", merr)
			return ErrorResult(cerr), nil
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

// DecodeInput extracts the "input" argument from the request and decodes it
// into v, rejecting unknown and mistyped fields. If v implements
// Validatable, its required-field checks run after decoding. A non-nil
// return is always a KindValidation error (or the Error returned by
// Validate), produced before any external call is attempted.
func DecodeInput(request mcp.CallToolRequest, v any) *Error {
	args := request.GetArguments()
	raw, ok := args["input"]
	if !ok || raw == nil {
		return ValidationError("input is required")
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return ValidationError(fmt.Sprintf("input is not a valid object: %v", err))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return ValidationError(fmt.Sprintf("invalid input: %v", err))
	}

	if val, ok := v.(Validatable); ok {
		if cerr := val.Validate(); cerr != nil {
			return cerr
		}
	}
	return nil
}

// ErrorResult renders an Error into the uniform response envelope.
func ErrorResult(e *Error) *mcp.CallToolResult {
	env := errorEnvelope{
		ErrorType: e.Kind,
		Message:   e.Message,
		Details:   e.Details,
	}
	if env.Details == nil {
		env.Details = map[string]any{}
	}

	payload, err := json.Marshal(env)
	if err != nil {
		// A detail value resisted serialization; drop the details rather
		// than fail the envelope contract.
		env.Details = map[string]any{}
		payload, _ = json.Marshal(env)
	}
	return mcp.NewToolResultText(string(payload))
}
