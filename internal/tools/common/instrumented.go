package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tidwall/gjson"

	"github.com/jernst/mailsheets/internal/instrumentation"
	"github.com/jernst/mailsheets/internal/server"
)

// resultText returns the text payload of the first text content item.
func resultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, content := range result.Content {
		if text, ok := content.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

// resultIsFailure reports whether the result carries a failure envelope.
// Failures are regular text results whose payload has an error_type field,
// so the protocol-level error flag alone is not enough.
func resultIsFailure(result *mcp.CallToolResult) bool {
	if result == nil {
		return false
	}
	if result.IsError {
		return true
	}
	return gjson.Get(resultText(result), "error_type").Exists()
}

// recipientFromArgs extracts the target email address from the tool input,
// when the tool has one.
func recipientFromArgs(args map[string]interface{}) string {
	input, ok := args["input"].(map[string]interface{})
	if !ok {
		return ""
	}
	for _, key := range []string{"to", "email"} {
		if v, ok := input[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// resourceFromArgs extracts the resource identifier from the tool input,
// when the tool targets one.
func resourceFromArgs(args map[string]interface{}) string {
	input, ok := args["input"].(map[string]interface{})
	if !ok {
		return ""
	}
	if v, ok := input["spreadsheet_id"].(string); ok {
		return v
	}
	return ""
}

// InstrumentedToolHandler wraps a tool handler with metrics and audit logging.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", "gmail", "send", sc, handler))
func InstrumentedToolHandler(
	toolName string,
	serviceName string,
	operation string,
	sc *server.ServerContext,
	handler func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error),
) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		metrics := sc.Metrics()
		auditLogger := sc.AuditLogger()

		if metrics == nil && auditLogger == nil {
			return handler(ctx, request)
		}

		start := time.Now()
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		defer span.End()

		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx).
			WithService(serviceName, operation)

		if recipient := recipientFromArgs(request.GetArguments()); recipient != "" {
			invocation.WithRecipient(recipient)
		}
		if resource := resourceFromArgs(request.GetArguments()); resource != "" {
			invocation.WithResource(resource)
		}

		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		if err != nil || resultIsFailure(result) {
			status = instrumentation.StatusError
			invocation.Complete(false, err)
			instrumentation.SetSpanError(span, err)
		} else {
			invocation.CompleteSuccess()
			instrumentation.SetSpanSuccess(span)
		}

		if metrics != nil {
			if domain := invocation.RecipientDomain(); domain != "" {
				metrics.RecordToolInvocationWithDomain(ctx, toolName, status, domain, duration)
			} else {
				metrics.RecordToolInvocation(ctx, toolName, status, duration)
			}
			metrics.RecordGoogleAPIOperation(ctx, serviceName, operation, status, duration)
		}

		if auditLogger != nil {
			auditLogger.LogToolInvocation(invocation)
		}

		return result, err
	}
}
