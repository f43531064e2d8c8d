package instrumentation

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newCaptureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func TestToolInvocation_Complete(t *testing.T) {
	ti := NewToolInvocation("send_email")
	if ti.Tool != "send_email" {
		t.Errorf("expected tool send_email, got %s", ti.Tool)
	}

	time.Sleep(time.Millisecond)
	ti.CompleteSuccess()

	if !ti.Success {
		t.Error("expected invocation to be marked successful")
	}
	if ti.Duration <= 0 {
		t.Error("expected a positive duration")
	}
	if ti.Status() != StatusSuccess {
		t.Errorf("expected status success, got %s", ti.Status())
	}
}

func TestToolInvocation_CompleteWithError(t *testing.T) {
	ti := NewToolInvocation("share_spreadsheet").
		CompleteWithError(errors.New("permission denied"))

	if ti.Success {
		t.Error("expected invocation to be marked failed")
	}
	if ti.Error != "permission denied" {
		t.Errorf("expected error message, got %q", ti.Error)
	}
	if ti.Status() != StatusError {
		t.Errorf("expected status error, got %s", ti.Status())
	}
}

func TestAuditLogger_AnonymizesRecipientByDefault(t *testing.T) {
	logger, buf := newCaptureLogger()
	audit := NewAuditLogger(logger)

	ti := NewToolInvocation("send_email").
		WithRecipient("jane@example.com").
		WithService(ServiceGmail, OperationSend).
		CompleteSuccess()
	audit.LogToolInvocation(ti)

	output := buf.String()
	if strings.Contains(output, "jane@example.com") {
		t.Error("full recipient address must not appear without IncludePII")
	}
	if !strings.Contains(output, "example.com") {
		t.Error("expected recipient domain in log output")
	}
	if !strings.Contains(output, "tool_executed") {
		t.Error("expected tool_executed message for successful invocation")
	}
}

func TestAuditLogger_IncludesPIIWhenConfigured(t *testing.T) {
	logger, buf := newCaptureLogger()
	audit := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{
		Enabled:    true,
		IncludePII: true,
	})

	ti := NewToolInvocation("share_spreadsheet").
		WithRecipient("jane@example.com").
		WithService(ServiceDrive, OperationShare).
		WithResource("spreadsheet-123").
		CompleteWithError(errors.New("not found"))
	audit.LogToolInvocation(ti)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["recipient"] != "jane@example.com" {
		t.Errorf("expected full recipient with IncludePII, got %v", entry["recipient"])
	}
	if entry["resource_id"] != "spreadsheet-123" {
		t.Errorf("expected resource_id, got %v", entry["resource_id"])
	}
	if entry["msg"] != "tool_failed" {
		t.Errorf("expected tool_failed message, got %v", entry["msg"])
	}
}

func TestAuditLogger_DisabledLogsNothing(t *testing.T) {
	logger, buf := newCaptureLogger()
	audit := NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: false})

	audit.LogToolInvocation(NewToolInvocation("send_email").CompleteSuccess())

	if buf.Len() != 0 {
		t.Errorf("expected no output when disabled, got %q", buf.String())
	}
}
