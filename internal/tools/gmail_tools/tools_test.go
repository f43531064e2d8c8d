package gmail_tools

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/jernst/mailsheets/internal/contract"
	"github.com/jernst/mailsheets/internal/gmail"
)

type stubSender struct {
	calls     int
	lastMsg   gmail.Message
	messageID string
	err       error
}

func (s *stubSender) Send(ctx context.Context, msg gmail.Message) (string, error) {
	s.calls++
	s.lastMsg = msg
	return s.messageID, s.err
}

func available(sender EmailSender) func(ctx context.Context) (EmailSender, *contract.Error) {
	return func(ctx context.Context) (EmailSender, *contract.Error) {
		return sender, nil
	}
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = "send_email"
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestSendEmailSuccess(t *testing.T) {
	sender := &stubSender{messageID: "msg-123"}
	handler := sendEmailHandler(available(sender))

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"input": map[string]interface{}{
			"to":      "jane@example.com",
			"subject": "Quarterly report",
			"message": "<p>Attached below.</p>",
		},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "msg-123", gjson.Get(payload, "message_id").String())
	assert.False(t, gjson.Get(payload, "error_type").Exists())

	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, "jane@example.com", sender.lastMsg.To)
	assert.Equal(t, "Quarterly report", sender.lastMsg.Subject)
	assert.Equal(t, "<p>Attached below.</p>", sender.lastMsg.Body)
}

func TestSendEmailValidationRejectsBeforeSending(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]interface{}
	}{
		{
			name:  "missing to",
			input: map[string]interface{}{"subject": "hi", "message": "body"},
		},
		{
			name:  "empty subject",
			input: map[string]interface{}{"to": "a@b.com", "subject": "", "message": "body"},
		},
		{
			name:  "missing message",
			input: map[string]interface{}{"to": "a@b.com", "subject": "hi"},
		},
		{
			name:  "unknown field",
			input: map[string]interface{}{"to": "a@b.com", "subject": "hi", "message": "body", "cc": "x@y.com"},
		},
		{
			name:  "wrong type",
			input: map[string]interface{}{"to": 42, "subject": "hi", "message": "body"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sender := &stubSender{messageID: "msg-123"}
			handler := sendEmailHandler(available(sender))

			result, err := handler(context.Background(), callRequest(map[string]interface{}{
				"input": tc.input,
			}))
			require.NoError(t, err)

			payload := resultText(t, result)
			assert.Equal(t, "ValidationError", gjson.Get(payload, "error_type").String())
			assert.Equal(t, 0, sender.calls, "validation failures must not reach the service")
		})
	}
}

func TestSendEmailMissingInputObject(t *testing.T) {
	sender := &stubSender{}
	handler := sendEmailHandler(available(sender))

	result, err := handler(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "ValidationError", gjson.Get(payload, "error_type").String())
	assert.Equal(t, 0, sender.calls)
}

func TestSendEmailServiceUnavailable(t *testing.T) {
	handler := sendEmailHandler(func(ctx context.Context) (EmailSender, *contract.Error) {
		return nil, contract.ServiceUnavailable("Gmail")
	})

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"input": map[string]interface{}{
			"to":      "jane@example.com",
			"subject": "hi",
			"message": "body",
		},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "ServiceError", gjson.Get(payload, "error_type").String())
	assert.False(t, gjson.Get(payload, "details.service_available").Bool())
}

func TestSendEmailApiFailure(t *testing.T) {
	sender := &stubSender{err: errors.New("rate limited")}
	handler := sendEmailHandler(available(sender))

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"input": map[string]interface{}{
			"to":      "jane@example.com",
			"subject": "Quarterly report",
			"message": "body",
		},
	}))
	require.NoError(t, err)

	payload := resultText(t, result)
	assert.Equal(t, "EmailError", gjson.Get(payload, "error_type").String())
	assert.Contains(t, gjson.Get(payload, "message").String(), "rate limited")
	assert.True(t, gjson.Get(payload, "details.service_available").Bool())
	assert.Equal(t, "jane@example.com", gjson.Get(payload, "details.to").String())
	assert.Equal(t, "Quarterly report", gjson.Get(payload, "details.subject").String())
}
