package gmail_tools

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jernst/mailsheets/internal/contract"
	"github.com/jernst/mailsheets/internal/gmail"
	"github.com/jernst/mailsheets/internal/google"
	"github.com/jernst/mailsheets/internal/instrumentation"
	"github.com/jernst/mailsheets/internal/server"
	"github.com/jernst/mailsheets/internal/tools/common"
)

// EmailSender sends a single email message and returns the provider's
// message ID.
type EmailSender interface {
	Send(ctx context.Context, msg gmail.Message) (string, error)
}

// SendEmailInput is the payload of the send_email tool.
type SendEmailInput struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Validate implements contract.Validatable.
func (in *SendEmailInput) Validate() *contract.Error {
	if in.To == "" {
		return contract.ValidationError("to is required")
	}
	if in.Subject == "" {
		return contract.ValidationError("subject is required")
	}
	if in.Message == "" {
		return contract.ValidationError("message is required")
	}
	return nil
}

// SendEmailOutput is the success payload of the send_email tool.
type SendEmailOutput struct {
	MessageID string `json:"message_id"`
}

// sendEmailHandler builds the typed send_email handler. The resolver yields
// the email service handle or the contract error to report when the handle
// cannot be built; tests substitute a stub resolver.
func sendEmailHandler(resolve func(ctx context.Context) (EmailSender, *contract.Error)) contract.HandlerFunc {
	return contract.Tool("send_email", contract.KindEmail, func(ctx context.Context, in SendEmailInput) (SendEmailOutput, *contract.Error) {
		sender, cerr := resolve(ctx)
		if cerr != nil {
			return SendEmailOutput{}, cerr
		}

		id, err := sender.Send(ctx, gmail.Message{
			To:      in.To,
			Subject: in.Subject,
			Body:    in.Message,
		})
		if err != nil {
			return SendEmailOutput{}, contract.Errorf(contract.KindEmail, "failed to send email: %v", err).
				WithDetail("service_available", true).
				WithDetail("to", in.To).
				WithDetail("subject", in.Subject)
		}
		return SendEmailOutput{MessageID: id}, nil
	})
}

// resolveSender obtains the Gmail service handle from the server context.
func resolveSender(sc *server.ServerContext) func(ctx context.Context) (EmailSender, *contract.Error) {
	return func(ctx context.Context) (EmailSender, *contract.Error) {
		client, err := sc.GmailClient()
		if err != nil {
			if errors.Is(err, google.ErrReauthRequired) {
				return nil, contract.Errorf(contract.KindAuth, "Gmail authorization required: %v", err).
					WithDetail("service_available", false)
			}
			return nil, contract.ServiceUnavailable("Gmail")
		}
		return client, nil
	}
}

// RegisterEmailTools registers the email tools with the MCP server.
func RegisterEmailTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	sendEmailTool := mcp.NewTool("send_email",
		mcp.WithDescription("Send an email via Gmail. The message body is sent as HTML."),
		mcp.WithObject("input",
			mcp.Required(),
			mcp.Description("Email to send"),
			mcp.Properties(map[string]any{
				"to": map[string]any{
					"type":        "string",
					"description": "Recipient email address",
				},
				"subject": map[string]any{
					"type":        "string",
					"description": "Email subject line",
				},
				"message": map[string]any{
					"type":        "string",
					"description": "Email body (HTML)",
				},
			}),
		),
	)

	s.AddTool(sendEmailTool, common.InstrumentedToolHandler(
		"send_email",
		instrumentation.ServiceGmail,
		instrumentation.OperationSend,
		sc,
		sendEmailHandler(resolveSender(sc)),
	))

	return nil
}
