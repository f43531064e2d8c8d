package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jernst/mailsheets/internal/google"
)

// Client wraps the Gmail Users service for the authorized account.
type Client struct {
	svc *gmail.UsersService
}

// NewClient creates a Gmail client backed by the credential store.
func NewClient(ctx context.Context, store *google.Store) (*Client, error) {
	httpClient, err := store.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain Google credentials: %w", err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{svc: svc.Users}, nil
}

// Message is an outgoing HTML email.
type Message struct {
	To      string
	Subject string
	// Body is interpreted as HTML.
	Body string
}

// encodeRFC2047 encodes a header value when it contains non-ASCII characters,
// for example umlauts in a subject line.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

// buildRawMessage assembles the RFC 2822 message and encodes it the way the
// Gmail API expects raw messages: base64url without padding stripped.
func buildRawMessage(msg Message) string {
	var b strings.Builder
	b.WriteString("To: ")
	b.WriteString(msg.To)
	b.WriteString("\r\n")
	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(msg.Subject))
	b.WriteString("\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

// Send sends msg from the authorized account and returns the Gmail message ID.
func (c *Client) Send(ctx context.Context, msg Message) (string, error) {
	sent, err := c.svc.Messages.Send("me", &gmail.Message{
		Raw: buildRawMessage(msg),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return sent.Id, nil
}
