package gmail

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRaw(t *testing.T, raw string) string {
	t.Helper()
	data, err := base64.URLEncoding.DecodeString(raw)
	require.NoError(t, err)
	return string(data)
}

func TestBuildRawMessage(t *testing.T) {
	raw := buildRawMessage(Message{
		To:      "alice@example.com",
		Subject: "Quarterly report",
		Body:    "<p>Numbers attached.</p>",
	})

	decoded := decodeRaw(t, raw)
	headers, body, found := strings.Cut(decoded, "\r\n\r\n")
	require.True(t, found, "message must separate headers from body")

	assert.Contains(t, headers, "To: alice@example.com")
	assert.Contains(t, headers, "Subject: Quarterly report")
	assert.Contains(t, headers, "Content-Type: text/html; charset=\"UTF-8\"")
	assert.Contains(t, headers, "MIME-Version: 1.0")
	assert.Equal(t, "<p>Numbers attached.</p>", body)
}

func TestBuildRawMessageEncodesNonASCIISubject(t *testing.T) {
	raw := buildRawMessage(Message{
		To:      "bob@example.com",
		Subject: "Grüße aus München",
		Body:    "<p>Hallo</p>",
	})

	decoded := decodeRaw(t, raw)
	assert.NotContains(t, decoded, "Subject: Grüße", "non-ASCII subject must be RFC 2047 encoded")
	assert.Contains(t, decoded, "Subject: =?UTF-8?")
}

func TestEncodeRFC2047(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		encoded bool
	}{
		{"plain ascii", "Hello world", false},
		{"empty", "", false},
		{"umlauts", "Grüße", true},
		{"emoji", "Launch 🚀", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encodeRFC2047(tt.in)
			if tt.encoded {
				assert.True(t, strings.HasPrefix(got, "=?UTF-8?"), "got %q", got)
			} else {
				assert.Equal(t, tt.in, got)
			}
		})
	}
}
