package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/tidwall/gjson"

	"github.com/jernst/mailsheets/internal/google"
	"github.com/jernst/mailsheets/internal/server"
)

func TestListenAddr(t *testing.T) {
	tests := []struct {
		host     string
		port     int
		expected string
	}{
		{"0.0.0.0", 8000, "0.0.0.0:8000"},
		{"127.0.0.1", 9999, "127.0.0.1:9999"},
		{"::1", 8000, "[::1]:8000"},
	}

	for _, tt := range tests {
		if got := listenAddr(tt.host, tt.port); got != tt.expected {
			t.Errorf("listenAddr(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.expected)
		}
	}
}

func TestValidTransport(t *testing.T) {
	for _, transport := range []string{"stdio", "sse"} {
		if !validTransport(transport) {
			t.Errorf("validTransport(%q) = false, want true", transport)
		}
	}
	for _, transport := range []string{"", "http", "streamable-http", "SSE"} {
		if validTransport(transport) {
			t.Errorf("validTransport(%q) = true, want false", transport)
		}
	}
}

func TestRunServeRejectsUnknownTransport(t *testing.T) {
	err := runServe(serveConfig{Transport: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected error for unknown transport")
	}
}

func TestRegisterAllTools(t *testing.T) {
	serverContext := server.NewServerContext(context.Background(), google.NewStore(google.Options{FetchOnly: true}))
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv := mcpserver.NewMCPServer("mailsheets", "test",
		mcpserver.WithToolCapabilities(true),
	)

	if err := registerAllTools(mcpSrv, serverContext); err != nil {
		t.Fatalf("registerAllTools failed: %v", err)
	}

	registered := make(map[string]bool)
	for _, serverTool := range mcpSrv.ListTools() {
		registered[serverTool.Tool.Name] = true
	}

	expected := []string{
		"send_email",
		"create_blank_spreadsheet",
		"write_data_to_spreadsheet",
		"share_spreadsheet",
		"get_spreadsheet_link",
	}
	for _, name := range expected {
		if !registered[name] {
			t.Errorf("tool %q not registered", name)
		}
	}
	if len(registered) != len(expected) {
		t.Errorf("registered %d tools, want %d: %v", len(registered), len(expected), registered)
	}
}

// TestConcurrentToolCallsGetOwnResponses drives two overlapping tool calls
// through the server and checks each caller receives the response for its
// own request. The handlers rendezvous so both calls are guaranteed to be
// in flight at the same time.
func TestConcurrentToolCallsGetOwnResponses(t *testing.T) {
	mcpSrv := mcpserver.NewMCPServer("mailsheets", "test",
		mcpserver.WithToolCapabilities(true),
	)

	var rendezvous sync.WaitGroup
	rendezvous.Add(2)

	for _, name := range []string{"echo_a", "echo_b"} {
		name := name
		tool := mcp.NewTool(name,
			mcp.WithDescription("test tool"),
		)
		mcpSrv.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rendezvous.Done()
			rendezvous.Wait()
			return mcp.NewToolResultText(fmt.Sprintf(`{"tool":%q}`, name)), nil
		})
	}

	type callResult struct {
		id   int
		tool string
	}
	results := make(chan callResult, 2)

	call := func(id int, toolName string) {
		request := fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"tools/call","params":{"name":%q,"arguments":{}}}`, id, toolName)
		response := mcpSrv.HandleMessage(context.Background(), json.RawMessage(request))

		raw, err := json.Marshal(response)
		if err != nil {
			t.Errorf("failed to marshal response: %v", err)
			results <- callResult{}
			return
		}
		payload := gjson.GetBytes(raw, "result.content.0.text").String()
		results <- callResult{
			id:   int(gjson.GetBytes(raw, "id").Int()),
			tool: gjson.Get(payload, "tool").String(),
		}
	}

	go call(1, "echo_a")
	go call(2, "echo_b")

	for i := 0; i < 2; i++ {
		result := <-results
		var wantTool string
		switch result.id {
		case 1:
			wantTool = "echo_a"
		case 2:
			wantTool = "echo_b"
		default:
			t.Fatalf("unexpected response id %d", result.id)
		}
		if result.tool != wantTool {
			t.Errorf("response for id %d carries payload of %q, want %q", result.id, result.tool, wantTool)
		}
	}
}
