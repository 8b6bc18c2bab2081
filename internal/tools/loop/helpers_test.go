package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/loopdash/internal/policy"
	"github.com/jaakkos/loopdash/internal/status"
)

// testServer creates an MCPServer over a temp repo root with the loop tools registered.
func testServer(t *testing.T, opts ...RegisterOption) (*server.MCPServer, string) {
	t.Helper()
	root := t.TempDir()
	cfg := policy.DefaultConfig()
	cfg.RepoRoot = root
	s := server.NewMCPServer("test", "1.0.0")
	Register(s, status.NewReader(policy.New(cfg)), log.New(io.Discard, "", 0), opts...)
	return s, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func rpc(t *testing.T, s *server.MCPServer, method string, params map[string]any) (json.RawMessage, error) {
	t.Helper()
	reqJSON, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	respBytes, err := json.Marshal(s.HandleMessage(context.Background(), reqJSON))
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("RPC error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// callTool calls a registered tool via the MCPServer's HandleMessage.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) (*mcp.CallToolResult, error) {
	t.Helper()
	raw, err := rpc(t, s, "tools/call", map[string]any{"name": name, "arguments": args})
	if err != nil {
		return nil, err
	}
	var result mcp.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return &result, nil
}

// resultText extracts the first text content from a CallToolResult.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("result is nil")
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content in result")
	return ""
}

type resourceContent struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
	Text     string `json:"text"`
}

// readResource reads a resource and returns its first content.
func readResource(t *testing.T, s *server.MCPServer, uri string) (resourceContent, error) {
	t.Helper()
	raw, err := rpc(t, s, "resources/read", map[string]any{"uri": uri})
	if err != nil {
		return resourceContent{}, err
	}
	var result struct {
		Contents []resourceContent `json:"contents"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal resource: %v", err)
	}
	if len(result.Contents) == 0 {
		t.Fatal("no resource contents")
	}
	return result.Contents[0], nil
}
