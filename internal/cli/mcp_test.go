package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func callTool(t *testing.T, r *Runner, args any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Name = "run_pipeline"
	req.Params.Arguments = map[string]any{"args": args}
	res, err := r.handleTool(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content = %+v", res.Content)
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content %T is not text", res.Content[0])
	}
	return text.Text
}

func TestToolRunsPipeline(t *testing.T) {
	res := callTool(t, newRunner(t), []any{"printf", `x\ny\n`, "¦", "wc", "-l"})
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if got := strings.TrimSpace(resultText(t, res)); got != "2" {
		t.Errorf("output = %q", got)
	}
}

func TestToolReportsFailures(t *testing.T) {
	tests := []struct {
		name string
		args any
		want string
	}{
		{"missing args", nil, "args"},
		{"not strings", []any{1, 2}, "not a string"},
		{"parse error", []any{"ls", "¦"}, "empty segment"},
		{"guard", []any{"git", "reset", "--hard"}, "--allow"},
		{"exit code", []any{"sh", "-c", "echo no >&2; exit 4"}, "[exit 4]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, newRunner(t), tt.args)
			if !res.IsError {
				t.Fatal("expected tool error")
			}
			if text := resultText(t, res); !strings.Contains(text, tt.want) {
				t.Errorf("text = %q, want %q", text, tt.want)
			}
		})
	}
}

func TestLimitWriter(t *testing.T) {
	var b strings.Builder
	w := &limitWriter{w: &b, n: 5}
	for _, chunk := range []string{"abc", "defg", "hij"} {
		n, err := w.Write([]byte(chunk))
		if err != nil || n != len(chunk) {
			t.Fatalf("Write(%q) = %d, %v", chunk, n, err)
		}
	}
	if b.String() != "abcde" {
		t.Errorf("kept %q", b.String())
	}
}

func TestNewMCPServer(t *testing.T) {
	if s := NewMCPServer(newRunner(t), "test"); s == nil {
		t.Fatal("nil server")
	}
}
