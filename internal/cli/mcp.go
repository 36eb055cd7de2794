package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// maxToolOutput caps the stdout returned from one tool call.
const maxToolOutput = 1 << 20

// NewMCPServer exposes r as a run_pipeline tool.
func NewMCPServer(r *Runner, version string) *server.MCPServer {
	s := server.NewMCPServer("sluice", version, server.WithToolCapabilities(false))
	tool := mcp.NewTool("run_pipeline",
		mcp.WithDescription(fmt.Sprintf(
			"Run a process pipeline. args is the command line as words, with %q between stages, "+
				"%q/%q/%q for redirects and \"rb\" for Starlark stages.", OpPipe, OpStdin, OpStdout, OpAppend)),
		mcp.WithArray("args",
			mcp.Required(),
			mcp.Description("pipeline words, e.g. [\"ls\", \"¦\", \"wc\", \"-l\"]"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
	s.AddTool(tool, r.handleTool)
	return s
}

// ServeMCP serves r over stdio until the client disconnects.
func ServeMCP(r *Runner, version string) error {
	return server.ServeStdio(NewMCPServer(r, version))
}

func (r *Runner) handleTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := req.RequireStringSlice("args")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var stdout, stderr strings.Builder
	o := r.Run(args, nil, &limitWriter{w: &stdout, n: maxToolOutput}, &stderr)
	if o.Err != nil {
		return mcp.NewToolResultError(strings.TrimSpace(stderr.String())), nil
	}

	text := stdout.String()
	if o.ExitCode != 0 {
		text += fmt.Sprintf("\n[exit %d]\n%s", o.ExitCode, stderr.String())
		return mcp.NewToolResultError(text), nil
	}
	return mcp.NewToolResultText(text), nil
}

// limitWriter keeps the first n bytes and discards the rest, so stages
// never block on a full pipe.
type limitWriter struct {
	w io.Writer
	n int
}

func (l *limitWriter) Write(p []byte) (int, error) {
	if l.n > 0 {
		keep := min(len(p), l.n)
		if _, err := l.w.Write(p[:keep]); err != nil {
			return 0, err
		}
		l.n -= keep
	}
	return len(p), nil
}
