package cli

import (
	"fmt"
	"io"
)

// PrintUsage writes general usage to w.
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "sluice: compose and run process pipelines")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "usage:")
	fmt.Fprintf(w, "  sluice [--allow] [--verbose] <cmd> [args] %s ...   run a pipeline\n", OpPipe)
	fmt.Fprintln(w, "  sluice --audit verify                 check the audit log's hash chain")
	fmt.Fprintln(w, "  sluice --audit tail [n]               show the last n audit entries")
	fmt.Fprintln(w, "  sluice --mcp                          serve run_pipeline over MCP on stdio")
	fmt.Fprintln(w, "  sluice --help                         show this help")
	fmt.Fprintln(w, "  sluice --version                      show version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "operators:")
	fmt.Fprintf(w, "  %s   pipe stdout to the next stage's stdin\n", OpPipe)
	fmt.Fprintf(w, "  %s   read the first stage's stdin from a file\n", OpStdin)
	fmt.Fprintf(w, "  %s   write output to a file\n", OpStdout)
	fmt.Fprintf(w, "  %s  append output to a file\n", OpAppend)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "in-process stages:")
	fmt.Fprintln(w, "  rb [--pre SRC] [--post SRC] [MAP-SRC]")
	fmt.Fprintln(w, "      Starlark programs. print() emits a line. The map program runs once")
	fmt.Fprintln(w, "      per input line with the line bound to `line`; env(name) and cwd()")
	fmt.Fprintln(w, "      read the stage's context.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "--allow bypasses configured guards; fixed guards always apply.")
}
