package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/worace/sluice/internal/audit"
)

const defaultTail = 20

// RunAudit handles sluice --audit verify|tail [n].
func RunAudit(w io.Writer, logPath string, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(w, "usage: sluice --audit <verify|tail [n]>")
		return 1
	}

	switch args[0] {
	case "verify":
		if err := audit.Verify(logPath); err != nil {
			fmt.Fprintf(w, "audit verification FAILED: %v\n", err)
			return 1
		}
		fmt.Fprintln(w, "audit log integrity verified")
		return 0

	case "tail":
		n := defaultTail
		if len(args) > 1 {
			v, err := strconv.Atoi(args[1])
			if err != nil || v < 0 {
				fmt.Fprintf(w, "sluice audit: bad count %q\n", args[1])
				return 1
			}
			n = v
		}
		entries, err := audit.Tail(logPath, n)
		if err != nil {
			fmt.Fprintf(w, "sluice audit: %v\n", err)
			return 1
		}
		if len(entries) == 0 {
			fmt.Fprintln(w, "no audit entries")
			return 0
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				fmt.Fprintf(w, "sluice audit: %v\n", err)
				return 1
			}
		}
		return 0

	default:
		fmt.Fprintf(w, "sluice audit: unknown subcommand %q\n", args[0])
		return 1
	}
}
