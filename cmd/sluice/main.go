package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/worace/sluice/internal/audit"
	"github.com/worace/sluice/internal/cli"
	"github.com/worace/sluice/internal/config"
	"github.com/worace/sluice/pipeline"
)

var version = "dev"

func main() {
	// In-process stages re-execute this binary; those children never
	// return from Init.
	pipeline.Init()
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var allow, verbose bool
flags:
	for len(args) > 0 {
		switch args[0] {
		case "--allow":
			allow = true
		case "--verbose":
			verbose = true
		default:
			break flags
		}
		args = args[1:]
	}

	if len(args) == 0 {
		cli.PrintUsage(os.Stderr)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sluice: config: %v\n", err)
		return 1
	}

	level := cfg.LogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	pipeline.SetLogger(logger)

	switch args[0] {
	case "--help":
		cli.PrintUsage(os.Stdout)
		return 0
	case "--version":
		fmt.Printf("sluice %s\n", version)
		return 0
	case "--audit":
		return cli.RunAudit(os.Stdout, cfg.Audit.Path, args[1:])
	}

	runner, err := newRunner(cfg, allow)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sluice: %v\n", err)
		return 1
	}

	if args[0] == "--mcp" {
		if err := cli.ServeMCP(runner, version); err != nil {
			fmt.Fprintf(os.Stderr, "sluice: mcp: %v\n", err)
			return 1
		}
		return 0
	}

	return runner.Run(args, stdin(), os.Stdout, os.Stderr).ExitCode
}

func newRunner(cfg *config.Config, allow bool) (*cli.Runner, error) {
	ctx, err := cfg.Context()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	r := &cli.Runner{Context: ctx, Guards: cfg.GuardSet(), Allow: allow}
	if cfg.Audit.Path != "" {
		logger, err := audit.NewLogger(cfg.Audit.Path)
		if err != nil {
			// Run without auditing rather than refuse to run.
			slog.Warn("audit disabled", "err", err)
		} else {
			r.Audit = logger
		}
	}
	return r, nil
}

// stdin returns the reader for the head stage: sluice's own stdin unless it
// is a terminal.
func stdin() io.Reader {
	fi, err := os.Stdin.Stat()
	if err != nil || fi.Mode()&os.ModeCharDevice != 0 {
		return nil
	}
	return os.Stdin
}
