package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/worace/sluice/internal/audit"
	"github.com/worace/sluice/internal/guard"
	"github.com/worace/sluice/pipeline"
)

// Runner runs command-line pipelines.
type Runner struct {
	Context pipeline.Context
	Guards  *guard.Set
	// Audit may be nil, which disables auditing.
	Audit *audit.Logger
	// Allow bypasses configured guards. Fixed guards still apply.
	Allow bool
}

// Outcome describes one finished run.
type Outcome struct {
	Pipeline *pipeline.Pipeline
	ExitCode int
	Err      error
}

// errorExit is the exit status for failures inside sluice itself, as
// opposed to a stage's own non-zero exit.
const errorExit = 2

// Run parses args, vets and runs the pipeline, copies its output to stdout
// and waits for it. A nil stdin leaves the head stage at end of input.
// Stages that bind no stderr of their own write to stderr.
func (r *Runner) Run(args []string, stdin io.Reader, stdout, stderr io.Writer) Outcome {
	start := time.Now()
	o := r.run(args, stdin, stdout, stderr)
	if o.Err != nil {
		fmt.Fprintf(stderr, "sluice: %v\n", o.Err)
	}
	r.record(args, o, time.Since(start))
	return o
}

func (r *Runner) run(args []string, stdin io.Reader, stdout, stderr io.Writer) Outcome {
	p, err := Parse(r.Context, args)
	if err != nil {
		return Outcome{ExitCode: errorExit, Err: err}
	}
	o := Outcome{Pipeline: p}

	if r.Guards != nil {
		if err := r.Guards.CheckPipeline(p, r.Allow); err != nil {
			slog.Debug("guard refused pipeline", "pipeline", p.String(), "err", err)
			o.ExitCode, o.Err = errorExit, err
			return o
		}
	}

	// Bind what the command line left open. A slot already bound by an
	// operator keeps its binding.
	for _, rd := range []pipeline.Redirect{stdinRedirect(stdin), pipeline.StderrWriter(stderr)} {
		next, err := p.Redirect(rd)
		switch {
		case errors.Is(err, pipeline.ErrRedirected):
		case err != nil:
			o.ExitCode, o.Err = errorExit, err
			return o
		default:
			p = next
		}
	}

	res, err := p.Run()
	if err != nil {
		o.ExitCode, o.Err = errorExit, err
		return o
	}
	_, copyErr := io.Copy(stdout, res.Reader())
	res.Close()
	res.Wait()
	o.ExitCode = res.ExitCode()
	if err := errors.Join(copyErr, res.Err()); err != nil {
		o.ExitCode, o.Err = errorExit, err
	}
	slog.Debug("pipeline finished", "pipeline", p.String(), "pid", res.Pid(), "exit", o.ExitCode)
	return o
}

func stdinRedirect(stdin io.Reader) pipeline.Redirect {
	if stdin == nil {
		return pipeline.Redirect{}
	}
	return pipeline.StdinReader(stdin)
}

func (r *Runner) record(args []string, o Outcome, d time.Duration) {
	if r.Audit == nil {
		return
	}
	run := audit.Run{
		ExitCode: o.ExitCode,
		Err:      o.Err,
		Duration: d,
		Cwd:      r.Context.Dir(),
		Allow:    r.Allow,
	}
	if run.Cwd == "" {
		run.Cwd, _ = os.Getwd()
	}
	if o.Pipeline != nil {
		run.Pipeline = o.Pipeline.String()
		for _, s := range o.Pipeline.Stages() {
			run.Stages = append(run.Stages, s.String())
		}
	} else {
		run.Pipeline = fmt.Sprint(args)
	}
	if _, err := r.Audit.Log(run); err != nil {
		slog.Warn("audit log write failed", "path", r.Audit.Path(), "err", err)
	}
}
