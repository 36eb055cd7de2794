package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/worace/sluice/internal/audit"
	"github.com/worace/sluice/internal/guard"
	"github.com/worace/sluice/pipeline"
)

func newRunner(t *testing.T) *Runner {
	t.Helper()
	logger, err := audit.NewLogger(filepath.Join(t.TempDir(), "audit.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	return &Runner{
		Context: pipeline.NewContext(),
		Guards:  guard.Build(guard.Defaults()),
		Audit:   logger,
	}
}

func TestRunnerStreamsOutput(t *testing.T) {
	r := newRunner(t)
	var stdout, stderr strings.Builder

	o := r.Run([]string{"printf", `b\na\n`, "¦", "sort"}, nil, &stdout, &stderr)
	if o.Err != nil || o.ExitCode != 0 {
		t.Fatalf("outcome = %+v, stderr %q", o, stderr.String())
	}
	if stdout.String() != "a\nb\n" {
		t.Errorf("stdout = %q", stdout.String())
	}

	entries, err := audit.Tail(r.Audit.Path(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Pipeline != `printf b\na\n | sort` || len(entries[0].Stages) != 2 {
		t.Errorf("audit = %+v", entries)
	}
}

func TestRunnerFeedsStdin(t *testing.T) {
	r := newRunner(t)
	var stdout, stderr strings.Builder

	o := r.Run([]string{"wc", "-l"}, strings.NewReader("1\n2\n3\n"), &stdout, &stderr)
	if o.Err != nil {
		t.Fatal(o.Err)
	}
	if strings.TrimSpace(stdout.String()) != "3" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRunnerFileRedirects(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in"), filepath.Join(dir, "out")
	if err := os.WriteFile(in, []byte("c\na\nb\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := newRunner(t)
	var stdout, stderr strings.Builder
	args := []string{"sort", "‹", in, "¦", "head", "-n", "2", "›", out}
	o := r.Run(args, strings.NewReader("ignored\n"), &stdout, &stderr)
	if o.Err != nil {
		t.Fatal(o.Err)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout = %q, want nothing", stdout.String())
	}

	o = r.Run([]string{"echo", "z", "››", out}, nil, &stdout, &stderr)
	if o.Err != nil {
		t.Fatal(o.Err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a\nb\nz\n" {
		t.Errorf("out = %q", data)
	}
}

func TestRunnerExitCode(t *testing.T) {
	r := newRunner(t)
	var stdout, stderr strings.Builder

	o := r.Run([]string{"sh", "-c", "echo oops >&2; exit 3"}, nil, &stdout, &stderr)
	if o.Err != nil {
		t.Fatal(o.Err)
	}
	if o.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", o.ExitCode)
	}
	if stderr.String() != "oops\n" {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRunnerSluiceErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"parse", []string{"ls", "¦"}, "empty segment"},
		{"spawn", []string{"sluice-no-such-command-here"}, "sluice-no-such-command-here"},
		{"guard", []string{"git", "push", "--force"}, "--allow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRunner(t)
			var stdout, stderr strings.Builder
			o := r.Run(tt.args, nil, &stdout, &stderr)
			if o.Err == nil || o.ExitCode != errorExit {
				t.Fatalf("outcome = %+v", o)
			}
			if !strings.HasPrefix(stderr.String(), "sluice: ") || !strings.Contains(stderr.String(), tt.want) {
				t.Errorf("stderr = %q", stderr.String())
			}
			entries, err := audit.Tail(r.Audit.Path(), 1)
			if err != nil || len(entries) != 1 || entries[0].ExitCode != errorExit || entries[0].Error == "" {
				t.Errorf("audit = %+v, %v", entries, err)
			}
		})
	}
}

func TestRunnerAllow(t *testing.T) {
	r := newRunner(t)
	r.Guards = guard.Build(map[string]guard.Rule{"echo": {RejectFlags: []string{"-n"}}})
	var stdout, stderr strings.Builder

	o := r.Run([]string{"echo", "-n", "hi"}, nil, &stdout, &stderr)
	var v *guard.Violation
	if !errors.As(o.Err, &v) {
		t.Fatalf("Err = %v, want violation", o.Err)
	}

	r.Allow = true
	o = r.Run([]string{"echo", "-n", "hi"}, nil, &stdout, &stderr)
	if o.Err != nil {
		t.Fatal(o.Err)
	}
	if stdout.String() != "hi" {
		t.Errorf("stdout = %q", stdout.String())
	}
	entries, _ := audit.Tail(r.Audit.Path(), 1)
	if len(entries) != 1 || !entries[0].Allow {
		t.Errorf("audit = %+v", entries)
	}
}

func TestRunnerRbStage(t *testing.T) {
	r := newRunner(t)
	r.Context = r.Context.Setenv(map[string]string{"TOPPING": "pie"})
	var stdout, stderr strings.Builder

	args := []string{"printf", `a\nb\n`, "¦", "rb", "--pre", `print(env("TOPPING"))`, "print(line.upper())"}
	o := r.Run(args, nil, &stdout, &stderr)
	if o.Err != nil || o.ExitCode != 0 {
		t.Fatalf("outcome = %+v, stderr %q", o, stderr.String())
	}
	if stdout.String() != "pie\nA\nB\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRunnerWithoutAudit(t *testing.T) {
	r := &Runner{Context: pipeline.NewContext()}
	var stdout, stderr strings.Builder
	if o := r.Run([]string{"true"}, nil, &stdout, &stderr); o.Err != nil || o.ExitCode != 0 {
		t.Errorf("outcome = %+v", o)
	}
}
