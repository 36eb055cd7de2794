package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/worace/sluice/internal/audit"
)

func TestRunAudit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := audit.NewLogger(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"ls", "ls | wc -l", "cat"} {
		if _, err := logger.Log(audit.Run{Pipeline: p}); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name     string
		args     []string
		wantCode int
		want     string
		reject   string
	}{
		{"usage", nil, 1, "usage", ""},
		{"verify", []string{"verify"}, 0, "verified", ""},
		{"tail", []string{"tail"}, 0, `"pipeline": "ls"`, ""},
		{"tail n", []string{"tail", "1"}, 0, `"pipeline": "cat"`, `"pipeline": "ls"`},
		{"tail bad n", []string{"tail", "x"}, 1, "bad count", ""},
		{"unknown", []string{"show"}, 1, "unknown subcommand", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out strings.Builder
			code := RunAudit(&out, path, tt.args)
			if code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output %q lacks %q", out.String(), tt.want)
			}
			if tt.reject != "" && strings.Contains(out.String(), tt.reject) {
				t.Errorf("output %q has %q", out.String(), tt.reject)
			}
		})
	}
}

func TestRunAuditMissingLog(t *testing.T) {
	var out strings.Builder
	if code := RunAudit(&out, filepath.Join(t.TempDir(), "none"), []string{"verify"}); code != 1 {
		t.Errorf("code = %d", code)
	}
}
