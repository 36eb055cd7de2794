// Package guard vets the external stages of a pipeline before any of them
// is spawned.
package guard

import (
	"fmt"
	"strings"

	"github.com/worace/sluice/pipeline"
)

// Check inspects one command invocation. A non-nil error blocks the run.
type Check func(name string, args []string) error

// Violation is returned when a check blocks a stage.
type Violation struct {
	Stage  string
	Reason string
	// Fixed violations cannot be bypassed with --allow.
	Fixed bool
}

func (v *Violation) Error() string {
	if v.Fixed {
		return fmt.Sprintf("%s: %s (always blocked)", v.Stage, v.Reason)
	}
	return fmt.Sprintf("%s: %s (rerun with --allow to proceed)", v.Stage, v.Reason)
}

// Set holds fixed checks, which always run, and configured checks, which an
// explicit allow skips.
type Set struct {
	fixed      []Check
	configured []Check
}

// NewSet returns a Set with the given fixed checks.
func NewSet(fixed ...Check) *Set {
	return &Set{fixed: fixed}
}

// Add appends a configured check.
func (s *Set) Add(c Check) {
	s.configured = append(s.configured, c)
}

// Check runs the fixed checks and then, unless allow is set, the configured
// ones.
func (s *Set) Check(name string, args []string, allow bool) error {
	for _, c := range s.fixed {
		if err := c(name, args); err != nil {
			return &Violation{Stage: name, Reason: err.Error(), Fixed: true}
		}
	}
	if allow {
		return nil
	}
	for _, c := range s.configured {
		if err := c(name, args); err != nil {
			return &Violation{Stage: name, Reason: err.Error()}
		}
	}
	return nil
}

// CheckPipeline checks every external stage of p in order. In-process
// stages run sluice's own code and are not checked.
func (s *Set) CheckPipeline(p *pipeline.Pipeline, allow bool) error {
	for _, st := range p.Stages() {
		c, ok := st.(*pipeline.Cmd)
		if !ok {
			continue
		}
		if err := s.Check(c.Name(), c.Args(), allow); err != nil {
			return err
		}
	}
	return nil
}

// Flagged reports whether args carries any of flags. Combined short flags
// ("-rf" carries "-r"), short flags with a value ("-j4" carries "-j") and
// long flags with a value ("--force=yes" carries "--force") all count.
func Flagged(args []string, flags ...string) bool {
	for _, arg := range args {
		if len(arg) < 2 || arg[0] != '-' {
			continue
		}
		if arg == "--" {
			return false
		}
		for _, flag := range flags {
			switch {
			case arg == flag:
				return true
			case isShort(flag) && isShort(arg[:2]) && strings.ContainsRune(arg[1:], rune(flag[1])):
				return true
			case strings.HasPrefix(flag, "--") && strings.HasPrefix(arg, flag+"="):
				return true
			}
		}
	}
	return false
}

func isShort(flag string) bool {
	return len(flag) == 2 && flag[0] == '-' && flag[1] != '-'
}
