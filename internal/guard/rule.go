package guard

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
)

// Rule is one command's configured guard, as read from the config file.
type Rule struct {
	RejectFlags []string           `yaml:"reject_flags"`
	Subcommands map[string]SubRule `yaml:"subcommands"`
}

// SubRule guards one subcommand.
type SubRule struct {
	RejectFlags []string `yaml:"reject_flags"`
}

// Compile turns a command's Rule into checks.
func Compile(command string, r Rule) []Check {
	var checks []Check
	if len(r.RejectFlags) > 0 {
		flags := r.RejectFlags
		checks = append(checks, func(name string, args []string) error {
			if filepath.Base(name) != command || !Flagged(args, flags...) {
				return nil
			}
			return errors.New("rejected flag")
		})
	}
	for _, sub := range slices.Sorted(maps.Keys(r.Subcommands)) {
		flags := r.Subcommands[sub].RejectFlags
		if len(flags) == 0 {
			continue
		}
		checks = append(checks, func(name string, args []string) error {
			if filepath.Base(name) != command || len(args) == 0 || args[0] != sub {
				return nil
			}
			if Flagged(args[1:], flags...) {
				return fmt.Errorf("%s: rejected flag", sub)
			}
			return nil
		})
	}
	return checks
}

// Defaults returns the rules used when the config file names none.
func Defaults() map[string]Rule {
	return map[string]Rule{
		"git": {
			Subcommands: map[string]SubRule{
				"push":  {RejectFlags: []string{"--force", "-f", "--force-with-lease"}},
				"reset": {RejectFlags: []string{"--hard"}},
				"clean": {RejectFlags: []string{"-f", "--force"}},
			},
		},
	}
}

// Build assembles a Set from the fixed checks, the given rules and the
// git checkout guard.
func Build(rules map[string]Rule) *Set {
	s := NewSet(Fixed()...)
	for _, command := range slices.Sorted(maps.Keys(rules)) {
		for _, c := range Compile(command, rules[command]) {
			s.Add(c)
		}
	}
	s.Add(GitCheckoutAll)
	return s
}
