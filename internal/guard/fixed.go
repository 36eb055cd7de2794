package guard

import (
	"errors"
	"path/filepath"
	"slices"
)

// Fixed returns the checks that hold regardless of configuration or --allow.
func Fixed() []Check {
	return []Check{rmRecursiveTop}
}

// rmRecursiveTop blocks recursive removal of the root, home or current
// directory, or its parent.
func rmRecursiveTop(name string, args []string) error {
	if filepath.Base(name) != "rm" || !Flagged(args, "-r", "-R", "--recursive") {
		return nil
	}
	for _, arg := range operands(args) {
		cleaned := filepath.Clean(arg)
		if slices.Contains([]string{"/", ".", "..", "~"}, cleaned) {
			return errors.New("refusing to recursively remove " + arg)
		}
	}
	return nil
}

// GitCheckoutAll blocks "git checkout ." and "git checkout -- .", which
// discard every uncommitted change. It is installed as a configured check.
func GitCheckoutAll(name string, args []string) error {
	if filepath.Base(name) != "git" || len(args) == 0 || args[0] != "checkout" {
		return nil
	}
	for _, arg := range operands(args[1:]) {
		if filepath.Clean(arg) == "." {
			return errors.New("checkout would discard all uncommitted changes")
		}
	}
	return nil
}

// operands returns the non-flag arguments. Everything after "--" is an
// operand.
func operands(args []string) []string {
	var out []string
	for i, arg := range args {
		if arg == "--" {
			return append(out, args[i+1:]...)
		}
		if arg == "" || arg[0] == '-' {
			continue
		}
		out = append(out, arg)
	}
	return out
}
