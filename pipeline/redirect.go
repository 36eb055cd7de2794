package pipeline

import (
	"fmt"
	"io"
	"os"
)

// Slot names one of a stage's three standard descriptors.
type Slot int

const (
	Stdin Slot = iota
	Stdout
	Stderr
)

func (s Slot) String() string {
	switch s {
	case Stdin:
		return "stdin"
	case Stdout:
		return "stdout"
	case Stderr:
		return "stderr"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// endpoint is an explicit binding for one slot. Paths are opened at run
// time so a redirected template stays reusable; streams are handed to the
// child as-is and never closed by this package.
type endpoint struct {
	path   string
	flag   int
	reader io.Reader
	writer io.Writer
}

func (e *endpoint) String() string {
	switch {
	case e.path != "":
		return e.path
	case e.reader != nil:
		return fmt.Sprintf("%T", e.reader)
	default:
		return fmt.Sprintf("%T", e.writer)
	}
}

// Redirect describes an explicit binding of one slot. Build one with
// StdinFile, StdoutWriter and friends and apply it with a Redirect method.
type Redirect struct {
	slot Slot
	ep   *endpoint
}

const (
	flagTruncate = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	flagAppend   = os.O_WRONLY | os.O_CREATE | os.O_APPEND
)

// StdinFile reads stdin from the file at path (the `<` operator).
func StdinFile(path string) Redirect {
	return Redirect{Stdin, &endpoint{path: path, flag: os.O_RDONLY}}
}

// StdinReader reads stdin from r.
func StdinReader(r io.Reader) Redirect {
	return Redirect{Stdin, &endpoint{reader: r}}
}

// StdoutFile truncates path and writes stdout to it (the `>` operator).
func StdoutFile(path string) Redirect {
	return Redirect{Stdout, &endpoint{path: path, flag: flagTruncate}}
}

// StdoutAppend appends stdout to path (the `>>` operator).
func StdoutAppend(path string) Redirect {
	return Redirect{Stdout, &endpoint{path: path, flag: flagAppend}}
}

// StdoutWriter writes stdout to w.
func StdoutWriter(w io.Writer) Redirect {
	return Redirect{Stdout, &endpoint{writer: w}}
}

// StderrFile truncates path and writes stderr to it.
func StderrFile(path string) Redirect {
	return Redirect{Stderr, &endpoint{path: path, flag: flagTruncate}}
}

// StderrAppend appends stderr to path.
func StderrAppend(path string) Redirect {
	return Redirect{Stderr, &endpoint{path: path, flag: flagAppend}}
}

// StderrWriter writes stderr to w.
func StderrWriter(w io.Writer) Redirect {
	return Redirect{Stderr, &endpoint{writer: w}}
}

// slots holds a stage's explicit bindings. A nil entry is unset. Endpoints
// are never mutated once built, so copying the array is a safe clone.
type slots [3]*endpoint

// with returns a copy of s with rs applied, refusing to rebind any slot
// that is already bound.
func (s slots) with(stage fmt.Stringer, rs []Redirect) (slots, error) {
	for _, r := range rs {
		if r.ep == nil {
			continue
		}
		if s[r.slot] != nil {
			return s, &RedirectionError{Stage: stage.String(), Slot: r.slot}
		}
		s[r.slot] = r.ep
	}
	return s, nil
}
