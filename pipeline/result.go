package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
)

// Result is the handle to a started stage or pipeline.
//
// Output is read lazily. The default accessors (All, Lines and the helpers
// built on them) consume the stream, so once it has been read to the end
// they return nothing. Slice reads the stream once and caches it; from then
// on every accessor, including Lines, returns the cached lines.
//
// The read side of a Result is meant for one goroutine. Wait may be called
// from another.
type Result struct {
	cmds []*exec.Cmd

	out     *os.File
	reader  *bufio.Reader
	cache   []string
	cached  bool
	readErr error

	mu       sync.Mutex
	waited   bool
	exitCode int
	waitErr  error
}

func newResult(cmds []*exec.Cmd, out *os.File) *Result {
	r := &Result{cmds: cmds, out: out, exitCode: -1}
	if out != nil {
		r.reader = bufio.NewReader(out)
	}
	return r
}

// Pid returns the process id of the terminal stage.
func (r *Result) Pid() int {
	return r.cmds[len(r.cmds)-1].Process.Pid
}

// Pids returns the process ids of every stage in pipeline order. There is
// no cancellation API; signal these to stop a run.
func (r *Result) Pids() []int {
	pids := make([]int, len(r.cmds))
	for i, cmd := range r.cmds {
		pids[i] = cmd.Process.Pid
	}
	return pids
}

// Reader returns the raw output stream. It is empty when stdout was
// redirected, and shares its position with the line accessors.
func (r *Result) Reader() io.Reader {
	if r.reader == nil {
		return strings.NewReader("")
	}
	return r.reader
}

// All yields output lines without their trailing newline. Lines come from
// the cache once Slice has been called, otherwise from the stream.
func (r *Result) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		if r.cached {
			for _, l := range r.cache {
				if !yield(l) {
					return
				}
			}
			return
		}
		for {
			line, ok := r.next()
			if !ok || !yield(line) {
				return
			}
		}
	}
}

// next reads one line from the stream, closing it at end of input.
func (r *Result) next() (string, bool) {
	if r.reader == nil {
		return "", false
	}
	line, err := r.reader.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) && r.readErr == nil {
			r.readErr = fmt.Errorf("read output: %w", err)
		}
		r.closeOutput()
		if line == "" {
			return "", false
		}
	}
	return strings.TrimSuffix(line, "\n"), true
}

// Lines reads every remaining line. Calling it again after the stream is
// exhausted returns an empty slice, unless Slice has cached the output.
func (r *Result) Lines() []string {
	lines := slices.Collect(r.All())
	if lines == nil {
		lines = []string{}
	}
	return lines
}

// Slice reads the output to the end exactly once and caches it. Every call
// returns the same lines.
func (r *Result) Slice() []string {
	if !r.cached {
		r.cache = r.Lines()
		r.cached = true
	}
	return slices.Clone(r.cache)
}

// Count is the number of lines in the current source.
func (r *Result) Count() int {
	n := 0
	for range r.All() {
		n++
	}
	return n
}

// Contains reports whether line appears in the current source. On an
// uncached Result it stops reading at the first match.
func (r *Result) Contains(line string) bool {
	for l := range r.All() {
		if l == line {
			return true
		}
	}
	return false
}

// First returns the first line of the current source.
func (r *Result) First() (string, bool) {
	for l := range r.All() {
		return l, true
	}
	return "", false
}

// Sorted returns the current source's lines in lexical order.
func (r *Result) Sorted() []string {
	lines := r.Lines()
	slices.Sort(lines)
	return lines
}

// Wait blocks until the terminal stage exits, then reaps the remaining
// stages, and records the terminal stage's exit code. Later calls return
// immediately with the recorded code. A non-zero exit is not an error.
//
// Output still buffered in the pipe stays readable after Wait. A terminal
// stage producing more than a pipe buffer of unread output will not exit
// until the output is read.
func (r *Result) Wait() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waited {
		return r
	}

	last := len(r.cmds) - 1
	r.exitCode, r.waitErr = waitCmd(r.cmds[last])
	for _, cmd := range r.cmds[:last] {
		if _, err := waitCmd(cmd); err != nil && r.waitErr == nil {
			r.waitErr = err
		}
	}
	r.waited = true
	log().Debug("pipeline exited", "pid", r.Pid(), "exit_code", r.exitCode)
	return r
}

func waitCmd(cmd *exec.Cmd) (int, error) {
	err := cmd.Wait()
	var exitErr *exec.ExitError
	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	if err != nil && !errors.As(err, &exitErr) {
		return code, fmt.Errorf("wait pid %d: %w", cmd.Process.Pid, err)
	}
	return code, nil
}

// ExitCode returns the terminal stage's exit code, or -1 before Wait or
// when the stage was killed by a signal.
func (r *Result) ExitCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitCode
}

// Err returns the first error met while reading output or waiting.
func (r *Result) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.readErr, r.waitErr)
}

// Close releases the output stream without reading it.
func (r *Result) Close() error {
	return r.closeOutput()
}

func (r *Result) closeOutput() error {
	if r.out == nil {
		return nil
	}
	err := r.out.Close()
	r.out, r.reader = nil, nil
	return err
}
