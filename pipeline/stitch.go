package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// wiring is the concrete stdio a single stage is started with.
type wiring struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// plan is one run's worth of descriptors. Every file the parent opened on
// a child's behalf is in parentFiles and must be closed once the children
// hold their own copies; output is the only descriptor the parent keeps.
type plan struct {
	wires       []wiring
	output      *os.File
	parentFiles []*os.File
	opened      map[*endpoint]*os.File
	writers     map[*endpoint]*syncWriter
}

// syncWriter serializes writes from the copy goroutines of every stage
// bound to one non-file writer.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (pl *plan) closeParentFiles() {
	for _, f := range pl.parentFiles {
		f.Close()
	}
	pl.parentFiles = nil
}

// abort releases every descriptor of a plan that never fully started.
func (pl *plan) abort() {
	pl.closeParentFiles()
	if pl.output != nil {
		pl.output.Close()
		pl.output = nil
	}
}

func (pl *plan) pipe() (r, w *os.File, err error) {
	r, w, err = os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("allocate pipe: %w", err)
	}
	return r, w, nil
}

// resolve turns an explicit endpoint into something exec.Cmd accepts.
// A path is opened once per plan, so stages sharing one endpoint share
// one file. Files pass through untouched so children inherit them.
func (pl *plan) resolve(ep *endpoint) (any, error) {
	switch {
	case ep.reader != nil:
		return ep.reader, nil
	case ep.writer != nil:
		if f, ok := ep.writer.(*os.File); ok {
			return f, nil
		}
		if w, ok := pl.writers[ep]; ok {
			return w, nil
		}
		w := &syncWriter{w: ep.writer}
		pl.writers[ep] = w
		return w, nil
	}
	if f, ok := pl.opened[ep]; ok {
		return f, nil
	}
	f, err := os.OpenFile(ep.path, ep.flag, 0o644)
	if err != nil {
		return nil, err
	}
	pl.opened[ep] = f
	pl.parentFiles = append(pl.parentFiles, f)
	return f, nil
}

// stitch wires p's stages together. Explicit bindings are resolved as-is;
// pipes and defaults only ever fill unset slots.
//
//   - adjacent stages i, i+1 share a fresh pipe
//   - an unset head stdin reads from a pipe whose write end is already
//     closed, so the head sees end-of-stream instead of blocking
//   - the tail writes to the pipeline's output if set, else to its own
//     explicit stdout, else to a fresh pipe whose read end is retained
//   - unset stderr is the caller's stderr
func (p *Pipeline) stitch() (*plan, error) {
	n := len(p.stages)
	pl := &plan{
		wires:   make([]wiring, n),
		opened:  make(map[*endpoint]*os.File),
		writers: make(map[*endpoint]*syncWriter),
	}
	fail := func(err error) (*plan, error) {
		pl.abort()
		return nil, err
	}

	for i, s := range p.stages {
		sl := s.slots()
		if sl[Stdin] != nil {
			in, err := pl.resolve(sl[Stdin])
			if err != nil {
				return fail(&SpawnError{Stage: s.String(), Err: err})
			}
			pl.wires[i].stdin = in.(io.Reader)
		}
		if sl[Stdout] != nil {
			out, err := pl.resolve(sl[Stdout])
			if err != nil {
				return fail(&SpawnError{Stage: s.String(), Err: err})
			}
			pl.wires[i].stdout = out.(io.Writer)
		}
		if sl[Stderr] != nil {
			errw, err := pl.resolve(sl[Stderr])
			if err != nil {
				return fail(&SpawnError{Stage: s.String(), Err: err})
			}
			pl.wires[i].stderr = errw.(io.Writer)
		} else {
			pl.wires[i].stderr = os.Stderr
		}
	}

	for i := 0; i+1 < n; i++ {
		r, w, err := pl.pipe()
		if err != nil {
			return fail(err)
		}
		pl.parentFiles = append(pl.parentFiles, r, w)
		if pl.wires[i].stdout == nil {
			pl.wires[i].stdout = w
		}
		if pl.wires[i+1].stdin == nil {
			pl.wires[i+1].stdin = r
		}
	}

	if pl.wires[0].stdin == nil {
		r, w, err := pl.pipe()
		if err != nil {
			return fail(err)
		}
		w.Close()
		pl.parentFiles = append(pl.parentFiles, r)
		pl.wires[0].stdin = r
	}

	last := &pl.wires[n-1]
	switch {
	case p.out != nil:
		out, err := pl.resolve(p.out)
		if err != nil {
			return fail(&SpawnError{Stage: p.String(), Err: err})
		}
		last.stdout = out.(io.Writer)
	case last.stdout != nil:
	default:
		r, w, err := pl.pipe()
		if err != nil {
			return fail(err)
		}
		pl.parentFiles = append(pl.parentFiles, w)
		pl.output = r
		last.stdout = w
	}

	return pl, nil
}

// Run stitches a fresh clone of p, starts every stage in order and returns
// a Result for the last one. The stages run concurrently; the only
// synchronisation between them is the pipes.
func (p *Pipeline) Run() (*Result, error) {
	if len(p.stages) == 0 {
		return nil, errors.New("run: empty pipeline")
	}
	run := p.pipeline()
	pl, err := run.stitch()
	if err != nil {
		return nil, err
	}

	cmds := make([]*exec.Cmd, 0, len(run.stages))
	for i, s := range run.stages {
		cmd, err := start(s, pl.wires[i])
		if err != nil {
			pl.abort()
			reap(cmds)
			return nil, err
		}
		log().Debug("stage started", "stage", s.String(), "pid", cmd.Process.Pid, "index", i)
		cmds = append(cmds, cmd)
	}
	pl.closeParentFiles()

	res := newResult(cmds, pl.output)
	log().Debug("pipeline running", "pipeline", run.String(), "pid", res.Pid())
	return res, nil
}

func start(s Stage, w wiring) (*exec.Cmd, error) {
	cmd, err := s.command()
	if err != nil {
		return nil, &SpawnError{Stage: s.String(), Err: err}
	}
	cmd.Stdin = w.stdin
	cmd.Stdout = w.stdout
	cmd.Stderr = w.stderr
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Stage: s.String(), Err: err}
	}
	return cmd, nil
}

// reap kills and waits for stages that started before a later stage
// failed to.
func reap(cmds []*exec.Cmd) {
	for _, cmd := range cmds {
		cmd.Process.Kill()
		cmd.Wait()
	}
}
