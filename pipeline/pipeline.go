package pipeline

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"
)

// Composable is anything that can sit on either side of a pipe: a *Cmd, an
// *Rb or a *Pipeline.
type Composable interface {
	fmt.Stringer

	inBound() bool  // head stdin explicitly bound
	outBound() bool // tail stdout explicitly bound
	pipeline() *Pipeline
}

// Stage is a single pipeline participant. Its only implementations are
// *Cmd and *Rb.
type Stage interface {
	Composable

	Run() (*Result, error)
	Context() Context

	clone() Stage
	slots() slots
	command() (*exec.Cmd, error)
}

// Pipeline is an ordered, fixed sequence of stages joined by anonymous
// pipes, with an optional explicit destination for its overall output.
// Stages are private clones taken at composition time.
type Pipeline struct {
	stages []Stage
	out    *endpoint
}

var _ Composable = (*Pipeline)(nil)

// Pipe builds a pipeline from first and rest, left to right.
func Pipe(first Composable, rest ...Composable) (*Pipeline, error) {
	p := first.pipeline()
	for _, next := range rest {
		var err error
		if p, err = join(p, next); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Pipe appends next to p.
func (p *Pipeline) Pipe(next Composable) (*Pipeline, error) {
	return join(p, next)
}

// join validates the boundary between left and right and concatenates
// clones of both. Nothing is cloned when validation fails.
func join(left, right Composable) (*Pipeline, error) {
	if left.outBound() {
		return nil, &RedirectionError{Stage: left.String(), Slot: Stdout}
	}
	if right.inBound() {
		return nil, &RedirectionError{Stage: right.String(), Slot: Stdin}
	}
	lp, rp := left.pipeline(), right.pipeline()
	stages := make([]Stage, 0, len(lp.stages)+len(rp.stages))
	stages = append(stages, lp.stages...)
	stages = append(stages, rp.stages...)
	return &Pipeline{stages: stages, out: rp.out}, nil
}

// Redirect returns a copy of p with rs bound. Stdin binds the head stage,
// stdout binds the pipeline's overall output, and stderr binds every stage
// whose stderr is still unset.
func (p *Pipeline) Redirect(rs ...Redirect) (*Pipeline, error) {
	n := p.pipeline()
	for _, r := range rs {
		if r.ep == nil {
			continue
		}
		switch r.slot {
		case Stdin:
			if n.inBound() {
				return nil, &RedirectionError{Stage: p.String(), Slot: Stdin}
			}
			head, err := rebind(n.stages[0], r)
			if err != nil {
				return nil, err
			}
			n.stages[0] = head
		case Stdout:
			if n.outBound() {
				return nil, &RedirectionError{Stage: p.String(), Slot: Stdout}
			}
			n.out = r.ep
		case Stderr:
			bound := 0
			for i, s := range n.stages {
				if s.slots()[Stderr] != nil {
					continue
				}
				st, err := rebind(s, r)
				if err != nil {
					return nil, err
				}
				n.stages[i] = st
				bound++
			}
			if bound == 0 {
				return nil, &RedirectionError{Stage: p.String(), Slot: Stderr}
			}
		}
	}
	return n, nil
}

func rebind(s Stage, r Redirect) (Stage, error) {
	switch s := s.(type) {
	case *Cmd:
		return s.Redirect(r)
	case *Rb:
		return s.Redirect(r)
	}
	panic(fmt.Sprintf("pipeline: unknown stage type %T", s))
}

// Stages returns clones of p's stages in order.
func (p *Pipeline) Stages() []Stage {
	return p.pipeline().stages
}

func (p *Pipeline) Len() int { return len(p.stages) }

func (p *Pipeline) String() string {
	parts := make([]string, len(p.stages))
	for i, s := range p.stages {
		parts[i] = s.String()
	}
	str := strings.Join(parts, " | ")
	if p.out != nil {
		str += " > " + p.out.String()
	}
	return str
}

func (p *Pipeline) inBound() bool {
	return len(p.stages) > 0 && p.stages[0].inBound()
}

func (p *Pipeline) outBound() bool {
	return p.out != nil || (len(p.stages) > 0 && p.stages[len(p.stages)-1].outBound())
}

func (p *Pipeline) pipeline() *Pipeline {
	stages := make([]Stage, len(p.stages))
	for i, s := range p.stages {
		stages[i] = s.clone()
	}
	return &Pipeline{stages: stages, out: p.out}
}

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.DiscardHandler))
}

// SetLogger sets the logger used for spawn and stitching diagnostics.
// Nothing is logged by default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	logger.Store(l)
}

func log() *slog.Logger { return logger.Load() }
