package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Rb is an in-process block stage. It runs an optional pre hook once, maps
// each line of stdin through a Mapper, then runs an optional post hook.
//
// The blocks execute in a child copy of the current executable, so the
// stage's Context and its standard output stay isolated from the caller
// exactly as they would for an external command. Programs that run Rb
// stages must call Init at the top of main (and TestMain).
type Rb struct {
	ctx       Context
	pre, post Hook
	mapper    Mapper
	io        slots
}

var _ Stage = (*Rb)(nil)

// Pre returns a copy of b that runs h before reading any input.
func (b *Rb) Pre(h Hook) *Rb {
	n := b.clone().(*Rb)
	n.pre = h
	return n
}

// Map returns a copy of b that passes each input line through m.
func (b *Rb) Map(m Mapper) *Rb {
	n := b.clone().(*Rb)
	n.mapper = m
	return n
}

// Post returns a copy of b that runs h once input is exhausted.
func (b *Rb) Post(h Hook) *Rb {
	n := b.clone().(*Rb)
	n.post = h
	return n
}

// Redirect returns a copy of b with rs bound.
func (b *Rb) Redirect(rs ...Redirect) (*Rb, error) {
	io, err := b.io.with(b, rs)
	if err != nil {
		return nil, err
	}
	n := b.clone().(*Rb)
	n.io = io
	return n, nil
}

// Pipe connects b's stdout to next's stdin.
func (b *Rb) Pipe(next Composable) (*Pipeline, error) {
	return join(b, next)
}

// Run starts b on its own, as a one-stage pipeline.
func (b *Rb) Run() (*Result, error) {
	return b.pipeline().Run()
}

func (b *Rb) Context() Context { return b.ctx }

func (b *Rb) String() string {
	parts := []string{"rb"}
	for _, p := range []struct {
		label string
		ref   blockRef
	}{{"pre", b.pre.ref}, {"map", b.mapper.ref}, {"post", b.post.ref}} {
		if !p.ref.empty() {
			parts = append(parts, p.label+"="+p.ref.String())
		}
	}
	return strings.Join(parts, " ")
}

func (b *Rb) clone() Stage {
	n := *b
	return &n
}

func (b *Rb) slots() slots { return b.io }

// command re-executes the current binary with the block descriptor as its
// only argument. Init recognises the child by argv[0].
func (b *Rb) command() (*exec.Cmd, error) {
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	spec, err := json.Marshal(childSpec{Pre: b.pre.ref, Map: b.mapper.ref, Post: b.post.ref})
	if err != nil {
		return nil, fmt.Errorf("encode blocks: %w", err)
	}
	cmd := exec.Command(self, string(spec))
	cmd.Args[0] = childArg0
	cmd.Dir = b.ctx.dir
	cmd.Env = b.ctx.Environ()
	return cmd, nil
}

func (b *Rb) inBound() bool  { return b.io[Stdin] != nil }
func (b *Rb) outBound() bool { return b.io[Stdout] != nil }

func (b *Rb) pipeline() *Pipeline {
	return &Pipeline{stages: []Stage{b.clone()}}
}
