package pipeline

import (
	"os/exec"
	"slices"
	"strings"
)

// Cmd is an external command template: an executable name, an argument
// prefix, the Context it runs under and its explicit redirections.
// Every method returns a new Cmd, so a template can be shared freely.
type Cmd struct {
	ctx  Context
	name string
	args []string
	io   slots
}

var _ Stage = (*Cmd)(nil)

// With returns a copy of c with args appended to its argument prefix.
func (c *Cmd) With(args ...string) *Cmd {
	n := c.clone().(*Cmd)
	n.args = append(n.args, args...)
	return n
}

// Redirect returns a copy of c with rs bound. Rebinding a slot that is
// already explicitly bound returns a *RedirectionError.
func (c *Cmd) Redirect(rs ...Redirect) (*Cmd, error) {
	io, err := c.io.with(c, rs)
	if err != nil {
		return nil, err
	}
	n := c.clone().(*Cmd)
	n.io = io
	return n, nil
}

// Pipe connects c's stdout to next's stdin.
func (c *Cmd) Pipe(next Composable) (*Pipeline, error) {
	return join(c, next)
}

// Run starts c on its own. Unset slots follow the same head and tail rules
// as a one-stage pipeline.
func (c *Cmd) Run() (*Result, error) {
	return c.pipeline().Run()
}

func (c *Cmd) Name() string { return c.name }

// Args returns a copy of the argument prefix.
func (c *Cmd) Args() []string { return slices.Clone(c.args) }

func (c *Cmd) Context() Context { return c.ctx }

func (c *Cmd) String() string {
	if len(c.args) == 0 {
		return c.name
	}
	return c.name + " " + strings.Join(c.args, " ")
}

// clone copies the argv and the explicit redirections. The Context is a
// value and is shared as-is.
func (c *Cmd) clone() Stage {
	return &Cmd{
		ctx:  c.ctx,
		name: c.name,
		args: slices.Clone(c.args),
		io:   c.io,
	}
}

func (c *Cmd) slots() slots { return c.io }

func (c *Cmd) command() (*exec.Cmd, error) {
	cmd := exec.Command(c.name, c.args...)
	if cmd.Err != nil {
		return nil, cmd.Err
	}
	cmd.Dir = c.ctx.dir
	cmd.Env = c.ctx.Environ()
	return cmd, nil
}

func (c *Cmd) inBound() bool  { return c.io[Stdin] != nil }
func (c *Cmd) outBound() bool { return c.io[Stdout] != nil }

func (c *Cmd) pipeline() *Pipeline {
	return &Pipeline{stages: []Stage{c.clone()}}
}
