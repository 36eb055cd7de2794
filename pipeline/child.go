package pipeline

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// childArg0 marks a process started by an Rb stage.
const childArg0 = "sluice-rb"

// childSpec is the block descriptor passed to the child as argv[1].
type childSpec struct {
	Pre  blockRef `json:"pre"`
	Map  blockRef `json:"map"`
	Post blockRef `json:"post"`
}

// Init runs the Rb child and exits when the current process was started by
// an Rb stage; otherwise it returns immediately. Call it before anything
// else in main, and in TestMain for tests that run Rb stages.
func Init() {
	if len(os.Args) != 2 || os.Args[0] != childArg0 {
		return
	}
	os.Exit(runChild(os.Args[1], os.Stdin, os.Stdout, os.Stderr))
}

func runChild(rawSpec string, stdin io.Reader, stdout, stderr io.Writer) int {
	var spec childSpec
	if err := json.Unmarshal([]byte(rawSpec), &spec); err != nil {
		fmt.Fprintf(stderr, "sluice rb: decode blocks: %v\n", err)
		return 2
	}
	blk, err := spec.resolve()
	if err != nil {
		fmt.Fprintf(stderr, "sluice rb: %v\n", err)
		return 2
	}
	out := bufio.NewWriter(stdout)
	err = blk.run(stdin, out)
	if ferr := out.Flush(); err == nil {
		err = ferr
	}
	if err != nil {
		fmt.Fprintf(stderr, "sluice rb: %v\n", err)
		return 1
	}
	return 0
}

type hookRunner func(w io.Writer) error
type mapRunner func(line string, w io.Writer) error

type blocks struct {
	pre, post hookRunner
	mapper    mapRunner
}

func (s childSpec) resolve() (*blocks, error) {
	pre, err := resolveHook(s.Pre)
	if err != nil {
		return nil, fmt.Errorf("pre: %w", err)
	}
	post, err := resolveHook(s.Post)
	if err != nil {
		return nil, fmt.Errorf("post: %w", err)
	}
	m, err := resolveMapper(s.Map)
	if err != nil {
		return nil, fmt.Errorf("map: %w", err)
	}
	return &blocks{pre: pre, post: post, mapper: m}, nil
}

func resolveHook(ref blockRef) (hookRunner, error) {
	switch {
	case ref.Name != "":
		fn, err := lookupHook(ref.Name)
		if err != nil {
			return nil, err
		}
		return hookRunner(fn), nil
	case ref.Script != "":
		s, err := compileScript("hook", ref.Script, false)
		if err != nil {
			return nil, err
		}
		return func(w io.Writer) error { return s.exec(w, nil) }, nil
	}
	return nil, nil
}

func resolveMapper(ref blockRef) (mapRunner, error) {
	switch {
	case ref.Name != "":
		fn, err := lookupMapper(ref.Name)
		if err != nil {
			return nil, err
		}
		return func(line string, w io.Writer) error {
			out, ok := fn(line)
			if !ok {
				return nil
			}
			_, err := fmt.Fprintln(w, out)
			return err
		}, nil
	case ref.Script != "":
		s, err := compileScript("map", ref.Script, true)
		if err != nil {
			return nil, err
		}
		return func(line string, w io.Writer) error { return s.exec(w, &line) }, nil
	}
	return nil, nil
}

// run executes pre, then the mapper over every line of in, then post.
// Input is always read to the end so the upstream writer never sees a
// broken pipe on account of a missing mapper.
func (b *blocks) run(in io.Reader, out io.Writer) error {
	if b.pre != nil {
		if err := b.pre(out); err != nil {
			return err
		}
	}

	r := bufio.NewReader(in)
	for {
		line, err := r.ReadString('\n')
		if line != "" && b.mapper != nil {
			if merr := b.mapper(strings.TrimSuffix(line, "\n"), out); merr != nil {
				return merr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}

	if b.post != nil {
		return b.post(out)
	}
	return nil
}
