package pipeline

import (
	"fmt"
	"io"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ScriptHook compiles Starlark source into a Hook. The script may call
// print, which writes one line to the stage's stdout, as well as env(name)
// and cwd().
func ScriptHook(src string) (Hook, error) {
	if _, err := compileScript("pre/post", src, false); err != nil {
		return Hook{}, err
	}
	return Hook{blockRef{Script: src}}, nil
}

// ScriptMapper compiles Starlark source into a Mapper. The script runs once
// per input line with the line bound to `line`; whatever it prints is
// emitted.
func ScriptMapper(src string) (Mapper, error) {
	if _, err := compileScript("map", src, true); err != nil {
		return Mapper{}, err
	}
	return Mapper{blockRef{Script: src}}, nil
}

type script struct {
	name string
	prog *starlark.Program
}

func compileScript(name, src string, withLine bool) (*script, error) {
	isPredeclared := func(id string) bool {
		switch id {
		case "env", "cwd":
			return true
		case "line":
			return withLine
		}
		return false
	}
	_, prog, err := starlark.SourceProgramOptions(&syntax.FileOptions{}, name, src, isPredeclared)
	if err != nil {
		return nil, fmt.Errorf("compile %s script: %w", name, err)
	}
	return &script{name: name, prog: prog}, nil
}

// exec runs the program once. line is nil for hooks.
func (s *script) exec(w io.Writer, line *string) error {
	thread := &starlark.Thread{
		Name: s.name,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(w, msg)
		},
	}
	predeclared := starlark.StringDict{
		"env": starlark.NewBuiltin("env", scriptEnv),
		"cwd": starlark.NewBuiltin("cwd", scriptCwd),
	}
	if line != nil {
		predeclared["line"] = starlark.String(*line)
	}
	if _, err := s.prog.Init(thread, predeclared); err != nil {
		return fmt.Errorf("%s script: %w", s.name, err)
	}
	return nil
}

func scriptEnv(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &key); err != nil {
		return nil, err
	}
	return starlark.String(os.Getenv(key)), nil
}

func scriptCwd(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return starlark.String(dir), nil
}
