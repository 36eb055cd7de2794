package pipeline

import (
	"fmt"
	"io"
	"sync"
)

// HookFunc runs once, before or after an Rb stage's input. Anything written
// to w becomes part of the stage's stdout.
type HookFunc func(w io.Writer) error

// MapFunc transforms one input line (without its trailing newline). When
// ok is true, out is emitted as one output line.
type MapFunc func(line string) (out string, ok bool)

// Hook is a pre or post block for an Rb stage. The zero Hook does nothing.
type Hook struct{ ref blockRef }

// Mapper is the per-line block of an Rb stage. The zero Mapper drains its
// input and emits nothing.
type Mapper struct{ ref blockRef }

// blockRef is the form a block takes on the child's command line: either
// the name of a registered Go function or Starlark source.
type blockRef struct {
	Name   string `json:"name,omitempty"`
	Script string `json:"script,omitempty"`
}

func (r blockRef) empty() bool { return r.Name == "" && r.Script == "" }

func (r blockRef) String() string {
	if r.Name != "" {
		return r.Name
	}
	return "<script>"
}

var registry = struct {
	sync.RWMutex
	hooks   map[string]HookFunc
	mappers map[string]MapFunc
}{
	hooks:   make(map[string]HookFunc),
	mappers: make(map[string]MapFunc),
}

// RegisterHook makes fn available to Rb children under name. The child is
// a fresh copy of the executable, so registration must happen during
// package initialisation, typically in a package-level var. Registering a
// name twice panics.
func RegisterHook(name string, fn HookFunc) Hook {
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.hooks[name]; dup {
		panic(fmt.Sprintf("pipeline: hook %q registered twice", name))
	}
	registry.hooks[name] = fn
	return Hook{blockRef{Name: name}}
}

// RegisterMapper is RegisterHook for per-line blocks.
func RegisterMapper(name string, fn MapFunc) Mapper {
	registry.Lock()
	defer registry.Unlock()
	if _, dup := registry.mappers[name]; dup {
		panic(fmt.Sprintf("pipeline: mapper %q registered twice", name))
	}
	registry.mappers[name] = fn
	return Mapper{blockRef{Name: name}}
}

func lookupHook(name string) (HookFunc, error) {
	registry.RLock()
	defer registry.RUnlock()
	fn, ok := registry.hooks[name]
	if !ok {
		return nil, fmt.Errorf("unknown hook %q", name)
	}
	return fn, nil
}

func lookupMapper(name string) (MapFunc, error) {
	registry.RLock()
	defer registry.RUnlock()
	fn, ok := registry.mappers[name]
	if !ok {
		return nil, fmt.Errorf("unknown mapper %q", name)
	}
	return fn, nil
}
