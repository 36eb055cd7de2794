package pipeline

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

// Context is the immutable configuration stages are built under: working
// directory, environment overlay and whether the caller's environment is
// inherited. Every mutator returns a new Context.
//
// A Context is only ever applied to a child at spawn time. It never touches
// the calling process's own directory or environment.
type Context struct {
	dir        string
	env        map[string]string
	disinherit bool
}

// NewContext returns a Context rooted at the caller's current directory
// with an empty overlay that inherits the caller's environment.
func NewContext() Context {
	dir, _ := os.Getwd()
	return Context{dir: dir}
}

// Chdir returns a copy of c that runs stages in dir.
func (c Context) Chdir(dir string) Context {
	c.dir = dir
	return c
}

// Setenv returns a copy of c whose overlay has kv merged in. Keys in kv win
// over keys already in the overlay.
func (c Context) Setenv(kv map[string]string) Context {
	env := make(map[string]string, len(c.env)+len(kv))
	maps.Copy(env, c.env)
	maps.Copy(env, kv)
	c.env = env
	return c
}

// LoadEnvFile returns a copy of c with the variables of a dotenv file merged
// into the overlay.
func (c Context) LoadEnvFile(path string) (Context, error) {
	kv, err := godotenv.Read(path)
	if err != nil {
		return c, fmt.Errorf("load env file: %w", err)
	}
	return c.Setenv(kv), nil
}

// DisinheritEnv returns a copy of c whose children see only the overlay.
func (c Context) DisinheritEnv() Context {
	c.disinherit = true
	return c
}

func (c Context) Dir() string { return c.dir }

// Env returns a copy of the overlay.
func (c Context) Env() map[string]string {
	return maps.Clone(c.env)
}

func (c Context) DisinheritsEnv() bool { return c.disinherit }

// Environ resolves the environment a child is spawned with. When the
// environment is inherited, the overlay is merged on top of os.Environ;
// otherwise it is exactly the overlay. The result is never nil, so an empty
// disinherited environment reaches exec.Cmd as empty rather than inherited.
func (c Context) Environ() []string {
	merged := make(map[string]string)
	if !c.disinherit {
		for _, kv := range os.Environ() {
			k, v, ok := strings.Cut(kv, "=")
			if ok {
				merged[k] = v
			}
		}
	}
	maps.Copy(merged, c.env)

	environ := make([]string, 0, len(merged))
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		environ = append(environ, k+"="+merged[k])
	}
	return environ
}

// Cmd builds an external-process stage template for name and args.
func (c Context) Cmd(name string, args ...string) *Cmd {
	return &Cmd{ctx: c, name: name, args: slices.Clone(args)}
}

// Rb builds an in-process block stage with no blocks attached.
func (c Context) Rb() *Rb {
	return &Rb{ctx: c}
}
