package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRbDefaultIsNoop(t *testing.T) {
	res, err := NewContext().Rb().Run()
	require.NoError(t, err)
	assert.Equal(t, []string{}, res.Slice())
	assert.Equal(t, 0, res.Wait().ExitCode())
}

func TestRbDefaultDrainsInput(t *testing.T) {
	ctx := NewContext()
	p, err := ctx.Cmd("echo", "hi").Pipe(ctx.Rb())
	require.NoError(t, err)

	res, err := p.Run()
	require.NoError(t, err)
	assert.Empty(t, res.Slice())
	assert.Equal(t, 0, res.Wait().ExitCode())
}

func TestRbPrePost(t *testing.T) {
	res, err := NewContext().Rb().Pre(pizzaHook).Post(pieHook).Run()
	require.NoError(t, err)
	assert.Equal(t, []string{"pizza", "pie"}, res.Slice())
}

func TestRbBuildersDoNotMutate(t *testing.T) {
	base := NewContext().Rb()
	withPre := base.Pre(pizzaHook)

	assert.Equal(t, "rb", base.String())
	assert.Equal(t, "rb pre=test.pizza", withPre.String())
	assert.Equal(t, "rb pre=test.pizza map=test.upper", withPre.Map(upperMapper).String())
}

func TestRbMapsEachLine(t *testing.T) {
	ctx := NewContext()
	p, err := ctx.Cmd("echo", "hi").Pipe(ctx.Rb().Map(upperMapper))
	require.NoError(t, err)

	res, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, []string{"HI"}, res.Slice())
}

func TestRbFromContextWithPre(t *testing.T) {
	ctx := NewContext()
	p, err := ctx.Cmd("echo", "hi").Pipe(ctx.Rb().Map(upperMapper).Pre(pizzaHook))
	require.NoError(t, err)

	res, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, []string{"pizza", "HI"}, res.Slice())
}

func TestRbMapperMaySkipLines(t *testing.T) {
	ctx := NewContext()
	p, err := ctx.Cmd("printf", `a\n\nb\n`).Pipe(ctx.Rb().Map(dropEmptyMapper))
	require.NoError(t, err)

	res, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.Slice())
}

func TestRbRedirectOutput(t *testing.T) {
	ctx := NewContext()
	out := filepath.Join(t.TempDir(), "out")

	p, err := Pipe(ctx.Cmd("echo", "hi"), ctx.Cmd("wc", "-c"), ctx.Rb().Map(plusOneMapper))
	require.NoError(t, err)
	p, err = p.Redirect(StdoutFile(out))
	require.NoError(t, err)

	res, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, 0, res.Wait().ExitCode())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "4\n", string(data))
}

func TestRbAppliesEnv(t *testing.T) {
	ctx := NewContext().Setenv(map[string]string{"SLUICE_TEST": "pie"})
	res, err := ctx.Rb().Pre(envHook).Run()
	require.NoError(t, err)
	assert.Equal(t, []string{"pie"}, res.Slice())
}

func TestRbDisinheritsEnv(t *testing.T) {
	t.Setenv("SLUICE_TEST", "testing")

	res, err := NewContext().DisinheritEnv().Rb().Pre(envHook).Run()
	require.NoError(t, err)
	assert.Equal(t, []string{""}, res.Slice())
	assert.Equal(t, "testing", os.Getenv("SLUICE_TEST"), "the caller's environment is untouched")
}

func TestRbChdir(t *testing.T) {
	dir := t.TempDir()
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	before, err := os.Getwd()
	require.NoError(t, err)

	res, err := NewContext().Chdir(dir).Rb().Pre(pwdHook).Run()
	require.NoError(t, err)
	assert.Equal(t, []string{want}, res.Slice())

	after, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRbHookFailureExitsNonZero(t *testing.T) {
	rb, err := NewContext().Rb().Pre(failHook).Redirect(StderrFile(os.DevNull))
	require.NoError(t, err)

	res, err := rb.Run()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Wait().ExitCode())
}

func TestRbScripts(t *testing.T) {
	ctx := NewContext().Setenv(map[string]string{"pizza": "pie"})
	pre, err := ScriptHook(`print(env("pizza"))`)
	require.NoError(t, err)
	upper, err := ScriptMapper(`print(line.upper())`)
	require.NoError(t, err)
	post, err := ScriptHook(`print("done")`)
	require.NoError(t, err)

	p, err := ctx.Cmd("printf", `a\nb\n`).Pipe(ctx.Rb().Pre(pre).Map(upper).Post(post))
	require.NoError(t, err)

	res, err := p.Run()
	require.NoError(t, err)
	assert.Equal(t, []string{"pie", "A", "B", "done"}, res.Slice())
}

func TestRbScriptCwd(t *testing.T) {
	dir := t.TempDir()
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	cwd, err := ScriptHook(`print(cwd())`)
	require.NoError(t, err)

	res, err := NewContext().Chdir(dir).DisinheritEnv().Rb().Pre(cwd).Run()
	require.NoError(t, err)
	assert.Equal(t, []string{want}, res.Slice())
}

func TestScriptCompileErrors(t *testing.T) {
	_, err := ScriptHook(`print(`)
	assert.Error(t, err)

	_, err = ScriptHook(`print(line)`)
	assert.Error(t, err, "line is only bound for mappers")

	_, err = ScriptMapper(`print(line)`)
	assert.NoError(t, err)
}
