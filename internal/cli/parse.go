package cli

import (
	"fmt"

	"github.com/worace/sluice/pipeline"
)

// Pipeline operators. They reach sluice as ordinary words, so the calling
// shell never interprets them.
const (
	OpPipe   = "¦"
	OpStdin  = "‹"
	OpStdout = "›"
	OpAppend = "››"
)

// Parse builds a pipeline from pre-tokenized args. Redirects may appear
// anywhere: ‹ binds the head's stdin, › and ›› bind the pipeline's output.
func Parse(ctx pipeline.Context, args []string) (*pipeline.Pipeline, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("empty pipeline")
	}

	var (
		in, out  *pipeline.Redirect
		segments [][]string
		current  []string
	)
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case OpStdin, OpStdout, OpAppend:
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires a file path", arg)
			}
			i++
			path := args[i]
			var r pipeline.Redirect
			slot := &out
			switch arg {
			case OpStdin:
				r, slot = pipeline.StdinFile(path), &in
			case OpAppend:
				r = pipeline.StdoutAppend(path)
			default:
				r = pipeline.StdoutFile(path)
			}
			if *slot != nil {
				return nil, fmt.Errorf("multiple %s redirects", arg)
			}
			*slot = &r
		case OpPipe:
			if len(current) == 0 {
				return nil, fmt.Errorf("empty segment before %s", OpPipe)
			}
			segments = append(segments, current)
			current = nil
		default:
			current = append(current, arg)
		}
	}
	if len(current) == 0 {
		return nil, fmt.Errorf("empty segment after %s", OpPipe)
	}
	segments = append(segments, current)

	stages := make([]pipeline.Composable, 0, len(segments))
	for _, seg := range segments {
		s, err := parseSegment(ctx, seg)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	p, err := pipeline.Pipe(stages[0], stages[1:]...)
	if err != nil {
		return nil, err
	}

	var rs []pipeline.Redirect
	if in != nil {
		rs = append(rs, *in)
	}
	if out != nil {
		rs = append(rs, *out)
	}
	return p.Redirect(rs...)
}

func parseSegment(ctx pipeline.Context, args []string) (pipeline.Composable, error) {
	if args[0] == "rb" {
		return parseRb(ctx, args[1:])
	}
	return ctx.Cmd(args[0], args[1:]...), nil
}

// parseRb reads "rb [--pre SRC] [--post SRC] [MAP-SRC]". Each SRC is a
// Starlark program.
func parseRb(ctx pipeline.Context, args []string) (*pipeline.Rb, error) {
	rb := ctx.Rb()
	mapped := false
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "--pre", "--post":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("rb: %s requires a script", arg)
			}
			i++
			h, err := pipeline.ScriptHook(args[i])
			if err != nil {
				return nil, fmt.Errorf("rb %s: %w", arg, err)
			}
			if arg == "--pre" {
				rb = rb.Pre(h)
			} else {
				rb = rb.Post(h)
			}
		default:
			if mapped {
				return nil, fmt.Errorf("rb: unexpected argument %q", arg)
			}
			m, err := pipeline.ScriptMapper(arg)
			if err != nil {
				return nil, fmt.Errorf("rb: %w", err)
			}
			rb, mapped = rb.Map(m), true
		}
	}
	return rb, nil
}
