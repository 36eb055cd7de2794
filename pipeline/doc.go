// Package pipeline composes Unix-style pipelines out of external commands
// and in-process block stages, with explicit control over redirection.
//
//	ctx := pipeline.NewContext().Setenv(map[string]string{"LC_ALL": "C"})
//	p, err := ctx.Cmd("ls").Pipe(ctx.Cmd("wc", "-l"))
//	if err != nil {
//		return err
//	}
//	res, err := p.Run()
//	if err != nil {
//		return err
//	}
//	fmt.Println(res.Slice(), res.Wait().ExitCode())
//
// Stages are immutable templates. With, Redirect, Pre, Map and Post return
// new values, and every run works on private clones, so one template can
// back any number of runs.
//
// Every stage is its own OS process, connected to its neighbours with
// anonymous pipes. Rb stages re-execute the current binary, which must call
// Init before doing anything else.
package pipeline
