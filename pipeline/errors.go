package pipeline

import (
	"errors"
	"fmt"
)

// ErrRedirected is matched by every *RedirectionError via errors.Is.
var ErrRedirected = errors.New("endpoint already redirected")

// RedirectionError reports an attempt to rebind an explicitly redirected
// endpoint, either directly or by piping through it.
type RedirectionError struct {
	Stage string // rendering of the offending stage or pipeline
	Slot  Slot
}

func (e *RedirectionError) Error() string {
	return fmt.Sprintf("%s: %s already redirected", e.Stage, e.Slot)
}

func (e *RedirectionError) Is(target error) bool {
	return target == ErrRedirected
}

// SpawnError means a stage could not be started at all (missing executable,
// permission denied, unopenable redirect target). A process that starts and
// later exits non-zero is not a SpawnError; see Result.ExitCode.
type SpawnError struct {
	Stage string
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Stage, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
