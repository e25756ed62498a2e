// Package control pauses and resumes model processes through external scripts.
package control

import (
	"context"
	"strconv"
)

// Exit codes synthesized by the controller when a script cannot report its own.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitTimeout = 124
)

// Result is the outcome of one control action.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports whether the action succeeded.
func (r Result) OK() bool { return r.ExitCode == ExitOK }

// TimedOut reports whether the action hit the controller's timeout.
func (r Result) TimedOut() bool { return r.ExitCode == ExitTimeout }

func (r Result) String() string { return "exit=" + strconv.Itoa(r.ExitCode) }

// Controller pauses and resumes a model by name or role. Calls are neither
// atomic nor instantaneous: a resume can fail even when resources look
// sufficient, and callers must treat a non-zero exit as "did not start".
type Controller interface {
	Pause(ctx context.Context, target string) Result
	Resume(ctx context.Context, target string) Result
}
