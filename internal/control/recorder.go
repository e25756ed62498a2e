package control

import (
	"context"
	"sync"
)

// Call is one action observed by a Recorder.
type Call struct {
	Action string // "pause" or "resume"
	Target string
}

// Recorder is an in-memory Controller for tests. Every call succeeds unless
// an exit code was configured with Fail; OnCall runs after the call is
// recorded, which lets tests model side effects of pausing a model.
type Recorder struct {
	mu     sync.Mutex
	calls  []Call
	codes  map[Call]int
	OnCall func(Call)
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder { return &Recorder{codes: make(map[Call]int)} }

// Fail makes every future action on target return code.
func (r *Recorder) Fail(action, target string, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.codes == nil {
		r.codes = make(map[Call]int)
	}
	r.codes[Call{Action: action, Target: target}] = code
}

func (r *Recorder) Pause(_ context.Context, target string) Result { return r.record("pause", target) }

func (r *Recorder) Resume(_ context.Context, target string) Result { return r.record("resume", target) }

func (r *Recorder) record(action, target string) Result {
	c := Call{Action: action, Target: target}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	code := r.codes[c]
	hook := r.OnCall
	r.mu.Unlock()
	if hook != nil {
		hook(c)
	}
	if code != ExitOK {
		return Result{ExitCode: code, Stderr: "recorder: configured failure"}
	}
	return Result{ExitCode: ExitOK}
}

// Calls returns a copy of the call log.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Reset clears the call log but keeps configured failures.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
