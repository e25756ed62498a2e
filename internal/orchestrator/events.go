package orchestrator

// Event names.
const (
	EventAdmissionStart       = "admission_start"
	EventPhaseEnter           = "phase_enter"
	EventCandidateDenied      = "candidate_denied"
	EventCandidateStartFailed = "candidate_start_failed"
	EventAdmissionStarted     = "admission_started"
	EventAdmissionExhausted   = "admission_exhausted"
	EventCleanupStart         = "cleanup_start"
	EventCleanupDone          = "cleanup_done"
)

// Event is an orchestrator lifecycle event. Model is empty for events not
// tied to one model.
type Event struct {
	Name   string
	Model  string
	Fields map[string]any
}

// EventPublisher receives orchestrator events. Publish is called inline and
// must not block or panic.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
