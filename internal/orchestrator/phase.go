package orchestrator

// Phase is an escalation step of an admission attempt. Each phase frees more
// memory than the one before it.
type Phase int

const (
	PhaseNone            Phase = iota // nothing paused
	PhasePauseLibrarian               // librarian paused
	PhasePauseGatekeeper              // librarian and gatekeeper paused
)

var phases = []Phase{PhaseNone, PhasePauseLibrarian, PhasePauseGatekeeper}

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhasePauseLibrarian:
		return "pause_librarian"
	case PhasePauseGatekeeper:
		return "pause_gatekeeper"
	default:
		return "unknown"
	}
}

// Admission notes.
const (
	NoteNoSpecialist = "no_specialist_available"
	NoteSlotBusy     = "specialist_slot_busy"
)

func startedNote(p Phase) string { return "started (" + p.String() + ")" }

// Admission is the outcome of EnsureSpecialistRunning.
type Admission struct {
	Admitted bool
	Started  string // specialist name when Admitted
	Note     string
	Phase    Phase // phase that admitted, or the last phase tried
}
