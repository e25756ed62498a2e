package types

// Query statuses returned by POST /api.
const (
	StatusOK          = "ok"
	StatusNeedsDeeper = "needs_deeper"
	StatusError       = "error"
)

// QueryRequest is the payload accepted by POST /api.
type QueryRequest struct {
	// Free text of the user query.
	// example: What is the derivative of x^3?
	Text string `json:"text" example:"What is the derivative of x^3?"`
	// Optional domain hint used to pick a specialist.
	// example: math
	Domain string `json:"domain,omitempty" example:"math"`
	// Set on the second request after the user agreed to dive deeper.
	// example: false
	DiveConfirmed bool `json:"dive_confirmed,omitempty" example:"false"`
}

// QueryResponse is returned by POST /api. Exactly one of Answer, Prompt or
// Message is meaningful depending on Status.
type QueryResponse struct {
	// One of ok, needs_deeper, error.
	// example: ok
	Status string `json:"status" example:"ok"`
	// Final answer text when status is ok.
	Answer string `json:"answer,omitempty"`
	// User-facing question when status is needs_deeper.
	Prompt string `json:"prompt,omitempty"`
	// Error description when status is error.
	// example: empty input
	Message string `json:"message,omitempty" example:"empty input"`
	// Tier that produced the answer (gatekeeper, librarian, specialist, fallback).
	// example: librarian
	Tier string `json:"tier,omitempty" example:"librarian"`
	// Identifier of this query for log correlation.
	QueryID string `json:"query_id,omitempty"`
}

// ModelsResponse wraps the registry listing returned by GET /models.
type ModelsResponse struct {
	Models []ModelDescriptor `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// SnapshotStatus is the JSON view of the last resource sample.
type SnapshotStatus struct {
	// example: 3120
	AvailableMemoryMB int `json:"available_memory_mb" example:"3120"`
	// example: 0.41
	CPUUsage float64 `json:"cpu_usage" example:"0.41"`
	// example: 1700000000
	TakenAtUnix int64 `json:"taken_at_unix" example:"1700000000"`
}

// AdmissionStatus is the JSON view of an admission outcome.
type AdmissionStatus struct {
	Admitted bool `json:"admitted"`
	// example: math-13b
	Started string `json:"started,omitempty" example:"math-13b"`
	// example: started (pause_librarian)
	Note string `json:"note" example:"started (pause_librarian)"`
	// example: pause_librarian
	Phase string `json:"phase,omitempty" example:"pause_librarian"`
	// example: 1700000000
	AtUnix int64 `json:"at_unix" example:"1700000000"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Name of the specialist currently holding the slot, if any.
	ActiveSpecialist string `json:"active_specialist,omitempty"`
	// Most recent admission attempt.
	LastAdmission *AdmissionStatus `json:"last_admission,omitempty"`
	// Most recent resource sample taken by the admission gate.
	LastSnapshot *SnapshotStatus `json:"last_snapshot,omitempty"`
	// Admission thresholds in effect.
	// example: 2200
	MemMinMB int `json:"mem_min_mb" example:"2200"`
	// example: 0.92
	CPUMax float64 `json:"cpu_max" example:"0.92"`
	// Totals since start.
	AdmissionsTotal  uint64 `json:"admissions_total"`
	ExhaustionsTotal uint64 `json:"exhaustions_total"`
	CleanupsTotal    uint64 `json:"cleanups_total"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Optional top-level error message (e.g. registry unreadable).
	Error string `json:"error,omitempty"`
}
