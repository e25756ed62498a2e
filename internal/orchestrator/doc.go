// Package orchestrator admits a specialist model under memory and CPU
// pressure. Files by concern:
//
//   - orchestrator.go: Orchestrator, EnsureSpecialistRunning, CleanupAfterSpecialist.
//   - config.go: Config and package defaults.
//   - phase.go: escalation phases and admission notes.
//   - errors.go: error types and predicates (IsSlotBusy).
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus collectors.
//   - status.go: Status reporting.
//
// Only one specialist runs at a time. A successful admission holds the slot
// until CleanupAfterSpecialist, which restores the gatekeeper and librarian.
package orchestrator
