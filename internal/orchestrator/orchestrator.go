package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"tierd/internal/control"
	"tierd/internal/registry"
	"tierd/internal/resource"
	"tierd/internal/selector"
	"tierd/pkg/types"
)

// Baseline control targets. Scripts resolve them by role.
const (
	targetGatekeeper = string(types.RoleGatekeeper)
	targetLibrarian  = string(types.RoleLibrarian)
)

// Orchestrator admits at most one specialist at a time.
type Orchestrator struct {
	registry registry.Source
	monitor  resource.Sampler
	ctl      control.Controller
	pub      EventPublisher
	log      zerolog.Logger

	memMinMB  int
	cpuMax    float64
	slotWait  time.Duration
	skipFails bool

	slot *semaphore.Weighted

	mu          sync.Mutex
	active      string // running specialist while an admission holds the slot
	held        bool
	lastAdm     *types.AdmissionStatus
	lastSnap    *types.SnapshotStatus
	admissions  uint64
	exhaustions uint64
	cleanups    uint64
	startTime   time.Time
}

// New applies defaults and returns an Orchestrator. Registry, Monitor and
// Controller are required.
func New(cfg Config) *Orchestrator {
	cfg = cfg.withDefaults()
	o := &Orchestrator{
		registry:  cfg.Registry,
		monitor:   cfg.Monitor,
		ctl:       cfg.Controller,
		pub:       cfg.Publisher,
		log:       zerolog.Nop(),
		slotWait:  cfg.SlotWait,
		skipFails: cfg.SkipFailedStarts,
		slot:      semaphore.NewWeighted(1),
		startTime: time.Now(),
	}
	o.memMinMB, o.cpuMax = cfg.thresholds()
	if cfg.Logger != nil {
		o.log = cfg.Logger.With().Str("component", "orchestrator").Logger()
	}
	return o
}

// EnsureSpecialistRunning tries to start a specialist for domain, preferring
// preferredName when it names a registry entry. Candidates are tried in
// phases that progressively pause the librarian and then the gatekeeper.
// On success the baseline stays paused and the slot stays held until
// CleanupAfterSpecialist. When every phase is exhausted the baseline is
// resumed and the slot released.
//
// A non-nil error means no attempt was made: the slot was busy (IsSlotBusy),
// ctx ended while waiting, or the registry could not be read.
func (o *Orchestrator) EnsureSpecialistRunning(ctx context.Context, preferredName, domain string) (Admission, error) {
	o.pub.Publish(Event{Name: EventAdmissionStart, Model: preferredName, Fields: map[string]any{"domain": domain}})

	if err := o.acquire(ctx); err != nil {
		adm := Admission{Note: NoteSlotBusy}
		if !IsSlotBusy(err) {
			adm.Note = err.Error()
		}
		admissionsTotal.WithLabelValues(outcomeSlotBusy, PhaseNone.String()).Inc()
		o.recordAdmission(adm)
		o.log.Warn().Err(err).Str("preferred", preferredName).Msg("specialist slot unavailable")
		return adm, err
	}

	reg, err := o.registry.Load(ctx)
	if err != nil {
		o.slot.Release(1)
		admissionsTotal.WithLabelValues(outcomeError, PhaseNone.String()).Inc()
		o.log.Error().Err(err).Msg("registry load failed")
		return Admission{Note: "registry_unavailable"}, registryError{err: err}
	}
	cands := selector.WithPreferred(selector.SelectCandidates(reg, domain), reg, preferredName)
	o.log.Debug().Str("domain", domain).Str("preferred", preferredName).Int("candidates", len(cands)).Msg("admission start")

	failed := make(map[string]bool)
	for _, phase := range phases {
		switch phase {
		case PhasePauseLibrarian:
			o.pause(ctx, targetLibrarian)
		case PhasePauseGatekeeper:
			o.pause(ctx, targetGatekeeper)
		}
		o.pub.Publish(Event{Name: EventPhaseEnter, Fields: map[string]any{"phase": phase.String()}})

		for _, cand := range cands {
			if o.skipFails && failed[cand.Name] {
				continue
			}
			snap := o.sample()
			if reason := o.gate(snap); reason != "" {
				gateDenialsTotal.WithLabelValues(reason).Inc()
				o.pub.Publish(Event{Name: EventCandidateDenied, Model: cand.Name, Fields: map[string]any{
					"phase": phase.String(), "reason": reason,
					"mem_mb": snap.AvailableMemoryMB, "cpu": snap.CPUUsage,
				}})
				o.log.Debug().Str("candidate", cand.Name).Str("phase", phase.String()).Str("reason", reason).
					Int("mem_mb", snap.AvailableMemoryMB).Float64("cpu", snap.CPUUsage).Msg("gate denied")
				continue
			}
			res := o.ctl.Resume(ctx, cand.Name)
			if !res.OK() {
				failed[cand.Name] = true
				o.pub.Publish(Event{Name: EventCandidateStartFailed, Model: cand.Name, Fields: map[string]any{
					"phase": phase.String(), "exit_code": res.ExitCode,
				}})
				o.log.Warn().Str("candidate", cand.Name).Str("phase", phase.String()).Int("exit_code", res.ExitCode).Msg("specialist start failed")
				continue
			}

			adm := Admission{Admitted: true, Started: cand.Name, Note: startedNote(phase), Phase: phase}
			o.mu.Lock()
			o.active = cand.Name
			o.held = true
			o.mu.Unlock()
			o.recordAdmission(adm)
			admissionsTotal.WithLabelValues(outcomeStarted, phase.String()).Inc()
			o.pub.Publish(Event{Name: EventAdmissionStarted, Model: cand.Name, Fields: map[string]any{"phase": phase.String()}})
			o.log.Info().Str("specialist", cand.Name).Str("phase", phase.String()).Msg("specialist admitted")
			return adm, nil
		}
	}

	o.restoreBaseline(ctx)
	o.slot.Release(1)
	adm := Admission{Note: NoteNoSpecialist, Phase: PhasePauseGatekeeper}
	o.recordAdmission(adm)
	o.mu.Lock()
	o.exhaustions++
	o.mu.Unlock()
	admissionsTotal.WithLabelValues(outcomeExhausted, PhasePauseGatekeeper.String()).Inc()
	o.pub.Publish(Event{Name: EventAdmissionExhausted, Model: preferredName, Fields: map[string]any{"candidates": len(cands)}})
	o.log.Warn().Str("domain", domain).Int("candidates", len(cands)).Msg("no specialist available")
	return adm, nil
}

// CleanupAfterSpecialist pauses every registered specialist, resumes the
// gatekeeper and librarian, and releases the slot. Without a held admission
// it first waits up to SlotWait for the slot, ignoring ctx cancellation, so it
// never interleaves with an admission in progress; if the slot stays busy only
// the baseline is restored. Registry failures are logged; the baseline is
// restored anyway.
func (o *Orchestrator) CleanupAfterSpecialist(ctx context.Context) {
	o.mu.Lock()
	held := o.held
	active := o.active
	o.held = false
	o.active = ""
	o.mu.Unlock()

	// the baseline must come back even when the caller has already given up
	ctx = context.WithoutCancel(ctx)
	if !held {
		if err := o.acquire(ctx); err != nil {
			o.log.Warn().Err(err).Msg("cleanup: specialist slot unavailable, restoring baseline only")
			o.restoreBaseline(ctx)
			return
		}
	}
	defer o.slot.Release(1)

	o.pub.Publish(Event{Name: EventCleanupStart, Model: active})
	paused := 0
	if reg, err := o.registry.Load(ctx); err != nil {
		o.log.Error().Err(err).Msg("cleanup: registry load failed")
	} else {
		for _, m := range reg.ByRole(types.RoleSpecialist) {
			o.pause(ctx, m.Name)
			paused++
		}
	}
	o.restoreBaseline(ctx)

	o.mu.Lock()
	o.cleanups++
	o.mu.Unlock()
	o.pub.Publish(Event{Name: EventCleanupDone, Model: active, Fields: map[string]any{"paused": paused}})
	o.log.Info().Str("specialist", active).Int("paused", paused).Msg("cleanup done")
}

// acquire takes the slot, waiting at most slotWait.
func (o *Orchestrator) acquire(ctx context.Context) error {
	wctx, cancel := context.WithTimeout(ctx, o.slotWait)
	defer cancel()
	err := o.slot.Acquire(wctx, 1)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		o.mu.Lock()
		holder := o.active
		o.mu.Unlock()
		return ErrSlotBusy(holder, o.slotWait)
	}
	return err
}

// gate returns the denial reason, or "" when the snapshot admits a start.
func (o *Orchestrator) gate(s resource.Snapshot) string {
	if s.AvailableMemoryMB < o.memMinMB {
		return reasonMemory
	}
	if s.CPUUsage > o.cpuMax {
		return reasonCPU
	}
	return ""
}

func (o *Orchestrator) sample() resource.Snapshot {
	s := o.monitor.Sample()
	availableMemoryMB.Set(float64(s.AvailableMemoryMB))
	cpuUsageRatio.Set(s.CPUUsage)
	o.mu.Lock()
	o.lastSnap = &types.SnapshotStatus{AvailableMemoryMB: s.AvailableMemoryMB, CPUUsage: s.CPUUsage, TakenAtUnix: s.TakenAt.Unix()}
	o.mu.Unlock()
	return s
}

// pause is best-effort: failures are logged and otherwise ignored.
func (o *Orchestrator) pause(ctx context.Context, target string) {
	if res := o.ctl.Pause(ctx, target); !res.OK() {
		o.log.Warn().Str("target", target).Int("exit_code", res.ExitCode).Msg("pause failed")
	}
}

// restoreBaseline resumes the gatekeeper and librarian even if ctx ended.
func (o *Orchestrator) restoreBaseline(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, target := range []string{targetGatekeeper, targetLibrarian} {
		if res := o.ctl.Resume(ctx, target); !res.OK() {
			o.log.Warn().Str("target", target).Int("exit_code", res.ExitCode).Msg("baseline resume failed")
		}
	}
}

func (o *Orchestrator) recordAdmission(a Admission) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.admissions++
	o.lastAdm = &types.AdmissionStatus{
		Admitted: a.Admitted,
		Started:  a.Started,
		Note:     a.Note,
		Phase:    a.Phase.String(),
		AtUnix:   time.Now().Unix(),
	}
}
