package orchestrator

import (
	"time"

	"tierd/pkg/types"
)

// Active returns the specialist admitted and not yet cleaned up, if any.
func (o *Orchestrator) Active() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active, o.held
}

// Status builds the /status view. Pointers in the result are copies.
func (o *Orchestrator) Status() types.StatusResponse {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	resp := types.StatusResponse{
		ActiveSpecialist: o.active,
		MemMinMB:         o.memMinMB,
		CPUMax:           o.cpuMax,
		AdmissionsTotal:  o.admissions,
		ExhaustionsTotal: o.exhaustions,
		CleanupsTotal:    o.cleanups,
		UptimeSeconds:    int64(now.Sub(o.startTime).Seconds()),
		ServerTimeUnix:   now.Unix(),
	}
	if o.lastAdm != nil {
		a := *o.lastAdm
		resp.LastAdmission = &a
	}
	if o.lastSnap != nil {
		s := *o.lastSnap
		resp.LastSnapshot = &s
	}
	return resp
}
