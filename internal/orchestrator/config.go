package orchestrator

import (
	"time"

	"github.com/rs/zerolog"

	"tierd/internal/control"
	"tierd/internal/registry"
	"tierd/internal/resource"
)

// Defaults applied when the corresponding Config fields are unset.
const (
	DefaultMemMinMB = 2200
	DefaultCPUMax   = 0.92
	DefaultSlotWait = 2 * time.Minute
)

// Config encapsulates the tunables for New.
type Config struct {
	Registry   registry.Source
	Monitor    resource.Sampler
	Controller control.Controller

	// nil selects the default. 0 is honored: no memory floor, or admit only
	// when the CPU is idle. CPUMax is clamped to [0,1].
	MemMinMB *int
	CPUMax   *float64
	SlotWait time.Duration
	// SkipFailedStarts stops retrying a candidate in later phases once its
	// start script failed. By default every candidate is retried per phase.
	SkipFailedStarts bool

	Publisher EventPublisher
	Logger    *zerolog.Logger
}

// thresholds resolves the gate bounds.
func (c Config) thresholds() (memMinMB int, cpuMax float64) {
	memMinMB, cpuMax = DefaultMemMinMB, DefaultCPUMax
	if c.MemMinMB != nil {
		memMinMB = max(*c.MemMinMB, 0)
	}
	if c.CPUMax != nil {
		cpuMax = min(max(*c.CPUMax, 0), 1)
	}
	return memMinMB, cpuMax
}

func (c Config) withDefaults() Config {
	if c.SlotWait <= 0 {
		c.SlotWait = DefaultSlotWait
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	return c
}
