// Package resource samples host memory and CPU for the admission gate.
//
// Sampling is synchronous and deliberately slow: CPU usage needs two reads
// of /proc/stat one window apart, so every Sample blocks for about a second.
// Callers treat that as a fixed, non-cancelable cost; tests substitute Fixed
// or Sequence.
package resource

import (
	"time"

	"github.com/prometheus/procfs"
	"github.com/rs/zerolog"
)

// Neutral CPU value reported when usage cannot be measured.
const UnknownCPUUsage = 0.5

// DefaultWindow is the CPU sampling window.
const DefaultWindow = time.Second

// Snapshot is one reading of host resources. Never cache it: a stale
// snapshot makes admission unsafe.
type Snapshot struct {
	AvailableMemoryMB int
	CPUUsage          float64 // 0.0–1.0
	TakenAt           time.Time
}

// Sampler produces a fresh Snapshot per call. Implementations may block.
type Sampler interface {
	Sample() Snapshot
}

// Config tunes a Monitor. Zero values select defaults.
type Config struct {
	ProcPath string        // default /proc
	Window   time.Duration // default 1s
	Logger   *zerolog.Logger
}

// Monitor reads /proc via procfs.
type Monitor struct {
	procPath string
	window   time.Duration
	sleep    func(time.Duration)
	log      zerolog.Logger
}

// NewMonitor builds a Monitor from cfg.
func NewMonitor(cfg Config) *Monitor {
	m := &Monitor{
		procPath: cfg.ProcPath,
		window:   cfg.Window,
		sleep:    time.Sleep,
		log:      zerolog.Nop(),
	}
	if m.procPath == "" {
		m.procPath = procfs.DefaultMountPoint
	}
	if m.window <= 0 {
		m.window = DefaultWindow
	}
	if cfg.Logger != nil {
		m.log = cfg.Logger.With().Str("component", "resource").Logger()
	}
	return m
}

// Sample reads available memory, then measures CPU usage over one window.
func (m *Monitor) Sample() Snapshot {
	s := Snapshot{
		AvailableMemoryMB: m.availableMemoryMB(),
		CPUUsage:          m.cpuUsage(),
		TakenAt:           time.Now(),
	}
	m.log.Debug().Int("available_mb", s.AvailableMemoryMB).Float64("cpu", s.CPUUsage).Msg("sample")
	return s
}

// availableMemoryMB fails closed: any error reports 0 MB so admission is denied.
func (m *Monitor) availableMemoryMB() int {
	fs, err := procfs.NewFS(m.procPath)
	if err != nil {
		m.log.Warn().Err(err).Msg("open procfs")
		return 0
	}
	mi, err := fs.Meminfo()
	if err != nil {
		m.log.Warn().Err(err).Msg("read meminfo")
		return 0
	}
	if mi.MemAvailable == nil {
		m.log.Warn().Msg("meminfo has no MemAvailable")
		return 0
	}
	return int(*mi.MemAvailable / 1024)
}

// cpuUsage fails neutral: missing data must not categorically block specialists.
func (m *Monitor) cpuUsage() float64 {
	fs, err := procfs.NewFS(m.procPath)
	if err != nil {
		m.log.Warn().Err(err).Msg("open procfs")
		return UnknownCPUUsage
	}
	idle1, total1, err := readCPU(fs)
	if err != nil {
		m.log.Warn().Err(err).Msg("read stat")
		return UnknownCPUUsage
	}
	m.sleep(m.window)
	idle2, total2, err := readCPU(fs)
	if err != nil {
		m.log.Warn().Err(err).Msg("read stat")
		return UnknownCPUUsage
	}
	return usage(idle2-idle1, total2-total1)
}

func readCPU(fs procfs.FS) (idle, total float64, err error) {
	st, err := fs.Stat()
	if err != nil {
		return 0, 0, err
	}
	c := st.CPUTotal
	total = c.User + c.Nice + c.System + c.Idle + c.Iowait + c.IRQ + c.SoftIRQ + c.Steal + c.Guest + c.GuestNice
	return c.Idle, total, nil
}

// usage derives 1 - idle/total over a window, clamped to [0,1].
func usage(idleDelta, totalDelta float64) float64 {
	if totalDelta <= 0 {
		return UnknownCPUUsage
	}
	u := 1.0 - idleDelta/totalDelta
	switch {
	case u < 0:
		return 0
	case u > 1:
		return 1
	}
	return u
}
