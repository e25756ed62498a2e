package resource

import (
	"sync"
	"time"
)

// Fixed is a Sampler that always reports the same values without blocking.
type Fixed struct {
	AvailableMemoryMB int
	CPUUsage          float64
}

func (f Fixed) Sample() Snapshot {
	return Snapshot{AvailableMemoryMB: f.AvailableMemoryMB, CPUUsage: f.CPUUsage, TakenAt: time.Now()}
}

// Sequence replays snapshots in order and repeats the last one forever.
type Sequence struct {
	mu    sync.Mutex
	items []Fixed
	calls int
}

// NewSequence returns a Sequence over items. An empty sequence reports zeros.
func NewSequence(items ...Fixed) *Sequence { return &Sequence{items: items} }

func (s *Sequence) Sample() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.items) == 0 {
		return Fixed{}.Sample()
	}
	i := s.calls - 1
	if i >= len(s.items) {
		i = len(s.items) - 1
	}
	return s.items[i].Sample()
}

// Calls reports how many samples were taken.
func (s *Sequence) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
