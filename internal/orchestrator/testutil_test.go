package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tierd/internal/control"
	"tierd/internal/registry"
	"tierd/internal/resource"
	"tierd/pkg/types"
)

func testRegistry() *registry.Registry {
	return registry.MustNew([]types.ModelDescriptor{
		{Name: "gk", Role: types.RoleGatekeeper, Port: 8081, MemMB: 1200},
		{Name: "lib", Role: types.RoleLibrarian, Port: 8082, MemMB: 900},
		{Name: "code", Role: types.RoleSpecialist, Port: 8084, Domain: []string{"code"}, Priority: 10},
		{Name: "math", Role: types.RoleSpecialist, Port: 8083, Domain: []string{"math"}, Priority: 5},
	})
}

// mutableSampler reports values the test can change between samples.
type mutableSampler struct {
	mu  sync.Mutex
	mem int
	cpu float64
}

func (s *mutableSampler) set(mem int, cpu float64) {
	s.mu.Lock()
	s.mem, s.cpu = mem, cpu
	s.mu.Unlock()
}

func (s *mutableSampler) Sample() resource.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return resource.Snapshot{AvailableMemoryMB: s.mem, CPUUsage: s.cpu, TakenAt: time.Now()}
}

type failingSource struct{}

func (failingSource) Load(context.Context) (*registry.Registry, error) {
	return nil, errors.New("models.json: permission denied")
}

func newTestOrchestrator(t *testing.T, mon resource.Sampler, rec *control.Recorder, mut func(*Config)) (*Orchestrator, *MemoryPublisher) {
	t.Helper()
	pub := NewMemoryPublisher()
	cfg := Config{
		Registry:   registry.StaticSource{Reg: testRegistry()},
		Monitor:    mon,
		Controller: rec,
		SlotWait:   time.Second,
		Publisher:  pub,
	}
	if mut != nil {
		mut(&cfg)
	}
	return New(cfg), pub
}

func assertCalls(t *testing.T, got []control.Call, want ...control.Call) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("calls: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d: got %v, want %v (all: %v)", i, got[i], want[i], got)
		}
	}
}

func pause(target string) control.Call  { return control.Call{Action: "pause", Target: target} }
func resume(target string) control.Call { return control.Call{Action: "resume", Target: target} }
