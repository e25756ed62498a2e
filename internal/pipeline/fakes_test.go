package pipeline

import (
	"context"
	"strings"
	"sync"

	"tierd/internal/llm"
	"tierd/internal/orchestrator"
	"tierd/internal/registry"
	"tierd/pkg/types"
)

func testRegistry() *registry.Registry {
	return registry.MustNew([]types.ModelDescriptor{
		{Name: "gk", Role: types.RoleGatekeeper, Port: 8081},
		{Name: "lib", Role: types.RoleLibrarian, Port: 8082},
		{Name: "math", Role: types.RoleSpecialist, Port: 8083, Domain: []string{"math"}, Priority: 5},
		{Name: "general", Role: types.RoleSpecialist, Port: 8084, Priority: 10},
	})
}

type llmCall struct {
	Model  string
	Prompt string
}

// scriptedLLM answers by model name and prompt prefix. Unmatched calls
// return "".
type scriptedLLM struct {
	mu      sync.Mutex
	answers map[string]map[string]string // model -> prompt prefix -> answer
	calls   []llmCall
	onCall  func(llmCall)
}

func newScriptedLLM() *scriptedLLM { return &scriptedLLM{answers: map[string]map[string]string{}} }

func (s *scriptedLLM) on(model, prefix, answer string) *scriptedLLM {
	if s.answers[model] == nil {
		s.answers[model] = map[string]string{}
	}
	s.answers[model][prefix] = answer
	return s
}

func (s *scriptedLLM) Complete(_ context.Context, m types.ModelDescriptor, prompt string, _ llm.Params) string {
	c := llmCall{Model: m.Name, Prompt: prompt}
	s.mu.Lock()
	s.calls = append(s.calls, c)
	hook := s.onCall
	var out string
	for prefix, ans := range s.answers[m.Name] {
		if strings.HasPrefix(prompt, prefix) {
			out = ans
		}
	}
	s.mu.Unlock()
	if hook != nil {
		hook(c)
	}
	return out
}

func (s *scriptedLLM) models() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.Model
	}
	return out
}

func (s *scriptedLLM) prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	for i, c := range s.calls {
		out[i] = c.Prompt
	}
	return out
}

// fakeAdmitter records orchestrator use.
type fakeAdmitter struct {
	mu        sync.Mutex
	adm       orchestrator.Admission
	err       error
	ensured   []string // preferred names
	cleanups  int
	onCleanup func()
}

func (f *fakeAdmitter) EnsureSpecialistRunning(_ context.Context, preferred, _ string) (orchestrator.Admission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, preferred)
	return f.adm, f.err
}

func (f *fakeAdmitter) CleanupAfterSpecialist(context.Context) {
	f.mu.Lock()
	f.cleanups++
	hook := f.onCleanup
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// memStore is an in-memory knowledge.Store.
type memStore struct {
	mu    sync.Mutex
	kb    map[string]string
	saves int
	err   error
}

func (m *memStore) Load(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string, len(m.kb))
	for k, v := range m.kb {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) Save(_ context.Context, kb map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.kb = kb
	m.saves++
	return nil
}

func (m *memStore) Close() error { return nil }

func newTestPipeline(l llm.Completer, a Admitter, store *memStore) *Pipeline {
	cfg := Config{
		Registry:     registry.StaticSource{Reg: testRegistry()},
		LLM:          l,
		Orchestrator: a,
	}
	if store != nil {
		cfg.Store = store
	}
	return New(cfg)
}

const (
	longGK      = "The capital of France is Paris, on the Seine."
	longLib     = "Librarian: Paris has been the capital since 987."
	longRefined = "Paris is the capital of France (since 987 AD)."
	longSpec    = "The integral of x squared is x cubed over three plus C."
	longRephr   = "Integrating x^2 gives x^3/3 + C, where C is a constant."
)
