package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"tierd/internal/control"
	"tierd/internal/httpapi"
	"tierd/internal/knowledge"
	"tierd/internal/llm"
	"tierd/internal/orchestrator"
	"tierd/internal/pipeline"
	"tierd/internal/registry"
	"tierd/internal/resource"
	"tierd/pkg/types"
)

// fakeModel serves /completion, answering with reply(prompt).
func fakeModel(t *testing.T, reply func(prompt string) string) (string, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"content": reply(req.Prompt)})
	}))
	t.Cleanup(srv.Close)
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	p, _ := strconv.Atoi(port)
	return host, p
}

// byPrefix answers with the first entry whose key prefixes the prompt.
func byPrefix(answers map[string]string) func(string) string {
	return func(prompt string) string {
		for prefix, ans := range answers {
			if strings.HasPrefix(prompt, prefix) {
				return ans
			}
		}
		return ""
	}
}

// stack is a full server wired the way tierd serve wires it, with fake
// model servers, logging control scripts and a fake /proc.
type stack struct {
	srv     *httptest.Server
	orch    *orchestrator.Orchestrator
	dir     string
	logPath string
	kbPath  string
}

type stackOptions struct {
	gatekeeper func(string) string
	librarian  func(string) string
	specialist func(string) string
	memAvailMB int
}

func newStack(t *testing.T, o stackOptions) *stack {
	t.Helper()
	dir := t.TempDir()
	s := &stack{dir: dir, logPath: filepath.Join(dir, "control.log"), kbPath: filepath.Join(dir, "data", "kb.json")}

	nop := func(string) string { return "" }
	if o.gatekeeper == nil {
		o.gatekeeper = nop
	}
	if o.librarian == nil {
		o.librarian = nop
	}
	if o.specialist == nil {
		o.specialist = nop
	}
	gkHost, gkPort := fakeModel(t, o.gatekeeper)
	libHost, libPort := fakeModel(t, o.librarian)
	specHost, specPort := fakeModel(t, o.specialist)
	models := []types.ModelDescriptor{
		{Name: "gk-3b", Role: types.RoleGatekeeper, Host: gkHost, Port: gkPort},
		{Name: "lib-7b", Role: types.RoleLibrarian, Host: libHost, Port: libPort},
		{Name: "math-13b", Role: types.RoleSpecialist, Host: specHost, Port: specPort, Domain: []string{"math"}, Priority: 5},
		// preferred without a domain hint, but its start script always fails
		{Name: "general-13b", Role: types.RoleSpecialist, Host: "127.0.0.1", Port: 1, Priority: 1},
	}
	b, _ := json.MarshalIndent(models, "", "  ")
	regPath := filepath.Join(dir, "models.json")
	writeFile(t, regPath, string(b), 0o644)

	scripts := filepath.Join(dir, "scripts")
	writeFile(t, filepath.Join(scripts, control.DefaultStartScript),
		"#!/bin/sh\necho \"start $1\" >> "+s.logPath+"\n[ \"$1\" = general-13b ] && exit 1\nexit 0\n", 0o755)
	writeFile(t, filepath.Join(scripts, control.DefaultStopScript),
		"#!/bin/sh\necho \"stop $1\" >> "+s.logPath+"\nexit 0\n", 0o755)

	proc := filepath.Join(dir, "proc")
	writeFile(t, filepath.Join(proc, "meminfo"),
		"MemTotal:       16000000 kB\nMemFree:         1000000 kB\nMemAvailable:   "+strconv.Itoa(o.memAvailMB*1024)+" kB\n", 0o644)
	writeFile(t, filepath.Join(proc, "stat"),
		"cpu  100 0 100 800 0 0 0 0 0 0\ncpu0 100 0 100 800 0 0 0 0 0 0\n", 0o644)

	src := registry.NewFileSource(regPath)
	store, err := knowledge.Open(s.kbPath)
	if err != nil {
		t.Fatalf("open kb: %v", err)
	}
	s.orch = orchestrator.New(orchestrator.Config{
		Registry:   src,
		Monitor:    resource.NewMonitor(resource.Config{ProcPath: proc, Window: 5 * time.Millisecond}),
		Controller: control.NewScriptController(control.ScriptConfig{Dir: scripts, Timeout: 5 * time.Second, Registry: src}),
		SlotWait:   5 * time.Second,
	})
	pipe := pipeline.New(pipeline.Config{
		Registry:     src,
		LLM:          llm.NewClient(time.Second, nil),
		Orchestrator: s.orch,
		Store:        store,
	})
	s.srv = httptest.NewServer(httpapi.NewMux(&httpapi.App{Registry: src, Pipeline: pipe, Orchestrator: s.orch}))
	t.Cleanup(s.srv.Close)
	return s
}

func writeFile(t *testing.T, path, content string, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatal(err)
	}
}

func (s *stack) ask(t *testing.T, req types.QueryRequest) types.QueryResponse {
	t.Helper()
	b, _ := json.Marshal(req)
	resp, err := http.Post(s.srv.URL+"/api", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	var out types.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

// controlLog returns the script invocations in order.
func (s *stack) controlLog(t *testing.T) []string {
	t.Helper()
	b, err := os.ReadFile(s.logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSpace(string(b)), "\n")
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}
