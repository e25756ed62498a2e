package llm

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"tierd/pkg/types"
)

// modelFor points a descriptor at an httptest server.
func modelFor(t *testing.T, srv *httptest.Server) types.ModelDescriptor {
	t.Helper()
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	p, _ := strconv.Atoi(port)
	return types.ModelDescriptor{Name: "m", Role: types.RoleGatekeeper, Host: host, Port: p}
}

func TestComplete_ContentField(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/completion" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"content":"  Paris is the capital of France.  "}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, nil)
	out := c.Complete(context.Background(), modelFor(t, srv), "capital of France?", GatekeeperParams)
	if out != "Paris is the capital of France." {
		t.Fatalf("got %q", out)
	}
	if got.Prompt != "capital of France?" || got.NPredict != 256 || got.Temperature != 0.7 || !got.CachePrompt {
		t.Fatalf("request payload: %+v", got)
	}
}

func TestComplete_TextFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":"","text":"from text"}`))
	}))
	defer srv.Close()
	if out := NewClient(0, nil).Complete(context.Background(), modelFor(t, srv), "q", LibrarianParams); out != "from text" {
		t.Fatalf("got %q", out)
	}
}

func TestComplete_FailuresYieldEmpty(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) { http.Error(w, "boom", http.StatusInternalServerError) },
		"json":   func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`not json`)) },
		"empty":  func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{}`)) },
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			if out := NewClient(0, nil).Complete(context.Background(), modelFor(t, srv), "q", SpecialistParams); out != "" {
				t.Fatalf("expected empty, got %q", out)
			}
		})
	}
}

func TestComplete_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	m := modelFor(t, srv)
	srv.Close()
	if out := NewClient(200*time.Millisecond, nil).Complete(context.Background(), m, "q", GatekeeperParams); out != "" {
		t.Fatalf("expected empty, got %q", out)
	}
}

func TestComplete_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := LibrarianParams
	p.Timeout = 50 * time.Millisecond
	start := time.Now()
	if out := NewClient(0, nil).Complete(context.Background(), modelFor(t, srv), "q", p); out != "" {
		t.Fatalf("expected empty, got %q", out)
	}
	if el := time.Since(start); el > 2*time.Second {
		t.Fatalf("timeout not applied: %v", el)
	}
}

func TestEndpoint(t *testing.T) {
	if got := Endpoint(types.ModelDescriptor{Port: 8081}); got != "http://127.0.0.1:8081/completion" {
		t.Fatalf("got %q", got)
	}
	if got := Endpoint(types.ModelDescriptor{Host: "::1", Port: 9000}); got != "http://[::1]:9000/completion" {
		t.Fatalf("got %q", got)
	}
}
