package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	return port, func() { _ = ln.Close() }
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	root := projectRootFromThisFile(t)
	binPath := filepath.Join(t.TempDir(), "tierd")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/tierd")
	cmd.Dir = root
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

// writeRegistry writes a registry whose models listen on ports nobody serves,
// so every completion comes back empty.
func writeRegistry(t *testing.T, dir string, withGatekeeper bool) string {
	t.Helper()
	models := []map[string]any{
		{"name": "lib-7b", "role": "librarian", "port": 1},
		{"name": "math-13b", "role": "specialist", "port": 1, "domain": []string{"math"}},
	}
	if withGatekeeper {
		models = append([]map[string]any{{"name": "gk-3b", "role": "gatekeeper", "port": 1}}, models...)
	}
	b, _ := json.Marshal(map[string]any{"models": models})
	p := filepath.Join(dir, "models.json")
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatalf("write registry: %v", err)
	}
	return p
}

type serverProc struct {
	cmd  *exec.Cmd
	base string // http base URL, e.g. http://127.0.0.1:18080
}

func startServer(t *testing.T, bin, registryPath string, port int) *serverProc {
	t.Helper()
	dir := t.TempDir()
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	args := []string{"serve",
		"--addr", fmt.Sprintf("127.0.0.1:%d", port),
		"--registry", registryPath,
		"--scripts-dir", dir,
		"--kb", filepath.Join(dir, "kb.json"),
		"--log-format", "json",
	}
	cmd := exec.Command(bin, args...)
	cmd.Env = withoutEnv(os.Environ(), "TIERD_CONFIG", "TIERD_ADDR")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill(); _ = cmd.Wait() })
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return &serverProc{cmd: cmd, base: base}
}

func withoutEnv(env []string, keys ...string) []string {
	out := env[:0:0]
next:
	for _, kv := range env {
		for _, k := range keys {
			if strings.HasPrefix(kv, k+"=") {
				continue next
			}
		}
		out = append(out, kv)
	}
	return out
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func TestBlackbox_Flow(t *testing.T) {
	bin := buildBinary(t)
	reg := writeRegistry(t, t.TempDir(), true)
	// reserve a free port, then release the listener before starting the server
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, reg, port)

	resp, body := get(t, sp.base+"/models")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/models %d %s", resp.StatusCode, string(body))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("/models content-type=%s", ct)
	}
	var modelsResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		t.Fatalf("/models json: %v body=%s", err, string(body))
	}
	if len(modelsResp.Models) != 3 {
		t.Fatalf("expected 3 models, got %d", len(modelsResp.Models))
	}

	if resp, body = get(t, sp.base+"/readyz"); resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz %d %s", resp.StatusCode, string(body))
	}

	// empty input is reported in the body, not the status code
	resp, body = postJSON(t, sp.base+"/api", []byte(`{"text":"   "}`))
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte(`"empty input"`)) {
		t.Fatalf("/api empty %d %s", resp.StatusCode, string(body))
	}

	// no model answers, so the user is offered a deeper dive
	resp, body = postJSON(t, sp.base+"/api", []byte(`{"text":"what is a monad?"}`))
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte(`"needs_deeper"`)) {
		t.Fatalf("/api %d %s", resp.StatusCode, string(body))
	}

	resp, body = get(t, sp.base+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, string(body))
	}
	var statusResp struct {
		MemMinMB int     `json:"mem_min_mb"`
		CPUMax   float64 `json:"cpu_max"`
	}
	if err := json.Unmarshal(body, &statusResp); err != nil {
		t.Fatalf("/status json: %v body=%s", err, string(body))
	}
	if statusResp.MemMinMB != 2200 || statusResp.CPUMax != 0.92 {
		t.Fatalf("unexpected thresholds %+v", statusResp)
	}
}

func TestBlackbox_Readyz_NoGatekeeper_503(t *testing.T) {
	bin := buildBinary(t)
	reg := writeRegistry(t, t.TempDir(), false)
	port, release := findFreePort(t)
	release()
	sp := startServer(t, bin, reg, port)

	resp, body := get(t, sp.base+"/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d, body=%s", resp.StatusCode, string(body))
	}
	resp, body = postJSON(t, sp.base+"/api", []byte(`{"text":"hi"}`))
	if !bytes.Contains(body, []byte(`"gatekeeper not configured"`)) {
		t.Fatalf("expected gatekeeper error, got %d %s", resp.StatusCode, string(body))
	}
}

func TestBlackbox_BadRegistryExits(t *testing.T) {
	bin := buildBinary(t)
	dir := t.TempDir()
	p := filepath.Join(dir, "models.json")
	if err := os.WriteFile(p, []byte(`{"models":[{"name":"x","role":"oracle","port":1}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := exec.Command(bin, "serve", "--addr", "127.0.0.1:0", "--registry", p, "--kb", filepath.Join(dir, "kb.json"))
	cmd.Env = withoutEnv(os.Environ(), "TIERD_CONFIG", "TIERD_ADDR")
	out, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("expected non-zero exit, output=%s", out)
	}
	if !strings.Contains(string(out), "unknown role") {
		t.Fatalf("expected registry error in output, got %s", out)
	}
}
