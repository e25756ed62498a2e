package control

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"tierd/internal/registry"
)

// Defaults applied by NewScriptController when fields are unset.
const (
	DefaultStopScript  = "stop_model.sh"
	DefaultStartScript = "start_model.sh"
	DefaultTimeout     = 20 * time.Second
	// waitDelay bounds how long we wait for output pipes after a kill, in
	// case the script left children holding them open.
	waitDelay = 2 * time.Second
)

// ScriptConfig configures a ScriptController.
type ScriptConfig struct {
	Dir         string        // directory holding the scripts
	StopScript  string        // default stop_model.sh
	StartScript string        // default start_model.sh
	Timeout     time.Duration // per call, default 20s
	// Registry, when set, resolves the target so the script receives the
	// model's name, role, host and port as TIERD_MODEL_* variables.
	Registry registry.Source
	Logger   *zerolog.Logger
}

// ScriptController runs "<dir>/stop_model.sh <target>" and
// "<dir>/start_model.sh <target>" with a bounded timeout.
type ScriptController struct {
	stop     string
	start    string
	timeout  time.Duration
	registry registry.Source
	log      zerolog.Logger
}

// NewScriptController applies defaults and returns a controller.
func NewScriptController(cfg ScriptConfig) *ScriptController {
	c := &ScriptController{
		stop:     cfg.StopScript,
		start:    cfg.StartScript,
		timeout:  cfg.Timeout,
		registry: cfg.Registry,
		log:      zerolog.Nop(),
	}
	if c.stop == "" {
		c.stop = DefaultStopScript
	}
	if c.start == "" {
		c.start = DefaultStartScript
	}
	if !filepath.IsAbs(c.stop) {
		c.stop = filepath.Join(cfg.Dir, c.stop)
	}
	if !filepath.IsAbs(c.start) {
		c.start = filepath.Join(cfg.Dir, c.start)
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if cfg.Logger != nil {
		c.log = cfg.Logger.With().Str("component", "control").Logger()
	}
	return c
}

// Pause runs the stop script for target.
func (c *ScriptController) Pause(ctx context.Context, target string) Result {
	return c.run(ctx, "pause", c.stop, target)
}

// Resume runs the start script for target.
func (c *ScriptController) Resume(ctx context.Context, target string) Result {
	return c.run(ctx, "resume", c.start, target)
}

func (c *ScriptController) run(ctx context.Context, action, script, target string) Result {
	start := time.Now()
	res := c.exec(ctx, script, target)
	observeCall(action, res)
	ev := c.log.Info()
	if !res.OK() {
		ev = c.log.Warn().Str("stderr", truncate(res.Stderr, 512))
	}
	ev.Str("action", action).Str("target", target).Int("exit_code", res.ExitCode).
		Dur("dur", time.Since(start)).Msg("control")
	return res
}

func (c *ScriptController) exec(ctx context.Context, script, target string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, script, target)
	cmd.Env = append(os.Environ(), c.env(ctx, target)...)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Result{ExitCode: ExitTimeout, Stdout: stdout.String(), Stderr: "timeout"}
	}
	if err == nil {
		return Result{ExitCode: ExitOK, Stdout: stdout.String(), Stderr: stderr.String()}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return Result{ExitCode: exitErr.ExitCode(), Stdout: stdout.String(), Stderr: stderr.String()}
	}
	return Result{ExitCode: ExitFailure, Stdout: stdout.String(), Stderr: err.Error()}
}

// env resolves target against a fresh registry read. Resolution failures
// are not fatal: the script still receives the raw target argument.
func (c *ScriptController) env(ctx context.Context, target string) []string {
	if c.registry == nil {
		return nil
	}
	reg, err := c.registry.Load(ctx)
	if err != nil {
		c.log.Debug().Err(err).Str("target", target).Msg("registry unavailable for control env")
		return nil
	}
	m, ok := reg.Resolve(target)
	if !ok {
		return nil
	}
	return []string{
		"TIERD_MODEL_NAME=" + m.Name,
		"TIERD_MODEL_ROLE=" + string(m.Role),
		"TIERD_MODEL_HOST=" + m.Host,
		"TIERD_MODEL_PORT=" + strconv.Itoa(m.Port),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s…(%d more bytes)", s[:n], len(s)-n)
}
