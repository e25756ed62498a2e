package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tierd/internal/config"
	"tierd/internal/control"
	"tierd/internal/httpapi"
	"tierd/internal/knowledge"
	"tierd/internal/llm"
	"tierd/internal/orchestrator"
	"tierd/internal/pipeline"
	"tierd/internal/registry"
	"tierd/internal/resource"
)

type serveFlags struct {
	addr         string
	registryPath string
	scriptsDir   string
	kbPath       string
	memMinMB     int
	cpuMax       float64
	cors         bool
	corsOrigins  string
}

func newServeCmd(ro *rootOptions) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the query API",
		Example: "  tierd serve --config /etc/tierd/config.yaml\n" +
			"  TIERD_ADDR=0.0.0.0:8765 tierd serve --registry models.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.loadConfig()
			if err != nil {
				return err
			}
			applyServeFlags(cmd, f, &cfg)
			return serve(cmd.Context(), cfg.WithDefaults())
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", envOr("TIERD_ADDR", config.DefaultAddr), "HTTP listen address (defaults TIERD_ADDR)")
	fl.StringVar(&f.registryPath, "registry", config.DefaultRegistryPath, "Model registry file")
	fl.StringVar(&f.scriptsDir, "scripts-dir", config.DefaultScriptsDir, "Directory with start_model.sh and stop_model.sh")
	fl.StringVar(&f.kbPath, "kb", config.DefaultKBPath, "Knowledge store (.json file or .db/.sqlite)")
	fl.IntVar(&f.memMinMB, "mem-min-mb", config.DefaultMemMinMB, "Minimum available memory to start a specialist (0 disables the floor)")
	fl.Float64Var(&f.cpuMax, "cpu-max", config.DefaultCPUMax, "Maximum CPU usage [0-1] to start a specialist")
	fl.BoolVar(&f.cors, "cors", false, "Enable CORS")
	fl.StringVar(&f.corsOrigins, "cors-origins", "", "Comma-separated allowed origins")
	return cmd
}

// applyServeFlags lets explicitly set flags win over the config file. The
// listen address also honors TIERD_ADDR when neither sets it.
func applyServeFlags(cmd *cobra.Command, f *serveFlags, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("addr") || cfg.Addr == "" {
		cfg.Addr = f.addr
	}
	if fl.Changed("registry") {
		cfg.RegistryPath = f.registryPath
	}
	if fl.Changed("scripts-dir") {
		cfg.ScriptsDir = f.scriptsDir
	}
	if fl.Changed("kb") {
		cfg.KBPath = f.kbPath
	}
	if fl.Changed("mem-min-mb") {
		cfg.MemMinMB = &f.memMinMB
	}
	if fl.Changed("cpu-max") {
		cfg.CPUMax = &f.cpuMax
	}
	if fl.Changed("cors") {
		cfg.CORSEnabled = f.cors
	}
	if fl.Changed("cors-origins") {
		cfg.CORSOrigins = splitCSV(f.corsOrigins)
	}
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, stderr)
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	regSrc := registry.NewFileSource(cfg.RegistryPath)
	reg, err := regSrc.Load(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}
	store, err := knowledge.Open(cfg.KBPath)
	if err != nil {
		return fmt.Errorf("open knowledge store: %w", err)
	}
	defer store.Close()

	orch := orchestrator.New(orchestrator.Config{
		Registry: regSrc,
		Monitor:  resource.NewMonitor(resource.Config{ProcPath: cfg.ProcPath, Logger: &logger}),
		Controller: control.NewScriptController(control.ScriptConfig{
			Dir:      cfg.ScriptsDir,
			Timeout:  time.Duration(cfg.ControlTimeoutSeconds) * time.Second,
			Registry: regSrc,
			Logger:   &logger,
		}),
		MemMinMB:         cfg.MemMinMB,
		CPUMax:           cfg.CPUMax,
		SlotWait:         time.Duration(cfg.SlotWaitSeconds) * time.Second,
		SkipFailedStarts: cfg.SkipFailedStarts,
		Logger:           &logger,
	})
	pipe := pipeline.New(pipeline.Config{
		Registry:     regSrc,
		LLM:          llm.NewClient(5*time.Second, &logger),
		Orchestrator: orch,
		Store:        store,
		Gatekeeper:   withTimeout(llm.GatekeeperParams, cfg.GatekeeperTimeoutSeconds),
		Librarian:    withTimeout(llm.LibrarianParams, cfg.LibrarianTimeoutSeconds),
		Specialist:   withTimeout(llm.SpecialistParams, cfg.SpecialistTimeoutSeconds),
		Logger:       &logger,
	})

	httpapi.SetLogger(logger)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetQueryTimeoutSeconds(int64(cfg.QueryTimeoutSeconds))
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, cfg.CORSMethods, cfg.CORSHeaders)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(&httpapi.App{Registry: regSrc, Pipeline: pipe, Orchestrator: orch}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("registry", cfg.RegistryPath).Int("models", reg.Len()).
			Str("kb", cfg.KBPath).Msg("tierd listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	// a specialist admitted by an interrupted query must not outlive us
	if _, held := orch.Active(); held {
		orch.CleanupAfterSpecialist(sctx)
	}
	return nil
}

func withTimeout(p llm.Params, sec int) llm.Params {
	if sec > 0 {
		p.Timeout = time.Duration(sec) * time.Second
	}
	return p
}
