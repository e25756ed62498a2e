package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"tierd/internal/common/fsutil"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr         string `json:"addr" yaml:"addr" toml:"addr"`
	RegistryPath string `json:"registry_path" yaml:"registry_path" toml:"registry_path"`
	ScriptsDir   string `json:"scripts_dir" yaml:"scripts_dir" toml:"scripts_dir"`
	KBPath       string `json:"kb_path" yaml:"kb_path" toml:"kb_path"`
	ProcPath     string `json:"proc_path" yaml:"proc_path" toml:"proc_path"`

	// Admission gate. The thresholds are pointers so an explicit 0 (no memory
	// floor, or admit only on an idle CPU) survives WithDefaults.
	MemMinMB         *int     `json:"mem_min_mb" yaml:"mem_min_mb" toml:"mem_min_mb"`
	CPUMax           *float64 `json:"cpu_max" yaml:"cpu_max" toml:"cpu_max"`
	SlotWaitSeconds  int      `json:"slot_wait_seconds" yaml:"slot_wait_seconds" toml:"slot_wait_seconds"`
	SkipFailedStarts bool     `json:"skip_failed_starts" yaml:"skip_failed_starts" toml:"skip_failed_starts"`

	ControlTimeoutSeconds    int `json:"control_timeout_seconds" yaml:"control_timeout_seconds" toml:"control_timeout_seconds"`
	GatekeeperTimeoutSeconds int `json:"gatekeeper_timeout_seconds" yaml:"gatekeeper_timeout_seconds" toml:"gatekeeper_timeout_seconds"`
	LibrarianTimeoutSeconds  int `json:"librarian_timeout_seconds" yaml:"librarian_timeout_seconds" toml:"librarian_timeout_seconds"`
	SpecialistTimeoutSeconds int `json:"specialist_timeout_seconds" yaml:"specialist_timeout_seconds" toml:"specialist_timeout_seconds"`
	QueryTimeoutSeconds      int `json:"query_timeout_seconds" yaml:"query_timeout_seconds" toml:"query_timeout_seconds"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods  []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders  []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`
}

// Defaults applied by WithDefaults when the corresponding field is unset.
const (
	DefaultAddr                  = "127.0.0.1:8765"
	DefaultRegistryPath          = "models.json"
	DefaultScriptsDir            = "scripts"
	DefaultKBPath                = "data/kb.json"
	DefaultProcPath              = "/proc"
	DefaultMemMinMB              = 2200
	DefaultCPUMax                = 0.92
	DefaultSlotWaitSeconds       = 120
	DefaultControlTimeoutSeconds = 20
	DefaultGatekeeperTimeout     = 30
	DefaultLibrarianTimeout      = 25
	DefaultSpecialistTimeout     = 60
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "console"
	DefaultMaxBodyBytes          = 1 << 20
)

// WithDefaults returns a copy of c with every unset field filled in.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.RegistryPath == "" {
		c.RegistryPath = DefaultRegistryPath
	}
	if c.ScriptsDir == "" {
		c.ScriptsDir = DefaultScriptsDir
	}
	if c.KBPath == "" {
		c.KBPath = DefaultKBPath
	}
	if c.ProcPath == "" {
		c.ProcPath = DefaultProcPath
	}
	switch {
	case c.MemMinMB == nil:
		c.MemMinMB = ptr(DefaultMemMinMB)
	case *c.MemMinMB < 0:
		c.MemMinMB = ptr(0)
	}
	switch {
	case c.CPUMax == nil:
		c.CPUMax = ptr(DefaultCPUMax)
	case *c.CPUMax < 0:
		c.CPUMax = ptr(0.0)
	case *c.CPUMax > 1:
		c.CPUMax = ptr(1.0)
	}
	if c.SlotWaitSeconds <= 0 {
		c.SlotWaitSeconds = DefaultSlotWaitSeconds
	}
	if c.ControlTimeoutSeconds <= 0 {
		c.ControlTimeoutSeconds = DefaultControlTimeoutSeconds
	}
	if c.GatekeeperTimeoutSeconds <= 0 {
		c.GatekeeperTimeoutSeconds = DefaultGatekeeperTimeout
	}
	if c.LibrarianTimeoutSeconds <= 0 {
		c.LibrarianTimeoutSeconds = DefaultLibrarianTimeout
	}
	if c.SpecialistTimeoutSeconds <= 0 {
		c.SpecialistTimeoutSeconds = DefaultSpecialistTimeout
	}
	if c.QueryTimeoutSeconds < 0 {
		c.QueryTimeoutSeconds = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// Gate returns the admission thresholds; call it on a defaulted Config.
func (c Config) Gate() (memMinMB int, cpuMax float64) {
	memMinMB, cpuMax = DefaultMemMinMB, DefaultCPUMax
	if c.MemMinMB != nil {
		memMinMB = *c.MemMinMB
	}
	if c.CPUMax != nil {
		cpuMax = *c.CPUMax
	}
	return memMinMB, cpuMax
}

func ptr[T any](v T) *T { return &v }

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
// Relative paths inside the file are anchored at the file's directory.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	if err := DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	base := filepath.Dir(path)
	for _, p := range []*string{&cfg.RegistryPath, &cfg.ScriptsDir, &cfg.KBPath} {
		r, err := fsutil.Resolve(base, *p)
		if err != nil {
			return cfg, err
		}
		*p = r
	}
	return cfg, nil
}

// DecodeFile unmarshals the file at path into v, choosing the codec by extension.
func DecodeFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return Decode(path, b, v)
}

// Decode unmarshals b into v using the codec matching path's extension.
func Decode(path string, b []byte, v any) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, v); err != nil {
			return fmt.Errorf("yaml %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(b, v); err != nil {
			return fmt.Errorf("json %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(b, v); err != nil {
			return fmt.Errorf("toml %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
	return nil
}
