package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tierd/internal/config"
	"tierd/pkg/types"
)

// Source yields a registry. Implementations decide whether reads are fresh.
type Source interface {
	Load(ctx context.Context) (*Registry, error)
}

// FileSource rereads the registry file on every Load so operational edits
// take effect on the next query without a restart.
type FileSource struct {
	Path string
}

// NewFileSource returns a Source backed by the file at path.
func NewFileSource(path string) FileSource { return FileSource{Path: path} }

func (s FileSource) Load(ctx context.Context) (*Registry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(s.Path)
}

// StaticSource always returns the same registry.
type StaticSource struct {
	Reg *Registry
}

func (s StaticSource) Load(context.Context) (*Registry, error) {
	if s.Reg == nil {
		return New(nil)
	}
	return s.Reg, nil
}

// entry is one registry record as written in the file. Priority is a
// pointer so an explicit 0 can be told apart from an omitted key.
type entry struct {
	Name     string     `json:"name" yaml:"name" toml:"name"`
	Role     types.Role `json:"role" yaml:"role" toml:"role"`
	Port     int        `json:"port" yaml:"port" toml:"port"`
	Host     string     `json:"host" yaml:"host" toml:"host"`
	Domain   []string   `json:"domain" yaml:"domain" toml:"domain"`
	Priority *int       `json:"priority" yaml:"priority" toml:"priority"`
	MemMB    int        `json:"mem_mb" yaml:"mem_mb" toml:"mem_mb"`
}

func (e entry) descriptor() types.ModelDescriptor {
	m := types.ModelDescriptor{
		Name:     e.Name,
		Role:     e.Role,
		Port:     e.Port,
		Host:     e.Host,
		Domain:   e.Domain,
		Priority: types.DefaultPriority,
		MemMB:    e.MemMB,
	}
	if e.Priority != nil {
		m.Priority = *e.Priority
	}
	return m
}

// fileFormat is the wrapped form; a bare list is accepted too.
type fileFormat struct {
	Models []entry `json:"models" yaml:"models" toml:"models"`
}

// LoadFile parses a registry file (.json, .yaml/.yml, .toml). JSON and YAML
// accept a bare list or {"models": [...]}; TOML uses [[models]] tables.
func LoadFile(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("empty registry path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	// a TOML document is always a table, so only JSON and YAML may be bare lists
	var list []entry
	if strings.EqualFold(filepath.Ext(path), ".toml") || config.Decode(path, b, &list) != nil {
		var wrapped fileFormat
		if err2 := config.Decode(path, b, &wrapped); err2 != nil {
			return nil, fmt.Errorf("parse registry: %w", err2)
		}
		list = wrapped.Models
	}
	models := make([]types.ModelDescriptor, len(list))
	for i, e := range list {
		models[i] = e.descriptor()
	}
	return New(models)
}
