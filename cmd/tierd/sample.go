package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tierd/internal/resource"
)

func newSampleCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Print one resource snapshot as seen by the admission gate",
		Long:  "Reads available memory and samples CPU usage over one second, then reports whether a specialist would pass the gate.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.loadConfig()
			if err != nil {
				return err
			}
			cfg = cfg.WithDefaults()
			mon := resource.NewMonitor(resource.Config{ProcPath: cfg.ProcPath})
			memMinMB, cpuMax := cfg.Gate()
			printSnapshot(cmd.OutOrStdout(), mon.Sample(), memMinMB, cpuMax)
			return nil
		},
	}
}

func printSnapshot(w io.Writer, s resource.Snapshot, memMinMB int, cpuMax float64) {
	pass := s.AvailableMemoryMB >= memMinMB && s.CPUUsage <= cpuMax
	fmt.Fprintf(w, "available_memory_mb: %d (min %d)\n", s.AvailableMemoryMB, memMinMB)
	fmt.Fprintf(w, "cpu_usage: %.2f (max %.2f)\n", s.CPUUsage, cpuMax)
	fmt.Fprintf(w, "gate: %s\n", map[bool]string{true: "pass", false: "deny"}[pass])
}
