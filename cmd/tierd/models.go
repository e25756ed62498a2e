package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tierd/internal/registry"
	"tierd/pkg/types"
)

func newModelsCmd(ro *rootOptions) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "models [name...]",
		Short: "Print the model registry, or only the named models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("registry") || cfg.RegistryPath == "" {
				cfg.RegistryPath = path
			}
			reg, err := registry.LoadFile(cfg.RegistryPath)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				if reg, err = pick(reg, args); err != nil {
					return err
				}
			}
			return printModels(cmd.OutOrStdout(), reg)
		},
	}
	cmd.Flags().StringVar(&path, "registry", "models.json", "Model registry file")
	return cmd
}

// pick narrows reg to names, failing on the first unknown one.
func pick(reg *registry.Registry, names []string) (*registry.Registry, error) {
	out := make([]types.ModelDescriptor, 0, len(names))
	for _, n := range names {
		m, err := reg.Lookup(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return registry.New(out)
}

func printModels(w io.Writer, reg *registry.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tROLE\tENDPOINT\tPRIORITY\tDOMAINS\tMEM_MB")
	for _, m := range reg.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s:%d\t%d\t%s\t%d\n",
			m.Name, m.Role, m.Host, m.Port, m.Priority, strings.Join(m.Domain, ","), m.MemMB)
	}
	return tw.Flush()
}
