package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kinetlab/kinet/internal/blocks"
)

// NewBlocksCommand creates the blocks command: list the builtin block
// registry with port signatures, the reference card for patch authors.
func NewBlocksCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "blocks",
		Short:         "List available block kinds and their ports",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlocks(rootOpts, cmd)
		},
	}
	return cmd
}

func runBlocks(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	reg := blocks.Builtin()
	kinds := reg.Kinds()

	if opts.Format == "json" {
		var list []map[string]any
		for _, kind := range kinds {
			def, _ := reg.Lookup(kind)
			if def.Adapter {
				continue
			}
			list = append(list, map[string]any{
				"kind":    def.Kind,
				"inputs":  portNames(def.Inputs),
				"outputs": portNames(def.Outputs),
			})
		}
		return formatter.Success(map[string]any{"blocks": list})
	}

	for _, kind := range kinds {
		def, _ := reg.Lookup(kind)
		if def.Adapter {
			// Adapters are compiler-inserted; authors cannot place them.
			continue
		}
		fmt.Fprintf(formatter.Writer, "%s\n", def.Kind)
		for _, in := range def.Inputs {
			fmt.Fprintf(formatter.Writer, "  in  %-10s %s\n", in.Name, portDesc(in))
		}
		for _, out := range def.Outputs {
			fmt.Fprintf(formatter.Writer, "  out %-10s %s\n", out.Name, portDesc(out))
		}
	}
	return nil
}

func portNames(ports []blocks.PortDef) []string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return names
}

func portDesc(p blocks.PortDef) string {
	if p.Poly != "" {
		return "poly(" + p.Poly + ")"
	}
	return p.Payload.String()
}
