package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kinetlab/kinet/internal/blocks"
	"github.com/kinetlab/kinet/internal/compiler"
	"github.com/kinetlab/kinet/internal/patchfile"
)

// NewCheckCommand creates the check command: compile for diagnostics only,
// no artifact. This is what an editor integration polls on every save.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "check <patch.cue>",
		Short:         "Type-check a patch without emitting a program",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	p, err := patchfile.LoadFile(path)
	if err != nil {
		return reportParseError(formatter, err)
	}

	result, diags := compiler.Compile(p, blocks.Builtin())
	if len(diags) > 0 {
		return reportDiagnostics(formatter, diags)
	}

	if opts.Format == "json" {
		ports := result.Facts.Ports
		return formatter.Success(map[string]any{
			"blocks": len(p.Blocks),
			"edges":  len(p.Edges),
			"ports":  len(ports),
		})
	}
	return formatter.Success(fmt.Sprintf("%s: ok (%d blocks, %d edges)", path, len(p.Blocks), len(p.Edges)))
}
