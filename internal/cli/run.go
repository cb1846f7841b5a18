package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kinetlab/kinet/internal/blocks"
	"github.com/kinetlab/kinet/internal/compiler"
	"github.com/kinetlab/kinet/internal/engine"
	"github.com/kinetlab/kinet/internal/ir"
	"github.com/kinetlab/kinet/internal/patchfile"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Frames int
	Dt     float64
}

// NewRunCommand creates the run command: compile a patch and tick the
// engine headlessly, printing frame output. Useful for smoke-testing a
// patch and for diffing frame streams between compiler versions.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "run <patch.cue>",
		Short:         "Compile and run a patch headlessly",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Frames, "frames", 1, "number of frames to run")
	cmd.Flags().Float64Var(&opts.Dt, "dt", 1.0/60, "seconds per frame")

	return cmd
}

func runRun(opts *RunOptions, path string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

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
	slog.Debug("patch loaded", "name", p.Name, "blocks", len(p.Blocks), "edges", len(p.Edges))

	result, diags := compiler.Compile(p, blocks.Builtin())
	if len(diags) > 0 {
		return reportDiagnostics(formatter, diags)
	}
	slog.Debug("patch compiled", "slots", len(result.Program.Slots), "steps", len(result.Program.Schedule.Steps))

	eng, err := engine.New(result.Program)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "loading program", Err: err}
	}

	var frames []any
	for i := 0; i < opts.Frames; i++ {
		frame := eng.Tick(opts.Dt)
		if opts.Format == "json" {
			m, err := ir.CanonicalMap(frame)
			if err != nil {
				return &ExitError{Code: ExitCommandError, Message: "canonicalizing frame", Err: err}
			}
			frames = append(frames, m)
			continue
		}
		printFrame(formatter, frame)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]any{"frames": frames})
	}
	return nil
}

func printFrame(formatter *OutputFormatter, f *ir.RenderFrame) {
	fmt.Fprintf(formatter.Writer, "frame %d t=%.4fs camera=%s zoom=%.2f\n",
		f.Frame, f.TimeSecs, f.Camera.Projection, f.Camera.Zoom)
	for _, c := range f.Commands {
		fmt.Fprintf(formatter.Writer, "  draw %s lanes=%d size=%.2f\n", c.Kind, c.Lanes, c.Size)
	}
}
