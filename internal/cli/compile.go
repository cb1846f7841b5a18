package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kinetlab/kinet/internal/blocks"
	"github.com/kinetlab/kinet/internal/cache"
	"github.com/kinetlab/kinet/internal/compiler"
	"github.com/kinetlab/kinet/internal/ir"
	"github.com/kinetlab/kinet/internal/patch"
	"github.com/kinetlab/kinet/internal/patchfile"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output    string // output file for canonical program JSON
	CachePath string // sqlite compile cache, empty disables
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <patch.cue>",
		Short: "Compile a patch to a render program",
		Long: `Compile a CUE patch file into a canonical compiled program.

The compiler resolves every port type, inserts broadcast adapters where a
single value feeds a many-lane input, and emits the deterministic per-frame
schedule. Output is canonical JSON; compiling the same patch twice always
produces byte-identical output.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompileCmd(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write canonical program JSON to file")
	cmd.Flags().StringVar(&opts.CachePath, "cache", "", "sqlite compile cache path")

	return cmd
}

func runCompileCmd(opts *CompileOptions, path string, cmd *cobra.Command) error {
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
	formatter.VerboseLog("loaded patch %q: %d blocks, %d edges", p.Name, len(p.Blocks), len(p.Edges))

	prog, err := compileWithCache(opts, formatter, p)
	if err != nil {
		return err
	}

	hash, err := prog.ProgramHash()
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "hashing program", Err: err}
	}

	if opts.Output != "" {
		m, err := ir.CanonicalMap(prog)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "canonicalizing program", Err: err}
		}
		data, err := ir.MarshalCanonical(m)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "marshaling program", Err: err}
		}
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0o644); err != nil {
			return &ExitError{Code: ExitCommandError, Message: "writing output", Err: err}
		}
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]any{
			"program_hash": hash,
			"slots":        len(prog.Slots),
			"steps":        len(prog.Schedule.Steps),
			"slab_size":    prog.SlabSize,
		})
	}
	return formatter.Success(fmt.Sprintf("compiled %s: %d slots, %d steps, hash %s", path, len(prog.Slots), len(prog.Schedule.Steps), hash))
}

// compileWithCache consults the cache before compiling and fills it after.
// Cache failures degrade to plain compilation; only opening a path the
// user explicitly asked for is a hard error.
func compileWithCache(opts *CompileOptions, formatter *OutputFormatter, p *patch.Patch) (*ir.CompiledProgram, error) {
	if opts.CachePath == "" {
		return compilePatch(formatter, p)
	}

	c, err := cache.Open(opts.CachePath)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "opening cache", Err: err}
	}
	defer c.Close()

	key, err := cache.PatchHash(p)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "hashing patch", Err: err}
	}

	ctx := context.Background()
	if prog, ok, err := c.Get(ctx, key); err == nil && ok {
		formatter.VerboseLog("cache hit %s", key)
		return prog, nil
	}

	prog, err := compilePatch(formatter, p)
	if err != nil {
		return nil, err
	}
	if _, err := c.Put(ctx, key, prog); err != nil {
		formatter.VerboseLog("cache store failed: %v", err)
	}
	return prog, nil
}

func compilePatch(formatter *OutputFormatter, p *patch.Patch) (*ir.CompiledProgram, error) {
	result, diags := compiler.Compile(p, blocks.Builtin())
	if len(diags) > 0 {
		return nil, reportDiagnostics(formatter, diags)
	}
	return result.Program, nil
}

// reportDiagnostics prints compile diagnostics and returns the failure
// exit error. Diagnostics arrive canonically sorted from the compiler.
func reportDiagnostics(formatter *OutputFormatter, diags []compiler.Diagnostic) error {
	if formatter.Format == "json" {
		_ = formatter.Error(diags[0].Code, diags[0].Message, diags)
	} else {
		for _, d := range diags {
			fmt.Fprintf(formatter.Writer, "error [%s] %s: %s\n", d.Code, d.Target, d.Message)
		}
	}
	return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d diagnostic(s)", len(diags))}
}

func reportParseError(formatter *OutputFormatter, err error) error {
	var pe *patchfile.ParseError
	if errors.As(err, &pe) {
		_ = formatter.Error(pe.Code, pe.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "patch parse failed", Err: err}
	}
	_ = formatter.Error("E_IO", err.Error(), nil)
	return &ExitError{Code: ExitCommandError, Message: "loading patch", Err: err}
}
