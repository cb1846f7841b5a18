package compiler

import (
	"fmt"

	"github.com/kinetlab/kinet/internal/blocks"
	"github.com/kinetlab/kinet/internal/ir"
	"github.com/kinetlab/kinet/internal/patch"
)

// Result is a successful compilation: the runnable program plus the type
// facts the editor overlays on the patch (port types, instances, inserted
// adapters show up as derived blocks in the facts' port keys).
type Result struct {
	Program *ir.CompiledProgram
	Facts   *TypeFacts
}

// Compile runs the full pipeline on an authored patch: normalization and
// type solving to fixpoint, structural validation, lowering, scheduling.
// It never mutates its input; adapter and default-const insertion happen
// on an internal clone. On failure the diagnostics are canonically sorted
// and the result is nil; the two are mutually exclusive.
func Compile(p *patch.Patch, reg *blocks.Registry) (*Result, []Diagnostic) {
	work := clonePatch(p)
	work.Sort()
	if err := work.Validate(); err != nil {
		return nil, []Diagnostic{{
			Code:    CodeBadEdge,
			Message: err.Error(),
		}}
	}

	g, facts, diags := normalizeAndSolve(work, reg)
	if len(diags) > 0 {
		return nil, diags
	}

	if diags := structuralChecks(g); len(diags) > 0 {
		SortDiagnostics(diags)
		return nil, diags
	}

	b, err := lowerProgram(g, facts)
	if err != nil {
		// Lowering failures are compiler bugs surfaced as diagnostics so
		// the CLI has one rendering path.
		return nil, []Diagnostic{{
			Code:    CodeUnknownBlock,
			Message: fmt.Sprintf("lowering failed: %v", err),
		}}
	}

	sched, diags := schedule(b)
	if len(diags) > 0 {
		return nil, diags
	}
	b.prog.Schedule = sched

	return &Result{Program: b.prog, Facts: facts}, nil
}
