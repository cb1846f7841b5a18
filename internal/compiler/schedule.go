package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kinetlab/kinet/internal/blocks"
	"github.com/kinetlab/kinet/internal/ir"
)

// structuralChecks validates whole-graph invariants that no per-port
// constraint can express: at most one render-global declaration of each
// kind, and a time root wherever a block reads the frame clock.
func structuralChecks(g *Graph) []Diagnostic {
	var diags []Diagnostic

	var cameras []string
	hasTime := false
	var needsTime []string
	for _, nb := range g.Blocks {
		if nb.Def.RenderGlobal {
			cameras = append(cameras, nb.ID)
		}
		if nb.Def.Kind == blocks.KindTime {
			hasTime = true
		}
		if nb.Def.NeedsTime {
			needsTime = append(needsTime, nb.ID)
		}
	}

	if len(cameras) > 1 {
		slices.Sort(cameras)
		diags = append(diags, Diagnostic{
			Code:    CodeCameraMultiple,
			Target:  TargetRef{Block: cameras[0]},
			Message: fmt.Sprintf("patch declares %d cameras; at most one is allowed", len(cameras)),
			Details: map[string]string{"blocks": strings.Join(cameras, ", ")},
		})
	}

	if !hasTime && len(needsTime) > 0 {
		slices.Sort(needsTime)
		diags = append(diags, Diagnostic{
			Code:    CodeNoTimeRoot,
			Target:  TargetRef{Block: needsTime[0]},
			Message: fmt.Sprintf("block %q reads the frame clock but the patch has no Time block", needsTime[0]),
			Details: map[string]string{"blocks": strings.Join(needsTime, ", ")},
		})
	}

	return diags
}

// stepDeps is the slot-dataflow dependency graph over raw steps: adj[i]
// lists the steps that must run before step i. Reads of state slots are
// excluded; a state slot always holds last frame's value until the
// state-write phase, so reading one is never a same-frame dependency.
// That exclusion is exactly what makes UnitDelay feedback loops legal.
type stepDeps struct {
	adj [][]int
}

// buildStepDeps computes read and write sets for every raw step by walking
// its expression trees, then links each non-state slot read to the step
// that writes the slot. Every value slot has exactly one writer; lowering
// guarantees it, so a second writer is an internal bug.
func buildStepDeps(prog *ir.CompiledProgram, steps []ir.ScheduleStep) stepDeps {
	writer := make([]int, len(prog.Slots))
	for i := range writer {
		writer[i] = -1
	}
	for i, s := range steps {
		var w ir.SlotID
		switch s.Kind {
		case ir.StepEvalSignal, ir.StepMaterializeField, ir.StepEvalEvent:
			w = s.Slot
		case ir.StepWriteState:
			w = s.Dst
		default:
			w = ir.NoSlot
		}
		if w == ir.NoSlot {
			continue
		}
		if writer[w] != -1 {
			panic(fmt.Sprintf("compiler: slot %d written by steps %d and %d", w, writer[w], i))
		}
		writer[w] = i
	}

	deps := stepDeps{adj: make([][]int, len(steps))}
	link := func(i int, slot ir.SlotID) {
		if slot == ir.NoSlot {
			return
		}
		if prog.Slot(slot).Storage == ir.StorageState {
			return
		}
		w := writer[slot]
		if w == -1 || w == i {
			return
		}
		deps.adj[i] = append(deps.adj[i], w)
	}

	for i, s := range steps {
		switch s.Kind {
		case ir.StepEvalSignal:
			walkSignalReads(prog, s.Signal, func(slot ir.SlotID) { link(i, slot) })
		case ir.StepMaterializeField:
			walkFieldReads(prog, s.Field, func(slot ir.SlotID) { link(i, slot) })
		case ir.StepEvalEvent:
			walkEventReads(prog, s.Event, func(slot ir.SlotID) { link(i, slot) })
		case ir.StepRender:
			d := prog.Draws[s.Draw]
			link(i, d.Pos)
			link(i, d.Color)
			link(i, d.Size)
		case ir.StepWriteState:
			link(i, s.Src)
		case ir.StepApplyContinuity:
			// Remaps its own slot in place after field-materialize; the
			// phase order is the only dependency it has.
		case ir.StepBuildContinuity:
			// Reads instance lane identity, no slots.
		}
	}
	return deps
}

func walkSignalReads(prog *ir.CompiledProgram, id ir.SignalExprID, visit func(ir.SlotID)) {
	if id == ir.NoExpr {
		return
	}
	e := prog.Signals[id]
	switch e.Kind {
	case ir.SigSlot:
		visit(e.Slot)
	case ir.SigOp:
		walkSignalReads(prog, e.Args[0], visit)
		walkSignalReads(prog, e.Args[1], visit)
	case ir.SigMake:
		for _, p := range e.Parts {
			walkSignalReads(prog, p, visit)
		}
	}
}

func walkFieldReads(prog *ir.CompiledProgram, id ir.FieldExprID, visit func(ir.SlotID)) {
	if id == ir.NoExpr {
		return
	}
	e := prog.Fields[id]
	switch e.Kind {
	case ir.FldBroadcast:
		walkSignalReads(prog, e.Signal, visit)
	case ir.FldSlot:
		visit(e.Slot)
	case ir.FldOp:
		walkFieldReads(prog, e.Args[0], visit)
		walkFieldReads(prog, e.Args[1], visit)
	case ir.FldMake:
		for _, p := range e.Parts {
			walkFieldReads(prog, p, visit)
		}
	}
}

func walkEventReads(prog *ir.CompiledProgram, id ir.EventExprID, visit func(ir.SlotID)) {
	if id == ir.NoExpr {
		return
	}
	e := prog.Events[id]
	switch e.Kind {
	case ir.EvtPulse:
		walkSignalReads(prog, e.Interval, visit)
	case ir.EvtCombine:
		walkEventReads(prog, e.Args[0], visit)
		walkEventReads(prog, e.Args[1], visit)
	}
}

// tarjanSCC finds strongly connected components over dense step ids.
// Components are discovered in a deterministic order because the roots
// are visited in increasing id order.
func tarjanSCC(adj [][]int) [][]int {
	n := len(adj)
	var (
		counter = 0
		stack   []int
		index   = make([]int, n)
		lowlink = make([]int, n)
		onStack = make([]bool, n)
		sccs    [][]int
	)
	for i := range index {
		index[i] = -1
	}

	var strongConnect func(v int)
	strongConnect = func(v int) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if index[w] == -1 {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], index[w])
			}
		}

		if lowlink[v] == index[v] {
			var scc []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for v := 0; v < n; v++ {
		if index[v] == -1 {
			strongConnect(v)
		}
	}
	return sccs
}

// stepBlockID recovers the owning block id from a step's written slot's
// debug string ("blockID.port"). Diagnostics only.
func stepBlockID(prog *ir.CompiledProgram, s ir.ScheduleStep) string {
	slot := s.Slot
	if s.Kind == ir.StepWriteState {
		slot = s.Dst
	}
	if s.Kind == ir.StepRender {
		slot = prog.Draws[s.Draw].Pos
	}
	if slot == ir.NoSlot {
		return ""
	}
	debug := prog.Slot(slot).Debug
	if i := strings.LastIndex(debug, "."); i >= 0 {
		return debug[:i]
	}
	return debug
}

// checkCycles reports every SCC of size > 1 (and every self-loop) as an
// unbreakable feedback cycle. State-slot reads never contribute edges, so
// any cycle reaching here has no UnitDelay on its path.
func checkCycles(prog *ir.CompiledProgram, steps []ir.ScheduleStep, deps stepDeps) []Diagnostic {
	var diags []Diagnostic
	for _, scc := range tarjanSCC(deps.adj) {
		cyclic := len(scc) > 1
		if !cyclic {
			for _, w := range deps.adj[scc[0]] {
				if w == scc[0] {
					cyclic = true
				}
			}
		}
		if !cyclic {
			continue
		}
		seen := make(map[string]bool)
		var path []string
		for _, v := range scc {
			if id := stepBlockID(prog, steps[v]); id != "" && !seen[id] {
				seen[id] = true
				path = append(path, id)
			}
		}
		slices.Sort(path)
		diags = append(diags, Diagnostic{
			Code:    CodeCycleDetected,
			Target:  TargetRef{Block: path[0]},
			Message: "feedback cycle with no UnitDelay on its path",
			Details: map[string]string{"blocks": strings.Join(path, " -> ")},
		})
	}
	SortDiagnostics(diags)
	return diags
}

// orderSteps produces the total step order: the fixed phase sequence
// outermost, and within each phase a topological order of the slot
// dependencies with emission index as the tie-break. Two compilations of
// the same patch emit the same step slice and therefore the same order.
func orderSteps(steps []ir.ScheduleStep, deps stepDeps) []ir.ScheduleStep {
	// Dependencies never point to a later phase; lowering reads producer
	// slots whose steps live in the same or an earlier phase. Only
	// intra-phase edges constrain the order inside a phase group.
	indegree := make([]int, len(steps))
	succ := make([][]int, len(steps))
	for i, preds := range deps.adj {
		for _, p := range preds {
			if steps[p].Kind.Phase() == steps[i].Kind.Phase() {
				succ[p] = append(succ[p], i)
				indegree[i]++
			}
		}
	}

	byPhase := make(map[ir.Phase][]int)
	for i := range steps {
		ph := steps[i].Kind.Phase()
		byPhase[ph] = append(byPhase[ph], i)
	}

	ordered := make([]ir.ScheduleStep, 0, len(steps))
	for ph := ir.PhaseSignalEval; ph <= ir.PhaseStateWrite; ph++ {
		ready := []int{}
		for _, i := range byPhase[ph] {
			if indegree[i] == 0 {
				ready = append(ready, i)
			}
		}
		for len(ready) > 0 {
			best := 0
			for j := 1; j < len(ready); j++ {
				if ready[j] < ready[best] {
					best = j
				}
			}
			v := ready[best]
			ready = append(ready[:best], ready[best+1:]...)
			ordered = append(ordered, steps[v])
			for _, w := range succ[v] {
				indegree[w]--
				if indegree[w] == 0 {
					ready = append(ready, w)
				}
			}
		}
	}
	return ordered
}

// schedule validates the raw steps and fixes the total per-frame order.
func schedule(b *builder) (ir.ScheduleIR, []Diagnostic) {
	deps := buildStepDeps(b.prog, b.steps)
	if diags := checkCycles(b.prog, b.steps, deps); len(diags) > 0 {
		return ir.ScheduleIR{}, diags
	}
	return ir.ScheduleIR{Steps: orderSteps(b.steps, deps)}, nil
}
