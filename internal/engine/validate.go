package engine

import (
	"fmt"

	"github.com/kinetlab/kinet/internal/ir"
)

// validate checks every cross-reference in the program once at load so the
// tick path can index tables without bounds anxiety. The compiler never
// produces an invalid program; this guards programs loaded from disk or a
// cache.
func validate(prog *ir.CompiledProgram) error {
	if prog == nil {
		return badProgram("nil program")
	}

	slotOK := func(id ir.SlotID) bool { return id >= 0 && int(id) < len(prog.Slots) }
	instOK := func(id ir.InstanceID) bool {
		return id == ir.NoInstance || (id >= 0 && int(id) < len(prog.Instances))
	}

	for i, m := range prog.Slots {
		if m.ID != ir.SlotID(i) {
			return badProgram("slot %d carries id %d", i, m.ID)
		}
		if !instOK(m.Instance) {
			return badProgram("slot %d references instance %d of %d", i, m.Instance, len(prog.Instances))
		}
		if m.Storage == ir.StorageField && m.Instance == ir.NoInstance {
			return badProgram("field slot %d has no instance", i)
		}
		region := m.Stride * prog.LaneCount(m.Instance)
		if m.Offset < 0 || m.Offset+region > prog.SlabSize {
			return badProgram("slot %d region [%d,%d) exceeds slab size %d", i, m.Offset, m.Offset+region, prog.SlabSize)
		}
	}

	for i, x := range prog.Signals {
		if err := checkSignal(prog, i, x, slotOK); err != nil {
			return err
		}
	}
	for i, x := range prog.Fields {
		if err := checkField(prog, i, x, slotOK, instOK); err != nil {
			return err
		}
	}
	for i, x := range prog.Events {
		if err := checkEvent(prog, i, x, slotOK); err != nil {
			return err
		}
	}

	for i, d := range prog.Draws {
		if !instOK(d.Instance) || d.Instance == ir.NoInstance {
			return badProgram("draw %d has no instance", i)
		}
		if !slotOK(d.Pos) {
			return badProgram("draw %d references pos slot %d", i, d.Pos)
		}
		if d.Color != ir.NoSlot && !slotOK(d.Color) {
			return badProgram("draw %d references color slot %d", i, d.Color)
		}
		if d.Size != ir.NoSlot && !slotOK(d.Size) {
			return badProgram("draw %d references size slot %d", i, d.Size)
		}
	}

	for i, g := range prog.Globals {
		if !slotOK(g.Slot) {
			return badProgram("render global %d references slot %d", i, g.Slot)
		}
		if g.Kind == ir.RenderGlobalCamera && prog.Slot(g.Slot).Stride != ir.CamLanes {
			return badProgram("camera global %d on stride-%d slot", i, prog.Slot(g.Slot).Stride)
		}
	}

	for i, s := range prog.Schedule.Steps {
		if err := checkStep(prog, i, s, slotOK); err != nil {
			return err
		}
	}
	return nil
}

func exprOK[ID ~int](id ID, n int) bool { return int(id) >= 0 && int(id) < n }

func checkSignal(prog *ir.CompiledProgram, i int, x ir.SignalExpr, slotOK func(ir.SlotID) bool) error {
	switch x.Kind {
	case ir.SigSlot:
		if !slotOK(x.Slot) {
			return badProgram("signal %d references slot %d", i, x.Slot)
		}
	case ir.SigOp:
		for a := 0; a < x.Op.Arity(); a++ {
			if !exprOK(x.Args[a], len(prog.Signals)) {
				return badProgram("signal %d references signal %d", i, x.Args[a])
			}
		}
	case ir.SigMake:
		for _, p := range x.Parts {
			if !exprOK(p, len(prog.Signals)) {
				return badProgram("signal %d references signal part %d", i, p)
			}
		}
	}
	return nil
}

func checkField(prog *ir.CompiledProgram, i int, x ir.FieldExpr, slotOK func(ir.SlotID) bool, instOK func(ir.InstanceID) bool) error {
	if !instOK(x.Instance) {
		return badProgram("field %d references instance %d", i, x.Instance)
	}
	switch x.Kind {
	case ir.FldBroadcast:
		if !exprOK(x.Signal, len(prog.Signals)) {
			return badProgram("field %d references signal %d", i, x.Signal)
		}
	case ir.FldSlot:
		if !slotOK(x.Slot) {
			return badProgram("field %d references slot %d", i, x.Slot)
		}
	case ir.FldOp:
		for a := 0; a < x.Op.Arity(); a++ {
			if !exprOK(x.Args[a], len(prog.Fields)) {
				return badProgram("field %d references field %d", i, x.Args[a])
			}
		}
	case ir.FldMake:
		for _, p := range x.Parts {
			if !exprOK(p, len(prog.Fields)) {
				return badProgram("field %d references field part %d", i, p)
			}
		}
	}
	return nil
}

func checkEvent(prog *ir.CompiledProgram, i int, x ir.EventExpr, slotOK func(ir.SlotID) bool) error {
	switch x.Kind {
	case ir.EvtPulse:
		if !exprOK(x.Interval, len(prog.Signals)) {
			return badProgram("event %d references signal %d", i, x.Interval)
		}
		if !slotOK(x.Acc) {
			return badProgram("event %d references accumulator slot %d", i, x.Acc)
		}
		if prog.Slot(x.Acc).Storage != ir.StorageState {
			return badProgram("event %d accumulator is %v storage, want state", i, prog.Slot(x.Acc).Storage)
		}
	case ir.EvtCombine:
		for a := 0; a < 2; a++ {
			if !exprOK(x.Args[a], len(prog.Events)) {
				return badProgram("event %d references event %d", i, x.Args[a])
			}
		}
	}
	return nil
}

func checkStep(prog *ir.CompiledProgram, i int, s ir.ScheduleStep, slotOK func(ir.SlotID) bool) error {
	bad := func(field string, id int) error {
		return &RuntimeError{
			Code:    ErrCodeBadStep,
			Message: fmt.Sprintf("step %d (%v) has invalid %s reference %d", i, s.Kind, field, id),
		}
	}
	switch s.Kind {
	case ir.StepEvalSignal:
		if !exprOK(s.Signal, len(prog.Signals)) {
			return bad("signal", int(s.Signal))
		}
		if !slotOK(s.Slot) {
			return bad("slot", int(s.Slot))
		}
	case ir.StepBuildContinuity, ir.StepApplyContinuity:
		if s.Instance < 0 || int(s.Instance) >= len(prog.Instances) {
			return bad("instance", int(s.Instance))
		}
	case ir.StepMaterializeField:
		if !exprOK(s.Field, len(prog.Fields)) {
			return bad("field", int(s.Field))
		}
		if !slotOK(s.Slot) {
			return bad("slot", int(s.Slot))
		}
	case ir.StepEvalEvent:
		if !exprOK(s.Event, len(prog.Events)) {
			return bad("event", int(s.Event))
		}
		if !slotOK(s.Slot) {
			return bad("slot", int(s.Slot))
		}
	case ir.StepRender:
		if int(s.Draw) < 0 || int(s.Draw) >= len(prog.Draws) {
			return bad("draw", int(s.Draw))
		}
	case ir.StepWriteState:
		if !slotOK(s.Src) {
			return bad("src", int(s.Src))
		}
		if !slotOK(s.Dst) {
			return bad("dst", int(s.Dst))
		}
	default:
		return bad("kind", int(s.Kind))
	}
	return nil
}
