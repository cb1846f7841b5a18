package compiler

import (
	"github.com/kinetlab/kinet/internal/ir"
	"github.com/kinetlab/kinet/internal/patch"
)

// builder accumulates the compiled program while block lowerers run. Slots
// and table entries are handed out in emission order; since lowering walks
// blocks in sorted order, the resulting ids are deterministic.
type builder struct {
	prog       *ir.CompiledProgram
	instIdx    map[string]ir.InstanceID
	slotByPort map[patch.PortKey]ir.SlotID
	steps      []ir.ScheduleStep // raw, unordered; the scheduler owns ordering
}

func newBuilder() *builder {
	return &builder{
		prog: &ir.CompiledProgram{
			Slots:     []ir.SlotMeta{},
			Instances: []ir.InstanceDecl{},
			Signals:   []ir.SignalExpr{},
			Fields:    []ir.FieldExpr{},
			Events:    []ir.EventExpr{},
			Draws:     []ir.DrawDecl{},
			Globals:   []ir.RenderGlobal{},
			Schedule:  ir.ScheduleIR{Steps: []ir.ScheduleStep{}},
		},
		instIdx:    make(map[string]ir.InstanceID),
		slotByPort: make(map[patch.PortKey]ir.SlotID),
	}
}

// instance interns a lane group, deduplicating by ref.
func (b *builder) instance(ref ir.InstanceRef, count int) ir.InstanceID {
	if id, ok := b.instIdx[ref.String()]; ok {
		return id
	}
	id := ir.InstanceID(len(b.prog.Instances))
	b.prog.Instances = append(b.prog.Instances, ir.InstanceDecl{ID: id, Ref: ref, Count: count})
	b.instIdx[ref.String()] = id
	return id
}

// allocSlot reserves slab space for one logical value. Field slots reserve
// stride lanes per instance lane.
func (b *builder) allocSlot(storage ir.StorageKind, stride int, inst ir.InstanceID, debug string) ir.SlotID {
	id := ir.SlotID(len(b.prog.Slots))
	lanes := stride
	if inst != ir.NoInstance {
		lanes = stride * b.prog.Instances[inst].Count
	}
	b.prog.Slots = append(b.prog.Slots, ir.SlotMeta{
		ID:       id,
		Offset:   b.prog.SlabSize,
		Stride:   stride,
		Storage:  storage,
		Instance: inst,
		Debug:    debug,
	})
	b.prog.SlabSize += lanes
	return id
}

// bindPort records the slot holding an output port's value.
func (b *builder) bindPort(key patch.PortKey, slot ir.SlotID) {
	b.slotByPort[key] = slot
}

// portSlot returns the slot bound to an output port. Lowering runs after
// slot allocation covered every output, so a miss is an internal fault.
func (b *builder) portSlot(key patch.PortKey) ir.SlotID {
	slot, ok := b.slotByPort[key]
	if !ok {
		panic("compiler: no slot bound for port " + key.String())
	}
	return slot
}

func (b *builder) sig(e ir.SignalExpr) ir.SignalExprID {
	id := ir.SignalExprID(len(b.prog.Signals))
	b.prog.Signals = append(b.prog.Signals, e)
	return id
}

func (b *builder) fld(e ir.FieldExpr) ir.FieldExprID {
	id := ir.FieldExprID(len(b.prog.Fields))
	b.prog.Fields = append(b.prog.Fields, e)
	return id
}

func (b *builder) evt(e ir.EventExpr) ir.EventExprID {
	id := ir.EventExprID(len(b.prog.Events))
	b.prog.Events = append(b.prog.Events, e)
	return id
}

func (b *builder) draw(d ir.DrawDecl) ir.DrawID {
	id := ir.DrawID(len(b.prog.Draws))
	d.ID = id
	b.prog.Draws = append(b.prog.Draws, d)
	return id
}

func (b *builder) global(g ir.RenderGlobal) {
	b.prog.Globals = append(b.prog.Globals, g)
}

func (b *builder) step(s ir.ScheduleStep) {
	b.steps = append(b.steps, s)
}

// blankStep returns a step with every id field at its sentinel; step
// constructors below fill in only what their kind uses.
func blankStep(kind ir.StepKind) ir.ScheduleStep {
	return ir.ScheduleStep{
		Kind:     kind,
		Signal:   ir.NoExpr,
		Field:    ir.NoExpr,
		Event:    ir.NoExpr,
		Slot:     ir.NoSlot,
		Src:      ir.NoSlot,
		Dst:      ir.NoSlot,
		Instance: ir.NoInstance,
		Draw:     -1,
	}
}

func stepEvalSignal(sig ir.SignalExprID, slot ir.SlotID) ir.ScheduleStep {
	s := blankStep(ir.StepEvalSignal)
	s.Signal = sig
	s.Slot = slot
	return s
}

func stepMaterializeField(fld ir.FieldExprID, slot ir.SlotID, inst ir.InstanceID) ir.ScheduleStep {
	s := blankStep(ir.StepMaterializeField)
	s.Field = fld
	s.Slot = slot
	s.Instance = inst
	return s
}

func stepBuildContinuity(inst ir.InstanceID) ir.ScheduleStep {
	s := blankStep(ir.StepBuildContinuity)
	s.Instance = inst
	return s
}

func stepApplyContinuity(inst ir.InstanceID) ir.ScheduleStep {
	s := blankStep(ir.StepApplyContinuity)
	s.Instance = inst
	return s
}

func stepEvalEvent(evt ir.EventExprID, slot ir.SlotID) ir.ScheduleStep {
	s := blankStep(ir.StepEvalEvent)
	s.Event = evt
	s.Slot = slot
	return s
}

func stepRender(draw ir.DrawID) ir.ScheduleStep {
	s := blankStep(ir.StepRender)
	s.Draw = draw
	return s
}

func stepWriteState(src, dst ir.SlotID) ir.ScheduleStep {
	s := blankStep(ir.StepWriteState)
	s.Src = src
	s.Dst = dst
	return s
}
