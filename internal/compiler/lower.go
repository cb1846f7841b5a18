package compiler

import (
	"fmt"
	"math"

	"github.com/kinetlab/kinet/internal/blocks"
	"github.com/kinetlab/kinet/internal/ir"
	"github.com/kinetlab/kinet/internal/patch"
)

// Block lowering. Each kind's lowerer is a pure mapping from (resolved
// types, static config) to IR fragments; no type inference happens here.
// Failures in this file are internal invariant violations (a solved type
// that cannot be lowered), so they panic rather than producing user-facing
// diagnostics - the solvers already guaranteed every type is sound.

// lowerCtx carries one block's lowering inputs.
type lowerCtx struct {
	b     *builder
	g     *Graph
	facts *TypeFacts
	block NormBlock
}

// outType returns the resolved type of one of the block's output ports.
func (c *lowerCtx) outType(port string) ir.CanonicalType {
	t, ok := c.facts.Ports[patch.OutKey(c.block.ID, port)]
	if !ok {
		panic(fmt.Sprintf("compiler: lowering %s with unresolved output %q", c.block.ID, port))
	}
	return t
}

// inType returns the resolved type of one of the block's input ports.
func (c *lowerCtx) inType(port string) ir.CanonicalType {
	t, ok := c.facts.Ports[patch.InKey(c.block.ID, port)]
	if !ok {
		panic(fmt.Sprintf("compiler: lowering %s with unresolved input %q", c.block.ID, port))
	}
	return t
}

// producerSlot returns the slot feeding one of the block's inputs.
func (c *lowerCtx) producerSlot(port string) ir.SlotID {
	e, ok := c.g.IncomingEdge(patch.InKey(c.block.ID, port))
	if !ok {
		panic(fmt.Sprintf("compiler: lowering %s with unconnected input %q", c.block.ID, port))
	}
	return c.b.portSlot(e.From)
}

// inSignal builds a signal read of an input's producer slot.
func (c *lowerCtx) inSignal(port string) ir.SignalExprID {
	return c.b.sig(sigExpr(ir.SignalExpr{Kind: ir.SigSlot, Slot: c.producerSlot(port)}))
}

// inField builds a lane-wise read of an input's producer. A signal
// producer feeding a field context (zip broadcast) is lifted with
// FldBroadcast.
func (c *lowerCtx) inField(port string, inst ir.InstanceID) ir.FieldExprID {
	t := c.inType(port)
	slot := c.producerSlot(port)
	if t.IsField() {
		return c.b.fld(fldExpr(ir.FieldExpr{Kind: ir.FldSlot, Instance: inst, Slot: slot}))
	}
	sig := c.b.sig(sigExpr(ir.SignalExpr{Kind: ir.SigSlot, Slot: slot}))
	return c.b.fld(fldExpr(ir.FieldExpr{Kind: ir.FldBroadcast, Instance: inst, Signal: sig}))
}

// outSlot returns the pre-allocated slot for an output port.
func (c *lowerCtx) outSlot(port string) ir.SlotID {
	return c.b.portSlot(patch.OutKey(c.block.ID, port))
}

// instanceOf resolves the InstanceID for a field type.
func (c *lowerCtx) instanceOf(t ir.CanonicalType) ir.InstanceID {
	ref := t.Extent.Card.Instance
	fact, ok := c.facts.Instances[ref.String()]
	if !ok {
		panic("compiler: no instance fact for " + ref.String())
	}
	return c.b.instance(fact.Ref, fact.Count)
}

// sigExpr and fldExpr fill sentinel ids so table entries never carry a
// meaningful-looking zero.
func sigExpr(e ir.SignalExpr) ir.SignalExpr {
	if e.Kind != ir.SigSlot {
		e.Slot = ir.NoSlot
	}
	if e.Kind != ir.SigOp {
		e.Args = noSigArgs()
	}
	return e
}

func fldExpr(e ir.FieldExpr) ir.FieldExpr {
	if e.Kind != ir.FldSlot {
		e.Slot = ir.NoSlot
	}
	if e.Kind != ir.FldBroadcast {
		e.Signal = ir.NoExpr
	}
	if e.Kind != ir.FldOp {
		e.Args = noFldArgs()
	}
	return e
}

func noSigArgs() [2]ir.SignalExprID { return [2]ir.SignalExprID{ir.NoExpr, ir.NoExpr} }
func noFldArgs() [2]ir.FieldExprID  { return [2]ir.FieldExprID{ir.NoExpr, ir.NoExpr} }

// sigOp builds a signal op node.
func (c *lowerCtx) sigOp(op ir.OpCode, args ...ir.SignalExprID) ir.SignalExprID {
	e := ir.SignalExpr{Kind: ir.SigOp, Op: op, Slot: ir.NoSlot, Args: noSigArgs()}
	copy(e.Args[:], args)
	return c.b.sig(e)
}

// fldOp builds a field op node.
func (c *lowerCtx) fldOp(inst ir.InstanceID, op ir.OpCode, args ...ir.FieldExprID) ir.FieldExprID {
	e := ir.FieldExpr{Kind: ir.FldOp, Instance: inst, Op: op, Slot: ir.NoSlot, Signal: ir.NoExpr, Args: noFldArgs()}
	copy(e.Args[:], args)
	return c.b.fld(e)
}

// sigConst builds a stride-wide constant node.
func (c *lowerCtx) sigConst(vals ...float64) ir.SignalExprID {
	return c.b.sig(sigExpr(ir.SignalExpr{Kind: ir.SigConst, Const: vals}))
}

// allocateSlots reserves one slot per output port of every block, in
// sorted block order, declared port order. Lowering then refers to
// producer slots freely regardless of block order.
func allocateSlots(b *builder, g *Graph, facts *TypeFacts) {
	for _, nb := range g.Blocks {
		for _, out := range nb.Def.Outputs {
			key := patch.OutKey(nb.ID, out.Name)
			t, ok := facts.Ports[key]
			if !ok {
				panic("compiler: slot allocation with unresolved port " + key.String())
			}
			storage := ir.StorageSignal
			inst := ir.NoInstance
			switch {
			case t.IsEvent():
				storage = ir.StorageEvent
			case t.IsField():
				storage = ir.StorageField
				ref := t.Extent.Card.Instance
				fact := facts.Instances[ref.String()]
				inst = b.instance(fact.Ref, fact.Count)
			}
			slot := b.allocSlot(storage, t.Stride(), inst, key.Block+"."+key.Port)
			b.bindPort(key, slot)
		}
	}
}

// lowerProgram lowers every block of a fully-typed graph into the builder
// and returns the unscheduled program plus raw steps.
func lowerProgram(g *Graph, facts *TypeFacts) (*builder, error) {
	b := newBuilder()
	allocateSlots(b, g, facts)

	for _, nb := range g.Blocks {
		c := &lowerCtx{b: b, g: g, facts: facts, block: nb}
		if err := lowerBlock(c); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// lowerBlock dispatches on block kind. The switch is the closed registry
// of lowering functions; an unmatched kind is a startup-time registration
// bug, not an input condition.
func lowerBlock(c *lowerCtx) error {
	switch c.block.Def.Kind {
	case blocks.KindConst:
		lowerConst(c)
	case blocks.KindTime:
		lowerTime(c)
	case blocks.KindOsc:
		lowerOsc(c)
	case blocks.KindSine:
		lowerSine(c)
	case blocks.KindAdd:
		lowerArith(c, ir.OpAdd)
	case blocks.KindMul:
		lowerArith(c, ir.OpMul)
	case blocks.KindUnitDelay:
		lowerUnitDelay(c)
	case blocks.KindArray:
		lowerArray(c)
	case blocks.KindPolar:
		lowerPolar(c)
	case blocks.KindBroadcast:
		lowerBroadcast(c)
	case blocks.KindCamera:
		lowerCamera(c)
	case blocks.KindRenderDots:
		lowerRenderDots(c)
	case blocks.KindPulse:
		lowerPulse(c)
	default:
		return fmt.Errorf("no lowering registered for block kind %q", c.block.Def.Kind)
	}
	return nil
}

func lowerConst(c *lowerCtx) {
	t := c.outType("out")
	v := c.block.Param("value", 0)
	vals := make([]float64, t.Stride())
	for i := range vals {
		vals[i] = v
	}
	c.b.step(stepEvalSignal(c.sigConst(vals...), c.outSlot("out")))
}

func lowerTime(c *lowerCtx) {
	c.b.step(stepEvalSignal(c.b.sig(sigExpr(ir.SignalExpr{Kind: ir.SigTime})), c.outSlot("t")))
}

func lowerOsc(c *lowerCtx) {
	t := c.b.sig(sigExpr(ir.SignalExpr{Kind: ir.SigTime}))
	scaled := c.sigOp(ir.OpMul, t, c.inSignal("freq"))
	shifted := c.sigOp(ir.OpAdd, scaled, c.inSignal("phase0"))
	phase := c.sigOp(ir.OpFract, shifted)
	c.b.step(stepEvalSignal(phase, c.outSlot("phase")))
}

// turnsScale returns the factor converting a value of the given unit into
// radians, treating phase-like units as turns.
func turnsScale(u ir.Unit) float64 {
	switch u {
	case ir.UnitPhase01, ir.UnitNorm01, ir.UnitScalar:
		return 2 * math.Pi
	case ir.UnitDegrees:
		return math.Pi / 180
	default: // radians, seconds, anything already angular-neutral
		return 1
	}
}

func lowerSine(c *lowerCtx) {
	out := c.outType("y")
	scale := turnsScale(c.inType("x").Unit)
	if !out.IsField() {
		x := c.inSignal("x")
		if scale != 1 {
			x = c.sigOp(ir.OpMul, c.sigConst(scale), x)
		}
		c.b.step(stepEvalSignal(c.sigOp(ir.OpSin, x), c.outSlot("y")))
		return
	}
	inst := c.instanceOf(out)
	x := c.inField("x", inst)
	if scale != 1 {
		k := c.b.fld(fldExpr(ir.FieldExpr{
			Kind: ir.FldBroadcast, Instance: inst, Signal: c.sigConst(scale),
		}))
		x = c.fldOp(inst, ir.OpMul, k, x)
	}
	c.b.step(stepMaterializeField(c.fldOp(inst, ir.OpSin, x), c.outSlot("y"), inst))
}

func lowerArith(c *lowerCtx, op ir.OpCode) {
	out := c.outType("out")
	if !out.IsField() {
		expr := c.sigOp(op, c.inSignal("a"), c.inSignal("b"))
		c.b.step(stepEvalSignal(expr, c.outSlot("out")))
		return
	}
	inst := c.instanceOf(out)
	expr := c.fldOp(inst, op, c.inField("a", inst), c.inField("b", inst))
	c.b.step(stepMaterializeField(expr, c.outSlot("out"), inst))
}

func lowerUnitDelay(c *lowerCtx) {
	out := c.outType("y")
	if !out.IsField() {
		state := c.b.allocSlot(ir.StorageState, out.Stride(), ir.NoInstance, c.block.ID+".state")
		read := c.b.sig(sigExpr(ir.SignalExpr{Kind: ir.SigSlot, Slot: state}))
		c.b.step(stepEvalSignal(read, c.outSlot("y")))
		c.b.step(stepWriteState(c.producerSlot("x"), state))
		return
	}
	inst := c.instanceOf(out)
	state := c.b.allocSlot(ir.StorageState, out.Stride(), inst, c.block.ID+".state")
	read := c.b.fld(fldExpr(ir.FieldExpr{Kind: ir.FldSlot, Instance: inst, Slot: state}))
	c.b.step(stepMaterializeField(read, c.outSlot("y"), inst))
	c.b.step(stepWriteState(c.producerSlot("x"), state))
}

func lowerArray(c *lowerCtx) {
	out := c.outType("index")
	inst := c.instanceOf(out)
	idx := c.b.fld(fldExpr(ir.FieldExpr{Kind: ir.FldLaneIndex, Instance: inst}))
	c.b.step(stepBuildContinuity(inst))
	c.b.step(stepMaterializeField(idx, c.outSlot("index"), inst))
	c.b.step(stepApplyContinuity(inst))
}

func lowerPolar(c *lowerCtx) {
	out := c.outType("pos")
	scale := turnsScale(c.inType("angle").Unit)
	if !out.IsField() {
		r := c.inSignal("radius")
		a := c.inSignal("angle")
		if scale != 1 {
			a = c.sigOp(ir.OpMul, c.sigConst(scale), a)
		}
		x := c.sigOp(ir.OpMul, r, c.sigOp(ir.OpCos, a))
		y := c.sigOp(ir.OpMul, r, c.sigOp(ir.OpSin, a))
		pos := c.b.sig(sigExpr(ir.SignalExpr{Kind: ir.SigMake, Parts: []ir.SignalExprID{x, y}}))
		c.b.step(stepEvalSignal(pos, c.outSlot("pos")))
		return
	}
	inst := c.instanceOf(out)
	r := c.inField("radius", inst)
	a := c.inField("angle", inst)
	if scale != 1 {
		k := c.b.fld(fldExpr(ir.FieldExpr{Kind: ir.FldBroadcast, Instance: inst, Signal: c.sigConst(scale)}))
		a = c.fldOp(inst, ir.OpMul, k, a)
	}
	x := c.fldOp(inst, ir.OpMul, r, c.fldOp(inst, ir.OpCos, a))
	y := c.fldOp(inst, ir.OpMul, r, c.fldOp(inst, ir.OpSin, a))
	pos := c.b.fld(fldExpr(ir.FieldExpr{Kind: ir.FldMake, Instance: inst, Parts: []ir.FieldExprID{x, y}}))
	c.b.step(stepMaterializeField(pos, c.outSlot("pos"), inst))
}

func lowerBroadcast(c *lowerCtx) {
	out := c.outType("out")
	inst := c.instanceOf(out)
	sig := c.b.sig(sigExpr(ir.SignalExpr{Kind: ir.SigSlot, Slot: c.producerSlot("in")}))
	expr := c.b.fld(fldExpr(ir.FieldExpr{Kind: ir.FldBroadcast, Instance: inst, Signal: sig}))
	c.b.step(stepMaterializeField(expr, c.outSlot("out"), inst))
}

// cameraInputOrder matches the ir.Cam* lane layout.
var cameraInputOrder = [ir.CamLanes]string{
	"projection", "zoom", "centerX", "centerY", "rotation",
	"viewportW", "viewportH", "near", "far",
}

func lowerCamera(c *lowerCtx) {
	slot := c.b.allocSlot(ir.StorageRenderGlobal, ir.CamLanes, ir.NoInstance, c.block.ID+".camera")
	parts := make([]ir.SignalExprID, ir.CamLanes)
	for i, name := range cameraInputOrder {
		parts[i] = c.inSignal(name)
	}
	packed := c.b.sig(sigExpr(ir.SignalExpr{Kind: ir.SigMake, Parts: parts}))
	c.b.step(stepEvalSignal(packed, slot))
	c.b.global(ir.RenderGlobal{Kind: ir.RenderGlobalCamera, Slot: slot, BlockID: c.block.ID})
}

func lowerRenderDots(c *lowerCtx) {
	pos := c.inType("pos")
	inst := c.instanceOf(pos)
	d := c.b.draw(ir.DrawDecl{
		Kind:     ir.DrawDots,
		Instance: inst,
		Pos:      c.producerSlot("pos"),
		Color:    c.producerSlot("color"),
		Size:     c.producerSlot("size"),
	})
	c.b.step(stepRender(d))
}

func lowerPulse(c *lowerCtx) {
	acc := c.b.allocSlot(ir.StorageState, 1, ir.NoInstance, c.block.ID+".acc")
	e := c.b.evt(ir.EventExpr{
		Kind:     ir.EvtPulse,
		Interval: c.inSignal("interval"),
		Acc:      acc,
		Args:     [2]ir.EventExprID{ir.NoExpr, ir.NoExpr},
	})
	c.b.step(stepEvalEvent(e, c.outSlot("fire")))
}
