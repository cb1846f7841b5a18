package engine

import (
	"fmt"
	"math"

	"github.com/kinetlab/kinet/internal/ir"
)

// Engine runs one CompiledProgram. All mutation happens inside Tick; the
// engine is not safe for concurrent use, and does not need to be: one
// patch, one engine, one goroutine.
type Engine struct {
	prog  *ir.CompiledProgram
	clock *FrameClock
	slab  []float64

	// laneMap holds the per-instance continuity map rebuilt every frame
	// in the continuity-map-build phase. With static lane counts the map
	// is the identity, but the apply step still routes through it so a
	// dynamic-instance engine keeps the same schedule contract.
	laneMap [][]int

	eventSlots []ir.SlotMeta
	scratch    []float64
}

// New validates the program and allocates its slab. State slots start at
// zero, which is the declared initial value of every stateful primitive.
func New(prog *ir.CompiledProgram) (*Engine, error) {
	if err := validate(prog); err != nil {
		return nil, err
	}
	e := &Engine{
		prog:    prog,
		clock:   NewFrameClock(),
		slab:    make([]float64, prog.SlabSize),
		laneMap: make([][]int, len(prog.Instances)),
	}
	maxRegion := 0
	for _, m := range prog.Slots {
		if m.Storage == ir.StorageEvent {
			e.eventSlots = append(e.eventSlots, m)
		}
		if r := m.Stride * prog.LaneCount(m.Instance); r > maxRegion {
			maxRegion = r
		}
	}
	e.scratch = make([]float64, maxRegion)
	return e, nil
}

// NewWithClock creates an engine resumed at a known clock position. Used
// when replaying a recorded session.
func NewWithClock(prog *ir.CompiledProgram, clock *FrameClock) (*Engine, error) {
	e, err := New(prog)
	if err != nil {
		return nil, err
	}
	e.clock = clock
	return e, nil
}

// Clock exposes the engine's frame clock for checkpointing.
func (e *Engine) Clock() *FrameClock {
	return e.clock
}

// ReadSlot copies out a slot's current slab region (stride lanes, or
// stride times lane-count for field slots). Debug and inspection surface;
// the render path never goes through it.
func (e *Engine) ReadSlot(id ir.SlotID) []float64 {
	m := e.prog.Slot(id)
	region := m.Stride * e.prog.LaneCount(m.Instance)
	out := make([]float64, region)
	copy(out, e.slab[m.Offset:m.Offset+region])
	return out
}

// Tick advances one frame: clears event slots, runs every schedule step in
// slice order, decodes the camera, and returns the frame output. The same
// program and dt sequence always yields byte-identical frames.
func (e *Engine) Tick(dt float64) *ir.RenderFrame {
	frame := e.clock.Advance(dt)
	for _, m := range e.eventSlots {
		e.slab[m.Offset] = 0
	}

	var commands []ir.DrawCommand
	for _, s := range e.prog.Schedule.Steps {
		switch s.Kind {
		case ir.StepEvalSignal:
			m := e.prog.Slot(s.Slot)
			e.writeValue(m.Offset, m.Stride, e.evalSignal(s.Signal))
		case ir.StepBuildContinuity:
			e.buildContinuity(s.Instance)
		case ir.StepMaterializeField:
			m := e.prog.Slot(s.Slot)
			count := e.prog.LaneCount(m.Instance)
			for lane := 0; lane < count; lane++ {
				v := e.evalField(s.Field, lane, count)
				e.writeValue(m.Offset+lane*m.Stride, m.Stride, v)
			}
		case ir.StepApplyContinuity:
			e.applyContinuity(s.Instance)
		case ir.StepEvalEvent:
			m := e.prog.Slot(s.Slot)
			e.slab[m.Offset] = e.evalEvent(s.Event, dt)
		case ir.StepRender:
			commands = append(commands, e.drawCommand(s.Draw))
		case ir.StepWriteState:
			src := e.prog.Slot(s.Src)
			dst := e.prog.Slot(s.Dst)
			copy(e.slab[dst.Offset:dst.Offset+dst.Stride], e.slab[src.Offset:src.Offset+src.Stride])
		}
	}

	return &ir.RenderFrame{
		Frame:    frame,
		TimeSecs: e.clock.Time(),
		Camera:   e.decodeCamera(),
		Commands: commands,
	}
}

// writeValue copies a stride-wide value into the slab, broadcasting a
// scalar across the destination stride.
func (e *Engine) writeValue(offset, stride int, v []float64) {
	dst := e.slab[offset : offset+stride]
	if len(v) == 1 && stride > 1 {
		for i := range dst {
			dst[i] = v[0]
		}
		return
	}
	if len(v) != stride {
		panic(fmt.Sprintf("engine: value width %d written to stride-%d slot", len(v), stride))
	}
	copy(dst, v)
}

func (e *Engine) evalSignal(id ir.SignalExprID) []float64 {
	x := e.prog.Signals[id]
	switch x.Kind {
	case ir.SigConst:
		return x.Const
	case ir.SigSlot:
		m := e.prog.Slot(x.Slot)
		return e.slab[m.Offset : m.Offset+m.Stride]
	case ir.SigTime:
		return []float64{e.clock.Time()}
	case ir.SigOp:
		a := e.evalSignal(x.Args[0])
		if x.Op.Arity() == 1 {
			return applyUnary(x.Op, a)
		}
		return applyBinary(x.Op, a, e.evalSignal(x.Args[1]))
	case ir.SigMake:
		out := make([]float64, 0, len(x.Parts))
		for _, p := range x.Parts {
			out = append(out, e.evalSignal(p)...)
		}
		return out
	}
	panic(fmt.Sprintf("engine: signal expr %d has unknown kind %d", id, x.Kind))
}

func (e *Engine) evalField(id ir.FieldExprID, lane, count int) []float64 {
	x := e.prog.Fields[id]
	switch x.Kind {
	case ir.FldBroadcast:
		return e.evalSignal(x.Signal)
	case ir.FldLaneIndex:
		return []float64{float64(lane) / float64(count)}
	case ir.FldSlot:
		m := e.prog.Slot(x.Slot)
		base := m.Offset + lane*m.Stride
		return e.slab[base : base+m.Stride]
	case ir.FldOp:
		a := e.evalField(x.Args[0], lane, count)
		if x.Op.Arity() == 1 {
			return applyUnary(x.Op, a)
		}
		return applyBinary(x.Op, a, e.evalField(x.Args[1], lane, count))
	case ir.FldMake:
		out := make([]float64, 0, len(x.Parts))
		for _, p := range x.Parts {
			out = append(out, e.evalField(p, lane, count)...)
		}
		return out
	}
	panic(fmt.Sprintf("engine: field expr %d has unknown kind %d", id, x.Kind))
}

// evalEvent yields 1 on the tick the event fires, else 0. Pulse owns its
// accumulator state slot: time accrues here, not in the state-write phase,
// so the fire decision and the leftover carry are one atomic update.
func (e *Engine) evalEvent(id ir.EventExprID, dt float64) float64 {
	x := e.prog.Events[id]
	switch x.Kind {
	case ir.EvtPulse:
		interval := e.evalSignal(x.Interval)[0]
		m := e.prog.Slot(x.Acc)
		acc := e.slab[m.Offset] + dt
		fired := 0.0
		if interval > 0 && acc >= interval {
			fired = 1
			acc = math.Mod(acc, interval)
		}
		e.slab[m.Offset] = acc
		return fired
	case ir.EvtCombine:
		a := e.evalEvent(x.Args[0], dt)
		b := e.evalEvent(x.Args[1], dt)
		if x.Op == ir.EvtAnd {
			if a != 0 && b != 0 {
				return 1
			}
			return 0
		}
		if a != 0 || b != 0 {
			return 1
		}
		return 0
	}
	panic(fmt.Sprintf("engine: event expr %d has unknown kind %d", id, x.Kind))
}

func (e *Engine) buildContinuity(inst ir.InstanceID) {
	count := e.prog.LaneCount(inst)
	m := e.laneMap[inst]
	if cap(m) < count {
		m = make([]int, count)
	}
	m = m[:count]
	for i := range m {
		m[i] = i
	}
	e.laneMap[inst] = m
}

// applyContinuity remaps every field slot of the instance in place
// through its continuity map: destination lane i takes source lane
// map[i]. State slots keep their lane order; they are last frame's data
// and the next write-state step re-aligns them.
func (e *Engine) applyContinuity(inst ir.InstanceID) {
	count := e.prog.LaneCount(inst)
	for _, m := range e.prog.Slots {
		if m.Storage != ir.StorageField || m.Instance != inst {
			continue
		}
		region := e.slab[m.Offset : m.Offset+count*m.Stride]
		tmp := e.scratch[:len(region)]
		copy(tmp, region)
		for i, src := range e.laneMap[inst] {
			copy(region[i*m.Stride:(i+1)*m.Stride], tmp[src*m.Stride:(src+1)*m.Stride])
		}
	}
}

func (e *Engine) drawCommand(id ir.DrawID) ir.DrawCommand {
	d := e.prog.Draws[id]
	lanes := e.prog.LaneCount(d.Instance)

	pos := make([]float64, 2*lanes)
	pm := e.prog.Slot(d.Pos)
	copy(pos, e.slab[pm.Offset:pm.Offset+2*lanes])

	color := make([]float64, 4*lanes)
	if d.Color == ir.NoSlot {
		for i := range color {
			color[i] = 1
		}
	} else {
		cm := e.prog.Slot(d.Color)
		copy(color, e.slab[cm.Offset:cm.Offset+4*lanes])
	}

	size := 1.0
	if d.Size != ir.NoSlot {
		size = e.slab[e.prog.Slot(d.Size).Offset]
	}

	return ir.DrawCommand{
		Kind:  d.Kind,
		Lanes: lanes,
		Pos:   pos,
		Color: color,
		Size:  size,
	}
}

func (e *Engine) decodeCamera() ir.CameraState {
	cam := ir.DefaultCamera()
	for _, g := range e.prog.Globals {
		if g.Kind != ir.RenderGlobalCamera {
			continue
		}
		m := e.prog.Slot(g.Slot)
		v := e.slab[m.Offset : m.Offset+m.Stride]
		cam = ir.CameraState{
			Projection: ir.DecodeProjection(v[ir.CamProjection]),
			Zoom:       v[ir.CamZoom],
			CenterX:    v[ir.CamCenterX],
			CenterY:    v[ir.CamCenterY],
			Rotation:   v[ir.CamRotation],
			ViewportW:  v[ir.CamViewportW],
			ViewportH:  v[ir.CamViewportH],
			Near:       v[ir.CamNear],
			Far:        v[ir.CamFar],
		}
	}
	return cam
}

func applyUnary(op ir.OpCode, a []float64) []float64 {
	out := make([]float64, len(a))
	for i, v := range a {
		out[i] = unaryOp(op, v)
	}
	return out
}

// applyBinary is lane-wise over equal widths; a scalar operand broadcasts
// across the other's width.
func applyBinary(op ir.OpCode, a, b []float64) []float64 {
	width := max(len(a), len(b))
	out := make([]float64, width)
	for i := range out {
		av := a[min(i, len(a)-1)]
		bv := b[min(i, len(b)-1)]
		out[i] = binaryOp(op, av, bv)
	}
	return out
}

func unaryOp(op ir.OpCode, v float64) float64 {
	switch op {
	case ir.OpNeg:
		return -v
	case ir.OpSin:
		return math.Sin(v)
	case ir.OpCos:
		return math.Cos(v)
	case ir.OpAbs:
		return math.Abs(v)
	case ir.OpFloor:
		return math.Floor(v)
	case ir.OpFract:
		return v - math.Floor(v)
	case ir.OpSqrt:
		return math.Sqrt(v)
	}
	panic(fmt.Sprintf("engine: %v is not unary", op))
}

func binaryOp(op ir.OpCode, a, b float64) float64 {
	switch op {
	case ir.OpAdd:
		return a + b
	case ir.OpSub:
		return a - b
	case ir.OpMul:
		return a * b
	case ir.OpDiv:
		return a / b
	case ir.OpMin:
		return math.Min(a, b)
	case ir.OpMax:
		return math.Max(a, b)
	case ir.OpMod:
		return math.Mod(a, b)
	}
	panic(fmt.Sprintf("engine: %v is not binary", op))
}
