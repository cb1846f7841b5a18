package ir

// Camera slot layout within the 9-lane cameraProjection value.
// The projection lane is decoded by the runtime with DecodeProjection.
const (
	CamProjection = iota
	CamZoom
	CamCenterX
	CamCenterY
	CamRotation
	CamViewportW
	CamViewportH
	CamNear
	CamFar
	CamLanes // 9
)

// RenderGlobalKind is the closed set of singleton render declarations.
type RenderGlobalKind int

const (
	RenderGlobalCamera RenderGlobalKind = iota
)

func (k RenderGlobalKind) String() string {
	if k == RenderGlobalCamera {
		return "camera"
	}
	return "renderGlobal?"
}

// RenderGlobal is one singleton declaration consumed once per frame by the
// renderer, not per lane. A camera global owns a single stride-9 slot.
type RenderGlobal struct {
	Kind    RenderGlobalKind `json:"kind"`
	Slot    SlotID           `json:"slot"`
	BlockID string           `json:"block_id"`
}

// DrawKind is the closed set of draw command templates.
type DrawKind int

const (
	// DrawDots renders one dot per lane of Instance, positions from Pos,
	// colors from Color, sizes from Size (signal slot, uniform).
	DrawDots DrawKind = iota
)

func (k DrawKind) String() string {
	if k == DrawDots {
		return "dots"
	}
	return "draw?"
}

// DrawDecl is a compiled draw command template; the engine fills buffers
// from the referenced slots each frame.
type DrawDecl struct {
	ID       DrawID     `json:"id"`
	Kind     DrawKind   `json:"kind"`
	Instance InstanceID `json:"instance"`
	Pos      SlotID     `json:"pos"`   // field slot, vec2
	Color    SlotID     `json:"color"` // field slot, color (NoSlot = white)
	Size     SlotID     `json:"size"`  // signal slot, float (NoSlot = 1)
}

// CompiledProgram is the closed artifact handed to the runtime: slot
// metadata, instance table, flattened expression tables, draw templates,
// render-globals, and the schedule. All cross-references are dense integer
// ids; no pointers, no type-system concepts.
type CompiledProgram struct {
	Slots     []SlotMeta     `json:"slots"`
	SlabSize  int            `json:"slab_size"` // total float64 lanes
	Instances []InstanceDecl `json:"instances"`
	Signals   []SignalExpr   `json:"signals"`
	Fields    []FieldExpr    `json:"fields"`
	Events    []EventExpr    `json:"events"`
	Draws     []DrawDecl     `json:"draws"`
	Globals   []RenderGlobal `json:"globals"`
	Schedule  ScheduleIR     `json:"schedule"`
}

// Slot returns the metadata for id. Panics on an out-of-range id: a bad
// slot reference inside a compiled program is an internal invariant
// violation, never a user error.
func (p *CompiledProgram) Slot(id SlotID) SlotMeta {
	return p.Slots[id]
}

// LaneCount returns the lane count for an instance, or 1 for NoInstance.
func (p *CompiledProgram) LaneCount(id InstanceID) int {
	if id == NoInstance {
		return 1
	}
	return p.Instances[id].Count
}
