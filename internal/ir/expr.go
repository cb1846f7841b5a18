package ir

// Expression tables reference each other only by dense integer id, never by
// pointer. Optionality is expressed as explicit variant arms: every node is
// a tagged struct whose meaningful fields are determined by its Kind, and
// every unused id field holds the table's sentinel (-1).

// SignalExprID indexes CompiledProgram.Signals.
type SignalExprID int

// FieldExprID indexes CompiledProgram.Fields.
type FieldExprID int

// EventExprID indexes CompiledProgram.Events.
type EventExprID int

// NoExpr is the sentinel for unused expression id fields.
const NoExpr = -1

// OpCode is the shared arithmetic op set for signal and field expressions.
type OpCode int

const (
	OpAdd OpCode = iota
	OpSub
	OpMul
	OpDiv
	OpMin
	OpMax
	OpMod
	OpNeg
	OpSin
	OpCos
	OpAbs
	OpFloor
	OpFract
	OpSqrt
)

var opNames = [...]string{
	"add", "sub", "mul", "div", "min", "max", "mod",
	"neg", "sin", "cos", "abs", "floor", "fract", "sqrt",
}

func (o OpCode) String() string {
	if int(o) < 0 || int(o) >= len(opNames) {
		return "op?"
	}
	return opNames[o]
}

// Arity returns 1 for unary ops and 2 for binary ops.
func (o OpCode) Arity() int {
	if o >= OpNeg {
		return 1
	}
	return 2
}

// SignalExprKind tags SignalExpr variants.
type SignalExprKind int

const (
	// SigConst yields Const (stride-wide) every tick.
	SigConst SignalExprKind = iota
	// SigSlot reads the current value of Slot.
	SigSlot
	// SigTime reads the frame clock in seconds.
	SigTime
	// SigOp applies Op to Args[0] (and Args[1] when binary).
	SigOp
	// SigMake concatenates Parts into one stride-wide value (vec2, color,
	// camera projection rows).
	SigMake
)

// SignalExpr is one node of the scalar-lane expression table.
type SignalExpr struct {
	Kind  SignalExprKind  `json:"kind"`
	Const []float64       `json:"const,omitempty"`
	Slot  SlotID          `json:"slot"`
	Op    OpCode          `json:"op"`
	Args  [2]SignalExprID `json:"args"`
	Parts []SignalExprID  `json:"parts,omitempty"`
}

// FieldExprKind tags FieldExpr variants.
type FieldExprKind int

const (
	// FldBroadcast lifts a signal expression uniformly across all lanes.
	FldBroadcast FieldExprKind = iota
	// FldLaneIndex yields each lane's index normalized to [0,1) over the
	// instance's lane count (lane i of n yields i/n).
	FldLaneIndex
	// FldSlot reads per-lane values from a field slot.
	FldSlot
	// FldOp applies Op lane-wise to Args[0] (and Args[1] when binary).
	FldOp
	// FldMake concatenates Parts lane-wise into one stride-wide value.
	FldMake
)

// FieldExpr is one node of the per-lane expression table. Every field
// expression is evaluated within a single instance's lane group; mixing
// instances is ruled out by the cardinality solver before lowering.
type FieldExpr struct {
	Kind     FieldExprKind  `json:"kind"`
	Instance InstanceID     `json:"instance"`
	Signal   SignalExprID   `json:"signal"` // FldBroadcast only
	Slot     SlotID         `json:"slot"`   // FldSlot only
	Op       OpCode         `json:"op"`     // FldOp only
	Args     [2]FieldExprID `json:"args"`   // FldOp only
	Parts    []FieldExprID  `json:"parts,omitempty"`
}

// EventExprKind tags EventExpr variants.
type EventExprKind int

const (
	// EvtPulse fires when its accumulator state slot crosses the interval
	// signal; the engine owns the accumulator, cleared on fire.
	EvtPulse EventExprKind = iota
	// EvtCombine ors/ands two event expressions.
	EvtCombine
)

// EventExprOp is the combinator for EvtCombine.
type EventExprOp int

const (
	EvtOr EventExprOp = iota
	EvtAnd
)

// EventExpr is one node of the discrete-value expression table. Events are
// booleans that fire for exactly one tick; the engine clears every event
// slot at the start of each tick before the event-eval phase runs.
type EventExpr struct {
	Kind     EventExprKind  `json:"kind"`
	Interval SignalExprID   `json:"interval"` // EvtPulse only
	Acc      SlotID         `json:"acc"`      // EvtPulse accumulator (state)
	Op       EventExprOp    `json:"op"`       // EvtCombine only
	Args     [2]EventExprID `json:"args"`     // EvtCombine only
}
