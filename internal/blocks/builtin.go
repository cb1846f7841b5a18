package blocks

import "github.com/kinetlab/kinet/internal/ir"

// Block kind names. These are the authored surface; renames break patches.
const (
	KindConst      = "Const"
	KindTime       = "Time"
	KindOsc        = "Osc"
	KindSine       = "Sine"
	KindAdd        = "Add"
	KindMul        = "Mul"
	KindUnitDelay  = "UnitDelay"
	KindArray      = "Array"
	KindPolar      = "Polar"
	KindBroadcast  = "Broadcast"
	KindCamera     = "Camera"
	KindRenderDots = "RenderDots"
	KindPulse      = "Pulse"
)

// Builtin builds the standard registry. Called once at startup; the result
// is sealed and shared by every compile.
func Builtin() *Registry {
	r := NewRegistry()

	// Const emits a stride-wide constant: every lane of the resolved
	// payload holds the same value. Payload and unit resolve entirely from
	// the consumer side, which is what lets one Const kind back defaults
	// for float, vec2 and color inputs alike.
	r.Register(&Definition{
		Kind: KindConst,
		Outputs: []PortDef{
			{Name: "out", Poly: "T", Unit: ir.UnitScalar, UnitGroup: "u", Mode: SignalOnly},
		},
	})

	r.Register(&Definition{
		Kind: KindTime,
		Outputs: []PortDef{
			{Name: "t", Payload: ir.PayloadFloat, Unit: ir.UnitSeconds, Mode: SignalOnly, Binding: ir.BindingTime},
		},
	})

	r.Register(&Definition{
		Kind:      KindOsc,
		NeedsTime: true,
		Inputs: []PortDef{
			PortDef{Name: "freq", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, Mode: SignalOnly}.WithDefault(1),
			PortDef{Name: "phase0", Payload: ir.PayloadFloat, Unit: ir.UnitPhase01, Mode: SignalOnly}.WithDefault(0),
		},
		Outputs: []PortDef{
			{Name: "phase", Payload: ir.PayloadFloat, Unit: ir.UnitPhase01, Mode: SignalOnly},
		},
	})

	// Sine maps its input lane-wise. Lowering branches on the resolved
	// unit: phase-like units (phase01, norm01) are scaled by 2*pi first.
	r.Register(&Definition{
		Kind: KindSine,
		Inputs: []PortDef{
			PortDef{Name: "x", Payload: ir.PayloadFloat, Unit: ir.UnitPhase01, UnitGroup: "ux", Mode: Preserve}.WithDefault(0),
		},
		Outputs: []PortDef{
			{Name: "y", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, Mode: Preserve},
		},
	})

	for _, arith := range []struct {
		kind     string
		defaultB float64
	}{
		{KindAdd, 0},
		{KindMul, 1},
	} {
		r.Register(&Definition{
			Kind: arith.kind,
			Inputs: []PortDef{
				PortDef{Name: "a", Poly: "T", Unit: ir.UnitScalar, UnitGroup: "u", Mode: Preserve, AllowBroadcast: true}.WithDefault(0),
				PortDef{Name: "b", Poly: "T", Unit: ir.UnitScalar, UnitGroup: "u", Mode: Preserve, AllowBroadcast: true}.WithDefault(arith.defaultB),
			},
			Outputs: []PortDef{
				{Name: "out", Poly: "T", Unit: ir.UnitScalar, UnitGroup: "u", Mode: Preserve, AllowBroadcast: true},
			},
		})
	}

	// UnitDelay is the stateful primitive: its output this frame is last
	// frame's input. It is the only thing that legalizes a feedback cycle.
	r.Register(&Definition{
		Kind:     KindUnitDelay,
		Stateful: true,
		Inputs: []PortDef{
			PortDef{Name: "x", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, UnitGroup: "u", Mode: Preserve}.WithDefault(0),
		},
		Outputs: []PortDef{
			{Name: "y", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, UnitGroup: "u", Mode: Preserve},
		},
	})

	// Array mints an instance of `count` lanes; its index output is each
	// lane's position normalized to [0,1).
	r.Register(&Definition{
		Kind:       KindArray,
		DomainType: "array",
		Outputs: []PortDef{
			{Name: "index", Payload: ir.PayloadFloat, Unit: ir.UnitNorm01, Mode: Transform},
		},
	})

	r.Register(&Definition{
		Kind: KindPolar,
		Inputs: []PortDef{
			PortDef{Name: "radius", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, UnitGroup: "ur", Mode: Preserve, AllowBroadcast: true}.WithDefault(1),
			PortDef{Name: "angle", Payload: ir.PayloadFloat, Unit: ir.UnitPhase01, UnitGroup: "ua", Mode: Preserve, AllowBroadcast: true}.WithDefault(0),
		},
		Outputs: []PortDef{
			{Name: "pos", Payload: ir.PayloadVec2, Unit: ir.UnitNone, Mode: Preserve, AllowBroadcast: true},
		},
	})

	// Broadcast is the adapter the fixpoint driver inserts for the
	// signal-feeding-a-field case. It never appears in authored patches.
	r.Register(&Definition{
		Kind:    KindBroadcast,
		Adapter: true,
		Inputs: []PortDef{
			{Name: "in", Poly: "T", Unit: ir.UnitScalar, UnitGroup: "u", Mode: SignalOnly},
		},
		Outputs: []PortDef{
			{Name: "out", Poly: "T", Unit: ir.UnitScalar, UnitGroup: "u", Mode: FieldOnly},
		},
	})

	r.Register(&Definition{
		Kind:         KindCamera,
		RenderGlobal: true,
		Inputs: []PortDef{
			PortDef{Name: "projection", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, Mode: SignalOnly}.WithDefault(0),
			PortDef{Name: "zoom", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, Mode: SignalOnly}.WithDefault(1),
			PortDef{Name: "centerX", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, Mode: SignalOnly}.WithDefault(0),
			PortDef{Name: "centerY", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, Mode: SignalOnly}.WithDefault(0),
			PortDef{Name: "rotation", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, Mode: SignalOnly}.WithDefault(0),
			PortDef{Name: "viewportW", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, Mode: SignalOnly}.WithDefault(1),
			PortDef{Name: "viewportH", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, Mode: SignalOnly}.WithDefault(1),
			PortDef{Name: "near", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, Mode: SignalOnly}.WithDefault(0),
			PortDef{Name: "far", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, Mode: SignalOnly}.WithDefault(1),
		},
	})

	// RenderDots draws one dot per lane. Its color input is a field, so a
	// plain Const default (or any signal color) reaches it through an
	// inserted Broadcast.
	r.Register(&Definition{
		Kind:       KindRenderDots,
		RenderSink: true,
		Inputs: []PortDef{
			{Name: "pos", Payload: ir.PayloadVec2, Unit: ir.UnitNone, Mode: FieldOnly},
			PortDef{Name: "color", Payload: ir.PayloadColor, Unit: ir.UnitNone, Mode: FieldOnly}.WithDefault(1),
			PortDef{Name: "size", Payload: ir.PayloadFloat, Unit: ir.UnitScalar, Mode: SignalOnly}.WithDefault(1),
		},
	})

	r.Register(&Definition{
		Kind:      KindPulse,
		NeedsTime: true,
		Inputs: []PortDef{
			PortDef{Name: "interval", Payload: ir.PayloadFloat, Unit: ir.UnitSeconds, Mode: SignalOnly}.WithDefault(1),
		},
		Outputs: []PortDef{
			{Name: "fire", Payload: ir.PayloadBool, Unit: ir.UnitNone, Mode: SignalOnly, Discrete: true},
		},
	})

	r.Seal()
	return r
}
