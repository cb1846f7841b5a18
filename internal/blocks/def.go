// Package blocks holds the block-definition registry: per-kind, per-port
// typing metadata the compiler's constraint extractor consumes. Definitions
// are pure data; the lowering functions that turn solved blocks into IR
// live in internal/compiler, keyed by kind, so this package never imports
// the compiler.
//
// The registry is built once at startup (Builtin) and is immutable
// afterwards. Nothing mutates a Definition during compilation.
package blocks

import "github.com/kinetlab/kinet/internal/ir"

// CardMode declares how a port participates in cardinality solving.
type CardMode int

const (
	// SignalOnly ports are forced to cardinality one via a clampOne
	// constraint. The extractor never writes a bare inst(one); the
	// constraint path is the single source of truth for forced scalars.
	SignalOnly CardMode = iota
	// Transform outputs mint a deterministic instance from block identity;
	// transform inputs get a fresh variable.
	Transform
	// Preserve ports share one variable across the block: all ports end
	// with the same cardinality (or zip-broadcast when AllowBroadcast).
	Preserve
	// FieldOnly ports are forced to many with a variable instance term.
	FieldOnly
)

var cardModeNames = [...]string{"signalOnly", "transform", "preserve", "fieldOnly"}

func (m CardMode) String() string {
	if int(m) < 0 || int(m) >= len(cardModeNames) {
		return "cardMode?"
	}
	return cardModeNames[m]
}

// PortDef declares one port's typing surface.
//
// Payload is either concrete (Poly == "") or polymorphic: ports of the same
// block sharing a non-empty Poly name unify their payloads, and the graph
// normalization pass resolves declared aliases before extraction.
type PortDef struct {
	Name    string
	Payload ir.PayloadType
	Poly    string // non-empty: payload variable name shared within block
	Unit    ir.Unit
	// UnitGroup, when non-empty, makes the port's unit a variable shared
	// across the block's ports carrying the same group name. Concrete
	// units come from the graph's sources; when nothing in the graph
	// forces the group, Unit is the default it settles to.
	UnitGroup string
	Mode      CardMode
	// Default is the value materialized as a derived Const block when the
	// input is left unconnected. Inputs without a default are required.
	Default        *float64
	Discrete       bool       // port carries an event, not a continuous value
	Binding        ir.Binding // non-None for render-global/time-bound ports
	AllowBroadcast bool       // preserve port may zip signals against fields
}

// Def returns a copy with Default set; convenience for builtin tables.
func (p PortDef) WithDefault(v float64) PortDef {
	p.Default = &v
	return p
}

// Definition is one block kind's complete typing metadata.
type Definition struct {
	Kind    string
	Inputs  []PortDef
	Outputs []PortDef
	// DomainType names the instance domain a Transform output mints
	// ("array" for Array blocks). Empty for non-transform kinds.
	DomainType string
	// Stateful marks unit-delay-like kinds: their output this frame is
	// last frame's input, which is what lets a feedback cycle through
	// them validate.
	Stateful bool
	// NeedsTime marks kinds whose lowering reads the frame clock; a patch
	// using one must contain a Time block as its time root.
	NeedsTime bool
	// RenderGlobal marks singleton declaration kinds (Camera). At most
	// one block of a given render-global kind may appear in a patch.
	RenderGlobal bool
	// RenderSink marks kinds that emit draw commands (RenderDots).
	RenderSink bool
	// Adapter marks kinds the fixpoint driver may insert itself
	// (Broadcast). Adapters never appear in authored patches.
	Adapter bool
}

// Input returns the input port definition by name.
func (d *Definition) Input(name string) (PortDef, bool) {
	for _, p := range d.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	return PortDef{}, false
}

// Output returns the output port definition by name.
func (d *Definition) Output(name string) (PortDef, bool) {
	for _, p := range d.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	return PortDef{}, false
}
