package ir

import "fmt"

// InstanceRef identifies a specific group of parallel lanes ("500 particles
// from this Array block"). Refs are derived deterministically from block
// identity by the compiler; two refs are the same instance only under strict
// equality, never by coincidence of lane count.
type InstanceRef struct {
	DomainType string `json:"domain_type"` // e.g. "array", "grid"
	BlockID    string `json:"block_id"`    // producing block, stable across compiles
}

// String renders the ref as "domainType/blockID" for diagnostics.
func (r InstanceRef) String() string {
	return r.DomainType + "/" + r.BlockID
}

// InstanceRefsEqual reports strict structural equality of two refs.
func InstanceRefsEqual(a, b InstanceRef) bool {
	return a == b
}

// Cardinality is the axis deciding whether a value is a Signal (one scalar
// lane) or a Field (many lanes tied to an instance).
type Cardinality struct {
	Many     bool        `json:"many"`
	Instance InstanceRef `json:"instance,omitzero"` // meaningful only when Many
}

// CardOne is the scalar-lane cardinality.
func CardOne() Cardinality { return Cardinality{} }

// CardMany is the field cardinality bound to a specific instance.
func CardMany(ref InstanceRef) Cardinality {
	return Cardinality{Many: true, Instance: ref}
}

func (c Cardinality) String() string {
	if c.Many {
		return fmt.Sprintf("many(%s)", c.Instance)
	}
	return "one"
}

// Temporality distinguishes continuous values (persist across ticks) from
// discrete events (fire for exactly one tick, cleared every tick).
type Temporality int

const (
	Continuous Temporality = iota
	Discrete
)

func (t Temporality) String() string {
	if t == Discrete {
		return "discrete"
	}
	return "continuous"
}

// Binding ties a value to a render-global or time root. Most values are
// unbound; Camera parameters carry BindingCamera, the time signal carries
// BindingTime.
type Binding int

const (
	BindingNone Binding = iota
	BindingTime
	BindingCamera
)

var bindingNames = [...]string{"none", "time", "camera"}

func (b Binding) String() string {
	if int(b) < 0 || int(b) >= len(bindingNames) {
		return fmt.Sprintf("binding(%d)", int(b))
	}
	return bindingNames[b]
}

// Perspective and Branch are reserved axes for multi-viewport and branching
// support. Only the default value exists today; they are carried through the
// solver so adding real values later does not change the Extent shape.
type Perspective int

// PerspectiveDefault is the only Perspective value currently defined.
const PerspectiveDefault Perspective = 0

type Branch int

// BranchDefault is the only Branch value currently defined.
const BranchDefault Branch = 0

// Extent is the five-axis shape of a value: how many lanes it has, whether
// it persists across ticks, and what it is bound to.
type Extent struct {
	Card        Cardinality `json:"card"`
	Temporality Temporality `json:"temporality"`
	Binding     Binding     `json:"binding"`
	Perspective Perspective `json:"perspective"`
	Branch      Branch      `json:"branch"`
}

// DefaultExtent is a continuous, unbound signal extent.
func DefaultExtent() Extent {
	return Extent{Card: CardOne()}
}

// FieldExtent is a continuous, unbound field extent over ref.
func FieldExtent(ref InstanceRef) Extent {
	return Extent{Card: CardMany(ref)}
}

// ExtentsEqual reports structural equality across all five axes.
func ExtentsEqual(a, b Extent) bool {
	return a == b
}
