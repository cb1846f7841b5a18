package ir

import "fmt"

// CanonicalType is the final, fully-resolved type of a port: payload ×
// extent × unit. Immutable, value-equality. This is what block lowering
// receives; draft (inference) types never leave the compiler.
type CanonicalType struct {
	Payload PayloadType `json:"payload"`
	Extent  Extent      `json:"extent"`
	Unit    Unit        `json:"unit"`
}

// Signal builds a scalar-lane continuous type.
func Signal(p PayloadType, u Unit) CanonicalType {
	return CanonicalType{Payload: p, Extent: DefaultExtent(), Unit: u}
}

// Field builds a many-lane continuous type over ref.
func Field(p PayloadType, u Unit, ref InstanceRef) CanonicalType {
	return CanonicalType{Payload: p, Extent: FieldExtent(ref), Unit: u}
}

// Event builds a discrete scalar-lane bool type.
func Event() CanonicalType {
	return CanonicalType{
		Payload: PayloadBool,
		Extent:  Extent{Card: CardOne(), Temporality: Discrete},
		Unit:    UnitNone,
	}
}

// IsField reports whether the type has many-lane cardinality.
func (t CanonicalType) IsField() bool { return t.Extent.Card.Many }

// IsEvent reports whether the type has discrete temporality.
func (t CanonicalType) IsEvent() bool { return t.Extent.Temporality == Discrete }

// Stride returns the storage lanes per value, a pure function of payload.
func (t CanonicalType) Stride() int { return t.Payload.Stride() }

// String renders the type for diagnostics, e.g. "float[norm01] many(array/a1)".
func (t CanonicalType) String() string {
	s := t.Payload.String()
	if t.Unit != UnitNone {
		s += "[" + t.Unit.String() + "]"
	}
	if t.Extent.Card.Many {
		s += " " + t.Extent.Card.String()
	}
	if t.Extent.Temporality == Discrete {
		s += " event"
	}
	if t.Extent.Binding != BindingNone {
		s += fmt.Sprintf(" @%s", t.Extent.Binding)
	}
	return s
}

// TypesEqual reports full structural equality across payload, all five
// extent axes, and unit.
func TypesEqual(a, b CanonicalType) bool {
	return a == b
}
