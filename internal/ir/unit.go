package ir

// Unit is an orthogonal semantic tag carried alongside payload. Units unify
// independently of payload and cardinality; they exist for UI display and
// adapter selection (e.g. deg→rad), not for storage layout.
type Unit int

const (
	// UnitNone marks a port that carries no unit at all (shapes, projections).
	UnitNone Unit = iota
	UnitScalar
	UnitNorm01
	UnitPhase01
	UnitDegrees
	UnitRadians
	UnitSeconds
	UnitPixels
)

var unitNames = [...]string{
	UnitNone:    "none",
	UnitScalar:  "scalar",
	UnitNorm01:  "norm01",
	UnitPhase01: "phase01",
	UnitDegrees: "deg",
	UnitRadians: "rad",
	UnitSeconds: "s",
	UnitPixels:  "px",
}

func (u Unit) String() string {
	if int(u) < 0 || int(u) >= len(unitNames) {
		return "unit?"
	}
	return unitNames[u]
}

// Valid reports whether u is a member of the closed enum.
func (u Unit) Valid() bool {
	return int(u) >= 0 && int(u) < len(unitNames)
}

// ParseUnit resolves a wire name back to a Unit.
func ParseUnit(name string) (Unit, bool) {
	for i, n := range unitNames {
		if n == name {
			return Unit(i), true
		}
	}
	return 0, false
}

// UnitsEqual reports strict unit equality. Unit coercion (deg→rad and the
// like) is an adapter concern, never an equality.
func UnitsEqual(a, b Unit) bool {
	return a == b
}
