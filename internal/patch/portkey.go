package patch

// Direction distinguishes the two sides of a block.
type Direction int

const (
	DirIn Direction = iota
	DirOut
)

func (d Direction) String() string {
	if d == DirOut {
		return "out"
	}
	return "in"
}

// PortKey is the addressable unit the type solvers reason about: every
// constraint is ultimately between two port keys or a port key and a fixed
// value. Keys order lexicographically by (block, port, direction); that
// order anchors diagnostics and drives every deterministic iteration in the
// compiler.
type PortKey struct {
	Block string
	Port  string
	Dir   Direction
}

func (k PortKey) String() string {
	return k.Block + "." + k.Port + ":" + k.Dir.String()
}

// ComparePortKeys orders keys lexicographically by block, then port, then
// direction (in before out).
func ComparePortKeys(a, b PortKey) int {
	if c := compareStrings(a.Block, b.Block); c != 0 {
		return c
	}
	if c := compareStrings(a.Port, b.Port); c != 0 {
		return c
	}
	return int(a.Dir) - int(b.Dir)
}

// InKey and OutKey build keys for the two directions.
func InKey(block, port string) PortKey  { return PortKey{Block: block, Port: port, Dir: DirIn} }
func OutKey(block, port string) PortKey { return PortKey{Block: block, Port: port, Dir: DirOut} }
