package ir

import "fmt"

// PayloadType is the closed set of value payloads a port can carry.
// Storage stride is a pure function of payload (Stride) and is never
// stored separately in the type model.
type PayloadType int

const (
	PayloadFloat PayloadType = iota
	PayloadInt
	PayloadBool
	PayloadVec2
	PayloadVec3
	PayloadColor
	PayloadShape2D
	PayloadCameraProjection
)

// payloadNames maps payloads to their stable wire names.
// These strings appear in canonical JSON and diagnostics; never reorder
// or rename without a version bump.
var payloadNames = [...]string{
	PayloadFloat:            "float",
	PayloadInt:              "int",
	PayloadBool:             "bool",
	PayloadVec2:             "vec2",
	PayloadVec3:             "vec3",
	PayloadColor:            "color",
	PayloadShape2D:          "shape2d",
	PayloadCameraProjection: "cameraProjection",
}

// payloadStrides maps payloads to the number of float64 lanes each value
// occupies in slot storage.
var payloadStrides = [...]int{
	PayloadFloat:            1,
	PayloadInt:              1,
	PayloadBool:             1,
	PayloadVec2:             2,
	PayloadVec3:             3,
	PayloadColor:            4,
	PayloadShape2D:          1,
	PayloadCameraProjection: 9,
}

// String returns the stable wire name for the payload.
func (p PayloadType) String() string {
	if int(p) < 0 || int(p) >= len(payloadNames) {
		return fmt.Sprintf("payload(%d)", int(p))
	}
	return payloadNames[p]
}

// Stride returns the number of scalar storage lanes one value of this
// payload occupies. Total function over the closed enum.
func (p PayloadType) Stride() int {
	if int(p) < 0 || int(p) >= len(payloadStrides) {
		return 1
	}
	return payloadStrides[p]
}

// Valid reports whether p is a member of the closed enum.
func (p PayloadType) Valid() bool {
	return int(p) >= 0 && int(p) < len(payloadNames)
}

// ParsePayload resolves a wire name back to a PayloadType.
func ParsePayload(name string) (PayloadType, bool) {
	for i, n := range payloadNames {
		if n == name {
			return PayloadType(i), true
		}
	}
	return 0, false
}

// PayloadsCompatible reports whether two payloads may occupy the same
// equality group. Payload unification is strict: no implicit numeric
// coercion between float and int (an explicit adapter block is required).
func PayloadsCompatible(a, b PayloadType) bool {
	return a == b
}
