package ir

import "math"

// RenderFrameIR is the renderer-facing output of one tick: fully resolved
// numeric buffers and a decoded camera. No CanonicalType, no InstanceRef,
// no slot ids cross this boundary - the type system is erased here.

// Projection is the decoded camera projection mode.
type Projection int

const (
	ProjectionOrtho Projection = iota
	ProjectionPerspective
)

func (p Projection) String() string {
	if p == ProjectionPerspective {
		return "perspective"
	}
	return "ortho"
}

// DecodeProjection maps the camera projection lane to a mode. The value
// selects perspective only when its integer truncation is exactly 1; NaN,
// infinities and every other value decode to ortho. A keyed animation
// sweeping through the lane therefore degrades to ortho instead of
// flickering between modes.
func DecodeProjection(v float64) Projection {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ProjectionOrtho
	}
	if math.Trunc(v) == 1 {
		return ProjectionPerspective
	}
	return ProjectionOrtho
}

// CameraState is the decoded per-frame camera.
type CameraState struct {
	Projection Projection
	Zoom       float64
	CenterX    float64
	CenterY    float64
	Rotation   float64
	ViewportW  float64
	ViewportH  float64
	Near       float64
	Far        float64
}

// DefaultCamera is the camera used when a patch declares no Camera block:
// ortho projection, identity transform.
func DefaultCamera() CameraState {
	return CameraState{
		Projection: ProjectionOrtho,
		Zoom:       1,
		ViewportW:  1,
		ViewportH:  1,
		Near:       0,
		Far:        1,
	}
}

// DrawCommand is one renderer-agnostic draw call. Buffers are laid out
// lane-major: Pos holds 2 floats per lane, Color 4 floats per lane.
type DrawCommand struct {
	Kind  DrawKind
	Lanes int
	Pos   []float64 // len = 2*Lanes
	Color []float64 // len = 4*Lanes
	Size  float64
}

// RenderFrame is the complete output of one tick.
type RenderFrame struct {
	Frame    int64
	TimeSecs float64
	Camera   CameraState
	Commands []DrawCommand
}
