package engine

// FrameClock is the logical frame clock. Frames are numbered from 0 and
// time is the sum of the dt values fed in; there is no wall-clock anywhere
// in the engine, which is what makes replay byte-identical.
type FrameClock struct {
	frame int64
	time  float64
}

// NewFrameClock creates a clock positioned before the first frame.
func NewFrameClock() *FrameClock {
	return &FrameClock{frame: -1}
}

// NewFrameClockAt creates a clock resumed at a known position. Used when
// replaying a recorded session from a checkpoint.
func NewFrameClockAt(frame int64, time float64) *FrameClock {
	return &FrameClock{frame: frame, time: time}
}

// Advance moves to the next frame, accumulating dt into logical time, and
// returns the new frame number.
func (c *FrameClock) Advance(dt float64) int64 {
	c.frame++
	c.time += dt
	return c.frame
}

// Frame returns the current frame number, -1 before the first Advance.
func (c *FrameClock) Frame() int64 {
	return c.frame
}

// Time returns accumulated logical time in seconds.
func (c *FrameClock) Time() float64 {
	return c.time
}
