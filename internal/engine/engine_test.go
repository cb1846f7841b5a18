package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetlab/kinet/internal/blocks"
	"github.com/kinetlab/kinet/internal/compiler"
	"github.com/kinetlab/kinet/internal/ir"
	"github.com/kinetlab/kinet/internal/patch"
	"github.com/kinetlab/kinet/internal/testutil"
)

func mustCompile(t *testing.T, p *patch.Patch) *ir.CompiledProgram {
	t.Helper()
	res, diags := compiler.Compile(p, blocks.Builtin())
	require.Empty(t, diags)
	return res.Program
}

func mustEngine(t *testing.T, p *patch.Patch) *Engine {
	t.Helper()
	e, err := New(mustCompile(t, p))
	require.NoError(t, err)
	return e
}

// slotByDebug finds a slot id by its "block.port" debug name.
func slotByDebug(t *testing.T, prog *ir.CompiledProgram, debug string) ir.SlotID {
	t.Helper()
	for _, m := range prog.Slots {
		if m.Debug == debug {
			return m.ID
		}
	}
	t.Fatalf("no slot named %q", debug)
	return ir.NoSlot
}

func TestFrameClock(t *testing.T) {
	c := NewFrameClock()
	assert.Equal(t, int64(-1), c.Frame())
	assert.Equal(t, 0.0, c.Time())

	assert.Equal(t, int64(0), c.Advance(0.5))
	assert.Equal(t, int64(1), c.Advance(0.25))
	assert.Equal(t, 0.75, c.Time())

	r := NewFrameClockAt(41, 10.5)
	assert.Equal(t, int64(42), r.Advance(0.5))
	assert.Equal(t, 11.0, r.Time())
}

func TestTickAdvancesLogicalTime(t *testing.T) {
	p := testutil.NewPatch("clock").
		Block("time", blocks.KindTime).
		Build()
	e := mustEngine(t, p)
	slot := slotByDebug(t, e.prog, "time.t")

	f := e.Tick(0.25)
	assert.Equal(t, int64(0), f.Frame)
	assert.Equal(t, 0.25, f.TimeSecs)
	assert.Equal(t, []float64{0.25}, e.ReadSlot(slot))

	f = e.Tick(0.25)
	assert.Equal(t, int64(1), f.Frame)
	assert.Equal(t, 0.5, f.TimeSecs)
	assert.Equal(t, []float64{0.5}, e.ReadSlot(slot))
}

func TestOscPhaseWraps(t *testing.T) {
	p := testutil.NewPatch("osc").
		Block("time", blocks.KindTime).
		Block("freq", blocks.KindConst, "value", 2.0).
		Block("osc", blocks.KindOsc).
		Edge("freq.out", "osc.freq").
		Build()
	e := mustEngine(t, p)
	slot := slotByDebug(t, e.prog, "osc.phase")

	e.Tick(0.25)
	assert.InDelta(t, 0.5, e.ReadSlot(slot)[0], 1e-12, "fract(0.25 * 2)")

	e.Tick(0.25)
	assert.InDelta(t, 0.0, e.ReadSlot(slot)[0], 1e-12, "fract(0.5 * 2) wraps to zero")

	e.Tick(0.1)
	assert.InDelta(t, 0.2, e.ReadSlot(slot)[0], 1e-12)
}

func TestSineOnQuarterTurn(t *testing.T) {
	p := testutil.NewPatch("sine").
		Block("c", blocks.KindConst, "value", 0.25).
		Block("sine", blocks.KindSine).
		Edge("c.out", "sine.x").
		Build()
	e := mustEngine(t, p)
	slot := slotByDebug(t, e.prog, "sine.y")

	e.Tick(1.0 / 60)
	assert.InDelta(t, 1.0, e.ReadSlot(slot)[0], 1e-12, "sin of a quarter turn")
}

func TestUnitDelayIntegrates(t *testing.T) {
	p := testutil.NewPatch("integrator").
		Block("time", blocks.KindTime).
		Block("add", blocks.KindAdd).
		Block("ud", blocks.KindUnitDelay).
		Edge("time.t", "add.a").
		Edge("ud.y", "add.b").
		Edge("add.out", "ud.x").
		Build()
	e := mustEngine(t, p)
	sum := slotByDebug(t, e.prog, "add.out")
	held := slotByDebug(t, e.prog, "ud.y")

	// The delay feeds back last frame's sum, so the sum accumulates
	// 1 + 2 + ... across unit-dt frames.
	e.Tick(1)
	assert.Equal(t, 0.0, e.ReadSlot(held)[0])
	assert.Equal(t, 1.0, e.ReadSlot(sum)[0])

	e.Tick(1)
	assert.Equal(t, 1.0, e.ReadSlot(held)[0])
	assert.Equal(t, 3.0, e.ReadSlot(sum)[0])

	e.Tick(1)
	assert.Equal(t, 3.0, e.ReadSlot(held)[0])
	assert.Equal(t, 6.0, e.ReadSlot(sum)[0])
}

func TestPulseFiresOnInterval(t *testing.T) {
	p := testutil.NewPatch("metronome").
		Block("time", blocks.KindTime).
		Block("iv", blocks.KindConst, "value", 0.5).
		Block("pulse", blocks.KindPulse).
		Edge("iv.out", "pulse.interval").
		Build()
	e := mustEngine(t, p)
	fire := slotByDebug(t, e.prog, "pulse.fire")

	want := []float64{0, 0, 1, 0, 1}
	for i, w := range want {
		e.Tick(0.2)
		assert.Equal(t, w, e.ReadSlot(fire)[0], "frame %d", i)
	}
}

func TestDotsFrame(t *testing.T) {
	p := testutil.NewPatch("orbit").
		Block("arr", blocks.KindArray, "count", 4).
		Block("pol", blocks.KindPolar).
		Block("dots", blocks.KindRenderDots).
		Edge("arr.index", "pol.angle").
		Edge("pol.pos", "dots.pos").
		Build()
	e := mustEngine(t, p)

	f := e.Tick(1.0 / 60)
	require.Len(t, f.Commands, 1)
	cmd := f.Commands[0]
	assert.Equal(t, ir.DrawDots, cmd.Kind)
	assert.Equal(t, 4, cmd.Lanes)
	require.Len(t, cmd.Pos, 8)
	require.Len(t, cmd.Color, 16)

	// Lane i sits at angle i/4 turns on the unit circle.
	want := []float64{1, 0, 0, 1, -1, 0, 0, -1}
	for i, w := range want {
		assert.InDelta(t, w, cmd.Pos[i], 1e-12, "pos[%d]", i)
	}
	for i, c := range cmd.Color {
		assert.Equal(t, 1.0, c, "default color is opaque white, color[%d]", i)
	}
	assert.Equal(t, 1.0, cmd.Size)
}

func TestDefaultCameraWithoutCameraBlock(t *testing.T) {
	p := testutil.NewPatch("plain").
		Block("time", blocks.KindTime).
		Build()
	e := mustEngine(t, p)

	f := e.Tick(1.0 / 60)
	assert.Equal(t, ir.DefaultCamera(), f.Camera)
}

func TestCameraDecode(t *testing.T) {
	p := testutil.NewPatch("framed").
		Block("cam", blocks.KindCamera).
		Block("zoom", blocks.KindConst, "value", 2.0).
		Edge("zoom.out", "cam.zoom").
		Build()
	e := mustEngine(t, p)

	f := e.Tick(1.0 / 60)
	assert.Equal(t, ir.ProjectionOrtho, f.Camera.Projection)
	assert.Equal(t, 2.0, f.Camera.Zoom)
	assert.Equal(t, 1.0, f.Camera.ViewportW)
	assert.Equal(t, 1.0, f.Camera.ViewportH)
}

func TestReplayFromCheckpoint(t *testing.T) {
	p := testutil.NewPatch("clock").
		Block("time", blocks.KindTime).
		Build()
	prog := mustCompile(t, p)

	live, err := New(prog)
	require.NoError(t, err)
	live.Tick(0.5)
	live.Tick(0.5)

	resumed, err := NewWithClock(prog, NewFrameClockAt(live.Clock().Frame(), live.Clock().Time()))
	require.NoError(t, err)

	a := live.Tick(0.25)
	b := resumed.Tick(0.25)
	assert.Equal(t, a.Frame, b.Frame)
	assert.Equal(t, a.TimeSecs, b.TimeSecs)
}

func TestNewRejectsNilProgram(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.True(t, IsBadProgram(err))
}

func TestNewRejectsOverflowingSlot(t *testing.T) {
	p := testutil.NewPatch("clock").
		Block("time", blocks.KindTime).
		Build()
	prog := mustCompile(t, p)
	prog.Slots[0].Offset = prog.SlabSize

	_, err := New(prog)
	require.Error(t, err)
	assert.True(t, IsBadProgram(err))
	assert.Contains(t, err.Error(), "exceeds slab size")
}

func TestNewRejectsCorruptStep(t *testing.T) {
	p := testutil.NewPatch("clock").
		Block("time", blocks.KindTime).
		Build()
	prog := mustCompile(t, p)
	prog.Schedule.Steps[0].Slot = ir.SlotID(len(prog.Slots) + 7)

	_, err := New(prog)
	require.Error(t, err)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeBadStep, re.Code)
}
