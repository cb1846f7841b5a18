package blocks

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetlab/kinet/internal/ir"
)

func TestBuiltinRegistry(t *testing.T) {
	reg := Builtin()

	kinds := reg.Kinds()
	assert.True(t, sort.StringsAreSorted(kinds))
	for _, k := range []string{
		KindConst, KindTime, KindOsc, KindSine, KindAdd, KindMul,
		KindUnitDelay, KindArray, KindPolar, KindBroadcast, KindCamera,
		KindRenderDots, KindPulse,
	} {
		_, ok := reg.Lookup(k)
		assert.True(t, ok, "missing builtin %q", k)
	}

	_, ok := reg.Lookup("Warp")
	assert.False(t, ok)
}

func TestBuiltinFlags(t *testing.T) {
	reg := Builtin()

	ud, _ := reg.Lookup(KindUnitDelay)
	assert.True(t, ud.Stateful)

	osc, _ := reg.Lookup(KindOsc)
	assert.True(t, osc.NeedsTime)
	pulse, _ := reg.Lookup(KindPulse)
	assert.True(t, pulse.NeedsTime)

	cam, _ := reg.Lookup(KindCamera)
	assert.True(t, cam.RenderGlobal)
	require.Len(t, cam.Inputs, ir.CamLanes)

	dots, _ := reg.Lookup(KindRenderDots)
	assert.True(t, dots.RenderSink)
	pos, ok := dots.Input("pos")
	require.True(t, ok)
	assert.Nil(t, pos.Default, "pos is required")
	assert.Equal(t, ir.PayloadVec2, pos.Payload)

	bcast, _ := reg.Lookup(KindBroadcast)
	assert.True(t, bcast.Adapter)

	arr, _ := reg.Lookup(KindArray)
	assert.Equal(t, "array", arr.DomainType)
}

func TestBuiltinDefaults(t *testing.T) {
	reg := Builtin()

	osc, _ := reg.Lookup(KindOsc)
	freq, ok := osc.Input("freq")
	require.True(t, ok)
	require.NotNil(t, freq.Default)
	assert.Equal(t, 1.0, *freq.Default)

	pulse, _ := reg.Lookup(KindPulse)
	fire, ok := pulse.Output("fire")
	require.True(t, ok)
	assert.True(t, fire.Discrete)

	// Every defaulted input across the registry, pinned: a wrong or
	// missing default silently changes what unconnected ports compile to.
	for _, tc := range []struct {
		kind, port string
		value      float64
	}{
		{KindOsc, "freq", 1},
		{KindOsc, "phase0", 0},
		{KindSine, "x", 0},
		{KindAdd, "a", 0},
		{KindAdd, "b", 0},
		{KindMul, "a", 0},
		{KindMul, "b", 1},
		{KindUnitDelay, "x", 0},
		{KindPolar, "radius", 1},
		{KindPolar, "angle", 0},
		{KindCamera, "zoom", 1},
		{KindCamera, "viewportW", 1},
		{KindCamera, "viewportH", 1},
		{KindCamera, "far", 1},
		{KindRenderDots, "color", 1},
		{KindRenderDots, "size", 1},
		{KindPulse, "interval", 1},
	} {
		def, ok := reg.Lookup(tc.kind)
		require.True(t, ok, tc.kind)
		in, ok := def.Input(tc.port)
		require.True(t, ok, "%s.%s", tc.kind, tc.port)
		require.NotNil(t, in.Default, "%s.%s", tc.kind, tc.port)
		assert.Equal(t, tc.value, *in.Default, "%s.%s", tc.kind, tc.port)
	}
}

func TestRegisterPanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Definition{Kind: "X"})

	assert.Panics(t, func() { reg.Register(&Definition{Kind: "X"}) }, "duplicate kind")
	assert.Panics(t, func() { reg.Register(&Definition{Kind: ""}) }, "empty kind")

	reg.Seal()
	assert.Panics(t, func() { reg.Register(&Definition{Kind: "Y"}) }, "sealed registry")
}
