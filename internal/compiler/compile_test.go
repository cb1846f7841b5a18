package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetlab/kinet/internal/blocks"
	"github.com/kinetlab/kinet/internal/ir"
	"github.com/kinetlab/kinet/internal/patch"
	"github.com/kinetlab/kinet/internal/testutil"
)

func compileOK(t *testing.T, p *patch.Patch) *Result {
	t.Helper()
	res, diags := Compile(p, blocks.Builtin())
	require.Empty(t, diags, "expected a clean compile")
	require.NotNil(t, res)
	return res
}

func compileFail(t *testing.T, p *patch.Patch) []Diagnostic {
	t.Helper()
	res, diags := Compile(p, blocks.Builtin())
	require.Nil(t, res)
	require.NotEmpty(t, diags)
	return diags
}

func TestCompileEmptyPatch(t *testing.T) {
	res := compileOK(t, testutil.NewPatch("empty").Build())
	assert.Empty(t, res.Program.Schedule.Steps)
	assert.Empty(t, res.Program.Draws)
	assert.Empty(t, res.Program.Globals)
}

func TestCompileFieldPipeline(t *testing.T) {
	p := testutil.NewPatch("orbit").
		Block("arr", blocks.KindArray, "count", 4).
		Block("pol", blocks.KindPolar).
		Block("dots", blocks.KindRenderDots).
		Edge("arr.index", "pol.angle").
		Edge("pol.pos", "dots.pos").
		Build()

	res := compileOK(t, p)

	// Defaulted pol.radius and dots.color are signal constants feeding
	// field inputs; each gets a broadcast adapter spliced in.
	adapters := map[string]bool{}
	for key := range res.Facts.Ports {
		if strings.HasPrefix(key.Block, "$bcast:") {
			adapters[key.Block] = true
		}
	}
	assert.Len(t, adapters, 2)
	assert.True(t, adapters["$bcast:pol.radius"])
	assert.True(t, adapters["$bcast:dots.color"])

	require.Len(t, res.Facts.Instances, 1)
	inst := res.Facts.Instances[res.Facts.InstanceKeys()[0]]
	assert.Equal(t, "arr", inst.Ref.BlockID)
	assert.Equal(t, 4, inst.Count)
	assert.Contains(t, inst.Ports, patch.PortKey{Block: "dots", Port: "pos", Dir: patch.DirIn})

	posType := res.Facts.Ports[patch.PortKey{Block: "pol", Port: "pos", Dir: patch.DirOut}]
	assert.Equal(t, ir.PayloadVec2, posType.Payload)
	assert.True(t, posType.Extent.Card.Many)

	require.Len(t, res.Program.Draws, 1)
	d := res.Program.Draws[0]
	assert.NotEqual(t, ir.NoSlot, d.Pos)
	assert.NotEqual(t, ir.NoSlot, d.Color)
	assert.NotEqual(t, ir.NoSlot, d.Size)
	assert.Empty(t, res.Program.Globals, "no camera block, renderer uses the default")
}

func TestCompileSchedulePhaseOrder(t *testing.T) {
	p := testutil.NewPatch("orbit").
		Block("arr", blocks.KindArray, "count", 3).
		Block("pol", blocks.KindPolar).
		Block("dots", blocks.KindRenderDots).
		Edge("arr.index", "pol.angle").
		Edge("pol.pos", "dots.pos").
		Build()

	res := compileOK(t, p)
	steps := res.Program.Schedule.Steps
	require.NotEmpty(t, steps)

	last := ir.PhaseSignalEval
	renders := 0
	for _, s := range steps {
		ph := s.Kind.Phase()
		assert.GreaterOrEqual(t, int(ph), int(last), "phases never go backwards")
		last = ph
		if s.Kind == ir.StepRender {
			renders++
		}
	}
	assert.Equal(t, 1, renders)
	assert.Equal(t, ir.StepRender, steps[len(steps)-1].Kind,
		"no state in this patch, render closes the frame")
}

func TestCompileDeterministic(t *testing.T) {
	build := func() *patch.Patch {
		return testutil.NewPatch("orbit").
			Block("arr", blocks.KindArray, "count", 4).
			Block("pol", blocks.KindPolar).
			Block("dots", blocks.KindRenderDots).
			Edge("arr.index", "pol.angle").
			Edge("pol.pos", "dots.pos").
			Build()
	}

	a := compileOK(t, build())
	b := compileOK(t, build())

	ha, err := a.Program.ProgramHash()
	require.NoError(t, err)
	hb, err := b.Program.ProgramHash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestCompileSignalWebResolvesToOne(t *testing.T) {
	p := testutil.NewPatch("tone").
		Block("time", blocks.KindTime).
		Block("osc", blocks.KindOsc).
		Block("sine", blocks.KindSine).
		Edge("osc.phase", "sine.x").
		Build()

	res := compileOK(t, p)
	assert.Empty(t, res.Facts.Instances)
	for key, typ := range res.Facts.Ports {
		assert.False(t, typ.Extent.Card.Many, "port %s resolved many in a pure signal web", key)
	}
}

func TestCompileDelayedFeedbackIsLegal(t *testing.T) {
	p := testutil.NewPatch("integrator").
		Block("sine", blocks.KindSine).
		Block("add", blocks.KindAdd).
		Block("ud", blocks.KindUnitDelay).
		Edge("sine.y", "add.a").
		Edge("ud.y", "add.b").
		Edge("add.out", "ud.x").
		Build()

	res := compileOK(t, p)

	var writes int
	steps := res.Program.Schedule.Steps
	for _, s := range steps {
		if s.Kind == ir.StepWriteState {
			writes++
		}
	}
	assert.Equal(t, 1, writes)
	assert.Equal(t, ir.StepWriteState, steps[len(steps)-1].Kind)
}

func TestCompileCycleWithoutDelay(t *testing.T) {
	// Add's defaulted b input keeps the web typeable; the s1 <-> s2 loop
	// still has no delay on it.
	p := testutil.NewPatch("loop").
		Block("s1", blocks.KindSine).
		Block("s2", blocks.KindAdd).
		Edge("s1.y", "s2.a").
		Edge("s2.out", "s1.x").
		Build()

	diags := compileFail(t, p)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeCycleDetected, diags[0].Code)
	assert.Equal(t, "s1", diags[0].Target.Block)
	assert.Equal(t, "s1 -> s2", diags[0].Details["blocks"])
}

func TestCompileNoAdapterForFieldIntoSignal(t *testing.T) {
	p := testutil.NewPatch("bad").
		Block("arr", blocks.KindArray, "count", 4).
		Block("time", blocks.KindTime).
		Block("osc", blocks.KindOsc).
		Edge("arr.index", "osc.freq").
		Build()

	diags := compileFail(t, p)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeNoAdapter, diags[0].Code)
	assert.Equal(t, "osc", diags[0].Target.Block)
	assert.Equal(t, "freq", diags[0].Target.Port)
}

func TestCompileInstanceConflict(t *testing.T) {
	// Identical lane counts on purpose: instances unify by identity, not
	// by count, so two four-lane arrays still conflict.
	p := testutil.NewPatch("twolanes").
		Block("a1", blocks.KindArray, "count", 4).
		Block("a2", blocks.KindArray, "count", 4).
		Block("add", blocks.KindAdd).
		Edge("a1.index", "add.a").
		Edge("a2.index", "add.b").
		Build()

	diags := compileFail(t, p)
	require.NotEmpty(t, diags)
	assert.Equal(t, CodeInstanceConflict, diags[0].Code)
}

func TestCompileCameraSingle(t *testing.T) {
	p := testutil.NewPatch("framed").
		Block("cam", blocks.KindCamera).
		Build()

	res := compileOK(t, p)
	require.Len(t, res.Program.Globals, 1)
	g := res.Program.Globals[0]
	assert.Equal(t, ir.RenderGlobalCamera, g.Kind)
	assert.Equal(t, "cam", g.BlockID)
	assert.Equal(t, ir.CamLanes, res.Program.Slot(g.Slot).Stride)
}

func TestCompileCameraMultiple(t *testing.T) {
	p := testutil.NewPatch("overframed").
		Block("camB", blocks.KindCamera).
		Block("camA", blocks.KindCamera).
		Build()

	diags := compileFail(t, p)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeCameraMultiple, diags[0].Code)
	assert.Equal(t, "camA", diags[0].Target.Block, "anchored at the smallest id")
	assert.Equal(t, "camA, camB", diags[0].Details["blocks"])
}

func TestCompileNoTimeRoot(t *testing.T) {
	p := testutil.NewPatch("adrift").
		Block("osc", blocks.KindOsc).
		Build()

	diags := compileFail(t, p)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeNoTimeRoot, diags[0].Code)
	assert.Equal(t, "osc", diags[0].Target.Block)
	assert.Contains(t, diags[0].Message, "no Time block")
}

func TestCompileUnknownBlock(t *testing.T) {
	p := testutil.NewPatch("mystery").
		Block("w", "Warp").
		Build()

	diags := compileFail(t, p)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeUnknownBlock, diags[0].Code)
	assert.Contains(t, diags[0].Message, `unknown block kind "Warp"`)
}

func TestCompileEdgeToMissingBlock(t *testing.T) {
	p := testutil.NewPatch("dangling").
		Block("sine", blocks.KindSine).
		Edge("ghost.out", "sine.x").
		Build()

	diags := compileFail(t, p)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeBadEdge, diags[0].Code)
	assert.Contains(t, diags[0].Message, "unknown source block")
}

func TestCompileEdgeToMissingPort(t *testing.T) {
	p := testutil.NewPatch("typo").
		Block("s1", blocks.KindSine).
		Block("s2", blocks.KindSine).
		Edge("s1.z", "s2.x").
		Build()

	diags := compileFail(t, p)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeBadEdge, diags[0].Code)
	assert.Contains(t, diags[0].Message, `no output "z"`)
}

func TestCompileDuplicateInput(t *testing.T) {
	p := testutil.NewPatch("doublefeed").
		Block("s1", blocks.KindSine).
		Block("s2", blocks.KindSine).
		Block("s3", blocks.KindSine).
		Edge("s1.y", "s3.x").
		Edge("s2.y", "s3.x").
		Build()

	diags := compileFail(t, p)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeBadEdge, diags[0].Code)
	assert.Contains(t, diags[0].Message, "already connected")
}

func TestCompileMissingRequiredInput(t *testing.T) {
	p := testutil.NewPatch("blind").
		Block("dots", blocks.KindRenderDots).
		Build()

	diags := compileFail(t, p)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeMissingInput, diags[0].Code)
	assert.Equal(t, "dots", diags[0].Target.Block)
	assert.Equal(t, "pos", diags[0].Target.Port)
}

func TestCompileTemporalityMismatch(t *testing.T) {
	p := testutil.NewPatch("spiky").
		Block("time", blocks.KindTime).
		Block("pulse", blocks.KindPulse).
		Block("sine", blocks.KindSine).
		Edge("pulse.fire", "sine.x").
		Build()

	diags := compileFail(t, p)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeTypeConflict, diags[0].Code)
	assert.Contains(t, diags[0].Message, "temporality")
}

func TestCompileUnresolvedPayload(t *testing.T) {
	// A lone Const feeds nothing, so its polymorphic payload never binds.
	p := testutil.NewPatch("loose").
		Block("c", blocks.KindConst, "value", 3.0).
		Build()

	diags := compileFail(t, p)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeUnresolvedPayload, diags[0].Code)
	assert.Equal(t, "c", diags[0].Target.Block)
	assert.Equal(t, "out", diags[0].Target.Port)
}

func TestCompileUnresolvedCardinality(t *testing.T) {
	// Two mapped blocks feeding each other carry no cardinality evidence
	// at all: nothing clamps the web to one and nothing mints lanes. The
	// group must surface as unresolved, anchored at its smallest port.
	p := testutil.NewPatch("floating").
		Block("s1", blocks.KindSine).
		Block("s2", blocks.KindSine).
		Edge("s1.y", "s2.x").
		Edge("s2.y", "s1.x").
		Build()

	diags := compileFail(t, p)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeUnresolvedCardinality, diags[0].Code)
	assert.Equal(t, "s1", diags[0].Target.Block)
	assert.Equal(t, "x", diags[0].Target.Port)
}

func TestSolveCardZipAllUnknownStaysUnresolved(t *testing.T) {
	ka, kb, ko := patch.InKey("mix", "a"), patch.InKey("mix", "b"), patch.OutKey("mix", "out")
	ex := &Extraction{
		Keys: []patch.PortKey{ka, kb, ko},
		Drafts: map[patch.PortKey]*DraftType{
			ka: {Payload: axisInst(ir.PayloadFloat), Unit: axisInst(ir.UnitScalar), Card: axisVar[CardValue](0)},
			kb: {Payload: axisInst(ir.PayloadFloat), Unit: axisInst(ir.UnitScalar), Card: axisVar[CardValue](1)},
			ko: {Payload: axisInst(ir.PayloadFloat), Unit: axisInst(ir.UnitScalar), Card: axisVar[CardValue](2)},
		},
		Card:     []cardConstraint{{Kind: cardZip, Ports: []patch.PortKey{ka, kb, ko}}},
		VarCount: 3,
	}

	sol := solveCard(ex)
	assert.Empty(t, sol.ports)
	assert.Empty(t, sol.mismatches)
	assert.Equal(t, []patch.PortKey{ka, kb, ko}, sol.unresolvedGroups)
}

func TestSolveCardZipOnePinsUnknownMembers(t *testing.T) {
	// A zip with a one member and no many member does no broadcasting,
	// so the remaining members resolve to one with it.
	ka, kb, ko := patch.InKey("mix", "a"), patch.InKey("mix", "b"), patch.OutKey("mix", "out")
	ex := &Extraction{
		Keys: []patch.PortKey{ka, kb, ko},
		Drafts: map[patch.PortKey]*DraftType{
			ka: {Payload: axisInst(ir.PayloadFloat), Unit: axisInst(ir.UnitScalar), Card: axisInst(cardOne())},
			kb: {Payload: axisInst(ir.PayloadFloat), Unit: axisInst(ir.UnitScalar), Card: axisVar[CardValue](0)},
			ko: {Payload: axisInst(ir.PayloadFloat), Unit: axisInst(ir.UnitScalar), Card: axisVar[CardValue](1)},
		},
		Card: []cardConstraint{
			{Kind: cardClampOne, Port: ka},
			{Kind: cardZip, Ports: []patch.PortKey{ka, kb, ko}},
		},
		VarCount: 2,
	}

	sol := solveCard(ex)
	assert.Empty(t, sol.unresolvedGroups)
	for _, key := range []patch.PortKey{ka, kb, ko} {
		assert.Equal(t, ir.CardOne(), sol.ports[key], key.String())
	}
}

func TestFinalizeReportsUnresolvedUnit(t *testing.T) {
	// No builtin leaves a unit group without a declaration default, so
	// the unit-unresolved path is pinned at the solver boundary.
	ka, kb := patch.OutKey("u1", "out"), patch.InKey("u2", "in")
	ex := &Extraction{
		Keys: []patch.PortKey{ka, kb},
		Drafts: map[patch.PortKey]*DraftType{
			ka: {Payload: axisInst(ir.PayloadFloat), Unit: axisVar[ir.Unit](0), Card: axisInst(cardOne())},
			kb: {Payload: axisInst(ir.PayloadFloat), Unit: axisVar[ir.Unit](1), Card: axisInst(cardOne())},
		},
		Payload: []payloadConstraint{
			{Kind: valueFixed, Port: ka, Value: ir.PayloadFloat},
			{Kind: valueFixed, Port: kb, Value: ir.PayloadFloat},
		},
		Unit: []unitConstraint{{Kind: valueEqual, A: ka, B: kb}},
		Card: []cardConstraint{
			{Kind: cardClampOne, Port: ka},
			{Kind: cardClampOne, Port: kb},
		},
		VarCount: 2,
	}

	facts, unresolved := finalize(&Graph{}, ex, solvePayload(ex), solveUnit(ex), solveCard(ex))
	require.Len(t, unresolved, 1)
	assert.Equal(t, CodeUnresolvedUnit, unresolved[0].Code)
	assert.Equal(t, "u1", unresolved[0].Target.Block)
	assert.Equal(t, "out", unresolved[0].Target.Port)
	assert.Empty(t, facts.Ports)
}

func TestCompileDoesNotMutateInput(t *testing.T) {
	p := testutil.NewPatch("orbit").
		Block("arr", blocks.KindArray, "count", 4).
		Block("pol", blocks.KindPolar).
		Block("dots", blocks.KindRenderDots).
		Edge("arr.index", "pol.angle").
		Edge("pol.pos", "dots.pos").
		Build()

	nb, ne := len(p.Blocks), len(p.Edges)
	compileOK(t, p)
	assert.Len(t, p.Blocks, nb, "adapter insertion must stay on the clone")
	assert.Len(t, p.Edges, ne)
}

func TestCompileSingleWriterPerSlot(t *testing.T) {
	p := testutil.NewPatch("fan").
		Block("sine", blocks.KindSine).
		Block("a1", blocks.KindAdd).
		Block("a2", blocks.KindAdd).
		Edge("sine.y", "a1.a").
		Edge("sine.y", "a2.a").
		Build()

	res := compileOK(t, p)

	written := map[ir.SlotID]bool{}
	for _, s := range res.Program.Schedule.Steps {
		var w ir.SlotID
		switch s.Kind {
		case ir.StepEvalSignal, ir.StepMaterializeField, ir.StepEvalEvent:
			w = s.Slot
		case ir.StepWriteState:
			w = s.Dst
		default:
			continue
		}
		assert.False(t, written[w], "slot %d written twice", w)
		written[w] = true
	}
}
