package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetlab/kinet/internal/ir"
)

func writeScenario(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

const orbitScenario = `
name: orbit
description: four dots on the unit circle
frames: 2
dt: 0.5
patch: |
  patch: {
    blocks: {
      arr:  {kind: "Array", params: count: 4}
      pol:  kind: "Polar"
      dots: kind: "RenderDots"
    }
    edges: [
      {from: "arr.index", to: "pol.angle"},
      {from: "pol.pos", to: "dots.pos"},
    ]
  }
`

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario(writeScenario(t, orbitScenario))
	require.NoError(t, err)
	assert.Equal(t, "orbit", s.Name)
	assert.Equal(t, 2, s.Frames)
	assert.Equal(t, 0.5, s.Dt)
}

func TestLoadScenarioRejectsBadShapes(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, `frames: 1`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no name")

	_, err = LoadScenario(writeScenario(t, "name: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of patch, patch_file")

	_, err = LoadScenario(writeScenario(t, "name: x\npatch: \"p\"\npatch_file: f.cue\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of patch, patch_file")

	_, err = LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestRunProducesFrames(t *testing.T) {
	s, err := LoadScenario(writeScenario(t, orbitScenario))
	require.NoError(t, err)

	res, err := Run(s)
	require.NoError(t, err)
	require.NotNil(t, res.Program)
	assert.Nil(t, res.ParseErr)
	assert.Empty(t, res.Diagnostics)

	require.Len(t, res.Frames, 2)
	assert.Equal(t, int64(0), res.Frames[0].Frame)
	assert.Equal(t, int64(1), res.Frames[1].Frame)
	assert.Equal(t, 1.0, res.Frames[1].TimeSecs)
	require.Len(t, res.Frames[0].Commands, 1)
	assert.Equal(t, 4, res.Frames[0].Commands[0].Lanes)
}

func TestRunCapturesParseError(t *testing.T) {
	s, err := LoadScenario(writeScenario(t, "name: broken\npatch: \"not cue {\"\n"))
	require.NoError(t, err)

	res, err := Run(s)
	require.NoError(t, err)
	assert.Error(t, res.ParseErr)
	assert.Nil(t, res.Program)

	snap, err := BuildSnapshot(s, res, false)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.ParseError)
	assert.Empty(t, snap.ProgramHash)
}

func TestSnapshotDeterminism(t *testing.T) {
	s, err := LoadScenario(writeScenario(t, orbitScenario))
	require.NoError(t, err)

	marshal := func() []byte {
		res, err := Run(s)
		require.NoError(t, err)
		snap, err := BuildSnapshot(s, res, true)
		require.NoError(t, err)
		m, err := ir.CanonicalMap(snap)
		require.NoError(t, err)
		b, err := ir.MarshalCanonical(m)
		require.NoError(t, err)
		return b
	}

	assert.Equal(t, marshal(), marshal(), "two runs emit identical snapshot bytes")
}

func TestGoldenCameraConflict(t *testing.T) {
	s := &Scenario{
		Name: "camera-conflict",
		Patch: `patch: blocks: {
			camA: kind: "Camera"
			camB: kind: "Camera"
		}`,
	}
	RunWithGolden(t, s, false)
}
