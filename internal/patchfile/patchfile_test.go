package patchfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetlab/kinet/internal/patch"
)

const orbitSource = `
patch: {
	name: "orbit"
	blocks: {
		arr:  {kind: "Array", params: count: 24}
		pol:  kind: "Polar"
		dots: kind: "RenderDots"
	}
	edges: [
		{from: "arr.index", to: "pol.angle"},
		{from: "pol.pos", to: "dots.pos"},
	]
}
`

func TestParseOrbit(t *testing.T) {
	p, err := Parse("orbit.cue", orbitSource)
	require.NoError(t, err)

	assert.Equal(t, "orbit", p.Name)
	require.Len(t, p.Blocks, 3)
	assert.Equal(t, "arr", p.Blocks[0].ID, "blocks come back sorted")
	assert.Equal(t, 24.0, p.Blocks[0].Param("count", 8))
	assert.Equal(t, "Polar", p.Blocks[2].Kind)

	require.Len(t, p.Edges, 2)
	assert.Equal(t, patch.PortRef{Block: "arr", Port: "index"}, p.Edges[0].From)
	assert.Equal(t, patch.PortRef{Block: "pol", Port: "angle"}, p.Edges[0].To)
}

func TestParseUsesCueDefaults(t *testing.T) {
	src := `
count: *8 | int
patch: blocks: arr: {kind: "Array", params: count: count}
`
	p, err := Parse("defaults.cue", src)
	require.NoError(t, err)
	assert.Equal(t, 8.0, p.Blocks[0].Param("count", 0))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orbit.cue")
	require.NoError(t, os.WriteFile(path, []byte(orbitSource), 0o644))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "orbit", p.Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, CodeParse, pe.Code)
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"no patch field", `other: 1`, "no top-level patch field"},
		{"no blocks", `patch: name: "x"`, "no blocks field"},
		{"missing kind", `patch: blocks: a: {params: count: 1}`, `block "a" has no kind`},
		{"reserved id", `patch: blocks: "$const:x": kind: "Const"`, "'$' is reserved"},
		{"bad param", `patch: blocks: a: {kind: "Const", params: value: "loud"}`, "must be numeric"},
		{"bad edge ref", `patch: {blocks: a: kind: "Time", edges: [{from: "nodot", to: "a.x"}]}`, "is not block.port"},
		{"missing endpoint", `patch: {blocks: a: kind: "Time", edges: [{from: "a.t"}]}`, "no to endpoint"},
		{"dangling edge", `patch: {blocks: a: kind: "Time", edges: [{from: "ghost.t", to: "a.x"}]}`, "unknown source block"},
	}
	for _, tc := range cases {
		_, err := Parse(tc.name+".cue", tc.src)
		require.Error(t, err, tc.name)
		var pe *ParseError
		require.ErrorAs(t, err, &pe, tc.name)
		assert.Equal(t, CodeParse, pe.Code, tc.name)
		assert.Contains(t, pe.Message, tc.want, tc.name)
	}
}
