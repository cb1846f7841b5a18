package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetlab/kinet/internal/blocks"
	"github.com/kinetlab/kinet/internal/compiler"
	"github.com/kinetlab/kinet/internal/patch"
	"github.com/kinetlab/kinet/internal/testutil"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "kinet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func orbitPatch() *patch.Patch {
	return testutil.NewPatch("orbit").
		Block("arr", blocks.KindArray, "count", 4).
		Block("pol", blocks.KindPolar).
		Block("dots", blocks.KindRenderDots).
		Edge("arr.index", "pol.angle").
		Edge("pol.pos", "dots.pos").
		Build()
}

func TestPatchHashIgnoresOrder(t *testing.T) {
	a := orbitPatch()
	b := &patch.Patch{
		Name:   a.Name,
		Blocks: []patch.Block{a.Blocks[2], a.Blocks[0], a.Blocks[1]},
		Edges:  []patch.Edge{a.Edges[1], a.Edges[0]},
	}

	ha, err := PatchHash(a)
	require.NoError(t, err)
	hb, err := PatchHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)

	other := testutil.NewPatch("other").Block("time", blocks.KindTime).Build()
	ho, err := PatchHash(other)
	require.NoError(t, err)
	assert.NotEqual(t, ha, ho)
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)

	p := orbitPatch()
	res, diags := compiler.Compile(p, blocks.Builtin())
	require.Empty(t, diags)

	key, err := PatchHash(p)
	require.NoError(t, err)

	_, hit, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, hit)

	entryID, err := c.Put(ctx, key, res.Program)
	require.NoError(t, err)
	assert.NotEmpty(t, entryID)

	got, hit, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, hit)

	wantHash, err := res.Program.ProgramHash()
	require.NoError(t, err)
	gotHash, err := got.ProgramHash()
	require.NoError(t, err)
	assert.Equal(t, wantHash, gotHash, "cached program round-trips hash-identically")

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, key, entries[0][0])
	assert.Equal(t, wantHash, entries[0][1])
}

func TestPutReplacesExisting(t *testing.T) {
	ctx := context.Background()
	c := openTemp(t)

	p := orbitPatch()
	res, diags := compiler.Compile(p, blocks.Builtin())
	require.Empty(t, diags)
	key, err := PatchHash(p)
	require.NoError(t, err)

	first, err := c.Put(ctx, key, res.Program)
	require.NoError(t, err)
	second, err := c.Put(ctx, key, res.Program)
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "each put mints a fresh entry id")

	entries, err := c.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpenCreatesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kinet.db")
	c1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c1.Close())

	c2, err := Open(path)
	require.NoError(t, err)
	defer c2.Close()

	entries, err := c2.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
