package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{
		"zeta":  1,
		"alpha": 2,
		"mid":   3,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zeta":1}`, string(b))
}

func TestMarshalCanonicalUTF16KeyOrder(t *testing.T) {
	// U+1D306 encodes as a surrogate pair starting 0xD834, which sorts
	// after U+FF01 in UTF-16 code units despite the larger code point
	// coming first byte-wise in UTF-8.
	b, err := MarshalCanonical(map[string]any{
		"\U0001D306": 1,
		"！":     2,
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"！\":2,\"\U0001D306\":1}", string(b))
}

func TestMarshalCanonicalFloats(t *testing.T) {
	b, err := MarshalCanonical([]any{1.0, 0.5, -0.0, 1e21})
	require.NoError(t, err)
	assert.Equal(t, `[1,0.5,0,1e+21]`, string(b))
}

func TestMarshalCanonicalRejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(math.NaN())
	assert.Error(t, err)
	_, err = MarshalCanonical(math.Inf(1))
	assert.Error(t, err)
}

func TestMarshalCanonicalRejectsNull(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	b, err := MarshalCanonical("a<b&c>d")
	require.NoError(t, err)
	assert.Equal(t, `"a<b&c>d"`, string(b))
}

func TestCanonicalMapKeepsIntegersExact(t *testing.T) {
	type probe struct {
		ID int64 `json:"id"`
	}
	m, err := CanonicalMap(probe{ID: 1<<53 + 1})
	require.NoError(t, err)
	b, err := MarshalCanonical(m)
	require.NoError(t, err)
	assert.Equal(t, `{"id":9007199254740993}`, string(b))
}

func TestHashCanonicalIgnoresMapOrder(t *testing.T) {
	a, err := HashCanonical(DomainPatch, map[string]any{"x": 1, "y": 2})
	require.NoError(t, err)
	b, err := HashCanonical(DomainPatch, map[string]any{"y": 2, "x": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashCanonicalDomainSeparation(t *testing.T) {
	v := map[string]any{"x": 1}
	a, err := HashCanonical(DomainPatch, v)
	require.NoError(t, err)
	b, err := HashCanonical(DomainProgram, v)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}
