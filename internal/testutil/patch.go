// Package testutil builds patches for tests without going through CUE.
// Builders are deterministic: the underlying patch is sorted on Build, so
// construction order never leaks into assertions.
package testutil

import (
	"fmt"
	"strings"

	"github.com/kinetlab/kinet/internal/patch"
)

// PatchBuilder accumulates blocks and edges fluently.
type PatchBuilder struct {
	p patch.Patch
}

// NewPatch starts a named patch.
func NewPatch(name string) *PatchBuilder {
	return &PatchBuilder{p: patch.Patch{Name: name}}
}

// Block adds a block. Params are alternating name, value pairs.
func (b *PatchBuilder) Block(id, kind string, params ...any) *PatchBuilder {
	if len(params)%2 != 0 {
		panic("testutil: params must be name, value pairs")
	}
	blk := patch.Block{ID: id, Kind: kind}
	if len(params) > 0 {
		blk.Params = make(map[string]float64, len(params)/2)
	}
	for i := 0; i < len(params); i += 2 {
		name, ok := params[i].(string)
		if !ok {
			panic(fmt.Sprintf("testutil: param name %v is not a string", params[i]))
		}
		switch v := params[i+1].(type) {
		case float64:
			blk.Params[name] = v
		case int:
			blk.Params[name] = float64(v)
		default:
			panic(fmt.Sprintf("testutil: param %s value %v is not numeric", name, params[i+1]))
		}
	}
	b.p.Blocks = append(b.p.Blocks, blk)
	return b
}

// Edge connects "block.port" to "block.port".
func (b *PatchBuilder) Edge(from, to string) *PatchBuilder {
	b.p.Edges = append(b.p.Edges, patch.Edge{From: portRef(from), To: portRef(to)})
	return b
}

// Build sorts and returns the patch.
func (b *PatchBuilder) Build() *patch.Patch {
	p := b.p
	p.Sort()
	return &p
}

func portRef(s string) patch.PortRef {
	dot := strings.LastIndex(s, ".")
	if dot <= 0 || dot == len(s)-1 {
		panic(fmt.Sprintf("testutil: %q is not block.port", s))
	}
	return patch.PortRef{Block: s[:dot], Port: s[dot+1:]}
}
