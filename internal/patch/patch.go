// Package patch defines the authored patch graph: blocks, ports, and edges
// as the user (or the patchfile loader) created them. The compiler reads
// this graph, never mutates it; the single mutation point in the whole
// system is adapter insertion, which works on the compiler's own normalized
// copy.
package patch

import (
	"fmt"
	"slices"
)

// Block is one computational unit in the patch graph. Kind indexes the
// block-definition registry; Params carries static numeric configuration
// (constant values, lane counts, frequencies).
type Block struct {
	ID     string             `json:"id"`
	Kind   string             `json:"kind"`
	Params map[string]float64 `json:"params,omitempty"`
}

// Param returns a named parameter or the given default.
func (b Block) Param(name string, def float64) float64 {
	if v, ok := b.Params[name]; ok {
		return v
	}
	return def
}

// PortRef addresses one port on one block.
type PortRef struct {
	Block string `json:"block"`
	Port  string `json:"port"`
}

func (r PortRef) String() string {
	return r.Block + "." + r.Port
}

// Edge connects an output port to an input port. An edge is fundamentally
// a type-equality constraint across all axes.
type Edge struct {
	From PortRef `json:"from"`
	To   PortRef `json:"to"`
}

// Patch is a complete authored graph.
type Patch struct {
	Name   string  `json:"name"`
	Blocks []Block `json:"blocks"`
	Edges  []Edge  `json:"edges"`
}

// Sort orders blocks by id and edges by (to, from), the canonical order
// every compiler pass iterates in. Loaders call this once; compiling an
// unsorted patch is still deterministic because the compiler re-sorts its
// own indices, but sorted patches make goldens readable.
func (p *Patch) Sort() {
	slices.SortFunc(p.Blocks, func(a, b Block) int {
		return compareStrings(a.ID, b.ID)
	})
	slices.SortFunc(p.Edges, func(a, b Edge) int {
		if c := comparePortRefs(a.To, b.To); c != 0 {
			return c
		}
		return comparePortRefs(a.From, b.From)
	})
}

// FindBlock returns the block with the given id.
func (p *Patch) FindBlock(id string) (Block, bool) {
	for _, b := range p.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return Block{}, false
}

// Validate checks referential integrity: unique block ids and edges that
// reference existing blocks. Kind and port validity are the compiler's
// business (it owns the registry); this is pure graph shape.
func (p *Patch) Validate() error {
	seen := make(map[string]bool, len(p.Blocks))
	for _, b := range p.Blocks {
		if b.ID == "" {
			return fmt.Errorf("block with empty id")
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate block id %q", b.ID)
		}
		seen[b.ID] = true
	}
	for _, e := range p.Edges {
		if !seen[e.From.Block] {
			return fmt.Errorf("edge %s -> %s: unknown source block %q", e.From, e.To, e.From.Block)
		}
		if !seen[e.To.Block] {
			return fmt.Errorf("edge %s -> %s: unknown target block %q", e.From, e.To, e.To.Block)
		}
	}
	return nil
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func comparePortRefs(a, b PortRef) int {
	if c := compareStrings(a.Block, b.Block); c != 0 {
		return c
	}
	return compareStrings(a.Port, b.Port)
}
