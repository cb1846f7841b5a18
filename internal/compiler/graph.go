package compiler

import (
	"fmt"
	"strings"

	"github.com/kinetlab/kinet/internal/blocks"
	"github.com/kinetlab/kinet/internal/patch"
)

// Derived block ids are prefixed so they can never collide with authored
// ids (the loader rejects authored ids containing '$').
const (
	defaultConstPrefix = "$const:"
	broadcastPrefix    = "$bcast:"
)

// NormBlock is one block of the normalized graph: dense index, resolved
// definition, static config.
type NormBlock struct {
	Index  int
	ID     string
	Def    *blocks.Definition
	Params map[string]float64
}

// Param returns a named parameter or the given default.
func (b NormBlock) Param(name string, def float64) float64 {
	if v, ok := b.Params[name]; ok {
		return v
	}
	return def
}

// NormEdge is one edge with both port definitions resolved.
type NormEdge struct {
	Index   int
	From    patch.PortKey // always an out key
	To      patch.PortKey // always an in key
	FromDef blocks.PortDef
	ToDef   blocks.PortDef
}

// Graph is the normalized patch the extractor walks: dense block and edge
// indices, every defaulted input already backed by a derived Const block,
// every input connected at most once. The compiler reads it; the only
// mutation anywhere in compilation is adapter insertion, which rebuilds the
// graph from the mutated working patch rather than editing in place.
type Graph struct {
	Blocks []NormBlock
	Edges  []NormEdge

	blockIdx map[string]int
	inEdge   map[patch.PortKey]int // input key -> edge index
}

// BlockByID returns the normalized block for an id.
func (g *Graph) BlockByID(id string) (NormBlock, bool) {
	i, ok := g.blockIdx[id]
	if !ok {
		return NormBlock{}, false
	}
	return g.Blocks[i], true
}

// IncomingEdge returns the edge feeding an input port, if any.
func (g *Graph) IncomingEdge(key patch.PortKey) (NormEdge, bool) {
	i, ok := g.inEdge[key]
	if !ok {
		return NormEdge{}, false
	}
	return g.Edges[i], true
}

// buildGraph normalizes a working patch into dense indices. The patch must
// already have passed materializeDefaults: every defaulted input is
// connected. Required-but-unconnected inputs are reported here.
func buildGraph(p *patch.Patch, reg *blocks.Registry) (*Graph, []Diagnostic) {
	var diags []Diagnostic

	work := *p
	work.Sort()

	g := &Graph{
		blockIdx: make(map[string]int, len(work.Blocks)),
		inEdge:   make(map[patch.PortKey]int, len(work.Edges)),
	}

	for _, b := range work.Blocks {
		def, ok := reg.Lookup(b.Kind)
		if !ok {
			diags = append(diags, Diagnostic{
				Code:    CodeUnknownBlock,
				Target:  TargetRef{Block: b.ID},
				Message: fmt.Sprintf("unknown block kind %q", b.Kind),
			})
			continue
		}
		g.blockIdx[b.ID] = len(g.Blocks)
		g.Blocks = append(g.Blocks, NormBlock{
			Index:  len(g.Blocks),
			ID:     b.ID,
			Def:    def,
			Params: b.Params,
		})
	}
	if len(diags) > 0 {
		SortDiagnostics(diags)
		return nil, diags
	}

	for _, e := range work.Edges {
		from, okFrom := g.BlockByID(e.From.Block)
		to, okTo := g.BlockByID(e.To.Block)
		if !okFrom || !okTo {
			diags = append(diags, Diagnostic{
				Code:    CodeBadEdge,
				Target:  TargetRef{Block: e.To.Block, Port: e.To.Port},
				Message: fmt.Sprintf("edge %s -> %s references a missing block", e.From, e.To),
			})
			continue
		}
		fromDef, ok := from.Def.Output(e.From.Port)
		if !ok {
			diags = append(diags, Diagnostic{
				Code:    CodeBadEdge,
				Target:  TargetRef{Block: e.From.Block, Port: e.From.Port},
				Message: fmt.Sprintf("block kind %q has no output %q", from.Def.Kind, e.From.Port),
			})
			continue
		}
		toDef, ok := to.Def.Input(e.To.Port)
		if !ok {
			diags = append(diags, Diagnostic{
				Code:    CodeBadEdge,
				Target:  TargetRef{Block: e.To.Block, Port: e.To.Port},
				Message: fmt.Sprintf("block kind %q has no input %q", to.Def.Kind, e.To.Port),
			})
			continue
		}
		toKey := patch.InKey(e.To.Block, e.To.Port)
		if prev, dup := g.inEdge[toKey]; dup {
			diags = append(diags, Diagnostic{
				Code:    CodeBadEdge,
				Target:  TargetRef{Block: e.To.Block, Port: e.To.Port},
				Message: fmt.Sprintf("input already connected from %s", g.Edges[prev].From),
			})
			continue
		}
		// Temporality is declaration-concrete on both ends, so an event
		// feeding a continuous input is detectable right here without a
		// solver pass.
		if fromDef.Discrete != toDef.Discrete {
			diags = append(diags, Diagnostic{
				Code:    CodeTypeConflict,
				Target:  TargetRef{Block: e.To.Block, Port: e.To.Port},
				Message: fmt.Sprintf("temporality mismatch: %s is %s, %s is %s", e.From, temporalityWord(fromDef.Discrete), e.To, temporalityWord(toDef.Discrete)),
			})
			continue
		}
		idx := len(g.Edges)
		g.Edges = append(g.Edges, NormEdge{
			Index:   idx,
			From:    patch.OutKey(e.From.Block, e.From.Port),
			To:      toKey,
			FromDef: fromDef,
			ToDef:   toDef,
		})
		g.inEdge[toKey] = idx
	}

	// Required inputs must be connected by now; defaulted ones were
	// materialized before this ran.
	for _, b := range g.Blocks {
		for _, in := range b.Def.Inputs {
			key := patch.InKey(b.ID, in.Name)
			if _, ok := g.inEdge[key]; ok {
				continue
			}
			if in.Default != nil && !strings.HasPrefix(b.ID, "$") {
				// materializeDefaults missed it: internal invariant broken.
				panic(fmt.Sprintf("compiler: defaulted input %s not materialized", key))
			}
			if in.Default == nil {
				diags = append(diags, Diagnostic{
					Code:    CodeMissingInput,
					Target:  TargetRef{Block: b.ID, Port: in.Name},
					Message: fmt.Sprintf("required input %q is not connected", in.Name),
				})
			}
		}
	}

	if len(diags) > 0 {
		SortDiagnostics(diags)
		return nil, diags
	}
	return g, nil
}

func temporalityWord(discrete bool) string {
	if discrete {
		return "discrete"
	}
	return "continuous"
}

// materializeDefaults appends a derived Const block and edge for every
// defaulted, unconnected input. Authored patches never contain '$' ids, so
// derived ids cannot collide. Idempotent: already-connected inputs are
// skipped.
func materializeDefaults(p *patch.Patch, reg *blocks.Registry) {
	connected := make(map[patch.PortKey]bool, len(p.Edges))
	for _, e := range p.Edges {
		connected[patch.InKey(e.To.Block, e.To.Port)] = true
	}

	for _, b := range p.Blocks {
		def, ok := reg.Lookup(b.Kind)
		if !ok {
			// buildGraph reports unknown kinds; nothing to materialize.
			continue
		}
		for _, in := range def.Inputs {
			key := patch.InKey(b.ID, in.Name)
			if connected[key] || in.Default == nil {
				continue
			}
			id := defaultConstPrefix + b.ID + "." + in.Name
			p.Blocks = append(p.Blocks, patch.Block{
				ID:     id,
				Kind:   blocks.KindConst,
				Params: map[string]float64{"value": *in.Default},
			})
			p.Edges = append(p.Edges, patch.Edge{
				From: patch.PortRef{Block: id, Port: "out"},
				To:   patch.PortRef{Block: b.ID, Port: in.Name},
			})
		}
	}
}

// clonePatch deep-copies a patch so compilation never aliases caller state.
func clonePatch(p *patch.Patch) *patch.Patch {
	out := &patch.Patch{Name: p.Name}
	out.Blocks = make([]patch.Block, len(p.Blocks))
	for i, b := range p.Blocks {
		nb := b
		if b.Params != nil {
			nb.Params = make(map[string]float64, len(b.Params))
			for k, v := range b.Params {
				nb.Params[k] = v
			}
		}
		out.Blocks[i] = nb
	}
	out.Edges = append([]patch.Edge(nil), p.Edges...)
	return out
}
