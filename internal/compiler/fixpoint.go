package compiler

import (
	"fmt"
	"slices"
	"sort"

	"github.com/kinetlab/kinet/internal/blocks"
	"github.com/kinetlab/kinet/internal/ir"
	"github.com/kinetlab/kinet/internal/patch"
)

// TypeFacts is the solver's boundary artifact: the final canonical type of
// every port, plus an index from instance identity to every port sharing
// it. Lowering consumes it; after the IR is built it is discarded.
type TypeFacts struct {
	Ports     map[patch.PortKey]ir.CanonicalType
	Instances map[string]*InstanceFact // keyed by InstanceRef.String()
}

// InstanceFact records one lane group: its ref, static lane count, and
// every port typed against it (sorted).
type InstanceFact struct {
	Ref   ir.InstanceRef
	Count int
	Ports []patch.PortKey
}

// InstanceKeys returns the instance index keys in sorted order.
func (f *TypeFacts) InstanceKeys() []string {
	keys := make([]string, 0, len(f.Instances))
	for k := range f.Instances {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalizeAndSolve is the fixpoint driver: extract constraints, run the
// three solvers, and either finalize every port or insert broadcast
// adapters and go around again. Adapter insertion is the only graph
// mutation in the entire compiler; the loop is bounded and every iteration
// that does not finalize must insert at least one adapter (forward
// progress), else the driver reports itself stuck.
func normalizeAndSolve(work *patch.Patch, reg *blocks.Registry) (*Graph, *TypeFacts, []Diagnostic) {
	materializeDefaults(work, reg)

	// Each iteration beyond the first must adapt a distinct edge, and
	// every edge can be adapted at most once.
	maxIters := len(work.Edges) + 2
	adapted := make(map[string]bool)

	for iter := 0; iter < maxIters; iter++ {
		g, diags := buildGraph(work, reg)
		if len(diags) > 0 {
			return nil, nil, diags
		}

		ex := extract(g)
		pay := solvePayload(ex)
		unit := solveUnit(ex)
		card := solveCard(ex)

		var hard []Diagnostic
		hard = append(hard, pay.conflicts...)
		hard = append(hard, unit.conflicts...)
		hard = append(hard, card.hard...)
		if len(hard) > 0 {
			SortDiagnostics(hard)
			return nil, nil, hard
		}

		if len(card.mismatches) > 0 {
			inserts, fails := planAdapters(g, card)
			if len(fails) > 0 {
				SortDiagnostics(fails)
				return nil, nil, fails
			}
			progressed := false
			for _, e := range inserts {
				edgeKey := e.From.String() + "->" + e.To.String()
				if adapted[edgeKey] {
					// Safety net: an edge asking for a second adapter
					// means the loop is not advancing.
					return nil, nil, []Diagnostic{stuckDiagnostic(e.To)}
				}
				adapted[edgeKey] = true
				insertBroadcast(work, e)
				progressed = true
			}
			if !progressed {
				return nil, nil, []Diagnostic{stuckDiagnostic(card.mismatches[0].OnePort)}
			}
			continue
		}

		facts, unresolved := finalize(g, ex, pay, unit, card)
		if len(unresolved) > 0 {
			SortDiagnostics(unresolved)
			return nil, nil, unresolved
		}
		return g, facts, nil
	}

	return nil, nil, []Diagnostic{{
		Code:    CodeFixpointStuck,
		Message: fmt.Sprintf("type normalization did not converge in %d iterations", maxIters),
	}}
}

func stuckDiagnostic(at patch.PortKey) Diagnostic {
	return Diagnostic{
		Code:    CodeFixpointStuck,
		Target:  TargetRef{Block: at.Block, Port: at.Port},
		Message: "adapter insertion made no progress",
	}
}

// planAdapters maps cardinality mismatches to concrete edge insertions. A
// mismatch is adapter-resolvable exactly when a signal-only output on a
// one-forced group feeds a port that must be many: a Broadcast bridges
// one -> many. The reverse pairing (a field feeding a signal-only input)
// has no adapter and fails with E_NO_ADAPTER.
func planAdapters(g *Graph, sol cardSolution) ([]NormEdge, []Diagnostic) {
	var inserts []NormEdge
	for _, e := range g.Edges {
		if e.FromDef.Mode != blocks.SignalOnly {
			continue
		}
		if sol.oneForced[e.From] && sol.manyNeeded[e.To] {
			inserts = append(inserts, e)
		}
	}
	if len(inserts) > 0 {
		return inserts, nil
	}

	fails := make([]Diagnostic, 0, len(sol.mismatches))
	for _, m := range sol.mismatches {
		fails = append(fails, Diagnostic{
			Code:    CodeNoAdapter,
			Target:  TargetRef{Block: m.OnePort.Block, Port: m.OnePort.Port},
			Message: fmt.Sprintf("no adapter bridges %s (signal) and %s (field)", m.OnePort, m.ManyPort),
			Details: map[string]string{
				"one":  m.OnePort.String(),
				"many": m.ManyPort.String(),
			},
		})
	}
	return nil, fails
}

// insertBroadcast splices a derived Broadcast block into an edge. This is
// the single mutation point of the whole compilation.
func insertBroadcast(work *patch.Patch, e NormEdge) {
	id := broadcastPrefix + e.To.Block + "." + e.To.Port
	work.Blocks = append(work.Blocks, patch.Block{ID: id, Kind: blocks.KindBroadcast})
	for i, we := range work.Edges {
		if we.From.Block == e.From.Block && we.From.Port == e.From.Port &&
			we.To.Block == e.To.Block && we.To.Port == e.To.Port {
			work.Edges[i] = patch.Edge{
				From: we.From,
				To:   patch.PortRef{Block: id, Port: "in"},
			}
			break
		}
	}
	work.Edges = append(work.Edges, patch.Edge{
		From: patch.PortRef{Block: id, Port: "out"},
		To:   patch.PortRef{Block: e.To.Block, Port: e.To.Port},
	})
}

// finalize applies the combined substitution to every draft and attempts
// to canonicalize each port. A port finalizes only when payload, unit and
// all five extent axes are concrete; anything less is reported per-axis,
// one diagnostic per unresolved group, anchored at its smallest member.
func finalize(g *Graph, ex *Extraction, pay axisSolution[ir.PayloadType], unit axisSolution[ir.Unit], card cardSolution) (*TypeFacts, []Diagnostic) {
	var unresolved []Diagnostic
	for _, anchor := range pay.unresolvedGroups {
		unresolved = append(unresolved, Diagnostic{
			Code:    CodeUnresolvedPayload,
			Target:  TargetRef{Block: anchor.Block, Port: anchor.Port},
			Message: "payload could not be inferred",
		})
	}
	for _, anchor := range unit.unresolvedGroups {
		unresolved = append(unresolved, Diagnostic{
			Code:    CodeUnresolvedUnit,
			Target:  TargetRef{Block: anchor.Block, Port: anchor.Port},
			Message: "unit could not be inferred",
		})
	}
	for _, anchor := range card.unresolvedGroups {
		unresolved = append(unresolved, Diagnostic{
			Code:    CodeUnresolvedCardinality,
			Target:  TargetRef{Block: anchor.Block, Port: anchor.Port},
			Message: "cardinality could not be inferred",
		})
	}

	facts := &TypeFacts{
		Ports:     make(map[patch.PortKey]ir.CanonicalType, len(ex.Keys)),
		Instances: make(map[string]*InstanceFact),
	}

	keys := append([]patch.PortKey(nil), ex.Keys...)
	slices.SortFunc(keys, patch.ComparePortKeys)

	for _, key := range keys {
		d := ex.Drafts[key]

		payload, okP := resolveAxis(d.Payload, pay.vars)
		u, okU := resolveAxis(d.Unit, unit.vars)
		c, okC := card.ports[key]
		if !okP || !okU || !okC {
			// Covered by a group diagnostic above.
			continue
		}

		t := ir.CanonicalType{
			Payload: payload,
			Unit:    u,
			Extent: ir.Extent{
				Card:        c,
				Temporality: d.Temporality,
				Binding:     d.Binding,
				Perspective: d.Perspective,
				Branch:      d.Branch,
			},
		}
		facts.Ports[key] = t

		if c.Many {
			k := c.Instance.String()
			f, ok := facts.Instances[k]
			if !ok {
				f = &InstanceFact{Ref: c.Instance, Count: instanceCount(g, c.Instance)}
				facts.Instances[k] = f
			}
			f.Ports = append(f.Ports, key)
		}
	}

	for _, f := range facts.Instances {
		slices.SortFunc(f.Ports, patch.ComparePortKeys)
	}

	return facts, unresolved
}

// resolveAxis reads an axis through the substitution.
func resolveAxis[V any](a Axis[V], subst map[VarID]V) (V, bool) {
	if !a.IsVar {
		return a.Value, true
	}
	v, ok := subst[a.Var]
	return v, ok
}

// defaultLaneCount is the lane count for transform blocks that omit one.
const defaultLaneCount = 8

// instanceCount resolves an instance's static lane count from its
// producing block's config.
func instanceCount(g *Graph, ref ir.InstanceRef) int {
	b, ok := g.BlockByID(ref.BlockID)
	if !ok {
		// Instance refs are minted from live block ids during extraction.
		panic("compiler: instance ref to unknown block " + ref.BlockID)
	}
	n := int(b.Param("count", defaultLaneCount))
	if n < 0 {
		n = 0
	}
	return n
}
