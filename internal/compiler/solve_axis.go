package compiler

import (
	"fmt"

	"github.com/kinetlab/kinet/internal/ir"
	"github.com/kinetlab/kinet/internal/patch"
)

// The payload and unit solvers share one algorithm: union ports over
// equality constraints, collect fixed values per group, then resolve each
// group to its single forced value. Only the cardinality solver needs the
// zip and instance machinery; this file is the common two-thirds.

// axisSolution is the generic solver output for a value axis.
type axisSolution[V comparable] struct {
	// ports holds the resolved value for every port in a resolved group.
	ports map[patch.PortKey]V
	// vars holds the substitution for every axis variable whose group
	// resolved.
	vars map[VarID]V
	// conflicts are hard: two different fixed values in one group.
	conflicts []Diagnostic
	// unresolvedGroups lists each no-force group by smallest member key;
	// finalize turns each into one per-axis diagnostic.
	unresolvedGroups []patch.PortKey
}

// axisSpec parameterizes the generic solver for one axis kind.
type axisSpec[V comparable] struct {
	// name appears in conflict messages ("payload", "unit").
	name string
	// conflictCode is the diagnostic code for a two-value group.
	conflictCode string
	// format renders a value for messages.
	format func(V) string
	// axisOf projects the axis from a draft.
	axisOf func(*DraftType) Axis[V]
}

type fixedFact[V comparable] struct {
	port  patch.PortKey
	value V
}

// solveValueAxis runs phases 1-3 and 5 of the shared solver algorithm
// (zip, phase 4, does not apply to value axes). Defaults bind a group only
// when no fixed value reached it; the default on the smallest member key
// wins and defaults never conflict.
func solveValueAxis[V comparable](
	ex *Extraction,
	spec axisSpec[V],
	equals []fixedFact[V], // one entry per valueFixed constraint
	eqPairs [][2]patch.PortKey, // one entry per valueEqual constraint
	defaults []fixedFact[V], // one entry per valueDefault constraint
) axisSolution[V] {
	in := newInterner(ex.Keys)
	uf := newUnionFind(in.len())

	// Phase 1: union over equality constraints.
	for _, p := range eqPairs {
		uf.union(in.id(p[0]), in.id(p[1]))
	}

	// Phase 2: collect forced facts per group, in fixed-constraint order.
	forced := make(map[int][]fixedFact[V])
	for _, f := range equals {
		root := uf.find(in.id(f.port))
		forced[root] = append(forced[root], f)
	}
	fallback := make(map[int]fixedFact[V])
	haveFallback := make(map[int]bool)
	for _, f := range defaults {
		root := uf.find(in.id(f.port))
		if !haveFallback[root] || in.id(f.port) < in.id(fallback[root].port) {
			fallback[root] = f
			haveFallback[root] = true
		}
	}

	sol := axisSolution[V]{
		ports: make(map[patch.PortKey]V),
		vars:  make(map[VarID]V),
	}

	// Phase 3: resolve each group locally. Groups are iterated by
	// smallest member id; diagnostics anchor at the smallest member key.
	for _, members := range uf.groups() {
		root := uf.find(members[0])
		facts := forced[root]

		var value V
		resolved := false
		conflict := false
		for _, f := range facts {
			if !resolved {
				value = f.value
				resolved = true
				continue
			}
			if f.value != value {
				anchor := in.key(members[0])
				sol.conflicts = append(sol.conflicts, Diagnostic{
					Code:   spec.conflictCode,
					Target: TargetRef{Block: anchor.Block, Port: anchor.Port},
					Message: fmt.Sprintf("%s conflict: %s vs %s",
						spec.name, spec.format(value), spec.format(f.value)),
					Details: map[string]string{
						"want": spec.format(value),
						"got":  spec.format(f.value),
					},
				})
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		if !resolved {
			if haveFallback[root] {
				value = fallback[root].value
				resolved = true
			} else {
				sol.unresolvedGroups = append(sol.unresolvedGroups, in.key(members[0]))
				continue
			}
		}

		// Phase 5: enter every member port and every member variable into
		// the substitution.
		for _, m := range members {
			key := in.key(m)
			sol.ports[key] = value
			if ax := spec.axisOf(ex.Drafts[key]); ax.IsVar {
				sol.vars[ax.Var] = value
			}
		}
	}

	return sol
}

// solvePayload runs the payload solver over an extraction.
func solvePayload(ex *Extraction) axisSolution[ir.PayloadType] {
	var fixed []fixedFact[ir.PayloadType]
	var eqs [][2]patch.PortKey
	for _, c := range ex.Payload {
		switch c.Kind {
		case valueFixed:
			fixed = append(fixed, fixedFact[ir.PayloadType]{port: c.Port, value: c.Value})
		case valueEqual:
			eqs = append(eqs, [2]patch.PortKey{c.A, c.B})
		}
	}
	return solveValueAxis(ex, axisSpec[ir.PayloadType]{
		name:         "payload",
		conflictCode: CodeTypeConflict,
		format:       ir.PayloadType.String,
		axisOf:       func(d *DraftType) Axis[ir.PayloadType] { return d.Payload },
	}, fixed, eqs, nil)
}

// solveUnit runs the unit solver over an extraction.
func solveUnit(ex *Extraction) axisSolution[ir.Unit] {
	var fixed, defaults []fixedFact[ir.Unit]
	var eqs [][2]patch.PortKey
	for _, c := range ex.Unit {
		switch c.Kind {
		case valueFixed:
			fixed = append(fixed, fixedFact[ir.Unit]{port: c.Port, value: c.Value})
		case valueEqual:
			eqs = append(eqs, [2]patch.PortKey{c.A, c.B})
		case valueDefault:
			defaults = append(defaults, fixedFact[ir.Unit]{port: c.Port, value: c.Value})
		}
	}
	return solveValueAxis(ex, axisSpec[ir.Unit]{
		name:         "unit",
		conflictCode: CodeTypeConflict,
		format:       ir.Unit.String,
		axisOf:       func(d *DraftType) Axis[ir.Unit] { return d.Unit },
	}, fixed, eqs, defaults)
}
