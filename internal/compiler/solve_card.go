package compiler

import (
	"fmt"

	"github.com/kinetlab/kinet/internal/ir"
	"github.com/kinetlab/kinet/internal/patch"
)

// The cardinality solver runs the full five-phase algorithm: union-find
// over equality constraints, forced-fact collection (with the instance
// sub-problem unified by a nested union-find), local group resolution, zip
// broadcast propagation to fixpoint, and substitution finalization.

// cardMismatch is a one-vs-many pairing. It is not immediately fatal: the
// fixpoint driver checks whether an adapter can bridge the pairing (the
// classic signal-feeding-a-field case) before giving up.
type cardMismatch struct {
	OnePort  patch.PortKey // smallest port carrying the one force
	ManyPort patch.PortKey // smallest port carrying the many force
}

// cardSolution is the cardinality solver output.
type cardSolution struct {
	ports    map[patch.PortKey]ir.Cardinality
	cardVars map[VarID]ir.Cardinality
	instVars map[VarID]ir.InstanceRef
	// hard conflicts (instance identity disagreements) are always fatal.
	hard []Diagnostic
	// mismatches may be adapter-resolvable; the driver classifies them.
	mismatches []cardMismatch
	// unresolvedGroups lists groups that never bound, by smallest member
	// key: no force reached the group at all, or it resolved to many in
	// shape but its instance identity stayed free.
	unresolvedGroups []patch.PortKey
	// oneForced marks every member of a group carrying a one force;
	// manyNeeded marks every port required to be many, whether by a group
	// force or by membership in a zip that already has a many member.
	// The fixpoint driver intersects these with graph edges to place
	// broadcast adapters.
	oneForced  map[patch.PortKey]bool
	manyNeeded map[patch.PortKey]bool
}

// groupCardState is the per-group lattice: unknown -> one | many.
type groupCardState int

const (
	cardUnknown groupCardState = iota
	cardIsOne
	cardIsMany
)

type cardGroup struct {
	members    []int // ascending
	state      groupCardState
	term       InstTerm // meaningful when state == cardIsMany
	oneAnchor  int      // smallest member id carrying a one force
	manyAnchor int      // smallest member id carrying a many force
	conflicted bool     // one-vs-many recorded; skip finalization
}

// instUnifier solves the nested instance-term sub-problem: a union-find
// over instance variables plus a binding from each variable class to a
// concrete ref. Two concrete refs never merge unless identical.
type instUnifier struct {
	uf   *unionFind
	bind map[int]ir.InstanceRef
	has  map[int]bool
}

func newInstUnifier(varCount int) *instUnifier {
	return &instUnifier{
		uf:   newUnionFind(varCount),
		bind: make(map[int]ir.InstanceRef),
		has:  make(map[int]bool),
	}
}

// unify merges two terms. Returns the merged term and false when two
// distinct concrete refs collide.
func (iu *instUnifier) unify(a, b InstTerm) (InstTerm, bool) {
	switch {
	case !a.IsVar && !b.IsVar:
		if !ir.InstanceRefsEqual(a.Ref, b.Ref) {
			return a, false
		}
		return a, true
	case a.IsVar && b.IsVar:
		ra, rb := iu.uf.find(int(a.Var)), iu.uf.find(int(b.Var))
		if ra == rb {
			return a, true
		}
		ba, bb := iu.has[ra], iu.has[rb]
		if ba && bb && !ir.InstanceRefsEqual(iu.bind[ra], iu.bind[rb]) {
			return a, false
		}
		root := iu.uf.union(ra, rb)
		if ba {
			iu.setBind(root, iu.bind[ra])
		}
		if bb {
			iu.setBind(root, iu.bind[rb])
		}
		return InstTerm{IsVar: true, Var: VarID(root)}, true
	case a.IsVar:
		root := iu.uf.find(int(a.Var))
		if iu.has[root] && !ir.InstanceRefsEqual(iu.bind[root], b.Ref) {
			return a, false
		}
		iu.setBind(root, b.Ref)
		return b, true
	default: // b.IsVar
		return iu.unify(b, a)
	}
}

func (iu *instUnifier) setBind(root int, ref ir.InstanceRef) {
	iu.bind[root] = ref
	iu.has[root] = true
}

// resolve returns the concrete ref for a term, if known.
func (iu *instUnifier) resolve(t InstTerm) (ir.InstanceRef, bool) {
	if !t.IsVar {
		return t.Ref, true
	}
	root := iu.uf.find(int(t.Var))
	if iu.has[root] {
		return iu.bind[root], true
	}
	return ir.InstanceRef{}, false
}

// solveCard runs the cardinality solver over an extraction.
func solveCard(ex *Extraction) cardSolution {
	in := newInterner(ex.Keys)
	uf := newUnionFind(in.len())
	insts := newInstUnifier(ex.VarCount)

	sol := cardSolution{
		ports:      make(map[patch.PortKey]ir.Cardinality),
		cardVars:   make(map[VarID]ir.Cardinality),
		instVars:   make(map[VarID]ir.InstanceRef),
		oneForced:  make(map[patch.PortKey]bool),
		manyNeeded: make(map[patch.PortKey]bool),
	}

	// Phase 1: union over equality constraints.
	for _, c := range ex.Card {
		if c.Kind == cardEqual {
			uf.union(in.id(c.A), in.id(c.B))
		}
	}

	// Build group table keyed by representative.
	groupOf := make(map[int]*cardGroup)
	var groupList []*cardGroup
	for _, members := range uf.groups() {
		g := &cardGroup{members: members, oneAnchor: -1, manyAnchor: -1}
		groupOf[uf.find(members[0])] = g
		groupList = append(groupList, g)
	}

	// Phase 2: collect forced facts, unifying instance terms within each
	// group as many-forces accumulate.
	instanceConflict := func(anchor patch.PortKey, a, b InstTerm) {
		sol.hard = append(sol.hard, Diagnostic{
			Code:    CodeInstanceConflict,
			Target:  TargetRef{Block: anchor.Block, Port: anchor.Port},
			Message: fmt.Sprintf("instance conflict: %s vs %s", a, b),
		})
	}
	for _, c := range ex.Card {
		switch c.Kind {
		case cardClampOne:
			id := in.id(c.Port)
			g := groupOf[uf.find(id)]
			if g.oneAnchor < 0 || id < g.oneAnchor {
				g.oneAnchor = id
			}
			if g.state == cardUnknown {
				g.state = cardIsOne
			}
		case cardForceMany:
			id := in.id(c.Port)
			g := groupOf[uf.find(id)]
			if g.manyAnchor < 0 || id < g.manyAnchor {
				g.manyAnchor = id
			}
			if g.state == cardIsMany {
				merged, ok := insts.unify(g.term, c.Inst)
				if !ok {
					instanceConflict(in.key(g.members[0]), g.term, c.Inst)
					continue
				}
				g.term = merged
			} else {
				g.term = c.Inst
				if g.state == cardUnknown {
					g.state = cardIsMany
				}
			}
		}
	}

	// Phase 3: a group forced both ways is a mismatch, anchored at its
	// smallest one-forced and many-forced ports.
	for _, g := range groupList {
		if g.oneAnchor >= 0 && g.manyAnchor >= 0 {
			g.conflicted = true
			sol.mismatches = append(sol.mismatches, cardMismatch{
				OnePort:  in.key(g.oneAnchor),
				ManyPort: in.key(g.manyAnchor),
			})
			continue
		}
		if g.manyAnchor >= 0 {
			g.state = cardIsMany
		} else if g.oneAnchor >= 0 {
			g.state = cardIsOne
		}
	}

	// Phase 4: zip broadcast to fixpoint. The lattice is monotone
	// (unknown -> many only), so each pass either changes a group or the
	// loop stops; the pass bound is a belt-and-suspenders invariant, not
	// the primary termination argument.
	maxPasses := len(groupList) + 1
	for pass := 0; ; pass++ {
		if pass > maxPasses {
			panic("compiler: zip propagation failed to reach fixpoint")
		}
		changed := false
		for _, c := range ex.Card {
			if c.Kind != cardZip {
				continue
			}
			// Find a many member to propagate from.
			var src *cardGroup
			for _, p := range c.Ports {
				g := groupOf[uf.find(in.id(p))]
				if g.state == cardIsMany && !g.conflicted {
					if src == nil {
						src = g
					} else if src != g {
						merged, ok := insts.unify(src.term, g.term)
						if !ok {
							instanceConflict(in.key(src.members[0]), src.term, g.term)
							continue
						}
						src.term = merged
						g.term = merged
					}
				}
			}
			if src == nil {
				continue
			}
			for _, p := range c.Ports {
				g := groupOf[uf.find(in.id(p))]
				if g == src || g.conflicted {
					continue
				}
				switch g.state {
				case cardUnknown:
					g.state = cardIsMany
					g.term = src.term
					changed = true
				case cardIsOne:
					// A one-forced group receiving a many propagation is
					// the signal-to-field mismatch; defer to the driver.
					g.conflicted = true
					sol.mismatches = append(sol.mismatches, cardMismatch{
						OnePort:  in.key(g.oneAnchor),
						ManyPort: in.key(src.members[0]),
					})
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}

	// Zips with no many member left anywhere do no broadcasting: their
	// members must agree, so a one member pins the rest. Many-propagation
	// is already at fixpoint, so the skip test is stable across passes.
	for pass := 0; ; pass++ {
		if pass > maxPasses {
			panic("compiler: one propagation failed to reach fixpoint")
		}
		changed := false
		for _, c := range ex.Card {
			if c.Kind != cardZip {
				continue
			}
			var src *cardGroup
			skip := false
			for _, p := range c.Ports {
				g := groupOf[uf.find(in.id(p))]
				if g.state == cardIsMany || g.conflicted {
					skip = true
					break
				}
				if g.state == cardIsOne && src == nil {
					src = g
				}
			}
			if skip || src == nil {
				continue
			}
			for _, p := range c.Ports {
				g := groupOf[uf.find(in.id(p))]
				if g.state == cardUnknown {
					g.state = cardIsOne
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}

	// Force maps for the driver's adapter placement.
	for _, g := range groupList {
		if g.oneAnchor >= 0 {
			for _, m := range g.members {
				sol.oneForced[in.key(m)] = true
			}
		}
		if g.manyAnchor >= 0 || g.state == cardIsMany {
			for _, m := range g.members {
				sol.manyNeeded[in.key(m)] = true
			}
		}
	}
	for _, c := range ex.Card {
		if c.Kind != cardZip {
			continue
		}
		hasMany := false
		for _, p := range c.Ports {
			g := groupOf[uf.find(in.id(p))]
			if g.manyAnchor >= 0 || g.state == cardIsMany {
				hasMany = true
				break
			}
		}
		if hasMany {
			for _, p := range c.Ports {
				sol.manyNeeded[p] = true
			}
		}
	}

	// Phase 5: finalize substitutions. Groups iterate by smallest member.
	for _, g := range groupList {
		if g.conflicted {
			continue
		}
		switch g.state {
		case cardUnknown:
			// Nothing forced the group either way. No default: an
			// all-unknown group surfaces as unresolved, anchored at its
			// smallest member.
			sol.unresolvedGroups = append(sol.unresolvedGroups, in.key(g.members[0]))
		case cardIsOne:
			for _, m := range g.members {
				key := in.key(m)
				sol.ports[key] = ir.CardOne()
				if ax := ex.Drafts[key].Card; ax.IsVar {
					sol.cardVars[ax.Var] = ir.CardOne()
				}
			}
		case cardIsMany:
			ref, ok := insts.resolve(g.term)
			if !ok {
				// Many with an unbound instance: cardinality is known in
				// shape but not identity; report as unresolved.
				sol.unresolvedGroups = append(sol.unresolvedGroups, in.key(g.members[0]))
				continue
			}
			for _, m := range g.members {
				key := in.key(m)
				sol.ports[key] = ir.CardMany(ref)
				if ax := ex.Drafts[key].Card; ax.IsVar {
					sol.cardVars[ax.Var] = ir.CardMany(ref)
				}
			}
			if g.term.IsVar {
				sol.instVars[g.term.Var] = ref
			}
		}
	}

	SortDiagnostics(sol.hard)
	return sol
}
