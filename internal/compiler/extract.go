package compiler

import (
	"github.com/kinetlab/kinet/internal/blocks"
	"github.com/kinetlab/kinet/internal/ir"
	"github.com/kinetlab/kinet/internal/patch"
)

// extract walks the normalized graph and produces the solver input: a
// draft type per port plus payload/unit/cardinality constraint streams.
//
// Invariant: a concrete axis value never enters a draft without the
// matching constraint ("inst(one)" always rides with clampOne, a declared
// payload always rides with valueFixed). The solvers trust only the
// constraint path.
func extract(g *Graph) *Extraction {
	ex := &Extraction{
		Drafts: make(map[patch.PortKey]*DraftType),
	}
	nextVar := VarID(0)
	freshVar := func() VarID {
		v := nextVar
		nextVar++
		return v
	}

	// Blocks are already in sorted-id order; ports are walked in declared
	// order (inputs then outputs), so variable allocation is reproducible.
	for _, b := range g.Blocks {
		polyVars := make(map[string]VarID)  // payload groups within the block
		unitVars := make(map[string]VarID)  // unit groups within the block
		preserve := []patch.PortKey{}       // preserve-mode ports, declared order
		preserveVars := []VarID{}
		allowZip := true
		fieldInst := InstTerm{}             // shared by the block's FieldOnly ports
		haveFieldInst := false

		addPort := func(key patch.PortKey, pd blocks.PortDef) {
			d := &DraftType{
				Temporality: ir.Continuous,
				Binding:     pd.Binding,
				Perspective: ir.PerspectiveDefault,
				Branch:      ir.BranchDefault,
			}
			if pd.Discrete {
				d.Temporality = ir.Discrete
			}

			if pd.Poly != "" {
				v, ok := polyVars[pd.Poly]
				if !ok {
					v = freshVar()
					polyVars[pd.Poly] = v
				}
				d.Payload = axisVar[ir.PayloadType](v)
			} else {
				d.Payload = axisInst(pd.Payload)
				ex.Payload = append(ex.Payload, payloadConstraint{
					Kind: valueFixed, Port: key, Value: pd.Payload,
				})
			}

			if pd.UnitGroup != "" {
				v, ok := unitVars[pd.UnitGroup]
				if !ok {
					v = freshVar()
					unitVars[pd.UnitGroup] = v
				}
				d.Unit = axisVar[ir.Unit](v)
				ex.Unit = append(ex.Unit, unitConstraint{
					Kind: valueDefault, Port: key, Value: pd.Unit,
				})
			} else {
				d.Unit = axisInst(pd.Unit)
				ex.Unit = append(ex.Unit, unitConstraint{
					Kind: valueFixed, Port: key, Value: pd.Unit,
				})
			}

			switch pd.Mode {
			case blocks.SignalOnly:
				d.Card = axisInst(cardOne())
				ex.Card = append(ex.Card, cardConstraint{Kind: cardClampOne, Port: key})
			case blocks.Transform:
				if key.Dir == patch.DirOut {
					ref := ir.InstanceRef{DomainType: b.Def.DomainType, BlockID: b.ID}
					d.Card = axisInst(cardMany(instRef(ref)))
					ex.Card = append(ex.Card, cardConstraint{
						Kind: cardForceMany, Port: key, Inst: instRef(ref),
					})
				} else {
					d.Card = axisVar[CardValue](freshVar())
				}
			case blocks.Preserve:
				v := freshVar()
				d.Card = axisVar[CardValue](v)
				preserve = append(preserve, key)
				preserveVars = append(preserveVars, v)
				if !pd.AllowBroadcast {
					allowZip = false
				}
			case blocks.FieldOnly:
				v := freshVar()
				d.Card = axisVar[CardValue](v)
				// All field ports of one block draw from the same lane
				// group; a RenderDots position and color must agree on
				// their instance.
				if !haveFieldInst {
					fieldInst = instVar(freshVar())
					haveFieldInst = true
				}
				ex.Card = append(ex.Card, cardConstraint{
					Kind: cardForceMany, Port: key, Inst: fieldInst,
				})
			}

			ex.Keys = append(ex.Keys, key)
			ex.Drafts[key] = d
		}

		for _, in := range b.Def.Inputs {
			addPort(patch.InKey(b.ID, in.Name), in)
		}
		for _, out := range b.Def.Outputs {
			addPort(patch.OutKey(b.ID, out.Name), out)
		}

		// Preserve ports unify across the block: a zip group when the
		// block broadcasts signals against fields, a plain equality chain
		// otherwise.
		if len(preserve) > 1 {
			if allowZip {
				ex.Card = append(ex.Card, cardConstraint{
					Kind:  cardZip,
					Ports: append([]patch.PortKey(nil), preserve...),
				})
			} else {
				for i := 1; i < len(preserve); i++ {
					ex.Card = append(ex.Card, cardConstraint{
						Kind: cardEqual, A: preserve[0], B: preserve[i],
					})
				}
			}
		}
	}

	// An edge is fundamentally a type-equality constraint on every solved
	// axis.
	for _, e := range g.Edges {
		ex.Payload = append(ex.Payload, payloadConstraint{Kind: valueEqual, A: e.From, B: e.To})
		ex.Unit = append(ex.Unit, unitConstraint{Kind: valueEqual, A: e.From, B: e.To})
		ex.Card = append(ex.Card, cardConstraint{Kind: cardEqual, A: e.From, B: e.To})
	}

	ex.VarCount = int(nextVar)
	return ex
}
