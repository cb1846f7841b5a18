package compiler

import (
	"fmt"

	"github.com/kinetlab/kinet/internal/ir"
)

// VarID identifies one axis variable within a single extraction. Variables
// are allocated in sorted block/port order, so identical patches allocate
// identical ids.
type VarID int

// Axis is one inference axis: either a concrete value or an unresolved
// variable. Drafts exist only inside the extractor/solver/fixpoint
// subsystem; block lowering never sees one.
type Axis[V any] struct {
	IsVar bool
	Var   VarID
	Value V
}

// axisInst builds a concrete axis.
func axisInst[V any](v V) Axis[V] { return Axis[V]{Value: v} }

// axisVar builds an unresolved axis.
func axisVar[V any](id VarID) Axis[V] { return Axis[V]{IsVar: true, Var: id} }

// InstTerm is a possibly-variable instance reference, the sub-problem the
// cardinality solver unifies with its own nested union-find.
type InstTerm struct {
	IsVar bool
	Var   VarID
	Ref   ir.InstanceRef
}

func instVar(id VarID) InstTerm         { return InstTerm{IsVar: true, Var: id} }
func instRef(r ir.InstanceRef) InstTerm { return InstTerm{Ref: r} }

func (t InstTerm) String() string {
	if t.IsVar {
		return fmt.Sprintf("?i%d", t.Var)
	}
	return t.Ref.String()
}

// CardValue is the cardinality axis value domain: one, or many over a
// possibly-variable instance term.
type CardValue struct {
	Many bool
	Inst InstTerm
}

func cardOne() CardValue            { return CardValue{} }
func cardMany(t InstTerm) CardValue { return CardValue{Many: true, Inst: t} }

func (c CardValue) String() string {
	if c.Many {
		return fmt.Sprintf("many(%s)", c.Inst)
	}
	return "one"
}

// DraftType mirrors CanonicalType with inference axes. Temporality,
// binding, perspective and branch are declaration-concrete in the current
// axis model, so they carry resolved values from extraction on; payload,
// unit and cardinality solve through the constraint graph.
type DraftType struct {
	Payload     Axis[ir.PayloadType]
	Unit        Axis[ir.Unit]
	Card        Axis[CardValue]
	Temporality ir.Temporality
	Binding     ir.Binding
	Perspective ir.Perspective
	Branch      ir.Branch
}
