package compiler

import (
	"github.com/kinetlab/kinet/internal/ir"
	"github.com/kinetlab/kinet/internal/patch"
)

// Constraints are closed variants, one family per solver. The extractor is
// the only producer; every forced value travels through a constraint so the
// solver's bookkeeping is the single source of truth - a concrete axis in a
// draft is never trusted on its own.

// valueConstraintKind tags the payload and unit constraint families, which
// share one shape: equality from a graph edge, or a fixed value from a
// block declaration.
type valueConstraintKind int

const (
	valueEqual valueConstraintKind = iota
	valueFixed
	// valueDefault binds the port's group only when nothing in the graph
	// forced a value. Defaults never conflict; the smallest-keyed default
	// in a group wins. Only the unit axis emits these.
	valueDefault
)

// payloadConstraint constrains the payload axis.
type payloadConstraint struct {
	Kind  valueConstraintKind
	A, B  patch.PortKey  // valueEqual
	Port  patch.PortKey  // valueFixed
	Value ir.PayloadType // valueFixed
}

// unitConstraint constrains the unit axis.
type unitConstraint struct {
	Kind  valueConstraintKind
	A, B  patch.PortKey
	Port  patch.PortKey
	Value ir.Unit
}

// cardConstraintKind tags the cardinality constraint family.
type cardConstraintKind int

const (
	// cardEqual: both ports end with identical cardinality (graph edge or
	// intra-block preserve group).
	cardEqual cardConstraintKind = iota
	// cardClampOne: port is forced to one (signal-only port).
	cardClampOne
	// cardForceMany: port is forced to many with the given instance term.
	cardForceMany
	// cardZip: members may mix one and many; if any resolves to many(X)
	// all become many(X), if all are one the group is one.
	cardZip
)

// cardConstraint constrains the cardinality axis.
type cardConstraint struct {
	Kind  cardConstraintKind
	A, B  patch.PortKey   // cardEqual
	Port  patch.PortKey   // cardClampOne, cardForceMany
	Inst  InstTerm        // cardForceMany
	Ports []patch.PortKey // cardZip, in declared order
}

// Extraction is the complete solver input for one fixpoint iteration:
// per-port drafts plus the three constraint streams. Drafts and
// constraints live only within the iteration that produced them.
type Extraction struct {
	Keys     []patch.PortKey // sorted; the interning order
	Drafts   map[patch.PortKey]*DraftType
	Payload  []payloadConstraint
	Unit     []unitConstraint
	Card     []cardConstraint
	VarCount int
}
