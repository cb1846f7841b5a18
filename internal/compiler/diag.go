package compiler

import (
	"fmt"
	"slices"
	"strings"
)

// Diagnostic codes. Stable strings: the UI keys on them and goldens pin
// them. Never reuse a code for a different failure mode.
const (
	CodeTypeConflict          = "E_TYPE_CONFLICT"
	CodeInstanceConflict      = "E_INSTANCE_CONFLICT"
	CodeUnresolvedPayload     = "E_UNRESOLVED_PAYLOAD"
	CodeUnresolvedUnit        = "E_UNRESOLVED_UNIT"
	CodeUnresolvedCardinality = "E_UNRESOLVED_CARDINALITY"
	CodeNoAdapter             = "E_NO_ADAPTER"
	CodeCycleDetected         = "E_CYCLE_DETECTED"
	CodeCameraMultiple        = "E_CAMERA_MULTIPLE"
	CodeNoTimeRoot            = "E_NO_TIME_ROOT"
	CodeFixpointStuck         = "E_FIXPOINT_STUCK"
	CodeUnknownBlock          = "E_UNKNOWN_BLOCK"
	CodeBadEdge               = "E_BAD_EDGE"
	CodeMissingInput          = "E_MISSING_INPUT"
)

// TargetRef anchors a diagnostic at a block, optionally at a port. The
// anchor of a conflict group is always its lexicographically smallest port
// key; two runs on identical input produce byte-identical diagnostics.
type TargetRef struct {
	Block string `json:"block"`
	Port  string `json:"port,omitempty"`
}

func (t TargetRef) String() string {
	if t.Port == "" {
		return t.Block
	}
	return t.Block + "." + t.Port
}

// Diagnostic is a structured compiler failure. No bare errors or strings
// cross the diagnostic surface; everything the UI renders comes from here.
type Diagnostic struct {
	Code    string            `json:"code"`
	Target  TargetRef         `json:"target"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Error implements the error interface so a Diagnostic can travel through
// error-shaped plumbing at the CLI boundary.
func (d Diagnostic) Error() string {
	return fmt.Sprintf("[%s] %s: %s", d.Code, d.Target, d.Message)
}

// SortDiagnostics orders diagnostics canonically: code, then target, then
// message. Every failure path sorts before returning.
func SortDiagnostics(diags []Diagnostic) {
	slices.SortFunc(diags, CompareDiagnostics)
}

// CompareDiagnostics is the canonical diagnostic order.
func CompareDiagnostics(a, b Diagnostic) int {
	if c := strings.Compare(a.Code, b.Code); c != 0 {
		return c
	}
	if c := strings.Compare(a.Target.Block, b.Target.Block); c != 0 {
		return c
	}
	if c := strings.Compare(a.Target.Port, b.Target.Port); c != 0 {
		return c
	}
	return strings.Compare(a.Message, b.Message)
}
