package ir

// Phase is the fixed per-frame phase order. Steps are grouped by phase and
// executed phase by phase; the scheduler never emits a step whose data
// dependency crosses phases backwards.
type Phase int

const (
	PhaseSignalEval Phase = iota
	PhaseContinuityMapBuild
	PhaseFieldMaterialize
	PhaseContinuityApply
	PhaseEventEval
	PhaseRender
	PhaseStateWrite
)

var phaseNames = [...]string{
	"signal-eval",
	"continuity-map-build",
	"field-materialize",
	"continuity-apply",
	"event-eval",
	"render",
	"state-write",
}

func (p Phase) String() string {
	if int(p) < 0 || int(p) >= len(phaseNames) {
		return "phase?"
	}
	return phaseNames[p]
}

// StepKind tags ScheduleStep variants.
type StepKind int

const (
	// StepEvalSignal evaluates Signal and writes the value into Slot.
	StepEvalSignal StepKind = iota
	// StepBuildContinuity snapshots an instance's lane identity so lanes
	// can be matched across topology changes.
	StepBuildContinuity
	// StepMaterializeField evaluates Field lane-wise into Slot.
	StepMaterializeField
	// StepApplyContinuity remaps Slot's lanes through the instance's
	// continuity map built earlier this frame.
	StepApplyContinuity
	// StepEvalEvent evaluates Event and writes 0/1 into Slot.
	StepEvalEvent
	// StepRender appends draw commands for Draw to the frame output.
	StepRender
	// StepWriteState copies Src's current value into Dst for next frame.
	// This is the only step kind that may appear inside a feedback cycle's
	// breaking position: it reads this frame, writes next frame.
	StepWriteState
)

var stepNames = [...]string{
	"eval-signal",
	"build-continuity",
	"materialize-field",
	"apply-continuity",
	"eval-event",
	"render",
	"write-state",
}

func (k StepKind) String() string {
	if int(k) < 0 || int(k) >= len(stepNames) {
		return "step?"
	}
	return stepNames[k]
}

// Phase returns the fixed phase a step kind belongs to.
func (k StepKind) Phase() Phase {
	switch k {
	case StepEvalSignal:
		return PhaseSignalEval
	case StepBuildContinuity:
		return PhaseContinuityMapBuild
	case StepMaterializeField:
		return PhaseFieldMaterialize
	case StepApplyContinuity:
		return PhaseContinuityApply
	case StepEvalEvent:
		return PhaseEventEval
	case StepRender:
		return PhaseRender
	case StepWriteState:
		return PhaseStateWrite
	}
	return PhaseSignalEval
}

// DrawID indexes CompiledProgram.Draws.
type DrawID int

// ScheduleStep is one entry of the per-frame execution plan. Unused id
// fields hold the relevant sentinel.
type ScheduleStep struct {
	Kind     StepKind     `json:"kind"`
	Signal   SignalExprID `json:"signal"`
	Field    FieldExprID  `json:"field"`
	Event    EventExprID  `json:"event"`
	Slot     SlotID       `json:"slot"`
	Src      SlotID       `json:"src"`
	Dst      SlotID       `json:"dst"`
	Instance InstanceID   `json:"instance"`
	Draw     DrawID       `json:"draw"`
}

// ScheduleIR is the total per-frame order. The runtime must execute steps
// exactly in slice order with no reordering.
type ScheduleIR struct {
	Steps []ScheduleStep `json:"steps"`
}
