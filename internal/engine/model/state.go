package model

// RunPhase is a phase of the per-run state machine.
type RunPhase string

const (
	PhaseReceived            RunPhase = "RECEIVED"
	PhaseExtracted           RunPhase = "EXTRACTED"
	PhaseMatched             RunPhase = "MATCHED"
	PhaseFastResolved        RunPhase = "FAST_RESOLVED"
	PhaseDecomposed          RunPhase = "DECOMPOSED"
	PhaseConstrained         RunPhase = "CONSTRAINED"
	PhaseConflictResolved    RunPhase = "CONFLICT_RESOLVED"
	PhasePolicyEvaluated     RunPhase = "POLICY_EVALUATED"
	PhasePlanBuilt           RunPhase = "PLAN_BUILT"
	PhaseDone                RunPhase = "DONE"
	PhaseClarificationNeeded RunPhase = "CLARIFICATION_NEEDED"
	PhaseHandoff             RunPhase = "HANDOFF"
)

// validTransitions defines the legal phase transitions of a run.
// Each key is a source phase, and the value is the set of valid target phases.
var validTransitions = map[RunPhase]map[RunPhase]bool{
	PhaseReceived:  {PhaseExtracted: true},
	PhaseExtracted: {PhaseMatched: true},
	PhaseMatched: {
		PhaseFastResolved:        true,
		PhaseDecomposed:          true,
		PhaseClarificationNeeded: true,
		PhaseHandoff:             true,
	},
	PhaseDecomposed: {
		PhaseConstrained:         true,
		PhaseClarificationNeeded: true,
		PhaseHandoff:             true,
	},
	PhaseConstrained: {PhaseConflictResolved: true},
	PhaseConflictResolved: {
		PhasePolicyEvaluated:     true,
		PhaseClarificationNeeded: true,
		PhaseHandoff:             true,
	},
	PhasePolicyEvaluated: {PhasePlanBuilt: true},
	PhaseFastResolved:    {PhasePlanBuilt: true},
	PhasePlanBuilt:       {PhaseDone: true},
}

// IsValidTransition checks if a phase transition is legal.
func IsValidTransition(from, to RunPhase) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether a phase ends the run.
func (p RunPhase) Terminal() bool {
	return p == PhaseDone || p == PhaseClarificationNeeded || p == PhaseHandoff
}
