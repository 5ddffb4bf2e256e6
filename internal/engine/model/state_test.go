package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidTransition(t *testing.T) {
	legal := [][2]RunPhase{
		{PhaseReceived, PhaseExtracted},
		{PhaseExtracted, PhaseMatched},
		{PhaseMatched, PhaseFastResolved},
		{PhaseMatched, PhaseDecomposed},
		{PhaseMatched, PhaseClarificationNeeded},
		{PhaseMatched, PhaseHandoff},
		{PhaseDecomposed, PhaseConstrained},
		{PhaseDecomposed, PhaseClarificationNeeded},
		{PhaseConstrained, PhaseConflictResolved},
		{PhaseConflictResolved, PhasePolicyEvaluated},
		{PhaseConflictResolved, PhaseClarificationNeeded},
		{PhasePolicyEvaluated, PhasePlanBuilt},
		{PhaseFastResolved, PhasePlanBuilt},
		{PhasePlanBuilt, PhaseDone},
	}
	for _, tr := range legal {
		assert.True(t, IsValidTransition(tr[0], tr[1]), "%s -> %s should be legal", tr[0], tr[1])
	}

	illegal := [][2]RunPhase{
		{PhaseReceived, PhaseMatched},
		{PhaseReceived, PhaseDone},
		{PhaseExtracted, PhaseDecomposed},
		{PhaseMatched, PhaseConstrained},
		{PhaseConstrained, PhasePlanBuilt},
		{PhaseDone, PhaseReceived},
		{PhaseHandoff, PhaseDone},
		{PhaseClarificationNeeded, PhaseDone},
		{PhasePlanBuilt, PhaseReceived},
	}
	for _, tr := range illegal {
		assert.False(t, IsValidTransition(tr[0], tr[1]), "%s -> %s should be illegal", tr[0], tr[1])
	}
}

func TestRunPhaseTerminal(t *testing.T) {
	assert.True(t, PhaseDone.Terminal())
	assert.True(t, PhaseClarificationNeeded.Terminal())
	assert.True(t, PhaseHandoff.Terminal())

	assert.False(t, PhaseReceived.Terminal())
	assert.False(t, PhaseMatched.Terminal())
	assert.False(t, PhasePlanBuilt.Terminal())
}

func TestAdvancePhase(t *testing.T) {
	s := &PipelineState{Phase: PhaseReceived, Result: &ReasoningResult{}}

	require.True(t, s.AdvancePhase(PhaseExtracted))
	assert.Equal(t, PhaseExtracted, s.Phase)
	require.Len(t, s.Result.ReasoningTrace, 1)
	assert.Contains(t, s.Result.ReasoningTrace[0], "RECEIVED -> EXTRACTED")
}

func TestAdvancePhaseIllegalIgnored(t *testing.T) {
	s := &PipelineState{Phase: PhaseReceived, Result: &ReasoningResult{}}

	require.False(t, s.AdvancePhase(PhaseDone))
	assert.Equal(t, PhaseReceived, s.Phase, "illegal transition must not move the phase")
	require.Len(t, s.Result.ReasoningTrace, 1)
	assert.Contains(t, s.Result.ReasoningTrace[0], "illegal phase transition")
}

func TestAdvancePhaseNilResult(t *testing.T) {
	s := &PipelineState{Phase: PhaseReceived}

	assert.True(t, s.AdvancePhase(PhaseExtracted))
	assert.False(t, s.AdvancePhase(PhaseDone))
}
