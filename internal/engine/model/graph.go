package model

// PipelineState is the graph-local state of one resolution run. It is
// mutated only inside node pre/post state handlers; lambda nodes stay pure
// over their typed inputs.
type PipelineState struct {
	Request    Request
	Phase      RunPhase
	Extraction *ExtractionResult
	Candidates []MatchCandidate
	Compound   bool
	ForceDeep  bool
	Segments   []string

	Enrichment *EnrichmentContext

	Result *ReasoningResult

	StartedAtUnixMS int64
}

// AdvancePhase moves the run to the next phase when the transition is
// legal, recording it in the result trace. Illegal transitions are logged
// into the trace and ignored rather than corrupting the run.
func (s *PipelineState) AdvancePhase(to RunPhase) bool {
	if !IsValidTransition(s.Phase, to) {
		if s.Result != nil {
			s.Result.Trace("illegal phase transition %s -> %s ignored", s.Phase, to)
		}
		return false
	}
	if s.Result != nil {
		s.Result.Trace("phase %s -> %s", s.Phase, to)
	}
	s.Phase = to
	return true
}
