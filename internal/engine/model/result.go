package model

import "fmt"

// PathTaken records which route a run resolved through.
type PathTaken string

const (
	PathFast          PathTaken = "fast_path"
	PathDeep          PathTaken = "deep_path"
	PathDeepDegraded  PathTaken = "deep_path_degraded"
	PathNoMatch       PathTaken = "no_match"
	PathClarification PathTaken = "clarification"
)

// ReasoningResult is the terminal artifact of a run: immutable once
// returned, and the sole unit handed to the audit sink. The caller always
// receives one, even on internal failure.
type ReasoningResult struct {
	RequestID       string             `json:"request_id"`
	TenantID        string             `json:"tenant_id,omitempty"`
	ResolvedIntents []ResolvedIntent   `json:"resolved_intents"`
	IsCompound      bool               `json:"is_compound"`
	Entities        []Entity           `json:"entities,omitempty"`
	Scores          SentimentScores    `json:"scores"`
	Constraints     []SolvedConstraint `json:"constraints,omitempty"`
	PlanSketches    []PlanSketch       `json:"plan_sketches,omitempty"`
	Policy          *PolicyVerdicts    `json:"policy,omitempty"`
	Plan            ActionPlan         `json:"plan"`

	CustomerResponse string   `json:"customer_response,omitempty"`
	InternalNotes    []string `json:"internal_notes,omitempty"`

	Confidence float64 `json:"confidence"`

	RequiresHuman bool   `json:"requires_human"`
	HandoffReason string `json:"handoff_reason,omitempty"`

	RequiresClarification bool     `json:"requires_clarification"`
	ClarificationQuestion string   `json:"clarification_question,omitempty"`
	ClarificationOptions  []string `json:"clarification_options,omitempty"`

	ReasoningTrace   []string  `json:"reasoning_trace,omitempty"`
	PathTaken        PathTaken `json:"path_taken"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
}

// IntentCodes returns the resolved intent codes in order.
func (r *ReasoningResult) IntentCodes() []string {
	codes := make([]string, 0, len(r.ResolvedIntents))
	for _, ri := range r.ResolvedIntents {
		codes = append(codes, ri.IntentCode())
	}
	return codes
}

// Trace appends a formatted line to the reasoning trace.
func (r *ReasoningResult) Trace(format string, args ...any) {
	r.ReasoningTrace = append(r.ReasoningTrace, fmt.Sprintf(format, args...))
}

// Finalize derives the overall confidence (minimum across resolved intents)
// and enforces the handoff invariant: a result flagged for a human must
// carry a non-empty reason.
func (r *ReasoningResult) Finalize() {
	if len(r.ResolvedIntents) > 0 {
		minConf := r.ResolvedIntents[0].Confidence
		for _, ri := range r.ResolvedIntents[1:] {
			if ri.Confidence < minConf {
				minConf = ri.Confidence
			}
		}
		r.Confidence = minConf
	}
	if r.RequiresHuman && r.HandoffReason == "" {
		r.HandoffReason = "unspecified internal failure"
	}
}
