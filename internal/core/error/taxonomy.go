package errx

import "errors"

// Engine failure taxonomy. Each stage of the resolution pipeline surfaces
// exactly one of these sentinels; the orchestrator maps them to a handoff
// reason instead of letting raw errors cross the boundary.
var (
	// ErrCatalogEmpty indicates the intent catalog holds no examples.
	ErrCatalogEmpty = errors.New("catalog empty")
	// ErrIndexUnavailable indicates the vector index has not been loaded yet.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrReasoningTimeout indicates the reasoning service call exceeded its deadline.
	ErrReasoningTimeout = errors.New("reasoning timeout")
	// ErrSchemaViolation indicates the reasoning service returned malformed output.
	// A single repair re-prompt is attempted before ErrDecompositionFailed.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrDecompositionFailed indicates decomposition failed after the repair retry.
	ErrDecompositionFailed = errors.New("decomposition failed")
	// ErrEnrichmentUnavailable indicates the enrichment collaborator could not
	// be reached; dependent constraints degrade to violable.
	ErrEnrichmentUnavailable = errors.New("enrichment unavailable")
	// ErrUnknownActionTarget indicates a plan step named an unregistered target system.
	ErrUnknownActionTarget = errors.New("unknown action target")
	// ErrCycleInActionPlan indicates the built plan's dependencies form a cycle.
	ErrCycleInActionPlan = errors.New("cycle in action plan")
	// ErrClarificationRequired is a valid terminal state, not a failure: the
	// pipeline needs the customer to disambiguate before acting.
	ErrClarificationRequired = errors.New("clarification required")
)

// Class returns a short machine-readable reason code for the taxonomy
// sentinel found in err's chain, or "internal_error" for anything else.
// Used to populate handoff reasons on degraded results.
func Class(err error) string {
	switch {
	case errors.Is(err, ErrCatalogEmpty):
		return "CatalogEmpty"
	case errors.Is(err, ErrIndexUnavailable):
		return "IndexUnavailable"
	case errors.Is(err, ErrReasoningTimeout):
		return "ReasoningTimeout"
	case errors.Is(err, ErrDecompositionFailed):
		return "DecompositionFailed"
	case errors.Is(err, ErrSchemaViolation):
		return "SchemaViolation"
	case errors.Is(err, ErrEnrichmentUnavailable):
		return "EnrichmentUnavailable"
	case errors.Is(err, ErrUnknownActionTarget):
		return "UnknownActionTarget"
	case errors.Is(err, ErrCycleInActionPlan):
		return "CycleInActionPlan"
	case errors.Is(err, ErrClarificationRequired):
		return "ClarificationRequired"
	default:
		return "internal_error"
	}
}
