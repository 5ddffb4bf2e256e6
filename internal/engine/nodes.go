package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"

	errx "github.com/intentcore/server/internal/core/error"
	"github.com/intentcore/server/internal/engine/enrich"
	"github.com/intentcore/server/internal/engine/extract"
	"github.com/intentcore/server/internal/engine/match"
	"github.com/intentcore/server/internal/engine/model"
	"github.com/intentcore/server/internal/engine/plan"
	"github.com/intentcore/server/internal/engine/reason"
	logx "github.com/intentcore/server/pkg/logger"
)

// Node names in the resolution graph.
const (
	NodeExtract     = "Extractor"
	NodeMatch       = "Matcher"
	NodeFastResolve = "FastResolver"
	NodeClarify     = "Clarifier"
	NodeDecompose   = "Decomposer"
	NodeClarifyDeep = "DeepClarifier"
	NodeConstrain   = "ConstraintSolver"
	NodeConflict    = "ConflictResolver"
	NodePlan        = "PlanBuilder"
	NodeFinalize    = "Finalizer"
)

// deepContext is the payload threaded through the deep path after
// decomposition.
type deepContext struct {
	Decomposition *reason.Decomposition
	Intents       []model.ResolvedIntent
	Verdicts      *model.PolicyVerdicts
	Solved        []model.SolvedConstraint
	Sketches      []model.PlanSketch
	Conflict      reason.ConflictResolution
}

// NewExtractPreHandler seeds the run state from the incoming request.
func NewExtractPreHandler() func(context.Context, model.Request, *model.PipelineState) (model.Request, error) {
	return func(ctx context.Context, in model.Request, s *model.PipelineState) (model.Request, error) {
		s.Request = in
		s.Phase = model.PhaseReceived
		s.StartedAtUnixMS = time.Now().UnixMilli()
		s.Result = &model.ReasoningResult{
			RequestID: in.RequestID,
			TenantID:  in.TenantID,
			PathTaken: model.PathDeep,
		}
		s.Result.Trace("received request %s on channel %s", in.RequestID, in.Channel)
		return in, nil
	}
}

// NewExtractNode runs feature extraction over the raw text.
func NewExtractNode(extractor *extract.Extractor) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.Request) (*model.ExtractionResult, error) {
		return extractor.Extract(ctx, in.RawText)
	})
}

func NewExtractPostHandler() func(context.Context, *model.ExtractionResult, *model.PipelineState) (*model.ExtractionResult, error) {
	return func(ctx context.Context, out *model.ExtractionResult, s *model.PipelineState) (*model.ExtractionResult, error) {
		s.Extraction = out
		s.Result.Entities = out.Entities
		s.Result.Scores = out.Scores
		s.Result.Trace("extracted %d entities, frustration %.2f, urgency %.2f",
			len(out.Entities), out.Scores.Frustration, out.Scores.Urgency)
		s.AdvancePhase(model.PhaseExtracted)
		return out, nil
	}
}

// NewMatchNode searches the catalog and runs compound detection. Catalog
// failures (empty, unavailable) surface as errors: the engine must never
// silently fast-path without an index.
func NewMatchNode(matcher *match.Matcher, detector *match.CompoundDetector) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.ExtractionResult) (*match.Result, error) {
		result, err := matcher.Match(in.Embedding, in.Entities)
		if err != nil {
			return nil, err
		}

		var text string
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			text = s.Request.RawText
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		compound := detector.Detect(text, result.Candidates)
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			s.Compound = compound.IsCompound
			s.ForceDeep = compound.ForcesDeepPath()
			s.Segments = compound.Segments
			s.Candidates = result.Candidates
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		return result, nil
	})
}

func NewMatchPostHandler() func(context.Context, *match.Result, *model.PipelineState) (*match.Result, error) {
	return func(ctx context.Context, out *match.Result, s *model.PipelineState) (*match.Result, error) {
		if len(out.Candidates) > 0 {
			top := out.Candidates[0]
			s.Result.Trace("top match %s (%.2f), decision %s", top.IntentCode, top.Similarity, out.Decision)
		} else {
			s.Result.Trace("no catalog candidates, decision %s", out.Decision)
		}
		if s.Compound {
			s.Result.Trace("compound request detected across %d segments", len(s.Segments))
		} else if s.ForceDeep {
			s.Result.Trace("routing signal present, forcing deep path")
		}
		s.AdvancePhase(model.PhaseMatched)
		return out, nil
	}
}

// NewRouteCondition picks the path after matching: fast path only for an
// unambiguous single-intent match with no detector signal, clarification
// when the catalog gave nothing, deep path otherwise. Any detector signal
// (conjunction, multi-clause, cross-category top matches) forces the deep
// path even when the matcher alone would fast-path.
func NewRouteCondition() func(context.Context, *match.Result) (string, error) {
	return func(ctx context.Context, in *match.Result) (string, error) {
		var forceDeep bool
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			forceDeep = s.ForceDeep
			return nil
		}); err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}

		switch {
		case in.Decision == match.Clarification:
			logx.Debug().Msg("Routing to clarification - no usable candidates")
			return NodeClarify, nil
		case in.Decision == match.FastPath && !forceDeep:
			logx.Debug().Msg("Routing to fast path")
			return NodeFastResolve, nil
		default:
			logx.Debug().Bool("force_deep", forceDeep).Msg("Routing to deep path")
			return NodeDecompose, nil
		}
	}
}

// NewFastResolveNode resolves directly from the top candidate and builds
// the plan without a reasoning call.
func NewFastResolveNode(builder *plan.Builder) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *match.Result) (*model.ReasoningResult, error) {
		var entities []model.Entity
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			if s.Extraction != nil {
				entities = s.Extraction.Entities
			}
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if in.Resolved == nil {
			return nil, fmt.Errorf("fast path without resolved intent")
		}

		actionPlan, err := builder.Build(plan.Input{
			Intents:  []model.ResolvedIntent{*in.Resolved},
			Entities: entities,
		})
		if err != nil {
			return nil, err
		}

		return &model.ReasoningResult{
			ResolvedIntents: []model.ResolvedIntent{*in.Resolved},
			Plan:            actionPlan,
			PathTaken:       model.PathFast,
		}, nil
	})
}

func NewFastResolvePostHandler() func(context.Context, *model.ReasoningResult, *model.PipelineState) (*model.ReasoningResult, error) {
	return func(ctx context.Context, out *model.ReasoningResult, s *model.PipelineState) (*model.ReasoningResult, error) {
		s.AdvancePhase(model.PhaseFastResolved)
		s.Result.Trace("fast path resolution: %s", out.ResolvedIntents[0].IntentCode())
		s.AdvancePhase(model.PhasePlanBuilt)
		mergeResult(s, out)
		return out, nil
	}
}

// NewClarifyNode produces a clarification result when matching gave nothing
// to work with.
func NewClarifyNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *match.Result) (*model.ReasoningResult, error) {
		return &model.ReasoningResult{
			ResolvedIntents:       []model.ResolvedIntent{model.NewResolvedIntent(model.IntentUnclear, 0)},
			RequiresClarification: true,
			ClarificationQuestion: "Could you tell me a bit more about what you need help with?",
			PathTaken:             model.PathNoMatch,
		}, nil
	})
}

func NewClarifyPostHandler() func(context.Context, *model.ReasoningResult, *model.PipelineState) (*model.ReasoningResult, error) {
	return func(ctx context.Context, out *model.ReasoningResult, s *model.PipelineState) (*model.ReasoningResult, error) {
		s.AdvancePhase(model.PhaseClarificationNeeded)
		s.Result.Trace("clarification required: %s", out.ClarificationQuestion)
		mergeResult(s, out)
		return out, nil
	}
}

// NewDecomposePreHandler fetches enrichment context before decomposition.
// Enrichment failure degrades the run, it never fails it.
func NewDecomposePreHandler(enricher enrich.Provider) func(context.Context, *match.Result, *model.PipelineState) (*match.Result, error) {
	return func(ctx context.Context, in *match.Result, s *model.PipelineState) (*match.Result, error) {
		ec, err := enricher.FetchContext(ctx, s.Request.CustomerID, s.Request.OrderIDs)
		if err != nil {
			logx.Warn().Err(err).Str("request_id", s.Request.RequestID).Msg("Enrichment unavailable")
			s.Result.Trace("enrichment unavailable: dependent constraints degrade to violable")
			s.Enrichment = nil
			return in, nil
		}
		s.Enrichment = ec
		s.Result.Trace("enrichment loaded: %d orders, customer tier %s", len(ec.Orders), ec.CustomerTier())
		return in, nil
	}
}

// NewDecomposeNode calls the reasoning model. On timeout or decomposition
// failure it falls back to the top match candidate as a degraded single
// intent; with no candidates the error surfaces to the orchestrator.
func NewDecomposeNode(decomposer *reason.Decomposer) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *match.Result) (*reason.Decomposition, error) {
		var promptIn reason.PromptInput
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			promptIn = reason.PromptInput{
				Text:            s.Request.RawText,
				MatchHints:      in.Hints(),
				CustomerTier:    customerTier(s),
				PreviousIntents: s.Request.PreviousIntents,
				Enrichment:      s.Enrichment,
			}
			if s.Extraction != nil {
				promptIn.Entities = s.Extraction.Entities
			}
			// Segments only matter when the request actually looks compound.
			if s.Compound {
				promptIn.Segments = s.Segments
			}
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		out, err := decomposer.Decompose(ctx, promptIn)
		if err == nil {
			return out, nil
		}

		if errors.Is(err, errx.ErrReasoningTimeout) || errors.Is(err, errx.ErrDecompositionFailed) {
			if len(in.Candidates) == 0 {
				return nil, err
			}
			top := in.Candidates[0]
			logx.Warn().
				Err(err).
				Str("fallback_intent", top.IntentCode).
				Msg("Reasoning unavailable, degrading to top match candidate")
			return &reason.Decomposition{
				Intents:        []model.ResolvedIntent{model.NewResolvedIntent(top.IntentCode, top.Similarity, top.MatchedExample)},
				Degraded:       true,
				DegradedReason: errx.Class(err),
			}, nil
		}
		return nil, err
	})
}

func NewDecomposePostHandler() func(context.Context, *reason.Decomposition, *model.PipelineState) (*reason.Decomposition, error) {
	return func(ctx context.Context, out *reason.Decomposition, s *model.PipelineState) (*reason.Decomposition, error) {
		s.Result.IsCompound = out.IsCompound || s.Compound
		if out.Degraded {
			// A degraded run still produces a plan, but a human must review
			// it: the reasoning service never validated the intent split.
			s.Result.PathTaken = model.PathDeepDegraded
			s.Result.RequiresHuman = true
			s.Result.HandoffReason = out.DegradedReason
			s.Result.Trace("decomposition degraded (%s), using top candidate", out.DegradedReason)
		} else {
			s.Result.Trace("decomposed into %d intents", len(out.Intents))
		}
		s.AdvancePhase(model.PhaseDecomposed)
		return out, nil
	}
}

// NewDeepClarifyCondition routes to clarification when the reasoning model
// itself asked for one.
func NewDeepClarifyCondition() func(context.Context, *reason.Decomposition) (string, error) {
	return func(ctx context.Context, in *reason.Decomposition) (string, error) {
		if in.RequiresClarification || len(in.Intents) == 0 {
			return NodeClarifyDeep, nil
		}
		return NodeConstrain, nil
	}
}

// NewDeepClarifyNode turns the model's clarification request into the
// terminal result.
func NewDeepClarifyNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *reason.Decomposition) (*model.ReasoningResult, error) {
		question := in.ClarificationQuestion
		if question == "" {
			question = "Could you tell me a bit more about what you need help with?"
		}
		return &model.ReasoningResult{
			ResolvedIntents:       in.Intents,
			IsCompound:            in.IsCompound,
			RequiresClarification: true,
			ClarificationQuestion: question,
			PathTaken:             model.PathClarification,
		}, nil
	})
}

func NewDeepClarifyPostHandler() func(context.Context, *model.ReasoningResult, *model.PipelineState) (*model.ReasoningResult, error) {
	return func(ctx context.Context, out *model.ReasoningResult, s *model.PipelineState) (*model.ReasoningResult, error) {
		s.AdvancePhase(model.PhaseClarificationNeeded)
		s.Result.Trace("reasoning requested clarification: %s", out.ClarificationQuestion)
		mergeResult(s, out)
		return out, nil
	}
}

// NewConstrainNode evaluates tenant policy for the primary intent and
// classifies every constraint. Pure over state inputs.
func NewConstrainNode(policy *reason.PolicyEngine) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *reason.Decomposition) (*deepContext, error) {
		var (
			tenantID    string
			text        string
			frustration float64
			enrichment  *model.EnrichmentContext
		)
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			tenantID = s.Request.TenantID
			text = s.Request.RawText
			enrichment = s.Enrichment
			if s.Extraction != nil {
				frustration = s.Extraction.Scores.Frustration
			}
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		verdicts := policy.Evaluate(reason.PolicyInput{
			TenantID:         tenantID,
			IntentCode:       in.Intents[0].IntentCode(),
			Enrichment:       enrichment,
			FrustrationScore: frustration,
			Text:             text,
			Now:              time.Now().UTC(),
		})

		solved, sketches := reason.SolveConstraints(in.Constraints, enrichment, verdicts, time.Now().UTC())

		return &deepContext{
			Decomposition: in,
			Intents:       in.Intents,
			Verdicts:      verdicts,
			Solved:        solved,
			Sketches:      sketches,
		}, nil
	})
}

func NewConstrainPostHandler() func(context.Context, *deepContext, *model.PipelineState) (*deepContext, error) {
	return func(ctx context.Context, out *deepContext, s *model.PipelineState) (*deepContext, error) {
		s.Result.Constraints = out.Solved
		s.Result.PlanSketches = out.Sketches
		s.Result.Policy = out.Verdicts
		blocked := 0
		for _, sc := range out.Solved {
			if sc.Status == model.ConstraintBlocked {
				blocked++
			}
		}
		s.Result.Trace("solved %d constraints (%d blocked), %d plan sketches",
			len(out.Solved), blocked, len(out.Sketches))
		s.AdvancePhase(model.PhaseConstrained)
		return out, nil
	}
}

// NewConflictNode collapses contradictory intents.
func NewConflictNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *deepContext) (*deepContext, error) {
		var conflictIn reason.ConflictInput
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			conflictIn = reason.ConflictInput{
				Intents:      in.Intents,
				Enrichment:   s.Enrichment,
				Text:         s.Request.RawText,
				CustomerTier: customerTier(s),
			}
			if s.Extraction != nil {
				conflictIn.Entities = s.Extraction.Entities
				conflictIn.FrustrationScore = s.Extraction.Scores.Frustration
			}
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		in.Conflict = reason.ResolveConflicts(conflictIn)
		in.Intents = in.Conflict.Intents
		return in, nil
	})
}

func NewConflictPostHandler() func(context.Context, *deepContext, *model.PipelineState) (*deepContext, error) {
	return func(ctx context.Context, out *deepContext, s *model.PipelineState) (*deepContext, error) {
		for _, line := range out.Conflict.Reasoning {
			s.Result.Trace("%s", line)
		}
		s.AdvancePhase(model.PhaseConflictResolved)
		return out, nil
	}
}

// NewPlanNode applies final policy verdicts and assembles the action plan,
// or the conflict clarification when one is pending.
func NewPlanNode(builder *plan.Builder) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *deepContext) (*model.ReasoningResult, error) {
		var (
			entities []model.Entity
			path     model.PathTaken
			compound bool
		)
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			if s.Extraction != nil {
				entities = s.Extraction.Entities
			}
			path = s.Result.PathTaken
			compound = s.Result.IsCompound
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		result := &model.ReasoningResult{
			ResolvedIntents: in.Intents,
			IsCompound:      compound,
			Constraints:     in.Solved,
			PlanSketches:    in.Sketches,
			Policy:          in.Verdicts,
			PathTaken:       path,
		}

		if in.Conflict.RequiresClarification {
			result.RequiresClarification = true
			result.ClarificationQuestion = in.Conflict.ClarificationQuestion
			result.ClarificationOptions = in.Conflict.ClarificationOptions
			return result, nil
		}

		if in.Verdicts != nil && in.Verdicts.EscalationRequired {
			result.RequiresHuman = true
			result.HandoffReason = strings.Join(in.Verdicts.EscalationReasons, "; ")
		}

		actionPlan, err := builder.Build(plan.Input{
			Intents:  in.Intents,
			Entities: entities,
			Verdicts: in.Verdicts,
			Sketches: in.Sketches,
		})
		if err != nil {
			return nil, err
		}
		result.Plan = actionPlan
		return result, nil
	})
}

func NewPlanPostHandler() func(context.Context, *model.ReasoningResult, *model.PipelineState) (*model.ReasoningResult, error) {
	return func(ctx context.Context, out *model.ReasoningResult, s *model.PipelineState) (*model.ReasoningResult, error) {
		if out.RequiresClarification {
			s.AdvancePhase(model.PhaseClarificationNeeded)
			s.Result.Trace("conflict unresolved, clarification required")
		} else {
			s.AdvancePhase(model.PhasePolicyEvaluated)
			s.Result.Trace("plan built with %d steps", len(out.Plan.Steps))
			s.AdvancePhase(model.PhasePlanBuilt)
		}
		mergeResult(s, out)
		return out, nil
	}
}

// NewFinalizeNode stamps processing time and enforces result invariants.
func NewFinalizeNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in *model.ReasoningResult) (*model.ReasoningResult, error) {
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.PipelineState) error {
			in.ProcessingTimeMS = time.Now().UnixMilli() - s.StartedAtUnixMS
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		in.Finalize()
		return in, nil
	})
}

func NewFinalizePostHandler() func(context.Context, *model.ReasoningResult, *model.PipelineState) (*model.ReasoningResult, error) {
	return func(ctx context.Context, out *model.ReasoningResult, s *model.PipelineState) (*model.ReasoningResult, error) {
		if s.Phase == model.PhasePlanBuilt {
			s.AdvancePhase(model.PhaseDone)
		}
		s.Result = out
		logx.Info().
			Str("request_id", out.RequestID).
			Str("path_taken", string(out.PathTaken)).
			Strs("intents", out.IntentCodes()).
			Int64("processing_time_ms", out.ProcessingTimeMS).
			Msg("Resolution complete")
		return out, nil
	}
}

// customerTier prefers the tier stated on the request over enrichment.
func customerTier(s *model.PipelineState) string {
	if s.Request.CustomerTier != "" {
		return s.Request.CustomerTier
	}
	return s.Enrichment.CustomerTier()
}

// mergeResult folds the run-scoped fields accumulated in state into a
// node-produced result and makes it the state's current result.
func mergeResult(s *model.PipelineState, out *model.ReasoningResult) {
	out.RequestID = s.Result.RequestID
	out.TenantID = s.Result.TenantID
	if out.Entities == nil {
		out.Entities = s.Result.Entities
	}
	out.Scores = s.Result.Scores
	if s.Result.PathTaken == model.PathDeepDegraded {
		out.PathTaken = model.PathDeepDegraded
	}
	if s.Result.RequiresHuman && !out.RequiresHuman {
		out.RequiresHuman = true
		out.HandoffReason = s.Result.HandoffReason
	}
	out.ReasoningTrace = append(s.Result.ReasoningTrace, out.ReasoningTrace...)
	s.Result = out
}
