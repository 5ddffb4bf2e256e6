package match

import (
	"fmt"

	"github.com/intentcore/server/internal/engine/catalog"
	"github.com/intentcore/server/internal/engine/model"
	logx "github.com/intentcore/server/pkg/logger"
)

// Decision from the matching layer.
type Decision string

const (
	// FastPath resolves directly from the top candidate.
	FastPath Decision = "fast_path"
	// DeepPath routes to decomposition with the candidates as hints.
	DeepPath Decision = "deep_path"
	// Clarification means the catalog gave nothing to work with.
	Clarification Decision = "clarification"
)

// Result is the matcher's routing verdict for one run.
type Result struct {
	Decision        Decision
	Candidates      []model.MatchCandidate
	Resolved        *model.ResolvedIntent
	Ambiguous       bool
	AmbiguityReason string
}

// Expected entity types per intent, used for confidence boosting: messages
// that carry an intent's expected entities are stronger matches.
var intentExpectedEntities = map[string][]model.EntityType{
	model.IntentWISMO:            {model.EntityOrderID, model.EntityTrackingNumber},
	model.IntentDeliveryEstimate: {model.EntityOrderID},
	model.IntentTrackingIssue:    {model.EntityTrackingNumber, model.EntityOrderID},
	model.IntentCancelOrder:      {model.EntityOrderID},
	model.IntentChangeAddress:    {model.EntityOrderID, model.EntityAddress},
	model.IntentChangeItems:      {model.EntityOrderID, model.EntityProductSKU, model.EntitySize, model.EntityColor},
	model.IntentReturnInitiate:   {model.EntityOrderID, model.EntityReason},
	model.IntentExchangeRequest:  {model.EntityOrderID, model.EntitySize, model.EntityColor},
	model.IntentRefundStatus:     {model.EntityOrderID, model.EntityMoneyAmount},
	model.IntentDamagedItem:      {model.EntityOrderID, model.EntityReason},
	model.IntentWrongItem:        {model.EntityOrderID, model.EntityProductSKU, model.EntityColor, model.EntitySize},
	model.IntentMissingItem:      {model.EntityOrderID, model.EntityProductSKU},
	model.IntentStock:            {model.EntityProductSKU, model.EntitySize, model.EntityColor},
}

// entityBoost is the relative similarity boost applied when extracted
// entities overlap the top intent's expected set.
const entityBoost = 0.05

// Matcher applies the confidence/tie-break routing policy over catalog
// search results.
type Matcher struct {
	store *catalog.Store
	cfg   model.MatcherConfig
}

func NewMatcher(store *catalog.Store, cfg model.MatcherConfig) *Matcher {
	return &Matcher{store: store, cfg: cfg}
}

// Match searches the pinned catalog snapshot and decides fast path vs deep
// path. Entities, when provided, may boost the top candidate.
//
// Policy, with m0 the top candidate and m1 the runner-up:
//   - m0 >= fast threshold and (no m1 or gap >= ambiguity gap) and same
//     category: FAST_PATH.
//   - m0 >= fast threshold but near-tie: DEEP_PATH, both carried as hints.
//   - low <= m0 < fast: DEEP_PATH with hints.
//   - m0 < low: DEEP_PATH, open decomposition.
//
// CatalogEmpty and IndexUnavailable surface to the caller, which must not
// silently fast-path.
func (m *Matcher) Match(embedding []float32, entities []model.Entity) (*Result, error) {
	snap, err := m.store.Snapshot()
	if err != nil {
		return nil, err
	}

	candidates, err := snap.Search(embedding, m.cfg.TopK)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Result{
			Decision:        Clarification,
			Ambiguous:       true,
			AmbiguityReason: "no matches found in intent catalog",
		}, nil
	}

	candidates = boostTopCandidate(candidates, entities)
	top := candidates[0]

	if top.Similarity < m.cfg.LowConfidenceThreshold {
		return &Result{
			Decision:        DeepPath,
			Candidates:      candidates,
			Ambiguous:       true,
			AmbiguityReason: fmt.Sprintf("low confidence (%.2f)", top.Similarity),
		}, nil
	}

	if len(candidates) > 1 {
		second := candidates[1]
		gap := top.Similarity - second.Similarity
		if gap < m.cfg.AmbiguityGap {
			reason := fmt.Sprintf("close match: %s (%.2f)", second.IntentCode, second.Similarity)
			if top.Category() != second.Category() {
				reason = fmt.Sprintf("multiple categories: %s vs %s (gap %.2f)",
					top.IntentCode, second.IntentCode, gap)
			}
			return &Result{
				Decision:        DeepPath,
				Candidates:      candidates,
				Ambiguous:       true,
				AmbiguityReason: reason,
			}, nil
		}
	}

	if top.Similarity >= m.cfg.FastPathThreshold {
		resolved := model.NewResolvedIntent(top.IntentCode, top.Similarity, top.MatchedExample)
		logx.Debug().
			Str("intent_code", top.IntentCode).
			Float64("similarity", top.Similarity).
			Msg("Fast path match")
		return &Result{
			Decision:   FastPath,
			Candidates: candidates,
			Resolved:   &resolved,
		}, nil
	}

	// Medium confidence band.
	return &Result{
		Decision:   DeepPath,
		Candidates: candidates,
	}, nil
}

// boostTopCandidate applies the entity boost to the top candidate when the
// extracted entity types overlap its expected set. Capped at 1.0.
func boostTopCandidate(candidates []model.MatchCandidate, entities []model.Entity) []model.MatchCandidate {
	if len(candidates) == 0 || len(entities) == 0 {
		return candidates
	}
	expected := intentExpectedEntities[candidates[0].IntentCode]
	if len(expected) == 0 {
		return candidates
	}

	present := make(map[model.EntityType]bool, len(entities))
	for _, e := range entities {
		present[e.Type] = true
	}
	overlap := false
	for _, t := range expected {
		if present[t] {
			overlap = true
			break
		}
	}
	if !overlap {
		return candidates
	}

	boosted := candidates[0].Similarity * (1 + entityBoost)
	if boosted > 1 {
		boosted = 1
	}
	candidates[0].Similarity = boosted
	return candidates
}

// Hints returns the candidate intent codes for the reasoning path.
func (r *Result) Hints() []string {
	hints := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		hints = append(hints, c.IntentCode)
	}
	return hints
}
