package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinalizeDerivesMinimumConfidence(t *testing.T) {
	r := &ReasoningResult{
		ResolvedIntents: []ResolvedIntent{
			NewResolvedIntent(IntentReturnInitiate, 0.91),
			NewResolvedIntent(IntentExchangeRequest, 0.74),
			NewResolvedIntent(IntentWISMO, 0.88),
		},
	}
	r.Finalize()

	assert.Equal(t, 0.74, r.Confidence)
}

func TestFinalizeHandoffReasonFallback(t *testing.T) {
	r := &ReasoningResult{RequiresHuman: true}
	r.Finalize()

	assert.NotEmpty(t, r.HandoffReason, "a handoff result must always carry a reason")

	r2 := &ReasoningResult{RequiresHuman: true, HandoffReason: "ReasoningTimeout"}
	r2.Finalize()
	assert.Equal(t, "ReasoningTimeout", r2.HandoffReason)
}

func TestFinalizeNoIntents(t *testing.T) {
	r := &ReasoningResult{}
	r.Finalize()

	assert.Zero(t, r.Confidence)
	assert.Empty(t, r.HandoffReason)
}

func TestIntentCodes(t *testing.T) {
	r := &ReasoningResult{
		ResolvedIntents: []ResolvedIntent{
			NewResolvedIntent(IntentWISMO, 0.9),
			NewResolvedIntent(IntentStock, 0.8),
		},
	}
	assert.Equal(t, []string{IntentWISMO, IntentStock}, r.IntentCodes())
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierHigh, TierFor(0.85))
	assert.Equal(t, TierHigh, TierFor(1.0))
	assert.Equal(t, TierMedium, TierFor(0.60))
	assert.Equal(t, TierMedium, TierFor(0.849))
	assert.Equal(t, TierLow, TierFor(0.599))
	assert.Equal(t, TierLow, TierFor(0))
}

func TestSplitIntentCode(t *testing.T) {
	category, intent := SplitIntentCode(IntentReturnInitiate)
	assert.Equal(t, CategoryReturnExchange, category)
	assert.Equal(t, "RETURN_INITIATE", intent)

	category, intent = SplitIntentCode("BARE")
	assert.Equal(t, "BARE", category)
	assert.Equal(t, "BARE", intent)
}

func TestNewResolvedIntent(t *testing.T) {
	ri := NewResolvedIntent(IntentWISMO, 0.92, "where is my order")

	assert.Equal(t, CategoryOrderStatus, ri.Category)
	assert.Equal(t, "WISMO", ri.Intent)
	assert.Equal(t, TierHigh, ri.Tier)
	assert.Equal(t, IntentWISMO, ri.IntentCode())
	assert.Equal(t, []string{"where is my order"}, ri.Evidence)
}
