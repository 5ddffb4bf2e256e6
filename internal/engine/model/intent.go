package model

import "strings"

// Intent categories. An intent code is CATEGORY.INTENT, e.g.
// "ORDER_STATUS.WISMO".
const (
	CategoryOrderStatus    = "ORDER_STATUS"
	CategoryOrderModify    = "ORDER_MODIFY"
	CategoryReturnExchange = "RETURN_EXCHANGE"
	CategoryComplaint      = "COMPLAINT"
	CategoryProductInquiry = "PRODUCT_INQUIRY"
	CategoryAccountBilling = "ACCOUNT_BILLING"
	CategoryDiscovery      = "DISCOVERY"
	CategoryMeta           = "META"
)

// Intent codes referenced by the pipeline itself (routing, conflict pairs,
// plan mapping). The catalog may carry more; these are the ones business
// logic keys on.
const (
	IntentWISMO            = "ORDER_STATUS.WISMO"
	IntentDeliveryEstimate = "ORDER_STATUS.DELIVERY_ESTIMATE"
	IntentTrackingIssue    = "ORDER_STATUS.TRACKING_ISSUE"

	IntentCancelOrder   = "ORDER_MODIFY.CANCEL_ORDER"
	IntentChangeAddress = "ORDER_MODIFY.CHANGE_ADDRESS"
	IntentChangeItems   = "ORDER_MODIFY.CHANGE_ITEMS"
	IntentExpedite      = "ORDER_MODIFY.EXPEDITE"
	IntentDelayShipment = "ORDER_MODIFY.DELAY_SHIPMENT"

	IntentReturnInitiate  = "RETURN_EXCHANGE.RETURN_INITIATE"
	IntentExchangeRequest = "RETURN_EXCHANGE.EXCHANGE_REQUEST"
	IntentRefundStatus    = "RETURN_EXCHANGE.REFUND_STATUS"

	IntentDamagedItem = "COMPLAINT.DAMAGED_ITEM"
	IntentWrongItem   = "COMPLAINT.WRONG_ITEM"
	IntentMissingItem = "COMPLAINT.MISSING_ITEM"

	IntentStock = "PRODUCT_INQUIRY.STOCK"

	IntentHumanHandoff = "META.HUMAN_HANDOFF"
	IntentUnclear      = "META.UNCLEAR"
)

// ConfidenceTier buckets a confidence score.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
)

// Tier thresholds. HIGH >= 0.85, MEDIUM in [0.60, 0.85), LOW < 0.60.
const (
	TierHighThreshold   = 0.85
	TierMediumThreshold = 0.60
)

// TierFor maps a confidence score to its tier. Pure function of the score.
func TierFor(confidence float64) ConfidenceTier {
	switch {
	case confidence >= TierHighThreshold:
		return TierHigh
	case confidence >= TierMediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// ResolvedIntent is a single atomic classified goal.
type ResolvedIntent struct {
	Category   string         `json:"category"`
	Intent     string         `json:"intent"`
	SubIntent  string         `json:"sub_intent,omitempty"`
	Confidence float64        `json:"confidence"`
	Tier       ConfidenceTier `json:"confidence_tier"`
	Evidence   []string       `json:"evidence,omitempty"`
}

// IntentCode returns the full CATEGORY.INTENT code.
func (r ResolvedIntent) IntentCode() string {
	return r.Category + "." + r.Intent
}

// NewResolvedIntent builds a ResolvedIntent from a full intent code,
// deriving the tier from the confidence.
func NewResolvedIntent(intentCode string, confidence float64, evidence ...string) ResolvedIntent {
	category, intent := SplitIntentCode(intentCode)
	return ResolvedIntent{
		Category:   category,
		Intent:     intent,
		Confidence: confidence,
		Tier:       TierFor(confidence),
		Evidence:   evidence,
	}
}

// SplitIntentCode splits CATEGORY.INTENT. A bare code with no dot is
// treated as both category and intent.
func SplitIntentCode(code string) (category, intent string) {
	parts := strings.SplitN(code, ".", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], parts[0]
}

// CategoryOf returns the category prefix of an intent code.
func CategoryOf(code string) string {
	category, _ := SplitIntentCode(code)
	return category
}

// MatchCandidate is one catalog hit for a query embedding. Sequences are
// ordered descending by similarity.
type MatchCandidate struct {
	IntentCode     string  `json:"intent_code"`
	Similarity     float64 `json:"similarity"`
	MatchedExample string  `json:"matched_example"`
}

// Category returns the candidate's top-level intent category.
func (m MatchCandidate) Category() string {
	return CategoryOf(m.IntentCode)
}
