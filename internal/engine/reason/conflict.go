package reason

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/intentcore/server/internal/engine/model"
	logx "github.com/intentcore/server/pkg/logger"
)

// ConflictType classifies why two intents cannot both proceed.
type ConflictType string

const (
	ConflictMutuallyExclusive ConflictType = "mutually_exclusive"
	ConflictContradictory     ConflictType = "contradictory_policy"
	ConflictPolicyViolation   ConflictType = "policy_violation"
)

// ResolutionStrategy names how a conflict was settled.
type ResolutionStrategy string

const (
	ResolveByPreference    ResolutionStrategy = "preference"
	ResolveByPriority      ResolutionStrategy = "priority"
	ResolveByClarification ResolutionStrategy = "clarification"
)

// ConflictResolution is the resolver's output. Intents only ever shrink:
// resolution removes losers, it never invents new intents, which is what
// makes re-running the resolver a fixed point.
type ConflictResolution struct {
	Intents               []model.ResolvedIntent
	HasConflict           bool
	ConflictType          ConflictType
	ConflictDescription   string
	Strategy              ResolutionStrategy
	RequiresClarification bool
	ClarificationQuestion string
	ClarificationOptions  []string
	Reasoning             []string
}

type pairKey struct{ a, b string }

// Mutually exclusive intent pairs. Checked in both orderings.
var exclusivePairs = map[pairKey]string{
	{model.IntentReturnInitiate, model.IntentExchangeRequest}: "Cannot both return and exchange the same item",
	{model.IntentRefundStatus, model.IntentExchangeRequest}:   "Cannot request refund and exchange for the same item",
	{model.IntentCancelOrder, model.IntentExpedite}:           "Cannot cancel and expedite the same order",
	{model.IntentCancelOrder, model.IntentChangeAddress}:      "Cannot cancel and change address for the same order",
	{model.IntentCancelOrder, model.IntentChangeItems}:        "Cannot cancel and modify items for the same order",
	{model.IntentExpedite, model.IntentDelayShipment}:         "Cannot expedite and delay the same shipment",
}

// Pairs that logically cannot coexist even for lenient tiers.
var contradictoryPairs = map[pairKey]bool{
	{model.IntentCancelOrder, model.IntentExpedite}:   true,
	{model.IntentExpedite, model.IntentDelayShipment}: true,
}

// strictlyContradictory excludes pairs a lenient tier may still keep.
var strictlyContradictoryForTier = map[pairKey]bool{
	{model.IntentCancelOrder, model.IntentExpedite}:   true,
	{model.IntentExpedite, model.IntentDelayShipment}: true,
}

// Merchant rank: exchange keeps the customer, so it outranks return, which
// outranks refund.
var intentPriority = map[string]int{
	model.IntentExchangeRequest: 3,
	model.IntentReturnInitiate:  2,
	model.IntentRefundStatus:    1,
	model.IntentExpedite:        2,
	model.IntentCancelOrder:     1,
}

// Customer-favorable rank used under high frustration.
var customerFavorablePriority = map[string]int{
	"RETURN_INITIATE":  3,
	"REFUND_STATUS":    3,
	"EXCHANGE_REQUEST": 2,
	"CANCEL_ORDER":     2,
}

var preferenceKeywords = map[string][]string{
	"exchange": {"exchange", "swap", "different size", "different color", "replace with"},
	"refund":   {"refund", "money back", "return for refund", "just return"},
	"cancel":   {"cancel", "don't want", "changed my mind"},
	"expedite": {"faster", "rush", "expedite", "urgent", "asap"},
}

var preferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:i\s+)?prefer\s+(?:to\s+)?(\w+)`),
	regexp.MustCompile(`(?i)(?:i\s+)?(?:want|would like)\s+(?:to\s+)?(?:a\s+)?(\w+)\s+(?:not|instead)`),
	regexp.MustCompile(`(?i)(?:just|only)\s+(?:want\s+(?:to\s+)?)?(?:a\s+)?(\w+)`),
	regexp.MustCompile(`(?i)(\w+)\s+not\s+(?:a\s+)?(?:refund|return|exchange)`),
}

// "refund, not an exchange" keeps whatever was not negated.
var negationPattern = regexp.MustCompile(
	`(?i)(refund|return|exchange|cancel|expedite)[^,]*,?\s*not\s+(?:an?\s+)?(refund|return|exchange|cancel|expedite)`)

var preferenceIntentNames = map[string]string{
	"exchange": "EXCHANGE_REQUEST",
	"refund":   "RETURN_INITIATE",
	"cancel":   "CANCEL_ORDER",
	"expedite": "EXPEDITE",
}

var intentDescriptions = map[string]string{
	"RETURN_INITIATE":  "return the item for a refund",
	"EXCHANGE_REQUEST": "exchange the item for a different one",
	"REFUND_STATUS":    "get a refund",
	"CANCEL_ORDER":     "cancel your order",
	"EXPEDITE":         "expedite shipping",
	"CHANGE_ADDRESS":   "change the shipping address",
}

// ConflictInput bundles everything the resolver considers.
type ConflictInput struct {
	Intents          []model.ResolvedIntent
	Entities         []model.Entity
	Enrichment       *model.EnrichmentContext
	Text             string
	CustomerTier     string
	FrustrationScore float64
}

// ResolveConflicts collapses contradictory intents into one coherent set.
// Precedence per pair: stated customer preference, then tier leniency, then
// frustration, then merchant rank, then clarification. Pairs are settled
// one at a time until none remain, so chained conflicts cannot outlive the
// resolver: the output is a fixed point under re-resolution.
func ResolveConflicts(in ConflictInput) ConflictResolution {
	reasoning := []string{"conflict resolution"}

	if len(in.Intents) < 2 {
		return ConflictResolution{
			Intents:   in.Intents,
			Reasoning: append(reasoning, "single intent, no conflict possible"),
		}
	}

	if _, _, _, found := detectConflict(in.Intents, nil); !found {
		return ConflictResolution{
			Intents:   in.Intents,
			Reasoning: append(reasoning, fmt.Sprintf("no conflicts among %d intents", len(in.Intents))),
		}
	}

	// Different items means no real conflict.
	if appliesToDifferentItems(in.Entities) {
		return ConflictResolution{
			Intents:   in.Intents,
			Reasoning: append(reasoning, "intents apply to different items, no conflict"),
		}
	}

	out := ConflictResolution{Intents: in.Intents}
	pref := extractPreference(in.Text)
	tier := strings.ToLower(in.CustomerTier)
	settled := make(map[pairKey]bool)

	for {
		a, b, desc, found := detectConflict(out.Intents, settled)
		if !found {
			break
		}
		reasoning = append(reasoning,
			fmt.Sprintf("detected conflict: %s vs %s", a.IntentCode(), b.IntentCode()),
			"conflict type: "+desc)
		out.HasConflict = true
		out.ConflictType = determineConflictType(a, b, in.Enrichment)
		out.ConflictDescription = desc

		if pref != "" {
			if resolved, ok := applyPreference(out.Intents, pref, a, b); ok {
				reasoning = append(reasoning,
					fmt.Sprintf("customer preference detected: %q", pref),
					fmt.Sprintf("resolved to %s based on stated preference", resolved[0].IntentCode()))
				out.Intents = resolved
				out.Strategy = ResolveByPreference
				continue
			}
		}

		if (tier == model.TierVIP || tier == model.TierAtRisk) && canApproveBothForTier(a, b) {
			reasoning = append(reasoning, fmt.Sprintf("%s customer, approving both actions", tier))
			settled[pairKey{a.IntentCode(), b.IntentCode()}] = true
			out.Strategy = ResolveByPriority
			continue
		}

		if in.FrustrationScore > 0.7 {
			resolved := applyCustomerFavorable(out.Intents, a, b)
			reasoning = append(reasoning,
				fmt.Sprintf("high frustration (%.2f), favoring customer-preferred option", in.FrustrationScore),
				fmt.Sprintf("resolved to %s (customer-favorable)", resolved[0].IntentCode()))
			out.Intents = resolved
			out.Strategy = ResolveByPriority
			continue
		}

		if resolved, ok := applyPriorityRules(out.Intents, a, b); ok {
			reasoning = append(reasoning,
				fmt.Sprintf("applied merchant priority: %s preferred", resolved[0].IntentCode()))
			out.Intents = resolved
			out.Strategy = ResolveByPriority
			continue
		}

		question, options := clarificationFor(a, b)
		reasoning = append(reasoning, "no clear resolution, requesting clarification")
		logx.Debug().
			Str("intent_a", a.IntentCode()).
			Str("intent_b", b.IntentCode()).
			Msg("Conflict needs clarification")
		out.Strategy = ResolveByClarification
		out.RequiresClarification = true
		out.ClarificationQuestion = question
		out.ClarificationOptions = options
		break // keep the remaining intents until the customer answers
	}

	out.Reasoning = reasoning
	return out
}

// detectConflict returns the first conflicting pair not already settled as
// allowed to coexist.
func detectConflict(intents []model.ResolvedIntent, settled map[pairKey]bool) (a, b model.ResolvedIntent, desc string, found bool) {
	for i := range intents {
		for j := i + 1; j < len(intents); j++ {
			ca, cb := intents[i].IntentCode(), intents[j].IntentCode()
			if settled[pairKey{ca, cb}] || settled[pairKey{cb, ca}] {
				continue
			}
			if d, ok := exclusivePairs[pairKey{ca, cb}]; ok {
				return intents[i], intents[j], d, true
			}
			if d, ok := exclusivePairs[pairKey{cb, ca}]; ok {
				return intents[i], intents[j], d, true
			}
		}
	}
	return model.ResolvedIntent{}, model.ResolvedIntent{}, "", false
}

func determineConflictType(a, b model.ResolvedIntent, enrichment *model.EnrichmentContext) ConflictType {
	if order := enrichment.PrimaryOrder(); order != nil {
		ineligible := order.ReturnEligibility == model.ReturnExpired ||
			order.ReturnEligibility == model.ReturnFinalSale
		if ineligible &&
			(strings.Contains(a.IntentCode(), "RETURN") || strings.Contains(b.IntentCode(), "RETURN")) {
			return ConflictPolicyViolation
		}
	}

	if isPair(contradictoryPairs, a, b) {
		return ConflictContradictory
	}
	return ConflictMutuallyExclusive
}

func isPair(pairs map[pairKey]bool, a, b model.ResolvedIntent) bool {
	return pairs[pairKey{a.IntentCode(), b.IntentCode()}] || pairs[pairKey{b.IntentCode(), a.IntentCode()}]
}

// appliesToDifferentItems reports whether two or more distinct products are
// in play, in which case the "conflicting" intents can both proceed.
func appliesToDifferentItems(entities []model.Entity) bool {
	products := make(map[string]bool)
	for _, e := range entities {
		if e.Type == model.EntityProductSKU {
			products[strings.ToLower(e.Value)] = true
		}
	}
	return len(products) >= 2
}

func extractPreference(text string) string {
	lower := strings.ToLower(text)

	for _, p := range preferencePatterns {
		if m := p.FindStringSubmatch(lower); m != nil {
			if pref := preferenceFor(m[1]); pref != "" {
				return pref
			}
		}
	}

	if m := negationPattern.FindStringSubmatch(lower); m != nil {
		if pref := preferenceFor(m[1]); pref != "" {
			return pref
		}
	}
	return ""
}

func preferenceFor(word string) string {
	for pref, keywords := range preferenceKeywords {
		for _, kw := range keywords {
			if strings.Contains(kw, word) || strings.Contains(word, kw) {
				return pref
			}
		}
	}
	return ""
}

func applyPreference(intents []model.ResolvedIntent, preference string, a, b model.ResolvedIntent) ([]model.ResolvedIntent, bool) {
	name := preferenceIntentNames[preference]
	if name == "" {
		return nil, false
	}

	var preferred *model.ResolvedIntent
	for _, in := range []model.ResolvedIntent{a, b} {
		if strings.Contains(in.IntentCode(), name) {
			preferred = &in
			break
		}
	}
	if preferred == nil {
		return nil, false
	}

	removed := a.IntentCode()
	if preferred.IntentCode() == a.IntentCode() {
		removed = b.IntentCode()
	}
	return removeIntent(intents, removed), true
}

func canApproveBothForTier(a, b model.ResolvedIntent) bool {
	// Lenient tiers may keep return+exchange, but never truly contradictory
	// actions.
	return !isPair(strictlyContradictoryForTier, a, b)
}

func applyCustomerFavorable(intents []model.ResolvedIntent, a, b model.ResolvedIntent) []model.ResolvedIntent {
	scoreA := customerFavorablePriority[a.Intent]
	scoreB := customerFavorablePriority[b.Intent]

	removed := a.IntentCode()
	if scoreA >= scoreB {
		removed = b.IntentCode()
	}
	return removeIntent(intents, removed)
}

func applyPriorityRules(intents []model.ResolvedIntent, a, b model.ResolvedIntent) ([]model.ResolvedIntent, bool) {
	pa := intentPriority[a.IntentCode()]
	pb := intentPriority[b.IntentCode()]
	// Rank only breaks the tie when both intents are ranked and differ.
	if pa == 0 || pb == 0 || pa == pb {
		return nil, false
	}

	removed := a.IntentCode()
	if pa > pb {
		removed = b.IntentCode()
	}
	return removeIntent(intents, removed), true
}

func removeIntent(intents []model.ResolvedIntent, code string) []model.ResolvedIntent {
	kept := make([]model.ResolvedIntent, 0, len(intents))
	for _, in := range intents {
		if in.IntentCode() != code {
			kept = append(kept, in)
		}
	}
	return kept
}

func clarificationFor(a, b model.ResolvedIntent) (string, []string) {
	descA := describeIntent(a)
	descB := describeIntent(b)

	question := fmt.Sprintf(
		"I noticed you'd like to both %s and %s. These options are mutually exclusive for the same item. Which would you prefer?",
		descA, descB)
	options := []string{
		"I'd like to " + descA,
		"I'd like to " + descB,
		"I need help deciding",
	}
	return question, options
}

func describeIntent(in model.ResolvedIntent) string {
	if d, ok := intentDescriptions[in.Intent]; ok {
		return d
	}
	return strings.ToLower(strings.ReplaceAll(in.Intent, "_", " "))
}
