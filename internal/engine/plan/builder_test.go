package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/intentcore/server/internal/core/error"
	"github.com/intentcore/server/internal/engine/model"
)

func newTestBuilder() *Builder {
	return NewBuilder(NewStaticRegistry())
}

func stepByVerb(t *testing.T, p model.ActionPlan, verb string) model.ActionStep {
	t.Helper()
	for _, s := range p.Steps {
		if s.Verb == verb {
			return s
		}
	}
	t.Fatalf("no step with verb %s in plan %+v", verb, p.Steps)
	return model.ActionStep{}
}

func verbs(p model.ActionPlan) []string {
	out := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.Verb)
	}
	return out
}

func TestBuildStatusInquiry(t *testing.T) {
	p, err := newTestBuilder().Build(Input{
		Intents: []model.ResolvedIntent{model.NewResolvedIntent(model.IntentWISMO, 0.92)},
		Entities: []model.Entity{
			{Type: model.EntityOrderID, Value: "ORD-12345"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{VerbLookupOrder, VerbProvideStatus}, verbs(p))

	status := stepByVerb(t, p, VerbProvideStatus)
	lookup := stepByVerb(t, p, VerbLookupOrder)
	assert.Equal(t, []string{lookup.StepID}, status.DependsOn)
	assert.Equal(t, "ORD-12345", status.Params["order_id"])
	assert.Equal(t, VerbEscalateToHuman, lookup.Fallback)
}

func TestBuildReturnChain(t *testing.T) {
	p, err := newTestBuilder().Build(Input{
		Intents: []model.ResolvedIntent{model.NewResolvedIntent(model.IntentReturnInitiate, 0.9)},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{VerbLookupOrder, VerbInitiateReturn, VerbIssueReturnLabel}, verbs(p))

	ret := stepByVerb(t, p, VerbInitiateReturn)
	label := stepByVerb(t, p, VerbIssueReturnLabel)
	assert.Equal(t, []string{stepByVerb(t, p, VerbLookupOrder).StepID}, ret.DependsOn)
	assert.Equal(t, []string{ret.StepID}, label.DependsOn)
	assert.Equal(t, model.TargetFulfillment, label.Target)
}

func TestBuildExchangeChainWithRefundFallback(t *testing.T) {
	p, err := newTestBuilder().Build(Input{
		Intents: []model.ResolvedIntent{model.NewResolvedIntent(model.IntentExchangeRequest, 0.9)},
	})
	require.NoError(t, err)

	replacement := stepByVerb(t, p, VerbShipReplacement)
	inspect := stepByVerb(t, p, VerbInspectReturn)
	assert.Equal(t, []string{inspect.StepID}, replacement.DependsOn)
	assert.Equal(t, VerbProcessRefund, replacement.Fallback)
}

func TestBuildSharedLookupAcrossIntents(t *testing.T) {
	p, err := newTestBuilder().Build(Input{
		Intents: []model.ResolvedIntent{
			model.NewResolvedIntent(model.IntentWISMO, 0.9),
			model.NewResolvedIntent(model.IntentCancelOrder, 0.8),
		},
	})
	require.NoError(t, err)

	lookups := 0
	for _, v := range verbs(p) {
		if v == VerbLookupOrder {
			lookups++
		}
	}
	assert.Equal(t, 1, lookups, "both intents share one order lookup")
	require.NoError(t, p.Validate())
}

func TestBuildSketchDropsIntentAndSubstitutes(t *testing.T) {
	p, err := newTestBuilder().Build(Input{
		Intents: []model.ResolvedIntent{
			model.NewResolvedIntent(model.IntentReturnInitiate, 0.9),
			model.NewResolvedIntent(model.IntentWISMO, 0.85),
		},
		Sketches: []model.PlanSketch{{
			DroppedIntent:    model.IntentReturnInitiate,
			SubstituteAction: VerbExplainPolicy,
			Note:             "hard policy constraint blocked: window expired",
		}},
	})
	require.NoError(t, err)

	got := verbs(p)
	assert.NotContains(t, got, VerbInitiateReturn, "blocked intent contributes no steps")
	assert.Contains(t, got, VerbExplainPolicy)
	assert.Contains(t, got, VerbProvideStatus, "surviving intents still plan normally")
}

func TestBuildOfferAlternativeSubstitute(t *testing.T) {
	p, err := newTestBuilder().Build(Input{
		Intents: []model.ResolvedIntent{model.NewResolvedIntent(model.IntentWISMO, 0.9)},
		Sketches: []model.PlanSketch{{
			DroppedIntent:    model.IntentExchangeRequest,
			SubstituteAction: "offer_alternative_item",
		}},
	})
	require.NoError(t, err)

	check := stepByVerb(t, p, VerbCheckStock)
	notify := stepByVerb(t, p, VerbNotifyCustomer)
	assert.Equal(t, []string{check.StepID}, notify.DependsOn)
}

func TestBuildEscalationAfterTicket(t *testing.T) {
	p, err := newTestBuilder().Build(Input{
		Intents: []model.ResolvedIntent{model.NewResolvedIntent(model.IntentDamagedItem, 0.9)},
		Verdicts: &model.PolicyVerdicts{
			EscalationRequired: true,
			EscalationReasons:  []string{"customer has 3 complaints in 90 days (threshold 3)"},
		},
	})
	require.NoError(t, err)

	ticket := stepByVerb(t, p, VerbCreateTicket)
	escalate := stepByVerb(t, p, VerbEscalateToHuman)
	assert.Equal(t, []string{ticket.StepID}, escalate.DependsOn,
		"escalation always follows ticket creation")
	require.NoError(t, p.Validate())
}

func TestBuildAutoApprovedRefund(t *testing.T) {
	p, err := newTestBuilder().Build(Input{
		Intents:  []model.ResolvedIntent{model.NewResolvedIntent(model.IntentRefundStatus, 0.9)},
		Verdicts: &model.PolicyVerdicts{AutoApproveRefund: true},
	})
	require.NoError(t, err)

	refund := stepByVerb(t, p, VerbProcessRefund)
	lookup := stepByVerb(t, p, VerbLookupOrder)
	assert.Equal(t, []string{lookup.StepID}, refund.DependsOn)
	assert.Equal(t, VerbEscalateToHuman, refund.Fallback)
}

func TestBuildHumanHandoffIntent(t *testing.T) {
	p, err := newTestBuilder().Build(Input{
		Intents: []model.ResolvedIntent{model.NewResolvedIntent(model.IntentHumanHandoff, 0.95)},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{VerbEscalateToHuman}, verbs(p))
}

func TestBuildUnmappedIntentBecomesTicket(t *testing.T) {
	p, err := newTestBuilder().Build(Input{
		Intents: []model.ResolvedIntent{model.NewResolvedIntent("ACCOUNT_BILLING.INVOICE_COPY", 0.7)},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{VerbCreateTicket}, verbs(p))
}

func TestBuildEmptyIntents(t *testing.T) {
	p, err := newTestBuilder().Build(Input{})
	require.NoError(t, err)
	assert.Empty(t, p.Steps)
}

func TestResolveTargetUnknown(t *testing.T) {
	r := NewStaticRegistry()

	_, err := r.ResolveTarget(model.TargetCommerce, "launch_rocket")
	assert.ErrorIs(t, err, errx.ErrUnknownActionTarget)

	_, err = r.ResolveTarget("warehouse", VerbLookupOrder)
	assert.ErrorIs(t, err, errx.ErrUnknownActionTarget)
}

func TestResolveTargetKnown(t *testing.T) {
	r := NewStaticRegistry()

	h, err := r.ResolveTarget(model.TargetFulfillment, VerbIssueReturnLabel)
	require.NoError(t, err)
	assert.Equal(t, VerbIssueReturnLabel, h.Verb)
	assert.NotEmpty(t, h.Description)
}
