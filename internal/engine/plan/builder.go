package plan

import (
	"fmt"

	"github.com/intentcore/server/internal/engine/model"
	logx "github.com/intentcore/server/pkg/logger"
)

// Builder turns a resolved intent set into a validated action plan DAG.
// Lookups come before mutations, escalation follows ticket creation, and
// the whole plan is rejected on cycles or unresolvable targets.
type Builder struct {
	registry Registry
}

func NewBuilder(registry Registry) *Builder {
	return &Builder{registry: registry}
}

// Input is everything one plan build considers.
type Input struct {
	Intents      []model.ResolvedIntent
	Entities     []model.Entity
	Verdicts     *model.PolicyVerdicts
	Sketches     []model.PlanSketch
	DroppedCodes map[string]bool
}

// Build assembles one plan for the intent set. Intents named by a plan
// sketch's DroppedIntent are replaced with the sketch's substitute action.
func (b *Builder) Build(in Input) (model.ActionPlan, error) {
	s := &planAssembly{
		params:  paramsFromEntities(in.Entities),
		dropped: droppedIntents(in),
	}

	for _, intent := range in.Intents {
		code := intent.IntentCode()
		if s.dropped[code] {
			continue
		}
		b.appendIntentSteps(s, intent)
	}

	for _, sketch := range in.Sketches {
		if sketch.SubstituteAction == "" {
			continue
		}
		b.appendSubstitute(s, sketch)
	}

	if in.Verdicts != nil {
		b.appendPolicySteps(s, in.Verdicts)
	}

	plan := model.ActionPlan{Steps: s.steps}

	for _, step := range plan.Steps {
		if _, err := b.registry.ResolveTarget(step.Target, step.Verb); err != nil {
			return model.ActionPlan{}, err
		}
	}
	if err := plan.Validate(); err != nil {
		return model.ActionPlan{}, err
	}

	logx.Debug().Int("steps", len(plan.Steps)).Msg("Action plan built")
	return plan, nil
}

type planAssembly struct {
	steps    []model.ActionStep
	seq      int
	lookupID string
	ticketID string
	params   map[string]string
	dropped  map[string]bool
}

func (s *planAssembly) add(target model.TargetSystem, verb string, deps []string, fallback string) string {
	s.seq++
	id := fmt.Sprintf("%s_%d", verb, s.seq)
	s.steps = append(s.steps, model.ActionStep{
		StepID:    id,
		Verb:      verb,
		Target:    target,
		Params:    s.params,
		DependsOn: deps,
		Fallback:  fallback,
	})
	return id
}

// ensureLookup adds the shared order lookup step once.
func (s *planAssembly) ensureLookup() string {
	if s.lookupID == "" {
		s.lookupID = s.add(model.TargetCommerce, VerbLookupOrder, nil, VerbEscalateToHuman)
	}
	return s.lookupID
}

func (b *Builder) appendIntentSteps(s *planAssembly, intent model.ResolvedIntent) {
	switch intent.IntentCode() {
	case model.IntentWISMO, model.IntentDeliveryEstimate, model.IntentTrackingIssue:
		lookup := s.ensureLookup()
		s.add(model.TargetNotification, VerbProvideStatus, []string{lookup}, "")

	case model.IntentCancelOrder:
		lookup := s.ensureLookup()
		s.add(model.TargetCommerce, VerbCancelOrder, []string{lookup}, VerbEscalateToHuman)

	case model.IntentChangeAddress:
		lookup := s.ensureLookup()
		s.add(model.TargetCommerce, VerbUpdateAddress, []string{lookup}, VerbEscalateToHuman)

	case model.IntentExpedite:
		lookup := s.ensureLookup()
		s.add(model.TargetFulfillment, VerbExpediteShipment, []string{lookup}, VerbEscalateToHuman)

	case model.IntentDelayShipment:
		lookup := s.ensureLookup()
		s.add(model.TargetFulfillment, VerbDelayShipment, []string{lookup}, VerbEscalateToHuman)

	case model.IntentReturnInitiate:
		lookup := s.ensureLookup()
		ret := s.add(model.TargetCommerce, VerbInitiateReturn, []string{lookup}, VerbEscalateToHuman)
		s.add(model.TargetFulfillment, VerbIssueReturnLabel, []string{ret}, "")

	case model.IntentExchangeRequest:
		lookup := s.ensureLookup()
		label := s.add(model.TargetFulfillment, VerbIssueReturnLabel, []string{lookup}, VerbEscalateToHuman)
		inspect := s.add(model.TargetFulfillment, VerbInspectReturn, []string{label}, "")
		s.add(model.TargetFulfillment, VerbShipReplacement, []string{inspect}, VerbProcessRefund)

	case model.IntentRefundStatus:
		lookup := s.ensureLookup()
		check := s.add(model.TargetCommerce, VerbCheckRefundStatus, []string{lookup}, "")
		s.add(model.TargetNotification, VerbNotifyCustomer, []string{check}, "")

	case model.IntentDamagedItem, model.IntentWrongItem, model.IntentMissingItem:
		lookup := s.ensureLookup()
		s.ticketID = s.add(model.TargetSupport, VerbCreateTicket, []string{lookup}, "")

	case model.IntentStock:
		check := s.add(model.TargetCommerce, VerbCheckStock, nil, "")
		s.add(model.TargetNotification, VerbNotifyCustomer, []string{check}, "")

	case model.IntentHumanHandoff:
		s.add(model.TargetSupport, VerbEscalateToHuman, nil, "")

	default:
		// Unmapped intents become a ticket so no customer goal is silently
		// dropped.
		if s.ticketID == "" {
			s.ticketID = s.add(model.TargetSupport, VerbCreateTicket, nil, "")
		}
	}
}

func (b *Builder) appendSubstitute(s *planAssembly, sketch model.PlanSketch) {
	switch sketch.SubstituteAction {
	case VerbExplainPolicy:
		s.add(model.TargetNotification, VerbExplainPolicy, nil, "")
	case VerbEscalateToHuman:
		deps := []string{}
		if s.ticketID != "" {
			deps = append(deps, s.ticketID)
		}
		s.add(model.TargetSupport, VerbEscalateToHuman, deps, "")
	case "offer_alternative_item":
		check := s.add(model.TargetCommerce, VerbCheckStock, nil, "")
		s.add(model.TargetNotification, VerbNotifyCustomer, []string{check}, "")
	default:
		s.add(model.TargetSupport, VerbCreateTicket, nil, "")
	}
}

func (b *Builder) appendPolicySteps(s *planAssembly, verdicts *model.PolicyVerdicts) {
	if verdicts.AutoApproveRefund {
		lookup := s.ensureLookup()
		s.add(model.TargetCommerce, VerbProcessRefund, []string{lookup}, VerbEscalateToHuman)
	}
	if verdicts.EscalationRequired {
		if s.ticketID == "" {
			s.ticketID = s.add(model.TargetSupport, VerbCreateTicket, nil, "")
		}
		s.add(model.TargetSupport, VerbEscalateToHuman, []string{s.ticketID}, "")
	}
}

// paramsFromEntities flattens extracted entities into step params. Later
// entities of the same type win, matching extraction order.
func paramsFromEntities(entities []model.Entity) map[string]string {
	if len(entities) == 0 {
		return nil
	}
	params := make(map[string]string, len(entities))
	for _, e := range entities {
		params[string(e.Type)] = e.Value
	}
	return params
}

func droppedIntents(in Input) map[string]bool {
	dropped := make(map[string]bool, len(in.Sketches)+len(in.DroppedCodes))
	for code := range in.DroppedCodes {
		dropped[code] = true
	}
	for _, sketch := range in.Sketches {
		if sketch.DroppedIntent != "" {
			dropped[sketch.DroppedIntent] = true
		}
	}
	return dropped
}
