package reason

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/intentcore/server/internal/engine/model"
	logx "github.com/intentcore/server/pkg/logger"
)

// TenantPolicy is one tenant's business-rule configuration, loaded from a
// YAML file named after the tenant.
type TenantPolicy struct {
	TenantID     string            `yaml:"tenant_id"`
	ReturnPolicy ReturnPolicyRules `yaml:"return_policy"`
	AutoApproval AutoApprovalRules `yaml:"auto_approval"`
	Escalation   EscalationRules   `yaml:"escalation"`
	Priority     PriorityRules     `yaml:"priority_routing"`
}

type ReturnPolicyRules struct {
	DefaultWindowDays   int      `yaml:"default_window_days"`
	PremiumWindowDays   int      `yaml:"premium_window_days"`
	VIPWindowDays       int      `yaml:"vip_window_days"`
	FinalSaleCategories []string `yaml:"final_sale_categories"`
}

// WindowDaysFor returns the return window for a tier, widest for VIP.
func (r ReturnPolicyRules) WindowDaysFor(tier string) int {
	switch strings.ToLower(tier) {
	case model.TierVIP:
		return r.VIPWindowDays
	case model.TierPremium:
		return r.PremiumWindowDays
	default:
		return r.DefaultWindowDays
	}
}

type AutoApprovalRules struct {
	Enabled  bool         `yaml:"enabled"`
	Return   ApprovalRule `yaml:"return"`
	Refund   ApprovalRule `yaml:"refund"`
	Exchange ApprovalRule `yaml:"exchange"`
}

type ApprovalRule struct {
	MaxAmountStandard  float64  `yaml:"max_amount_standard"`
	MaxAmountPremium   float64  `yaml:"max_amount_premium"`
	MaxAmountVIP       float64  `yaml:"max_amount_vip"`
	MaxAmountAtRisk    float64  `yaml:"max_amount_at_risk"`
	ExcludedCategories []string `yaml:"excluded_categories"`
}

// MaxAmountFor returns the tier's auto-approval ceiling, falling back to the
// standard ceiling when the tier has none.
func (a ApprovalRule) MaxAmountFor(tier string) float64 {
	var amount float64
	switch strings.ToLower(tier) {
	case model.TierVIP:
		amount = a.MaxAmountVIP
	case model.TierPremium:
		amount = a.MaxAmountPremium
	case model.TierAtRisk:
		amount = a.MaxAmountAtRisk
	}
	if amount <= 0 {
		amount = a.MaxAmountStandard
	}
	return amount
}

type EscalationRules struct {
	ComplaintThreshold   int      `yaml:"complaint_threshold"`
	HighValueThreshold   float64  `yaml:"high_value_threshold"`
	FrustrationThreshold float64  `yaml:"frustration_threshold"`
	AutoEscalateKeywords []string `yaml:"auto_escalate_keywords"`
}

type PriorityRules struct {
	Enabled                 bool    `yaml:"enabled"`
	VIPPriority             bool    `yaml:"vip_priority"`
	FrustrationThreshold    float64 `yaml:"frustration_threshold"`
	HighValueOrderThreshold float64 `yaml:"high_value_order_threshold"`
}

// DefaultTenantPolicy is used when a tenant has no policy file.
func DefaultTenantPolicy() TenantPolicy {
	return TenantPolicy{
		TenantID: "default",
		ReturnPolicy: ReturnPolicyRules{
			DefaultWindowDays: 30,
			PremiumWindowDays: 45,
			VIPWindowDays:     60,
		},
		AutoApproval: AutoApprovalRules{
			Enabled:  true,
			Return:   ApprovalRule{MaxAmountStandard: 100, MaxAmountPremium: 200, MaxAmountVIP: 500},
			Refund:   ApprovalRule{MaxAmountStandard: 50, MaxAmountPremium: 100, MaxAmountVIP: 250},
			Exchange: ApprovalRule{MaxAmountStandard: 200, MaxAmountPremium: 300, MaxAmountVIP: 600},
		},
		Escalation: EscalationRules{
			ComplaintThreshold:   3,
			HighValueThreshold:   500,
			FrustrationThreshold: 0.7,
			AutoEscalateKeywords: []string{"lawyer", "attorney", "lawsuit", "chargeback", "bbb", "sue"},
		},
		Priority: PriorityRules{
			Enabled:                 true,
			VIPPriority:             true,
			FrustrationThreshold:    0.7,
			HighValueOrderThreshold: 300,
		},
	}
}

// PolicyEngine evaluates tenant business rules. Deterministic: verdicts are
// a pure function of policy, enrichment, intent and sentiment inputs.
type PolicyEngine struct {
	policies map[string]TenantPolicy
}

// NewPolicyEngine loads every *.yaml policy under dir. A missing or empty
// dir leaves only the built-in default policy.
func NewPolicyEngine(cfg model.PolicyConfig) (*PolicyEngine, error) {
	e := &PolicyEngine{policies: map[string]TenantPolicy{
		"default": DefaultTenantPolicy(),
	}}

	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			logx.Warn().Str("policy_dir", cfg.Dir).Msg("Policy directory missing, using default policy only")
			return e, nil
		}
		return nil, fmt.Errorf("read policy dir %s: %w", cfg.Dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(cfg.Dir, name))
		if err != nil {
			return nil, fmt.Errorf("read policy %s: %w", name, err)
		}

		policy := DefaultTenantPolicy()
		if err := yaml.Unmarshal(raw, &policy); err != nil {
			return nil, fmt.Errorf("parse policy %s: %w", name, err)
		}
		if policy.TenantID == "" {
			policy.TenantID = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		}

		e.policies[policy.TenantID] = policy
		logx.Info().Str("tenant_id", policy.TenantID).Msg("Loaded tenant policy")
	}

	return e, nil
}

// NewPolicyEngineFromPolicies builds an engine from in-memory policies.
func NewPolicyEngineFromPolicies(policies ...TenantPolicy) *PolicyEngine {
	e := &PolicyEngine{policies: map[string]TenantPolicy{
		"default": DefaultTenantPolicy(),
	}}
	for _, p := range policies {
		e.policies[p.TenantID] = p
	}
	return e
}

// Policy returns the tenant's policy, falling back to default.
func (e *PolicyEngine) Policy(tenantID string) TenantPolicy {
	if p, ok := e.policies[tenantID]; ok {
		return p
	}
	return e.policies["default"]
}

// PolicyInput is everything one evaluation considers.
type PolicyInput struct {
	TenantID         string
	IntentCode       string
	Enrichment       *model.EnrichmentContext
	FrustrationScore float64
	Text             string
	Now              time.Time
}

// Evaluate applies return-eligibility, auto-approval, escalation and
// priority rules for one intent.
func (e *PolicyEngine) Evaluate(in PolicyInput) *model.PolicyVerdicts {
	policy := e.Policy(in.TenantID)
	verdicts := &model.PolicyVerdicts{ReturnEligible: true}

	customer := customerOf(in.Enrichment)
	order := in.Enrichment.PrimaryOrder()
	tier := in.Enrichment.CustomerTier()
	_, intent := model.SplitIntentCode(in.IntentCode)

	if order != nil && model.CategoryOf(in.IntentCode) == model.CategoryReturnExchange {
		e.evaluateReturnEligibility(verdicts, policy, order, tier, in.Now)
		verdicts.RulesApplied = append(verdicts.RulesApplied, "return_eligibility")
	}

	if order != nil && customer != nil {
		e.evaluateAutoApproval(verdicts, policy, order, tier, intent)
		verdicts.RulesApplied = append(verdicts.RulesApplied, "auto_approval")
	}

	e.evaluateEscalation(verdicts, policy, customer, order, in.FrustrationScore, in.Text)
	verdicts.RulesApplied = append(verdicts.RulesApplied, "escalation")

	e.evaluatePriority(verdicts, policy, order, tier, in.FrustrationScore)
	verdicts.RulesApplied = append(verdicts.RulesApplied, "priority_routing")

	e.recommend(verdicts, intent)
	return verdicts
}

func customerOf(ec *model.EnrichmentContext) *model.CustomerProfile {
	if ec == nil {
		return nil
	}
	return ec.Customer
}

func (e *PolicyEngine) evaluateReturnEligibility(
	verdicts *model.PolicyVerdicts,
	policy TenantPolicy,
	order *model.OrderContext,
	tier string,
	now time.Time,
) {
	switch order.ReturnEligibility {
	case model.ReturnFinalSale:
		verdicts.ReturnEligible = false
		verdicts.ReturnIneligibleWhy = "Item is final sale and cannot be returned"
		return
	case model.ReturnExpired:
		verdicts.ReturnEligible = false
		verdicts.ReturnIneligibleWhy = "Return window has expired"
		return
	}

	if order.Cancelled {
		verdicts.ReturnEligible = false
		verdicts.ReturnIneligibleWhy = "Order has been cancelled"
		return
	}

	if !order.CreatedAt.IsZero() {
		windowDays := policy.ReturnPolicy.WindowDaysFor(tier)
		windowEnd := order.CreatedAt.AddDate(0, 0, windowDays)
		remaining := int(windowEnd.Sub(now).Hours() / 24)
		if remaining < 0 {
			verdicts.ReturnEligible = false
			verdicts.ReturnIneligibleWhy = "Return window has expired"
			return
		}
		verdicts.ReturnDaysRemaining = remaining
	}

	for _, item := range order.Items {
		if item.Category == "" {
			continue
		}
		for _, cat := range policy.ReturnPolicy.FinalSaleCategories {
			if strings.EqualFold(item.Category, cat) {
				verdicts.ReturnEligible = false
				verdicts.ReturnIneligibleWhy = fmt.Sprintf("Category %q is final sale", item.Category)
				return
			}
		}
	}

	verdicts.ReturnEligible = true
}

func (e *PolicyEngine) evaluateAutoApproval(
	verdicts *model.PolicyVerdicts,
	policy TenantPolicy,
	order *model.OrderContext,
	tier string,
	intent string,
) {
	if !policy.AutoApproval.Enabled {
		return
	}

	switch intent {
	case "RETURN_INITIATE":
		rule := policy.AutoApproval.Return
		if order.Total <= rule.MaxAmountFor(tier) && verdicts.ReturnEligible && !hasExcludedCategory(order, rule.ExcludedCategories) {
			verdicts.AutoApproveReturn = true
		}
	case "REFUND_STATUS":
		if order.Total <= policy.AutoApproval.Refund.MaxAmountFor(tier) {
			verdicts.AutoApproveRefund = true
		}
	case "EXCHANGE_REQUEST":
		if order.Total <= policy.AutoApproval.Exchange.MaxAmountFor(tier) && verdicts.ReturnEligible {
			verdicts.AutoApproveExchange = true
		}
	}
}

func hasExcludedCategory(order *model.OrderContext, excluded []string) bool {
	for _, item := range order.Items {
		for _, cat := range excluded {
			if strings.EqualFold(item.Category, cat) {
				return true
			}
		}
	}
	return false
}

func (e *PolicyEngine) evaluateEscalation(
	verdicts *model.PolicyVerdicts,
	policy TenantPolicy,
	customer *model.CustomerProfile,
	order *model.OrderContext,
	frustration float64,
	text string,
) {
	rules := policy.Escalation

	if customer != nil && customer.Complaints90d >= rules.ComplaintThreshold {
		verdicts.EscalationRequired = true
		verdicts.EscalationReasons = append(verdicts.EscalationReasons,
			fmt.Sprintf("customer has %d complaints in 90 days (threshold %d)",
				customer.Complaints90d, rules.ComplaintThreshold))
	}

	if order != nil && order.Total >= rules.HighValueThreshold {
		verdicts.EscalationRequired = true
		verdicts.EscalationReasons = append(verdicts.EscalationReasons,
			fmt.Sprintf("high-value order: $%.2f (threshold $%.2f)", order.Total, rules.HighValueThreshold))
	}

	if frustration >= rules.FrustrationThreshold {
		verdicts.EscalationRequired = true
		verdicts.EscalationReasons = append(verdicts.EscalationReasons,
			fmt.Sprintf("high frustration score: %.2f (threshold %.2f)", frustration, rules.FrustrationThreshold))
	}

	lower := strings.ToLower(text)
	for _, kw := range rules.AutoEscalateKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			verdicts.EscalationRequired = true
			verdicts.EscalationReasons = append(verdicts.EscalationReasons,
				fmt.Sprintf("escalation keyword %q present", kw))
			break
		}
	}
}

func (e *PolicyEngine) evaluatePriority(
	verdicts *model.PolicyVerdicts,
	policy TenantPolicy,
	order *model.OrderContext,
	tier string,
	frustration float64,
) {
	rules := policy.Priority
	if !rules.Enabled {
		return
	}

	if rules.VIPPriority && strings.EqualFold(tier, model.TierVIP) {
		verdicts.PriorityFlag = true
		verdicts.PriorityReasons = append(verdicts.PriorityReasons, "VIP customer")
	}

	if frustration >= rules.FrustrationThreshold {
		verdicts.PriorityFlag = true
		verdicts.PriorityReasons = append(verdicts.PriorityReasons,
			fmt.Sprintf("high frustration (%.2f)", frustration))
	}

	if order != nil && order.Total >= rules.HighValueOrderThreshold {
		verdicts.PriorityFlag = true
		verdicts.PriorityReasons = append(verdicts.PriorityReasons,
			fmt.Sprintf("high-value order ($%.2f)", order.Total))
	}
}

func (e *PolicyEngine) recommend(verdicts *model.PolicyVerdicts, intent string) {
	switch {
	case verdicts.AutoApproveReturn:
		verdicts.RecommendedAction = "auto_approve_return"
	case verdicts.AutoApproveRefund:
		verdicts.RecommendedAction = "auto_approve_refund"
	case verdicts.AutoApproveExchange:
		verdicts.RecommendedAction = "auto_approve_exchange"
	case verdicts.EscalationRequired:
		verdicts.RecommendedAction = "escalate_to_supervisor"
	case !verdicts.ReturnEligible && intent == "RETURN_INITIATE":
		verdicts.RecommendedAction = "explain_policy"
	default:
		verdicts.RecommendedAction = "agent_review"
	}
}
