package model

import "time"

// CustomerTier values used by policy and conflict rules.
const (
	TierStandard = "standard"
	TierPremium  = "premium"
	TierVIP      = "vip"
	TierAtRisk   = "at_risk"
)

// ReturnEligibility is the enrichment source's view of an order's
// returnability.
type ReturnEligibility string

const (
	ReturnEligible     ReturnEligibility = "eligible"
	ReturnExpired      ReturnEligibility = "expired"
	ReturnFinalSale    ReturnEligibility = "final_sale"
	ReturnUnknownState ReturnEligibility = "unknown"
)

// CustomerProfile is customer data from the enrichment collaborator.
type CustomerProfile struct {
	CustomerID    string  `json:"customer_id"`
	Tier          string  `json:"tier"`
	LifetimeValue float64 `json:"lifetime_value,omitempty"`
	Complaints90d int     `json:"complaints_90d"`
}

// OrderItem is a single line item on an order.
type OrderItem struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name,omitempty"`
	Category string  `json:"category,omitempty"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	InStock  bool    `json:"in_stock"`
}

// OrderContext is order data from the enrichment collaborator.
type OrderContext struct {
	OrderID           string            `json:"order_id"`
	Status            string            `json:"status"`
	Total             float64           `json:"total"`
	CreatedAt         time.Time         `json:"created_at"`
	Items             []OrderItem       `json:"items,omitempty"`
	ReturnEligibility ReturnEligibility `json:"return_eligibility"`
	Cancelled         bool              `json:"cancelled"`
}

// EnrichmentContext carries external customer/order/product data for one
// run. A nil context means enrichment was unavailable and dependent
// constraints degrade to violable.
type EnrichmentContext struct {
	Customer *CustomerProfile `json:"customer,omitempty"`
	Orders   []OrderContext   `json:"orders,omitempty"`
}

// PrimaryOrder returns the first order in the context, or nil.
func (c *EnrichmentContext) PrimaryOrder() *OrderContext {
	if c == nil || len(c.Orders) == 0 {
		return nil
	}
	return &c.Orders[0]
}

// CustomerTier returns the customer's tier, defaulting to standard.
func (c *EnrichmentContext) CustomerTier() string {
	if c == nil || c.Customer == nil || c.Customer.Tier == "" {
		return TierStandard
	}
	return c.Customer.Tier
}

// PolicyVerdicts is the deterministic output of the policy engine for one
// intent. Consumed by the constraint solver as hard constraints and by the
// handoff logic; never depends on the reasoning service.
type PolicyVerdicts struct {
	ReturnEligible       bool     `json:"return_eligible"`
	ReturnIneligibleWhy  string   `json:"return_ineligible_why,omitempty"`
	ReturnDaysRemaining  int      `json:"return_days_remaining,omitempty"`
	AutoApproveReturn    bool     `json:"auto_approve_return"`
	AutoApproveRefund    bool     `json:"auto_approve_refund"`
	AutoApproveExchange  bool     `json:"auto_approve_exchange"`
	EscalationRequired   bool     `json:"escalation_required"`
	EscalationReasons    []string `json:"escalation_reasons,omitempty"`
	PriorityFlag         bool     `json:"priority_flag"`
	PriorityReasons      []string `json:"priority_reasons,omitempty"`
	RecommendedAction    string   `json:"recommended_action,omitempty"`
	RulesApplied         []string `json:"rules_applied,omitempty"`
}
