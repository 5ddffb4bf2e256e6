package plan

import (
	"fmt"

	errx "github.com/intentcore/server/internal/core/error"
	"github.com/intentcore/server/internal/engine/model"
)

// HandlerDescriptor describes a downstream handler for one (target, verb)
// pair. Execution itself belongs to the downstream system.
type HandlerDescriptor struct {
	Target      model.TargetSystem
	Verb        string
	Description string
}

// Registry resolves plan steps to downstream handlers. Every step the
// builder emits must resolve here before a plan is returned.
type Registry interface {
	ResolveTarget(target model.TargetSystem, verb string) (HandlerDescriptor, error)
}

type registryKey struct {
	target model.TargetSystem
	verb   string
}

// StaticRegistry is a closed, in-memory registry over the known handler
// set.
type StaticRegistry struct {
	handlers map[registryKey]HandlerDescriptor
}

// Verbs understood by the downstream systems.
const (
	VerbLookupOrder       = "lookup_order"
	VerbProvideStatus     = "provide_order_status"
	VerbCancelOrder       = "cancel_order"
	VerbUpdateAddress     = "update_shipping_address"
	VerbExpediteShipment  = "expedite_shipment"
	VerbDelayShipment     = "delay_shipment"
	VerbInitiateReturn    = "initiate_return"
	VerbIssueReturnLabel  = "issue_return_label"
	VerbInspectReturn     = "inspect_returned_item"
	VerbShipReplacement   = "ship_replacement"
	VerbCheckRefundStatus = "check_refund_status"
	VerbProcessRefund     = "process_refund"
	VerbCheckStock        = "check_stock"
	VerbCreateTicket      = "create_support_ticket"
	VerbEscalateToHuman   = "escalate_to_human"
	VerbExplainPolicy     = "explain_policy"
	VerbNotifyCustomer    = "notify_customer"
	VerbRequestClarify    = "request_clarification"
)

// NewStaticRegistry returns the default handler registry.
func NewStaticRegistry() *StaticRegistry {
	r := &StaticRegistry{handlers: make(map[registryKey]HandlerDescriptor)}

	register := func(target model.TargetSystem, verb, description string) {
		r.handlers[registryKey{target, verb}] = HandlerDescriptor{
			Target:      target,
			Verb:        verb,
			Description: description,
		}
	}

	register(model.TargetCommerce, VerbLookupOrder, "fetch order record")
	register(model.TargetCommerce, VerbCancelOrder, "cancel an open order")
	register(model.TargetCommerce, VerbUpdateAddress, "change the shipping address")
	register(model.TargetCommerce, VerbInitiateReturn, "open a return merchandise authorization")
	register(model.TargetCommerce, VerbCheckRefundStatus, "look up refund state")
	register(model.TargetCommerce, VerbProcessRefund, "refund to original payment method")
	register(model.TargetCommerce, VerbCheckStock, "check item availability")

	register(model.TargetFulfillment, VerbExpediteShipment, "upgrade shipping speed")
	register(model.TargetFulfillment, VerbDelayShipment, "hold shipment")
	register(model.TargetFulfillment, VerbIssueReturnLabel, "generate prepaid return label")
	register(model.TargetFulfillment, VerbInspectReturn, "inspect item on arrival")
	register(model.TargetFulfillment, VerbShipReplacement, "ship the replacement item")

	register(model.TargetSupport, VerbCreateTicket, "open a support ticket")
	register(model.TargetSupport, VerbEscalateToHuman, "route to a human agent")

	register(model.TargetNotification, VerbProvideStatus, "send order status to customer")
	register(model.TargetNotification, VerbExplainPolicy, "explain the applicable policy")
	register(model.TargetNotification, VerbNotifyCustomer, "send a customer notification")
	register(model.TargetNotification, VerbRequestClarify, "ask the customer a clarifying question")

	return r
}

// ResolveTarget returns the handler for a (target, verb) pair or
// ErrUnknownActionTarget.
func (r *StaticRegistry) ResolveTarget(target model.TargetSystem, verb string) (HandlerDescriptor, error) {
	h, ok := r.handlers[registryKey{target, verb}]
	if !ok {
		return HandlerDescriptor{}, fmt.Errorf("%w: %s/%s", errx.ErrUnknownActionTarget, target, verb)
	}
	return h, nil
}
