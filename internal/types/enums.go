package types

// SubscriptionStatus is the local lifecycle state of a mirrored subscription.
// Values are persisted verbatim and shared with the legacy back office.
type SubscriptionStatus string

const (
	SubStatusActive     SubscriptionStatus = "ativa"
	SubStatusCancelled  SubscriptionStatus = "cancelada"
	SubStatusSuspended  SubscriptionStatus = "suspensa"
	SubStatusProcessing SubscriptionStatus = "processando"
)

// Valid reports whether s is one of the known statuses.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubStatusActive, SubStatusCancelled, SubStatusSuspended, SubStatusProcessing:
		return true
	default:
		return false
	}
}

// allowedTransitions lists the status edges the reconciler may apply.
// cancelada has no outgoing edges.
var allowedTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	SubStatusProcessing: {SubStatusActive, SubStatusCancelled},
	SubStatusSuspended:  {SubStatusActive, SubStatusCancelled},
	SubStatusActive:     {SubStatusCancelled},
}

// CanTransition reports whether a subscription may move from one status to another.
func CanTransition(from, to SubscriptionStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentMethod identifies how a subscription was paid.
type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "cartao"
)

// Recurrence tags an upsell line as charged once or every month.
type Recurrence string

const (
	RecurrenceOneTime   Recurrence = "onetime"
	RecurrenceRecurring Recurrence = "recurring"
)

// GatewayEvent is the event name carried by a provider webhook.
type GatewayEvent string

const (
	EventOrderPaid      GatewayEvent = "order.paid"
	EventOrderCancelled GatewayEvent = "order.cancelled"
)
