// README: Notification sink contract. Delivery is fire-and-forget; failures never
// roll back the transition that triggered them.
package notify

import (
	"context"

	"medrush/internal/types"
)

type Audience string

const (
	AudienceCustomer Audience = "customer"
	AudienceAdmin    Audience = "admin"
	AudienceRider    Audience = "rider"
)

// Event kinds are part of the wire contract consumed by the apps.
const (
	EventOrderConfirmed    = "order_confirmed"
	EventOrderRejected     = "order_rejected"
	EventOrderPreparing    = "order_preparing"
	EventOrderReady        = "order_ready"
	EventRiderAssigned     = "rider_assigned"
	EventOrderPickedUp     = "order_picked_up"
	EventProofSubmitted    = "delivery_proof_submitted"
	EventDeliveryConfirmed = "delivery_confirmed"
)

type Notification struct {
	Audience Audience       `json:"audience"`
	OrderID  types.ID       `json:"order_id"`
	Kind     string         `json:"kind"`
	Payload  map[string]any `json:"payload,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
