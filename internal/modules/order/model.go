// README: Order aggregate, status set, and the allowed-transition table.
package order

import (
	"time"

	"medrush/internal/types"
)

type Status string

// Status values are part of the wire contract shared with the apps and the
// notification consumers. Do not rename.
const (
	StatusPending             Status = "pending"
	StatusConfirmed           Status = "confirmed"
	StatusPreparing           Status = "preparing"
	StatusReady               Status = "ready"
	StatusRiderReceived       Status = "rider_received"
	StatusOutForDelivery      Status = "out_for_delivery"
	StatusPendingConfirmation Status = "pending_confirmation"
	StatusDelivered           Status = "delivered"
	StatusCancelled           Status = "cancelled"
)

type Intent string

const (
	IntentConfirm         Intent = "confirm"
	IntentReject          Intent = "reject"
	IntentPrepare         Intent = "prepare"
	IntentMarkReady       Intent = "mark_ready"
	IntentAssignRider     Intent = "assign_rider"
	IntentClaim           Intent = "claim"
	IntentPickup          Intent = "pickup"
	IntentDeliver         Intent = "deliver"
	IntentConfirmDelivery Intent = "confirm_delivery"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleRider    Role = "rider"
	RoleSystem   Role = "system"
)

// Actor identifies who is issuing an intent. The engine branches on Role only
// where the transition table requires it.
type Actor struct {
	Role Role
	ID   types.ID
}

type LineItem struct {
	MedicationID types.ID `json:"medicationId"`
	Quantity     int      `json:"quantity"`
	UnitPrice    int64    `json:"unitPrice"`
}

type Order struct {
	ID               types.ID    `json:"id"`
	CustomerID       types.ID    `json:"customerId"`
	Status           Status      `json:"status"`
	StatusVersion    int         `json:"-"`
	RiderID          *types.ID   `json:"riderId,omitempty"`
	DeliveryPhotoRef *string     `json:"deliveryPhotoRef,omitempty"`
	Archived         bool        `json:"archived"`
	LineItems        []LineItem  `json:"lineItems"`
	Total            types.Money `json:"total"`
	PaymentMethod    string      `json:"paymentMethod"`

	// Timestamps are write-once: set when the order first enters the state,
	// never overwritten. Field names are part of the wire contract.
	CreatedAt       time.Time  `json:"createdAt"`
	ConfirmedAt     *time.Time `json:"confirmedAt,omitempty"`
	PreparingAt     *time.Time `json:"preparingAt,omitempty"`
	ReadyAt         *time.Time `json:"readyAt,omitempty"`
	RiderReceivedAt *time.Time `json:"riderReceivedAt,omitempty"`
	DeliveredAt     *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt     *time.Time `json:"cancelledAt,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type Event struct {
	ID        int64
	OrderID   types.ID
	From      Status
	To        Status
	Intent    Intent
	ActorRole Role
	ActorID   *types.ID
	CreatedAt time.Time
}

type rule struct {
	next  Status
	roles []Role
}

func (r rule) allows(role Role) bool {
	for _, allowed := range r.roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// transitions is the authoritative (current status, intent) -> next status
// table. An absent pair is an invalid transition.
var transitions = map[Status]map[Intent]rule{
	StatusPending: {
		IntentConfirm: {next: StatusConfirmed, roles: []Role{RoleAdmin}},
		IntentReject:  {next: StatusCancelled, roles: []Role{RoleAdmin}},
	},
	StatusConfirmed: {
		IntentPrepare: {next: StatusPreparing, roles: []Role{RoleAdmin}},
	},
	StatusPreparing: {
		IntentMarkReady: {next: StatusReady, roles: []Role{RoleAdmin}},
	},
	StatusReady: {
		IntentAssignRider: {next: StatusRiderReceived, roles: []Role{RoleAdmin}},
		IntentClaim:       {next: StatusRiderReceived, roles: []Role{RoleRider}},
	},
	StatusRiderReceived: {
		IntentPickup: {next: StatusOutForDelivery, roles: []Role{RoleRider}},
	},
	StatusOutForDelivery: {
		IntentDeliver: {next: StatusPendingConfirmation, roles: []Role{RoleRider}},
	},
	StatusPendingConfirmation: {
		IntentConfirmDelivery: {next: StatusDelivered, roles: []Role{RoleAdmin, RoleSystem}},
	},
}

// intentTarget maps each intent to the status it produces, used to treat
// duplicate client retries as no-op successes.
var intentTarget = map[Intent]Status{
	IntentConfirm:         StatusConfirmed,
	IntentReject:          StatusCancelled,
	IntentPrepare:         StatusPreparing,
	IntentMarkReady:       StatusReady,
	IntentAssignRider:     StatusRiderReceived,
	IntentClaim:           StatusRiderReceived,
	IntentPickup:          StatusOutForDelivery,
	IntentDeliver:         StatusPendingConfirmation,
	IntentConfirmDelivery: StatusDelivered,
}

// CanTransition reports whether intent is legal from the given status.
func CanTransition(from Status, intent Intent) bool {
	rules, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = rules[intent]
	return ok
}
