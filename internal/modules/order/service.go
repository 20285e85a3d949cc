// README: Order lifecycle engine. Every intent passes through the same guarded
// transition: read, validate against the table, conditional write, notify.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medrush/internal/metrics"
	"medrush/internal/notify"
	"medrush/internal/types"
)

var (
	ErrInvalidTransition  = errors.New("intent not legal from current status")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrAlreadyClaimed     = errors.New("order already claimed")
	ErrContention         = errors.New("order state conflict")
	ErrNotFound           = errors.New("order not found")
	ErrBadRequest         = errors.New("bad request")
)

// RiderDirectory is the read-only view of riders the engine needs: only
// active riders may claim or be assigned orders.
type RiderDirectory interface {
	IsActive(ctx context.Context, id types.ID) (bool, error)
}

const defaultMaxRetries = 3

type Service struct {
	store      Store
	riders     RiderDirectory
	notifier   notify.Notifier
	log        *zap.Logger
	maxRetries int
}

func NewService(store Store, riders RiderDirectory, notifier notify.Notifier, log *zap.Logger) *Service {
	return &Service{
		store:      store,
		riders:     riders,
		notifier:   notifier,
		log:        log,
		maxRetries: defaultMaxRetries,
	}
}

// WithMaxRetries overrides the conditional-write retry bound.
func (s *Service) WithMaxRetries(n int) *Service {
	if n > 0 {
		s.maxRetries = n
	}
	return s
}

type CreateCommand struct {
	CustomerID    types.ID
	LineItems     []LineItem
	PaymentMethod string
}

type ConfirmCommand struct {
	OrderID types.ID
	Actor   Actor
}

type RejectCommand struct {
	OrderID types.ID
	Actor   Actor
}

type PrepareCommand struct {
	OrderID types.ID
	Actor   Actor
}

type MarkReadyCommand struct {
	OrderID types.ID
	Actor   Actor
}

type AssignRiderCommand struct {
	OrderID types.ID
	RiderID types.ID
	Actor   Actor
}

type ClaimCommand struct {
	OrderID types.ID
	RiderID types.ID
}

type PickupCommand struct {
	OrderID types.ID
	RiderID types.ID
}

type DeliverCommand struct {
	OrderID  types.ID
	RiderID  types.ID
	PhotoRef string
}

type ConfirmDeliveryCommand struct {
	OrderID types.ID
	Actor   Actor
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.CustomerID == "" || len(cmd.LineItems) == 0 {
		return nil, ErrBadRequest
	}
	var total int64
	for _, it := range cmd.LineItems {
		if it.MedicationID == "" || it.Quantity <= 0 || it.UnitPrice < 0 {
			return nil, ErrBadRequest
		}
		total += int64(it.Quantity) * it.UnitPrice
	}

	now := time.Now().UTC()
	o := &Order{
		ID:            types.ID(uuid.NewString()),
		CustomerID:    cmd.CustomerID,
		Status:        StatusPending,
		StatusVersion: 0,
		LineItems:     cmd.LineItems,
		Total:         types.Money{Amount: total, Currency: "PHP"},
		PaymentMethod: cmd.PaymentMethod,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, o.ID, "", StatusPending, "", Actor{Role: RoleCustomer, ID: cmd.CustomerID})
	return o, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Order, error) {
	return s.store.List(ctx, f)
}

// ListClaimable returns orders in ready status with no rider attached.
func (s *Service) ListClaimable(ctx context.Context) ([]*Order, error) {
	return s.store.ListClaimable(ctx)
}

func (s *Service) Confirm(ctx context.Context, cmd ConfirmCommand) (*Order, error) {
	return s.transition(ctx, cmd.OrderID, intentRequest{
		intent: IntentConfirm,
		actor:  cmd.Actor,
	})
}

func (s *Service) Reject(ctx context.Context, cmd RejectCommand) (*Order, error) {
	return s.transition(ctx, cmd.OrderID, intentRequest{
		intent: IntentReject,
		actor:  cmd.Actor,
	})
}

func (s *Service) Prepare(ctx context.Context, cmd PrepareCommand) (*Order, error) {
	return s.transition(ctx, cmd.OrderID, intentRequest{
		intent: IntentPrepare,
		actor:  cmd.Actor,
	})
}

func (s *Service) MarkReady(ctx context.Context, cmd MarkReadyCommand) (*Order, error) {
	return s.transition(ctx, cmd.OrderID, intentRequest{
		intent: IntentMarkReady,
		actor:  cmd.Actor,
	})
}

func (s *Service) AssignRider(ctx context.Context, cmd AssignRiderCommand) (*Order, error) {
	rid := cmd.RiderID
	return s.transition(ctx, cmd.OrderID, intentRequest{
		intent:  IntentAssignRider,
		actor:   cmd.Actor,
		riderID: &rid,
	})
}

func (s *Service) Claim(ctx context.Context, cmd ClaimCommand) (*Order, error) {
	rid := cmd.RiderID
	o, err := s.transition(ctx, cmd.OrderID, intentRequest{
		intent:  IntentClaim,
		actor:   Actor{Role: RoleRider, ID: cmd.RiderID},
		riderID: &rid,
	})
	if err == nil {
		metrics.ClaimsWonTotal.Inc()
	} else if errors.Is(err, ErrAlreadyClaimed) {
		metrics.ClaimsLostTotal.Inc()
	}
	return o, err
}

func (s *Service) ConfirmPickup(ctx context.Context, cmd PickupCommand) (*Order, error) {
	return s.transition(ctx, cmd.OrderID, intentRequest{
		intent: IntentPickup,
		actor:  Actor{Role: RoleRider, ID: cmd.RiderID},
	})
}

func (s *Service) Deliver(ctx context.Context, cmd DeliverCommand) (*Order, error) {
	photo := cmd.PhotoRef
	return s.transition(ctx, cmd.OrderID, intentRequest{
		intent:   IntentDeliver,
		actor:    Actor{Role: RoleRider, ID: cmd.RiderID},
		photoRef: &photo,
	})
}

func (s *Service) ConfirmDelivery(ctx context.Context, cmd ConfirmDeliveryCommand) (*Order, error) {
	return s.transition(ctx, cmd.OrderID, intentRequest{
		intent: IntentConfirmDelivery,
		actor:  cmd.Actor,
	})
}

type intentRequest struct {
	intent   Intent
	actor    Actor
	riderID  *types.ID
	photoRef *string
}

// transition is the single gate all intents pass through. It loads the
// current persisted status, validates the (status, intent) pair and the
// intent preconditions, then commits via a conditional write. A stale write
// triggers a bounded re-read-and-retry; a genuinely lost claim is terminal.
func (s *Service) transition(ctx context.Context, orderID types.ID, req intentRequest) (*Order, error) {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		o, err := s.store.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}

		// Duplicate retry of an already-applied intent is a no-op success.
		if target, ok := intentTarget[req.intent]; ok && o.Status == target {
			if req.riderID != nil && (o.RiderID == nil || *o.RiderID != *req.riderID) {
				return nil, ErrAlreadyClaimed
			}
			return o, nil
		}

		r, ok := transitions[o.Status][req.intent]
		if !ok {
			if req.intent == IntentClaim && o.RiderID != nil {
				return nil, ErrAlreadyClaimed
			}
			metrics.InvalidTransitionsTotal.WithLabelValues(string(req.intent)).Inc()
			return nil, ErrInvalidTransition
		}
		if !r.allows(req.actor.Role) {
			return nil, ErrPreconditionFailed
		}
		if err := s.checkPreconditions(ctx, o, req); err != nil {
			return nil, err
		}

		applied, err := s.store.ApplyTransition(ctx, o.ID, Change{
			From:        o.Status,
			FromVersion: o.StatusVersion,
			To:          r.next,
			RiderID:     req.riderID,
			PhotoRef:    req.photoRef,
		})
		if err != nil {
			return nil, err
		}
		if !applied {
			// Lost the write; re-read and re-validate from scratch.
			metrics.ContentionRetriesTotal.Inc()
			continue
		}

		metrics.TransitionsTotal.WithLabelValues(string(req.intent)).Inc()
		updated, err := s.store.Get(ctx, orderID)
		if err != nil {
			// The write committed; fall back to what we know.
			updated = o
			updated.Status = r.next
		}
		s.appendEvent(ctx, o.ID, o.Status, r.next, req.intent, req.actor)
		s.dispatch(notificationsFor(req.intent, updated))
		return updated, nil
	}
	return nil, ErrContention
}

func (s *Service) checkPreconditions(ctx context.Context, o *Order, req intentRequest) error {
	switch req.intent {
	case IntentAssignRider, IntentClaim:
		if o.RiderID != nil {
			return ErrAlreadyClaimed
		}
		if req.riderID == nil || *req.riderID == "" {
			return ErrPreconditionFailed
		}
		active, err := s.riders.IsActive(ctx, *req.riderID)
		if err != nil {
			return err
		}
		if !active {
			return ErrPreconditionFailed
		}
	case IntentPickup, IntentDeliver:
		if o.RiderID == nil || *o.RiderID != req.actor.ID {
			return ErrPreconditionFailed
		}
		if req.intent == IntentDeliver && (req.photoRef == nil || *req.photoRef == "") {
			return ErrPreconditionFailed
		}
	}
	return nil
}

func (s *Service) appendEvent(ctx context.Context, orderID types.ID, from, to Status, intent Intent, actor Actor) {
	var actorID *types.ID
	if actor.ID != "" {
		id := actor.ID
		actorID = &id
	}
	// Audit trail is best-effort; the transition has already committed.
	if err := s.store.AppendEvent(ctx, &Event{
		OrderID:   orderID,
		From:      from,
		To:        to,
		Intent:    intent,
		ActorRole: actor.Role,
		ActorID:   actorID,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		s.log.Warn("append status event", zap.String("order_id", string(orderID)), zap.Error(err))
	}
}

// dispatch fires notifications without blocking or failing the caller. The
// mutation has committed; a slow or failing channel must not undo it.
func (s *Service) dispatch(ns []notify.Notification) {
	if s.notifier == nil || len(ns) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, n := range ns {
			if err := s.notifier.Notify(ctx, n); err != nil {
				s.log.Warn("notification failed",
					zap.String("order_id", string(n.OrderID)),
					zap.String("kind", n.Kind),
					zap.Error(err),
				)
			}
		}
	}()
}

func notificationsFor(intent Intent, o *Order) []notify.Notification {
	to := func(aud notify.Audience, kind string) notify.Notification {
		n := notify.Notification{Audience: aud, OrderID: o.ID, Kind: kind}
		if aud == notify.AudienceRider && o.RiderID != nil {
			n.Payload = map[string]any{"riderId": string(*o.RiderID)}
		}
		return n
	}
	switch intent {
	case IntentConfirm:
		return []notify.Notification{to(notify.AudienceCustomer, notify.EventOrderConfirmed)}
	case IntentReject:
		return []notify.Notification{to(notify.AudienceCustomer, notify.EventOrderRejected)}
	case IntentPrepare:
		return []notify.Notification{to(notify.AudienceCustomer, notify.EventOrderPreparing)}
	case IntentMarkReady:
		return []notify.Notification{to(notify.AudienceCustomer, notify.EventOrderReady)}
	case IntentAssignRider, IntentClaim:
		return []notify.Notification{
			to(notify.AudienceCustomer, notify.EventRiderAssigned),
			to(notify.AudienceRider, notify.EventRiderAssigned),
		}
	case IntentPickup:
		return []notify.Notification{to(notify.AudienceCustomer, notify.EventOrderPickedUp)}
	case IntentDeliver:
		return []notify.Notification{to(notify.AudienceAdmin, notify.EventProofSubmitted)}
	case IntentConfirmDelivery:
		return []notify.Notification{
			to(notify.AudienceCustomer, notify.EventDeliveryConfirmed),
			to(notify.AudienceRider, notify.EventDeliveryConfirmed),
		}
	}
	return nil
}
