// README: Lifecycle engine tests (flow + invalid intents + invariants).
package order

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"medrush/internal/notify"
	"medrush/internal/types"
)

// TestCanTransition verifies the transition table without any store.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from   Status
		intent Intent
		want   bool
	}{
		// happy-path forward transitions
		{StatusPending, IntentConfirm, true},
		{StatusConfirmed, IntentPrepare, true},
		{StatusPreparing, IntentMarkReady, true},
		{StatusReady, IntentAssignRider, true},
		{StatusReady, IntentClaim, true},
		{StatusRiderReceived, IntentPickup, true},
		{StatusOutForDelivery, IntentDeliver, true},
		{StatusPendingConfirmation, IntentConfirmDelivery, true},
		// reject only from pending
		{StatusPending, IntentReject, true},
		{StatusConfirmed, IntentReject, false},
		{StatusReady, IntentReject, false},
		// invalid: skipping states
		{StatusPending, IntentPrepare, false},
		{StatusPending, IntentClaim, false},
		{StatusConfirmed, IntentMarkReady, false},
		{StatusPreparing, IntentClaim, false},
		{StatusReady, IntentDeliver, false},
		{StatusRiderReceived, IntentDeliver, false},
		// invalid: terminal states have no outgoing transitions
		{StatusDelivered, IntentConfirm, false},
		{StatusCancelled, IntentConfirm, false},
		// invalid: no going back
		{StatusOutForDelivery, IntentPickup, false},
		{StatusDelivered, IntentDeliver, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.intent)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.intent, got, tc.want)
		}
	}
}

type staticRiders map[types.ID]bool

func (s staticRiders) IsActive(_ context.Context, id types.ID) (bool, error) {
	return s[id], nil
}

type recordingNotifier struct {
	ch chan notify.Notification
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan notify.Notification, 64)}
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.ch <- n
	return nil
}

func (r *recordingNotifier) wait(t *testing.T, kind string, aud notify.Audience) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-r.ch:
			if n.Kind == kind && n.Audience == aud {
				return
			}
		case <-deadline:
			t.Fatalf("notification %s to %s never arrived", kind, aud)
		}
	}
}

func newTestService(t *testing.T) (*Service, *MemStore, *recordingNotifier) {
	t.Helper()
	store := NewMemStore()
	notifier := newRecordingNotifier()
	riders := staticRiders{"r1": true, "r2": true, "r_inactive": false}
	svc := NewService(store, riders, notifier, zap.NewNop())
	return svc, store, notifier
}

var admin = Actor{Role: RoleAdmin, ID: "a1"}

func mustCreateOrder(t *testing.T, svc *Service) types.ID {
	t.Helper()
	o, err := svc.Create(context.Background(), CreateCommand{
		CustomerID: "c1",
		LineItems: []LineItem{
			{MedicationID: "med-paracetamol", Quantity: 2, UnitPrice: 1500},
			{MedicationID: "med-cetirizine", Quantity: 1, UnitPrice: 2200},
		},
		PaymentMethod: "cod",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if o.Status != StatusPending {
		t.Fatalf("new order status = %s, want pending", o.Status)
	}
	if o.Total.Amount != 2*1500+2200 {
		t.Fatalf("total = %d, want %d", o.Total.Amount, 2*1500+2200)
	}
	return o.ID
}

func assertStatus(t *testing.T, svc *Service, id types.ID, want Status) {
	t.Helper()
	o, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if o.Status != want {
		t.Fatalf("status = %s, want %s", o.Status, want)
	}
}

func TestOrderFlowHappyPath(t *testing.T) {
	svc, _, notifier := newTestService(t)
	ctx := context.Background()
	id := mustCreateOrder(t, svc)

	o, err := svc.Confirm(ctx, ConfirmCommand{OrderID: id, Actor: admin})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if o.Status != StatusConfirmed || o.ConfirmedAt == nil {
		t.Fatalf("confirm: status=%s confirmedAt=%v", o.Status, o.ConfirmedAt)
	}
	notifier.wait(t, notify.EventOrderConfirmed, notify.AudienceCustomer)

	if _, err := svc.Prepare(ctx, PrepareCommand{OrderID: id, Actor: admin}); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := svc.MarkReady(ctx, MarkReadyCommand{OrderID: id, Actor: admin}); err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	assertStatus(t, svc, id, StatusReady)

	o, err = svc.Claim(ctx, ClaimCommand{OrderID: id, RiderID: "r1"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if o.RiderID == nil || *o.RiderID != "r1" {
		t.Fatalf("riderId = %v, want r1", o.RiderID)
	}
	if o.Status != StatusRiderReceived || o.RiderReceivedAt == nil {
		t.Fatalf("claim: status=%s riderReceivedAt=%v", o.Status, o.RiderReceivedAt)
	}
	notifier.wait(t, notify.EventRiderAssigned, notify.AudienceRider)

	if _, err := svc.ConfirmPickup(ctx, PickupCommand{OrderID: id, RiderID: "r1"}); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	assertStatus(t, svc, id, StatusOutForDelivery)

	o, err = svc.Deliver(ctx, DeliverCommand{OrderID: id, RiderID: "r1", PhotoRef: "proof123"})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if o.Status != StatusPendingConfirmation {
		t.Fatalf("deliver: status=%s", o.Status)
	}
	if o.DeliveryPhotoRef == nil || *o.DeliveryPhotoRef != "proof123" {
		t.Fatalf("deliveryPhotoRef = %v, want proof123", o.DeliveryPhotoRef)
	}
	notifier.wait(t, notify.EventProofSubmitted, notify.AudienceAdmin)

	o, err = svc.ConfirmDelivery(ctx, ConfirmDeliveryCommand{OrderID: id, Actor: admin})
	if err != nil {
		t.Fatalf("confirm delivery: %v", err)
	}
	if o.Status != StatusDelivered || o.DeliveredAt == nil {
		t.Fatalf("confirm delivery: status=%s deliveredAt=%v", o.Status, o.DeliveredAt)
	}
}

func TestOrderInvalidTransitions(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreateOrder(t, svc)

	if _, err := svc.Prepare(ctx, PrepareCommand{OrderID: id, Actor: admin}); err != ErrInvalidTransition {
		t.Fatalf("prepare before confirm: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.Claim(ctx, ClaimCommand{OrderID: id, RiderID: "r1"}); err != ErrInvalidTransition {
		t.Fatalf("claim pending order: expected ErrInvalidTransition, got %v", err)
	}

	if _, err := svc.Confirm(ctx, ConfirmCommand{OrderID: id, Actor: admin}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.Prepare(ctx, PrepareCommand{OrderID: id, Actor: admin}); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	// claim is only legal from ready
	if _, err := svc.Claim(ctx, ClaimCommand{OrderID: id, RiderID: "r1"}); err != ErrInvalidTransition {
		t.Fatalf("claim preparing order: expected ErrInvalidTransition, got %v", err)
	}
	assertStatus(t, svc, id, StatusPreparing)
}

func TestOrderRejectIsTerminal(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreateOrder(t, svc)

	o, err := svc.Reject(ctx, RejectCommand{OrderID: id, Actor: admin})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if o.Status != StatusCancelled {
		t.Fatalf("reject: status=%s", o.Status)
	}
	if _, err := svc.Confirm(ctx, ConfirmCommand{OrderID: id, Actor: admin}); err != ErrInvalidTransition {
		t.Fatalf("confirm after reject: expected ErrInvalidTransition, got %v", err)
	}
}

func TestIdempotentReissue(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreateOrder(t, svc)

	first, err := svc.Confirm(ctx, ConfirmCommand{OrderID: id, Actor: admin})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	second, err := svc.Confirm(ctx, ConfirmCommand{OrderID: id, Actor: admin})
	if err != nil {
		t.Fatalf("duplicate confirm: expected no-op success, got %v", err)
	}
	if !first.ConfirmedAt.Equal(*second.ConfirmedAt) {
		t.Fatalf("confirmedAt changed on reissue: %v != %v", first.ConfirmedAt, second.ConfirmedAt)
	}
	if second.StatusVersion != first.StatusVersion {
		t.Fatalf("status version changed on reissue")
	}
}

func TestClaimIdempotentForWinnerOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := readyOrder(t, svc)

	if _, err := svc.Claim(ctx, ClaimCommand{OrderID: id, RiderID: "r1"}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// winner retries: no-op success
	if _, err := svc.Claim(ctx, ClaimCommand{OrderID: id, RiderID: "r1"}); err != nil {
		t.Fatalf("winner reissue: %v", err)
	}
	// another rider: claim already lost
	if _, err := svc.Claim(ctx, ClaimCommand{OrderID: id, RiderID: "r2"}); err != ErrAlreadyClaimed {
		t.Fatalf("loser claim: expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestClaimRequiresActiveRider(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := readyOrder(t, svc)

	if _, err := svc.Claim(ctx, ClaimCommand{OrderID: id, RiderID: "r_inactive"}); err != ErrPreconditionFailed {
		t.Fatalf("inactive rider claim: expected ErrPreconditionFailed, got %v", err)
	}
	if _, err := svc.Claim(ctx, ClaimCommand{OrderID: id, RiderID: "r_unknown"}); err != ErrPreconditionFailed {
		t.Fatalf("unknown rider claim: expected ErrPreconditionFailed, got %v", err)
	}
	assertStatus(t, svc, id, StatusReady)
}

func TestDeliverRequiresPhoto(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := outForDeliveryOrder(t, svc, "r1")

	if _, err := svc.Deliver(ctx, DeliverCommand{OrderID: id, RiderID: "r1", PhotoRef: ""}); err != ErrPreconditionFailed {
		t.Fatalf("deliver without photo: expected ErrPreconditionFailed, got %v", err)
	}
	assertStatus(t, svc, id, StatusOutForDelivery)

	o, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if o.DeliveryPhotoRef != nil {
		t.Fatalf("photo ref set on failed deliver")
	}
}

func TestDeliverOnlyByAssignedRider(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := outForDeliveryOrder(t, svc, "r1")

	if _, err := svc.Deliver(ctx, DeliverCommand{OrderID: id, RiderID: "r2", PhotoRef: "proof"}); err != ErrPreconditionFailed {
		t.Fatalf("deliver by other rider: expected ErrPreconditionFailed, got %v", err)
	}
}

func TestArchiveIndependence(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreateOrder(t, svc)

	if _, err := svc.Confirm(ctx, ConfirmCommand{OrderID: id, Actor: admin}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	before, _ := svc.Get(ctx, id)

	archived, err := svc.Archive(ctx, id)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !archived.Archived {
		t.Fatalf("archived flag not set")
	}
	if archived.Status != before.Status {
		t.Fatalf("archive changed status: %s", archived.Status)
	}

	restored, err := svc.Unarchive(ctx, id)
	if err != nil {
		t.Fatalf("unarchive: %v", err)
	}
	if restored.Archived {
		t.Fatalf("archived flag still set")
	}
	if restored.Status != before.Status || !restored.ConfirmedAt.Equal(*before.ConfirmedAt) {
		t.Fatalf("unarchive altered order state")
	}
}

func TestDeleteRequiresArchive(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreateOrder(t, svc)

	if err := svc.Delete(ctx, id); err != ErrPreconditionFailed {
		t.Fatalf("delete unarchived: expected ErrPreconditionFailed, got %v", err)
	}
	if _, err := svc.Archive(ctx, id); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := svc.Delete(ctx, id); err != nil {
		t.Fatalf("delete archived: %v", err)
	}
	if _, err := svc.Get(ctx, id); err != ErrNotFound {
		t.Fatalf("get deleted: expected ErrNotFound, got %v", err)
	}
}

func TestRoleEnforcement(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	id := mustCreateOrder(t, svc)

	rider := Actor{Role: RoleRider, ID: "r1"}
	if _, err := svc.Confirm(ctx, ConfirmCommand{OrderID: id, Actor: rider}); err != ErrPreconditionFailed {
		t.Fatalf("rider confirm: expected ErrPreconditionFailed, got %v", err)
	}

	// the auto-confirm sweep acts as a system actor
	outID := outForDeliveryOrder(t, svc, "r1")
	if _, err := svc.Deliver(ctx, DeliverCommand{OrderID: outID, RiderID: "r1", PhotoRef: "proof"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, err := svc.ConfirmDelivery(ctx, ConfirmDeliveryCommand{OrderID: outID, Actor: Actor{Role: RoleSystem}}); err != nil {
		t.Fatalf("system confirm-delivery: %v", err)
	}
}

func TestUnknownOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Confirm(context.Background(), ConfirmCommand{OrderID: "nope", Actor: admin}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func readyOrder(t *testing.T, svc *Service) types.ID {
	t.Helper()
	ctx := context.Background()
	id := mustCreateOrder(t, svc)
	if _, err := svc.Confirm(ctx, ConfirmCommand{OrderID: id, Actor: admin}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := svc.Prepare(ctx, PrepareCommand{OrderID: id, Actor: admin}); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if _, err := svc.MarkReady(ctx, MarkReadyCommand{OrderID: id, Actor: admin}); err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	return id
}

func outForDeliveryOrder(t *testing.T, svc *Service, riderID types.ID) types.ID {
	t.Helper()
	ctx := context.Background()
	id := readyOrder(t, svc)
	if _, err := svc.Claim(ctx, ClaimCommand{OrderID: id, RiderID: riderID}); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := svc.ConfirmPickup(ctx, PickupCommand{OrderID: id, RiderID: riderID}); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	return id
}
