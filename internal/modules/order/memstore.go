// README: In-memory Store with the same compare-and-set semantics as the
// Postgres store. Backs tests and broker-less local runs.
package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"medrush/internal/types"
)

type MemStore struct {
	mu     sync.Mutex
	orders map[types.ID]*Order
	events []*Event
}

func NewMemStore() *MemStore {
	return &MemStore{orders: make(map[types.ID]*Order)}
}

func (s *MemStore) Create(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemStore) ApplyTransition(_ context.Context, id types.ID, ch Change) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	if o.Status != ch.From || o.StatusVersion != ch.FromVersion {
		return false, nil
	}
	if ch.RiderID != nil && o.RiderID != nil {
		return false, nil
	}

	now := time.Now().UTC()
	o.Status = ch.To
	o.StatusVersion++
	if ch.RiderID != nil {
		rid := *ch.RiderID
		o.RiderID = &rid
	}
	if ch.PhotoRef != nil && o.DeliveryPhotoRef == nil {
		ref := *ch.PhotoRef
		o.DeliveryPhotoRef = &ref
	}
	stampOnce := func(field **time.Time) {
		if *field == nil {
			t := now
			*field = &t
		}
	}
	switch ch.To {
	case StatusConfirmed:
		stampOnce(&o.ConfirmedAt)
	case StatusPreparing:
		stampOnce(&o.PreparingAt)
	case StatusReady:
		stampOnce(&o.ReadyAt)
	case StatusRiderReceived:
		stampOnce(&o.RiderReceivedAt)
	case StatusDelivered:
		stampOnce(&o.DeliveredAt)
	case StatusCancelled:
		stampOnce(&o.CancelledAt)
	}
	o.UpdatedAt = now
	return true, nil
}

func (s *MemStore) SetArchived(_ context.Context, id types.ID, archived bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Archived = archived
	return nil
}

func (s *MemStore) Delete(_ context.Context, id types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	if !o.Archived {
		return ErrPreconditionFailed
	}
	delete(s.orders, id)
	return nil
}

func (s *MemStore) List(_ context.Context, f ListFilter) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order
	for _, o := range s.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.Archived != nil && o.Archived != *f.Archived {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) ListClaimable(_ context.Context) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order
	for _, o := range s.orders {
		if o.Status == StatusReady && o.RiderID == nil && !o.Archived {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemStore) ListPendingConfirmationBefore(_ context.Context, cutoff time.Time) ([]types.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []types.ID
	for _, o := range s.orders {
		if o.Status == StatusPendingConfirmation && o.UpdatedAt.Before(cutoff) {
			ids = append(ids, o.ID)
		}
	}
	return ids, nil
}

func (s *MemStore) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := *e
	ev.ID = int64(len(s.events) + 1)
	s.events = append(s.events, &ev)
	return nil
}

// Events returns a copy of the audit log, oldest first.
func (s *MemStore) Events(orderID types.ID) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.OrderID == orderID {
			out = append(out, *e)
		}
	}
	return out
}

func cloneOrder(o *Order) *Order {
	c := *o
	if o.RiderID != nil {
		id := *o.RiderID
		c.RiderID = &id
	}
	if o.DeliveryPhotoRef != nil {
		ref := *o.DeliveryPhotoRef
		c.DeliveryPhotoRef = &ref
	}
	clonePtr := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	c.ConfirmedAt = clonePtr(o.ConfirmedAt)
	c.PreparingAt = clonePtr(o.PreparingAt)
	c.ReadyAt = clonePtr(o.ReadyAt)
	c.RiderReceivedAt = clonePtr(o.RiderReceivedAt)
	c.DeliveredAt = clonePtr(o.DeliveredAt)
	c.CancelledAt = clonePtr(o.CancelledAt)
	c.LineItems = append([]LineItem(nil), o.LineItems...)
	return &c
}
