// README: Rider assignment protocol. Admin-directed assignment and rider
// self-claim converge on the same guarded transition in the lifecycle
// engine; this service adds the claimable feed around it. Single-winner
// race, no queue: a lost claim surfaces as AlreadyClaimed so the app can
// refresh and show the order as taken.
package assignment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"medrush/internal/modules/order"
	"medrush/internal/types"
)

type OrderService interface {
	AssignRider(ctx context.Context, cmd order.AssignRiderCommand) (*order.Order, error)
	Claim(ctx context.Context, cmd order.ClaimCommand) (*order.Order, error)
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	ListClaimable(ctx context.Context) ([]*order.Order, error)
}

type Feed interface {
	SetAvailable(ctx context.Context, riderID types.ID, available bool) error
	AvailableRiders(ctx context.Context) ([]types.ID, error)
	AddReady(ctx context.Context, orderID types.ID, readyAt time.Time) error
	RemoveReady(ctx context.Context, orderID types.ID) error
	ReadyIDs(ctx context.Context) ([]types.ID, error)
}

type Service struct {
	orders OrderService
	feed   Feed
	log    *zap.Logger
}

func NewService(orders OrderService, feed Feed, log *zap.Logger) *Service {
	return &Service{orders: orders, feed: feed, log: log}
}

func (s *Service) Assign(ctx context.Context, orderID, riderID types.ID, actor order.Actor) (*order.Order, error) {
	o, err := s.orders.AssignRider(ctx, order.AssignRiderCommand{
		OrderID: orderID,
		RiderID: riderID,
		Actor:   actor,
	})
	if err != nil {
		return nil, err
	}
	s.removeFromFeed(ctx, orderID)
	return o, nil
}

func (s *Service) Claim(ctx context.Context, orderID, riderID types.ID) (*order.Order, error) {
	o, err := s.orders.Claim(ctx, order.ClaimCommand{OrderID: orderID, RiderID: riderID})
	if err != nil {
		return nil, err
	}
	s.removeFromFeed(ctx, orderID)
	return o, nil
}

// PublishReady adds a just-readied order to the claimable feed.
func (s *Service) PublishReady(ctx context.Context, o *order.Order) {
	if s.feed == nil || o.Status != order.StatusReady {
		return
	}
	readyAt := o.UpdatedAt
	if o.ReadyAt != nil {
		readyAt = *o.ReadyAt
	}
	if err := s.feed.AddReady(ctx, o.ID, readyAt); err != nil {
		s.log.Warn("publish ready order", zap.String("order_id", string(o.ID)), zap.Error(err))
	}
}

// ListClaimable serves the rider app's claimable list from the feed, falling
// back to the store when the feed is empty or unavailable.
func (s *Service) ListClaimable(ctx context.Context) ([]*order.Order, error) {
	if s.feed != nil {
		if ids, err := s.feed.ReadyIDs(ctx); err == nil && len(ids) > 0 {
			out := make([]*order.Order, 0, len(ids))
			for _, id := range ids {
				o, err := s.orders.Get(ctx, id)
				if err != nil || o.Status != order.StatusReady || o.RiderID != nil {
					// Stale feed entry; drop it.
					s.removeFromFeed(ctx, id)
					continue
				}
				out = append(out, o)
			}
			return out, nil
		} else if err != nil {
			s.log.Warn("assignment feed read failed", zap.Error(err))
		}
	}
	return s.orders.ListClaimable(ctx)
}

func (s *Service) removeFromFeed(ctx context.Context, orderID types.ID) {
	if s.feed == nil {
		return
	}
	if err := s.feed.RemoveReady(ctx, orderID); err != nil {
		s.log.Warn("remove order from feed", zap.String("order_id", string(orderID)), zap.Error(err))
	}
}
