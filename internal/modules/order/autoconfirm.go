// README: Optional auto-confirm sweep. Issues the same confirm-delivery
// intent an admin would, as a system actor, for orders that sat in
// pending_confirmation past the policy timeout.
package order

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"medrush/internal/config"
)

const autoConfirmParallelism = 4

func (s *Service) RunAutoConfirm(ctx context.Context, cfg config.LifecycleConfig) {
	if cfg.AutoConfirmAfter <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.AutoConfirmTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepPendingConfirmations(ctx, cfg.AutoConfirmAfter)
		}
	}
}

func (s *Service) sweepPendingConfirmations(ctx context.Context, after time.Duration) {
	cutoff := time.Now().UTC().Add(-after)
	ids, err := s.store.ListPendingConfirmationBefore(ctx, cutoff)
	if err != nil {
		s.log.Warn("auto-confirm scan failed", zap.Error(err))
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(autoConfirmParallelism)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := s.ConfirmDelivery(gctx, ConfirmDeliveryCommand{
				OrderID: id,
				Actor:   Actor{Role: RoleSystem},
			})
			// An admin may have confirmed in the meantime; that is fine.
			if err != nil && err != ErrInvalidTransition && err != ErrContention {
				s.log.Warn("auto-confirm failed", zap.String("order_id", string(id)), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}
