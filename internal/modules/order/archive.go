// README: Archive/retention operations. Orthogonal to the status chain:
// archiving never touches status and fires no notifications.
package order

import (
	"context"

	"medrush/internal/types"
)

func (s *Service) Archive(ctx context.Context, id types.ID) (*Order, error) {
	return s.setArchived(ctx, id, true)
}

func (s *Service) Unarchive(ctx context.Context, id types.ID) (*Order, error) {
	return s.setArchived(ctx, id, false)
}

func (s *Service) setArchived(ctx context.Context, id types.ID, archived bool) (*Order, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.store.SetArchived(ctx, id, archived); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

// Delete permanently removes the order aggregate and its line items. Only
// archived orders may be deleted.
func (s *Service) Delete(ctx context.Context, id types.ID) error {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !o.Archived {
		return ErrPreconditionFailed
	}
	return s.store.Delete(ctx, id)
}
