// README: Rider directory service. Exposes the active check the lifecycle
// engine uses during claims, plus admin status management.
package rider

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"medrush/internal/types"
)

var (
	ErrNotFound   = errors.New("rider not found")
	ErrBadRequest = errors.New("bad request")
)

// AvailabilityFeed mirrors the set of active riders into the assignment
// feed. Failures are the caller's to log; feed sync is best-effort.
type AvailabilityFeed interface {
	SetAvailable(ctx context.Context, id types.ID, available bool) error
}

type Service struct {
	store Store
	feed  AvailabilityFeed
}

func NewService(store Store, feed AvailabilityFeed) *Service {
	return &Service{store: store, feed: feed}
}

type CreateCommand struct {
	Name  string
	Phone string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Rider, error) {
	if cmd.Name == "" {
		return nil, ErrBadRequest
	}
	r := &Rider{
		ID:        types.ID(uuid.NewString()),
		Name:      cmd.Name,
		Phone:     cmd.Phone,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Rider, error) {
	return s.store.Get(ctx, id)
}

// IsActive satisfies the lifecycle engine's RiderDirectory.
func (s *Service) IsActive(ctx context.Context, id types.ID) (bool, error) {
	r, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return r.Status == StatusActive, nil
}

func (s *Service) SetStatus(ctx context.Context, id types.ID, status Status) (*Rider, error) {
	if !status.IsValid() {
		return nil, ErrBadRequest
	}
	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	if s.feed != nil {
		_ = s.feed.SetAvailable(ctx, id, status == StatusActive)
	}
	return s.store.Get(ctx, id)
}

func (s *Service) ListActive(ctx context.Context) ([]*Rider, error) {
	return s.store.ListByStatus(ctx, StatusActive)
}
