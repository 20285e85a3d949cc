// README: Rider persistence: Postgres store plus an in-memory store for
// tests and local runs.
package rider

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medrush/internal/types"
)

type Store interface {
	Create(ctx context.Context, r *Rider) error
	Get(ctx context.Context, id types.ID) (*Rider, error)
	UpdateStatus(ctx context.Context, id types.ID, status Status) error
	ListByStatus(ctx context.Context, status Status) ([]*Rider, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, r *Rider) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO riders (id, name, phone, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		string(r.ID), r.Name, r.Phone, string(r.Status), r.CreatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Rider, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, phone, status, created_at, updated_at
		FROM riders WHERE id = $1`, string(id))
	var r Rider
	err := row.Scan(&r.ID, &r.Name, &r.Phone, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, id types.ID, status Status) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE riders SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ListByStatus(ctx context.Context, status Status) ([]*Rider, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, phone, status, created_at, updated_at
		FROM riders WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Rider
	for rows.Next() {
		var r Rider
		if err := rows.Scan(&r.ID, &r.Name, &r.Phone, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

type MemStore struct {
	mu     sync.Mutex
	riders map[types.ID]*Rider
}

func NewMemStore() *MemStore {
	return &MemStore{riders: make(map[types.ID]*Rider)}
}

func (s *MemStore) Create(_ context.Context, r *Rider) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *r
	s.riders[r.ID] = &c
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Rider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.riders[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *r
	return &c, nil
}

func (s *MemStore) UpdateStatus(_ context.Context, id types.ID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.riders[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	return nil
}

func (s *MemStore) ListByStatus(_ context.Context, status Status) ([]*Rider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Rider
	for _, r := range s.riders {
		if r.Status == status {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}
