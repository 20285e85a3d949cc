// README: Order persistence. The conditional UPDATE on (status,
// status_version, rider nullity) is the only concurrency control in the
// system; timestamps are stamped write-once in SQL.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"medrush/internal/types"
)

// Change is a requested status transition plus its optimistic-concurrency
// preconditions. RiderID, when set, additionally requires rider_id to be
// unset at commit time.
type Change struct {
	From        Status
	FromVersion int
	To          Status
	RiderID     *types.ID
	PhotoRef    *string
}

type ListFilter struct {
	Status   Status
	Archived *bool
}

type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	ApplyTransition(ctx context.Context, id types.ID, ch Change) (bool, error)
	SetArchived(ctx context.Context, id types.ID, archived bool) error
	Delete(ctx context.Context, id types.ID) error
	List(ctx context.Context, f ListFilter) ([]*Order, error)
	ListClaimable(ctx context.Context) ([]*Order, error)
	ListPendingConfirmationBefore(ctx context.Context, cutoff time.Time) ([]types.ID, error)
	AppendEvent(ctx context.Context, e *Event) error
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, o *Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, customer_id, status, status_version, rider_id, delivery_photo_ref,
			archived, total_amount, total_currency, payment_method,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, NULL, NULL, FALSE, $5, $6, $7, $8, $8)`,
		string(o.ID),
		string(o.CustomerID),
		string(o.Status),
		o.StatusVersion,
		o.Total.Amount,
		o.Total.Currency,
		o.PaymentMethod,
		o.CreatedAt,
	)
	if err != nil {
		return err
	}
	for i, it := range o.LineItems {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, position, medication_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)`,
			string(o.ID), i, string(it.MedicationID), it.Quantity, it.UnitPrice,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

const orderColumns = `
	id, customer_id, status, status_version, rider_id, delivery_photo_ref,
	archived, total_amount, total_currency, payment_method,
	created_at, confirmed_at, preparing_at, ready_at, rider_received_at,
	delivered_at, cancelled_at, updated_at`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, string(id))
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	o.LineItems, err = s.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PGStore) loadItems(ctx context.Context, id types.ID) ([]LineItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT medication_id, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY position`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.MedicationID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *PGStore) ApplyTransition(ctx context.Context, id types.ID, ch Change) (bool, error) {
	var rider, photo *string
	if ch.RiderID != nil {
		v := string(*ch.RiderID)
		rider = &v
	}
	if ch.PhotoRef != nil {
		photo = ch.PhotoRef
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    rider_id = COALESCE($2, rider_id),
		    delivery_photo_ref = COALESCE($3, delivery_photo_ref),
		    confirmed_at = CASE WHEN $1 = 'confirmed' AND confirmed_at IS NULL THEN NOW() ELSE confirmed_at END,
		    preparing_at = CASE WHEN $1 = 'preparing' AND preparing_at IS NULL THEN NOW() ELSE preparing_at END,
		    ready_at = CASE WHEN $1 = 'ready' AND ready_at IS NULL THEN NOW() ELSE ready_at END,
		    rider_received_at = CASE WHEN $1 = 'rider_received' AND rider_received_at IS NULL THEN NOW() ELSE rider_received_at END,
		    delivered_at = CASE WHEN $1 = 'delivered' AND delivered_at IS NULL THEN NOW() ELSE delivered_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' AND cancelled_at IS NULL THEN NOW() ELSE cancelled_at END,
		    updated_at = NOW()
		WHERE id = $4 AND status = $5 AND status_version = $6
		  AND ($2::text IS NULL OR rider_id IS NULL)`,
		string(ch.To),
		rider,
		photo,
		string(id),
		string(ch.From),
		ch.FromVersion,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) SetArchived(ctx context.Context, id types.ID, archived bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE orders SET archived = $1 WHERE id = $2`, archived, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id types.ID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, string(id)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM order_status_events WHERE order_id = $1`, string(id)); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM orders WHERE id = $1 AND archived`, string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPreconditionFailed
	}
	return tx.Commit(ctx)
}

func (s *PGStore) List(ctx context.Context, f ListFilter) ([]*Order, error) {
	q := `SELECT` + orderColumns + ` FROM orders WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, string(f.Status))
		q += ` AND status = $1`
	}
	if f.Archived != nil {
		args = append(args, *f.Archived)
		if len(args) == 1 {
			q += ` AND archived = $1`
		} else {
			q += ` AND archived = $2`
		}
	}
	q += ` ORDER BY created_at DESC`
	return s.queryOrders(ctx, q, args...)
}

func (s *PGStore) ListClaimable(ctx context.Context) ([]*Order, error) {
	return s.queryOrders(ctx, `SELECT`+orderColumns+`
		FROM orders
		WHERE status = 'ready' AND rider_id IS NULL AND NOT archived
		ORDER BY ready_at`)
}

func (s *PGStore) ListPendingConfirmationBefore(ctx context.Context, cutoff time.Time) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM orders
		WHERE status = 'pending_confirmation' AND updated_at < $1`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}

func (s *PGStore) AppendEvent(ctx context.Context, e *Event) error {
	var actorID *string
	if e.ActorID != nil {
		v := string(*e.ActorID)
		actorID = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_status_events (
			order_id, from_status, to_status, intent, actor_role, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.OrderID),
		string(e.From),
		string(e.To),
		string(e.Intent),
		string(e.ActorRole),
		actorID,
		e.CreatedAt,
	)
	return err
}

func (s *PGStore) queryOrders(ctx context.Context, q string, args ...any) ([]*Order, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var riderID, photoRef *string
	var confirmedAt, preparingAt, readyAt, riderReceivedAt, deliveredAt, cancelledAt *time.Time

	err := row.Scan(
		&o.ID, &o.CustomerID, &o.Status, &o.StatusVersion, &riderID, &photoRef,
		&o.Archived, &o.Total.Amount, &o.Total.Currency, &o.PaymentMethod,
		&o.CreatedAt, &confirmedAt, &preparingAt, &readyAt, &riderReceivedAt,
		&deliveredAt, &cancelledAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if riderID != nil {
		id := types.ID(*riderID)
		o.RiderID = &id
	}
	o.DeliveryPhotoRef = photoRef
	o.ConfirmedAt = confirmedAt
	o.PreparingAt = preparingAt
	o.ReadyAt = readyAt
	o.RiderReceivedAt = riderReceivedAt
	o.DeliveredAt = deliveredAt
	o.CancelledAt = cancelledAt
	return &o, nil
}
