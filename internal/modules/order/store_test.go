// README: Postgres store tests. Gated on MEDRUSH_TEST_DSN; applies
// migrations/0001_init.sql before running.
package order

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"medrush/internal/types"
)

func TestPGStoreConditionalWrite(t *testing.T) {
	store := setupPGStore(t)
	ctx := context.Background()

	o := seedOrder(t, store, StatusReady)

	rid := types.ID("r1")
	ok, err := store.ApplyTransition(ctx, o.ID, Change{
		From:        StatusReady,
		FromVersion: o.StatusVersion,
		To:          StatusRiderReceived,
		RiderID:     &rid,
	})
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if !ok {
		t.Fatalf("expected conditional write to succeed")
	}

	// stale writer: same preconditions no longer hold
	other := types.ID("r2")
	ok, err = store.ApplyTransition(ctx, o.ID, Change{
		From:        StatusReady,
		FromVersion: o.StatusVersion,
		To:          StatusRiderReceived,
		RiderID:     &other,
	})
	if err != nil {
		t.Fatalf("stale apply: %v", err)
	}
	if ok {
		t.Fatalf("stale conditional write must fail")
	}

	got, err := store.Get(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusRiderReceived || got.RiderID == nil || *got.RiderID != "r1" {
		t.Fatalf("order state after race: status=%s rider=%v", got.Status, got.RiderID)
	}
	if got.RiderReceivedAt == nil {
		t.Fatalf("riderReceivedAt not stamped")
	}
}

func TestPGStoreRiderGuard(t *testing.T) {
	store := setupPGStore(t)
	ctx := context.Background()

	o := seedOrder(t, store, StatusReady)
	rid := types.ID("r1")
	ok, err := store.ApplyTransition(ctx, o.ID, Change{
		From: StatusReady, FromVersion: 0, To: StatusRiderReceived, RiderID: &rid,
	})
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}

	// even with fresh status/version, a set rider_id blocks a second claim
	got, _ := store.Get(ctx, o.ID)
	other := types.ID("r2")
	ok, err = store.ApplyTransition(ctx, o.ID, Change{
		From: got.Status, FromVersion: got.StatusVersion, To: StatusRiderReceived, RiderID: &other,
	})
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatalf("rider_id guard did not hold")
	}
}

func TestPGStoreDeleteRequiresArchive(t *testing.T) {
	store := setupPGStore(t)
	ctx := context.Background()

	o := seedOrder(t, store, StatusPending)
	if err := store.Delete(ctx, o.ID); err != ErrPreconditionFailed {
		t.Fatalf("delete unarchived: expected ErrPreconditionFailed, got %v", err)
	}
	if err := store.SetArchived(ctx, o.ID, true); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := store.Delete(ctx, o.ID); err != nil {
		t.Fatalf("delete archived: %v", err)
	}
	if _, err := store.Get(ctx, o.ID); err != ErrNotFound {
		t.Fatalf("get deleted: expected ErrNotFound, got %v", err)
	}
}

func seedOrder(t *testing.T, store *PGStore, status Status) *Order {
	t.Helper()
	now := time.Now().UTC()
	o := &Order{
		ID:         types.ID("o_" + strings.ReplaceAll(t.Name(), "/", "_")),
		CustomerID: "c1",
		Status:     status,
		LineItems: []LineItem{
			{MedicationID: "med-1", Quantity: 1, UnitPrice: 100},
		},
		Total:         types.Money{Amount: 100, Currency: "PHP"},
		PaymentMethod: "cod",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := store.Create(context.Background(), o); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return o
}

func setupPGStore(t *testing.T) *PGStore {
	t.Helper()

	dsn := os.Getenv("MEDRUSH_TEST_DSN")
	if dsn == "" {
		t.Skip("MEDRUSH_TEST_DSN not set; skipping DB-backed store tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE order_status_events, order_items, orders, riders"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return NewPGStore(db)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
