package db

import (
	"context"
	"errors"
	"os"
	"testing"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/domain/models"
	"order-router/internal/xpkg/config"
	xdb "order-router/internal/xpkg/db"
	"order-router/internal/xpkg/logger"

	"github.com/google/uuid"
)

// openTestDB connects to the database described by ROUTER_DATABASE_* when
// ROUTER_INTEGRATION is set, and wipes the routing tables.
func openTestDB(t *testing.T) *xdb.DB {
	t.Helper()
	if os.Getenv("ROUTER_INTEGRATION") == "" {
		t.Skip("set ROUTER_INTEGRATION=1 and ROUTER_DATABASE_* to run postgres tests")
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	d, err := xdb.Start(ctx, cfg.DB, logger.Discard())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := d.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	if _, err := d.Pool().Exec(ctx, `TRUNCATE order_status_log, orders, stores`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return d
}

func TestOrderRepoAssignmentFlow(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	stores := NewStoreRepo(d)
	orders := NewOrderRepo(d)

	store, err := stores.Create(ctx, "Baghdad", "hash")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	if _, err := stores.Create(ctx, "BAGHDAD", "hash"); !errors.Is(err, core.ErrStoreExists) {
		t.Errorf("duplicate store err = %v, want ErrStoreExists", err)
	}

	order, err := orders.Create(ctx, models.Order{
		ID:            uuid.NewString(),
		CustomerName:  "Ali",
		CustomerPhone: "07701234567",
		MainStoreName: "baghdad",
		TotalAmount:   12.5,
		Items:         []models.Item{{Name: "Cable", Price: 12.5, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Status != models.StatusPending || len(order.Items) != 1 {
		t.Fatalf("unexpected order %+v", order)
	}

	unassigned, err := orders.ListUnassigned(ctx)
	if err != nil || len(unassigned) != 1 {
		t.Fatalf("ListUnassigned = %d, %v", len(unassigned), err)
	}

	change, err := orders.Assign(ctx, order.ID, store.ID, core.ChangedByAutoAssign, true)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if change.OldStatus != models.StatusPending || change.Order.Status != models.StatusAssigned {
		t.Errorf("unexpected change %+v", change)
	}
	if _, err := orders.Assign(ctx, order.ID, store.ID, core.ChangedByAutoAssign, true); !errors.Is(err, core.ErrAlreadyAssigned) {
		t.Errorf("second conditional assign err = %v, want ErrAlreadyAssigned", err)
	}
	if _, err := orders.Assign(ctx, order.ID, uuid.NewString(), core.ChangedByAdmin, false); !errors.Is(err, core.ErrStoreNotFound) {
		t.Errorf("unknown store err = %v, want ErrStoreNotFound", err)
	}

	if _, err := orders.UpdateStatus(ctx, order.ID, uuid.NewString(), models.StatusDelivered, "store", ""); !errors.Is(err, core.ErrOrderNotInStore) {
		t.Errorf("foreign store err = %v, want ErrOrderNotInStore", err)
	}
	if _, err := orders.UpdateStatus(ctx, order.ID, store.ID, models.StatusDelivered, "store", "ok"); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, err := orders.Assign(ctx, order.ID, store.ID, core.ChangedByAdmin, false); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("reassign delivered err = %v, want ErrInvalidTransition", err)
	}

	history, err := orders.History(ctx, order.ID)
	if err != nil || len(history) != 3 {
		t.Fatalf("History = %d, %v; want 3", len(history), err)
	}

	stats, err := orders.Stats(ctx, store.ID)
	if err != nil || stats.Delivered != 1 || stats.Total != 1 {
		t.Errorf("Stats = %+v, %v", stats, err)
	}
	perStore, err := orders.StatsByStore(ctx)
	if err != nil || len(perStore) != 1 || perStore[0].Delivered != 1 {
		t.Errorf("StatsByStore = %+v, %v", perStore, err)
	}
}

func TestSettingsRepo(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	repo := NewSettingsRepo(d)

	for _, enabled := range []bool{true, false} {
		s, err := repo.SetAutoAssign(ctx, enabled)
		if err != nil || s.AutoAssignEnabled != enabled {
			t.Fatalf("SetAutoAssign(%v) = %+v, %v", enabled, s, err)
		}
		got, err := repo.Get(ctx)
		if err != nil || got.AutoAssignEnabled != enabled {
			t.Fatalf("Get = %+v, %v", got, err)
		}
	}
}

func TestAdvisoryLockExcludesSecondRun(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	l := NewLocker(d, core.AutoAssignLockKey)

	release, ok, err := l.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("first TryLock = %v, %v", ok, err)
	}
	if _, ok, err := l.TryLock(ctx); err != nil || ok {
		t.Fatalf("second TryLock = %v, %v; want false", ok, err)
	}
	release()

	release, ok, err = l.TryLock(ctx)
	if err != nil || !ok {
		t.Fatalf("TryLock after release = %v, %v", ok, err)
	}
	release()
}
