package services

import (
	"context"
	"errors"
	"testing"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/domain/dto"
	"order-router/internal/routing/domain/models"
	"order-router/internal/routing/routingtest"
	"order-router/internal/xpkg/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newAssignService(env *routingtest.Env, metrics *Metrics) *AssignService {
	return NewAssignService(env.Orders, env.Stores, env.Settings, env.Locker, env.Publisher, metrics, logger.Discard())
}

func TestAutoAssign(t *testing.T) {
	ctx := context.Background()
	env := routingtest.NewEnv(true)
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := newAssignService(env, metrics)

	baghdad := env.Stores.Add("Baghdad")
	basra := env.Stores.Add("Basra")

	lower := env.Orders.Seed(models.Order{MainStoreName: "baghdad"})
	upper := env.Orders.Seed(models.Order{MainStoreName: "BASRA"})
	partial := env.Orders.Seed(models.Order{MainStoreName: "Bagh"})
	empty := env.Orders.Seed(models.Order{MainStoreName: ""})
	preassigned := env.Orders.Seed(models.Order{MainStoreName: "Baghdad", AssignedStoreID: &basra.ID, Status: models.StatusAssigned})

	res, err := svc.AutoAssign(ctx, core.ChangedByAutoAssign)
	if err != nil {
		t.Fatalf("AutoAssign: %v", err)
	}
	if !res.Enabled || res.Assigned != 2 || res.Unmatched != 2 || res.ErrorCount() != 0 {
		t.Fatalf("result = %+v, want 2 assigned, 2 unmatched, 0 errors", res)
	}

	check := func(id, wantStore, wantStatus string) {
		t.Helper()
		o, err := env.Orders.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		got := ""
		if o.AssignedStoreID != nil {
			got = *o.AssignedStoreID
		}
		if got != wantStore || o.Status != wantStatus {
			t.Errorf("order %s: store=%q status=%q, want store=%q status=%q", id, got, o.Status, wantStore, wantStatus)
		}
	}
	check(lower.ID, baghdad.ID, models.StatusAssigned)
	check(upper.ID, basra.ID, models.StatusAssigned)
	check(partial.ID, "", models.StatusPending)
	check(empty.ID, "", models.StatusPending)
	check(preassigned.ID, basra.ID, models.StatusAssigned)

	msgs := env.Publisher.Messages()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(msgs))
	}
	for _, m := range msgs {
		if m.OldStatus != models.StatusPending || m.NewStatus != models.StatusAssigned || m.ChangedBy != core.ChangedByAutoAssign {
			t.Errorf("unexpected message %+v", m)
		}
	}

	if got := testutil.ToFloat64(metrics.assigned.WithLabelValues(AssignModeAuto)); got != 2 {
		t.Errorf("assigned{auto} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.unmatched); got != 2 {
		t.Errorf("unmatched = %v, want 2", got)
	}

	second, err := svc.AutoAssign(ctx, core.ChangedByAutoAssign)
	if err != nil {
		t.Fatalf("second AutoAssign: %v", err)
	}
	if second.Assigned != 0 || second.Unmatched != 2 {
		t.Errorf("second run = %+v, want 0 assigned and 2 unmatched", second)
	}
	if env.Locker.Held() {
		t.Error("lock must be released after a run")
	}
}

func TestAutoAssignDisabled(t *testing.T) {
	ctx := context.Background()
	env := routingtest.NewEnv(false)
	svc := newAssignService(env, nil)

	env.Stores.Add("Baghdad")
	o := env.Orders.Seed(models.Order{MainStoreName: "Baghdad"})

	res, err := svc.AutoAssign(ctx, core.ChangedByAutoAssign)
	if err != nil {
		t.Fatalf("AutoAssign: %v", err)
	}
	if res.Enabled || res.Assigned != 0 {
		t.Errorf("result = %+v, want disabled with nothing assigned", res)
	}
	got, _ := env.Orders.Get(ctx, o.ID)
	if got.Status != models.StatusPending || got.AssignedStoreID != nil {
		t.Errorf("order changed while disabled: %+v", got)
	}
}

func TestAutoAssignConcurrentRun(t *testing.T) {
	env := routingtest.NewEnv(true)
	svc := newAssignService(env, nil)

	release, ok, _ := env.Locker.TryLock(context.Background())
	if !ok {
		t.Fatal("could not take lock")
	}
	defer release()

	if _, err := svc.AutoAssign(context.Background(), core.ChangedByAutoAssign); !errors.Is(err, core.ErrAutoAssignRunning) {
		t.Errorf("err = %v, want ErrAutoAssignRunning", err)
	}
}

func TestAutoAssignLostRaceAndErrors(t *testing.T) {
	ctx := context.Background()
	env := routingtest.NewEnv(true)
	svc := newAssignService(env, nil)

	erbil := env.Stores.Add("Erbil")
	other := env.Stores.Add("Najaf")
	raced := env.Orders.Seed(models.Order{MainStoreName: "Erbil"})
	broken := env.Orders.Seed(models.Order{MainStoreName: "erbil"})
	fine := env.Orders.Seed(models.Order{MainStoreName: "ERBIL"})

	env.Orders.AssignErr[broken.ID] = errors.New("connection reset")
	env.Orders.OnAssign = func(orderID string) {
		if orderID != raced.ID {
			return
		}
		hook := env.Orders.OnAssign
		env.Orders.OnAssign = nil
		defer func() { env.Orders.OnAssign = hook }()
		if _, err := env.Orders.Assign(ctx, raced.ID, other.ID, core.ChangedByAdmin, false); err != nil {
			t.Fatalf("concurrent assign: %v", err)
		}
	}

	res, err := svc.AutoAssign(ctx, core.ChangedByAutoAssign)
	if err != nil {
		t.Fatalf("AutoAssign: %v", err)
	}
	if res.Assigned != 1 || res.Unmatched != 0 || res.ErrorCount() != 1 {
		t.Fatalf("result = %+v, want 1 assigned and 1 error", res)
	}

	got, _ := env.Orders.Get(ctx, raced.ID)
	if *got.AssignedStoreID != other.ID {
		t.Errorf("raced order was reassigned to %s", *got.AssignedStoreID)
	}
	got, _ = env.Orders.Get(ctx, fine.ID)
	if *got.AssignedStoreID != erbil.ID {
		t.Errorf("order assigned to %s, want %s", *got.AssignedStoreID, erbil.ID)
	}
}

func TestAutoAssignFirstStoreWinsForDuplicateNames(t *testing.T) {
	ctx := context.Background()
	env := routingtest.NewEnv(true)
	svc := newAssignService(env, nil)

	first := env.Stores.Add("Karbala")
	env.Stores.Add("KARBALA")
	o := env.Orders.Seed(models.Order{MainStoreName: "karbala"})

	if _, err := svc.AutoAssign(ctx, core.ChangedByAutoAssign); err != nil {
		t.Fatalf("AutoAssign: %v", err)
	}
	got, _ := env.Orders.Get(ctx, o.ID)
	if got.AssignedStoreID == nil || *got.AssignedStoreID != first.ID {
		t.Errorf("order not assigned to the oldest store: %+v", got.AssignedStoreID)
	}
}

func TestAssign(t *testing.T) {
	ctx := context.Background()
	env := routingtest.NewEnv(false)
	metrics := NewMetrics(prometheus.NewRegistry())
	svc := newAssignService(env, metrics)

	store := env.Stores.Add("Mosul")
	second := env.Stores.Add("Kirkuk")
	pending := env.Orders.Seed(models.Order{MainStoreName: "nowhere"})
	delivered := env.Orders.Seed(models.Order{AssignedStoreID: &store.ID, Status: models.StatusDelivered})

	tests := []struct {
		name    string
		req     dto.AssignRequest
		wantErr error
	}{
		{"missing order id", dto.AssignRequest{StoreID: store.ID}, core.ErrFieldIsEmpty},
		{"missing store id", dto.AssignRequest{OrderID: pending.ID}, core.ErrFieldIsEmpty},
		{"malformed order id", dto.AssignRequest{OrderID: "42", StoreID: store.ID}, core.ErrInvalidID},
		{"unknown store", dto.AssignRequest{OrderID: pending.ID, StoreID: uuid.NewString()}, core.ErrStoreNotFound},
		{"unknown order", dto.AssignRequest{OrderID: uuid.NewString(), StoreID: store.ID}, core.ErrOrderNotFound},
		{"finished order", dto.AssignRequest{OrderID: delivered.ID, StoreID: store.ID}, core.ErrInvalidTransition},
		{"pending order", dto.AssignRequest{OrderID: pending.ID, StoreID: store.ID}, nil},
		{"reassign", dto.AssignRequest{OrderID: pending.ID, StoreID: second.ID}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := svc.Assign(ctx, tt.req)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Assign: %v", err)
			}
			if order.Status != models.StatusAssigned || order.AssignedStoreID == nil || *order.AssignedStoreID != tt.req.StoreID {
				t.Errorf("order = %+v, want assigned to %s", order, tt.req.StoreID)
			}
		})
	}

	if got := testutil.ToFloat64(metrics.assigned.WithLabelValues(AssignModeManual)); got != 2 {
		t.Errorf("assigned{manual} = %v, want 2", got)
	}
	history, _ := env.Orders.History(ctx, pending.ID)
	if len(history) != 3 {
		t.Errorf("history has %d entries, want 3", len(history))
	}
}

func TestAssignPublishFailureDoesNotFail(t *testing.T) {
	env := routingtest.NewEnv(false)
	env.Publisher.Err = errors.New("broker down")
	svc := newAssignService(env, nil)

	store := env.Stores.Add("Najaf")
	o := env.Orders.Seed(models.Order{})

	if _, err := svc.Assign(context.Background(), dto.AssignRequest{OrderID: o.ID, StoreID: store.ID}); err != nil {
		t.Fatalf("Assign: %v", err)
	}
}
