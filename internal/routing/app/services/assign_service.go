package services

import (
	"context"
	"errors"
	"fmt"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/domain/dto"
	"order-router/internal/routing/domain/models"
	"order-router/internal/xpkg/db"
	"order-router/internal/xpkg/logger"

	"github.com/google/uuid"
)

type AssignService struct {
	orderRepo    core.IOrderRepo
	storeRepo    core.IStoreRepo
	settingsRepo core.ISettingsRepo
	locker       core.ILocker
	publisher    core.IPublisher
	metrics      *Metrics
	mylog        logger.Logger
}

func NewAssignService(
	orderRepo core.IOrderRepo,
	storeRepo core.IStoreRepo,
	settingsRepo core.ISettingsRepo,
	locker core.ILocker,
	publisher core.IPublisher,
	metrics *Metrics,
	mylog logger.Logger,
) *AssignService {
	return &AssignService{
		orderRepo:    orderRepo,
		storeRepo:    storeRepo,
		settingsRepo: settingsRepo,
		locker:       locker,
		publisher:    publisher,
		metrics:      metrics,
		mylog:        mylog,
	}
}

// Assign routes an order to a store chosen by an admin. Pending and
// assigned orders may be (re)assigned; finished orders may not.
func (as *AssignService) Assign(ctx context.Context, req dto.AssignRequest) (models.Order, error) {
	mylog := as.mylog.Action("assign_order")

	if req.OrderID == "" {
		return models.Order{}, fmt.Errorf("orderId: %w", core.ErrFieldIsEmpty)
	}
	if req.StoreID == "" {
		return models.Order{}, fmt.Errorf("storeId: %w", core.ErrFieldIsEmpty)
	}
	if err := validateID(req.OrderID); err != nil {
		return models.Order{}, fmt.Errorf("orderId %q: %w", req.OrderID, err)
	}
	if err := validateID(req.StoreID); err != nil {
		return models.Order{}, fmt.Errorf("storeId %q: %w", req.StoreID, err)
	}

	err := db.Retry(ctx, db.RetryAttempt, func(ctx context.Context) error {
		_, err := as.storeRepo.Get(ctx, req.StoreID)
		return err
	})
	if err != nil {
		if !errors.Is(err, core.ErrStoreNotFound) {
			mylog.Error("Failed to load store", err, "store_id", req.StoreID)
		}
		return models.Order{}, err
	}

	change, err := as.orderRepo.Assign(ctx, req.OrderID, req.StoreID, core.ChangedByAdmin, false)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrOrderNotFound), errors.Is(err, core.ErrStoreNotFound), errors.Is(err, core.ErrInvalidTransition):
			mylog.Warn("Order cannot be assigned", "order_id", req.OrderID, "store_id", req.StoreID, "reason", err.Error())
		default:
			mylog.Error("Failed to assign order", err, "order_id", req.OrderID, "store_id", req.StoreID)
		}
		return models.Order{}, err
	}

	as.metrics.Assigned(AssignModeManual)
	as.metrics.StatusChanged(change.Order.Status)
	publishChange(ctx, as.publisher, as.mylog, change)

	mylog.Info("Order assigned", "order_id", change.Order.ID, "store_id", req.StoreID, "old_status", change.OldStatus)
	return change.Order, nil
}

// AutoAssign routes every pending unassigned order whose main store name
// matches a store name. Orders that already carry a store are never touched.
func (as *AssignService) AutoAssign(ctx context.Context, changedBy string) (dto.AutoAssignResult, error) {
	mylog := as.mylog.Action("auto_assign")

	var settings models.Settings
	err := db.Retry(ctx, db.RetryAttempt, func(ctx context.Context) error {
		var err error
		settings, err = as.settingsRepo.Get(ctx)
		return err
	})
	if err != nil {
		as.metrics.Run(RunResultFailed)
		mylog.Error("Failed to read settings", err)
		return dto.AutoAssignResult{}, fmt.Errorf("read settings: %w", err)
	}
	if !settings.AutoAssignEnabled {
		as.metrics.Run(RunResultDisabled)
		mylog.Info("Auto-assignment is disabled, skipping run")
		return dto.AutoAssignResult{Enabled: false}, nil
	}

	release, ok, err := as.locker.TryLock(ctx)
	if err != nil {
		as.metrics.Run(RunResultFailed)
		mylog.Error("Failed to take auto-assign lock", err)
		return dto.AutoAssignResult{}, fmt.Errorf("auto-assign lock: %w", err)
	}
	if !ok {
		as.metrics.Run(RunResultBusy)
		mylog.Warn("Another auto-assignment run is in progress")
		return dto.AutoAssignResult{}, core.ErrAutoAssignRunning
	}
	defer release()

	var orders []models.Order
	err = db.Retry(ctx, db.RetryAttempt, func(ctx context.Context) error {
		var err error
		orders, err = as.orderRepo.ListUnassigned(ctx)
		return err
	})
	if err != nil {
		as.metrics.Run(RunResultFailed)
		mylog.Error("Failed to list unassigned orders", err)
		return dto.AutoAssignResult{}, fmt.Errorf("list unassigned orders: %w", err)
	}

	var stores []models.Store
	err = db.Retry(ctx, db.RetryAttempt, func(ctx context.Context) error {
		var err error
		stores, err = as.storeRepo.List(ctx)
		return err
	})
	if err != nil {
		as.metrics.Run(RunResultFailed)
		mylog.Error("Failed to list stores", err)
		return dto.AutoAssignResult{}, fmt.Errorf("list stores: %w", err)
	}

	mylog.Info("Auto-assignment started", "pending_orders", len(orders), "stores", len(stores), "changed_by", changedBy)

	index := NewStoreIndex(stores)
	result := dto.AutoAssignResult{Enabled: true}

	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("run interrupted: %v", err))
			break
		}
		if !order.IsUnassigned() {
			continue
		}

		store, ok := index.Match(order.MainStoreName)
		if !ok {
			result.Unmatched++
			mylog.Debug("No store matches order", "order_id", order.ID, "main_store_name", order.MainStoreName)
			continue
		}

		change, err := as.orderRepo.Assign(ctx, order.ID, store.ID, changedBy, true)
		if err != nil {
			if errors.Is(err, core.ErrAlreadyAssigned) {
				mylog.Debug("Order was assigned concurrently, skipping", "order_id", order.ID)
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("order %s: %v", order.ID, err))
			mylog.Error("Failed to assign order", err, "order_id", order.ID, "store_id", store.ID)
			continue
		}

		result.Assigned++
		as.metrics.Assigned(AssignModeAuto)
		as.metrics.StatusChanged(change.Order.Status)
		publishChange(ctx, as.publisher, as.mylog, change)
	}

	as.metrics.Unmatched(result.Unmatched)
	as.metrics.Run(RunResultOK)
	mylog.Info("Auto-assignment completed",
		"assigned_count", result.Assigned,
		"unmatched_count", result.Unmatched,
		"error_count", result.ErrorCount(),
	)
	return result, nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrInvalidID
	}
	return nil
}
