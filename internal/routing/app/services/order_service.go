package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/domain/dto"
	"order-router/internal/routing/domain/models"
	"order-router/internal/xpkg/db"
	"order-router/internal/xpkg/logger"

	"github.com/google/uuid"
)

type OrderService struct {
	orderRepo core.IOrderRepo
	storeRepo core.IStoreRepo
	publisher core.IPublisher
	metrics   *Metrics
	mylog     logger.Logger
}

func NewOrderService(
	orderRepo core.IOrderRepo,
	storeRepo core.IStoreRepo,
	publisher core.IPublisher,
	metrics *Metrics,
	mylog logger.Logger,
) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		storeRepo: storeRepo,
		publisher: publisher,
		metrics:   metrics,
		mylog:     mylog,
	}
}

// Create validates an incoming order and stores it as pending.
func (os *OrderService) Create(ctx context.Context, req dto.CreateOrderRequest) (models.Order, error) {
	mylog := os.mylog.Action("create_order")

	if err := os.ValidateOrder(req); err != nil {
		return models.Order{}, err
	}

	order := models.Order{
		ID:              uuid.NewString(),
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		CustomerAddress: strings.TrimSpace(req.CustomerAddress),
		CustomerCity:    strings.TrimSpace(req.CustomerCity),
		CustomerNotes:   req.CustomerNotes,
		MainStoreName:   req.MainStoreName,
		Status:          models.StatusPending,
		Items:           make([]models.Item, 0, len(req.Items)),
	}

	// calculate total
	total := 0.0
	for _, item := range req.Items {
		total += float64(item.Quantity) * item.Price
		order.Items = append(order.Items, models.Item{
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			ProductID: item.ProductID,
			MainStore: item.MainStore,
		})
	}
	order.TotalAmount = math.Round(total*100) / 100

	newOrder, err := os.orderRepo.Create(ctx, order)
	if err != nil {
		if errors.Is(err, core.ErrDBConn) {
			mylog.Error("Failed to connect to db", err)
			return models.Order{}, fmt.Errorf("cannot connect to db: %w", err)
		}
		mylog.Error("Failed to save order record in db", err)
		return models.Order{}, fmt.Errorf("cannot save order in db: %w", err)
	}

	publishChange(ctx, os.publisher, os.mylog, models.StatusChange{Order: newOrder, ChangedBy: core.ChangedByIntake})

	mylog.Info("Order created", "order_id", newOrder.ID, "order_code", newOrder.OrderCode, "total_amount", newOrder.TotalAmount)
	return newOrder, nil
}

// ValidateOrder validates an order request against the intake rules.
func (os *OrderService) ValidateOrder(req dto.CreateOrderRequest) error {
	os.mylog.Action("validation_started").Debug("Validating order request")

	if err := validateCustomerName(req.CustomerName); err != nil {
		return fmt.Errorf("%w: invalid customer name: %v", core.ErrValidation, err)
	}
	if err := validatePhone(req.CustomerPhone); err != nil {
		return fmt.Errorf("%w: invalid customer phone: %v", core.ErrValidation, err)
	}
	if n := utf8.RuneCountInString(req.CustomerAddress); n > core.MaxAddressLen {
		return fmt.Errorf("%w: address length: %d, must be at most %d", core.ErrValidation, n, core.MaxAddressLen)
	}
	if n := utf8.RuneCountInString(req.CustomerNotes); n > core.MaxNotesLen {
		return fmt.Errorf("%w: notes length: %d, must be at most %d", core.ErrValidation, n, core.MaxNotesLen)
	}
	if n := utf8.RuneCountInString(req.MainStoreName); n > core.MaxMainStoreNameLen {
		return fmt.Errorf("%w: main store name length: %d, must be at most %d", core.ErrValidation, n, core.MaxMainStoreNameLen)
	}
	if err := validateOrderItems(req.Items); err != nil {
		return fmt.Errorf("%w: invalid order items: %v", core.ErrValidation, err)
	}

	os.mylog.Action("validation_completed").Debug("Order successfully validated")
	return nil
}

func validateCustomerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrFieldIsEmpty
	}

	n := utf8.RuneCountInString(name)
	if n < core.MinCustomerNameLen || n > core.MaxCustomerNameLen {
		return fmt.Errorf("must be in range [%d, %d]", core.MinCustomerNameLen, core.MaxCustomerNameLen)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errors.New("must not contain control characters")
		}
	}
	return nil
}

func validatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return core.ErrFieldIsEmpty
	}

	n := utf8.RuneCountInString(phone)
	if n < core.MinPhoneLen || n > core.MaxPhoneLen {
		return fmt.Errorf("length: %d, must be in range [%d, %d]", n, core.MinPhoneLen, core.MaxPhoneLen)
	}
	for _, r := range phone {
		if (r >= '0' && r <= '9') || strings.ContainsRune(core.AllowedPhoneCharacters, r) {
			continue
		}
		return fmt.Errorf("must contain only digits and `%s`: %s", core.AllowedPhoneCharacters, phone)
	}
	return nil
}

func validateOrderItems(items []dto.Item) error {
	itemsLen := len(items)
	if itemsLen == 0 {
		return core.ErrFieldIsEmpty
	}
	if itemsLen < core.MinItems || itemsLen > core.MaxItems {
		return fmt.Errorf("amount of items: %d, must be in range [%d, %d]", itemsLen, core.MinItems, core.MaxItems)
	}

	for i, item := range items {
		nameLen := utf8.RuneCountInString(item.Name)
		if nameLen < core.MinItemNameLen || nameLen > core.MaxItemNameLen {
			return fmt.Errorf("item %d: name len: %d, must be in range [%d, %d]", i+1, nameLen, core.MinItemNameLen, core.MaxItemNameLen)
		}
		if item.Quantity < core.MinItemQuantity || item.Quantity > core.MaxItemQuantity {
			return fmt.Errorf("item %d: quantity: %d, must be in range [%d, %d]", i+1, item.Quantity, core.MinItemQuantity, core.MaxItemQuantity)
		}
		if math.IsNaN(item.Price) || item.Price < core.MinItemPrice || item.Price > core.MaxItemPrice {
			return fmt.Errorf("item %d: price: %f, must be in range [%.0f, %.0f]", i+1, item.Price, core.MinItemPrice, core.MaxItemPrice)
		}
	}
	return nil
}

// Get returns the order with its assigned store and status history.
func (os *OrderService) Get(ctx context.Context, id string) (models.OrderDetails, error) {
	mylog := os.mylog.Action("get_order")

	if id == "" {
		return models.OrderDetails{}, fmt.Errorf("orderId: %w", core.ErrFieldIsEmpty)
	}
	if err := validateID(id); err != nil {
		return models.OrderDetails{}, fmt.Errorf("orderId %q: %w", id, err)
	}

	var details models.OrderDetails
	err := db.Retry(ctx, db.RetryAttempt, func(ctx context.Context) error {
		order, err := os.orderRepo.Get(ctx, id)
		if err != nil {
			return err
		}
		history, err := os.orderRepo.History(ctx, id)
		if err != nil {
			return err
		}
		details = models.OrderDetails{Order: order, History: history}
		return nil
	})
	if err != nil {
		if !errors.Is(err, core.ErrOrderNotFound) {
			mylog.Error("Failed to load order", err, "order_id", id)
		}
		return models.OrderDetails{}, err
	}

	if details.AssignedStoreID != nil {
		store, err := os.storeRepo.Get(ctx, *details.AssignedStoreID)
		switch {
		case err == nil:
			details.Store = &models.StoreRef{ID: store.ID, Name: store.Name}
		case errors.Is(err, core.ErrStoreNotFound):
			mylog.Warn("Assigned store no longer exists", "order_id", id, "store_id", *details.AssignedStoreID)
		default:
			mylog.Error("Failed to load assigned store", err, "order_id", id)
			return models.OrderDetails{}, err
		}
	}
	if details.History == nil {
		details.History = []models.OrderStatusLog{}
	}
	return details, nil
}

// List returns orders matching the filter, newest first.
func (os *OrderService) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	var orders []models.Order
	err = db.Retry(ctx, db.RetryAttempt, func(ctx context.Context) error {
		var err error
		orders, err = os.orderRepo.List(ctx, filter)
		return err
	})
	if err != nil {
		os.mylog.Action("list_orders").Error("Failed to list orders", err)
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func normalizeFilter(filter models.OrderFilter) (models.OrderFilter, error) {
	if filter.Status != "" && !core.AllowedStatuses[filter.Status] {
		return filter, fmt.Errorf("%w: %s", core.ErrInvalidStatus, filter.Status)
	}
	if filter.StoreID != "" {
		if err := validateID(filter.StoreID); err != nil {
			return filter, fmt.Errorf("store_id %q: %w", filter.StoreID, err)
		}
	}
	if filter.Offset < 0 {
		return filter, fmt.Errorf("%w: offset must not be negative", core.ErrValidation)
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = core.DefaultListLimit
	case filter.Limit > core.MaxListLimit:
		filter.Limit = core.MaxListLimit
	}
	return filter, nil
}

// Stats counts orders per status, optionally scoped to one store.
func (os *OrderService) Stats(ctx context.Context, storeID string) (models.OrderStats, error) {
	if storeID != "" {
		if err := validateID(storeID); err != nil {
			return models.OrderStats{}, fmt.Errorf("store_id %q: %w", storeID, err)
		}
	}

	var stats models.OrderStats
	err := db.Retry(ctx, db.RetryAttempt, func(ctx context.Context) error {
		var err error
		stats, err = os.orderRepo.Stats(ctx, storeID)
		return err
	})
	if err != nil {
		os.mylog.Action("order_stats").Error("Failed to count orders", err, "store_id", storeID)
		return models.OrderStats{}, err
	}
	return stats, nil
}

// StoreStats counts orders per status for every store.
func (os *OrderService) StoreStats(ctx context.Context) ([]models.StoreStats, error) {
	var stats []models.StoreStats
	err := db.Retry(ctx, db.RetryAttempt, func(ctx context.Context) error {
		var err error
		stats, err = os.orderRepo.StatsByStore(ctx)
		return err
	})
	if err != nil {
		os.mylog.Action("store_stats").Error("Failed to count orders per store", err)
		return nil, err
	}
	return stats, nil
}

// UpdateStatus applies a delivery outcome reported for an assigned order.
func (os *OrderService) UpdateStatus(ctx context.Context, req dto.UpdateStatusRequest) (models.Order, error) {
	mylog := os.mylog.Action("update_status")

	if req.OrderID == "" {
		return models.Order{}, fmt.Errorf("orderId: %w", core.ErrFieldIsEmpty)
	}
	if err := validateID(req.OrderID); err != nil {
		return models.Order{}, fmt.Errorf("orderId %q: %w", req.OrderID, err)
	}
	if req.Status == "" {
		return models.Order{}, fmt.Errorf("status: %w", core.ErrFieldIsEmpty)
	}
	if !core.AllowedStatuses[req.Status] {
		return models.Order{}, fmt.Errorf("%w: %s", core.ErrInvalidStatus, req.Status)
	}
	if req.Status == models.StatusPending || req.Status == models.StatusAssigned {
		return models.Order{}, fmt.Errorf("%w: use assignment to set %s", core.ErrInvalidTransition, req.Status)
	}
	changedBy := core.ChangedByAdmin
	if req.StoreID != "" {
		if err := validateID(req.StoreID); err != nil {
			return models.Order{}, fmt.Errorf("store_id %q: %w", req.StoreID, err)
		}
		changedBy = core.ChangedByStorePrefix + req.StoreID
	}
	if n := utf8.RuneCountInString(req.Note); n > core.MaxNotesLen {
		return models.Order{}, fmt.Errorf("%w: note length: %d, must be at most %d", core.ErrValidation, n, core.MaxNotesLen)
	}

	change, err := os.orderRepo.UpdateStatus(ctx, req.OrderID, req.StoreID, req.Status, changedBy, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrOrderNotFound), errors.Is(err, core.ErrInvalidTransition), errors.Is(err, core.ErrOrderNotInStore):
			mylog.Warn("Status update rejected", "order_id", req.OrderID, "status", req.Status, "reason", err.Error())
		default:
			mylog.Error("Failed to update order status", err, "order_id", req.OrderID)
		}
		return models.Order{}, err
	}

	os.metrics.StatusChanged(change.Order.Status)
	publishChange(ctx, os.publisher, os.mylog, change)

	mylog.Info("Order status updated", "order_id", change.Order.ID, "old_status", change.OldStatus, "new_status", change.Order.Status)
	return change.Order, nil
}
