package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/domain/models"

	"github.com/jackc/pgx/v5"
)

const (
	orderColumns = `id, order_code, customer_name, customer_phone, customer_address, customer_city,
		customer_notes, main_store_name, assigned_store_id, order_status, total_amount, items,
		created_at, updated_at`

	// serializes order code generation across service instances
	orderCodeLockKey int64 = 0x6f636f64
)

type OrderRepo struct {
	db core.IDB
}

func NewOrderRepo(db core.IDB) *OrderRepo {
	return &OrderRepo{db: db}
}

func scanOrder(row pgx.Row) (models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID,
		&o.OrderCode,
		&o.CustomerName,
		&o.CustomerPhone,
		&o.CustomerAddress,
		&o.CustomerCity,
		&o.CustomerNotes,
		&o.MainStoreName,
		&o.AssignedStoreID,
		&o.Status,
		&o.TotalAmount,
		&o.Items,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return models.Order{}, err
	}
	if o.Items == nil {
		o.Items = []models.Item{}
	}
	return o, nil
}

func (or *OrderRepo) Create(ctx context.Context, order models.Order) (models.Order, error) {
	if err := or.db.IsAlive(ctx); err != nil {
		return models.Order{}, core.ErrDBConn
	}

	tx, err := or.db.Pool().Begin(ctx)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, orderCodeLockKey); err != nil {
		return models.Order{}, fmt.Errorf("failed to lock order codes: %w", err)
	}

	// Order codes are ORD_YYYYMMDD_NNN, numbered per UTC day starting from 1
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	var orderCount int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE created_at >= $1 AND created_at < $2
	`, dayStart, dayStart.Add(24*time.Hour)).Scan(&orderCount)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to count today's orders: %w", err)
	}
	order.OrderCode = fmt.Sprintf("ORD_%s_%03d", dayStart.Format("20060102"), orderCount+1)

	if order.Items == nil {
		order.Items = []models.Item{}
	}
	newOrder, err := scanOrder(tx.QueryRow(ctx, `
		INSERT INTO orders (
			id,
			order_code,
			customer_name,
			customer_phone,
			customer_address,
			customer_city,
			customer_notes,
			main_store_name,
			order_status,
			total_amount,
			items
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+orderColumns,
		order.ID,
		order.OrderCode,
		order.CustomerName,
		order.CustomerPhone,
		order.CustomerAddress,
		order.CustomerCity,
		order.CustomerNotes,
		order.MainStoreName,
		models.StatusPending,
		order.TotalAmount,
		order.Items,
	))
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	if err := insertStatusLog(ctx, tx, newOrder.ID, newOrder.Status, core.ChangedByIntake, ""); err != nil {
		return models.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Order{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return newOrder, nil
}

func (or *OrderRepo) Get(ctx context.Context, id string) (models.Order, error) {
	o, err := scanOrder(or.db.Pool().QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, core.ErrOrderNotFound
		}
		return models.Order{}, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (or *OrderRepo) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("order_status = $%d", len(args)))
	}
	if filter.StoreID != "" {
		args = append(args, filter.StoreID)
		where = append(where, fmt.Sprintf("assigned_store_id = $%d", len(args)))
	}

	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, filter.Offset)
	q += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return or.queryOrders(ctx, q, args...)
}

func (or *OrderRepo) ListUnassigned(ctx context.Context) ([]models.Order, error) {
	return or.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE assigned_store_id IS NULL AND order_status = $1
		ORDER BY created_at, id
	`, models.StatusPending)
}

func (or *OrderRepo) queryOrders(ctx context.Context, q string, args ...any) ([]models.Order, error) {
	rows, err := or.db.Pool().Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	return orders, nil
}

func (or *OrderRepo) Stats(ctx context.Context, storeID string) (models.OrderStats, error) {
	q := `SELECT order_status, COUNT(*) FROM orders GROUP BY order_status`
	var args []any
	if storeID != "" {
		q = `SELECT order_status, COUNT(*) FROM orders WHERE assigned_store_id = $1 GROUP BY order_status`
		args = append(args, storeID)
	}

	rows, err := or.db.Pool().Query(ctx, q, args...)
	if err != nil {
		return models.OrderStats{}, fmt.Errorf("failed to count orders: %w", err)
	}
	defer rows.Close()

	var stats models.OrderStats
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return models.OrderStats{}, fmt.Errorf("failed to scan order count: %w", err)
		}
		stats.Add(status, n)
	}
	return stats, rows.Err()
}

func (or *OrderRepo) StatsByStore(ctx context.Context) ([]models.StoreStats, error) {
	rows, err := or.db.Pool().Query(ctx, `
		SELECT s.id, s.name, o.order_status, COUNT(o.id)
		FROM stores s
		LEFT JOIN orders o ON o.assigned_store_id = s.id
		GROUP BY s.id, s.name, o.order_status
		ORDER BY s.name, s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders per store: %w", err)
	}
	defer rows.Close()

	out := []models.StoreStats{}
	for rows.Next() {
		var (
			id, name string
			status   *string
			n        int
		)
		if err := rows.Scan(&id, &name, &status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan store count: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].StoreID != id {
			out = append(out, models.StoreStats{StoreID: id, StoreName: name})
		}
		if status != nil {
			out[len(out)-1].Add(*status, n)
		}
	}
	return out, rows.Err()
}

func (or *OrderRepo) History(ctx context.Context, id string) ([]models.OrderStatusLog, error) {
	rows, err := or.db.Pool().Query(ctx, `
		SELECT order_id, status, changed_by, changed_at, note
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query status log: %w", err)
	}
	defer rows.Close()

	history := []models.OrderStatusLog{}
	for rows.Next() {
		var l models.OrderStatusLog
		if err := rows.Scan(&l.OrderID, &l.Status, &l.ChangedBy, &l.ChangedAt, &l.Note); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		history = append(history, l)
	}
	return history, rows.Err()
}

func (or *OrderRepo) Assign(ctx context.Context, orderID, storeID, changedBy string, onlyUnassigned bool) (models.StatusChange, error) {
	tx, err := or.db.Pool().Begin(ctx)
	if err != nil {
		return models.StatusChange{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return models.StatusChange{}, err
	}
	if onlyUnassigned && !current.IsUnassigned() {
		return models.StatusChange{}, core.ErrAlreadyAssigned
	}
	if current.Status == models.StatusDelivered || current.Status == models.StatusReturned {
		return models.StatusChange{}, fmt.Errorf("%w: order is %s", core.ErrInvalidTransition, current.Status)
	}

	q := `
		UPDATE orders
		SET assigned_store_id = $2, order_status = $3, updated_at = now()
		WHERE id = $1`
	if onlyUnassigned {
		q += ` AND assigned_store_id IS NULL AND order_status = $4`
	} else {
		q += ` AND order_status IN ($3, $4)`
	}

	updated, err := scanOrder(tx.QueryRow(ctx, q+` RETURNING `+orderColumns, orderID, storeID, models.StatusAssigned, models.StatusPending))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows) && onlyUnassigned:
			return models.StatusChange{}, core.ErrAlreadyAssigned
		case errors.Is(err, pgx.ErrNoRows):
			return models.StatusChange{}, core.ErrInvalidTransition
		case isForeignKeyViolation(err):
			return models.StatusChange{}, core.ErrStoreNotFound
		}
		return models.StatusChange{}, fmt.Errorf("failed to assign order: %w", err)
	}

	if err := insertStatusLog(ctx, tx, orderID, updated.Status, changedBy, ""); err != nil {
		return models.StatusChange{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.StatusChange{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return models.StatusChange{Order: updated, OldStatus: current.Status, ChangedBy: changedBy}, nil
}

func (or *OrderRepo) UpdateStatus(ctx context.Context, orderID, storeID, status, changedBy, note string) (models.StatusChange, error) {
	tx, err := or.db.Pool().Begin(ctx)
	if err != nil {
		return models.StatusChange{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := lockOrder(ctx, tx, orderID)
	if err != nil {
		return models.StatusChange{}, err
	}
	if storeID != "" && (current.AssignedStoreID == nil || *current.AssignedStoreID != storeID) {
		return models.StatusChange{}, core.ErrOrderNotInStore
	}
	if !core.CanTransition(current.Status, status) {
		return models.StatusChange{}, fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, current.Status, status)
	}

	updated, err := scanOrder(tx.QueryRow(ctx, `
		UPDATE orders SET order_status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, orderID, status))
	if err != nil {
		return models.StatusChange{}, fmt.Errorf("failed to update order status: %w", err)
	}

	if err := insertStatusLog(ctx, tx, orderID, status, changedBy, note); err != nil {
		return models.StatusChange{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.StatusChange{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return models.StatusChange{Order: updated, OldStatus: current.Status, ChangedBy: changedBy}, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (models.Order, error) {
	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, core.ErrOrderNotFound
		}
		return models.Order{}, fmt.Errorf("failed to lock order: %w", err)
	}
	return o, nil
}

func insertStatusLog(ctx context.Context, tx pgx.Tx, orderID, status, changedBy, note string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_status_log (
			order_id,
			status,
			changed_by,
			note
		)
		VALUES ($1, $2, $3, $4)
	`, orderID, status, changedBy, note)
	if err != nil {
		return fmt.Errorf("failed to insert order status log: %w", err)
	}
	return nil
}
