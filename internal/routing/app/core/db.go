package core

import (
	"context"

	"order-router/internal/routing/domain/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type IDB interface {
	Pool() *pgxpool.Pool
	IsAlive(ctx context.Context) error
	Close() error
}

type IOrderRepo interface {
	Create(ctx context.Context, order models.Order) (models.Order, error)
	Get(ctx context.Context, id string) (models.Order, error)
	List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	ListUnassigned(ctx context.Context) ([]models.Order, error)
	Stats(ctx context.Context, storeID string) (models.OrderStats, error)
	StatsByStore(ctx context.Context) ([]models.StoreStats, error)
	History(ctx context.Context, id string) ([]models.OrderStatusLog, error)

	// Assign sets assigned_store_id and status "assigned" in one statement
	// and logs the change. With onlyUnassigned the update only applies to a
	// pending order with no store, otherwise ErrAlreadyAssigned.
	Assign(ctx context.Context, orderID, storeID, changedBy string, onlyUnassigned bool) (models.StatusChange, error)
	// UpdateStatus applies a store transition and logs it. When storeID is
	// not empty the order must belong to that store.
	UpdateStatus(ctx context.Context, orderID, storeID, status, changedBy, note string) (models.StatusChange, error)
}

type IStoreRepo interface {
	Create(ctx context.Context, name, passwordHash string) (models.Store, error)
	Get(ctx context.Context, id string) (models.Store, error)
	List(ctx context.Context) ([]models.Store, error)
}

type ISettingsRepo interface {
	Get(ctx context.Context) (models.Settings, error)
	SetAutoAssign(ctx context.Context, enabled bool) (models.Settings, error)
}

// ILocker guards a whole auto-assignment run across processes.
type ILocker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}
