package db

import (
	"context"
	"errors"
	"fmt"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/domain/models"

	"github.com/jackc/pgx/v5"
)

const storeColumns = `id, name, password_hash, created_at, updated_at`

type StoreRepo struct {
	db core.IDB
}

func NewStoreRepo(db core.IDB) *StoreRepo {
	return &StoreRepo{db: db}
}

func scanStore(row pgx.Row) (models.Store, error) {
	var s models.Store
	err := row.Scan(&s.ID, &s.Name, &s.PasswordHash, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (sr *StoreRepo) Create(ctx context.Context, name, passwordHash string) (models.Store, error) {
	s, err := scanStore(sr.db.Pool().QueryRow(ctx, `
		INSERT INTO stores (name, password_hash)
		VALUES ($1, $2)
		RETURNING `+storeColumns, name, passwordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return models.Store{}, core.ErrStoreExists
		}
		return models.Store{}, fmt.Errorf("failed to insert store: %w", err)
	}
	return s, nil
}

func (sr *StoreRepo) Get(ctx context.Context, id string) (models.Store, error) {
	s, err := scanStore(sr.db.Pool().QueryRow(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Store{}, core.ErrStoreNotFound
		}
		return models.Store{}, fmt.Errorf("failed to get store: %w", err)
	}
	return s, nil
}

// List returns stores oldest first.
func (sr *StoreRepo) List(ctx context.Context) ([]models.Store, error) {
	rows, err := sr.db.Pool().Query(ctx, `SELECT `+storeColumns+` FROM stores ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stores: %w", err)
	}
	defer rows.Close()

	stores := []models.Store{}
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}
