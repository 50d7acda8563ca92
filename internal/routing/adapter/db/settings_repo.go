package db

import (
	"context"
	"errors"
	"fmt"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/domain/models"

	"github.com/jackc/pgx/v5"
)

type SettingsRepo struct {
	db core.IDB
}

func NewSettingsRepo(db core.IDB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

// Get reads the settings row. A missing row means auto-assignment is off.
func (sr *SettingsRepo) Get(ctx context.Context) (models.Settings, error) {
	var s models.Settings
	err := sr.db.Pool().QueryRow(ctx, `SELECT auto_assign_enabled, updated_at FROM settings WHERE id = 1`).
		Scan(&s.AutoAssignEnabled, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Settings{}, nil
		}
		return models.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	return s, nil
}

func (sr *SettingsRepo) SetAutoAssign(ctx context.Context, enabled bool) (models.Settings, error) {
	var s models.Settings
	err := sr.db.Pool().QueryRow(ctx, `
		INSERT INTO settings (id, auto_assign_enabled, updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE
		SET auto_assign_enabled = EXCLUDED.auto_assign_enabled, updated_at = EXCLUDED.updated_at
		RETURNING auto_assign_enabled, updated_at
	`, enabled).Scan(&s.AutoAssignEnabled, &s.UpdatedAt)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to update settings: %w", err)
	}
	return s, nil
}
