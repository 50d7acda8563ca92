package services

import (
	"context"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/domain/models"
	"order-router/internal/xpkg/db"
	"order-router/internal/xpkg/logger"
)

type SettingsService struct {
	settingsRepo core.ISettingsRepo
	mylog        logger.Logger
}

func NewSettingsService(settingsRepo core.ISettingsRepo, mylog logger.Logger) *SettingsService {
	return &SettingsService{
		settingsRepo: settingsRepo,
		mylog:        mylog,
	}
}

func (ss *SettingsService) Get(ctx context.Context) (models.Settings, error) {
	var settings models.Settings
	err := db.Retry(ctx, db.RetryAttempt, func(ctx context.Context) error {
		var err error
		settings, err = ss.settingsRepo.Get(ctx)
		return err
	})
	if err != nil {
		ss.mylog.Action("get_settings").Error("Failed to read settings", err)
		return models.Settings{}, err
	}
	return settings, nil
}

func (ss *SettingsService) SetAutoAssign(ctx context.Context, enabled bool) (models.Settings, error) {
	mylog := ss.mylog.Action("set_auto_assign")

	settings, err := ss.settingsRepo.SetAutoAssign(ctx, enabled)
	if err != nil {
		mylog.Error("Failed to update auto-assign setting", err, "enabled", enabled)
		return models.Settings{}, err
	}
	mylog.Info("Auto-assign setting updated", "enabled", settings.AutoAssignEnabled)
	return settings, nil
}
