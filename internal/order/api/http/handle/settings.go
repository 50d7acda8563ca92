package handle

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/app/services"
	"order-router/internal/routing/domain/dto"
	"order-router/internal/xpkg/logger"
)

type SettingsHandler struct {
	settingsService *services.SettingsService
	mylog           logger.Logger
}

func NewSettingsHandler(settingsService *services.SettingsService, mylog logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
		mylog:           mylog,
	}
}

// Get handles GET /settings.
func (sh *SettingsHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		settings, err := sh.settingsService.Get(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.DataResponse{Success: true, Data: settings})
	}
}

// SetAutoAssign handles PUT /settings/auto-assign.
func (sh *SettingsHandler) SetAutoAssign() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.SetAutoAssignRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}
		if req.Enabled == nil {
			jsonError(w, http.StatusBadRequest, fmt.Errorf("enabled: %w", core.ErrFieldIsEmpty))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		settings, err := sh.settingsService.SetAutoAssign(ctx, *req.Enabled)
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.DataResponse{Success: true, Data: settings})
	}
}
