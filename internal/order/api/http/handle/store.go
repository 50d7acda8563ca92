package handle

import (
	"context"
	"net/http"
	"time"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/app/services"
	"order-router/internal/routing/domain/dto"
	"order-router/internal/xpkg/logger"
)

type StoreHandler struct {
	storeService *services.StoreService
	mylog        logger.Logger
}

func NewStoreHandler(storeService *services.StoreService, mylog logger.Logger) *StoreHandler {
	return &StoreHandler{
		storeService: storeService,
		mylog:        mylog,
	}
}

// Create handles POST /stores.
func (sh *StoreHandler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.CreateStoreRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		store, err := sh.storeService.Create(ctx, req)
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, http.StatusCreated, dto.DataResponse{Success: true, Data: store})
	}
}

// List handles GET /stores.
func (sh *StoreHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		stores, err := sh.storeService.List(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.DataResponse{Success: true, Data: stores})
	}
}
