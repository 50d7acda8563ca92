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

type AssignHandler struct {
	assignService *services.AssignService
	mylog         logger.Logger
}

func NewAssignHandler(assignService *services.AssignService, mylog logger.Logger) *AssignHandler {
	return &AssignHandler{
		assignService: assignService,
		mylog:         mylog,
	}
}

// Assign handles POST /assign-order.
func (ah *AssignHandler) Assign() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mylog := logger.FromContext(r.Context(), ah.mylog)

		var req dto.AssignRequest
		if err := decodeJSON(r, &req); err != nil {
			mylog.Action("parse_failed").Warn("Failed to parse assign request", "error", err.Error())
			jsonError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		order, err := ah.assignService.Assign(ctx, req)
		if err != nil {
			writeError(w, err)
			return
		}

		jsonResponse(w, http.StatusOK, dto.AssignResponse{
			Success: true,
			Message: "Order assigned successfully",
			Data:    order,
		})
	}
}

// AutoAssign handles POST /auto-assign-orders. The request body is ignored.
func (ah *AssignHandler) AutoAssign() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		result, err := ah.assignService.AutoAssign(ctx, core.ChangedByAutoAssign)
		if err != nil {
			writeError(w, err)
			return
		}

		if !result.Enabled {
			jsonResponse(w, http.StatusOK, dto.AutoAssignResponse{
				Success: false,
				Message: "Auto-assignment is disabled",
			})
			return
		}

		jsonResponse(w, http.StatusOK, dto.AutoAssignResponse{
			Success:        true,
			Message:        fmt.Sprintf("Successfully assigned %d orders", result.Assigned),
			AssignedCount:  result.Assigned,
			UnmatchedCount: result.Unmatched,
			ErrorCount:     result.ErrorCount(),
			Errors:         result.Errors,
		})
	}
}
