package handle

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/app/services"
	"order-router/internal/routing/domain/dto"
	"order-router/internal/routing/domain/models"
	"order-router/internal/xpkg/logger"
)

type OrderHandler struct {
	orderService *services.OrderService
	mylog        logger.Logger
}

func NewOrderHandler(orderService *services.OrderService, mylog logger.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		mylog:        mylog,
	}
}

// Create handles POST /orders.
func (oh *OrderHandler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mylog := logger.FromContext(r.Context(), oh.mylog)

		var req dto.CreateOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			mylog.Action("parse_failed").Warn("Failed to parse order", "error", err.Error())
			jsonError(w, http.StatusBadRequest, err)
			return
		}
		mylog.Action("received").Debug("Received order", "customer_name", req.CustomerName, "main_store_name", req.MainStoreName, "number_of_items", len(req.Items))

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		order, err := oh.orderService.Create(ctx, req)
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, http.StatusCreated, dto.DataResponse{Success: true, Data: order})
	}
}

// Get handles POST /get-order.
func (oh *OrderHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.GetOrderRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		details, err := oh.orderService.Get(ctx, req.OrderID)
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.GetOrderResponse{Success: true, Order: details})
	}
}

// List handles GET /orders?status=&store_id=&limit=&offset=.
func (oh *OrderHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := models.OrderFilter{
			Status:  q.Get("status"),
			StoreID: q.Get("store_id"),
		}

		var err error
		if filter.Limit, err = intParam(q.Get("limit")); err != nil {
			jsonError(w, http.StatusBadRequest, fmt.Errorf("limit: %w", err))
			return
		}
		if filter.Offset, err = intParam(q.Get("offset")); err != nil {
			jsonError(w, http.StatusBadRequest, fmt.Errorf("offset: %w", err))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		orders, err := oh.orderService.List(ctx, filter)
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.DataResponse{Success: true, Data: orders})
	}
}

// Stats handles GET /orders/stats?store_id=.
func (oh *OrderHandler) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		stats, err := oh.orderService.Stats(ctx, r.URL.Query().Get("store_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.DataResponse{Success: true, Data: stats})
	}
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (oh *OrderHandler) UpdateStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.UpdateStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, err)
			return
		}
		req.OrderID = r.PathValue("id")

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		order, err := oh.orderService.UpdateStatus(ctx, req)
		if err != nil {
			writeError(w, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.DataResponse{Success: true, Data: order})
	}
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: not a number: %q", core.ErrValidation, s)
	}
	return n, nil
}
