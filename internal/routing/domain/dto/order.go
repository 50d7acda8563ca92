package dto

import "time"

type AssignRequest struct {
	OrderID string `json:"orderId"`
	StoreID string `json:"storeId"`
}

type GetOrderRequest struct {
	OrderID string `json:"orderId"`
}

type CreateOrderRequest struct {
	CustomerName    string `json:"customer_name"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerAddress string `json:"customer_address"`
	CustomerCity    string `json:"customer_city"`
	CustomerNotes   string `json:"customer_notes"`
	MainStoreName   string `json:"main_store_name"`
	Items           []Item `json:"items"`
}

type Item struct {
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	ProductID int64   `json:"product_id"`
	MainStore string  `json:"main_store"`
}

type UpdateStatusRequest struct {
	OrderID string `json:"-"`
	Status  string `json:"status"`
	StoreID string `json:"store_id"`
	Note    string `json:"note"`
}

type CreateStoreRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type SetAutoAssignRequest struct {
	Enabled *bool `json:"enabled"`
}

// AutoAssignResult aggregates one auto-assignment run.
type AutoAssignResult struct {
	Enabled   bool
	Assigned  int
	Unmatched int
	Errors    []string
}

func (r AutoAssignResult) ErrorCount() int {
	return len(r.Errors)
}

type AssignResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type AutoAssignResponse struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	AssignedCount  int      `json:"assigned_count"`
	UnmatchedCount int      `json:"unmatched_count"`
	ErrorCount     int      `json:"error_count"`
	Errors         []string `json:"errors,omitempty"`
}

type GetOrderResponse struct {
	Success bool `json:"success"`
	Order   any  `json:"order"`
}

type DataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// StatusUpdateMessage is published on every order status change.
type StatusUpdateMessage struct {
	OrderID   string    `json:"order_id"`
	OrderCode string    `json:"order_code"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	StoreID   string    `json:"store_id,omitempty"`
	ChangedBy string    `json:"changed_by"`
	Timestamp time.Time `json:"timestamp"`
}
