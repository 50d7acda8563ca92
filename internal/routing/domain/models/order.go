package models

import "time"

const (
	StatusPending   = "pending"
	StatusAssigned  = "assigned"
	StatusDelivered = "delivered"
	StatusReturned  = "returned"
)

type Order struct {
	ID              string    `json:"id"`
	OrderCode       string    `json:"order_code"`
	CustomerName    string    `json:"customer_name"`
	CustomerPhone   string    `json:"customer_phone"`
	CustomerAddress string    `json:"customer_address"`
	CustomerCity    string    `json:"customer_city"`
	CustomerNotes   string    `json:"customer_notes"`
	MainStoreName   string    `json:"main_store_name"`
	AssignedStoreID *string   `json:"assigned_store_id"`
	Status          string    `json:"order_status"`
	TotalAmount     float64   `json:"total_amount"`
	Items           []Item    `json:"items"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsUnassigned reports whether auto-assignment may still route the order.
func (o Order) IsUnassigned() bool {
	return o.AssignedStoreID == nil && o.Status == StatusPending
}

type Item struct {
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	ProductID int64   `json:"product_id,omitempty"`
	MainStore string  `json:"main_store,omitempty"`
}

type OrderStatusLog struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
	Note      string    `json:"note,omitempty"`
}

// OrderDetails is an order together with its store and status history.
type OrderDetails struct {
	Order
	Store   *StoreRef        `json:"store"`
	History []OrderStatusLog `json:"history"`
}

type StoreRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StatusChange is the outcome of a status transition.
type StatusChange struct {
	Order     Order
	OldStatus string
	ChangedBy string
}

type OrderFilter struct {
	Status  string
	StoreID string
	Limit   int
	Offset  int
}

type OrderStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Assigned  int `json:"assigned"`
	Delivered int `json:"delivered"`
	Returned  int `json:"returned"`
}

// Add counts n orders with the given status.
func (s *OrderStats) Add(status string, n int) {
	s.Total += n
	switch status {
	case StatusPending:
		s.Pending += n
	case StatusAssigned:
		s.Assigned += n
	case StatusDelivered:
		s.Delivered += n
	case StatusReturned:
		s.Returned += n
	}
}

// StoreStats are per store counters used by the report.
type StoreStats struct {
	StoreID   string
	StoreName string
	OrderStats
}
