package models

import "time"

// Event types published for downstream billing/wallet consumers
const (
	EventTypeOrderImported      = "ORDER_IMPORTED"
	EventTypeOrderMatched       = "ORDER_MATCHED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderImportedEvent published when a storefront order is first imported
type OrderImportedEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	TenantID      int64  `json:"tenant_id"`
	DataSource    string `json:"data_source"`
	SourceOrderID string `json:"source_order_id"`
	Total         string `json:"total"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
}

// OrderMatchedEvent published when an order is matched to a carrier lead
type OrderMatchedEvent struct {
	BaseEvent
	OrderID        string `json:"order_id"`
	TenantID       int64  `json:"tenant_id"`
	CarrierOrderID string `json:"carrier_order_id"`
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
}

// OrderStatusChangedEvent published when the canonical status moves
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID    string `json:"order_id"`
	TenantID   int64  `json:"tenant_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}
