package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Canonical order statuses. Every downstream consumer reads Status and
// nothing else; provider vocabularies are projected onto this set.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
	StatusReturned  = "returned"
	StatusCancelled = "cancelled"
)

// Data sources for canonical orders
const (
	DataSourceStorefront = "storefront"
	DataSourceManual     = "manual"
)

// TerminalStatuses are settled states. Orders in these states are excluded
// from carrier matching and never mutated again by the sync subsystem.
var TerminalStatuses = []string{StatusDelivered, StatusCancelled, StatusReturned}

// IsTerminal reports whether a canonical status is settled.
func IsTerminal(status string) bool {
	for _, s := range TerminalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Order is the canonical record, one row per real-world order.
type Order struct {
	ID                string          `db:"id" json:"id"`
	TenantID          int64           `db:"tenant_id" json:"tenant_id"`
	DataSource        string          `db:"data_source" json:"data_source"`
	SourceOrderID     string          `db:"source_order_id" json:"source_order_id"`
	SourceOrderNumber string          `db:"source_order_number" json:"source_order_number"`
	CustomerName      string          `db:"customer_name" json:"customer_name"`
	CustomerPhone     string          `db:"customer_phone" json:"customer_phone"`
	CustomerEmail     string          `db:"customer_email" json:"customer_email"`
	CustomerAddress   string          `db:"customer_address" json:"customer_address"`
	CustomerCity      string          `db:"customer_city" json:"customer_city"`
	CustomerState     string          `db:"customer_state" json:"customer_state"`
	CustomerCountry   string          `db:"customer_country" json:"customer_country"`
	CustomerZip       string          `db:"customer_zip" json:"customer_zip"`
	Total             string          `db:"total" json:"total"`
	Currency          string          `db:"currency" json:"currency"`
	PaymentStatus     string          `db:"payment_status" json:"payment_status"`
	Products          json.RawMessage `db:"products" json:"products,omitempty"`
	Status            string          `db:"status" json:"status"`
	CarrierImported   bool            `db:"carrier_imported" json:"carrier_imported"`
	CarrierMatchedAt  *time.Time      `db:"carrier_matched_at" json:"carrier_matched_at,omitempty"`
	CarrierOrderID    *string         `db:"carrier_order_id" json:"carrier_order_id,omitempty"`
	TrackingNumber    *string         `db:"tracking_number" json:"tracking_number,omitempty"`
	ProviderData      json.RawMessage `db:"provider_data" json:"provider_data,omitempty"`
	RawSourceData     json.RawMessage `db:"raw_source_data" json:"-"`
	OrderDate         time.Time       `db:"order_date" json:"order_date"`
	LastStatusUpdate  time.Time       `db:"last_status_update" json:"last_status_update"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// orderNamespace seeds deterministic order ids so re-imports of the same
// source order always produce the same internal id.
var orderNamespace = uuid.MustParse("7f1a3c52-9b4e-4d6a-8e2f-0c5d713a9b10")

// OrderID derives the stable internal id for a source order.
func OrderID(dataSource, sourceOrderID string) string {
	return uuid.NewSHA1(orderNamespace, []byte(dataSource+":"+sourceOrderID)).String()
}

// Tenant holds one operation's provider credentials.
type Tenant struct {
	ID              int64     `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	ShopDomain      string    `db:"shop_domain" json:"shop_domain"`
	StorefrontToken string    `db:"storefront_token" json:"-"`
	CarrierAPIKey   string    `db:"carrier_api_key" json:"-"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// CarrierLead is a transient record from the carrier platform. It is fetched
// fresh on every match pass and never cached across runs; the raw payload is
// kept on the matched order as provider_data.
type CarrierLead struct {
	ID            string `json:"id"`
	CustomerPhone string `json:"phone"`
	CustomerName  string `json:"name"`
	TrackingCode  string `json:"tracking_code"`
	Status        string `json:"status"`
	Country       string `json:"country"`
}

// Sync domains for run telemetry and locking
const (
	SyncDomainImport = "storefront-import"
	SyncDomainMatch  = "carrier-match"
	SyncDomainStatus = "status-projection"
)

// SyncRun is one stage execution for one tenant, kept for observability and
// pruned after the retention window.
type SyncRun struct {
	ID         int64      `db:"id" json:"id"`
	TenantID   int64      `db:"tenant_id" json:"tenant_id"`
	Domain     string     `db:"domain" json:"domain"`
	Found      int        `db:"found" json:"found"`
	Processed  int        `db:"processed" json:"processed"`
	Succeeded  int        `db:"succeeded" json:"succeeded"`
	Error      string     `db:"error" json:"error,omitempty"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}
