package store

import (
	"context"
	"database/sql"
	"fmt"

	"recon-service/internal/models"

	"github.com/lib/pq"
)

// UpsertOrder inserts a canonical order or, when a row for the same
// (tenant_id, data_source, source_order_id) exists, overwrites its
// source-derived fields. Carrier-match columns are never touched here; the
// match stage owns them. Returns true when a new row was created.
func (s *Store) UpsertOrder(ctx context.Context, order *models.Order) (bool, error) {
	query := `
		INSERT INTO orders (
			id, tenant_id, data_source, source_order_id, source_order_number,
			customer_name, customer_phone, customer_email,
			customer_address, customer_city, customer_state, customer_country, customer_zip,
			total, currency, payment_status, products,
			status, raw_source_data, order_date, last_status_update, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, NOW(), NOW()
		)
		ON CONFLICT (tenant_id, data_source, source_order_id) DO UPDATE SET
			source_order_number = EXCLUDED.source_order_number,
			customer_name = EXCLUDED.customer_name,
			customer_phone = EXCLUDED.customer_phone,
			customer_email = EXCLUDED.customer_email,
			customer_address = EXCLUDED.customer_address,
			customer_city = EXCLUDED.customer_city,
			customer_state = EXCLUDED.customer_state,
			customer_country = EXCLUDED.customer_country,
			customer_zip = EXCLUDED.customer_zip,
			total = EXCLUDED.total,
			currency = EXCLUDED.currency,
			payment_status = EXCLUDED.payment_status,
			products = EXCLUDED.products,
			status = CASE WHEN orders.carrier_imported THEN orders.status ELSE EXCLUDED.status END,
			raw_source_data = EXCLUDED.raw_source_data,
			updated_at = NOW()
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	err := s.db.GetContext(ctx, &inserted, query,
		order.ID, order.TenantID, order.DataSource, order.SourceOrderID, order.SourceOrderNumber,
		order.CustomerName, order.CustomerPhone, order.CustomerEmail,
		order.CustomerAddress, order.CustomerCity, order.CustomerState, order.CustomerCountry, order.CustomerZip,
		order.Total, order.Currency, order.PaymentStatus, order.Products,
		order.Status, order.RawSourceData, order.OrderDate)
	if err != nil {
		return false, fmt.Errorf("failed to upsert order %s: %w", order.SourceOrderID, err)
	}
	return inserted, nil
}

// GetOrderByID retrieves an order by internal ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetUnmatchedOrders retrieves match candidates: storefront orders not yet
// matched to a carrier lead and not in a terminal status. Terminal orders are
// settled and stay out of the candidate set even if carrier_imported is false.
func (s *Store) GetUnmatchedOrders(ctx context.Context, tenantID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE tenant_id = $1
		  AND data_source = $2
		  AND carrier_imported = false
		  AND status <> ALL($3)
		ORDER BY order_date DESC`,
		tenantID, models.DataSourceStorefront, pq.Array(models.TerminalStatuses))
	return orders, err
}

// ApplyCarrierMatch writes carrier fields and the projected status onto an
// order. Writing the same match twice is a no-op in effect.
func (s *Store) ApplyCarrierMatch(ctx context.Context, orderID string, carrierOrderID, trackingNumber, status string, providerData []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			carrier_imported = true,
			carrier_matched_at = COALESCE(carrier_matched_at, NOW()),
			carrier_order_id = $2,
			tracking_number = $3,
			status = $4,
			provider_data = $5,
			last_status_update = NOW(),
			updated_at = NOW()
		WHERE id = $1`,
		orderID, carrierOrderID, trackingNumber, status, providerData)
	return err
}

// GetMatchedActiveOrders retrieves orders already matched to a carrier lead
// whose status is not yet terminal. These are the rows the status projection
// pass refreshes until they settle.
func (s *Store) GetMatchedActiveOrders(ctx context.Context, tenantID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE tenant_id = $1
		  AND carrier_imported = true
		  AND carrier_order_id IS NOT NULL
		  AND status <> ALL($2)
		ORDER BY order_date DESC`,
		tenantID, pq.Array(models.TerminalStatuses))
	return orders, err
}

// UpdateOrderStatus updates the canonical status of an order
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, last_status_update = NOW(), updated_at = NOW()
		WHERE id = $1`,
		orderID, status)
	return err
}

// GetOrdersByTenant retrieves orders for a tenant, newest first
func (s *Store) GetOrdersByTenant(ctx context.Context, tenantID int64, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE tenant_id = $1 ORDER BY order_date DESC LIMIT $2",
		tenantID, limit)
	return orders, err
}
