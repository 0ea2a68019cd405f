package service

import (
	"context"

	"recon-service/internal/models"
	"recon-service/internal/provider"
)

// OrderStore is the slice of the store the sync stages need.
type OrderStore interface {
	UpsertOrder(ctx context.Context, order *models.Order) (bool, error)
	GetUnmatchedOrders(ctx context.Context, tenantID int64) ([]models.Order, error)
	GetMatchedActiveOrders(ctx context.Context, tenantID int64) ([]models.Order, error)
	ApplyCarrierMatch(ctx context.Context, orderID string, carrierOrderID, trackingNumber, status string, providerData []byte) error
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
}

// StorefrontAPI lists orders from the storefront platform.
type StorefrontAPI interface {
	ListOrders(ctx context.Context, creds provider.StorefrontCredentials, query provider.OrderQuery) ([]provider.StorefrontOrder, error)
}

// CarrierAPI reads leads from the carrier platform.
type CarrierAPI interface {
	ListLeadsWithFallback(ctx context.Context, apiKey string, countryFilters []string) ([]models.CarrierLead, error)
	GetLeadStatus(ctx context.Context, apiKey, leadID string) (*provider.LeadDetail, error)
}

// Events publishes reconciliation events. A nil publisher disables events.
type Events interface {
	PublishOrderImported(ctx context.Context, event *models.OrderImportedEvent) error
	PublishOrderMatched(ctx context.Context, event *models.OrderMatchedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}
