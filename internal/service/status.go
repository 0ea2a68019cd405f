package service

import (
	"strings"

	"recon-service/internal/models"
)

// Provider status vocabularies are projected onto the canonical enum here.
// Both maps are total: unrecognized input falls open to pending so an order
// is never silently dropped from the pipeline.

// MapStorefrontFulfillmentStatus projects the storefront fulfillment state
// onto the canonical status. Seeds pending/shipped/delivered only; the
// carrier vocabulary owns the rest of the lifecycle once matched.
func MapStorefrontFulfillmentStatus(sourceStatus string) string {
	switch strings.ToLower(strings.TrimSpace(sourceStatus)) {
	case "fulfilled", "shipped":
		return models.StatusShipped
	case "delivered":
		return models.StatusDelivered
	case "", "null", "unfulfilled", "partial":
		return models.StatusPending
	default:
		return models.StatusPending
	}
}

// MapCarrierStatus projects the carrier's status vocabulary onto the
// canonical status. Once an order is matched, this projection is
// authoritative for its lifecycle.
func MapCarrierStatus(carrierStatus string) string {
	switch strings.ToLower(strings.TrimSpace(carrierStatus)) {
	case "new", "pending", "lead":
		return models.StatusPending
	case "confirmed", "accepted", "validated":
		return models.StatusConfirmed
	case "shipped", "dispatched", "in_transit", "out_for_delivery":
		return models.StatusShipped
	case "delivered", "completed":
		return models.StatusDelivered
	case "returned", "refused", "rejected":
		return models.StatusReturned
	case "cancelled", "canceled", "void":
		return models.StatusCancelled
	default:
		return models.StatusPending
	}
}
