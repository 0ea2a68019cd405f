package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"recon-service/internal/models"
	"recon-service/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchEndToEnd(t *testing.T) {
	fs := newFakeStore()
	sf := &fakeStorefront{orders: []provider.StorefrontOrder{
		storefrontOrder(5001, "Maria Silva", "+39 333 1234567", "maria@example.com", fixedNow().Add(-24*time.Hour)),
	}}
	carrier := &fakeCarrier{leads: []models.CarrierLead{
		{
			ID:            "L-77",
			CustomerPhone: "00393331234567",
			CustomerName:  "Maria Silva Santos",
			TrackingCode:  "TRK123",
			Status:        "delivered",
		},
	}}

	importSvc := newTestImport(fs, sf)
	matchSvc := NewMatchService(fs, carrier, nil, nil, nil)

	_, err := importSvc.Run(context.Background(), testTenant)
	require.NoError(t, err)

	result, err := matchSvc.Run(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)

	order := fs.get(models.OrderID(models.DataSourceStorefront, "5001"))
	assert.True(t, order.CarrierImported)
	assert.Equal(t, models.StatusDelivered, order.Status)
	require.NotNil(t, order.TrackingNumber)
	assert.Equal(t, "TRK123", *order.TrackingNumber)
	require.NotNil(t, order.CarrierOrderID)
	assert.Equal(t, "L-77", *order.CarrierOrderID)
	assert.NotNil(t, order.CarrierMatchedAt)
	assert.NotEmpty(t, order.ProviderData, "raw lead kept for audit")
}

func TestMatchTerminalOrdersExcluded(t *testing.T) {
	fs := newFakeStore()
	fs.put(models.Order{
		ID:            models.OrderID(models.DataSourceStorefront, "9001"),
		TenantID:      testTenant.ID,
		DataSource:    models.DataSourceStorefront,
		SourceOrderID: "9001",
		CustomerPhone: "+39 333 1234567",
		Status:        models.StatusDelivered,
	})
	carrier := &fakeCarrier{leads: []models.CarrierLead{
		{ID: "L-1", CustomerPhone: "00393331234567", Status: "shipped"},
	}}
	matchSvc := NewMatchService(fs, carrier, nil, nil, nil)

	result, err := matchSvc.Run(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Matched)
	assert.Equal(t, 0, carrier.calls(), "no candidates means no carrier fetch")

	order := fs.get(models.OrderID(models.DataSourceStorefront, "9001"))
	assert.False(t, order.CarrierImported, "settled order left untouched")
}

func TestMatchIsIdempotentAcrossPasses(t *testing.T) {
	fs := newFakeStore()
	fs.put(models.Order{
		ID:            models.OrderID(models.DataSourceStorefront, "5002"),
		TenantID:      testTenant.ID,
		DataSource:    models.DataSourceStorefront,
		SourceOrderID: "5002",
		CustomerPhone: "+39 333 1234567",
		CustomerName:  "Maria Silva",
		Status:        models.StatusPending,
	})
	carrier := &fakeCarrier{leads: []models.CarrierLead{
		{ID: "L-2", CustomerPhone: "3331234567", TrackingCode: "TRK9", Status: "confirmed"},
	}}
	matchSvc := NewMatchService(fs, carrier, nil, nil, nil)

	result, err := matchSvc.Run(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)

	// Matched order is out of the candidate set; a second pass does nothing.
	result, err = matchSvc.Run(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Matched)
	assert.Equal(t, 1, carrier.calls())
}

func TestMatchNoMatchLeavesOrderForLaterPass(t *testing.T) {
	fs := newFakeStore()
	fs.put(models.Order{
		ID:            models.OrderID(models.DataSourceStorefront, "5003"),
		TenantID:      testTenant.ID,
		DataSource:    models.DataSourceStorefront,
		SourceOrderID: "5003",
		CustomerPhone: "+39 333 9999999",
		CustomerName:  "Carlo Verdi",
		Status:        models.StatusPending,
	})
	carrier := &fakeCarrier{leads: []models.CarrierLead{
		{ID: "L-3", CustomerPhone: "00393331234567", CustomerName: "Maria Silva Santos"},
	}}
	matchSvc := NewMatchService(fs, carrier, nil, nil, nil)

	result, err := matchSvc.Run(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Matched)

	order := fs.get(models.OrderID(models.DataSourceStorefront, "5003"))
	assert.False(t, order.CarrierImported)
	assert.Equal(t, models.StatusPending, order.Status)
}

func TestMatchCarrierFailureReturnsError(t *testing.T) {
	fs := newFakeStore()
	fs.put(models.Order{
		ID:            models.OrderID(models.DataSourceStorefront, "5004"),
		TenantID:      testTenant.ID,
		DataSource:    models.DataSourceStorefront,
		SourceOrderID: "5004",
		CustomerPhone: "+39 333 1234567",
		Status:        models.StatusPending,
	})
	carrier := &fakeCarrier{err: errors.New("carrier down")}
	matchSvc := NewMatchService(fs, carrier, nil, nil, nil)

	result, err := matchSvc.Run(context.Background(), testTenant)
	assert.Error(t, err)
	assert.Equal(t, 0, result.Matched)

	order := fs.get(models.OrderID(models.DataSourceStorefront, "5004"))
	assert.False(t, order.CarrierImported, "a failed fetch corrupts nothing")
}
