package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"recon-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEvents captures published status transitions.
type recordingEvents struct {
	mu      sync.Mutex
	changes []models.OrderStatusChangedEvent
}

func (r *recordingEvents) PublishOrderImported(_ context.Context, _ *models.OrderImportedEvent) error {
	return nil
}

func (r *recordingEvents) PublishOrderMatched(_ context.Context, _ *models.OrderMatchedEvent) error {
	return nil
}

func (r *recordingEvents) PublishOrderStatusChanged(_ context.Context, event *models.OrderStatusChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, *event)
	return nil
}

func (r *recordingEvents) statusChanges() []models.OrderStatusChangedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.OrderStatusChangedEvent(nil), r.changes...)
}

func matchedOrder(sourceID, leadID, status string) models.Order {
	now := time.Now()
	return models.Order{
		ID:               models.OrderID(models.DataSourceStorefront, sourceID),
		TenantID:         testTenant.ID,
		DataSource:       models.DataSourceStorefront,
		SourceOrderID:    sourceID,
		CustomerName:     "Maria Silva",
		CustomerPhone:    "+39 333 1234567",
		Status:           status,
		CarrierImported:  true,
		CarrierMatchedAt: &now,
		CarrierOrderID:   &leadID,
		OrderDate:        now.Add(-48 * time.Hour),
	}
}

func TestStatusProjectionAdvancesMatchedOrder(t *testing.T) {
	fs := newFakeStore()
	fs.put(matchedOrder("7001", "L-9", models.StatusConfirmed))

	carrier := &fakeCarrier{}
	carrier.setDetail("L-9", "shipped")
	events := &recordingEvents{}
	svc := NewStatusService(fs, carrier, events)

	result, err := svc.Run(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	order := fs.get(models.OrderID(models.DataSourceStorefront, "7001"))
	assert.Equal(t, models.StatusShipped, order.Status)

	carrier.setDetail("L-9", "delivered")
	result, err = svc.Run(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	order = fs.get(models.OrderID(models.DataSourceStorefront, "7001"))
	assert.Equal(t, models.StatusDelivered, order.Status)

	changes := events.statusChanges()
	require.Len(t, changes, 2)
	assert.Equal(t, models.StatusConfirmed, changes[0].FromStatus)
	assert.Equal(t, models.StatusShipped, changes[0].ToStatus)
	assert.Equal(t, models.StatusShipped, changes[1].FromStatus)
	assert.Equal(t, models.StatusDelivered, changes[1].ToStatus)

	// Terminal now; the row leaves the refresh set and the carrier is not
	// asked about it again.
	before := carrier.statusCalls()
	result, err = svc.Run(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Refreshed)
	assert.Equal(t, before, carrier.statusCalls())
}

func TestStatusProjectionUnchangedStatusIsNoOp(t *testing.T) {
	fs := newFakeStore()
	fs.put(matchedOrder("7002", "L-10", models.StatusShipped))

	carrier := &fakeCarrier{}
	carrier.setDetail("L-10", "in_transit")
	events := &recordingEvents{}
	svc := NewStatusService(fs, carrier, events)

	result, err := svc.Run(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Refreshed)
	assert.Equal(t, 0, result.Updated)
	assert.Empty(t, events.statusChanges())
}

func TestStatusProjectionFetchFailureLeavesOrderForLaterPass(t *testing.T) {
	fs := newFakeStore()
	fs.put(matchedOrder("7003", "L-11", models.StatusConfirmed))

	carrier := &fakeCarrier{detailErr: errors.New("carrier down")}
	svc := NewStatusService(fs, carrier, nil)

	result, err := svc.Run(context.Background(), testTenant)
	require.NoError(t, err, "a per-order fetch failure does not fail the pass")
	assert.Equal(t, 0, result.Updated)

	order := fs.get(models.OrderID(models.DataSourceStorefront, "7003"))
	assert.Equal(t, models.StatusConfirmed, order.Status)

	carrier.mu.Lock()
	carrier.detailErr = nil
	carrier.mu.Unlock()
	carrier.setDetail("L-11", "delivered")

	result, err = svc.Run(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, models.StatusDelivered, fs.get(models.OrderID(models.DataSourceStorefront, "7003")).Status)
}

// A matched order is invisible to the match stage but keeps moving through
// the lifecycle via projection until it settles.
func TestMatchedOrderProgressesAfterMatch(t *testing.T) {
	fs := newFakeStore()
	fs.put(models.Order{
		ID:            models.OrderID(models.DataSourceStorefront, "7004"),
		TenantID:      testTenant.ID,
		DataSource:    models.DataSourceStorefront,
		SourceOrderID: "7004",
		CustomerName:  "Maria Silva",
		CustomerPhone: "+39 333 1234567",
		Status:        models.StatusPending,
		OrderDate:     time.Now().Add(-48 * time.Hour),
	})

	carrier := &fakeCarrier{leads: []models.CarrierLead{
		{ID: "L-12", CustomerPhone: "00393331234567", CustomerName: "Maria Silva Santos", Status: "confirmed"},
	}}
	carrier.setDetail("L-12", "confirmed")

	matchSvc := NewMatchService(fs, carrier, nil, nil, nil)
	statusSvc := NewStatusService(fs, carrier, nil)

	mres, err := matchSvc.Run(context.Background(), testTenant)
	require.NoError(t, err)
	require.Equal(t, 1, mres.Matched)

	id := models.OrderID(models.DataSourceStorefront, "7004")
	assert.Equal(t, models.StatusConfirmed, fs.get(id).Status)

	// The match stage no longer sees the row, so a later carrier transition
	// must come through the projection pass.
	listCalls := carrier.calls()
	mres, err = matchSvc.Run(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 0, mres.Matched)
	assert.Equal(t, listCalls, carrier.calls())

	carrier.setDetail("L-12", "delivered")
	sres, err := statusSvc.Run(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 1, sres.Updated)
	assert.Equal(t, models.StatusDelivered, fs.get(id).Status)
	assert.True(t, models.IsTerminal(fs.get(id).Status))
}
