package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"recon-service/internal/models"
	"recon-service/internal/provider"
)

var errLeadNotFound = errors.New("lead not found")

// fakeStore is an in-memory OrderStore mirroring the documented upsert and
// candidate-query semantics.
type fakeStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: make(map[string]*models.Order)}
}

func (f *fakeStore) UpsertOrder(_ context.Context, order *models.Order) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, ok := f.orders[order.ID]
	if !ok {
		cp := *order
		cp.UpdatedAt = time.Now()
		f.orders[order.ID] = &cp
		return true, nil
	}

	// Source-derived fields are overwritten; carrier-match fields are not,
	// and a matched order keeps its carrier-projected status.
	status := order.Status
	if existing.CarrierImported {
		status = existing.Status
	}
	cp := *order
	cp.Status = status
	cp.CarrierImported = existing.CarrierImported
	cp.CarrierMatchedAt = existing.CarrierMatchedAt
	cp.CarrierOrderID = existing.CarrierOrderID
	cp.TrackingNumber = existing.TrackingNumber
	cp.ProviderData = existing.ProviderData
	cp.UpdatedAt = time.Now()
	f.orders[order.ID] = &cp
	return false, nil
}

func (f *fakeStore) GetUnmatchedOrders(_ context.Context, tenantID int64) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Order
	for _, o := range f.orders {
		if o.TenantID != tenantID || o.DataSource != models.DataSourceStorefront {
			continue
		}
		if o.CarrierImported || models.IsTerminal(o.Status) {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeStore) ApplyCarrierMatch(_ context.Context, orderID string, carrierOrderID, trackingNumber, status string, providerData []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	o := f.orders[orderID]
	now := time.Now()
	o.CarrierImported = true
	if o.CarrierMatchedAt == nil {
		o.CarrierMatchedAt = &now
	}
	o.CarrierOrderID = &carrierOrderID
	o.TrackingNumber = &trackingNumber
	o.Status = status
	o.ProviderData = providerData
	o.LastStatusUpdate = now
	o.UpdatedAt = now
	return nil
}

func (f *fakeStore) GetMatchedActiveOrders(_ context.Context, tenantID int64) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Order
	for _, o := range f.orders {
		if o.TenantID != tenantID || !o.CarrierImported || o.CarrierOrderID == nil {
			continue
		}
		if models.IsTerminal(o.Status) {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeStore) UpdateOrderStatus(_ context.Context, orderID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	o := f.orders[orderID]
	now := time.Now()
	o.Status = status
	o.LastStatusUpdate = now
	o.UpdatedAt = now
	return nil
}

func (f *fakeStore) get(id string) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.orders[id]
	return &cp
}

func (f *fakeStore) put(o models.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = &o
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

// fakeStorefront serves the same order list for every window and records
// the windows requested.
type fakeStorefront struct {
	mu      sync.Mutex
	orders  []provider.StorefrontOrder
	err     error
	queries []provider.OrderQuery
}

func (f *fakeStorefront) ListOrders(_ context.Context, _ provider.StorefrontCredentials, query provider.OrderQuery) ([]provider.StorefrontOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.orders, nil
}

func (f *fakeStorefront) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// fakeCarrier serves a fixed lead set and counts fetches. Per-lead detail
// statuses drive the projection pass.
type fakeCarrier struct {
	mu          sync.Mutex
	leads       []models.CarrierLead
	details     map[string]string
	err         error
	detailErr   error
	n           int
	detailCalls int
}

func (f *fakeCarrier) ListLeadsWithFallback(_ context.Context, _ string, _ []string) ([]models.CarrierLead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	if f.err != nil {
		return nil, f.err
	}
	return f.leads, nil
}

func (f *fakeCarrier) GetLeadStatus(_ context.Context, _ string, leadID string) (*provider.LeadDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	status, ok := f.details[leadID]
	if !ok {
		return nil, errLeadNotFound
	}
	return &provider.LeadDetail{ID: leadID, Status: status, UpdatedAt: time.Now()}, nil
}

func (f *fakeCarrier) setDetail(leadID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.details == nil {
		f.details = make(map[string]string)
	}
	f.details[leadID] = status
}

func (f *fakeCarrier) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

func (f *fakeCarrier) statusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls
}

func storefrontOrder(id int64, name, phone, email string, created time.Time) provider.StorefrontOrder {
	o := provider.StorefrontOrder{
		ID:              id,
		Name:            "#1001",
		Email:           email,
		CreatedAt:       created,
		TotalPrice:      "59.90",
		Currency:        "EUR",
		FinancialStatus: "pending",
		ShippingAddress: &provider.Address{
			Name:    name,
			Phone:   phone,
			City:    "Milano",
			Country: "Italy",
		},
	}
	o.Raw, _ = json.Marshal(map[string]int64{"id": id})
	return o
}
