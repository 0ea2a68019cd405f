package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recon-service/internal/match"
	"recon-service/internal/models"
	"recon-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MatchService reconciles unmatched canonical orders against the carrier's
// lead working set via heuristic phone/name matching.
type MatchService struct {
	store          OrderStore
	carrier        CarrierAPI
	events         Events
	strategy       match.Strategy
	countryFilters []string
	logger         *zap.Logger
}

// MatchResult reports one match pass
type MatchResult struct {
	Matched int `json:"matched"`
}

// NewMatchService creates a match service. A nil strategy gets the
// first-match default.
func NewMatchService(store OrderStore, carrier CarrierAPI, events Events, strategy match.Strategy, countryFilters []string) *MatchService {
	if strategy == nil {
		strategy = match.FirstMatch{}
	}
	return &MatchService{
		store:          store,
		carrier:        carrier,
		events:         events,
		strategy:       strategy,
		countryFilters: countryFilters,
		logger:         util.GetLogger(),
	}
}

// Run fetches the carrier's current lead set and tries to match every
// non-terminal, not-yet-matched storefront order against it. Orders that
// find no match are left untouched and retried on later passes without a
// cutoff, since phone/name data may be corrected upstream over time.
func (s *MatchService) Run(ctx context.Context, tenant *models.Tenant) (MatchResult, error) {
	ctx, span := util.StartSpan(ctx, "MatchService.Run")
	defer span.End()

	var result MatchResult

	orders, err := s.store.GetUnmatchedOrders(ctx, tenant.ID)
	if err != nil {
		return result, fmt.Errorf("failed to load unmatched orders: %w", err)
	}
	if len(orders) == 0 {
		return result, nil
	}

	fetchStart := time.Now()
	leads, err := s.carrier.ListLeadsWithFallback(ctx, tenant.CarrierAPIKey, s.countryFilters)
	util.CarrierFetchLatency.Observe(time.Since(fetchStart).Seconds())
	if err != nil {
		return result, fmt.Errorf("carrier fetch failed: %w", err)
	}
	if len(leads) == 0 {
		s.logger.Info("Carrier returned no leads",
			zap.Int64("tenant_id", tenant.ID),
			zap.Int("unmatched", len(orders)))
		return result, nil
	}

	for i := range orders {
		order := &orders[i]

		lead := s.strategy.Find(order.CustomerPhone, order.CustomerName, leads)
		if lead == nil {
			util.OrdersMatchSkippedTotal.Inc()
			continue
		}

		if err := s.applyMatch(ctx, order, lead); err != nil {
			s.logger.Warn("Skipping order after match write failure",
				zap.Int64("tenant_id", tenant.ID),
				zap.String("order_id", order.ID),
				zap.Error(err))
			continue
		}

		result.Matched++
		util.OrdersMatchedTotal.Inc()
	}

	s.logger.Info("Match pass finished",
		zap.Int64("tenant_id", tenant.ID),
		zap.Int("candidates", len(orders)),
		zap.Int("leads", len(leads)),
		zap.Int("matched", result.Matched))

	return result, nil
}

func (s *MatchService) applyMatch(ctx context.Context, order *models.Order, lead *models.CarrierLead) error {
	providerData, err := json.Marshal(lead)
	if err != nil {
		return fmt.Errorf("failed to marshal lead: %w", err)
	}

	status := MapCarrierStatus(lead.Status)

	if err := s.store.ApplyCarrierMatch(ctx, order.ID, lead.ID, lead.TrackingCode, status, providerData); err != nil {
		return err
	}

	s.logger.Info("Order matched to carrier lead",
		zap.String("order_id", order.ID),
		zap.String("lead_id", lead.ID),
		zap.String("status", status))

	s.publishMatched(ctx, order, lead, status)
	return nil
}

func (s *MatchService) publishMatched(ctx context.Context, order *models.Order, lead *models.CarrierLead, status string) {
	if s.events == nil {
		return
	}

	matched := &models.OrderMatchedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderMatched,
			Timestamp: time.Now(),
		},
		OrderID:        order.ID,
		TenantID:       order.TenantID,
		CarrierOrderID: lead.ID,
		TrackingNumber: lead.TrackingCode,
		Status:         status,
	}
	if err := s.events.PublishOrderMatched(ctx, matched); err != nil {
		s.logger.Error("Failed to publish OrderMatched event",
			zap.String("order_id", order.ID), zap.Error(err))
	}

	if status == order.Status {
		return
	}
	changed := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderStatusChanged,
			Timestamp: time.Now(),
		},
		OrderID:    order.ID,
		TenantID:   order.TenantID,
		FromStatus: order.Status,
		ToStatus:   status,
	}
	if err := s.events.PublishOrderStatusChanged(ctx, changed); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}
