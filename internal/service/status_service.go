package service

import (
	"context"
	"fmt"
	"time"

	"recon-service/internal/models"
	"recon-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusService advances matched orders toward a terminal status. Matching
// leaves the carrier-projected status of the match moment on the row; this
// pass re-reads each lead until the order settles at delivered, cancelled
// or returned, after which the row drops out of the refresh set.
type StatusService struct {
	store   OrderStore
	carrier CarrierAPI
	events  Events
	logger  *zap.Logger
}

// StatusResult reports one projection pass
type StatusResult struct {
	Refreshed int `json:"refreshed"`
	Updated   int `json:"updated"`
}

// NewStatusService creates a status projection service.
func NewStatusService(store OrderStore, carrier CarrierAPI, events Events) *StatusService {
	return &StatusService{
		store:   store,
		carrier: carrier,
		events:  events,
		logger:  util.GetLogger(),
	}
}

// Run refreshes the carrier status of every matched, non-terminal order.
// A per-order fetch failure is logged and skipped so one stale lead never
// blocks the rest of the pass; the order is retried on the next cycle.
func (s *StatusService) Run(ctx context.Context, tenant *models.Tenant) (StatusResult, error) {
	ctx, span := util.StartSpan(ctx, "StatusService.Run")
	defer span.End()

	var result StatusResult

	orders, err := s.store.GetMatchedActiveOrders(ctx, tenant.ID)
	if err != nil {
		return result, fmt.Errorf("failed to load matched orders: %w", err)
	}
	if len(orders) == 0 {
		return result, nil
	}

	for i := range orders {
		order := &orders[i]
		if order.CarrierOrderID == nil {
			continue
		}

		detail, err := s.carrier.GetLeadStatus(ctx, tenant.CarrierAPIKey, *order.CarrierOrderID)
		if err != nil {
			util.StatusRefreshFailures.Inc()
			s.logger.Warn("Skipping order after lead status fetch failure",
				zap.Int64("tenant_id", tenant.ID),
				zap.String("order_id", order.ID),
				zap.String("lead_id", *order.CarrierOrderID),
				zap.Error(err))
			continue
		}
		result.Refreshed++

		status := MapCarrierStatus(detail.Status)
		if status == order.Status {
			continue
		}

		if err := s.store.UpdateOrderStatus(ctx, order.ID, status); err != nil {
			util.StatusRefreshFailures.Inc()
			s.logger.Warn("Skipping order after status write failure",
				zap.Int64("tenant_id", tenant.ID),
				zap.String("order_id", order.ID),
				zap.Error(err))
			continue
		}

		result.Updated++
		util.OrdersStatusRefreshedTotal.Inc()
		s.logger.Info("Order status advanced",
			zap.String("order_id", order.ID),
			zap.String("from", order.Status),
			zap.String("to", status))

		s.publishStatusChanged(ctx, order, status)
	}

	s.logger.Info("Status projection pass finished",
		zap.Int64("tenant_id", tenant.ID),
		zap.Int("candidates", len(orders)),
		zap.Int("refreshed", result.Refreshed),
		zap.Int("updated", result.Updated))

	return result, nil
}

func (s *StatusService) publishStatusChanged(ctx context.Context, order *models.Order, status string) {
	if s.events == nil {
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
