package api

import (
	"net/http"
	"strconv"
	"time"

	"recon-service/internal/models"
	"recon-service/internal/store"
	"recon-service/internal/util"
	"recon-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers for the admin surface
type Handler struct {
	store     *store.Store
	scheduler *worker.Scheduler
}

// NewHandler creates a new HTTP handler
func NewHandler(store *store.Store, scheduler *worker.Scheduler) *Handler {
	return &Handler{
		store:     store,
		scheduler: scheduler,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sync", h.triggerSync)
		v1.GET("/sync/runs", h.getSyncRuns)
		v1.GET("/sync/status", h.getSyncStatus)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// triggerSync runs a sync cycle on demand. Stage-level failures are part of
// the stats payload and still come back 200; a request is 409 only when
// every targeted tenant was discarded by the reentrancy guard.
func (h *Handler) triggerSync(c *gin.Context) {
	var tenantID *int64
	if idStr := c.Query("tenant_id"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid tenant_id",
			})
			return
		}
		tenantID = &id
	}

	stats, err := h.scheduler.RunSyncCycle(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Sync cycle failed",
			"details": err.Error(),
		})
		return
	}

	// 409 only when nothing ran at all. A multi-tenant cycle where some
	// tenants were guard-skipped still reports the completed work as 200.
	allSkipped := len(stats.Tenants) > 0
	for _, ts := range stats.Tenants {
		if !ts.Skipped {
			allSkipped = false
			break
		}
	}
	if allSkipped {
		c.JSON(http.StatusConflict, gin.H{
			"message": "Sync already in progress",
			"stats":   stats,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Sync cycle completed",
		"stats":   stats,
	})
}

// getSyncRuns returns recent execution telemetry for a tenant
func (h *Handler) getSyncRuns(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Query("tenant_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid tenant_id",
		})
		return
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	runs, err := h.store.GetSyncRuns(c.Request.Context(), tenantID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load sync runs",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// getSyncStatus returns last-sync timestamps per domain for a tenant
func (h *Handler) getSyncStatus(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Query("tenant_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid tenant_id",
		})
		return
	}

	status := gin.H{}
	for _, domain := range []string{models.SyncDomainImport, models.SyncDomainMatch} {
		if at, ok := h.scheduler.LastSync(c.Request.Context(), tenantID, domain); ok {
			status[domain] = at
		} else {
			status[domain] = nil
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"tenant_id": tenantID,
		"last_sync": status,
	})
}

// listOrders returns a tenant's orders, newest first
func (h *Handler) listOrders(c *gin.Context) {
	tenantID, err := strconv.ParseInt(c.Query("tenant_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid tenant_id",
		})
		return
	}

	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	orders, err := h.store.GetOrdersByTenant(c.Request.Context(), tenantID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load orders",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder handles get order by internal ID
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.store.GetOrderByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Order not found",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": order})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
