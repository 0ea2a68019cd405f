package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"recon-service/internal/models"
	"recon-service/internal/service"
	"recon-service/internal/util"

	"go.uber.org/zap"
)

// TenantStore is the slice of the store the scheduler needs.
type TenantStore interface {
	GetActiveTenants(ctx context.Context) ([]models.Tenant, error)
	GetTenantByID(ctx context.Context, id int64) (*models.Tenant, error)
	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	FinishSyncRun(ctx context.Context, runID int64, found, processed, succeeded int, errMsg string) error
	PruneSyncRuns(ctx context.Context, olderThan time.Time) (int64, error)
}

// Importer runs the storefront import stage for one tenant.
type Importer interface {
	Run(ctx context.Context, tenant *models.Tenant) (service.ImportResult, error)
}

// Matcher runs the carrier match stage for one tenant.
type Matcher interface {
	Run(ctx context.Context, tenant *models.Tenant) (service.MatchResult, error)
}

// Projector runs the status projection stage for one tenant.
type Projector interface {
	Run(ctx context.Context, tenant *models.Tenant) (service.StatusResult, error)
}

// Locker guards cycles across process instances. Optional; the in-process
// in-flight map alone is correct for single-instance deployments.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Tracker persists last-sync timestamps so they survive restarts. Optional.
type Tracker interface {
	SetLastSync(ctx context.Context, key string, at time.Time) error
	GetLastSync(ctx context.Context, key string) (time.Time, error)
}

// Options tune the scheduling cadence.
type Options struct {
	FastInterval      time.Duration
	SlowInterval      time.Duration
	BusinessStartHour int
	BusinessEndHour   int
	CycleTimeout      time.Duration
	RunRetention      time.Duration
	Now               func() time.Time
}

// TenantStats reports one tenant's cycle outcome.
type TenantStats struct {
	TenantID int64                `json:"tenant_id"`
	Import   service.ImportResult `json:"import"`
	Match    service.MatchResult  `json:"match"`
	Status   service.StatusResult `json:"status"`
	Skipped  bool                 `json:"skipped,omitempty"`
	Errors   []string             `json:"errors,omitempty"`
}

// CycleStats reports one full cycle across tenants.
type CycleStats struct {
	StartedAt time.Time     `json:"started_at"`
	Tenants   []TenantStats `json:"tenants"`
}

// Scheduler drives Import, Match and Status Projection per tenant on an
// adaptive interval. All mutable sync state lives on the struct; there are
// no package-level singletons.
type Scheduler struct {
	store     TenantStore
	importer  Importer
	matcher   Matcher
	projector Projector
	locker    Locker
	tracker   Tracker
	opts      Options
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[string]bool
	lastSync map[string]time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewScheduler creates a scheduler with injected dependencies.
func NewScheduler(store TenantStore, importer Importer, matcher Matcher, projector Projector, locker Locker, tracker Tracker, opts Options) *Scheduler {
	if opts.FastInterval <= 0 {
		opts.FastInterval = 5 * time.Minute
	}
	if opts.SlowInterval <= 0 {
		opts.SlowInterval = 15 * time.Minute
	}
	if opts.BusinessEndHour <= opts.BusinessStartHour {
		opts.BusinessStartHour = 7
		opts.BusinessEndHour = 19
	}
	if opts.CycleTimeout <= 0 {
		opts.CycleTimeout = 10 * time.Minute
	}
	if opts.RunRetention <= 0 {
		opts.RunRetention = 30 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Scheduler{
		store:     store,
		importer:  importer,
		matcher:   matcher,
		projector: projector,
		locker:    locker,
		tracker:   tracker,
		opts:      opts,
		logger:    util.GetLogger(),
		inFlight:  make(map[string]bool),
		lastSync:  make(map[string]time.Time),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the scheduling loop until the context is cancelled or Stop is
// called. The interval is recomputed each tick from the current UTC hour.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting sync scheduler",
		zap.Duration("fast_interval", s.opts.FastInterval),
		zap.Duration("slow_interval", s.opts.SlowInterval))
	defer close(s.doneCh)

	timer := time.NewTimer(s.interval(s.opts.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-timer.C:
			if _, err := s.RunSyncCycle(ctx, nil); err != nil {
				s.logger.Error("Sync cycle failed", zap.Error(err))
			}
			s.prune(ctx)
			timer.Reset(s.interval(s.opts.Now()))
		}
	}
}

// Stop signals the loop to exit and waits for it.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// interval picks the polling cadence: tighter inside the UTC business-hours
// window, relaxed outside it.
func (s *Scheduler) interval(t time.Time) time.Duration {
	hour := t.UTC().Hour()
	if hour >= s.opts.BusinessStartHour && hour < s.opts.BusinessEndHour {
		return s.opts.FastInterval
	}
	return s.opts.SlowInterval
}

// RunSyncCycle runs Import, Match and Status Projection for one tenant, or
// for every active
// tenant sequentially when tenantID is nil. It is safe to call from the
// timer loop and the manual admin trigger concurrently: a tenant with a
// cycle already in flight is skipped, not queued.
func (s *Scheduler) RunSyncCycle(ctx context.Context, tenantID *int64) (CycleStats, error) {
	stats := CycleStats{StartedAt: s.opts.Now()}

	var tenants []models.Tenant
	if tenantID != nil {
		tenant, err := s.store.GetTenantByID(ctx, *tenantID)
		if err != nil {
			s.logger.Error("Failed to load tenant", zap.Int64p("tenant_id", tenantID), zap.Error(err))
			return stats, err
		}
		tenants = []models.Tenant{*tenant}
	} else {
		var err error
		tenants, err = s.store.GetActiveTenants(ctx)
		if err != nil {
			s.logger.Error("Failed to load active tenants", zap.Error(err))
			return stats, err
		}
	}

	for i := range tenants {
		stats.Tenants = append(stats.Tenants, s.runTenant(ctx, &tenants[i]))
	}

	return stats, nil
}

// runTenant runs one tenant's cycle under the reentrancy guard and a
// cycle-level timeout. A stage panic is recovered so one tenant's failure
// never takes the loop down.
func (s *Scheduler) runTenant(ctx context.Context, tenant *models.Tenant) (ts TenantStats) {
	ts.TenantID = tenant.ID

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered from sync cycle panic",
				zap.Int64("tenant_id", tenant.ID),
				zap.Any("panic", r))
			ts.Errors = append(ts.Errors, fmt.Sprintf("panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.opts.CycleTimeout)
	defer cancel()

	// Stages run in strict order: Import fills the candidate set, Match
	// consumes it, Status Projection advances what Match already settled
	// on. A cycle discarded at an earlier guard never runs the later
	// stages, so they cannot observe a pre-cycle snapshot.
	imp, ok := s.runImport(ctx, tenant, &ts)
	if !ok {
		return ts
	}
	ts.Import = imp

	m, ok := s.runMatch(ctx, tenant, &ts)
	if !ok {
		return ts
	}
	ts.Match = m

	if st, ok := s.runStatus(ctx, tenant, &ts); ok {
		ts.Status = st
	}

	return ts
}

func (s *Scheduler) runImport(ctx context.Context, tenant *models.Tenant, ts *TenantStats) (service.ImportResult, bool) {
	if !s.acquire(ctx, tenant.ID, models.SyncDomainImport) {
		util.SyncCyclesDiscarded.WithLabelValues(models.SyncDomainImport).Inc()
		s.logger.Info("Import already in flight, discarding request",
			zap.Int64("tenant_id", tenant.ID))
		ts.Skipped = true
		return service.ImportResult{}, false
	}
	defer s.release(ctx, tenant.ID, models.SyncDomainImport)

	run := s.startRun(ctx, tenant.ID, models.SyncDomainImport)

	result, err := s.importer.Run(ctx, tenant)
	if err != nil {
		util.SyncCyclesTotal.WithLabelValues(models.SyncDomainImport, "error").Inc()
		s.logger.Error("Import stage failed",
			zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		ts.Errors = append(ts.Errors, err.Error())
		s.finishRun(ctx, run, result.Imported+result.Updated, result.Imported+result.Updated, result.Imported, err.Error())
		return result, true
	}

	util.SyncCyclesTotal.WithLabelValues(models.SyncDomainImport, "ok").Inc()
	s.finishRun(ctx, run, result.Imported+result.Updated, result.Imported+result.Updated, result.Imported+result.Updated, "")
	s.recordLastSync(ctx, tenant.ID, models.SyncDomainImport)
	return result, true
}

func (s *Scheduler) runMatch(ctx context.Context, tenant *models.Tenant, ts *TenantStats) (service.MatchResult, bool) {
	if !s.acquire(ctx, tenant.ID, models.SyncDomainMatch) {
		util.SyncCyclesDiscarded.WithLabelValues(models.SyncDomainMatch).Inc()
		s.logger.Info("Match already in flight, discarding request",
			zap.Int64("tenant_id", tenant.ID))
		ts.Skipped = true
		return service.MatchResult{}, false
	}
	defer s.release(ctx, tenant.ID, models.SyncDomainMatch)

	run := s.startRun(ctx, tenant.ID, models.SyncDomainMatch)

	result, err := s.matcher.Run(ctx, tenant)
	if err != nil {
		util.SyncCyclesTotal.WithLabelValues(models.SyncDomainMatch, "error").Inc()
		s.logger.Error("Match stage failed",
			zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		ts.Errors = append(ts.Errors, err.Error())
		s.finishRun(ctx, run, result.Matched, result.Matched, result.Matched, err.Error())
		return result, true
	}

	util.SyncCyclesTotal.WithLabelValues(models.SyncDomainMatch, "ok").Inc()
	s.finishRun(ctx, run, result.Matched, result.Matched, result.Matched, "")
	s.recordLastSync(ctx, tenant.ID, models.SyncDomainMatch)
	return result, true
}

func (s *Scheduler) runStatus(ctx context.Context, tenant *models.Tenant, ts *TenantStats) (service.StatusResult, bool) {
	if !s.acquire(ctx, tenant.ID, models.SyncDomainStatus) {
		util.SyncCyclesDiscarded.WithLabelValues(models.SyncDomainStatus).Inc()
		s.logger.Info("Status projection already in flight, discarding request",
			zap.Int64("tenant_id", tenant.ID))
		ts.Skipped = true
		return service.StatusResult{}, false
	}
	defer s.release(ctx, tenant.ID, models.SyncDomainStatus)

	run := s.startRun(ctx, tenant.ID, models.SyncDomainStatus)

	result, err := s.projector.Run(ctx, tenant)
	if err != nil {
		util.SyncCyclesTotal.WithLabelValues(models.SyncDomainStatus, "error").Inc()
		s.logger.Error("Status projection stage failed",
			zap.Int64("tenant_id", tenant.ID), zap.Error(err))
		ts.Errors = append(ts.Errors, err.Error())
		s.finishRun(ctx, run, result.Refreshed, result.Refreshed, result.Updated, err.Error())
		return result, true
	}

	util.SyncCyclesTotal.WithLabelValues(models.SyncDomainStatus, "ok").Inc()
	s.finishRun(ctx, run, result.Refreshed, result.Refreshed, result.Updated, "")
	s.recordLastSync(ctx, tenant.ID, models.SyncDomainStatus)
	return result, true
}

// recordLastSync stamps a successful stage completion, both in the struct
// and through the tracker when one is configured.
func (s *Scheduler) recordLastSync(ctx context.Context, tenantID int64, domain string) {
	key := lockKey(tenantID, domain)
	at := s.opts.Now()

	s.mu.Lock()
	s.lastSync[key] = at
	s.mu.Unlock()

	if s.tracker != nil {
		if err := s.tracker.SetLastSync(ctx, key, at); err != nil {
			s.logger.Warn("Failed to persist last-sync timestamp",
				zap.String("key", key), zap.Error(err))
		}
	}
}

// LastSync reports when a tenant sync domain last completed successfully.
func (s *Scheduler) LastSync(ctx context.Context, tenantID int64, domain string) (time.Time, bool) {
	key := lockKey(tenantID, domain)

	s.mu.Lock()
	at, ok := s.lastSync[key]
	s.mu.Unlock()
	if ok {
		return at, true
	}

	if s.tracker != nil {
		at, err := s.tracker.GetLastSync(ctx, key)
		if err == nil && !at.IsZero() {
			return at, true
		}
	}
	return time.Time{}, false
}

// acquire takes both the in-process in-flight slot and, when a distributed
// locker is configured, the cross-process lock for a tenant sync domain.
func (s *Scheduler) acquire(ctx context.Context, tenantID int64, domain string) bool {
	key := lockKey(tenantID, domain)

	s.mu.Lock()
	if s.inFlight[key] {
		s.mu.Unlock()
		return false
	}
	s.inFlight[key] = true
	s.mu.Unlock()

	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, key, s.opts.CycleTimeout)
		if err != nil {
			s.logger.Warn("Distributed lock unavailable, proceeding with local guard",
				zap.String("key", key), zap.Error(err))
			return true
		}
		if !ok {
			s.mu.Lock()
			delete(s.inFlight, key)
			s.mu.Unlock()
			return false
		}
	}

	return true
}

func (s *Scheduler) release(ctx context.Context, tenantID int64, domain string) {
	key := lockKey(tenantID, domain)

	if s.locker != nil {
		if err := s.locker.Unlock(ctx, key); err != nil {
			s.logger.Warn("Failed to release distributed lock",
				zap.String("key", key), zap.Error(err))
		}
	}

	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
}

func lockKey(tenantID int64, domain string) string {
	return fmt.Sprintf("%d:%s", tenantID, domain)
}

func (s *Scheduler) startRun(ctx context.Context, tenantID int64, domain string) *models.SyncRun {
	run := &models.SyncRun{
		TenantID:  tenantID,
		Domain:    domain,
		StartedAt: s.opts.Now(),
	}
	if err := s.store.CreateSyncRun(ctx, run); err != nil {
		s.logger.Warn("Failed to record sync run", zap.Error(err))
		return nil
	}
	return run
}

func (s *Scheduler) finishRun(ctx context.Context, run *models.SyncRun, found, processed, succeeded int, errMsg string) {
	if run == nil {
		return
	}
	if err := s.store.FinishSyncRun(ctx, run.ID, found, processed, succeeded, errMsg); err != nil {
		s.logger.Warn("Failed to finish sync run", zap.Error(err))
	}
}

func (s *Scheduler) prune(ctx context.Context) {
	cutoff := s.opts.Now().Add(-s.opts.RunRetention)
	pruned, err := s.store.PruneSyncRuns(ctx, cutoff)
	if err != nil {
		s.logger.Warn("Failed to prune sync runs", zap.Error(err))
		return
	}
	if pruned > 0 {
		s.logger.Info("Pruned sync run telemetry", zap.Int64("rows", pruned))
	}
}
