package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appinv "github.com/erp/ledger/internal/application/inventory"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// IntegritySweeper verifies every stock pair of a tenant against its movement log
type IntegritySweeper interface {
	SweepIntegrity(ctx context.Context, tenantID uuid.UUID) (*appinv.SweepReport, error)
}

// Config holds the integrity schedule
type Config struct {
	// Cron is a standard 5-field expression, e.g. "0 3 * * *"
	Cron string
	// JobTimeout bounds the sweep of one tenant
	JobTimeout time.Duration
	// Location the expression is evaluated in; nil means UTC
	Location *time.Location
}

// DefaultConfig returns a nightly sweep at 03:00 UTC
func DefaultConfig() Config {
	return Config{
		Cron:       "0 3 * * *",
		JobTimeout: 10 * time.Minute,
	}
}

// TenantFailure is a tenant whose sweep stopped on an error other than divergence
type TenantFailure struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Error    string    `json:"error"`
}

// SweepRun is the outcome of one pass over all tenants
type SweepRun struct {
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Reports    []appinv.SweepReport `json:"reports"`
	Failures   []TenantFailure      `json:"failures"`
}

// Divergent returns the number of divergent pairs found in the run
func (r *SweepRun) Divergent() int {
	n := 0
	for _, rep := range r.Reports {
		n += len(rep.Divergent)
	}
	return n
}

// IntegrityScheduler runs integrity sweeps on a cron schedule.
// Divergences are reported, never repaired.
type IntegrityScheduler struct {
	config  Config
	sweeper IntegritySweeper
	tenants TenantProvider
	logger  *zap.Logger

	cron     *cron.Cron
	schedule cron.Schedule
	sweeping atomic.Bool

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	onRun     func(*SweepRun)
}

// NewIntegrityScheduler validates the cron expression and builds a stopped scheduler
func NewIntegrityScheduler(config Config, sweeper IntegritySweeper, tenants TenantProvider, logger *zap.Logger) (*IntegrityScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sweeper == nil || tenants == nil {
		return nil, fmt.Errorf("%w: sweeper and tenant provider are required", ErrInvalidConfig)
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultConfig().JobTimeout
	}
	loc := config.Location
	if loc == nil {
		loc = time.UTC
	}
	schedule, err := cron.ParseStandard(config.Cron)
	if err != nil {
		return nil, fmt.Errorf("%w: cron %q: %v", ErrInvalidConfig, config.Cron, err)
	}

	cronLog := zapCronLogger{logger.Sugar()}
	return &IntegrityScheduler{
		config:   config,
		sweeper:  sweeper,
		tenants:  tenants,
		logger:   logger,
		schedule: schedule,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog)),
		),
	}, nil
}

// OnRun registers a callback invoked after every scheduled run
func (s *IntegrityScheduler) OnRun(fn func(*SweepRun)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRun = fn
}

// Next returns the next activation after t
func (s *IntegrityScheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Start registers the sweep and starts the cron loop. Starting twice is a no-op.
func (s *IntegrityScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.runScheduled(ctx) }))
	s.cron.Start()
	s.cancel = cancel
	s.isRunning = true

	s.logger.Info("Integrity scheduler started",
		zap.String("cron", s.config.Cron),
		zap.Duration("job_timeout", s.config.JobTimeout),
		zap.Time("next_run", s.Next(time.Now())),
	)
	return nil
}

// Stop cancels a running sweep and waits for it to return or for ctx to expire
func (s *IntegrityScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Integrity scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Integrity scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *IntegrityScheduler) runScheduled(ctx context.Context) {
	run, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Warn("Scheduled integrity sweep skipped", zap.Error(err))
		return
	}
	s.mu.Lock()
	onRun := s.onRun
	s.mu.Unlock()
	if onRun != nil {
		onRun(run)
	}
}

// RunOnce sweeps every tenant now. A failing tenant is recorded and the
// remaining tenants are still swept. Overlapping runs are refused.
func (s *IntegrityScheduler) RunOnce(ctx context.Context) (*SweepRun, error) {
	if !s.sweeping.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer s.sweeping.Store(false)

	tenantIDs, err := s.tenants.TenantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	run := &SweepRun{
		StartedAt: time.Now(),
		Reports:   make([]appinv.SweepReport, 0, len(tenantIDs)),
		Failures:  []TenantFailure{},
	}
	for _, tenantID := range tenantIDs {
		if ctx.Err() != nil {
			run.Failures = append(run.Failures, TenantFailure{TenantID: tenantID, Error: ctx.Err().Error()})
			continue
		}
		report, err := s.sweepTenant(ctx, tenantID)
		if report != nil {
			run.Reports = append(run.Reports, *report)
		}
		if err != nil {
			run.Failures = append(run.Failures, TenantFailure{TenantID: tenantID, Error: err.Error()})
			s.logger.Error("Integrity sweep failed for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}
	}
	run.FinishedAt = time.Now()

	fields := []zap.Field{
		zap.Int("tenants", len(tenantIDs)),
		zap.Int("divergent", run.Divergent()),
		zap.Int("failed", len(run.Failures)),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	}
	if run.Divergent() > 0 || len(run.Failures) > 0 {
		s.logger.Warn("Integrity sweep found problems", fields...)
	} else {
		s.logger.Info("Integrity sweep clean", fields...)
	}
	return run, nil
}

func (s *IntegrityScheduler) sweepTenant(ctx context.Context, tenantID uuid.UUID) (*appinv.SweepReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	var (
		report *appinv.SweepReport
		err    error
	)
	labels := map[string]string{"operation": "integrity_sweep", "tenant_id": tenantID.String()}
	telemetry.WithProfilingLabels(ctx, labels, func(ctx context.Context) {
		report, err = s.sweeper.SweepIntegrity(ctx, tenantID)
	})
	return report, err
}

// zapCronLogger routes cron's own messages through zap
type zapCronLogger struct {
	log *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
