package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appinv "github.com/erp/ledger/internal/application/inventory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

type fakeSweeper struct {
	mu        sync.Mutex
	divergent map[uuid.UUID]int
	failing   map[uuid.UUID]error
	calls     []uuid.UUID
	block     chan struct{}
	started   chan struct{}
}

func (f *fakeSweeper) SweepIntegrity(ctx context.Context, tenantID uuid.UUID) (*appinv.SweepReport, error) {
	f.mu.Lock()
	f.calls = append(f.calls, tenantID)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := f.failing[tenantID]; err != nil {
		return nil, err
	}
	report := &appinv.SweepReport{TenantID: tenantID, Checked: 3, Divergent: []appinv.IntegrityReport{}}
	for i := 0; i < f.divergent[tenantID]; i++ {
		report.Divergent = append(report.Divergent, appinv.IntegrityReport{TenantID: tenantID, Stored: 5, Replayed: 4, Delta: 1})
	}
	return report, nil
}

type failingTenants struct{}

func (failingTenants) TenantIDs(context.Context) ([]uuid.UUID, error) {
	return nil, errors.New("tenant directory offline")
}

func TestNewIntegrityScheduler_Validation(t *testing.T) {
	sweeper := &fakeSweeper{}

	_, err := NewIntegrityScheduler(Config{Cron: "not a cron"}, sweeper, StaticTenants{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewIntegrityScheduler(DefaultConfig(), nil, StaticTenants{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	s, err := NewIntegrityScheduler(Config{Cron: "0 3 * * *"}, sweeper, StaticTenants{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().JobTimeout, s.config.JobTimeout)

	from := time.Date(2026, time.March, 1, 4, 0, 0, 0, time.UTC)
	next := s.Next(from)
	assert.True(t, next.Equal(time.Date(2026, time.March, 2, 3, 0, 0, 0, time.UTC)), "next run %s", next)
}

func TestIntegrityScheduler_RunOnce(t *testing.T) {
	clean, drifting, broken := uuid.New(), uuid.New(), uuid.New()
	sweeper := &fakeSweeper{
		divergent: map[uuid.UUID]int{drifting: 2},
		failing:   map[uuid.UUID]error{broken: errors.New("connection reset")},
	}
	core, logs := observer.New(zapcore.InfoLevel)

	s, err := NewIntegrityScheduler(DefaultConfig(), sweeper, StaticTenants{clean, broken, drifting}, zap.New(core))
	require.NoError(t, err)

	run, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{clean, broken, drifting}, sweeper.calls, "a failing tenant must not stop the sweep")
	require.Len(t, run.Reports, 2)
	assert.Equal(t, 2, run.Divergent())
	require.Len(t, run.Failures, 1)
	assert.Equal(t, broken, run.Failures[0].TenantID)
	assert.Contains(t, run.Failures[0].Error, "connection reset")
	assert.False(t, run.FinishedAt.Before(run.StartedAt))

	assert.Equal(t, 1, logs.FilterMessage("Integrity sweep found problems").Len())
}

func TestIntegrityScheduler_RunOnceTenantError(t *testing.T) {
	s, err := NewIntegrityScheduler(DefaultConfig(), &fakeSweeper{}, failingTenants{}, nil)
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant directory offline")
}

func TestIntegrityScheduler_RefusesOverlap(t *testing.T) {
	sweeper := &fakeSweeper{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, err := NewIntegrityScheduler(DefaultConfig(), sweeper, StaticTenants{uuid.New()}, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.RunOnce(context.Background())
		done <- err
	}()
	<-sweeper.started

	_, err = s.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)

	close(sweeper.block)
	require.NoError(t, <-done)

	_, err = s.RunOnce(context.Background())
	assert.NoError(t, err, "the guard is released after a run")
}

func TestIntegrityScheduler_JobTimeout(t *testing.T) {
	sweeper := &fakeSweeper{block: make(chan struct{})}
	s, err := NewIntegrityScheduler(Config{Cron: "@hourly", JobTimeout: 20 * time.Millisecond}, sweeper, StaticTenants{uuid.New()}, nil)
	require.NoError(t, err)

	run, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, run.Failures, 1)
	assert.Contains(t, run.Failures[0].Error, context.DeadlineExceeded.Error())
}

func TestIntegrityScheduler_StartStop(t *testing.T) {
	tenant := uuid.New()
	s, err := NewIntegrityScheduler(DefaultConfig(), &fakeSweeper{}, StaticTenants{tenant}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	assert.ErrorIs(t, s.Stop(ctx), ErrSchedulerNotRunning)

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx), "second start is a no-op")
	assert.Len(t, s.cron.Entries(), 1)

	var got *SweepRun
	s.OnRun(func(run *SweepRun) { got = run })
	s.runScheduled(ctx)
	require.NotNil(t, got)
	assert.Equal(t, tenant, got.Reports[0].TenantID)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
}

func TestParseTenants(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	tenants, err := ParseTenants([]string{a.String(), b.String(), a.String()})
	require.NoError(t, err)
	ids, err := tenants.TenantIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)

	_, err = ParseTenants([]string{"not-a-uuid"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseTenants([]string{uuid.Nil.String()})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	empty, err := ParseTenants(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
