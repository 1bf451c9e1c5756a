package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fieldops/field-service/internal/events"
	"github.com/fieldops/field-service/internal/observability"
	"github.com/fieldops/field-service/internal/repository"
	"github.com/fieldops/field-service/internal/service"
)

// dayMarkerTTL keeps the per-day sweep marker around long enough to
// cover the whole day plus clock skew.
const dayMarkerTTL = 36 * time.Hour

// AutoCheckoutScheduler forcibly checks out every engineer still
// checked in at the cutoff hour. It ticks on a short interval and fires
// only in the cutoff minute; a process that is down across that minute
// skips the day rather than catching up. A Redis day marker keeps
// multiple instances (or a restart inside the cutoff minute) from
// sweeping twice; without Redis an in-process marker covers the
// single-instance case.
type AutoCheckoutScheduler struct {
	users      repository.UserRepository
	worktime   *service.WorkTimeService
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	redis      *redis.Client
	clock      service.Clock
	interval   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	lastDate string
}

// SchedulerDependencies bundles collaborators for the scheduler.
type SchedulerDependencies struct {
	UserRepo   repository.UserRepository
	WorkTime   *service.WorkTimeService
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Redis      *redis.Client
	Clock      service.Clock
	Interval   time.Duration
	Logger     *zap.Logger
}

// NewAutoCheckoutScheduler constructs the scheduler.
func NewAutoCheckoutScheduler(deps SchedulerDependencies) *AutoCheckoutScheduler {
	clock := deps.Clock
	if clock == nil {
		clock = service.RealClock()
	}
	interval := deps.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoCheckoutScheduler{
		users:      deps.UserRepo,
		worktime:   deps.WorkTime,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		redis:      deps.Redis,
		clock:      clock,
		interval:   interval,
		logger:     logger,
	}
}

// Run ticks until the context is cancelled.
func (s *AutoCheckoutScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("auto-checkout scheduler started",
		zap.Int("cutoff_hour", s.worktime.CutoffHour()),
		zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("auto-checkout scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs the sweep when the current wall time is inside the cutoff
// minute. Exported so tests can drive the scheduler without a ticker.
func (s *AutoCheckoutScheduler) Tick(ctx context.Context) {
	now := s.clock.Now()
	if now.Hour() != s.worktime.CutoffHour() || now.Minute() != 0 {
		return
	}
	if !s.claimDay(ctx, now) {
		return
	}
	s.Sweep(ctx, now)
}

// Sweep checks out every engineer still checked in, clamping the
// effective time to the cutoff. A failure for one engineer never stops
// the rest of the sweep.
func (s *AutoCheckoutScheduler) Sweep(ctx context.Context, now time.Time) {
	engineers, err := s.users.ListCheckedIn(ctx)
	if err != nil {
		s.logger.Error("auto-checkout sweep failed to list engineers", zap.Error(err))
		return
	}

	cutoff := time.Date(now.Year(), now.Month(), now.Day(), s.worktime.CutoffHour(), 0, 0, 0, now.Location())
	var checkedOut, failed int
	for _, engineer := range engineers {
		result, err := s.worktime.CheckOutForSweep(ctx, engineer.ID, cutoff)
		if err != nil {
			failed++
			s.logger.Error("auto-checkout failed for engineer",
				zap.String("engineer_id", engineer.ID),
				zap.Error(err))
			continue
		}
		if result == nil {
			// Already checked out by a racing manual request.
			continue
		}
		checkedOut++
		s.logger.Info("engineer auto-checked-out",
			zap.String("engineer_id", engineer.ID),
			zap.Int("minutes", result.Minutes))
	}

	s.metrics.RecordSweep(checkedOut, failed)
	if s.dispatcher != nil {
		err := s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventAutoCheckoutSweep,
			Timestamp: now,
			Payload:   events.SweepPayload{CheckedOut: checkedOut, Failed: failed},
		})
		if err != nil {
			s.logger.Warn("sweep event handler failed", zap.Error(err))
		}
	}
	s.logger.Info("auto-checkout sweep finished",
		zap.Int("checked_out", checkedOut),
		zap.Int("failed", failed))
}

// claimDay marks today's sweep as taken. Redis SETNX arbitrates across
// instances; if Redis is unavailable the in-process marker still stops
// repeats within this process.
func (s *AutoCheckoutScheduler) claimDay(ctx context.Context, now time.Time) bool {
	date := now.Format("2006-01-02")

	s.mu.Lock()
	if s.lastDate == date {
		s.mu.Unlock()
		return false
	}
	s.lastDate = date
	s.mu.Unlock()

	if s.redis == nil {
		return true
	}
	key := fmt.Sprintf("autocheckout:%s", date)
	acquired, err := s.redis.SetNX(ctx, key, "1", dayMarkerTTL).Result()
	if err != nil {
		s.logger.Warn("auto-checkout day marker unavailable, proceeding locally", zap.Error(err))
		return true
	}
	if !acquired {
		s.logger.Info("auto-checkout already swept today", zap.String("date", date))
	}
	return acquired
}
