package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/field-service/internal/config"
	"github.com/fieldops/field-service/internal/domain"
	"github.com/fieldops/field-service/internal/observability"
	"github.com/fieldops/field-service/internal/service"
)

type stubClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stubClock) set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type stubUserRepo struct {
	mu          sync.Mutex
	users       map[string]*domain.User
	checkOutErr map[string]error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		users:       make(map[string]*domain.User),
		checkOutErr: make(map[string]error),
	}
}

func (r *stubUserRepo) addCheckedIn(id string, since time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = &domain.User{
		ID:                id,
		Name:              id,
		Role:              domain.RoleEngineer,
		Status:            domain.UserStatusActive,
		Availability:      domain.AvailabilityFree,
		IsCheckedIn:       true,
		LastCheckIn:       &since,
		DailyFirstCheckIn: &since,
	}
}

func (r *stubUserRepo) Create(ctx context.Context, user *domain.User) error { return nil }

func (r *stubUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *stubUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, pgx.ErrNoRows
}

func (r *stubUserRepo) ListActiveEngineersWithSkills(ctx context.Context) ([]domain.User, error) {
	return nil, nil
}

func (r *stubUserRepo) ListCheckedIn(ctx context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, user := range r.users {
		if user.IsCheckedIn {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *stubUserRepo) ReplaceSkills(ctx context.Context, engineerID string, skills []domain.Skill) error {
	return nil
}

func (r *stubUserRepo) SetAvailability(ctx context.Context, id string, availability domain.Availability) error {
	return nil
}

func (r *stubUserRepo) CheckIn(ctx context.Context, id string, at time.Time, rollover bool) (bool, error) {
	return false, nil
}

func (r *stubUserRepo) CheckOut(ctx context.Context, id string, effective time.Time, minutes int) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOutErr[id]; err != nil {
		return nil, err
	}
	user, ok := r.users[id]
	if !ok || !user.IsCheckedIn {
		return nil, pgx.ErrNoRows
	}
	user.IsCheckedIn = false
	user.LastCheckOut = &effective
	user.DailyLastCheckOut = &effective
	user.DailyTotalWorkMinutes += minutes
	user.Availability = domain.AvailabilityOffline
	copied := *user
	return &copied, nil
}

type stubWorkTimeRepo struct {
	mu      sync.Mutex
	records map[string]*domain.DailyWorkRecord
	upserts int
}

func newStubWorkTimeRepo() *stubWorkTimeRepo {
	return &stubWorkTimeRepo{records: make(map[string]*domain.DailyWorkRecord)}
}

func (r *stubWorkTimeRepo) Upsert(ctx context.Context, record *domain.DailyWorkRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	copied := *record
	r.records[record.EngineerID+"|"+record.WorkDate] = &copied
	return nil
}

func (r *stubWorkTimeRepo) GetByEngineerAndDate(ctx context.Context, engineerID, workDate string) (*domain.DailyWorkRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[engineerID+"|"+workDate]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (r *stubWorkTimeRepo) ListByEngineer(ctx context.Context, engineerID string, fromDate, toDate *string, limit int) ([]domain.DailyWorkRecord, error) {
	return nil, nil
}

type schedulerFixture struct {
	scheduler *AutoCheckoutScheduler
	users     *stubUserRepo
	records   *stubWorkTimeRepo
	metrics   *observability.Metrics
	clock     *stubClock
}

func newSchedulerFixture(now time.Time) *schedulerFixture {
	users := newStubUserRepo()
	records := newStubWorkTimeRepo()
	clock := &stubClock{now: now}
	metrics := observability.NewMetrics()

	worktime := service.NewWorkTimeService(service.WorkTimeDependencies{
		UserRepo:   users,
		RecordRepo: records,
		Attendance: config.AttendanceConfig{WindowStartHour: 9, WindowEndHour: 19},
		Clock:      clock,
	})
	scheduler := NewAutoCheckoutScheduler(SchedulerDependencies{
		UserRepo: users,
		WorkTime: worktime,
		Metrics:  metrics,
		Clock:    clock,
	})
	return &schedulerFixture{
		scheduler: scheduler,
		users:     users,
		records:   records,
		metrics:   metrics,
		clock:     clock,
	}
}

func cutoffDay(hour, minute int) time.Time {
	return time.Date(2026, time.March, 10, hour, minute, 0, 0, time.Local)
}

func TestTickFiresOnlyInCutoffMinute(t *testing.T) {
	f := newSchedulerFixture(cutoffDay(18, 59))
	f.users.addCheckedIn("eng-1", cutoffDay(10, 0))
	ctx := context.Background()

	f.scheduler.Tick(ctx)
	user, err := f.users.GetByID(ctx, "eng-1")
	require.NoError(t, err)
	assert.True(t, user.IsCheckedIn)

	f.clock.set(cutoffDay(19, 0))
	f.scheduler.Tick(ctx)
	user, err = f.users.GetByID(ctx, "eng-1")
	require.NoError(t, err)
	assert.False(t, user.IsCheckedIn)
}

func TestSweepChecksOutEveryoneAtCutoff(t *testing.T) {
	f := newSchedulerFixture(cutoffDay(19, 0))
	f.users.addCheckedIn("eng-1", cutoffDay(10, 0))
	f.users.addCheckedIn("eng-2", cutoffDay(11, 30))
	ctx := context.Background()

	f.scheduler.Sweep(ctx, cutoffDay(19, 0))

	first, err := f.users.GetByID(ctx, "eng-1")
	require.NoError(t, err)
	assert.False(t, first.IsCheckedIn)
	assert.Equal(t, 540, first.DailyTotalWorkMinutes)
	require.NotNil(t, first.LastCheckOut)
	assert.Equal(t, cutoffDay(19, 0), *first.LastCheckOut)

	second, err := f.users.GetByID(ctx, "eng-2")
	require.NoError(t, err)
	assert.False(t, second.IsCheckedIn)
	assert.Equal(t, 450, second.DailyTotalWorkMinutes)

	record, err := f.records.GetByEngineerAndDate(ctx, "eng-1", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 540, record.TotalWorkMinutes)
	require.NotNil(t, record.LastCheckOut)
	assert.Equal(t, cutoffDay(19, 0), *record.LastCheckOut)

	requests, _ := f.metrics.Snapshot()
	assert.Equal(t, int64(2), requests["sweep|checked_out"])
}

func TestRepeatedSweepIsNoOp(t *testing.T) {
	f := newSchedulerFixture(cutoffDay(19, 0))
	f.users.addCheckedIn("eng-1", cutoffDay(10, 0))
	f.users.addCheckedIn("eng-2", cutoffDay(11, 0))
	ctx := context.Background()

	f.scheduler.Sweep(ctx, cutoffDay(19, 0))
	upsertsAfterFirst := f.records.upserts

	f.scheduler.Sweep(ctx, cutoffDay(19, 0))
	assert.Equal(t, upsertsAfterFirst, f.records.upserts)

	user, err := f.users.GetByID(ctx, "eng-1")
	require.NoError(t, err)
	assert.Equal(t, 540, user.DailyTotalWorkMinutes)
}

func TestTickRunsAtMostOncePerDay(t *testing.T) {
	f := newSchedulerFixture(cutoffDay(19, 0))
	f.users.addCheckedIn("eng-1", cutoffDay(10, 0))
	ctx := context.Background()

	f.scheduler.Tick(ctx)
	upsertsAfterFirst := f.records.upserts

	// Still inside the cutoff minute; the day marker blocks a second run.
	f.scheduler.Tick(ctx)
	assert.Equal(t, upsertsAfterFirst, f.records.upserts)
}

func TestSweepIsolatesPerEngineerFailures(t *testing.T) {
	f := newSchedulerFixture(cutoffDay(19, 0))
	f.users.addCheckedIn("eng-bad", cutoffDay(10, 0))
	f.users.addCheckedIn("eng-good", cutoffDay(10, 0))
	f.users.checkOutErr["eng-bad"] = errors.New("connection reset")
	ctx := context.Background()

	f.scheduler.Sweep(ctx, cutoffDay(19, 0))

	good, err := f.users.GetByID(ctx, "eng-good")
	require.NoError(t, err)
	assert.False(t, good.IsCheckedIn)

	bad, err := f.users.GetByID(ctx, "eng-bad")
	require.NoError(t, err)
	assert.True(t, bad.IsCheckedIn)

	requests, _ := f.metrics.Snapshot()
	assert.Equal(t, int64(1), requests["sweep|checked_out"])
	assert.Equal(t, int64(1), requests["sweep|failed"])
}
