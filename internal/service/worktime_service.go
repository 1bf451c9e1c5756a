package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fieldops/field-service/internal/config"
	"github.com/fieldops/field-service/internal/domain"
	"github.com/fieldops/field-service/internal/events"
	"github.com/fieldops/field-service/internal/repository"
	apperrors "github.com/fieldops/field-service/pkg/util"
)

const workDateLayout = "2006-01-02"

// WorkTimeService implements daily attendance: check-in inside the
// configured window, checkout with the effective time clamped to the
// cutoff hour, and idempotent per-day aggregates. Durations are floored
// to whole minutes.
type WorkTimeService struct {
	users      repository.UserRepository
	records    repository.WorkTimeRepository
	dispatcher events.Dispatcher
	window     config.AttendanceConfig
	clock      Clock
	logger     *zap.Logger
}

// WorkTimeDependencies bundles collaborators for the work-time service.
type WorkTimeDependencies struct {
	UserRepo   repository.UserRepository
	RecordRepo repository.WorkTimeRepository
	Dispatcher events.Dispatcher
	Attendance config.AttendanceConfig
	Clock      Clock
	Logger     *zap.Logger
}

// NewWorkTimeService constructs the service.
func NewWorkTimeService(deps WorkTimeDependencies) *WorkTimeService {
	clock := deps.Clock
	if clock == nil {
		clock = RealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := deps.Attendance
	if window.WindowEndHour == 0 {
		window = config.AttendanceConfig{WindowStartHour: 9, WindowEndHour: 19}
	}
	return &WorkTimeService{
		users:      deps.UserRepo,
		records:    deps.RecordRepo,
		dispatcher: deps.Dispatcher,
		window:     window,
		clock:      clock,
		logger:     logger,
	}
}

// CutoffHour exposes the checkout clamp hour for the scheduler.
func (s *WorkTimeService) CutoffHour() int {
	return s.window.WindowEndHour
}

// CheckIn marks the engineer present. The window start is inclusive and
// the end exclusive, so 09:00 succeeds and 19:00 is rejected. When the
// calendar date has changed since the last first check-in, the daily
// aggregate rolls over.
func (s *WorkTimeService) CheckIn(ctx context.Context, actor *domain.Actor, engineerID string) (*domain.User, error) {
	engineerID, err := s.resolveTarget(actor, engineerID)
	if err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, engineerID)
	if err != nil {
		return nil, err
	}
	if user.IsCheckedIn {
		return nil, apperrors.NewInvalidState("already checked in", map[string]any{"engineer_id": engineerID})
	}

	now := s.clock.Now()
	if now.Hour() < s.window.WindowStartHour || now.Hour() >= s.window.WindowEndHour {
		return nil, apperrors.NewOutsideWindow(fmt.Sprintf(
			"check-in allowed between %02d:00 and %02d:00",
			s.window.WindowStartHour, s.window.WindowEndHour))
	}

	rollover := user.DailyFirstCheckIn == nil ||
		user.DailyFirstCheckIn.Format(workDateLayout) != now.Format(workDateLayout)

	matched, err := s.users.CheckIn(ctx, engineerID, now, rollover)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !matched {
		return nil, apperrors.NewInvalidState("already checked in", map[string]any{"engineer_id": engineerID})
	}

	s.publish(ctx, events.Event{
		Type:    events.EventEngineerCheckedIn,
		ActorID: actorID(actor),
		Payload: events.AttendancePayload{EngineerID: engineerID, At: now},
	})

	return s.loadUser(ctx, engineerID)
}

// CheckOut ends the current session. When the wall clock is at or past
// the cutoff hour the effective checkout time is clamped back to the
// cutoff and the result is flagged as an auto checkout. The session
// duration is floored to whole minutes and folded into today's record.
func (s *WorkTimeService) CheckOut(ctx context.Context, actor *domain.Actor, engineerID string) (*domain.CheckoutResult, error) {
	engineerID, err := s.resolveTarget(actor, engineerID)
	if err != nil {
		return nil, err
	}
	user, err := s.loadUser(ctx, engineerID)
	if err != nil {
		return nil, err
	}
	if !user.IsCheckedIn {
		return nil, apperrors.NewInvalidState("not checked in", map[string]any{"engineer_id": engineerID})
	}

	result, err := s.performCheckOut(ctx, user, s.clock.Now(), false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewInvalidState("not checked in", map[string]any{"engineer_id": engineerID})
		}
		return nil, err
	}
	return result, nil
}

// CheckOutForSweep is the scheduler's checkout path. An engineer already
// checked out by a racing manual request is a silent no-op: the sweep
// returns nil, nil.
func (s *WorkTimeService) CheckOutForSweep(ctx context.Context, engineerID string, at time.Time) (*domain.CheckoutResult, error) {
	user, err := s.users.GetByID(ctx, engineerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	if !user.IsCheckedIn {
		return nil, nil
	}
	result, err := s.performCheckOut(ctx, user, at, true)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return result, nil
}

func (s *WorkTimeService) performCheckOut(ctx context.Context, user *domain.User, now time.Time, sweep bool) (*domain.CheckoutResult, error) {
	effective := now
	auto := sweep
	if cutoff := s.cutoffFor(now); !now.Before(cutoff) {
		effective = cutoff
		auto = true
	}

	var minutes int
	sessionStart := user.LastCheckIn
	if sessionStart != nil && effective.After(*sessionStart) {
		minutes = int(effective.Sub(*sessionStart).Milliseconds() / 60000)
	}

	updated, err := s.users.CheckOut(ctx, user.ID, effective, minutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, apperrors.MapError(err)
	}

	s.upsertDailyRecord(ctx, updated, sessionStart, effective)

	s.publish(ctx, events.Event{
		Type: events.EventEngineerCheckedOut,
		Payload: events.AttendancePayload{
			EngineerID:   user.ID,
			At:           effective,
			Minutes:      minutes,
			AutoCheckout: auto,
		},
	})

	return &domain.CheckoutResult{
		Engineer:     updated,
		EffectiveAt:  effective,
		Minutes:      minutes,
		AutoCheckout: auto,
	}, nil
}

// upsertDailyRecord writes the per-day aggregate with absolute values
// taken from the engineer row, so a replay converges instead of double
// counting. Failure here is logged: the engineer row already carries the
// authoritative totals.
func (s *WorkTimeService) upsertDailyRecord(ctx context.Context, user *domain.User, sessionStart *time.Time, effective time.Time) {
	workDate := effective.Format(workDateLayout)
	if user.DailyFirstCheckIn != nil {
		workDate = user.DailyFirstCheckIn.Format(workDateLayout)
	}

	record := &domain.DailyWorkRecord{
		EngineerID:       user.ID,
		WorkDate:         workDate,
		FirstCheckIn:     user.DailyFirstCheckIn,
		LastCheckOut:     &effective,
		TotalWorkMinutes: user.DailyTotalWorkMinutes,
	}

	existing, err := s.records.GetByEngineerAndDate(ctx, user.ID, workDate)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Warn("failed to load daily work record",
			zap.String("engineer_id", user.ID),
			zap.String("work_date", workDate),
			zap.Error(err))
	}
	if existing != nil {
		record.Log = existing.Log
	}
	if sessionStart != nil {
		record.Log = append(record.Log, domain.WorkSession{In: *sessionStart, Out: &effective})
	}

	if err := s.records.Upsert(ctx, record); err != nil {
		s.logger.Warn("failed to upsert daily work record",
			zap.String("engineer_id", user.ID),
			zap.String("work_date", workDate),
			zap.Error(err))
	}
}

// TodayStatus reports the engineer's current attendance state together
// with today's aggregate record, if one exists yet.
func (s *WorkTimeService) TodayStatus(ctx context.Context, actor *domain.Actor, engineerID string) (*domain.User, *domain.DailyWorkRecord, error) {
	engineerID, err := s.resolveTarget(actor, engineerID)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.loadUser(ctx, engineerID)
	if err != nil {
		return nil, nil, err
	}
	record, err := s.records.GetByEngineerAndDate(ctx, engineerID, s.clock.Now().Format(workDateLayout))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user, nil, nil
		}
		return nil, nil, apperrors.MapError(err)
	}
	return user, record, nil
}

// History lists daily work records, newest first.
func (s *WorkTimeService) History(ctx context.Context, actor *domain.Actor, engineerID string, fromDate, toDate *string, limit int) ([]domain.DailyWorkRecord, error) {
	engineerID, err := s.resolveTarget(actor, engineerID)
	if err != nil {
		return nil, err
	}
	records, err := s.records.ListByEngineer(ctx, engineerID, fromDate, toDate, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return records, nil
}

// Stats aggregates the records over a range.
func (s *WorkTimeService) Stats(ctx context.Context, actor *domain.Actor, engineerID string, fromDate, toDate *string) (*domain.WorkStats, error) {
	records, err := s.History(ctx, actor, engineerID, fromDate, toDate, 0)
	if err != nil {
		return nil, err
	}

	stats := &domain.WorkStats{TotalDays: len(records)}
	for i, record := range records {
		stats.TotalMinutes += record.TotalWorkMinutes
		if record.TotalWorkMinutes > stats.MaxMinutesDay {
			stats.MaxMinutesDay = record.TotalWorkMinutes
		}
		if i == 0 || record.TotalWorkMinutes < stats.MinMinutesDay {
			stats.MinMinutesDay = record.TotalWorkMinutes
		}
	}
	if stats.TotalDays > 0 {
		stats.AvgMinutesPerDay = stats.TotalMinutes / stats.TotalDays
	}
	return stats, nil
}

// resolveTarget applies the attendance permission rule: engineers act on
// themselves only; manager-tier actors may act on anyone.
func (s *WorkTimeService) resolveTarget(actor *domain.Actor, engineerID string) (string, error) {
	if actor == nil {
		return "", apperrors.NewUnauthorized("authentication required")
	}
	if engineerID == "" || engineerID == actor.ID {
		return actor.ID, nil
	}
	if !actor.Role.IsManagerTier() {
		return "", apperrors.NewForbidden("engineers may only manage their own attendance")
	}
	return engineerID, nil
}

func (s *WorkTimeService) loadUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("engineer", map[string]any{"engineer_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func (s *WorkTimeService) cutoffFor(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), s.window.WindowEndHour, 0, 0, 0, now.Location())
}

func (s *WorkTimeService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}
