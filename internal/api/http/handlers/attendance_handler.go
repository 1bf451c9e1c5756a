package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/field-service/internal/api/dto"
	"github.com/fieldops/field-service/internal/auth"
	"github.com/fieldops/field-service/internal/domain"
	"github.com/fieldops/field-service/internal/service"
	apperrors "github.com/fieldops/field-service/pkg/util"
)

// AttendanceHandler manages check-in/check-out and work-time endpoints.
type AttendanceHandler struct {
	worktime *service.WorkTimeService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(worktime *service.WorkTimeService) *AttendanceHandler {
	return &AttendanceHandler{worktime: worktime}
}

// CheckIn POST /attendance/check-in.
func (h *AttendanceHandler) CheckIn(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	var req dto.AttendanceActionRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.worktime.CheckIn(c.Context(), actor, req.EngineerID)
	if err != nil {
		return err
	}
	resp := dto.CheckInResponse{
		EngineerID:  user.ID,
		IsCheckedIn: user.IsCheckedIn,
	}
	if user.LastCheckIn != nil {
		resp.CheckedInAt = *user.LastCheckIn
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CheckOut POST /attendance/check-out.
func (h *AttendanceHandler) CheckOut(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	var req dto.AttendanceActionRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.worktime.CheckOut(c.Context(), actor, req.EngineerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CheckOutResponse{
		EngineerID:     result.Engineer.ID,
		CheckedOutAt:   result.EffectiveAt,
		SessionMinutes: result.Minutes,
		TotalMinutes:   result.Engineer.DailyTotalWorkMinutes,
		AutoCheckout:   result.AutoCheckout,
	}})
}

// Status GET /attendance/status.
func (h *AttendanceHandler) Status(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	user, record, err := h.worktime.TodayStatus(c.Context(), actor, c.Query("engineer_id"))
	if err != nil {
		return err
	}
	resp := fiber.Map{
		"status": dto.AttendanceStatusResponse{
			EngineerID:        user.ID,
			IsCheckedIn:       user.IsCheckedIn,
			Availability:      string(user.Availability),
			LastCheckIn:       user.LastCheckIn,
			LastCheckOut:      user.LastCheckOut,
			DailyFirstCheckIn: user.DailyFirstCheckIn,
			DailyTotalMinutes: user.DailyTotalWorkMinutes,
		},
	}
	if record != nil {
		resp["today"] = workRecordResponse(record)
	}
	return c.JSON(fiber.Map{"data": resp})
}

// History GET /attendance/history.
func (h *AttendanceHandler) History(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	records, err := h.worktime.History(c.Context(), actor, c.Query("engineer_id"),
		optionalQuery(c, "from"), optionalQuery(c, "to"), parseInt(c.Query("limit"), 0))
	if err != nil {
		return err
	}
	items := make([]dto.DailyWorkRecordResponse, 0, len(records))
	for i := range records {
		items = append(items, workRecordResponse(&records[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Stats GET /attendance/stats.
func (h *AttendanceHandler) Stats(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	stats, err := h.worktime.Stats(c.Context(), actor, c.Query("engineer_id"),
		optionalQuery(c, "from"), optionalQuery(c, "to"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.WorkStatsResponse{
		TotalDays:        stats.TotalDays,
		TotalMinutes:     stats.TotalMinutes,
		AvgMinutesPerDay: stats.AvgMinutesPerDay,
		MaxMinutesDay:    stats.MaxMinutesDay,
		MinMinutesDay:    stats.MinMinutesDay,
	}})
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	if val := c.Query(key); val != "" {
		return &val
	}
	return nil
}

func workRecordResponse(record *domain.DailyWorkRecord) dto.DailyWorkRecordResponse {
	sessions := make([]dto.WorkSessionResponse, 0, len(record.Log))
	for _, session := range record.Log {
		sessions = append(sessions, dto.WorkSessionResponse{In: session.In, Out: session.Out})
	}
	return dto.DailyWorkRecordResponse{
		WorkDate:         record.WorkDate,
		FirstCheckIn:     record.FirstCheckIn,
		LastCheckOut:     record.LastCheckOut,
		TotalWorkMinutes: record.TotalWorkMinutes,
		Sessions:         sessions,
	}
}
