package dto

import "time"

// AttendanceActionRequest payload. EngineerID empty means the caller.
type AttendanceActionRequest struct {
	EngineerID string `json:"engineer_id"`
}

// CheckInResponse reports the state after a check-in.
type CheckInResponse struct {
	EngineerID  string    `json:"engineer_id"`
	CheckedInAt time.Time `json:"checked_in_at"`
	IsCheckedIn bool      `json:"is_checked_in"`
}

// CheckOutResponse reports the state after a checkout, flagging whether
// the effective time was clamped to the cutoff.
type CheckOutResponse struct {
	EngineerID     string    `json:"engineer_id"`
	CheckedOutAt   time.Time `json:"checked_out_at"`
	SessionMinutes int       `json:"session_minutes"`
	TotalMinutes   int       `json:"total_minutes"`
	AutoCheckout   bool      `json:"auto_checkout"`
}

// AttendanceStatusResponse is the current attendance snapshot.
type AttendanceStatusResponse struct {
	EngineerID        string     `json:"engineer_id"`
	IsCheckedIn       bool       `json:"is_checked_in"`
	Availability      string     `json:"availability"`
	LastCheckIn       *time.Time `json:"last_check_in"`
	LastCheckOut      *time.Time `json:"last_check_out"`
	DailyFirstCheckIn *time.Time `json:"daily_first_check_in"`
	DailyTotalMinutes int        `json:"daily_total_minutes"`
}

// WorkSessionResponse is one bracket within a day.
type WorkSessionResponse struct {
	In  time.Time  `json:"in"`
	Out *time.Time `json:"out"`
}

// DailyWorkRecordResponse is one persisted day aggregate.
type DailyWorkRecordResponse struct {
	WorkDate         string                `json:"work_date"`
	FirstCheckIn     *time.Time            `json:"first_check_in"`
	LastCheckOut     *time.Time            `json:"last_check_out"`
	TotalWorkMinutes int                   `json:"total_work_minutes"`
	Sessions         []WorkSessionResponse `json:"sessions"`
}

// WorkStatsResponse aggregates records over a range.
type WorkStatsResponse struct {
	TotalDays        int `json:"total_days"`
	TotalMinutes     int `json:"total_minutes"`
	AvgMinutesPerDay int `json:"avg_minutes_per_day"`
	MaxMinutesDay    int `json:"max_minutes_day"`
	MinMinutesDay    int `json:"min_minutes_day"`
}
