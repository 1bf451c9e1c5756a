package domain

import "time"

// WorkSession is one check-in/check-out bracket within a day.
type WorkSession struct {
	In  time.Time  `json:"in"`
	Out *time.Time `json:"out,omitempty"`
}

// DailyWorkRecord is the persisted per-day aggregate of an engineer's
// worked time. One record per engineer per calendar day, created lazily
// on the first checkout of that day.
type DailyWorkRecord struct {
	ID               string
	EngineerID       string
	WorkDate         string // YYYY-MM-DD local calendar day
	FirstCheckIn     *time.Time
	LastCheckOut     *time.Time
	TotalWorkMinutes int
	Log              []WorkSession
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CheckoutResult describes the outcome of a checkout, including whether
// the effective timestamp was clamped to the cutoff hour.
type CheckoutResult struct {
	Engineer     *User
	EffectiveAt  time.Time
	Minutes      int
	AutoCheckout bool
}

// WorkStats aggregates daily work records over a date range.
type WorkStats struct {
	TotalDays        int `json:"totalDays"`
	TotalMinutes     int `json:"totalMinutes"`
	AvgMinutesPerDay int `json:"avgMinutesPerDay"`
	MaxMinutesDay    int `json:"maxMinutesDay"`
	MinMinutesDay    int `json:"minMinutesDay"`
}
