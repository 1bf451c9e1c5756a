package domain

import "time"

// Role enumerates account roles ordered by privilege.
type Role string

const (
	RoleEngineer   Role = "engineer"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

var roleRank = map[Role]int{
	RoleEngineer:   0,
	RoleManager:    1,
	RoleAdmin:      2,
	RoleSuperadmin: 3,
}

// Rank returns the privilege rank of the role, or -1 for unknown roles.
func (r Role) Rank() int {
	rank, ok := roleRank[r]
	if !ok {
		return -1
	}
	return rank
}

// IsManagerTier reports whether the role may act on behalf of others
// (assign tickets to anyone, reassign non-pending tickets).
func (r Role) IsManagerTier() bool {
	return r.Rank() >= roleRank[RoleManager]
}

// Availability is the assignment-eligibility state of an engineer.
// Offline whenever the engineer is not checked in; otherwise explicitly
// free or busy.
type Availability string

const (
	AvailabilityFree    Availability = "free"
	AvailabilityBusy    Availability = "busy"
	AvailabilityOffline Availability = "offline"
)

// SkillLevel enumerates proficiency levels.
type SkillLevel string

const (
	SkillLevelNovice   SkillLevel = "novice"
	SkillLevelAdvanced SkillLevel = "advanced"
	SkillLevelExpert   SkillLevel = "expert"
)

// Skill is one competency of an engineer.
type Skill struct {
	Name            string
	Level           SkillLevel
	YearsExperience float64
}

// UserStatus represents account lifecycle states.
type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusBlocked UserStatus = "blocked"
)

// User is an account in the system. Engineers additionally carry
// availability and attendance state.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Status       UserStatus
	Availability Availability
	Skills       []Skill

	IsCheckedIn           bool
	LastCheckIn           *time.Time
	LastCheckOut          *time.Time
	DailyFirstCheckIn     *time.Time
	DailyLastCheckOut     *time.Time
	DailyTotalWorkMinutes int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Actor identifies the caller of an operation, as supplied by the
// session layer.
type Actor struct {
	ID   string
	Role Role
}
