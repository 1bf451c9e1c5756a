package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldops/field-service/internal/domain"
)

func TestScoreEngineerFreeExpertMatch(t *testing.T) {
	engineer := &domain.User{
		Availability: domain.AvailabilityFree,
		Skills: []domain.Skill{
			{Name: "CO2", Level: domain.SkillLevelExpert, YearsExperience: 4},
		},
	}
	// 10 (free) + 5 (machine match) + 3 (expert) + 2 (experience)
	score := ScoreEngineer(engineer, "CO2 150W", nil)
	assert.InDelta(t, 20.0, score, 0.001)
}

func TestScoreEngineerBusyPenalty(t *testing.T) {
	engineer := &domain.User{Availability: domain.AvailabilityBusy}
	assert.InDelta(t, -5.0, ScoreEngineer(engineer, "", nil), 0.001)
}

func TestScoreEngineerMatchIsCaseInsensitiveBothDirections(t *testing.T) {
	bySkillSubstring := &domain.User{
		Availability: domain.AvailabilityOffline,
		Skills:       []domain.Skill{{Name: "co2", Level: domain.SkillLevelNovice}},
	}
	assert.InDelta(t, 5.0, ScoreEngineer(bySkillSubstring, "CO2 150W", nil), 0.001)

	byModelSubstring := &domain.User{
		Availability: domain.AvailabilityOffline,
		Skills:       []domain.Skill{{Name: "CO2 150W Laser Cutter", Level: domain.SkillLevelNovice}},
	}
	assert.InDelta(t, 5.0, ScoreEngineer(byModelSubstring, "co2 150w", nil), 0.001)
}

func TestScoreEngineerSkillStacksAcrossBonuses(t *testing.T) {
	engineer := &domain.User{
		Availability: domain.AvailabilityFree,
		Skills: []domain.Skill{
			{Name: "laser", Level: domain.SkillLevelAdvanced, YearsExperience: 2},
		},
	}
	// One skill earns the machine bonus and both category bonuses:
	// 10 + 5 + 2 + 4 + 4 + 1 (experience)
	score := ScoreEngineer(engineer, "Laser 500", []string{"laser alignment", "laser optics"})
	assert.InDelta(t, 26.0, score, 0.001)
}

func TestScoreEngineerExperienceBonusCapped(t *testing.T) {
	engineer := &domain.User{
		Availability: domain.AvailabilityOffline,
		Skills: []domain.Skill{
			{Name: "a", YearsExperience: 12},
			{Name: "b", YearsExperience: 8},
		},
	}
	assert.InDelta(t, 5.0, ScoreEngineer(engineer, "", nil), 0.001)
}

func TestRankEngineersExcludesOfflineAndKeepsStableTies(t *testing.T) {
	first := domain.User{ID: "e1", Availability: domain.AvailabilityFree}
	second := domain.User{ID: "e2", Availability: domain.AvailabilityFree}
	offline := domain.User{ID: "e3", Availability: domain.AvailabilityOffline}
	busy := domain.User{ID: "e4", Availability: domain.AvailabilityBusy}

	ranked := RankEngineers([]domain.User{first, second, offline, busy}, "", nil)

	if assert.Len(t, ranked, 3) {
		// e1 and e2 tie at 10; input order is preserved. The busy
		// engineer sorts last at -5.
		assert.Equal(t, "e1", ranked[0].Engineer.ID)
		assert.Equal(t, "e2", ranked[1].Engineer.ID)
		assert.Equal(t, "e4", ranked[2].Engineer.ID)
	}
}
