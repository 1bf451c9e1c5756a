package service

import (
	"sort"
	"strings"

	"github.com/fieldops/field-service/internal/domain"
)

// Scoring weights for engineer-ticket fit.
const (
	scoreAvailabilityFree = 10
	scoreAvailabilityBusy = -5
	scoreMachineMatch     = 5
	scoreLevelExpert      = 3
	scoreLevelAdvanced    = 2
	scoreCategoryMatch    = 4
	scoreExperienceCap    = 5
)

// ScoredEngineer pairs a candidate with its computed fit score.
type ScoredEngineer struct {
	Engineer domain.User
	Score    float64
}

// ScoreEngineer computes the fit of one engineer for a ticket described
// by its machine model and issue categories. Matching is a case-insensitive
// substring test in either direction. A single skill may earn both the
// machine bonus and category bonuses, and may match several categories;
// the stacking is intentional.
func ScoreEngineer(engineer *domain.User, machineModel string, issueCategories []string) float64 {
	var score float64

	switch engineer.Availability {
	case domain.AvailabilityFree:
		score += scoreAvailabilityFree
	case domain.AvailabilityBusy:
		score += scoreAvailabilityBusy
	}

	model := strings.ToLower(strings.TrimSpace(machineModel))
	categories := make([]string, 0, len(issueCategories))
	for _, c := range issueCategories {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			categories = append(categories, c)
		}
	}

	var totalYears float64
	for _, skill := range engineer.Skills {
		name := strings.ToLower(strings.TrimSpace(skill.Name))
		totalYears += skill.YearsExperience
		if name == "" {
			continue
		}
		if model != "" && matchesEitherDirection(name, model) {
			score += scoreMachineMatch
			switch skill.Level {
			case domain.SkillLevelExpert:
				score += scoreLevelExpert
			case domain.SkillLevelAdvanced:
				score += scoreLevelAdvanced
			}
		}
		for _, category := range categories {
			if matchesEitherDirection(name, category) {
				score += scoreCategoryMatch
			}
		}
	}

	experienceBonus := totalYears / 2
	if experienceBonus > scoreExperienceCap {
		experienceBonus = scoreExperienceCap
	}
	score += experienceBonus

	return score
}

// RankEngineers scores each candidate and sorts descending by score.
// The sort is stable so candidates tied on score keep their input order,
// which the callers fix to creation order for deterministic results.
func RankEngineers(candidates []domain.User, machineModel string, issueCategories []string) []ScoredEngineer {
	ranked := make([]ScoredEngineer, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Availability == domain.AvailabilityOffline {
			continue
		}
		engineer := candidate
		ranked = append(ranked, ScoredEngineer{
			Engineer: engineer,
			Score:    ScoreEngineer(&engineer, machineModel, issueCategories),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func matchesEitherDirection(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}
