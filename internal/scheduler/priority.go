package scheduler

import (
	"strings"

	"founder-scheduler/internal/models"
)

// DefaultPriority scores a candidate for the founder: relevance to the
// founder's industry dominates, investors edge out events, and shorter
// commutes break the rest.
func DefaultPriority(prefs models.Preferences, c models.RoutedCandidate) float64 {
	score := 0.0
	switch cand := c.Candidate.(type) {
	case models.Investor:
		score = 1
		if cand.InterestedIn(prefs.Industry) {
			score += 2
		}
	case models.Event:
		score = 0.5
		if mentions(cand.Name, prefs.Industry) || mentions(cand.Description, prefs.Industry) {
			score += 2
		}
	}
	return score - float64(c.Commute.TravelMinutes)/120
}

// Rank returns copies of candidates carrying DefaultPriority.
func Rank(prefs models.Preferences, candidates []models.RoutedCandidate) []models.RoutedCandidate {
	out := make([]models.RoutedCandidate, len(candidates))
	for i, c := range candidates {
		out[i] = c.WithPriority(DefaultPriority(prefs, c))
	}
	return out
}

func mentions(text, term string) bool {
	term = strings.TrimSpace(term)
	return term != "" && strings.Contains(strings.ToLower(text), strings.ToLower(term))
}
