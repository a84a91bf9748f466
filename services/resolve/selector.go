package resolve

import (
	"sort"

	"streambd/models"
)

// Acceptance thresholds. A single mirror's top series hit at or above
// immediateAcceptScore stops the search early; a final best below
// lowConfidenceScore is still returned, only flagged.
const (
	immediateAcceptScore = 0.65
	lowConfidenceScore   = 0.50
)

// RankCandidates orders candidates series-first, then by score descending.
// The sort is stable so "first found wins" holds among exactly equal keys.
func RankCandidates(cands []models.ScoredCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].IsSeries != cands[j].IsSeries {
			return cands[i].IsSeries
		}
		return cands[i].Score > cands[j].Score
	})
}

// ShouldAcceptImmediately reports whether a mirror's top candidate is strong
// enough to skip the remaining variants and mirrors.
func ShouldAcceptImmediately(best models.ScoredCandidate) bool {
	return best.IsSeries && best.Score >= immediateAcceptScore
}

// BetterOverall reports whether challenger outranks incumbent under the same
// (is-series, score) ordering the per-mirror ranking uses. Equal keys keep
// the incumbent, so earlier finds win ties.
func BetterOverall(challenger, incumbent models.ScoredCandidate) bool {
	if challenger.IsSeries != incumbent.IsSeries {
		return challenger.IsSeries
	}
	return challenger.Score > incumbent.Score
}

// FinalizeSelection wraps the best-overall candidate into a SelectionResult,
// applying the low-confidence flag. found=false yields the none-found result.
func FinalizeSelection(best models.ScoredCandidate, found bool) models.SelectionResult {
	if !found {
		return models.SelectionResult{}
	}
	return models.SelectionResult{
		Candidate:     best,
		Found:         true,
		LowConfidence: best.Score < lowConfidenceScore,
	}
}
