package resolve

import (
	"regexp"
	"strconv"
	"strings"

	"streambd/models"
)

// Scoring adjustment table. The constants were tuned against one catalog's
// title conventions and are a fixed policy: change one and season resolution
// quietly picks different entries.
const (
	seriesTypeBonus      = 0.05
	seasonMatchBonus     = 0.15
	wrongSeasonPenalty   = 0.20
	ambiguousSeasonBonus = 0.05
	dubFallbackBonus     = 0.10
	noSeasonInfoBonus    = 0.02
	seasonBlockCredit    = 0.03
	episodeBatchPenalty  = 0.07
)

var (
	reSeasonBlockShort = regexp.MustCompile(`\bs\s*\d+\b`)
	reSeasonNumber     = regexp.MustCompile(`(?:season\s*|s\s*)(\d+)`)
	reEpisodeRange     = regexp.MustCompile(`\b\d+\s*[-–]\s*\d+\b`)
)

// ScoreCandidate computes the adjusted relevance of a candidate against the
// reference. The base is the better token-set overlap of the candidate's
// normalized title against the reference's full and base normalizations;
// adjustments are additive on top and may push the score outside [0,1].
func ScoreCandidate(cand models.Candidate, ref models.ReferenceTitle) models.ScoredCandidate {
	scored := models.ScoredCandidate{Candidate: cand}

	scoreFull := tokenSetRatio(cand.NormalizedTitle, ref.NormalizedFull)
	scoreBase := tokenSetRatio(cand.NormalizedTitle, ref.NormalizedBase)
	score := scoreFull
	if scoreBase > score {
		score = scoreBase
	}

	titleLower := strings.ToLower(cand.Title)

	scored.HasSeasonBlock = hasSeasonBlock(titleLower)
	scored.HasEpisodeBatch = hasEpisodeBatch(titleLower)
	isDubFallback := strings.Contains(titleLower, "bangla") || strings.Contains(titleLower, "বাংলা")

	if cand.IsSeries {
		score += seriesTypeBonus
	}

	var penalty float64
	if scored.HasSeasonBlock {
		if found, ok := extractSeasonNumber(titleLower); ok {
			scored.FoundSeason = found
			if found == ref.Season {
				scored.SeasonMatch = true
				score += seasonMatchBonus
			} else {
				penalty = wrongSeasonPenalty
			}
		} else {
			// Season wording with no parsable number reads like a general
			// series page; nudge it up.
			score += ambiguousSeasonBonus
		}
	} else {
		if ref.Season == 1 && isDubFallback {
			// First seasons often ship as one consolidated dubbed file with
			// no season tag at all.
			score += dubFallbackBonus
		} else {
			score += noSeasonInfoBonus
		}
	}

	// Partial credit for being season-structured even on the wrong season.
	// Stacks with the penalty below; both effects are load-bearing.
	if scored.HasSeasonBlock && !scored.SeasonMatch {
		score += seasonBlockCredit
	}

	if scored.HasEpisodeBatch {
		score -= episodeBatchPenalty
	}

	score -= penalty

	scored.Score = score
	return scored
}

// tokenSetRatio is the Jaccard ratio of the whitespace token sets of two
// normalized strings. Symmetric; zero when either side is empty.
func tokenSetRatio(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := make(map[string]struct{}, len(tokensA))
	for _, tok := range tokensA {
		setA[tok] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tokensB))
	for _, tok := range tokensB {
		setB[tok] = struct{}{}
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// hasSeasonBlock reports whether the raw title carries season structure,
// either the word itself or a short sN tag.
func hasSeasonBlock(titleLower string) bool {
	return strings.Contains(titleLower, "season") || reSeasonBlockShort.MatchString(titleLower)
}

// hasEpisodeBatch flags bundled multi-episode entries ("Episode 12-18"),
// undesirable when one specific episode was asked for.
func hasEpisodeBatch(titleLower string) bool {
	return strings.Contains(titleLower, "episode") && reEpisodeRange.MatchString(titleLower)
}

func extractSeasonNumber(titleLower string) (int, bool) {
	m := reSeasonNumber.FindStringSubmatch(titleLower)
	if len(m) != 2 {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
