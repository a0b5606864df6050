package taxonomy

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Uncategorized is returned when no category label is available to match.
const Uncategorized = "Uncategorized"

// BestCategory fuzzy-matches a raw catalog category label against the
// taxonomy, returning the best full path and a similarity score in [0,1].
// Each candidate is scored against both its full path and its leaf segment,
// whichever is closer; that way "sneaker" lands on "Apparel > Shoes >
// Sneakers" rather than a shallow ancestor.
//
// Paths are examined in sorted order and only a strictly better score
// replaces the current best, so equal-scoring candidates resolve to the
// lexicographically smallest path. The result is deterministic across runs
// and environments.
//
// A low score still returns the best candidate; deciding whether the
// confidence is high enough to trust is the caller's concern.
func BestCategory(label string, tax *Taxonomy) (string, float64) {
	label = strings.TrimSpace(label)
	if label == "" || tax == nil || tax.Len() == 0 {
		return Uncategorized, 0
	}

	dice := metrics.NewSorensenDice()
	dice.CaseSensitive = false

	best := ""
	bestScore := 0.0
	for i, path := range tax.paths {
		score := strutil.Similarity(label, path, dice)
		if leafScore := strutil.Similarity(label, tax.leaves[i], dice); leafScore > score {
			score = leafScore
		}
		if score > bestScore {
			best, bestScore = path, score
		}
	}

	if best == "" {
		return Uncategorized, 0
	}
	return best, bestScore
}
