// Package scoring contains the pure match-confidence calculation used by
// PuzzleTracker to rank candidate (inventory item x puzzle) pairs. This
// package is PURE and must NOT import any infrastructure packages.
package scoring

import "strings"

// thematicPairs are explicit high-confidence item/puzzle keyword pairings:
// key+lock, light+dark, and similar canonical text-adventure pairings.
var thematicPairs = [][2]string{
	{"key", "lock"},
	{"key", "door"},
	{"lamp", "dark"},
	{"lantern", "dark"},
	{"torch", "dark"},
	{"light", "dark"},
	{"rope", "chasm"},
	{"rope", "pit"},
	{"ladder", "pit"},
	{"axe", "tree"},
	{"axe", "door"},
	{"food", "hungry"},
	{"food", "starving"},
	{"garlic", "vampire"},
	{"coin", "vending"},
	{"coin", "slot"},
}

// MatchConfidence scores how well an inventory item matches an open puzzle's
// description, based on the item's name/properties and the puzzle text.
// Explicit thematic pairings and exact related-item membership score high;
// shared substrings score medium; anything else scores low but is still
// returned, per the puzzle tracker's "attach everything, flag confidence"
// contract.
func MatchConfidence(itemName, itemID string, puzzleDescription string, isRelatedItem bool) string {
	if isRelatedItem {
		return "high"
	}

	lowerItem := strings.ToLower(itemName)
	lowerDesc := strings.ToLower(puzzleDescription)

	for _, pair := range thematicPairs {
		if strings.Contains(lowerItem, pair[0]) && strings.Contains(lowerDesc, pair[1]) {
			return "high"
		}
	}

	if strings.Contains(lowerDesc, lowerItem) || strings.Contains(lowerDesc, strings.ToLower(itemID)) {
		return "medium"
	}

	return "low"
}

// AttemptsWithoutProgress reports whether a puzzle's attempt count has
// crossed the de-prioritization threshold without reaching solved status.
func AttemptsWithoutProgress(attemptCount, threshold int) bool {
	return attemptCount > threshold
}
