// Package normalize holds the pure text-normalization and similarity
// calculations shared by the map and item managers. This package is PURE and
// must NOT import any infrastructure packages.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	leadingArticle  = regexp.MustCompile(`^(the|a|an)\s+`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	nonWordExceptUS = regexp.MustCompile(`[^a-z0-9_]+`)
	repeatedUS      = regexp.MustCompile(`_+`)
	punctuation     = regexp.MustCompile(`[^a-z0-9\s]+`)
)

// RoomID normalizes a room's display name into a stable graph node id:
// lowercase, strip a leading article, collapse whitespace, then spaces to
// underscores and drop anything left that isn't alphanumeric or underscore.
func RoomID(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = leadingArticle.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, " ", "_")
	s = nonWordExceptUS.ReplaceAllString(s, "")
	return s
}

// ItemID normalizes an item's display name the same way RoomID does, with
// the additional step of collapsing repeated underscores and trimming them
// from both ends, since item names are shorter and more prone to producing
// doubled separators ("the old, rusty key" -> "old_rusty_key").
func ItemID(name string) string {
	s := RoomID(name)
	s = repeatedUS.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	return s
}

// MazeRoomID produces the collision-free id maze rooms use in place of their
// (often identical) display-name-derived id.
func MazeRoomID(groupID string, seq int) string {
	return "maze_" + groupID + "_" + strconv.Itoa(seq)
}

// Description normalizes a room description for maze-similarity comparison:
// lowercase, punctuation stripped, whitespace collapsed.
func Description(desc string) string {
	s := strings.ToLower(desc)
	s = punctuation.ReplaceAllString(s, " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SimilarityRatio scores how alike two normalized strings are, in [0, 1].
// There is no Go library in the module's dependency graph equivalent to
// Python's difflib.SequenceMatcher; this is a direct longest-common-
// subsequence-based ratio, which difflib's own ratio() approximates:
// 2 * matches / (len(a) + len(b)).
func SimilarityRatio(a, b string) float64 {
	if a == b {
		if a == "" {
			return 1
		}
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}

	matches := lcsLength(a, b)
	return 2 * float64(matches) / float64(la+lb)
}

// lcsLength computes the longest common subsequence length between two
// strings using the standard O(n*m) dynamic-programming table.
func lcsLength(a, b string) int {
	la, lb := len(a), len(b)
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}
