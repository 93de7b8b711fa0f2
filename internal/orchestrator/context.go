package orchestrator

import (
	"github.com/mradwan/autofrotz/internal/domain/puzzle"
	"github.com/mradwan/autofrotz/internal/engine"
)

// assembleContext gathers everything §4.F step 5 names: latest output,
// current room, inventory, items-here, a compact map summary, open puzzles
// with suggestions, and the last few (command, outcome) pairs.
func assembleContext(
	latestOutput, currentRoom string,
	graph *engine.MapGraph,
	registry *engine.ItemRegistry,
	tracker *engine.PuzzleTracker,
	suggestions []puzzle.Suggestion,
	recent []CommandOutcome,
) DecisionContext {
	inventory := registry.GetInventory()
	invNames := make([]string, len(inventory))
	for i, it := range inventory {
		invNames[i] = it.Name
	}

	here := registry.GetItemsInRoom(currentRoom)
	hereNames := make([]string, len(here))
	for i, it := range here {
		hereNames[i] = it.Name
	}

	rooms := graph.AllRooms()
	unexplored := graph.GetUnexploredExits("")

	return DecisionContext{
		LatestOutput: latestOutput,
		CurrentRoom:  currentRoom,
		Inventory:    invNames,
		ItemsHere:    hereNames,
		MapSummary: MapSummary{
			RoomsVisited:    len(rooms),
			RoomsTotal:      len(rooms),
			UnexploredCount: len(unexplored),
			Current:         currentRoom,
		},
		OpenPuzzles:    tracker.OpenPuzzles(),
		Suggestions:    suggestions,
		RecentOutcomes: lastOutcomes(recent, 5),
	}
}

func lastOutcomes(outcomes []CommandOutcome, n int) []CommandOutcome {
	if len(outcomes) <= n {
		return outcomes
	}
	return outcomes[len(outcomes)-n:]
}

// topSuggestion picks the highest-confidence suggestion, preferring high
// over medium over low, first-seen-wins on ties — the candidate the
// decision fallback chain reaches for when the game agent can't be parsed.
func topSuggestion(suggestions []puzzle.Suggestion) *puzzle.Suggestion {
	rank := map[puzzle.Confidence]int{puzzle.ConfidenceHigh: 2, puzzle.ConfidenceMedium: 1, puzzle.ConfidenceLow: 0}
	var best *puzzle.Suggestion
	for i := range suggestions {
		s := &suggestions[i]
		if best == nil || rank[s.Confidence] > rank[best.Confidence] {
			best = s
		}
	}
	return best
}
