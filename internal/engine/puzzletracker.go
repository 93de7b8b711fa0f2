package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mradwan/autofrotz/internal/domain/normalize"
	"github.com/mradwan/autofrotz/internal/domain/puzzle"
	"github.com/mradwan/autofrotz/internal/domain/scoring"
	"github.com/mradwan/autofrotz/internal/llm"
	"github.com/mradwan/autofrotz/internal/platform/logger"
)

const (
	puzzleThrottleTurns    = 3
	puzzleAttemptCeiling   = 5
	stuckSameCommandCount  = 3
	stuckSameCommandWindow = 10
	stuckRoomSetWindow     = 15
	stuckRoomSetMaxSize    = 3
	stuckFailureRepeat     = 3
)

var puzzleDetectSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"puzzles": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"description":   map[string]any{"type": "string"},
					"related_items": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"description"},
			},
		},
	},
}

type puzzleDetectEnvelope struct {
	Puzzles []detectedPuzzle `json:"puzzles"`
}

type detectedPuzzle struct {
	Description  string   `json:"description"`
	RelatedItems []string `json:"related_items"`
}

// turnHistoryEntry is one turn of the rolling history the stuck-detector
// consults; the history is capped at stuckRoomSetWindow turns, the longest
// look-back any of the algorithmic checks needs.
type turnHistoryEntry struct {
	command   string
	room      string
	failure   string // normalized failure text, empty when the command succeeded
	newItem   bool
	newPuzzle bool
}

// PuzzleTracker maintains the open-puzzle list, runs throttled cross-reference
// evaluation against inventory, and detects stuck loops algorithmically
// (no model call) on every turn regardless of throttle state.
type PuzzleTracker struct {
	mu       sync.Mutex
	puzzles  map[int]puzzle.Puzzle
	nextID   int
	provider llm.Provider
	log      *logger.Logger

	graph    *MapGraph
	registry *ItemRegistry

	history        []turnHistoryEntry
	turnsSinceEval int
}

// NewPuzzleTracker wires the tracker to its collaborators: the language
// model for detection, MapGraph for suggestion navigation steps, and
// ItemRegistry for match scoring against inventory.
func NewPuzzleTracker(provider llm.Provider, graph *MapGraph, registry *ItemRegistry, log *logger.Logger) *PuzzleTracker {
	return &PuzzleTracker{
		puzzles:  make(map[int]puzzle.Puzzle),
		provider: provider,
		graph:    graph,
		registry: registry,
		log:      log,
	}
}

// LoadFromDB rehydrates tracked puzzles after a crash.
func (t *PuzzleTracker) LoadFromDB(puzzles map[int]puzzle.Puzzle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.puzzles = make(map[int]puzzle.Puzzle, len(puzzles))
	for k, v := range puzzles {
		t.puzzles[k] = v
		if v.ID >= t.nextID {
			t.nextID = v.ID + 1
		}
	}
}

// StuckDiagnosis reports which, if any, of the three algorithmic
// stuck-detection checks has fired this turn.
type StuckDiagnosis struct {
	RepeatedCommand bool
	CycledRooms     bool
	RepeatedFailure bool
}

// Any reports whether at least one check fired.
func (d StuckDiagnosis) Any() bool {
	return d.RepeatedCommand || d.CycledRooms || d.RepeatedFailure
}

// RecordTurn appends this turn's outcome to the rolling history the
// algorithmic stuck-detector consults. It must be called exactly once per
// turn, before DetectStuck.
func (t *PuzzleTracker) RecordTurn(command, room, failureText string, newItem, newPuzzle bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := turnHistoryEntry{command: command, room: room, newItem: newItem, newPuzzle: newPuzzle}
	if failureText != "" {
		entry.failure = normalize.Description(failureText)
	}
	t.history = append(t.history, entry)
	if len(t.history) > stuckRoomSetWindow {
		t.history = t.history[len(t.history)-stuckRoomSetWindow:]
	}
}

// DetectStuck runs the three algorithmic checks from the detail floor. It
// costs no model call and is meant to run every turn.
func (t *PuzzleTracker) DetectStuck() StuckDiagnosis {
	t.mu.Lock()
	defer t.mu.Unlock()

	var d StuckDiagnosis

	window := lastN(t.history, stuckSameCommandWindow)
	counts := map[string]int{}
	for _, e := range window {
		counts[e.command]++
	}
	for _, c := range counts {
		if c >= stuckSameCommandCount {
			d.RepeatedCommand = true
			break
		}
	}

	roomWindow := lastN(t.history, stuckRoomSetWindow)
	if len(roomWindow) >= stuckRoomSetWindow {
		rooms := map[string]bool{}
		anyNew := false
		for _, e := range roomWindow {
			rooms[e.room] = true
			if e.newItem || e.newPuzzle {
				anyNew = true
			}
		}
		if len(rooms) <= stuckRoomSetMaxSize && !anyNew {
			d.CycledRooms = true
		}
	}

	failureCounts := map[string]int{}
	for _, e := range window {
		if e.failure == "" {
			continue
		}
		failureCounts[e.failure]++
	}
	for _, c := range failureCounts {
		if c >= stuckFailureRepeat {
			d.RepeatedFailure = true
			break
		}
	}

	return d
}

func lastN(history []turnHistoryEntry, n int) []turnHistoryEntry {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// ShouldEvaluate reports whether a full cross-reference pass should run this
// turn: every K turns, or forced by the caller on new-room/inventory-change/
// failure-classified-command conditions.
func (t *PuzzleTracker) ShouldEvaluate(forced bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turnsSinceEval++
	if forced || t.turnsSinceEval >= puzzleThrottleTurns {
		t.turnsSinceEval = 0
		return true
	}
	return false
}

// Evaluate runs one full cross-reference pass: detect new puzzles in the
// latest output, match open puzzles against inventory, and report which
// puzzle ids transitioned to solved this pass. Unlike the reference
// implementation's two-tuple return (whose own call site expected three,
// a latent bug there), this always returns the full three-tuple contract.
func (t *PuzzleTracker) Evaluate(ctx context.Context, text, currentRoom string, turn int) ([]puzzle.Puzzle, []puzzle.Suggestion, []int, error) {
	newPuzzles, err := t.detect(ctx, text, currentRoom, turn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("puzzle_agent: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	suggestions := t.matchLocked(currentRoom)
	solvedIDs := t.checkSolvedLocked(text, turn)

	return newPuzzles, suggestions, solvedIDs, nil
}

func (t *PuzzleTracker) detect(ctx context.Context, text, currentRoom string, turn int) ([]puzzle.Puzzle, error) {
	req := llm.JSONRequest{
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("Room: %s\nOutput: %s", currentRoom, text)},
		},
		Schema: puzzleDetectSchema,
	}
	raw, err := llm.ExtractJSON(ctx, t.provider, puzzleAgentSystemPrompt, req, nil, t.log)
	if err != nil {
		return nil, err
	}

	var env puzzleDetectEnvelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.log.Warn("puzzle_agent: malformed structured response, treating as no new puzzles")
			return nil, nil
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var created []puzzle.Puzzle
	for _, dp := range env.Puzzles {
		if t.alreadyTrackedLocked(dp.Description) {
			continue
		}
		id := t.nextID
		t.nextID++
		p := puzzle.New(id, dp.Description, currentRoom, dp.RelatedItems, turn)
		t.puzzles[id] = *p
		created = append(created, *p)
	}
	return created, nil
}

// RecordManualPuzzle inserts a puzzle the orchestrator detected
// algorithmically, without a model call — e.g. the maze subsystem's
// marker-loss signal ("wandering thief in maze"). Dedup follows the same
// normalized-description rule as detect().
func (t *PuzzleTracker) RecordManualPuzzle(description, location string, relatedItems []string, turn int) (puzzle.Puzzle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.alreadyTrackedLocked(description) {
		return puzzle.Puzzle{}, false
	}
	id := t.nextID
	t.nextID++
	p := puzzle.New(id, description, location, relatedItems, turn)
	t.puzzles[id] = *p
	return *p, true
}

func (t *PuzzleTracker) alreadyTrackedLocked(description string) bool {
	norm := normalize.Description(description)
	for _, p := range t.puzzles {
		if normalize.Description(p.Description) == norm {
			return true
		}
	}
	return false
}

// matchLocked scores candidate (inventory item x open puzzle) pairs and
// attaches a Suggestion for every pairing, regardless of confidence, per the
// "attach everything, flag confidence" contract.
func (t *PuzzleTracker) matchLocked(currentRoom string) []puzzle.Suggestion {
	inventory := t.registry.GetInventory()
	var suggestions []puzzle.Suggestion

	for _, p := range t.puzzles {
		if !p.IsOpen() {
			continue
		}
		for _, it := range inventory {
			related := p.RelatesTo(it.ID)
			confidence := scoring.MatchConfidence(it.Name, it.ID, p.Description, related)

			var path []string
			if p.Location != "" && p.Location != currentRoom {
				if found, err := t.graph.GetPath(currentRoom, p.Location); err == nil {
					path = found
				}
			}

			suggestions = append(suggestions, puzzle.Suggestion{
				PuzzleID:   p.ID,
				ItemID:     it.ID,
				ActionText: fmt.Sprintf("use %s on %s", it.Name, p.Description),
				Path:       path,
				Confidence: puzzle.Confidence(confidence),
			})
		}

		if scoring.AttemptsWithoutProgress(len(p.Attempts), puzzleAttemptCeiling) && p.Status != puzzle.StatusAbandoned {
			p.MarkAbandoned()
			t.puzzles[p.ID] = p
		}
	}

	return suggestions
}

// checkSolvedLocked inspects the latest output for phrasing that implies an
// open puzzle resolved (the reference implementation never actually
// implemented this half of its own evaluate() contract).
func (t *PuzzleTracker) checkSolvedLocked(text string, turn int) []int {
	lower := strings.ToLower(text)
	var solved []int
	for id, p := range t.puzzles {
		if !p.IsOpen() {
			continue
		}
		if t.puzzleReadsSolvedLocked(lower, p) {
			p.MarkSolved(turn)
			t.puzzles[id] = p
			solved = append(solved, id)
		}
	}
	return solved
}

var solvedPhrases = []string{"click", "unlocks", "opens", "swings open", "you hear a click", "the door opens"}

// puzzleReadsSolvedLocked is a coarse heuristic: a resolution phrase in the
// latest output is evidence puzzle p just resolved, but only once the output
// also names p's own location or one of its related items — otherwise a
// single "opens" would mark every open puzzle solved at once.
func (t *PuzzleTracker) puzzleReadsSolvedLocked(lowerOutput string, p puzzle.Puzzle) bool {
	if !containsAny(lowerOutput, solvedPhrases) {
		return false
	}
	if p.Location != "" && strings.Contains(lowerOutput, strings.ToLower(p.Location)) {
		return true
	}
	for _, id := range p.RelatedItems {
		if strings.Contains(lowerOutput, strings.ToLower(id)) {
			return true
		}
		if it, ok := t.registry.GetItem(id); ok && it.Name != "" && strings.Contains(lowerOutput, strings.ToLower(it.Name)) {
			return true
		}
	}
	return false
}

// RecordAttempt appends a suggestion-derived attempt to its puzzle's history.
func (t *PuzzleTracker) RecordAttempt(puzzleID int, action, result string, turn int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.puzzles[puzzleID]
	if !ok {
		return
	}
	p.RecordAttempt(action, result, turn)
	t.puzzles[puzzleID] = p
}

// OpenPuzzles returns every puzzle still needing attention.
func (t *PuzzleTracker) OpenPuzzles() []puzzle.Puzzle {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []puzzle.Puzzle
	for _, p := range t.puzzles {
		if p.IsOpen() {
			out = append(out, p)
		}
	}
	return out
}

// AllPuzzles returns a snapshot of every tracked puzzle.
func (t *PuzzleTracker) AllPuzzles() map[int]puzzle.Puzzle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int]puzzle.Puzzle, len(t.puzzles))
	for k, v := range t.puzzles {
		out[k] = v
	}
	return out
}

const puzzleAgentSystemPrompt = `You track open obstacles in a text adventure: locked doors, blocked ` +
	`paths, cryptic inscriptions, NPC demands, conditional refusals. Given the current room and the game's ` +
	`latest output, list any newly implied puzzle, each with the objects it mentions. Return an empty list ` +
	`if nothing new appeared.`
