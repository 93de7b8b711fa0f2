package engine

import (
	"context"
	"testing"

	"github.com/mradwan/autofrotz/internal/domain/item"
	"github.com/mradwan/autofrotz/internal/platform/logger"
)

func newTestTracker() (*PuzzleTracker, *ItemRegistry, *MapGraph, *scriptedProvider) {
	provider := &scriptedProvider{}
	log := logger.NewLogger()
	graph := NewMapGraph(provider, log)
	registry := NewItemRegistry(provider, log)
	tracker := NewPuzzleTracker(provider, graph, registry, log)
	return tracker, registry, graph, provider
}

func TestPuzzleTrackerStuckFiresOnRepeatedCommand(t *testing.T) {
	tracker, _, _, _ := newTestTracker()
	for i := 0; i < 3; i++ {
		tracker.RecordTurn("open door", "room_x", "the door is locked", false, false)
	}
	d := tracker.DetectStuck()
	if !d.RepeatedCommand {
		t.Fatalf("expected repeated-command stuck detection to fire, got %+v", d)
	}
}

func TestPuzzleTrackerStuckRequiresNoProgressInRoomCycling(t *testing.T) {
	tracker, _, _, _ := newTestTracker()
	for i := 0; i < stuckRoomSetWindow; i++ {
		tracker.RecordTurn("look", "room_x", "", false, false)
	}
	d := tracker.DetectStuck()
	if !d.CycledRooms {
		t.Fatalf("expected room-cycling stuck detection to fire on a no-progress window, got %+v", d)
	}

	tracker2, _, _, _ := newTestTracker()
	for i := 0; i < stuckRoomSetWindow-1; i++ {
		tracker2.RecordTurn("look", "room_x", "", false, false)
	}
	tracker2.RecordTurn("look", "room_x", "", true, false)
	d2 := tracker2.DetectStuck()
	if d2.CycledRooms {
		t.Fatalf("expected a new-item event in the window to suppress room-cycling detection, got %+v", d2)
	}
}

func TestPuzzleTrackerShouldEvaluateThrottles(t *testing.T) {
	tracker, _, _, _ := newTestTracker()
	if tracker.ShouldEvaluate(false) {
		t.Fatal("expected first non-forced call to stay throttled")
	}
	if tracker.ShouldEvaluate(false) {
		t.Fatal("expected second non-forced call to stay throttled")
	}
	if !tracker.ShouldEvaluate(false) {
		t.Fatal("expected third non-forced call to cross the throttle threshold")
	}
}

func TestPuzzleTrackerShouldEvaluateForcedAlwaysFires(t *testing.T) {
	tracker, _, _, _ := newTestTracker()
	if !tracker.ShouldEvaluate(true) {
		t.Fatal("expected a forced call to evaluate regardless of throttle state")
	}
}

func TestPuzzleTrackerDetectAndSolve(t *testing.T) {
	tracker, registry, _, provider := newTestTracker()
	ctx := context.Background()

	registry.LoadFromDB(map[string]item.Item{
		"key": func() item.Item {
			it := item.New("key", "brass key", item.LocationInventory, 1)
			it.Portable = item.PortableTrue
			return *it
		}(),
	})

	provider.responses = []string{
		`{"puzzles": [{"description": "a locked door blocks the way", "related_items": ["door"]}]}`,
	}
	newPuzzles, suggestions, solvedIDs, err := tracker.Evaluate(ctx, "a locked door blocks the way north", "room_x", 1)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(newPuzzles) != 1 {
		t.Fatalf("expected 1 new puzzle, got %d", len(newPuzzles))
	}
	if len(suggestions) != 1 {
		t.Fatalf("expected 1 suggestion from the key against the open puzzle, got %d", len(suggestions))
	}
	if len(solvedIDs) != 0 {
		t.Fatalf("expected no puzzle solved yet, got %v", solvedIDs)
	}

	provider.responses = []string{`{"puzzles": []}`}
	_, _, solvedIDs, err = tracker.Evaluate(ctx, "you hear a click and the door opens", "room_x", 2)
	if err != nil {
		t.Fatalf("evaluate 2: %v", err)
	}
	if len(solvedIDs) != 1 {
		t.Fatalf("expected the door puzzle to resolve on solved phrasing, got %v", solvedIDs)
	}
}
