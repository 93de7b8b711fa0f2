package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mradwan/autofrotz/internal/domain/item"
	"github.com/mradwan/autofrotz/internal/domain/maze"
	"github.com/mradwan/autofrotz/internal/domain/puzzle"
	"github.com/mradwan/autofrotz/internal/domain/room"
	"github.com/mradwan/autofrotz/internal/domain/turn"
	"github.com/mradwan/autofrotz/internal/interpreter"
	"github.com/mradwan/autofrotz/internal/journal"
	"github.com/mradwan/autofrotz/internal/llm"
	"github.com/mradwan/autofrotz/internal/platform/logger"
	"github.com/mradwan/autofrotz/internal/platform/metrics"
)

// scriptedInterpreter replays one fixed roomName/output pair per DoCommand
// call, looping the last entry once exhausted; Save/Restore just count.
type scriptedInterpreter struct {
	rooms    []string
	outputs  []string
	calls    int
	saves    int
	restores int
}

func (f *scriptedInterpreter) DoCommand(ctx context.Context, command string) (string, string, error) {
	i := f.calls
	if i >= len(f.outputs) {
		i = len(f.outputs) - 1
	}
	f.calls++
	return f.rooms[i], f.outputs[i], nil
}

func (f *scriptedInterpreter) Save(ctx context.Context, slot int) error    { f.saves++; return nil }
func (f *scriptedInterpreter) Restore(ctx context.Context, slot int) error { f.restores++; return nil }

var _ interpreter.Interpreter = (*scriptedInterpreter)(nil)

// scriptedOrchProvider answers every Complete call with a fixed ACTION: line
// and ignores CompleteJSON by always reporting zero updates, so parse/puzzle
// phases stay inert and RunTurn exercises only the decide/execute pipeline.
type scriptedOrchProvider struct {
	command string
}

func (p *scriptedOrchProvider) Complete(context.Context, string, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{Text: fmt.Sprintf("heading %s.\nACTION: %s", p.command, p.command)}, nil
}

func (p *scriptedOrchProvider) CompleteJSON(context.Context, string, llm.JSONRequest) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (p *scriptedOrchProvider) Name() string                  { return "scripted-orch" }
func (p *scriptedOrchProvider) IsAvailable() bool              { return true }
func (p *scriptedOrchProvider) GetUsageStats() llm.UsageStats { return llm.UsageStats{} }
func (p *scriptedOrchProvider) ResetUsage()                   {}

var _ llm.Provider = (*scriptedOrchProvider)(nil)

// panicHook panics from OnTurnEnd exactly once, to prove one broken hook
// never stops the pipeline or poisons the next turn.
type panicHook struct {
	NoOpHook
	turnEndCalls int
	panicked     bool
}

func (h *panicHook) OnTurnEnd(turn.Record) {
	h.turnEndCalls++
	if !h.panicked {
		h.panicked = true
		panic("boom")
	}
}

func newTestOrchestrator(t *testing.T, interp interpreter.Interpreter, provider llm.Provider, j journal.Journal, hooks ...Hook) *Orchestrator {
	t.Helper()
	log := logger.NewLogger()
	mc := metrics.NewCollector()
	o := New(DefaultConfig(), Deps{
		Interpreter: interp,
		Provider:    provider,
		Journal:     j,
		Logger:      log,
		Metrics:     mc,
		Hooks:       hooks,
	})
	return o
}

func TestRunTurnSurvivesHookPanic(t *testing.T) {
	ctx := context.Background()
	j := journal.NewInMemory()
	interp := &scriptedInterpreter{
		rooms:   []string{"Room A", "Room A", "Room A"},
		outputs: []string{"You are in room A.", "You are in room A.", "You are in room A."},
	}
	provider := &scriptedOrchProvider{command: "look"}
	hook := &panicHook{}
	o := newTestOrchestrator(t, interp, provider, j, hook)

	if err := o.StartNewGame(ctx, "zork1.z3"); err != nil {
		t.Fatalf("start new game: %v", err)
	}

	if _, err := o.RunTurn(ctx, "You are standing in an open field."); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if !hook.panicked {
		t.Fatal("expected the hook to have panicked on turn 1's on_turn_end")
	}
	if hook.turnEndCalls != 1 {
		t.Fatalf("expected exactly 1 on_turn_end call after turn 1, got %d", hook.turnEndCalls)
	}

	// Turn 2 must still run its full Parse phase despite the prior panic.
	if _, err := o.RunTurn(ctx, "You are standing in an open field."); err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if hook.turnEndCalls != 2 {
		t.Fatalf("expected on_turn_end to fire again on turn 2, got %d calls", hook.turnEndCalls)
	}
}

func TestRunTurnRecordsMetricsAndJournalsTurn(t *testing.T) {
	ctx := context.Background()
	j := journal.NewInMemory()
	interp := &scriptedInterpreter{
		rooms:   []string{"Room A"},
		outputs: []string{"Nothing happens."},
	}
	provider := &scriptedOrchProvider{command: "wait"}
	o := newTestOrchestrator(t, interp, provider, j)

	if err := o.StartNewGame(ctx, "zork1.z3"); err != nil {
		t.Fatalf("start new game: %v", err)
	}
	if _, err := o.RunTurn(ctx, "You are standing in an open field."); err != nil {
		t.Fatalf("run turn: %v", err)
	}

	snap := o.metrics.Snapshot()
	if snap.TurnCount != 1 {
		t.Fatalf("expected 1 recorded turn, got %d", snap.TurnCount)
	}
	if snap.LLMRequests != 1 {
		t.Fatalf("expected 1 recorded LLM call from the NORMAL-mode decide step, got %d", snap.LLMRequests)
	}
	if snap.JournalWrites != 1 {
		t.Fatalf("expected 1 recorded journal write, got %d", snap.JournalWrites)
	}

	turns, err := j.GetTurns(ctx, o.gameID)
	if err != nil || len(turns) != 1 {
		t.Fatalf("expected the turn to be journaled, got %v err=%v", turns, err)
	}
	if turns[0].CommandSent != "wait" {
		t.Fatalf("expected the decided command to be journaled, got %q", turns[0].CommandSent)
	}
}

func TestResumeRehydratesStateAndEntersMazeMode(t *testing.T) {
	ctx := context.Background()
	j := journal.NewInMemory()
	interp := &scriptedInterpreter{rooms: []string{"x"}, outputs: []string{"x"}}
	provider := &scriptedOrchProvider{command: "look"}

	gameID, err := j.CreateGame(ctx, "zork1.z3")
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if err := j.SaveTurn(ctx, gameID, turn.Record{GameID: gameID, TurnNumber: 5, CurrentRoom: "maze_g1_1"}); err != nil {
		t.Fatalf("seed turn: %v", err)
	}
	if err := j.SaveRoom(ctx, gameID, room.Room{ID: "maze_g1_1", Name: "Maze"}); err != nil {
		t.Fatalf("seed room: %v", err)
	}
	if err := j.SaveItem(ctx, gameID, *item.New("lamp", "lamp", item.LocationInventory, 1)); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	if err := j.SavePuzzle(ctx, gameID, *puzzle.New(1, "a locked grate", "maze_g1_1", nil, 3)); err != nil {
		t.Fatalf("seed puzzle: %v", err)
	}
	g := maze.New("g1", "maze_g1_1", 3)
	g.AddRoom("maze_g1_1")
	if err := j.SaveMazeGroup(ctx, gameID, *g); err != nil {
		t.Fatalf("seed maze group: %v", err)
	}

	o := newTestOrchestrator(t, interp, provider, j)
	resumed, err := o.Resume(ctx)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !resumed {
		t.Fatal("expected Resume to report a resumable game")
	}
	if o.gameID != gameID || o.turnNumber != 5 {
		t.Fatalf("expected gameID=%d turnNumber=5, got gameID=%d turnNumber=%d", gameID, o.gameID, o.turnNumber)
	}
	if o.mode != ModeMaze {
		t.Fatalf("expected resume to re-enter MAZE mode for an unfinished maze group, got %s", o.mode)
	}
	if it, ok := o.registry.GetItem("lamp"); !ok || !it.IsInInventory() {
		t.Fatalf("expected the lamp to rehydrate into inventory, got %+v ok=%v", it, ok)
	}
	if interp.restores != 1 {
		t.Fatalf("expected Resume to restore the interpreter from its last save slot, got %d restores", interp.restores)
	}
}

func TestResumeReportsNoGameWhenJournalIsEmpty(t *testing.T) {
	ctx := context.Background()
	j := journal.NewInMemory()
	o := newTestOrchestrator(t, &scriptedInterpreter{rooms: []string{"x"}, outputs: []string{"x"}}, &scriptedOrchProvider{command: "look"}, j)

	resumed, err := o.Resume(ctx)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed {
		t.Fatal("expected no resumable game in an empty journal")
	}
}
