package orchestrator

import (
	"fmt"

	"github.com/mradwan/autofrotz/internal/domain/item"
	"github.com/mradwan/autofrotz/internal/domain/maze"
	"github.com/mradwan/autofrotz/internal/domain/puzzle"
	"github.com/mradwan/autofrotz/internal/domain/room"
	"github.com/mradwan/autofrotz/internal/domain/turn"
	"github.com/mradwan/autofrotz/internal/platform/logger"
)

// Hook is the observer interface the orchestrator notifies after every
// phase. All methods default to no-ops via NoOpHook; implementations
// embed it and override only what they need.
type Hook interface {
	OnGameStart(gameID int64, gameFile string)
	OnTurnStart(rec turn.Record)
	OnTurnEnd(rec turn.Record)
	OnRoomEnter(r room.Room)
	OnItemFound(it item.Item)
	OnItemTaken(it item.Item)
	OnPuzzleFound(p puzzle.Puzzle)
	OnPuzzleSolved(p puzzle.Puzzle)
	OnMazeDetected(g maze.Group)
	OnMazeRoomMarked(roomID, itemID string)
	OnMazeCompleted(g maze.Group)
	OnGameEnd(gameID int64, status string)
}

// NoOpHook is embedded by any Hook implementation that only cares about a
// handful of events.
type NoOpHook struct{}

func (NoOpHook) OnGameStart(int64, string)          {}
func (NoOpHook) OnTurnStart(turn.Record)            {}
func (NoOpHook) OnTurnEnd(turn.Record)              {}
func (NoOpHook) OnRoomEnter(room.Room)              {}
func (NoOpHook) OnItemFound(item.Item)              {}
func (NoOpHook) OnItemTaken(item.Item)              {}
func (NoOpHook) OnPuzzleFound(puzzle.Puzzle)        {}
func (NoOpHook) OnPuzzleSolved(puzzle.Puzzle)       {}
func (NoOpHook) OnMazeDetected(maze.Group)          {}
func (NoOpHook) OnMazeRoomMarked(string, string)    {}
func (NoOpHook) OnMazeCompleted(maze.Group)         {}
func (NoOpHook) OnGameEnd(int64, string)            {}

// hookDispatcher fires every registered hook in order, recovering and
// logging any panic so a single broken hook never aborts the turn it
// observes.
type hookDispatcher struct {
	hooks []Hook
	log   *logger.Logger
}

func newHookDispatcher(log *logger.Logger, hooks ...Hook) *hookDispatcher {
	return &hookDispatcher{hooks: hooks, log: log}
}

func (d *hookDispatcher) fire(event string, call func(Hook)) {
	for _, h := range d.hooks {
		d.fireOne(event, h, call)
	}
}

func (d *hookDispatcher) fireOne(event string, h Hook, call func(Hook)) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error(fmt.Sprintf("hook panic on %s: %v", event, r))
		}
	}()
	call(h)
}

func (d *hookDispatcher) gameStart(gameID int64, gameFile string) {
	d.fire("on_game_start", func(h Hook) { h.OnGameStart(gameID, gameFile) })
}
func (d *hookDispatcher) turnStart(rec turn.Record) {
	d.fire("on_turn_start", func(h Hook) { h.OnTurnStart(rec) })
}
func (d *hookDispatcher) turnEnd(rec turn.Record) {
	d.fire("on_turn_end", func(h Hook) { h.OnTurnEnd(rec) })
}
func (d *hookDispatcher) roomEnter(r room.Room) {
	d.fire("on_room_enter", func(h Hook) { h.OnRoomEnter(r) })
}
func (d *hookDispatcher) itemFound(it item.Item) {
	d.fire("on_item_found", func(h Hook) { h.OnItemFound(it) })
}
func (d *hookDispatcher) itemTaken(it item.Item) {
	d.fire("on_item_taken", func(h Hook) { h.OnItemTaken(it) })
}
func (d *hookDispatcher) puzzleFound(p puzzle.Puzzle) {
	d.fire("on_puzzle_found", func(h Hook) { h.OnPuzzleFound(p) })
}
func (d *hookDispatcher) puzzleSolved(p puzzle.Puzzle) {
	d.fire("on_puzzle_solved", func(h Hook) { h.OnPuzzleSolved(p) })
}
func (d *hookDispatcher) mazeDetected(g maze.Group) {
	d.fire("on_maze_detected", func(h Hook) { h.OnMazeDetected(g) })
}
func (d *hookDispatcher) mazeRoomMarked(roomID, itemID string) {
	d.fire("on_maze_room_marked", func(h Hook) { h.OnMazeRoomMarked(roomID, itemID) })
}
func (d *hookDispatcher) mazeCompleted(g maze.Group) {
	d.fire("on_maze_completed", func(h Hook) { h.OnMazeCompleted(g) })
}
func (d *hookDispatcher) gameEnd(gameID int64, status string) {
	d.fire("on_game_end", func(h Hook) { h.OnGameEnd(gameID, status) })
}
