// Package orchestrator implements the turn state machine that drives
// Parse→Evaluate→Decide→Execute→Persist→Notify every turn, mediates the
// NORMAL/MAZE mode switch, and handles death/restore and crash resume.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mradwan/autofrotz/internal/domain/item"
	"github.com/mradwan/autofrotz/internal/domain/maze"
	"github.com/mradwan/autofrotz/internal/domain/puzzle"
	"github.com/mradwan/autofrotz/internal/domain/room"
	"github.com/mradwan/autofrotz/internal/domain/turn"
	"github.com/mradwan/autofrotz/internal/engine"
	"github.com/mradwan/autofrotz/internal/interpreter"
	"github.com/mradwan/autofrotz/internal/journal"
	"github.com/mradwan/autofrotz/internal/llm"
	"github.com/mradwan/autofrotz/internal/platform/logger"
	"github.com/mradwan/autofrotz/internal/platform/metrics"
)

// Mode is the process-wide turn-pipeline variable, owned only by the
// Orchestrator: exactly NORMAL or MAZE, never both.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeMaze   Mode = "maze"
)

// Status is an alias of journal.GameStatus for the orchestrator's own
// terminal checks.
type Status = journal.GameStatus

// Orchestrator is the central turn state machine.
type Orchestrator struct {
	cfg Config
	log *logger.Logger

	interp   interpreter.Interpreter
	provider llm.Provider
	journal  journal.Journal
	metrics  *metrics.Collector

	graph    *engine.MapGraph
	registry *engine.ItemRegistry
	tracker  *engine.PuzzleTracker

	hooks *hookDispatcher

	gameID      int64
	turnNumber  int
	mode        Mode
	currentRoom string
	recent      []CommandOutcome
	saveSlot    int

	lastTransition    transition // last room-to-room move in NORMAL mode, for return-reciprocity checks
	retrievalQueue    []string   // pending commands to walk back and retrieve dropped maze markers
	pendingStuckForce bool       // set when DetectStuck fires, forcing next turn's puzzle evaluate pass
}

// transition is one NORMAL-mode room-to-room move, kept to check whether the
// next reverse-direction command actually returns to where it came from.
type transition struct {
	from, to, command string
}

// Deps bundles every external collaborator the orchestrator needs.
type Deps struct {
	Interpreter interpreter.Interpreter
	Provider    llm.Provider
	Journal     journal.Journal
	Logger      *logger.Logger
	Metrics     *metrics.Collector
	Hooks       []Hook
}

// New wires a fresh Orchestrator, including its own ItemRegistry, MapGraph,
// and PuzzleTracker instances. A nil Metrics collector is replaced with a
// fresh one so callers that don't care about observability don't have to
// construct it by hand.
func New(cfg Config, deps Deps) *Orchestrator {
	graph := engine.NewMapGraph(deps.Provider, deps.Logger)
	registry := engine.NewItemRegistry(deps.Provider, deps.Logger)
	tracker := engine.NewPuzzleTracker(deps.Provider, graph, registry, deps.Logger)

	metricsCollector := deps.Metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewCollector()
	}

	return &Orchestrator{
		cfg:      cfg,
		log:      deps.Logger,
		interp:   deps.Interpreter,
		provider: deps.Provider,
		journal:  deps.Journal,
		metrics:  metricsCollector,
		graph:    graph,
		registry: registry,
		tracker:  tracker,
		hooks:    newHookDispatcher(deps.Logger, deps.Hooks...),
		mode:     ModeNormal,
	}
}

// StartNewGame begins a fresh playthrough against gameFile and fires
// on_game_start.
func (o *Orchestrator) StartNewGame(ctx context.Context, gameFile string) error {
	id, err := o.journal.CreateGame(ctx, gameFile)
	if err != nil {
		return fmt.Errorf("start new game: %w", err)
	}
	o.gameID = id
	o.turnNumber = 0
	o.hooks.gameStart(id, gameFile)
	return nil
}

// Resume rehydrates MapGraph, ItemRegistry, and PuzzleTracker from the
// journal and restores the interpreter from its most recent save, per
// §4.F's crash-resume contract. It returns false (not an error) when there
// is no game to resume or the active game has no saved turns — the caller
// should start fresh in that case.
func (o *Orchestrator) Resume(ctx context.Context) (bool, error) {
	state, err := journal.LoadResumeState(ctx, o.journal)
	if err != nil {
		return false, fmt.Errorf("resume: %w", err)
	}
	if state == nil {
		return false, nil
	}
	if state.LastTurn == nil {
		o.log.Warn(fmt.Sprintf("resume: active game %d has no saved turns; rejecting resume", state.Game.GameID))
		return false, nil
	}

	o.gameID = state.Game.GameID
	o.turnNumber = state.LastTurn.TurnNumber
	o.currentRoom = state.LastTurn.CurrentRoom

	o.graph.LoadFromDB(state.Rooms, state.Connections)
	o.graph.SetCurrentRoom(o.currentRoom)
	o.graph.Maze().LoadFromDB(state.MazeGroups)
	o.registry.LoadFromDB(state.Items)
	o.tracker.LoadFromDB(state.Puzzles)

	if o.cfg.AutosaveEvery > 0 {
		o.saveSlot = (o.turnNumber / o.cfg.AutosaveEvery) % max(o.cfg.SaveSlots, 1)
	}
	if err := o.interp.Restore(ctx, o.saveSlot); err != nil {
		return false, fmt.Errorf("resume: restore interpreter state: %w", err)
	}

	if o.graph.Maze().Active() {
		o.mode = ModeMaze
	}

	o.log.Info(fmt.Sprintf("resumed game %d from turn %d", o.gameID, o.turnNumber))
	return true, nil
}

// RunTurn executes exactly one turn of the pipeline and reports the
// resulting outcome classification.
func (o *Orchestrator) RunTurn(ctx context.Context, rawOutput string) (interpreter.Outcome, error) {
	turnStart := time.Now()
	defer func() { o.metrics.RecordTurn(time.Since(turnStart)) }()

	o.turnNumber++
	correlationID := uuid.New().String()

	rec := turn.Record{
		GameID:      o.gameID,
		TurnNumber:  o.turnNumber,
		Timestamp:   time.Now(),
		CurrentRoom: o.currentRoom,
	}
	o.hooks.turnStart(rec)

	// 2. Parse — map and item updates are independent this turn.
	mapUpdate, itemDeltas, err := o.parse(ctx, rawOutput)
	if err != nil {
		o.log.Warn(fmt.Sprintf("parse phase degraded: %v", err))
	}
	o.notifyItemDeltas(itemDeltas)

	previousRoom := o.currentRoom
	lastCmd := o.lastCommand()
	if mapUpdate.RoomChanged {
		o.currentRoom = o.graph.CurrentRoom()
		if r, ok := o.graph.GetRoom(o.currentRoom); ok {
			o.hooks.roomEnter(r)
		}
		if o.mode == ModeNormal {
			o.checkReturnReciprocity(previousRoom, o.currentRoom, lastCmd)
		}
	}

	// 3. Maze check.
	if o.mode == ModeNormal {
		if o.graph.CheckMazeCondition(o.currentRoom, rawOutput, o.turnNumber) {
			o.mode = ModeMaze
			if g, ok := o.graph.Maze().Group(o.currentGroupOrEmpty()); ok {
				o.hooks.mazeDetected(g)
			}
		}
	}

	// 4. Puzzle pass.
	forced := mapUpdate.RoomChanged || len(itemDeltas) > 0 || o.pendingStuckForce
	o.pendingStuckForce = false
	var suggestions []puzzle.Suggestion
	var newPuzzles []puzzle.Puzzle
	var solvedIDs []int
	if o.tracker.ShouldEvaluate(forced) {
		newPuzzles, suggestions, solvedIDs, err = o.tracker.Evaluate(ctx, rawOutput, o.currentRoom, o.turnNumber)
		if err != nil {
			o.log.Warn(fmt.Sprintf("puzzle evaluation degraded: %v", err))
		}
	}
	for _, p := range newPuzzles {
		o.hooks.puzzleFound(p)
	}
	for _, id := range solvedIDs {
		if p, ok := o.tracker.AllPuzzles()[id]; ok {
			o.hooks.puzzleSolved(p)
		}
	}

	// 5-7. Decide and execute.
	var command, reasoning string
	var decisionMetric *turn.Metric
	mazeDFSCommand := false
	if o.mode == ModeMaze {
		switch {
		case len(o.retrievalQueue) > 0:
			command = o.retrievalQueue[0]
			o.retrievalQueue = o.retrievalQueue[1:]
			reasoning = "walking back to retrieve a dropped maze marker"
			if len(o.retrievalQueue) == 0 && !o.graph.Maze().Active() {
				o.mode = ModeNormal
			}
		case o.graph.Maze().Active():
			move := o.graph.Maze().NextCommand(o.registry, puzzleItemIDs(o.tracker.OpenPuzzles()))
			if move.Pause {
				o.log.Warn("maze resolution paused: " + move.Reason)
				o.mode = ModeNormal
				command, reasoning = "look", "maze resolution paused: "+move.Reason
			} else {
				command, reasoning = move.Command, "algorithmic maze resolution"
				mazeDFSCommand = true
				if move.MarkedRoomID != "" {
					o.hooks.mazeRoomMarked(move.MarkedRoomID, move.MarkedItemID)
				}
			}
		default:
			o.mode = ModeNormal
			command, reasoning = "look", "maze resolved with nothing left to retrieve"
		}
	} else {
		dc := assembleContext(rawOutput, o.currentRoom, o.graph, o.registry, o.tracker, suggestions, o.recent)
		decideCtx, cancelDecide := context.WithTimeout(ctx, o.cfg.DecisionTimeout)
		decision, derr := decide(decideCtx, o.provider, dc, topSuggestion(suggestions), o.log)
		cancelDecide()
		if derr != nil {
			return interpreter.OutcomeNormal, fmt.Errorf("decide: %w", derr)
		}
		command, reasoning = decision.Command, decision.Reasoning
		o.metrics.RecordLLMCall(decision.Usage.InputTokens+decision.Usage.OutputTokens, decision.Usage.CostEstimate, decision.Usage.Latency, decision.Succeeded)
		decisionMetric = &turn.Metric{
			GameID:        o.gameID,
			TurnNumber:    o.turnNumber,
			AgentName:     turn.AgentGame,
			CorrelationID: correlationID,
			InputTokens:   decision.Usage.InputTokens,
			OutputTokens:  decision.Usage.OutputTokens,
			CachedTokens:  decision.Usage.CachedTokens,
			CostEstimate:  decision.Usage.CostEstimate,
			LatencyMS:     decision.Usage.Latency.Milliseconds(),
			Succeeded:     decision.Succeeded,
		}
	}

	interpCtx, cancelInterp := context.WithTimeout(ctx, o.cfg.InterpreterTimeout)
	roomName, output, err := o.interp.DoCommand(interpCtx, command)
	cancelInterp()
	if err != nil {
		_ = o.journal.EndGame(ctx, o.gameID, journal.GameStatusAborted)
		o.hooks.gameEnd(o.gameID, string(journal.GameStatusAborted))
		return interpreter.OutcomeNormal, fmt.Errorf("interpreter I/O failure: %w", err)
	}
	outcome := interpreter.ClassifyOutput(output)

	o.recent = append(o.recent, CommandOutcome{Command: command, Outcome: classificationLabel(outcome, output)})
	if len(o.recent) > 5 {
		o.recent = o.recent[len(o.recent)-5:]
	}

	if mazeDFSCommand {
		isDark := interpreter.ClassifyOutput(output) == interpreter.OutcomeNormal && containsDarknessPhrase(output)
		knownMarker := o.mazeKnownMarker(output)
		obs := o.graph.Maze().ObserveMazeRoom(o.currentRoom, output, isDark, knownMarker)
		switch obs.Kind {
		case "new", "exit":
			if obs.FromRoom != "" && obs.Direction != "" {
				o.graph.ResolveReciprocity(obs.FromRoom, obs.Direction, obs.ArrivedRoom)
			}
		case "known":
			if obs.FromRoom != "" && obs.Direction != "" {
				o.graph.RecordMazeReturn(obs.FromRoom, obs.Direction, obs.ArrivedRoom)
			}
		}
		if o.graph.Maze().IsComplete() {
			if groupID, ok := o.graph.Maze().Complete(o.turnNumber); ok {
				if g, ok := o.graph.Maze().Group(groupID); ok {
					o.hooks.mazeCompleted(g)
					o.retrievalQueue = o.buildMarkerRetrievalQueue(g)
				}
			}
			if len(o.retrievalQueue) == 0 {
				o.mode = ModeNormal
			}
		}
	}

	o.tracker.RecordTurn(command, o.currentRoom, failureTextOrEmpty(output), len(itemDeltas) > 0, len(newPuzzles) > 0)

	if stuck := o.tracker.DetectStuck(); stuck.Any() {
		o.log.Warn(fmt.Sprintf("stuck detection fired: repeated_command=%v cycled_rooms=%v repeated_failure=%v",
			stuck.RepeatedCommand, stuck.CycledRooms, stuck.RepeatedFailure))
		o.pendingStuckForce = true
	}

	// 8. Persist.
	inv := o.registry.GetInventory()
	invIDs := make([]string, len(inv))
	for i, it := range inv {
		invIDs[i] = it.ID
	}
	finalRec := turn.Record{
		GameID:            o.gameID,
		TurnNumber:        o.turnNumber,
		Timestamp:         time.Now(),
		CommandSent:       command,
		GameOutput:        output,
		CurrentRoom:       roomNameOr(o.currentRoom, roomName),
		InventorySnapshot: invIDs,
		AgentReasoning:    reasoning,
	}
	if err := o.persist(ctx, finalRec); err != nil {
		return outcome, fmt.Errorf("journal write failure: %w", err)
	}
	if decisionMetric != nil {
		if err := o.journal.SaveMetric(ctx, o.gameID, *decisionMetric); err != nil {
			o.log.Warn(fmt.Sprintf("save metric failed: %v", err))
		}
	}

	// 9. Notify.
	o.hooks.turnEnd(finalRec)

	// Periodic autosave.
	if o.cfg.AutosaveEvery > 0 && o.turnNumber%o.cfg.AutosaveEvery == 0 {
		o.saveSlot = (o.saveSlot + 1) % max(o.cfg.SaveSlots, 1)
		if err := o.interp.Save(ctx, o.saveSlot); err != nil {
			o.log.Warn(fmt.Sprintf("autosave failed: %v", err))
		}
	}

	// 10. Terminal check.
	switch outcome {
	case interpreter.OutcomeDeath:
		if o.cfg.SaveOnDeath {
			if err := o.interp.Restore(ctx, o.saveSlot); err != nil {
				o.log.Error(fmt.Sprintf("death restore failed: %v", err))
				_ = o.journal.EndGame(ctx, o.gameID, journal.GameStatusDied)
			}
		} else {
			_ = o.journal.EndGame(ctx, o.gameID, journal.GameStatusDied)
			o.hooks.gameEnd(o.gameID, string(journal.GameStatusDied))
		}
	case interpreter.OutcomeVictory:
		_ = o.journal.EndGame(ctx, o.gameID, journal.GameStatusWon)
		o.hooks.gameEnd(o.gameID, string(journal.GameStatusWon))
	}
	if o.cfg.TurnLimit > 0 && o.turnNumber >= o.cfg.TurnLimit {
		_ = o.journal.EndGame(ctx, o.gameID, journal.GameStatusAborted)
		o.hooks.gameEnd(o.gameID, string(journal.GameStatusAborted))
	}

	return outcome, nil
}

func (o *Orchestrator) parse(ctx context.Context, rawOutput string) (room.Update, []item.Update, error) {
	parseCtx, cancel := context.WithTimeout(ctx, o.cfg.ParserTimeout)
	defer cancel()

	lastCommand := ""
	if len(o.recent) > 0 {
		lastCommand = o.recent[len(o.recent)-1].Command
	}

	mapUpdate, mapErr := o.graph.UpdateFromGameOutput(parseCtx, rawOutput, lastCommand, o.turnNumber)
	itemDeltas, itemErr := o.registry.UpdateFromGameOutput(parseCtx, rawOutput, o.currentRoom, lastCommand, o.turnNumber)

	if mapErr != nil {
		return mapUpdate, itemDeltas, mapErr
	}
	return mapUpdate, itemDeltas, itemErr
}

func (o *Orchestrator) notifyItemDeltas(deltas []item.Update) {
	for _, d := range deltas {
		it, ok := o.registry.GetItem(d.ItemID)
		if !ok {
			continue
		}
		switch d.ChangeType {
		case item.ChangeNew:
			o.hooks.itemFound(it)
		case item.ChangeTaken:
			o.hooks.itemTaken(it)
		}
	}
}

func (o *Orchestrator) persist(ctx context.Context, rec turn.Record) error {
	start := time.Now()
	err := o.persistBatch(ctx, rec)
	o.metrics.RecordJournalWrite(time.Since(start), err)
	if err != nil {
		return err
	}
	o.log.JournalWrite(o.journal.DBSizeBytes(), time.Since(start))
	return nil
}

func (o *Orchestrator) persistBatch(ctx context.Context, rec turn.Record) error {
	if err := o.journal.SaveTurn(ctx, o.gameID, rec); err != nil {
		return err
	}
	for _, r := range o.graph.AllRooms() {
		if err := o.journal.SaveRoom(ctx, o.gameID, r); err != nil {
			return err
		}
	}
	for _, c := range o.graph.AllConnections() {
		if err := o.journal.SaveConnection(ctx, o.gameID, c); err != nil {
			return err
		}
	}
	for _, it := range o.registry.GetAllItems() {
		if err := o.journal.SaveItem(ctx, o.gameID, it); err != nil {
			return err
		}
	}
	for _, p := range o.tracker.AllPuzzles() {
		if err := o.journal.SavePuzzle(ctx, o.gameID, p); err != nil {
			return err
		}
	}
	for _, g := range o.graph.Maze().AllGroups() {
		if err := o.journal.SaveMazeGroup(ctx, o.gameID, g); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) currentGroupOrEmpty() string {
	id, _ := o.graph.Maze().CurrentGroup()
	return id
}

func (o *Orchestrator) lastCommand() string {
	if len(o.recent) == 0 {
		return ""
	}
	return o.recent[len(o.recent)-1].Command
}

// checkReturnReciprocity feeds the maze detector's secondary trigger: when
// command is the reverse of whatever move produced the last transition, but
// it lands somewhere other than that transition's starting room, the
// reverse-direction assumption just failed. Four such misses in a row
// trigger maze detection even without duplicate-description evidence.
func (o *Orchestrator) checkReturnReciprocity(previousRoom, newRoom, command string) {
	if o.lastTransition.command != "" && command == room.ReverseDirection(o.lastTransition.command) {
		if newRoom == o.lastTransition.from {
			o.graph.Maze().RecordSuccessfulReturn()
		} else {
			o.graph.Maze().RecordFailedReturn()
		}
	}
	o.lastTransition = transition{from: previousRoom, to: newRoom, command: command}
}

// mazeKnownMarker reports the marker item id already dropped in the current
// maze room, if the output still shows it there. If a marker was expected
// but the output doesn't mention it, the thief has taken it: the subsystem
// forgets the stale marker and a puzzle is recorded so the player knows to
// re-drop.
func (o *Orchestrator) mazeKnownMarker(output string) string {
	groupID, ok := o.graph.Maze().CurrentGroup()
	if !ok {
		return ""
	}
	g, ok := o.graph.Maze().Group(groupID)
	if !ok {
		return ""
	}
	markerID, ok := g.MarkerFor(o.currentRoom)
	if !ok {
		return ""
	}
	name := markerID
	if it, ok := o.registry.GetItem(markerID); ok && it.Name != "" {
		name = it.Name
	}
	if strings.Contains(strings.ToLower(output), strings.ToLower(name)) {
		return markerID
	}

	o.graph.Maze().ReportMarkerMissing(o.currentRoom)
	if p, created := o.tracker.RecordManualPuzzle("wandering thief in maze", o.currentRoom, []string{markerID}, o.turnNumber); created {
		o.hooks.puzzleFound(p)
	}
	return ""
}

// buildMarkerRetrievalQueue walks a route through every marker in the
// just-completed group, via normal pathfinding, and collects a "take" for
// each: the §4.D.6 retrieval step run once DFS resolution drains the
// frontier.
func (o *Orchestrator) buildMarkerRetrievalQueue(g maze.Group) []string {
	roomIDs := make([]string, 0, len(g.Markers))
	for roomID := range g.Markers {
		roomIDs = append(roomIDs, roomID)
	}
	sort.Strings(roomIDs)

	var queue []string
	from := o.currentRoom
	for _, roomID := range roomIDs {
		path, err := o.graph.GetPath(from, roomID)
		if err != nil {
			o.log.Warn(fmt.Sprintf("marker retrieval: no path from %s to %s, leaving marker behind", from, roomID))
			continue
		}
		queue = append(queue, path...)
		itemID := g.Markers[roomID]
		name := itemID
		if it, ok := o.registry.GetItem(itemID); ok && it.Name != "" {
			name = it.Name
		}
		queue = append(queue, "take "+name)
		from = roomID
	}
	return queue
}

func puzzleItemIDs(puzzles []puzzle.Puzzle) []string {
	var out []string
	for _, p := range puzzles {
		out = append(out, p.RelatedItems...)
	}
	return out
}

func classificationLabel(outcome interpreter.Outcome, output string) string {
	if outcome != interpreter.OutcomeNormal {
		return string(outcome)
	}
	if interpreter.IsFailureOutput(output) {
		return "failure"
	}
	return "ok"
}

var darknessPhrases = []string{"too dark", "pitch black", "can't see", "cannot see", "grue"}

func containsDarknessPhrase(output string) bool {
	lower := strings.ToLower(output)
	for _, p := range darknessPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func failureTextOrEmpty(output string) string {
	if interpreter.IsFailureOutput(output) {
		return output
	}
	return ""
}

func roomNameOr(current, parsed string) string {
	if current != "" {
		return current
	}
	return parsed
}
