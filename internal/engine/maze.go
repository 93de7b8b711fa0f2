package engine

import (
	"fmt"

	"github.com/mradwan/autofrotz/internal/domain/maze"
	"github.com/mradwan/autofrotz/internal/domain/normalize"
	"github.com/mradwan/autofrotz/internal/domain/room"
	"github.com/mradwan/autofrotz/internal/platform/logger"
)

const (
	mazeBufferSize         = 30
	mazeSimilarityTrigger  = 0.95
	mazeMinDuplicateRooms  = 3
	mazeConsecutiveFailure = 4
	mazeMinMarkers         = 8
)

type describedRoom struct {
	roomID string
	desc   string
	turn   int
}

// mazeCompassDirections is the fixed exit list the DFS tries blindly when it
// has no better guess: maze rooms never expose real exit names, so every
// direction choice is empirical.
var mazeCompassDirections = []string{
	"north", "south", "east", "west",
	"northeast", "southwest", "northwest", "southeast",
	"up", "down", "in", "out",
}

// mazePendingMove remembers the (room, direction) of the command NextCommand
// just issued, so the following ObserveMazeRoom call knows what it's
// interpreting.
type mazePendingMove struct {
	room      string
	direction string
}

// MazeSubsystem detects maze conditions via description similarity and, once
// active, drives a DFS marker-drop resolution protocol. It lives inside
// MapGraph but is logically separable, per the reference map manager's own
// internal split between graph bookkeeping and maze-specific heuristics.
type MazeSubsystem struct {
	log *logger.Logger

	buffer          []describedRoom
	consecutiveMiss int
	nextGroupSeq    int

	active  bool
	groups  map[string]*maze.Group
	current string // active group id, "" when inactive

	// DFS bookkeeping for the active group.
	frontier    []string          // room ids with unresolved exits, most recent last (the last entry is the room being explored)
	lastMarker  map[string]string // room_id -> marker item id dropped there, before moving on
	arriveDir   map[string]string // room_id -> direction used to move into it during DFS
	triedExits  map[string]map[string]bool
	pendingMove mazePendingMove
	justDropped bool // true right after a "drop" move; the next observation is the drop's own confirmation text, not a new room

	needsLight     bool
	shortOnMarkers bool
}

func newMazeSubsystem(log *logger.Logger) *MazeSubsystem {
	return &MazeSubsystem{
		log:        log,
		groups:     make(map[string]*maze.Group),
		lastMarker: make(map[string]string),
		arriveDir:  make(map[string]string),
		triedExits: make(map[string]map[string]bool),
	}
}

// observe feeds one parsed (room, description) pair into the similarity
// buffer and reports whether the trigger condition has fired this call. On
// trigger it returns the new group id and the room ids that should be
// renamed into the group's maze_<g>_<seq> namespace.
func (m *MazeSubsystem) observe(roomID, desc string, turn int) (triggered bool, groupID string, members []string) {
	if m.active {
		return false, "", nil
	}

	norm := normalize.Description(desc)
	m.buffer = append(m.buffer, describedRoom{roomID: roomID, desc: norm, turn: turn})
	if len(m.buffer) > mazeBufferSize {
		m.buffer = m.buffer[len(m.buffer)-mazeBufferSize:]
	}

	dupRooms := m.duplicateRoomsLocked()
	if len(dupRooms) < mazeMinDuplicateRooms && m.consecutiveMiss < mazeConsecutiveFailure {
		return false, "", nil
	}

	m.nextGroupSeq++
	groupID = fmt.Sprintf("g%d", m.nextGroupSeq)

	entry := m.lastUniqueRoomBefore(dupRooms)
	g := maze.New(groupID, entry, turn)
	for _, rid := range dupRooms {
		g.AddRoom(rid)
	}
	m.groups[groupID] = g
	m.active = true
	m.current = groupID
	m.frontier = append([]string(nil), dupRooms...)

	return true, groupID, dupRooms
}

// duplicateRoomsLocked finds rooms in the buffer whose descriptions are
// pairwise near-identical (similarity >= trigger), the primary detection
// signal.
func (m *MazeSubsystem) duplicateRoomsLocked() []string {
	seen := map[string]bool{}
	var out []string
	for i := 0; i < len(m.buffer); i++ {
		for k := i + 1; k < len(m.buffer); k++ {
			if normalize.SimilarityRatio(m.buffer[i].desc, m.buffer[k].desc) >= mazeSimilarityTrigger {
				if !seen[m.buffer[i].roomID] {
					seen[m.buffer[i].roomID] = true
					out = append(out, m.buffer[i].roomID)
				}
				if !seen[m.buffer[k].roomID] {
					seen[m.buffer[k].roomID] = true
					out = append(out, m.buffer[k].roomID)
				}
			}
		}
	}
	return out
}

func (m *MazeSubsystem) lastUniqueRoomBefore(dupRooms []string) string {
	dup := map[string]bool{}
	for _, r := range dupRooms {
		dup[r] = true
	}
	for i := len(m.buffer) - 1; i >= 0; i-- {
		if !dup[m.buffer[i].roomID] {
			return m.buffer[i].roomID
		}
	}
	return ""
}

// RecordFailedReturn notes a traversal whose reverse command did not return
// to the previous room, the secondary trigger signal (4 consecutive misses).
func (m *MazeSubsystem) RecordFailedReturn() {
	m.consecutiveMiss++
}

// RecordSuccessfulReturn resets the consecutive-miss counter.
func (m *MazeSubsystem) RecordSuccessfulReturn() {
	m.consecutiveMiss = 0
}

func (m *MazeSubsystem) renameMember(oldID, newID string) {
	for i := range m.buffer {
		if m.buffer[i].roomID == oldID {
			m.buffer[i].roomID = newID
		}
	}
	for i := range m.frontier {
		if m.frontier[i] == oldID {
			m.frontier[i] = newID
		}
	}
	if marker, ok := m.lastMarker[oldID]; ok {
		delete(m.lastMarker, oldID)
		m.lastMarker[newID] = marker
	}
	if dir, ok := m.arriveDir[oldID]; ok {
		delete(m.arriveDir, oldID)
		m.arriveDir[newID] = dir
	}
	if tried, ok := m.triedExits[oldID]; ok {
		delete(m.triedExits, oldID)
		m.triedExits[newID] = tried
	}
	if m.pendingMove.room == oldID {
		m.pendingMove.room = newID
	}
	if g, ok := m.groups[m.current]; ok {
		g.RenameRoom(oldID, newID)
	}
}

// nextUntriedDirection picks the next exit to try from roomID: the
// compass-opposite of however we arrived, if still untried, then each
// direction in the fixed list, per the empirical backtracking rule.
func (m *MazeSubsystem) nextUntriedDirection(roomID string) (string, bool) {
	tried := m.triedExits[roomID]
	if arrive, ok := m.arriveDir[roomID]; ok {
		if back := room.ReverseDirection(arrive); !tried[back] {
			return back, true
		}
	}
	for _, d := range mazeCompassDirections {
		if !tried[d] {
			return d, true
		}
	}
	return "", false
}

func (m *MazeSubsystem) markTried(roomID, direction string) {
	if m.triedExits[roomID] == nil {
		m.triedExits[roomID] = make(map[string]bool)
	}
	m.triedExits[roomID][direction] = true
}

// Active reports whether a maze group is currently being resolved.
func (m *MazeSubsystem) Active() bool { return m.active }

// CurrentGroup returns the group id under active resolution, if any.
func (m *MazeSubsystem) CurrentGroup() (string, bool) {
	if !m.active {
		return "", false
	}
	return m.current, true
}

// Group returns a snapshot of one maze group.
func (m *MazeSubsystem) Group(id string) (maze.Group, bool) {
	g, ok := m.groups[id]
	if !ok {
		return maze.Group{}, false
	}
	return *g, true
}

// AllGroups returns a snapshot of every tracked maze group.
func (m *MazeSubsystem) AllGroups() map[string]maze.Group {
	out := make(map[string]maze.Group, len(m.groups))
	for k, v := range m.groups {
		out[k] = *v
	}
	return out
}

// LoadFromDB rehydrates maze groups after a crash.
func (m *MazeSubsystem) LoadFromDB(groups map[string]maze.Group) {
	m.groups = make(map[string]*maze.Group, len(groups))
	for k, v := range groups {
		gc := v
		m.groups[k] = &gc
		if !gc.FullyMapped {
			m.active = true
			m.current = k
		}
	}
}

// NextMove is one DFS step the orchestrator issues in MAZE mode: a marker
// drop, a direction, or a look, or a pause carrying no command.
type NextMove struct {
	Command      string
	Pause        bool   // true when resolution cannot proceed (short on markers / needs light)
	Reason       string // human-readable reason when Pause is true
	MarkedRoomID string // set when this move just assigned a marker
	MarkedItemID string
}

// NextCommand drives the DFS marker-drop resolution protocol for the active
// group, one primitive command at a time. registry supplies droppable
// markers; puzzleItemIDs names items already claimed by an open puzzle,
// which the marker selection must prefer to leave untouched.
func (m *MazeSubsystem) NextCommand(registry *ItemRegistry, puzzleItemIDs []string) NextMove {
	if !m.active {
		return NextMove{Command: "look"}
	}
	g := m.groups[m.current]

	if m.needsLight {
		return NextMove{Pause: true, Reason: "need light in maze"}
	}

	if len(registry.GetDroppableItems(nil)) < mazeMinMarkers {
		m.shortOnMarkers = true
		return NextMove{Pause: true, Reason: "collect more droppable items"}
	}
	m.shortOnMarkers = false

	if len(m.frontier) == 0 {
		return NextMove{Command: "look"}
	}

	currentRoom := m.frontier[len(m.frontier)-1]
	if _, dropped := m.lastMarker[currentRoom]; !dropped {
		droppable := registry.GetDroppableItems(puzzleItemIDs)
		if len(droppable) == 0 {
			m.shortOnMarkers = true
			return NextMove{Pause: true, Reason: "collect more droppable items"}
		}
		marker := droppable[0]
		m.lastMarker[currentRoom] = marker.ID
		g.AssignMarker(currentRoom, marker.ID)
		m.justDropped = true
		m.pendingMove = mazePendingMove{}
		return NextMove{Command: "drop " + marker.Name, MarkedRoomID: currentRoom, MarkedItemID: marker.ID}
	}

	// Marker already placed here; advance via the empirical backtracking
	// rule: try the compass-opposite of however we arrived first, then fall
	// through the fixed exit list, letting ObserveMazeRoom's marker read
	// interpret whatever turns up.
	dir, ok := m.nextUntriedDirection(currentRoom)
	if !ok {
		m.frontier = m.frontier[:len(m.frontier)-1]
		if len(m.frontier) == 0 {
			m.pendingMove = mazePendingMove{}
			return NextMove{Command: "look"}
		}
		return m.NextCommand(registry, puzzleItemIDs)
	}
	m.markTried(currentRoom, dir)
	m.pendingMove = mazePendingMove{room: currentRoom, direction: dir}
	return NextMove{Command: dir}
}

// MazeObservation reports what ObserveMazeRoom just learned, so the caller
// (the MapGraph wrapper, in practice) can record the matching room.Connection
// outside the subsystem's own graph-agnostic state.
type MazeObservation struct {
	Kind        string // "dropped", "dark", "exit", "known", "new", "inactive"
	FromRoom    string
	Direction   string
	ArrivedRoom string
}

// ObserveMazeRoom records the result of the exit/look pair issued after a
// marker drop (step 2.b-2.e): whether the arrived room is still maze terrain,
// which marker (if any) it shows, and whether it reports darkness.
func (m *MazeSubsystem) ObserveMazeRoom(arrivedRoomID, desc string, isDark bool, knownMarkerHere string) MazeObservation {
	if m.justDropped {
		m.justDropped = false
		return MazeObservation{Kind: "dropped"}
	}
	if !m.active {
		return MazeObservation{Kind: "inactive"}
	}
	g := m.groups[m.current]
	pm := m.pendingMove
	obs := MazeObservation{FromRoom: pm.room, Direction: pm.direction, ArrivedRoom: arrivedRoomID}

	if isDark {
		m.needsLight = true
		obs.Kind = "dark"
		return obs
	}

	if !m.isMazeDescription(desc) {
		g.AddExit(arrivedRoomID)
		if len(m.frontier) > 0 {
			m.frontier = m.frontier[:len(m.frontier)-1]
		}
		obs.Kind = "exit"
		return obs
	}

	if knownMarkerHere != "" {
		// Landed on an already-marked room; no new marker needed. The
		// caller records this transition with MapGraph.RecordMazeReturn,
		// which keeps it deterministic until a later traversal of the same
		// exit lands elsewhere and upgrades it to a random connection
		// (step 4).
		if !g.HasRoom(arrivedRoomID) {
			g.AddRoom(arrivedRoomID)
		}
		obs.Kind = "known"
		return obs
	}

	if !g.HasRoom(arrivedRoomID) {
		g.AddRoom(arrivedRoomID)
	}
	m.frontier = append(m.frontier, arrivedRoomID)
	if pm.room != "" && pm.direction != "" {
		m.arriveDir[arrivedRoomID] = pm.direction
	}
	obs.Kind = "new"
	return obs
}

func (m *MazeSubsystem) isMazeDescription(desc string) bool {
	norm := normalize.Description(desc)
	for _, b := range m.buffer {
		if normalize.SimilarityRatio(norm, b.desc) >= mazeSimilarityTrigger {
			return true
		}
	}
	return false
}

// ReportMarkerMissing records a marker-loss event (thief stole it): a
// replacement is dropped and a "wandering thief in maze" puzzle recorded by
// the caller; this method only clears the subsystem's memory of the stale
// marker so the next NextCommand call re-drops.
func (m *MazeSubsystem) ReportMarkerMissing(roomID string) {
	delete(m.lastMarker, roomID)
}

// ResolveNeedsLight clears the light-blocked pause once the orchestrator has
// supplied a light source and re-entered the maze.
func (m *MazeSubsystem) ResolveNeedsLight() {
	m.needsLight = false
}

// IsComplete reports whether every maze room's every mentioned exit has a
// concrete destination — i.e. the frontier has drained.
func (m *MazeSubsystem) IsComplete() bool {
	return m.active && len(m.frontier) == 0 && !m.needsLight && !m.shortOnMarkers
}

// Complete seals the active group: fully_mapped, maze_active cleared.
func (m *MazeSubsystem) Complete(turn int) (string, bool) {
	if !m.active {
		return "", false
	}
	id := m.current
	m.groups[id].Complete(turn)
	m.active = false
	m.current = ""
	m.frontier = nil
	return id, true
}

// PauseReason explains, if any, why resolution is currently stalled.
func (m *MazeSubsystem) PauseReason() string {
	switch {
	case m.needsLight:
		return "need light in maze"
	case m.shortOnMarkers:
		return "collect more droppable items"
	default:
		return ""
	}
}
