package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mradwan/autofrotz/internal/domain/normalize"
	"github.com/mradwan/autofrotz/internal/domain/room"
	"github.com/mradwan/autofrotz/internal/llm"
	"github.com/mradwan/autofrotz/internal/platform/logger"
)

var mapUpdateSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"room_changed": map[string]any{"type": "boolean"},
		"new_name":     map[string]any{"type": "string"},
		"description":  map[string]any{"type": "string"},
		"is_dark":      map[string]any{"type": "boolean"},
		"exits":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	},
}

// MapGraph is the directed room graph: nodes keyed by normalized room id,
// edges labelled by the command token that traverses them. It owns the
// MazeSubsystem, which observes every parsed description for duplication.
type MapGraph struct {
	mu          sync.Mutex
	rooms       map[string]room.Room
	connections map[string]room.Connection // keyed by fromRoom+"\x00"+direction
	provider    llm.Provider
	log         *logger.Logger
	maze        *MazeSubsystem

	currentRoom string
}

// NewMapGraph creates an empty graph with its embedded maze subsystem.
func NewMapGraph(provider llm.Provider, log *logger.Logger) *MapGraph {
	return &MapGraph{
		rooms:       make(map[string]room.Room),
		connections: make(map[string]room.Connection),
		provider:    provider,
		log:         log,
		maze:        newMazeSubsystem(log),
	}
}

// Maze exposes the embedded subsystem to the orchestrator for mode-switch
// decisions; logically separable, physically owned here per the reference
// map manager.
func (g *MapGraph) Maze() *MazeSubsystem { return g.maze }

// LoadFromDB rehydrates the graph from journal rows after a crash.
func (g *MapGraph) LoadFromDB(rooms map[string]room.Room, connections []room.Connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rooms = make(map[string]room.Room, len(rooms))
	for k, v := range rooms {
		g.rooms[k] = v
	}
	g.connections = make(map[string]room.Connection, len(connections))
	for _, c := range connections {
		g.connections[connKey(c.FromRoom, c.Direction)] = c
	}
}

func connKey(from, dir string) string { return from + "\x00" + dir }

// UpdateFromGameOutput issues the map_parser structured-extraction call and
// mutates the graph per the reference room-update algorithm: revisit,
// create, edge-create, and reciprocity demotion.
func (g *MapGraph) UpdateFromGameOutput(ctx context.Context, text, command string, turn int) (room.Update, error) {
	req := llm.JSONRequest{
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf("Command: %s\nOutput: %s", command, text)},
		},
		Schema: mapUpdateSchema,
	}

	raw, err := llm.ExtractJSON(ctx, g.provider, mapParserSystemPrompt, req, nil, g.log)
	if err != nil {
		return room.Update{}, fmt.Errorf("map_parser: %w", err)
	}

	var upd room.Update
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &upd); err != nil {
			g.log.Warn("map_parser: malformed structured response, treating as no-op")
			return room.Update{}, nil
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.applyUpdate(upd, command, turn)
	return upd, nil
}

func (g *MapGraph) applyUpdate(upd room.Update, command string, turn int) {
	prevRoomID := g.currentRoom

	if !upd.RoomChanged {
		if cur, ok := g.rooms[prevRoomID]; ok {
			cur.SetDescription(upd.Description)
			if turn > cur.LastVisitedTurn {
				cur.LastVisitedTurn = turn
			}
			g.rooms[prevRoomID] = cur
		}
		return
	}

	newID := normalize.RoomID(upd.NewName)
	if newID == "" {
		return
	}

	existing, known := g.rooms[newID]
	if known {
		existing.Revisit(turn)
		existing.SetDescription(upd.Description)
		existing.IsDark = upd.IsDark
		g.rooms[newID] = existing
	} else {
		r := room.New(newID, upd.NewName, upd.Description, turn)
		r.IsDark = upd.IsDark
		for _, exit := range upd.Exits {
			r.AddPendingExit(exit)
		}
		g.rooms[newID] = *r
	}

	if command != "" && prevRoomID != "" && prevRoomID != newID {
		g.resolveReciprocityLocked(prevRoomID, command, newID)
	}

	g.currentRoom = newID
}

// resolveReciprocityLocked implements steps 4 and 5 of the room-update
// algorithm together: if no edge yet covers this command from fromID,
// create one, bidirectional by default, with a provisional reverse edge
// assumed to lead straight back. If an edge already covers it — typically
// that provisional reverse, laid down when the far room was first entered —
// and this traversal actually lands somewhere else, the earlier
// reciprocity assumption was wrong; demote it to a concrete one-way edge
// pointing at where the traversal really went.
func (g *MapGraph) resolveReciprocityLocked(fromID, command, toID string) {
	key := connKey(fromID, command)
	existing, exists := g.connections[key]
	if !exists {
		c := room.NewConnection(fromID, toID, command)
		g.connections[key] = *c
		if c.Bidirectional {
			reverseDir := room.ReverseDirection(command)
			reverseKey := connKey(toID, reverseDir)
			if _, reverseExists := g.connections[reverseKey]; !reverseExists {
				g.connections[reverseKey] = *room.NewConnection(toID, fromID, reverseDir)
			}
		}
	} else if existing.ToRoom != toID {
		existing.Bidirectional = false
		existing.ToRoom = toID
		g.connections[key] = existing
	}

	if r, ok := g.rooms[fromID]; ok {
		r.ResolveExit(command)
		g.rooms[fromID] = r
	}
}

// ResolveReciprocity exposes the same step 4/5 resolution for a caller that
// already knows a traversal's (from, direction, actual destination) outside
// the parse pipeline's own room-changed path, e.g. the maze subsystem's
// marker-drop backtracking.
func (g *MapGraph) ResolveReciprocity(fromB, direction, arrivedAtC string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resolveReciprocityLocked(fromB, direction, arrivedAtC)
}

// RecordMazeReturn records a maze DFS step landing on an already-marked
// room (§4.D.2.d): a deterministic one-way edge on first observation.
// Only if a later trial of the same direction lands somewhere else does
// the edge turn out to actually be random (§4.D.4) — a distinct trigger
// from 2.d, not the same case — in which case it's upgraded in place,
// seeding ObservedDestinations with both the prior and the new
// destination so random(C)=true ⇒ len(observed_destinations)>=2 holds
// from the moment the upgrade happens.
func (g *MapGraph) RecordMazeReturn(fromID, direction, toID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := connKey(fromID, direction)
	c, exists := g.connections[key]
	if !exists {
		nc := room.NewConnection(fromID, toID, direction)
		nc.Bidirectional = false
		g.connections[key] = *nc
		return
	}
	if c.ToRoom == toID {
		return
	}
	c.RecordObservedDestination(toID)
	g.connections[key] = c
}

// GetPath returns the direction sequence from `from` to `to` using BFS
// shortest path over the subgraph excluding blocked and unknown-destination
// edges. No ecosystem graph library surfaced in the retrieved example
// corpus; BFS over an adjacency map is the idiomatic stdlib substitute.
func (g *MapGraph) GetPath(from, to string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bfsPath(from, to)
}

func (g *MapGraph) bfsPath(from, to string) ([]string, error) {
	if from == to {
		return nil, nil
	}
	type frame struct {
		room string
		path []string
	}
	visited := map[string]bool{from: true}
	queue := []frame{{room: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, c := range g.outgoingLocked(cur.room) {
			if c.Blocked || c.ToRoom == "" {
				continue
			}
			if visited[c.ToRoom] {
				continue
			}
			nextPath := append(append([]string(nil), cur.path...), c.Direction)
			if c.ToRoom == to {
				return nextPath, nil
			}
			visited[c.ToRoom] = true
			queue = append(queue, frame{room: c.ToRoom, path: nextPath})
		}
	}
	return nil, fmt.Errorf("no path from %q to %q", from, to)
}

func (g *MapGraph) outgoingLocked(roomID string) []room.Connection {
	var out []room.Connection
	for _, c := range g.connections {
		if c.FromRoom == roomID {
			out = append(out, c)
		}
	}
	return out
}

// GetNextStep returns only the first hop of GetPath, or false if unreachable.
func (g *MapGraph) GetNextStep(from, to string) (string, bool) {
	path, err := g.GetPath(from, to)
	if err != nil || len(path) == 0 {
		return "", false
	}
	return path[0], true
}

// PendingExit names a direction mentioned in prose but with no concrete
// outgoing edge resolved yet.
type PendingExit struct {
	RoomID    string
	Direction string
}

// GetUnexploredExits lists pending directions for one room, or every room if
// roomID is empty.
func (g *MapGraph) GetUnexploredExits(roomID string) []PendingExit {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []PendingExit
	for id, r := range g.rooms {
		if roomID != "" && id != roomID {
			continue
		}
		for dir, pending := range r.PendingExits {
			if pending {
				out = append(out, PendingExit{RoomID: id, Direction: dir})
			}
		}
	}
	return out
}

// GetNearestUnexplored finds the closest room (by BFS hop count) with an
// unresolved pending exit, returning the path to reach it.
func (g *MapGraph) GetNearestUnexplored(from string) (string, []string, bool) {
	pending := g.GetUnexploredExits("")

	best := ""
	var bestPath []string
	for _, p := range pending {
		path, err := g.GetPath(from, p.RoomID)
		if err != nil {
			continue
		}
		if best == "" || len(path) < len(bestPath) {
			best = p.RoomID
			bestPath = path
		}
	}
	if best == "" {
		return "", nil, false
	}
	return best, bestPath, true
}

// MarkBlocked records a traversal failure on an edge.
func (g *MapGraph) MarkBlocked(from, dir, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := connKey(from, dir)
	c, ok := g.connections[key]
	if !ok {
		c = *room.NewConnection(from, "", dir)
	}
	c.Block(reason)
	g.connections[key] = c
}

// Unblock clears a prior MarkBlocked.
func (g *MapGraph) Unblock(from, dir string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := connKey(from, dir)
	if c, ok := g.connections[key]; ok {
		c.Unblock()
		g.connections[key] = c
	}
}

// CheckMazeCondition feeds the latest parsed description into the embedded
// maze subsystem's similarity buffer, creating a MazeGroup and renaming its
// member rooms if the trigger condition fires.
func (g *MapGraph) CheckMazeCondition(currentRoomID, desc string, turn int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	triggered, groupID, members := g.maze.observe(currentRoomID, desc, turn)
	if !triggered {
		return false
	}

	for i, roomID := range members {
		r, ok := g.rooms[roomID]
		if !ok {
			continue
		}
		newID := normalize.MazeRoomID(groupID, i+1)
		r.ID = newID
		r.MazeGroup = groupID
		delete(g.rooms, roomID)
		g.rooms[newID] = r
		g.maze.renameMember(roomID, newID)
	}
	return true
}

// CurrentRoom returns the id of the most recently entered room.
func (g *MapGraph) CurrentRoom() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentRoom
}

// SetCurrentRoom lets the orchestrator seed the graph's notion of "here"
// after a crash-resume, before any further parser call runs.
func (g *MapGraph) SetCurrentRoom(roomID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.currentRoom = roomID
}

// GetRoom returns a room by id.
func (g *MapGraph) GetRoom(id string) (room.Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[id]
	return r, ok
}

// AllRooms returns a snapshot of every known room.
func (g *MapGraph) AllRooms() map[string]room.Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]room.Room, len(g.rooms))
	for k, v := range g.rooms {
		out[k] = v
	}
	return out
}

// AllConnections returns a snapshot of every known edge.
func (g *MapGraph) AllConnections() []room.Connection {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]room.Connection, 0, len(g.connections))
	for _, c := range g.connections {
		out = append(out, c)
	}
	return out
}

const mapParserSystemPrompt = `You track room geography mentioned in text-adventure prose. Given the ` +
	`command just executed and the game's output, report whether the room changed, and if so its name, ` +
	`description, darkness, and any exits mentioned. Return nulls rather than fabricate detail.`
