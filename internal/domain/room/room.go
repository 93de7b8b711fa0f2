// Package room defines the core domain entities for the room graph: Room
// nodes and the directed Connection edges between them. This package is
// PURE and must NOT import any infrastructure packages.
package room

// Room is a node in MapGraph, keyed by a normalized room id.
//
// ItemsHere is deliberately absent: per the design notes this is a live
// query into the item registry keyed by location, never stored truth.
type Room struct {
	ID               string            `json:"room_id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	Visited          bool              `json:"visited"`
	VisitCount       int               `json:"visit_count"`
	IsDark           bool              `json:"is_dark"`
	MazeGroup        string            `json:"maze_group,omitempty"`
	MazeMarkerItem   string            `json:"maze_marker_item,omitempty"`
	PendingExits     map[string]bool   `json:"pending_exits"` // direction -> seen-but-unresolved
	FirstVisitedTurn int               `json:"first_visited_turn"`
	LastVisitedTurn  int               `json:"last_visited_turn"`
}

// New creates a freshly-discovered room, visited once on creation.
func New(id, name, description string, turn int) *Room {
	return &Room{
		ID:               id,
		Name:             name,
		Description:      description,
		Visited:          true,
		VisitCount:       1,
		PendingExits:     make(map[string]bool),
		FirstVisitedTurn: turn,
		LastVisitedTurn:  turn,
	}
}

// Revisit records a return trip to an already-known room.
func (r *Room) Revisit(turn int) {
	r.VisitCount++
	r.touch(turn)
}

// SetDescription updates the latest-seen description if it changed.
func (r *Room) SetDescription(desc string) {
	if desc != "" {
		r.Description = desc
	}
}

// AddPendingExit records a direction mentioned in prose but not yet
// resolved into a concrete outgoing Connection.
func (r *Room) AddPendingExit(direction string) {
	if r.PendingExits == nil {
		r.PendingExits = make(map[string]bool)
	}
	r.PendingExits[direction] = true
}

// ResolveExit clears a direction from the pending set once an edge exists for it.
func (r *Room) ResolveExit(direction string) {
	delete(r.PendingExits, direction)
}

// InMaze reports whether this room currently belongs to a MazeGroup.
func (r *Room) InMaze() bool {
	return r.MazeGroup != ""
}

func (r *Room) touch(turn int) {
	if turn > r.LastVisitedTurn {
		r.LastVisitedTurn = turn
	}
}

// Connection is a directed edge from one room to another, labelled by the
// command token that traverses it.
type Connection struct {
	FromRoom             string   `json:"from_room"`
	ToRoom               string   `json:"to_room"`
	Direction            string   `json:"direction"`
	Bidirectional        bool     `json:"bidirectional"`
	Blocked              bool     `json:"blocked"`
	BlockReason          string   `json:"block_reason,omitempty"`
	Teleport             bool     `json:"teleport"`
	Random               bool     `json:"random"`
	ObservedDestinations []string `json:"observed_destinations,omitempty"`
}

// NewConnection creates a bidirectional-by-default edge, as required on
// first traversal.
func NewConnection(from, to, direction string) *Connection {
	return &Connection{
		FromRoom:      from,
		ToRoom:        to,
		Direction:     direction,
		Bidirectional: true,
	}
}

// Block marks the edge impassable with a reason.
func (c *Connection) Block(reason string) {
	c.Blocked = true
	c.BlockReason = reason
}

// Unblock clears a prior block.
func (c *Connection) Unblock() {
	c.Blocked = false
	c.BlockReason = ""
}

// RecordObservedDestination appends a destination to a maze connection that
// has been observed to lead somewhere new, upgrading it to Random if it
// isn't already.
func (c *Connection) RecordObservedDestination(dest string) {
	if !c.Random {
		c.Random = true
		if c.ToRoom != "" {
			c.ObservedDestinations = append(c.ObservedDestinations, c.ToRoom)
		}
	}
	for _, d := range c.ObservedDestinations {
		if d == dest {
			return
		}
	}
	c.ObservedDestinations = append(c.ObservedDestinations, dest)
}

// ReverseDirection maps a direction token to its compass-opposite command,
// following the fixed table the reference map manager uses. Directions with
// no natural opposite ("enter building", a free-text exit label) fall back
// to a synthesized "back_from_<dir>" token.
func ReverseDirection(direction string) string {
	if rev, ok := opposites[direction]; ok {
		return rev
	}
	return "back_from_" + direction
}

var opposites = map[string]string{
	"north":     "south",
	"south":     "north",
	"east":      "west",
	"west":      "east",
	"northeast": "southwest",
	"southwest": "northeast",
	"northwest": "southeast",
	"southeast": "northwest",
	"up":        "down",
	"down":      "up",
	"in":        "out",
	"out":       "in",
	"n":         "s",
	"s":         "n",
	"e":         "w",
	"w":         "e",
	"ne":        "sw",
	"sw":        "ne",
	"nw":        "se",
	"se":        "nw",
	"u":         "d",
	"d":         "u",
}

// Update is a structured delta returned by the map_parser call describing
// what, if anything, changed about the current room this turn.
type Update struct {
	RoomChanged bool     `json:"room_changed"`
	NewName     string   `json:"new_name"`
	Description string   `json:"description"`
	IsDark      bool     `json:"is_dark"`
	Exits       []string `json:"exits"`
}
