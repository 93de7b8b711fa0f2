package journal

import (
	"context"
	"sync"
	"time"

	"github.com/mradwan/autofrotz/internal/domain/item"
	"github.com/mradwan/autofrotz/internal/domain/maze"
	"github.com/mradwan/autofrotz/internal/domain/puzzle"
	"github.com/mradwan/autofrotz/internal/domain/room"
	"github.com/mradwan/autofrotz/internal/domain/turn"
)

// InMemory is a Journal test double with the same upsert-by-natural-key
// semantics as SQLiteJournal, used to exercise the orchestrator without a
// database. Safe for concurrent use.
type InMemory struct {
	mu          sync.Mutex
	nextGameID  int64
	nextMetric  int64
	games       map[int64]*GameRecord
	turns       map[int64]map[int]turn.Record
	rooms       map[int64]map[string]room.Room
	connections map[int64]map[string]room.Connection
	items       map[int64]map[string]item.Item
	puzzles     map[int64]map[int]puzzle.Puzzle
	mazeGroups  map[int64]map[string]maze.Group
	metrics     map[int64][]turn.Metric
}

// NewInMemory creates an empty in-memory journal.
func NewInMemory() *InMemory {
	return &InMemory{
		games:       make(map[int64]*GameRecord),
		turns:       make(map[int64]map[int]turn.Record),
		rooms:       make(map[int64]map[string]room.Room),
		connections: make(map[int64]map[string]room.Connection),
		items:       make(map[int64]map[string]item.Item),
		puzzles:     make(map[int64]map[int]puzzle.Puzzle),
		mazeGroups:  make(map[int64]map[string]maze.Group),
		metrics:     make(map[int64][]turn.Metric),
	}
}

func (j *InMemory) Close() error { return nil }

// DBSizeBytes is always 0; there is no backing file to stat.
func (j *InMemory) DBSizeBytes() int64 { return 0 }

func (j *InMemory) CreateGame(ctx context.Context, gameFile string) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextGameID++
	id := j.nextGameID
	j.games[id] = &GameRecord{GameID: id, GameFile: gameFile, StartTime: time.Now(), Status: GameStatusPlaying}
	j.turns[id] = make(map[int]turn.Record)
	j.rooms[id] = make(map[string]room.Room)
	j.connections[id] = make(map[string]room.Connection)
	j.items[id] = make(map[string]item.Item)
	j.puzzles[id] = make(map[int]puzzle.Puzzle)
	j.mazeGroups[id] = make(map[string]maze.Group)
	return id, nil
}

func (j *InMemory) EndGame(ctx context.Context, gameID int64, status GameStatus) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	g, ok := j.games[gameID]
	if !ok {
		return nil
	}
	g.Status = status
	now := time.Now()
	g.EndTime = &now
	return nil
}

func (j *InMemory) GetActiveGame(ctx context.Context) (*GameRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var latest *GameRecord
	for _, g := range j.games {
		if g.Status != GameStatusPlaying {
			continue
		}
		if latest == nil || g.GameID > latest.GameID {
			latest = g
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (j *InMemory) SaveTurn(ctx context.Context, gameID int64, rec turn.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.turns[gameID][rec.TurnNumber] = rec
	if g, ok := j.games[gameID]; ok && rec.TurnNumber > g.TotalTurns {
		g.TotalTurns = rec.TurnNumber
	}
	return nil
}

func (j *InMemory) GetTurns(ctx context.Context, gameID int64) ([]turn.Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]turn.Record, 0, len(j.turns[gameID]))
	for _, r := range j.turns[gameID] {
		out = append(out, r)
	}
	sortTurns(out)
	return out, nil
}

func (j *InMemory) GetLatestTurn(ctx context.Context, gameID int64) (*turn.Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var latest *turn.Record
	for n, r := range j.turns[gameID] {
		if latest == nil || n > latest.TurnNumber {
			rc := r
			latest = &rc
		}
	}
	return latest, nil
}

func (j *InMemory) SaveRoom(ctx context.Context, gameID int64, r room.Room) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rooms[gameID][r.ID] = r
	return nil
}

func (j *InMemory) GetRooms(ctx context.Context, gameID int64) (map[string]room.Room, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[string]room.Room, len(j.rooms[gameID]))
	for k, v := range j.rooms[gameID] {
		out[k] = v
	}
	return out, nil
}

func (j *InMemory) SaveConnection(ctx context.Context, gameID int64, c room.Connection) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.connections[gameID][c.FromRoom+"\x00"+c.Direction] = c
	return nil
}

func (j *InMemory) GetConnections(ctx context.Context, gameID int64) ([]room.Connection, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]room.Connection, 0, len(j.connections[gameID]))
	for _, c := range j.connections[gameID] {
		out = append(out, c)
	}
	return out, nil
}

func (j *InMemory) SaveItem(ctx context.Context, gameID int64, it item.Item) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.items[gameID][it.ID] = it
	return nil
}

func (j *InMemory) GetItems(ctx context.Context, gameID int64) (map[string]item.Item, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[string]item.Item, len(j.items[gameID]))
	for k, v := range j.items[gameID] {
		out[k] = v
	}
	return out, nil
}

func (j *InMemory) SavePuzzle(ctx context.Context, gameID int64, p puzzle.Puzzle) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.puzzles[gameID][p.ID] = p
	return nil
}

func (j *InMemory) GetPuzzles(ctx context.Context, gameID int64) (map[int]puzzle.Puzzle, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[int]puzzle.Puzzle, len(j.puzzles[gameID]))
	for k, v := range j.puzzles[gameID] {
		out[k] = v
	}
	return out, nil
}

func (j *InMemory) SaveMazeGroup(ctx context.Context, gameID int64, g maze.Group) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.mazeGroups[gameID][g.ID] = g
	return nil
}

func (j *InMemory) GetMazeGroups(ctx context.Context, gameID int64) (map[string]maze.Group, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[string]maze.Group, len(j.mazeGroups[gameID]))
	for k, v := range j.mazeGroups[gameID] {
		out[k] = v
	}
	return out, nil
}

func (j *InMemory) SaveMetric(ctx context.Context, gameID int64, m turn.Metric) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextMetric++
	m.ID = j.nextMetric
	m.GameID = gameID
	j.metrics[gameID] = append(j.metrics[gameID], m)
	return nil
}

func (j *InMemory) GetMetrics(ctx context.Context, gameID int64) ([]turn.Metric, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]turn.Metric, len(j.metrics[gameID]))
	copy(out, j.metrics[gameID])
	return out, nil
}

func sortTurns(recs []turn.Record) {
	for i := 1; i < len(recs); i++ {
		for k := i; k > 0 && recs[k-1].TurnNumber > recs[k].TurnNumber; k-- {
			recs[k-1], recs[k] = recs[k], recs[k-1]
		}
	}
}
