// Package journal provides the durable persistence layer the orchestrator
// depends on: one row per game/turn/room/connection/item/puzzle/maze group,
// upserted by natural key rather than appended as an immutable event log.
// The domain packages (item, room, maze, puzzle, turn) stay pure; the
// journal translates between them and SQL at the edge.
package journal

import (
	"context"
	"time"

	"github.com/mradwan/autofrotz/internal/domain/item"
	"github.com/mradwan/autofrotz/internal/domain/maze"
	"github.com/mradwan/autofrotz/internal/domain/puzzle"
	"github.com/mradwan/autofrotz/internal/domain/room"
	"github.com/mradwan/autofrotz/internal/domain/turn"
)

// GameStatus is the lifecycle state of a tracked game session.
type GameStatus string

const (
	GameStatusPlaying GameStatus = "playing"
	GameStatusDied    GameStatus = "lost"
	GameStatusWon     GameStatus = "won"
	GameStatusAborted GameStatus = "abandoned"
)

// GameRecord is the row identifying one play session.
type GameRecord struct {
	GameID     int64
	GameFile   string
	StartTime  time.Time
	EndTime    *time.Time
	Status     GameStatus
	TotalTurns int
}

// Journal is the durable-persistence collaborator the orchestrator drives
// every turn. Every Save* call except SaveMetric is an upsert keyed on the
// entity's natural key (game_id+turn_number, game_id+room_id, etc.), never a
// blind append, so replaying the same turn after a crash does not duplicate
// those rows. SaveMetric appends a new row on every call.
type Journal interface {
	CreateGame(ctx context.Context, gameFile string) (int64, error)
	EndGame(ctx context.Context, gameID int64, status GameStatus) error
	GetActiveGame(ctx context.Context) (*GameRecord, error)

	SaveTurn(ctx context.Context, gameID int64, rec turn.Record) error
	GetTurns(ctx context.Context, gameID int64) ([]turn.Record, error)
	GetLatestTurn(ctx context.Context, gameID int64) (*turn.Record, error)

	SaveRoom(ctx context.Context, gameID int64, r room.Room) error
	GetRooms(ctx context.Context, gameID int64) (map[string]room.Room, error)

	SaveConnection(ctx context.Context, gameID int64, c room.Connection) error
	GetConnections(ctx context.Context, gameID int64) ([]room.Connection, error)

	SaveItem(ctx context.Context, gameID int64, it item.Item) error
	GetItems(ctx context.Context, gameID int64) (map[string]item.Item, error)

	SavePuzzle(ctx context.Context, gameID int64, p puzzle.Puzzle) error
	GetPuzzles(ctx context.Context, gameID int64) (map[int]puzzle.Puzzle, error)

	SaveMazeGroup(ctx context.Context, gameID int64, g maze.Group) error
	GetMazeGroups(ctx context.Context, gameID int64) (map[string]maze.Group, error)

	SaveMetric(ctx context.Context, gameID int64, m turn.Metric) error
	GetMetrics(ctx context.Context, gameID int64) ([]turn.Metric, error)

	// DBSizeBytes reports the on-disk size of the journal, for the
	// humanized size/latency line logged after every turn commit. An
	// in-memory journal has nothing to stat and always reports 0.
	DBSizeBytes() int64

	Close() error
}
