package journal

import (
	"context"
	"fmt"

	"github.com/mradwan/autofrotz/internal/domain/item"
	"github.com/mradwan/autofrotz/internal/domain/maze"
	"github.com/mradwan/autofrotz/internal/domain/puzzle"
	"github.com/mradwan/autofrotz/internal/domain/room"
	"github.com/mradwan/autofrotz/internal/domain/turn"
)

// ResumeState is everything the orchestrator needs to rehydrate in-memory
// state after a crash or restart without replaying the interpreter: the
// active game, the last committed turn, and the full room/item/puzzle/maze
// picture as of that turn.
type ResumeState struct {
	Game        GameRecord
	LastTurn    *turn.Record
	Rooms       map[string]room.Room
	Connections []room.Connection
	Items       map[string]item.Item
	Puzzles     map[int]puzzle.Puzzle
	MazeGroups  map[string]maze.Group
}

// LoadResumeState finds the most recently active game and rebuilds its full
// state from the journal. It returns (nil, nil) when there is no game to
// resume, the ordinary case of starting a brand new run.
func LoadResumeState(ctx context.Context, j Journal) (*ResumeState, error) {
	game, err := j.GetActiveGame(ctx)
	if err != nil {
		return nil, fmt.Errorf("load resume state: %w", err)
	}
	if game == nil {
		return nil, nil
	}

	latest, err := j.GetLatestTurn(ctx, game.GameID)
	if err != nil {
		return nil, fmt.Errorf("load resume state: latest turn: %w", err)
	}

	rooms, err := j.GetRooms(ctx, game.GameID)
	if err != nil {
		return nil, fmt.Errorf("load resume state: rooms: %w", err)
	}
	connections, err := j.GetConnections(ctx, game.GameID)
	if err != nil {
		return nil, fmt.Errorf("load resume state: connections: %w", err)
	}
	items, err := j.GetItems(ctx, game.GameID)
	if err != nil {
		return nil, fmt.Errorf("load resume state: items: %w", err)
	}
	puzzles, err := j.GetPuzzles(ctx, game.GameID)
	if err != nil {
		return nil, fmt.Errorf("load resume state: puzzles: %w", err)
	}
	mazeGroups, err := j.GetMazeGroups(ctx, game.GameID)
	if err != nil {
		return nil, fmt.Errorf("load resume state: maze groups: %w", err)
	}

	return &ResumeState{
		Game:        *game,
		LastTurn:    latest,
		Rooms:       rooms,
		Connections: connections,
		Items:       items,
		Puzzles:     puzzles,
		MazeGroups:  mazeGroups,
	}, nil
}
