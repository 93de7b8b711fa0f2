package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mradwan/autofrotz/internal/domain/item"
	"github.com/mradwan/autofrotz/internal/domain/maze"
	"github.com/mradwan/autofrotz/internal/domain/puzzle"
	"github.com/mradwan/autofrotz/internal/domain/room"
	"github.com/mradwan/autofrotz/internal/domain/turn"
)

// SQLiteJournal implements Journal against a *sql.DB opened with InitSQLite.
// Every Save* call except SaveMetric is an upsert on the entity's natural key
// so that replaying an already-committed turn after a crash is a no-op, not a
// duplicate; SaveMetric inserts a new row on every call.
type SQLiteJournal struct {
	db   *sql.DB
	path string
}

// NewSQLiteJournal wraps an already-initialized database handle. path is
// the file InitSQLite opened it from, kept only so DBSizeBytes can stat it
// for the post-commit log line.
func NewSQLiteJournal(db *sql.DB, path string) *SQLiteJournal {
	return &SQLiteJournal{db: db, path: path}
}

func (j *SQLiteJournal) Close() error { return j.db.Close() }

// DBSizeBytes stats the backing file; a stat failure (file not yet flushed,
// in-memory DSN) is reported as 0 rather than an error the caller would
// have to handle on every turn.
func (j *SQLiteJournal) DBSizeBytes() int64 {
	info, err := os.Stat(j.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (j *SQLiteJournal) CreateGame(ctx context.Context, gameFile string) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO games (game_file, start_time, status) VALUES (?, ?, ?)`,
		gameFile, time.Now().UTC().Format(time.RFC3339), string(GameStatusPlaying),
	)
	if err != nil {
		return 0, fmt.Errorf("create game: %w", err)
	}
	return res.LastInsertId()
}

func (j *SQLiteJournal) EndGame(ctx context.Context, gameID int64, status GameStatus) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE games SET status = ?, end_time = ? WHERE game_id = ?`,
		string(status), time.Now().UTC().Format(time.RFC3339), gameID,
	)
	if err != nil {
		return fmt.Errorf("end game: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) GetActiveGame(ctx context.Context) (*GameRecord, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT game_id, game_file, start_time, end_time, status, total_turns
		 FROM games WHERE status = ? ORDER BY game_id DESC LIMIT 1`,
		string(GameStatusPlaying),
	)
	var g GameRecord
	var start string
	var end sql.NullString
	var status string
	if err := row.Scan(&g.GameID, &g.GameFile, &start, &end, &status, &g.TotalTurns); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get active game: %w", err)
	}
	g.Status = GameStatus(status)
	g.StartTime, _ = time.Parse(time.RFC3339, start)
	if end.Valid {
		t, _ := time.Parse(time.RFC3339, end.String)
		g.EndTime = &t
	}
	return &g, nil
}

func (j *SQLiteJournal) SaveTurn(ctx context.Context, gameID int64, rec turn.Record) error {
	inv, err := json.Marshal(rec.InventorySnapshot)
	if err != nil {
		return fmt.Errorf("marshal inventory snapshot: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO turns (game_id, turn_number, timestamp, command_sent, game_output, room_id, inventory_snapshot, agent_reasoning)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id, turn_number) DO UPDATE SET
			timestamp=excluded.timestamp,
			command_sent=excluded.command_sent,
			game_output=excluded.game_output,
			room_id=excluded.room_id,
			inventory_snapshot=excluded.inventory_snapshot,
			agent_reasoning=excluded.agent_reasoning
	`, gameID, rec.TurnNumber, rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.CommandSent,
		rec.GameOutput, rec.CurrentRoom, string(inv), rec.AgentReasoning)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `UPDATE games SET total_turns = ? WHERE game_id = ? AND total_turns < ?`,
		rec.TurnNumber, gameID, rec.TurnNumber)
	if err != nil {
		return fmt.Errorf("update total_turns: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) GetTurns(ctx context.Context, gameID int64) ([]turn.Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT turn_number, timestamp, command_sent, game_output, room_id, inventory_snapshot, agent_reasoning
		FROM turns WHERE game_id = ? ORDER BY turn_number ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("get turns: %w", err)
	}
	defer rows.Close()

	var out []turn.Record
	for rows.Next() {
		rec, err := scanTurnRow(rows, gameID)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) GetLatestTurn(ctx context.Context, gameID int64) (*turn.Record, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT turn_number, timestamp, command_sent, game_output, room_id, inventory_snapshot, agent_reasoning
		FROM turns WHERE game_id = ? ORDER BY turn_number DESC LIMIT 1`, gameID)
	if err != nil {
		return nil, fmt.Errorf("get latest turn: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}
	rec, err := scanTurnRow(rows, gameID)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanTurnRow(rows *sql.Rows, gameID int64) (turn.Record, error) {
	var rec turn.Record
	var ts, inv string
	var reasoning sql.NullString
	if err := rows.Scan(&rec.TurnNumber, &ts, &rec.CommandSent, &rec.GameOutput, &rec.CurrentRoom, &inv, &reasoning); err != nil {
		return turn.Record{}, fmt.Errorf("scan turn: %w", err)
	}
	rec.GameID = gameID
	rec.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	rec.AgentReasoning = reasoning.String
	if err := json.Unmarshal([]byte(inv), &rec.InventorySnapshot); err != nil {
		return turn.Record{}, fmt.Errorf("unmarshal inventory snapshot: %w", err)
	}
	return rec, nil
}

func (j *SQLiteJournal) SaveRoom(ctx context.Context, gameID int64, r room.Room) error {
	pending, err := json.Marshal(r.PendingExits)
	if err != nil {
		return fmt.Errorf("marshal pending exits: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO rooms (room_id, game_id, name, description, visited, visit_count, maze_group, maze_marker_item, is_dark, pending_exits, first_visited_turn, last_visited_turn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id, room_id) DO UPDATE SET
			name=excluded.name,
			description=excluded.description,
			visited=excluded.visited,
			visit_count=excluded.visit_count,
			maze_group=excluded.maze_group,
			maze_marker_item=excluded.maze_marker_item,
			is_dark=excluded.is_dark,
			pending_exits=excluded.pending_exits,
			first_visited_turn=excluded.first_visited_turn,
			last_visited_turn=excluded.last_visited_turn
	`, r.ID, gameID, r.Name, r.Description, r.Visited, r.VisitCount, nullableString(r.MazeGroup),
		nullableString(r.MazeMarkerItem), r.IsDark, string(pending), r.FirstVisitedTurn, r.LastVisitedTurn)
	if err != nil {
		return fmt.Errorf("save room: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) GetRooms(ctx context.Context, gameID int64) (map[string]room.Room, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT room_id, name, description, visited, visit_count, maze_group, maze_marker_item, is_dark, pending_exits, first_visited_turn, last_visited_turn
		FROM rooms WHERE game_id = ?`, gameID)
	if err != nil {
		return nil, fmt.Errorf("get rooms: %w", err)
	}
	defer rows.Close()

	out := make(map[string]room.Room)
	for rows.Next() {
		var r room.Room
		var mazeGroup, marker sql.NullString
		var pending string
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Visited, &r.VisitCount, &mazeGroup, &marker, &r.IsDark, &pending, &r.FirstVisitedTurn, &r.LastVisitedTurn); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		r.MazeGroup = mazeGroup.String
		r.MazeMarkerItem = marker.String
		if err := json.Unmarshal([]byte(pending), &r.PendingExits); err != nil {
			return nil, fmt.Errorf("unmarshal pending exits: %w", err)
		}
		out[r.ID] = r
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) SaveConnection(ctx context.Context, gameID int64, c room.Connection) error {
	dest, err := json.Marshal(c.ObservedDestinations)
	if err != nil {
		return fmt.Errorf("marshal observed destinations: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO connections (game_id, from_room_id, to_room_id, direction, bidirectional, blocked, block_reason, teleport, random, observed_destinations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id, from_room_id, direction) DO UPDATE SET
			to_room_id=excluded.to_room_id,
			bidirectional=excluded.bidirectional,
			blocked=excluded.blocked,
			block_reason=excluded.block_reason,
			teleport=excluded.teleport,
			random=excluded.random,
			observed_destinations=excluded.observed_destinations
	`, gameID, c.FromRoom, c.ToRoom, c.Direction, c.Bidirectional, c.Blocked, nullableString(c.BlockReason),
		c.Teleport, c.Random, string(dest))
	if err != nil {
		return fmt.Errorf("save connection: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) GetConnections(ctx context.Context, gameID int64) ([]room.Connection, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT from_room_id, to_room_id, direction, bidirectional, blocked, block_reason, teleport, random, observed_destinations
		FROM connections WHERE game_id = ?`, gameID)
	if err != nil {
		return nil, fmt.Errorf("get connections: %w", err)
	}
	defer rows.Close()

	var out []room.Connection
	for rows.Next() {
		var c room.Connection
		var reason sql.NullString
		var dest string
		if err := rows.Scan(&c.FromRoom, &c.ToRoom, &c.Direction, &c.Bidirectional, &c.Blocked, &reason, &c.Teleport, &c.Random, &dest); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		c.BlockReason = reason.String
		if err := json.Unmarshal([]byte(dest), &c.ObservedDestinations); err != nil {
			return nil, fmt.Errorf("unmarshal observed destinations: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) SaveItem(ctx context.Context, gameID int64, it item.Item) error {
	props, err := json.Marshal(it.Properties)
	if err != nil {
		return fmt.Errorf("marshal item properties: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO items (item_id, game_id, name, description, location, portable, properties, first_seen_turn, last_seen_turn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id, item_id) DO UPDATE SET
			name=excluded.name,
			description=excluded.description,
			location=excluded.location,
			portable=excluded.portable,
			properties=excluded.properties,
			first_seen_turn=excluded.first_seen_turn,
			last_seen_turn=excluded.last_seen_turn
	`, it.ID, gameID, it.Name, it.Description, it.Location, string(it.Portable), string(props), it.FirstSeenTurn, it.LastSeenTurn)
	if err != nil {
		return fmt.Errorf("save item: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) GetItems(ctx context.Context, gameID int64) (map[string]item.Item, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT item_id, name, description, location, portable, properties, first_seen_turn, last_seen_turn
		FROM items WHERE game_id = ?`, gameID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	defer rows.Close()

	out := make(map[string]item.Item)
	for rows.Next() {
		var it item.Item
		var portable, props string
		var desc sql.NullString
		if err := rows.Scan(&it.ID, &it.Name, &desc, &it.Location, &portable, &props, &it.FirstSeenTurn, &it.LastSeenTurn); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		it.Description = desc.String
		it.Portable = item.Portability(portable)
		if err := json.Unmarshal([]byte(props), &it.Properties); err != nil {
			return nil, fmt.Errorf("unmarshal item properties: %w", err)
		}
		out[it.ID] = it
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) SavePuzzle(ctx context.Context, gameID int64, p puzzle.Puzzle) error {
	related, err := json.Marshal(p.RelatedItems)
	if err != nil {
		return fmt.Errorf("marshal related items: %w", err)
	}
	attempts, err := json.Marshal(p.Attempts)
	if err != nil {
		return fmt.Errorf("marshal attempts: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO puzzles (puzzle_id, game_id, description, status, location, related_items, attempts, created_turn, solved_turn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id, puzzle_id) DO UPDATE SET
			description=excluded.description,
			status=excluded.status,
			location=excluded.location,
			related_items=excluded.related_items,
			attempts=excluded.attempts,
			created_turn=excluded.created_turn,
			solved_turn=excluded.solved_turn
	`, p.ID, gameID, p.Description, string(p.Status), p.Location, string(related), string(attempts), p.CreatedTurn, p.SolvedTurn)
	if err != nil {
		return fmt.Errorf("save puzzle: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) GetPuzzles(ctx context.Context, gameID int64) (map[int]puzzle.Puzzle, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT puzzle_id, description, status, location, related_items, attempts, created_turn, solved_turn
		FROM puzzles WHERE game_id = ?`, gameID)
	if err != nil {
		return nil, fmt.Errorf("get puzzles: %w", err)
	}
	defer rows.Close()

	out := make(map[int]puzzle.Puzzle)
	for rows.Next() {
		var p puzzle.Puzzle
		var status string
		var location sql.NullString
		var related, attempts string
		if err := rows.Scan(&p.ID, &p.Description, &status, &location, &related, &attempts, &p.CreatedTurn, &p.SolvedTurn); err != nil {
			return nil, fmt.Errorf("scan puzzle: %w", err)
		}
		p.Status = puzzle.Status(status)
		p.Location = location.String
		if err := json.Unmarshal([]byte(related), &p.RelatedItems); err != nil {
			return nil, fmt.Errorf("unmarshal related items: %w", err)
		}
		if err := json.Unmarshal([]byte(attempts), &p.Attempts); err != nil {
			return nil, fmt.Errorf("unmarshal attempts: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) SaveMazeGroup(ctx context.Context, gameID int64, g maze.Group) error {
	roomIDs, err := json.Marshal(g.RoomIDs)
	if err != nil {
		return fmt.Errorf("marshal room ids: %w", err)
	}
	exitIDs, err := json.Marshal(g.ExitRoomIDs)
	if err != nil {
		return fmt.Errorf("marshal exit ids: %w", err)
	}
	markers, err := json.Marshal(g.Markers)
	if err != nil {
		return fmt.Errorf("marshal markers: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO maze_groups (group_id, game_id, entry_room_id, room_ids, exit_room_ids, markers, fully_mapped, created_turn, completed_turn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id, group_id) DO UPDATE SET
			entry_room_id=excluded.entry_room_id,
			room_ids=excluded.room_ids,
			exit_room_ids=excluded.exit_room_ids,
			markers=excluded.markers,
			fully_mapped=excluded.fully_mapped,
			created_turn=excluded.created_turn,
			completed_turn=excluded.completed_turn
	`, g.ID, gameID, g.EntryRoomID, string(roomIDs), string(exitIDs), string(markers), g.FullyMapped, g.CreatedTurn, g.CompletedTurn)
	if err != nil {
		return fmt.Errorf("save maze group: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) GetMazeGroups(ctx context.Context, gameID int64) (map[string]maze.Group, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT group_id, entry_room_id, room_ids, exit_room_ids, markers, fully_mapped, created_turn, completed_turn
		FROM maze_groups WHERE game_id = ?`, gameID)
	if err != nil {
		return nil, fmt.Errorf("get maze groups: %w", err)
	}
	defer rows.Close()

	out := make(map[string]maze.Group)
	for rows.Next() {
		var g maze.Group
		var entry sql.NullString
		var roomIDs, exitIDs, markers string
		if err := rows.Scan(&g.ID, &entry, &roomIDs, &exitIDs, &markers, &g.FullyMapped, &g.CreatedTurn, &g.CompletedTurn); err != nil {
			return nil, fmt.Errorf("scan maze group: %w", err)
		}
		g.EntryRoomID = entry.String
		if err := json.Unmarshal([]byte(roomIDs), &g.RoomIDs); err != nil {
			return nil, fmt.Errorf("unmarshal room ids: %w", err)
		}
		if err := json.Unmarshal([]byte(exitIDs), &g.ExitRoomIDs); err != nil {
			return nil, fmt.Errorf("unmarshal exit ids: %w", err)
		}
		if err := json.Unmarshal([]byte(markers), &g.Markers); err != nil {
			return nil, fmt.Errorf("unmarshal markers: %w", err)
		}
		out[g.ID] = g
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) SaveMetric(ctx context.Context, gameID int64, m turn.Metric) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO metrics (game_id, turn_number, agent_name, correlation_id, input_tokens, output_tokens, cached_tokens, cost_estimate, latency_ms, succeeded)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, gameID, m.TurnNumber, m.AgentName, m.CorrelationID, m.InputTokens, m.OutputTokens, m.CachedTokens, m.CostEstimate, m.LatencyMS, m.Succeeded)
	if err != nil {
		return fmt.Errorf("save metric: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) GetMetrics(ctx context.Context, gameID int64) ([]turn.Metric, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT metric_id, turn_number, agent_name, correlation_id, input_tokens, output_tokens, cached_tokens, cost_estimate, latency_ms, succeeded
		FROM metrics WHERE game_id = ? ORDER BY metric_id ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("get metrics: %w", err)
	}
	defer rows.Close()

	var out []turn.Metric
	for rows.Next() {
		var m turn.Metric
		if err := rows.Scan(&m.ID, &m.TurnNumber, &m.AgentName, &m.CorrelationID, &m.InputTokens, &m.OutputTokens, &m.CachedTokens, &m.CostEstimate, &m.LatencyMS, &m.Succeeded); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.GameID = gameID
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
