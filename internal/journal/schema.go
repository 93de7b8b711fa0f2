package journal

// schemaStatements creates every table and index the Journal needs. Column
// shapes follow the reference database layer closely, adapted to the Go
// upsert idiom (INSERT ... ON CONFLICT ... DO UPDATE) the sqlite journal
// uses for every save_* operation except save_metric, a plain INSERT.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS games (
		game_id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_file TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT,
		status TEXT NOT NULL DEFAULT 'playing',
		total_turns INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS turns (
		turn_id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_id INTEGER NOT NULL,
		turn_number INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		command_sent TEXT NOT NULL,
		game_output TEXT NOT NULL,
		room_id TEXT NOT NULL,
		inventory_snapshot TEXT NOT NULL,
		agent_reasoning TEXT,
		FOREIGN KEY (game_id) REFERENCES games(game_id),
		UNIQUE(game_id, turn_number)
	);`,
	`CREATE TABLE IF NOT EXISTS rooms (
		room_id TEXT NOT NULL,
		game_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		visited INTEGER NOT NULL DEFAULT 0,
		visit_count INTEGER NOT NULL DEFAULT 0,
		maze_group TEXT,
		maze_marker_item TEXT,
		is_dark INTEGER NOT NULL DEFAULT 0,
		pending_exits TEXT NOT NULL DEFAULT '{}',
		first_visited_turn INTEGER,
		last_visited_turn INTEGER,
		PRIMARY KEY (game_id, room_id),
		FOREIGN KEY (game_id) REFERENCES games(game_id)
	);`,
	`CREATE TABLE IF NOT EXISTS connections (
		connection_id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_id INTEGER NOT NULL,
		from_room_id TEXT NOT NULL,
		to_room_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		bidirectional INTEGER NOT NULL DEFAULT 1,
		blocked INTEGER NOT NULL DEFAULT 0,
		block_reason TEXT,
		teleport INTEGER NOT NULL DEFAULT 0,
		random INTEGER NOT NULL DEFAULT 0,
		observed_destinations TEXT NOT NULL DEFAULT '[]',
		FOREIGN KEY (game_id) REFERENCES games(game_id),
		UNIQUE(game_id, from_room_id, direction)
	);`,
	`CREATE TABLE IF NOT EXISTS items (
		item_id TEXT NOT NULL,
		game_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		location TEXT NOT NULL DEFAULT 'unknown',
		portable TEXT NOT NULL DEFAULT 'unknown',
		properties TEXT NOT NULL DEFAULT '{}',
		first_seen_turn INTEGER,
		last_seen_turn INTEGER,
		PRIMARY KEY (game_id, item_id),
		FOREIGN KEY (game_id) REFERENCES games(game_id)
	);`,
	`CREATE TABLE IF NOT EXISTS puzzles (
		puzzle_id INTEGER NOT NULL,
		game_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open',
		location TEXT,
		related_items TEXT NOT NULL DEFAULT '[]',
		attempts TEXT NOT NULL DEFAULT '[]',
		created_turn INTEGER,
		solved_turn INTEGER,
		PRIMARY KEY (game_id, puzzle_id),
		FOREIGN KEY (game_id) REFERENCES games(game_id)
	);`,
	`CREATE TABLE IF NOT EXISTS maze_groups (
		group_id TEXT NOT NULL,
		game_id INTEGER NOT NULL,
		entry_room_id TEXT,
		room_ids TEXT NOT NULL DEFAULT '[]',
		exit_room_ids TEXT NOT NULL DEFAULT '[]',
		markers TEXT NOT NULL DEFAULT '{}',
		fully_mapped INTEGER NOT NULL DEFAULT 0,
		created_turn INTEGER,
		completed_turn INTEGER,
		PRIMARY KEY (game_id, group_id),
		FOREIGN KEY (game_id) REFERENCES games(game_id)
	);`,
	`CREATE TABLE IF NOT EXISTS metrics (
		metric_id INTEGER PRIMARY KEY AUTOINCREMENT,
		game_id INTEGER NOT NULL,
		turn_number INTEGER NOT NULL,
		agent_name TEXT NOT NULL,
		correlation_id TEXT NOT NULL,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cached_tokens INTEGER NOT NULL DEFAULT 0,
		cost_estimate REAL NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (game_id) REFERENCES games(game_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_turns_game_id ON turns(game_id);`,
	`CREATE INDEX IF NOT EXISTS idx_connections_game_from ON connections(game_id, from_room_id);`,
	`CREATE INDEX IF NOT EXISTS idx_puzzles_game_status ON puzzles(game_id, status);`,
	`CREATE INDEX IF NOT EXISTS idx_metrics_game_id ON metrics(game_id);`,
}
