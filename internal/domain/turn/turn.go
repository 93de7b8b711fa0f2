// Package turn defines the per-turn and per-call records the Journal
// persists as the source of truth for resume. This package is PURE and must
// NOT import any infrastructure packages.
package turn

import "time"

// Record is one committed turn: the command sent to the interpreter, the
// output it returned, and a snapshot of the state that resulted.
type Record struct {
	GameID             int64     `json:"game_id"`
	TurnNumber         int       `json:"turn_number"`
	Timestamp          time.Time `json:"timestamp"`
	CommandSent        string    `json:"command_sent"`
	GameOutput         string    `json:"game_output"`
	CurrentRoom        string    `json:"current_room"`
	InventorySnapshot  []string  `json:"inventory_snapshot"`
	AgentReasoning     string    `json:"agent_reasoning"`
}

// Metric is one recorded language-model call, kept for cost/latency auditing
// via the Journal's save_metric/get_metrics contract.
type Metric struct {
	ID            int64   `json:"metric_id"`
	GameID        int64   `json:"game_id"`
	TurnNumber    int     `json:"turn_number"`
	AgentName     string  `json:"agent_name"`
	CorrelationID string  `json:"correlation_id"`
	InputTokens   int     `json:"input_tokens"`
	OutputTokens  int     `json:"output_tokens"`
	CachedTokens  int     `json:"cached_tokens"`
	CostEstimate  float64 `json:"cost_estimate"`
	LatencyMS     int64   `json:"latency_ms"`
	Succeeded     bool    `json:"succeeded"`
}

// Logical agent names the core consumes, each independently configured.
const (
	AgentGame  = "game_agent"
	AgentPuzzle = "puzzle_agent"
	AgentMap   = "map_parser"
	AgentItem  = "item_parser"
)
