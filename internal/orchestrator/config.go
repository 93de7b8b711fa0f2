package orchestrator

import "time"

// Config bundles the turn state machine's tunables, mirroring the defaults
// named throughout the reference orchestrator's detail floor.
// MinMazeMarkers and PuzzleThrottle are carried for reference only: the
// engine applies its own fixed values (8 markers, every 3 turns) and does
// not read these two fields.
type Config struct {
	AutosaveEvery      int           // turns between periodic saves (default 25)
	SaveSlots          int           // rotating save-slot count (default 3)
	SaveOnDeath        bool          // restore latest save on death rather than ending the game
	MinMazeMarkers     int           // distinct portable items required before maze DFS starts (default 8)
	PuzzleThrottle     int           // turns between full cross-reference puzzle passes (default 3)
	TurnLimit          int           // 0 disables the turn-limit terminal check
	InterpreterTimeout time.Duration // fatal on expiry
	ParserTimeout      time.Duration // non-fatal on expiry; empty delta + warning
	DecisionTimeout    time.Duration // same fallback chain as an unparseable decision
}

// DefaultConfig matches every default named in the reference spec's detail
// floor: autosave every 25 turns across 3 rotating slots, restore on death,
// 8 markers before a maze DFS run, puzzle cross-reference every 3 turns.
func DefaultConfig() Config {
	return Config{
		AutosaveEvery:      25,
		SaveSlots:          3,
		SaveOnDeath:        true,
		MinMazeMarkers:     8,
		PuzzleThrottle:     3,
		TurnLimit:          0,
		InterpreterTimeout: 30 * time.Second,
		ParserTimeout:      20 * time.Second,
		DecisionTimeout:    20 * time.Second,
	}
}

// ConservativeConfig saves more often and caps the run length, trading
// language-model spend for a tighter blast radius on a misbehaving game.
func ConservativeConfig() Config {
	c := DefaultConfig()
	c.AutosaveEvery = 10
	c.TurnLimit = 2000
	return c
}

// AggressiveConfig saves rarely and never restores on death, for unattended
// exploratory runs where losing a playthrough outright is acceptable.
func AggressiveConfig() Config {
	c := DefaultConfig()
	c.AutosaveEvery = 50
	c.SaveOnDeath = false
	return c
}
