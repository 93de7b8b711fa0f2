// Package optimization provides the handful of tunable pool and buffer
// sizes the process actually has: one SQLite connection pool and one
// dashboard broadcast hub.
package optimization

import "runtime"

// Config holds tuned parameters for the journal's DB pool and the
// dashboard hook's channel buffers.
type Config struct {
	DBMaxOpenConns int
	DBMaxIdleConns int

	BroadcastChannelBuffer int // Hub.broadcast
	ClientSendBuffer       int // per dashboard Client.send
	MaxDashboardClients    int
}

// DefaultConfig returns sensible defaults for a single long-running game.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()
	return &Config{
		DBMaxOpenConns: numCPU * 2,
		DBMaxIdleConns: numCPU,

		BroadcastChannelBuffer: 256,
		ClientSendBuffer:       64,
		MaxDashboardClients:    20,
	}
}

// LowResourceConfig returns minimal settings for local development.
func LowResourceConfig() *Config {
	return &Config{
		DBMaxOpenConns: 2,
		DBMaxIdleConns: 1,

		BroadcastChannelBuffer: 16,
		ClientSendBuffer:       8,
		MaxDashboardClients:    5,
	}
}
