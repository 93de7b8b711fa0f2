// Package metrics provides in-process observability for the turn pipeline:
// an atomic counters-and-sums collector with a point-in-time Snapshot. The
// Journal's save_metric rows are built by the orchestrator from each
// game-agent call's usage, not from this collector. No HTTP exposition — a
// web dashboard is an external collaborator, never built out here.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers per-process counters across every turn of a run.
type Collector struct {
	// Turn pipeline
	TurnCount      int64
	TurnLatencySum int64 // nanoseconds
	TurnLatencyMax int64
	LastTurnTime   time.Time

	// Journal writes
	JournalWrites      int64
	JournalWriteLatSum int64
	JournalWriteErrors int64

	// Language-model calls, aggregated across every call the caller records.
	LLMRequests    int64
	LLMTokensUsed  int64
	LLMLatencySum  int64
	LLMFailures    int64
	LLMCostUSD     float64

	StartTime time.Time
	mu        sync.RWMutex
}

// NewCollector constructs a fresh Collector. Callers construct one in
// cmd/ and thread it into the orchestrator by constructor injection,
// same as the Logger and Journal.
func NewCollector() *Collector {
	return &Collector{StartTime: time.Now()}
}

// RecordTurn records one completed turn of the orchestrator's RunTurn.
func (c *Collector) RecordTurn(latency time.Duration) {
	atomic.AddInt64(&c.TurnCount, 1)
	atomic.AddInt64(&c.TurnLatencySum, int64(latency))
	if int64(latency) > atomic.LoadInt64(&c.TurnLatencyMax) {
		atomic.StoreInt64(&c.TurnLatencyMax, int64(latency))
	}
	c.mu.Lock()
	c.LastTurnTime = time.Now()
	c.mu.Unlock()
}

// RecordJournalWrite records one persist() batch, successful or not.
func (c *Collector) RecordJournalWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.JournalWrites, 1)
	atomic.AddInt64(&c.JournalWriteLatSum, int64(latency))
	if err != nil {
		atomic.AddInt64(&c.JournalWriteErrors, 1)
	}
}

// RecordLLMCall records one call to any of the four logical agents.
func (c *Collector) RecordLLMCall(tokens int, cost float64, latency time.Duration, succeeded bool) {
	atomic.AddInt64(&c.LLMRequests, 1)
	atomic.AddInt64(&c.LLMTokensUsed, int64(tokens))
	atomic.AddInt64(&c.LLMLatencySum, int64(latency))
	if !succeeded {
		atomic.AddInt64(&c.LLMFailures, 1)
	}
	c.mu.Lock()
	c.LLMCostUSD += cost
	c.mu.Unlock()
}

// Snapshot summarizes the collector's current state for a log line or a
// test; never serialized to an HTTP response.
type Snapshot struct {
	UptimeSeconds float64

	TurnCount       int64
	TurnAvgLatency  time.Duration
	TurnMaxLatency  time.Duration

	JournalWrites    int64
	JournalAvgLatency time.Duration
	JournalErrors    int64

	LLMRequests   int64
	LLMTokensUsed int64
	LLMCostUSD    float64
	LLMAvgLatency time.Duration
	LLMFailures   int64
}

// Snapshot takes a point-in-time read of every counter.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	turnCount := atomic.LoadInt64(&c.TurnCount)
	journalWrites := atomic.LoadInt64(&c.JournalWrites)
	llmRequests := atomic.LoadInt64(&c.LLMRequests)

	s := Snapshot{
		UptimeSeconds: time.Since(c.StartTime).Seconds(),
		TurnCount:     turnCount,
		TurnMaxLatency: time.Duration(atomic.LoadInt64(&c.TurnLatencyMax)),
		JournalWrites: journalWrites,
		JournalErrors: atomic.LoadInt64(&c.JournalWriteErrors),
		LLMRequests:   llmRequests,
		LLMTokensUsed: atomic.LoadInt64(&c.LLMTokensUsed),
		LLMCostUSD:    c.LLMCostUSD,
		LLMFailures:   atomic.LoadInt64(&c.LLMFailures),
	}
	if turnCount > 0 {
		s.TurnAvgLatency = time.Duration(atomic.LoadInt64(&c.TurnLatencySum) / turnCount)
	}
	if journalWrites > 0 {
		s.JournalAvgLatency = time.Duration(atomic.LoadInt64(&c.JournalWriteLatSum) / journalWrites)
	}
	if llmRequests > 0 {
		s.LLMAvgLatency = time.Duration(atomic.LoadInt64(&c.LLMLatencySum) / llmRequests)
	}
	return s
}
