// Package llm defines the narrow language-model collaborator interface the
// orchestrator depends on. It carries no concrete provider implementation —
// wiring a real Anthropic/OpenAI/etc. HTTP client is explicitly out of scope
// for this module; callers supply their own Provider.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Message is one turn of a chat-style conversation sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a plain-text completion call.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// CompletionResponse is what any provider returns for a plain-text call.
type CompletionResponse struct {
	Text         string        `json:"text"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	CachedTokens int           `json:"cached_tokens"`
	CostEstimate float64       `json:"cost_estimate"`
	Latency      time.Duration `json:"latency_ms"`
}

// JSONRequest is a structured-extraction call: the response must conform to
// Schema (an arbitrary JSON Schema document).
type JSONRequest struct {
	Messages    []Message      `json:"messages"`
	Schema      map[string]any `json:"schema"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature float64        `json:"temperature"`
}

// UsageStats tracks cumulative spend for a Provider; ResetUsage clears it.
type UsageStats struct {
	TotalRequests   int64
	TotalTokens     int64
	TotalCostUSD    float64
	BudgetRemaining float64
	LastReset       time.Time
}

// Provider is the narrow interface any language-model backend must satisfy.
// The core consumes four logically distinct agents by name (see
// domain/turn's Agent* constants); the orchestrator hands one Provider to
// all of them, each agent distinguished only by its system prompt.
type Provider interface {
	Complete(ctx context.Context, systemPrompt string, req CompletionRequest) (*CompletionResponse, error)
	CompleteJSON(ctx context.Context, systemPrompt string, req JSONRequest) (json.RawMessage, error)
	Name() string
	IsAvailable() bool
	GetUsageStats() UsageStats
	ResetUsage()
}

// BudgetGate enforces daily and monthly spend caps across all Providers
// sharing it, resetting automatically when a new day or month begins.
type BudgetGate struct {
	DailyLimitUSD     float64
	MonthlyLimitUSD   float64
	CurrentDaySpend   float64
	CurrentMonthSpend float64
	LastDayReset      time.Time
	LastMonthReset    time.Time
}

// NewBudgetGate creates a gate with the given caps, reset clocks starting now.
func NewBudgetGate(dailyLimit, monthlyLimit float64) *BudgetGate {
	now := time.Now()
	return &BudgetGate{
		DailyLimitUSD:   dailyLimit,
		MonthlyLimitUSD: monthlyLimit,
		LastDayReset:    now,
		LastMonthReset:  now,
	}
}

// CanSpend reports whether an estimated cost fits within both remaining caps.
func (g *BudgetGate) CanSpend(estimatedCost float64) bool {
	g.maybeReset()
	return g.CurrentDaySpend+estimatedCost <= g.DailyLimitUSD &&
		g.CurrentMonthSpend+estimatedCost <= g.MonthlyLimitUSD
}

// RecordSpend books an actual cost against both running totals.
func (g *BudgetGate) RecordSpend(cost float64) {
	g.maybeReset()
	g.CurrentDaySpend += cost
	g.CurrentMonthSpend += cost
}

// GetStatus renders a short human-readable summary of remaining budget.
func (g *BudgetGate) GetStatus() string {
	return fmt.Sprintf("day $%.2f/$%.2f, month $%.2f/$%.2f",
		g.CurrentDaySpend, g.DailyLimitUSD, g.CurrentMonthSpend, g.MonthlyLimitUSD)
}

func (g *BudgetGate) maybeReset() {
	now := time.Now()
	if now.YearDay() != g.LastDayReset.YearDay() || now.Year() != g.LastDayReset.Year() {
		g.CurrentDaySpend = 0
		g.LastDayReset = now
	}
	if now.Month() != g.LastMonthReset.Month() || now.Year() != g.LastMonthReset.Year() {
		g.CurrentMonthSpend = 0
		g.LastMonthReset = now
	}
}
