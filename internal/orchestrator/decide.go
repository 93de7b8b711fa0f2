package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/mradwan/autofrotz/internal/domain/puzzle"
	"github.com/mradwan/autofrotz/internal/llm"
	"github.com/mradwan/autofrotz/internal/platform/logger"
)

const actionMarker = "ACTION:"

// Decision is the result of one call to decide, carrying the reasoning
// prose the agent produced alongside the single command token it chose.
type Decision struct {
	Reasoning string
	Command   string
	Fallback  string // "" when a game-agent response was used directly

	// Usage mirrors the game agent's CompletionResponse when a call actually
	// reached the provider; zero-valued on a suggestion/look fallback that
	// never called out.
	Usage    llm.CompletionResponse
	Succeeded bool
}

// DecisionContext is everything the game agent is shown to choose the next
// command (§4.F step 5's assembled context).
type DecisionContext struct {
	LatestOutput    string
	CurrentRoom     string
	Inventory       []string
	ItemsHere       []string
	MapSummary      MapSummary
	OpenPuzzles     []puzzle.Puzzle
	Suggestions     []puzzle.Suggestion
	RecentOutcomes  []CommandOutcome
}

// MapSummary is the compact map view the decision context carries, never
// the full graph.
type MapSummary struct {
	RoomsVisited    int
	RoomsTotal      int
	UnexploredCount int
	Current         string
}

// CommandOutcome is one of the last 3-5 (command, outcome) pairs shown to
// the game agent for continuity.
type CommandOutcome struct {
	Command string
	Outcome string
}

// decide drives the game-agent call and its retry/fallback chain: on a
// response missing the literal ACTION: marker, retry once with a reminder;
// if that also fails to parse, fall back to the puzzle tracker's top
// suggestion; if there is none, fall back to "look". This chain is owned
// entirely by the orchestrator — it is never delegated to a narrower
// collaborator.
func decide(ctx context.Context, provider llm.Provider, dc DecisionContext, topSuggestion *puzzle.Suggestion, log *logger.Logger) (Decision, error) {
	resp, err := callGameAgent(ctx, provider, dc, false)
	if err == nil {
		if d, ok := parseDecision(resp.Text); ok {
			d.Usage, d.Succeeded = *resp, true
			return d, nil
		}
		log.Warn("game_agent: response missing ACTION: marker, retrying with reminder")
	} else {
		log.Warn(fmt.Sprintf("game_agent: call failed (%v), retrying with reminder", err))
	}

	resp, err = callGameAgent(ctx, provider, dc, true)
	if err == nil {
		if d, ok := parseDecision(resp.Text); ok {
			d.Usage, d.Succeeded = *resp, true
			return d, nil
		}
	}

	if topSuggestion != nil && topSuggestion.ActionText != "" {
		return Decision{
			Reasoning: "decision-parse failure; falling back to the puzzle tracker's top suggestion",
			Command:   topSuggestion.ActionText,
			Fallback:  "puzzle_suggestion",
		}, nil
	}

	return Decision{
		Reasoning: "decision-parse failure with no puzzle suggestion available",
		Command:   "look",
		Fallback:  "look",
	}, nil
}

func callGameAgent(ctx context.Context, provider llm.Provider, dc DecisionContext, reminder bool) (*llm.CompletionResponse, error) {
	content := renderDecisionContext(dc)
	if reminder {
		content += "\n\nYour previous response did not contain the literal marker ACTION: followed by exactly one command. Respond again, ending with ACTION: <command>."
	}
	req := llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: content}},
	}
	return provider.Complete(ctx, gameAgentSystemPrompt, req)
}

func renderDecisionContext(dc DecisionContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current room: %s\n", dc.CurrentRoom)
	fmt.Fprintf(&sb, "Latest output: %s\n", dc.LatestOutput)
	fmt.Fprintf(&sb, "Inventory: %s\n", strings.Join(dc.Inventory, ", "))
	fmt.Fprintf(&sb, "Items here: %s\n", strings.Join(dc.ItemsHere, ", "))
	fmt.Fprintf(&sb, "Map: %d/%d rooms visited, %d unexplored exits, here=%s\n",
		dc.MapSummary.RoomsVisited, dc.MapSummary.RoomsTotal, dc.MapSummary.UnexploredCount, dc.MapSummary.Current)
	if len(dc.OpenPuzzles) > 0 {
		sb.WriteString("Open puzzles:\n")
		for _, p := range dc.OpenPuzzles {
			fmt.Fprintf(&sb, "  - [%d] %s\n", p.ID, p.Description)
		}
	}
	if len(dc.Suggestions) > 0 {
		sb.WriteString("Suggestions:\n")
		for _, s := range dc.Suggestions {
			fmt.Fprintf(&sb, "  - (%s) %s\n", s.Confidence, s.ActionText)
		}
	}
	if len(dc.RecentOutcomes) > 0 {
		sb.WriteString("Recent commands:\n")
		for _, o := range dc.RecentOutcomes {
			fmt.Fprintf(&sb, "  - %s -> %s\n", o.Command, o.Outcome)
		}
	}
	sb.WriteString("\nRespond with your reasoning, then end with ACTION: <single command>.")
	return sb.String()
}

// parseDecision splits a game-agent response on the literal ACTION: marker.
// Anything before it is reasoning; the text immediately after, up to the
// next newline, is the command token.
func parseDecision(text string) (Decision, bool) {
	idx := strings.Index(text, actionMarker)
	if idx < 0 {
		return Decision{}, false
	}
	reasoning := strings.TrimSpace(text[:idx])
	rest := strings.TrimSpace(text[idx+len(actionMarker):])
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	command := strings.TrimSpace(rest)
	if command == "" {
		return Decision{}, false
	}
	return Decision{Reasoning: reasoning, Command: command}, true
}

const gameAgentSystemPrompt = `You are playing a classic text adventure through a Z-machine interpreter. ` +
	`Reason briefly about what to do next, then end your response with the literal marker ACTION: followed ` +
	`by exactly one command to send to the game.`
