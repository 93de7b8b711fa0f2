// Package interpreter defines the narrow external-collaborator interface
// the orchestrator uses to talk to the Z-Machine process. The process
// wrapper itself (pyFrotz-equivalent) is out of scope for this module;
// callers supply their own Interpreter.
package interpreter

import (
	"context"
	"regexp"
	"strings"
)

// Outcome is what ClassifyOutput reports about a piece of game prose.
type Outcome string

const (
	OutcomeNormal  Outcome = "normal"
	OutcomeDeath   Outcome = "death"
	OutcomeVictory Outcome = "victory"
)

// Interpreter is the narrow collaborator the orchestrator drives every turn.
type Interpreter interface {
	DoCommand(ctx context.Context, command string) (roomName string, output string, err error)
	Save(ctx context.Context, slot int) error
	Restore(ctx context.Context, slot int) error
}

var deathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\*{3}\s*you have died\s*\*{3}`),
	regexp.MustCompile(`(?i)you have died`),
	regexp.MustCompile(`(?i)\*{3}\s*you are dead\s*\*{3}`),
	regexp.MustCompile(`(?i)you are dead`),
	regexp.MustCompile(`(?i)you have been killed`),
	regexp.MustCompile(`(?i)you are killed`),
	regexp.MustCompile(`(?i)\*{3}\s*you died\s*\*{3}`),
	regexp.MustCompile(`(?i)it appears that last command .* fatal`),
	regexp.MustCompile(`(?i)your adventure is over`),
	regexp.MustCompile(`(?i)you are swallowed`),
	regexp.MustCompile(`(?i)you have perished`),
}

var victoryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\*{3}\s*you have won\s*\*{3}`),
	regexp.MustCompile(`(?i)you have won`),
	regexp.MustCompile(`(?i)congratulations.*won`),
	regexp.MustCompile(`(?i)\*{3}\s*the end\s*\*{3}`),
	regexp.MustCompile(`(?i)you have finished`),
}

// ClassifyOutput checks game prose for death or victory phrasing. It needs
// no process access, so it lives here as a pure helper rather than a method
// requiring a live Interpreter.
func ClassifyOutput(text string) Outcome {
	if text == "" {
		return OutcomeNormal
	}
	for _, p := range deathPatterns {
		if p.MatchString(text) {
			return OutcomeDeath
		}
	}
	for _, p := range victoryPatterns {
		if p.MatchString(text) {
			return OutcomeVictory
		}
	}
	return OutcomeNormal
}

// failureIndicators are substrings whose presence marks a command as having
// failed against the game's parser, used by the orchestrator to label recent
// command outcomes and to feed the stuck detector's repeated-failure check.
var failureIndicators = []string{
	"you can't", "you cannot", "that's not something",
	"i don't understand", "i don't know", "nothing happens",
	"that doesn't work", "you don't see", "there is no",
	"you're not holding", "you can't see", "that's hardly",
	"you don't have", "i beg your pardon",
}

// IsFailureOutput reports whether output reads as a rejected/unparsed
// command, the same fixed phrase list the reference orchestrator checks.
func IsFailureOutput(output string) bool {
	lower := strings.ToLower(output)
	for _, indicator := range failureIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
