package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mradwan/autofrotz/internal/platform/logger"
)

// Validator checks a decoded structured response for shape errors that a
// schema alone can't express (e.g. an empty change list is fine, but a
// change_type outside the enum is not).
type Validator func(raw json.RawMessage) error

// ExtractJSON drives one of the structured-extraction agents (map parser,
// item parser, puzzle agent) through a validated call, retrying up to 3 times with the
// prior attempt and its error appended as feedback. On exhausting retries it
// gives up and returns a sentinel empty object rather than an error — the
// caller treats an empty object as "no delta", never as a fatal condition.
func ExtractJSON(ctx context.Context, provider Provider, systemPrompt string, req JSONRequest, validate Validator, log *logger.Logger) (json.RawMessage, error) {
	const maxAttempts = 3
	var lastErr error
	messages := append([]Message(nil), req.Messages...)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptReq := req
		attemptReq.Messages = messages

		raw, err := provider.CompleteJSON(ctx, systemPrompt, attemptReq)
		if err != nil {
			lastErr = err
			messages = append(messages, Message{
				Role:    "user",
				Content: fmt.Sprintf("Your previous response failed: %v. Respond again, strictly matching the schema.", err),
			})
			continue
		}

		if validate != nil {
			if verr := validate(raw); verr != nil {
				lastErr = verr
				messages = append(messages, Message{
					Role:    "user",
					Content: fmt.Sprintf("Your previous response was invalid: %v. Respond again, strictly matching the schema.", verr),
				})
				continue
			}
		}

		return raw, nil
	}

	if log != nil {
		log.Warn(fmt.Sprintf("extract: exhausted %d attempts, falling back to empty delta: %v", maxAttempts, lastErr))
	}
	return json.RawMessage(`{}`), nil
}
