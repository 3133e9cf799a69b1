package plan

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/jstevewhite/rsrch/internal/domain"
	"github.com/jstevewhite/rsrch/internal/llm"
)

// validIntents is the closed set spec §4.11 requires the classifier to
// choose from.
var validIntents = map[domain.IntentKind]bool{
	domain.IntentInformational: true,
	domain.IntentNews:          true,
	domain.IntentCode:          true,
	domain.IntentResearch:      true,
	domain.IntentComparative:   true,
	domain.IntentTutorial:      true,
	domain.IntentGeneral:       true,
}

// IntentClassifier is the JSON-mode LLM call of spec §4.11.
type IntentClassifier struct {
	Gateway *llm.Gateway
	Model   string
}

type classifyResponse struct {
	Intent string `json:"intent"`
}

// Classify resolves the query text to one of the seven IntentKind values.
// Any failure — gateway error, malformed JSON, or an intent outside the
// closed set — defaults to IntentGeneral and logs a WARNING rather than
// failing the run (spec §4.11).
func (c *IntentClassifier) Classify(ctx context.Context, queryText string) domain.IntentKind {
	prompt := "Classify the intent of the following research query as exactly one of: " +
		"informational, news, code, research, comparative, tutorial, general.\n" +
		`Respond with only a JSON object: {"intent": "<one of the above>"}` +
		"\n\nQuery: " + queryText

	var resp classifyResponse
	if err := c.Gateway.CompleteJSON(ctx, prompt, c.Model, 0, 64, &resp); err != nil {
		log.Warn().Err(err).Str("stage", "classify").Msg("intent classification failed; defaulting to general")
		return domain.IntentGeneral
	}
	kind := domain.IntentKind(resp.Intent)
	if !validIntents[kind] {
		log.Warn().Str("stage", "classify").Str("intent", resp.Intent).Msg("intent classification returned an unrecognized kind; defaulting to general")
		return domain.IntentGeneral
	}
	return kind
}
