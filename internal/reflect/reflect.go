// Package reflect implements the Reflector (spec §4.10): a JSON-mode LLM
// call that judges whether the summaries gathered so far adequately cover
// the report's planned sections, and if not, proposes up to five follow-up
// search queries.
package reflect

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jstevewhite/rsrch/internal/domain"
	"github.com/jstevewhite/rsrch/internal/llm"
)

// maxAdditionalQueries bounds the follow-up queries the reflector may
// request per iteration (spec §4.10: "1-5 SearchQuery entries").
const maxAdditionalQueries = 5

// Reflector is the JSON-mode LLM call of spec §4.10. It never retries its
// own JSON parsing beyond the Gateway's own retries.
type Reflector struct {
	Gateway *llm.Gateway
	Model   string
}

type reflectResponse struct {
	Complete          bool                 `json:"complete"`
	Gaps              []string             `json:"gaps"`
	AdditionalQueries []domain.SearchQuery `json:"additional_queries"`
	Rationale         string               `json:"rationale"`
}

// Reflect judges coverage of query's planned sections against the
// summaries gathered so far. A gateway or parse failure, or a response
// claiming incompleteness without proposing any follow-up query, is
// treated as complete (logged at WARNING) so the orchestrator does not
// loop forever chasing an empty gap list.
func (r *Reflector) Reflect(ctx context.Context, query domain.Query, sections []string, selected []domain.Summary) domain.ReflectionResult {
	prompt := buildPrompt(query, sections, selected)

	var resp reflectResponse
	if err := r.Gateway.CompleteJSON(ctx, prompt, r.Model, 0.1, 1024, &resp); err != nil {
		log.Warn().Err(err).Str("stage", "reflect").Msg("reflection call failed; treating coverage as complete")
		return domain.ReflectionResult{Complete: true}
	}

	queries := sanitizeQueries(resp.AdditionalQueries)
	if !resp.Complete && len(queries) == 0 {
		log.Warn().Str("stage", "reflect").Msg("reflector reported incomplete coverage but proposed no follow-up queries; treating as complete")
		return domain.ReflectionResult{Complete: true, Gaps: resp.Gaps, Rationale: resp.Rationale}
	}

	return domain.ReflectionResult{
		Complete:          resp.Complete,
		Gaps:              resp.Gaps,
		AdditionalQueries: queries,
		Rationale:         strings.TrimSpace(resp.Rationale),
	}
}

func buildPrompt(query domain.Query, sections []string, selected []domain.Summary) string {
	var b strings.Builder
	b.WriteString("Judge whether the gathered summaries below adequately cover every planned section for this " +
		"research query. Respond with a JSON object: " +
		`{"complete": bool, "gaps": string[], "additional_queries": [{"text","purpose","priority"}] (0-5 entries), "rationale": string}.` +
		"\n\nQuery: " + query.Text + "\n\nPlanned sections:\n")
	for _, s := range sections {
		b.WriteString("- " + s + "\n")
	}
	b.WriteString("\nGathered summaries:\n")
	for _, s := range selected {
		b.WriteString("- [" + s.SourceURL + "] " + s.Text + "\n")
	}
	return b.String()
}

func sanitizeQueries(in []domain.SearchQuery) []domain.SearchQuery {
	out := make([]domain.SearchQuery, 0, len(in))
	for _, q := range in {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			continue
		}
		q.Text = text
		out = append(out, q)
		if len(out) == maxAdditionalQueries {
			break
		}
	}
	return out
}
