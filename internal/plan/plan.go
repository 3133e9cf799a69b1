// Package plan implements the Intent Classifier (spec §4.11) and the
// Planner (spec §4.12): the two JSON-mode LLM calls that turn a raw query
// into a classified domain.Query and, from that, a domain.ResearchPlan.
package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/jstevewhite/rsrch/internal/domain"
	"github.com/jstevewhite/rsrch/internal/llm"
	"github.com/jstevewhite/rsrch/internal/pipelineerr"
)

// Planner is the JSON-mode LLM call of spec §4.12.
type Planner struct {
	Gateway *llm.Gateway
	Model   string
}

type planResponse struct {
	Sections      []string              `json:"sections"`
	SearchQueries []domain.SearchQuery  `json:"search_queries"`
	Rationale     string                `json:"rationale"`
}

// Plan produces a ResearchPlan for query. Required output keys are
// sections (nonempty) and search_queries (nonempty); either empty fails
// with pipelineerr.ErrPlanningFailed and is not retried beyond the
// gateway's own retries (spec §4.12).
func (p *Planner) Plan(ctx context.Context, query domain.Query) (domain.ResearchPlan, error) {
	prompt := fmt.Sprintf(
		"You are planning a research pass for the query below, classified with intent %q.\n"+
			"Produce a JSON object with exactly these keys:\n"+
			`  "sections": a nonempty list of report section titles,`+"\n"+
			`  "search_queries": a nonempty list of {"text", "purpose", "priority"} objects to search for,`+"\n"+
			`  "rationale": a short explanation of the plan.`+"\n\n"+
			"Query: %s",
		query.Intent, query.Text,
	)

	var resp planResponse
	err := p.Gateway.CompleteJSON(ctx, prompt, p.Model, 0.2, 1024, &resp)
	sections := sanitizeSections(resp.Sections)
	queries := sanitizeQueries(resp.SearchQueries)
	if err != nil || len(sections) == 0 || len(queries) == 0 {
		return domain.ResearchPlan{}, fmt.Errorf("%w: %v", pipelineerr.ErrPlanningFailed, err)
	}

	return domain.ResearchPlan{
		Query:         query,
		Sections:      mergeOutline(query.Intent, sections),
		SearchQueries: queries,
		Rationale:     strings.TrimSpace(resp.Rationale),
	}, nil
}

func sanitizeSections(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.Trim(strings.TrimSpace(s), "# ")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sanitizeQueries(in []domain.SearchQuery) []domain.SearchQuery {
	out := make([]domain.SearchQuery, 0, len(in))
	seen := map[string]bool{}
	for _, q := range in {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if seen[key] {
			continue
		}
		seen[key] = true
		q.Text = text
		out = append(out, q)
	}
	return out
}
