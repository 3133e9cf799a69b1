package report

import (
	"fmt"
	"strings"
	"time"

	"context"

	"github.com/jstevewhite/rsrch/internal/domain"
	"github.com/jstevewhite/rsrch/internal/llm"
	"github.com/jstevewhite/rsrch/internal/pipelineerr"
)

// Composer issues the REPORT stage's single LLM call (spec §4.13): given the
// planned sections and the assembled context, it produces Markdown section
// bodies citing sources as "[Source N]", N being the 1-based position of a
// summary within ctxPkg.SelectedSummaries.
type Composer struct {
	Gateway *llm.Gateway
	Model   string
	Now     func() time.Time
}

func (c *Composer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

type composedSection struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type composeResponse struct {
	Sections []composedSection `json:"sections"`
}

// Compose numbers ctxPkg.SelectedSummaries as the citable source list,
// resolves each summary's SourceURL against allSources to build the
// Report's Sources slice in matching order, and requests a body for every
// planned section.
func (c *Composer) Compose(ctx context.Context, plan domain.ResearchPlan, ctxPkg domain.ContextPackage, allSources []domain.SearchResult) (domain.Report, error) {
	byURL := make(map[string]domain.SearchResult, len(allSources))
	for _, s := range allSources {
		byURL[s.URL] = s
	}

	sources := make([]domain.SearchResult, 0, len(ctxPkg.SelectedSummaries))
	for _, sm := range ctxPkg.SelectedSummaries {
		if sr, ok := byURL[sm.SourceURL]; ok {
			sources = append(sources, sr)
		} else {
			sources = append(sources, domain.SearchResult{URL: sm.SourceURL, Title: sm.Title})
		}
	}

	prompt := c.buildPrompt(plan, ctxPkg)
	var resp composeResponse
	if err := c.Gateway.CompleteJSON(ctx, prompt, c.Model, 0.2, 4000, &resp); err != nil {
		return domain.Report{}, fmt.Errorf("%w: %v", pipelineerr.ErrPlanningFailed, err)
	}

	sections := make([]domain.ReportSection, 0, len(resp.Sections))
	for _, s := range resp.Sections {
		title := strings.TrimSpace(s.Title)
		body := strings.TrimSpace(s.Body)
		if title == "" || body == "" {
			continue
		}
		sections = append(sections, domain.ReportSection{Title: title, Body: body})
	}

	return domain.Report{
		Query:       plan.Query,
		Intent:      plan.Query.Intent,
		Sections:    sections,
		Sources:     sources,
		GeneratedAt: c.now(),
	}, nil
}

func (c *Composer) buildPrompt(plan domain.ResearchPlan, ctxPkg domain.ContextPackage) string {
	var b strings.Builder
	b.WriteString("Write the body of each section below using ONLY the numbered sources that follow. Cite every " +
		"factual claim with a bracketed marker like \"[Source 2]\" referencing the source number it came from. " +
		"Never cite a number that is not in the list. Respond with a JSON object: " +
		`{"sections": [{"title": string, "body": markdown string}]}.` + "\n\n")
	fmt.Fprintf(&b, "Query: %s\n\nSections to write, in order:\n", plan.Query.Text)
	for _, s := range plan.Sections {
		b.WriteString("- " + s + "\n")
	}
	b.WriteString("\nNumbered sources:\n")
	for i, sm := range ctxPkg.SelectedSummaries {
		fmt.Fprintf(&b, "[Source %d] %s (%s)\n%s\n\n", i+1, sm.Title, sm.SourceURL, sm.Text)
	}
	return b.String()
}
