// Package orchestrator implements the pipeline state machine of spec
// §4.13: START → CLASSIFY → PLAN → RESEARCH_LOOP → ASSEMBLE → REPORT →
// VERIFY? → DONE, with the inner SEARCH → URL_RERANK → SCRAPE → SUMMARIZE
// → REFLECT loop iterated up to MaxIterations times.
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jstevewhite/rsrch/internal/assemble"
	"github.com/jstevewhite/rsrch/internal/claims"
	"github.com/jstevewhite/rsrch/internal/domain"
	"github.com/jstevewhite/rsrch/internal/metrics"
	"github.com/jstevewhite/rsrch/internal/pipelineerr"
	"github.com/jstevewhite/rsrch/internal/plan"
	"github.com/jstevewhite/rsrch/internal/reflect"
	"github.com/jstevewhite/rsrch/internal/report"
	"github.com/jstevewhite/rsrch/internal/rerank"
	"github.com/jstevewhite/rsrch/internal/scrape"
	"github.com/jstevewhite/rsrch/internal/search"
	"github.com/jstevewhite/rsrch/internal/summarize"
)

// summaryParallelWarnCeiling is the recommended ceiling from spec §5; the
// orchestrator only warns past it, it never clamps the configured value.
const summaryParallelWarnCeiling = 4

// Orchestrator wires every pipeline stage and drives the state machine of
// spec §4.13. Each collaborator field owns exactly one stage.
type Orchestrator struct {
	Classifier *plan.IntentClassifier
	Planner    *plan.Planner
	Search     search.Provider
	URLReranker rerank.Reranker
	Scraper    *scrape.Scraper
	Summarizer *summarize.Summarizer
	Reflector  *reflect.Reflector
	Assembler  *assemble.Assembler
	Composer   *report.Composer
	Extractor  *claims.Extractor
	Verifier   *claims.Verifier
	Metrics    *metrics.Registry

	ExcludeDomains        []string
	SearchResultsPerQuery int
	TopKURL               float64 // ratio in (0,1], default 0.3 per spec §6
	MaxIterations         int     // default 2, minimum 1
	SearchParallel        int
	ScrapeParallel        int
	SummaryParallel       int
	VerifyClaims          bool

	Now func() time.Time
}

// Result is everything DONE needs to hand to the renderer: the composed
// Report, the final iteration's reflection gaps (for "Research Limitations"),
// and an optional verification summary.
type Result struct {
	Report            domain.Report
	Gaps              []string
	Verification      *domain.VerificationSummary
	SelectedSummaries []domain.Summary
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) maxIterations() int {
	if o.MaxIterations < 1 {
		return 2
	}
	return o.MaxIterations
}

func (o *Orchestrator) topKURL() float64 {
	if o.TopKURL <= 0 {
		return 0.3
	}
	return o.TopKURL
}

// Run drives CLASSIFY through DONE for one query.
func (o *Orchestrator) Run(ctx context.Context, queryText string) (Result, error) {
	if o.SummaryParallel > summaryParallelWarnCeiling {
		log.Warn().Int("summary_parallel", o.SummaryParallel).
			Msg("summary_parallel exceeds the recommended ceiling of 4")
		o.Metrics.Warn("summary_parallel_high")
	}

	intent := o.Classifier.Classify(ctx, queryText)
	query := domain.Query{Text: queryText, Intent: intent}

	researchPlan, err := o.Planner.Plan(ctx, query)
	if err != nil {
		return Result{}, err
	}

	stop := o.Metrics.Timer("research_loop")
	allSummaries, allResults, gaps, err := o.researchLoop(ctx, query, researchPlan)
	stop()
	if err != nil {
		return Result{}, err
	}
	if o.Metrics != nil {
		o.Metrics.SourcesTotal.Set(float64(len(allResults)))
	}

	ctxPkg, err := o.Assembler.Assemble(ctx, query, allSummaries)
	if err != nil {
		return Result{}, fmt.Errorf("assemble: %w", err)
	}

	rep, err := o.Composer.Compose(ctx, researchPlan, ctxPkg, allResults)
	if err != nil {
		return Result{}, err
	}
	o.validateCitations(rep)

	var verification *domain.VerificationSummary
	if o.VerifyClaims && o.Extractor != nil && o.Verifier != nil {
		verification = o.runVerification(ctx, rep)
	}

	return Result{Report: rep, Gaps: gaps, Verification: verification, SelectedSummaries: ctxPkg.SelectedSummaries}, nil
}

// researchLoop runs SEARCH → URL_RERANK → SCRAPE → SUMMARIZE → REFLECT for
// up to o.maxIterations() iterations, per spec §4.13's per-iteration rules.
func (o *Orchestrator) researchLoop(ctx context.Context, query domain.Query, researchPlan domain.ResearchPlan) ([]domain.Summary, []domain.SearchResult, []string, error) {
	var allSummaries []domain.Summary
	var allResults []domain.SearchResult
	var gaps []string

	seen := make(map[string]struct{})
	queries := researchPlan.SearchQueries
	kind := search.KindFor(query.Intent)

	for iter := 1; iter <= o.maxIterations(); iter++ {
		if len(queries) == 0 {
			break
		}
		if o.Metrics != nil {
			o.Metrics.Iterations.Set(float64(iter))
		}

		newResults := o.searchAll(ctx, queries, kind)
		trulyNew := o.dedupeAgainstSeen(newResults, seen)
		allResults = append(allResults, trulyNew...)

		if iter == 1 && len(trulyNew) == 0 && len(allSummaries) == 0 {
			return nil, nil, nil, pipelineerr.ErrNoResults
		}

		urls := o.rerankURLs(ctx, query.Text, trulyNew)
		scraped := o.Scraper.ScrapeMany(ctx, urls, o.scrapeParallel())

		newSummaries := o.summarizeAll(ctx, scraped)
		allSummaries = append(allSummaries, newSummaries...)

		reflection := o.Reflector.Reflect(ctx, query, researchPlan.Sections, allSummaries)
		gaps = reflection.Gaps

		if reflection.Complete || iter == o.maxIterations() {
			break
		}
		queries = reflection.AdditionalQueries
	}

	return allSummaries, allResults, gaps, nil
}

func (o *Orchestrator) scrapeParallel() int {
	if o.ScrapeParallel <= 0 {
		return 5
	}
	return o.ScrapeParallel
}

func (o *Orchestrator) searchAll(ctx context.Context, queries []domain.SearchQuery, kind domain.SearchKind) []domain.SearchResult {
	parallel := o.SearchParallel
	if parallel <= 0 {
		parallel = 1
	}
	n := o.SearchResultsPerQuery
	if n <= 0 {
		n = 10
	}

	groups := make([][]domain.SearchResult, len(queries))
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	for i, q := range queries {
		i, q := i, q
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results, err := o.Search.Search(ctx, q.Text, kind, n)
			if err != nil {
				log.Warn().Err(err).Str("query", q.Text).Msg("search query failed")
				return
			}
			groups[i] = search.FilterAndRank(results, o.ExcludeDomains, o.Search.Name())
		}()
	}
	wg.Wait()

	return search.DedupeByCanonicalURL(groups...)
}

// dedupeAgainstSeen filters results to those whose canonical URL has not
// appeared in a prior iteration, marking each as seen, per spec §4.13's
// "deduplicate by canonical URL across all iterations; keep first-seen
// rank" rule.
func (o *Orchestrator) dedupeAgainstSeen(results []domain.SearchResult, seen map[string]struct{}) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		key := search.CanonicalizeURL(r.URL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// rerankURLs applies URL_RERANK to trulyNew and returns the URLs to scrape:
// the top ceil(top_k_url × n_new), per spec §4.13.
func (o *Orchestrator) rerankURLs(ctx context.Context, queryText string, trulyNew []domain.SearchResult) []string {
	if len(trulyNew) == 0 {
		return nil
	}
	k := int(math.Ceil(o.topKURL() * float64(len(trulyNew))))
	if k < 1 {
		k = 1
	}
	if k > len(trulyNew) {
		k = len(trulyNew)
	}

	reranker := o.URLReranker
	if reranker == nil {
		reranker = rerank.NoOpReranker{}
	}
	items := make([]rerank.Item, len(trulyNew))
	for i, r := range trulyNew {
		items[i] = rerank.Item{ID: r.URL, Text: r.Title + " " + r.Snippet}
	}
	scored, err := reranker.Rerank(ctx, queryText, items, k)
	if err != nil || len(scored) == 0 {
		scored, _ = rerank.NoOpReranker{}.Rerank(ctx, queryText, items, k)
	}
	urls := make([]string, len(scored))
	for i, s := range scored {
		urls[i] = s.Item.ID
	}
	return urls
}

func (o *Orchestrator) summarizeAll(ctx context.Context, scraped map[string]domain.ScrapedContent) []domain.Summary {
	parallel := o.SummaryParallel
	if parallel <= 0 {
		parallel = 1
	}

	var mu sync.Mutex
	var out []domain.Summary
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	for _, sc := range scraped {
		sc := sc
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			summary, ok := o.Summarizer.Summarize(ctx, sc)
			if !ok {
				return
			}
			mu.Lock()
			out = append(out, summary)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

// validateCitations logs a warning for any "[Source N]" marker that does
// not resolve against rep.Sources; the report is still returned (spec
// §4.13: citations are validated, not silently dropped).
func (o *Orchestrator) validateCitations(rep domain.Report) {
	for _, sec := range rep.Sections {
		if invalid := report.ValidateCitations(sec.Body, rep.Sources); len(invalid) > 0 {
			log.Warn().Str("section", sec.Title).Ints("invalid_sources", invalid).
				Msg("report section cites out-of-range source numbers")
		}
	}
}

func (o *Orchestrator) runVerification(ctx context.Context, rep domain.Report) *domain.VerificationSummary {
	var body string
	for _, sec := range rep.Sections {
		body += sec.Body + "\n\n"
	}
	claimList, err := o.Extractor.Extract(ctx, body)
	if err != nil || len(claimList) == 0 {
		return nil
	}
	summary := o.Verifier.Verify(ctx, claimList, rep.Sources)
	return &summary
}
