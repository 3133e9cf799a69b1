// Package summarize implements the Summarizer (spec §4.8): a map-reduce,
// table-aware pass that turns one ScrapedContent into a Summary, routing
// to a model chosen from the content's classification with a fallback
// chain down to a general-purpose and then a default model.
package summarize

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jstevewhite/rsrch/internal/cache"
	"github.com/jstevewhite/rsrch/internal/classify"
	"github.com/jstevewhite/rsrch/internal/config"
	"github.com/jstevewhite/rsrch/internal/domain"
	"github.com/jstevewhite/rsrch/internal/llm"
)

// Default map-reduce chunking parameters. Measured in runes, not tokens.
const (
	defaultWindowChars  = 12000
	defaultChunkChars   = 6000
	defaultChunkOverlap = 500
)

// ModelRouter resolves the model to use for one piece of content, applying
// the fallback chain content-specific → mrs_general → mrs_default.
type ModelRouter struct {
	ByContentType map[domain.ContentType]string
	General       string
	Default       string
}

// NewModelRouter builds a router from a loaded config.
func NewModelRouter(cfg config.Config) ModelRouter {
	return ModelRouter{
		ByContentType: map[domain.ContentType]string{
			domain.ContentCode:          cfg.MRSCode,
			domain.ContentResearch:      cfg.MRSResearch,
			domain.ContentNews:         cfg.MRSNews,
			domain.ContentDocumentation: cfg.MRSDocumentation,
		},
		General: cfg.MRSGeneral,
		Default: cfg.MRSDefault,
	}
}

// ModelFor returns the model for ct, falling through the chain until it
// finds a non-empty value.
func (r ModelRouter) ModelFor(ct domain.ContentType) string {
	if m := r.ByContentType[ct]; m != "" {
		return m
	}
	if r.General != "" {
		return r.General
	}
	return r.Default
}

// Summarizer turns scraped content into a Summary. Every LLM call is
// routed through Gateway (which owns retry policy) and, when Cache is
// set, deduped by model+prompt digest the way Synthesizer caches report
// generation.
type Summarizer struct {
	Gateway   *llm.Gateway
	Cache     *cache.LLMCache
	Router    ModelRouter
	Classify  func(url string) domain.ContentType
	Tables    TableConfig
	Window    int // prompt-window budget in characters; 0 = defaultWindowChars
	ChunkSize int // 0 = defaultChunkChars
	Overlap   int // 0 = defaultChunkOverlap
	Now       func() time.Time
}

// New builds a Summarizer wired from a loaded config: model routing and
// table-compaction thresholds both come from cfg, matching spec §6's
// defaults unless overridden.
func New(gateway *llm.Gateway, llmCache *cache.LLMCache, cfg config.Config) *Summarizer {
	return &Summarizer{
		Gateway: gateway,
		Cache:   llmCache,
		Router:  NewModelRouter(cfg),
		Tables: TableConfig{
			VerbatimRows: cfg.TableMaxRowsVerbatim,
			VerbatimCols: cfg.TableMaxColsVerbatim,
			TopKRows:     cfg.TableTopKRows,
		},
	}
}

func (s *Summarizer) classify(url string) domain.ContentType {
	if s.Classify != nil {
		return s.Classify(url)
	}
	return classify.Classify(url)
}

func (s *Summarizer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Summarize implements spec §4.8's algorithm for one ScrapedContent. A
// zero-value Summary with false means "skip this content": LLM failures
// here are logged and swallowed so the pipeline keeps going, never
// aborting the run.
func (s *Summarizer) Summarize(ctx context.Context, sc domain.ScrapedContent) (domain.Summary, bool) {
	if sc.Empty() {
		return domain.Summary{}, false
	}
	ct := s.classify(sc.URL)
	model := s.Router.ModelFor(ct)
	if strings.TrimSpace(model) == "" {
		log.Printf("summarize: no model resolved for %s (content_type=%s); skipping", sc.URL, ct)
		return domain.Summary{}, false
	}

	body, preserved, compacted := PreprocessTables(sc.MarkdownBody, s.Tables)

	window := s.Window
	if window <= 0 {
		window = defaultWindowChars
	}

	var text string
	var err error
	if utf8.RuneCountInString(body) <= window {
		text, err = s.directSummarize(ctx, model, sc, body)
	} else {
		text, err = s.mapReduceSummarize(ctx, model, sc, body)
	}
	if err != nil {
		log.Printf("summarize: llm failure for %s: %v; skipping content", sc.URL, err)
		return domain.Summary{}, false
	}

	return domain.Summary{
		SourceURL:       sc.URL,
		Title:           sc.Title,
		Text:            text,
		Citations:       []string{sc.URL},
		ContentType:     ct,
		PreservedTables: preserved,
		CompactedTables: compacted,
	}, true
}

func (s *Summarizer) directSummarize(ctx context.Context, model string, sc domain.ScrapedContent, body string) (string, error) {
	prompt := s.groundedPrompt(fmt.Sprintf(
		"Summarize the following source for a research report. Preserve concrete facts, figures, and table notes verbatim where present.\n\nTitle: %s\nURL: %s\n\n%s",
		sc.Title, sc.URL, body,
	))
	return s.complete(ctx, model, prompt)
}

func (s *Summarizer) mapReduceSummarize(ctx context.Context, model string, sc domain.ScrapedContent, body string) (string, error) {
	chunkSize := s.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkChars
	}
	overlap := s.Overlap
	if overlap <= 0 {
		overlap = defaultChunkOverlap
	}
	chunks := splitWithOverlap(body, chunkSize, overlap)

	partials := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		prompt := s.groundedPrompt(fmt.Sprintf(
			"Summarize part %d of %d of the following source. Preserve concrete facts, figures, and [Source N] markers verbatim.\n\nTitle: %s\nURL: %s\n\n%s",
			i+1, len(chunks), sc.Title, sc.URL, chunk,
		))
		out, err := s.complete(ctx, model, prompt)
		if err != nil {
			return "", fmt.Errorf("map stage %d/%d: %w", i+1, len(chunks), err)
		}
		partials = append(partials, out)
	}

	reducePrompt := s.groundedPrompt(fmt.Sprintf(
		"Combine the following partial summaries of the same source into one coherent summary. "+
			"Preserve every [Source N] marker exactly as written; do not renumber or invent new ones.\n\nTitle: %s\nURL: %s\n\n%s",
		sc.Title, sc.URL, strings.Join(partials, "\n\n---\n\n"),
	))
	return s.complete(ctx, model, reducePrompt)
}

// groundedPrompt prefixes body with the source-grounding block spec §4.8
// requires on every prompt: trust the source over prior knowledge, never
// add temporal qualifiers the source doesn't state, quote when in doubt.
func (s *Summarizer) groundedPrompt(body string) string {
	return fmt.Sprintf(
		"Current date (UTC): %s\n"+
			"Trust the source text over your prior knowledge. Never add temporal qualifiers "+
			"(\"recently\", \"currently\", \"as of today\") that are not present in the source. "+
			"Quote directly when in doubt rather than paraphrasing a claim you are unsure of.\n\n%s",
		s.now().Format("2006-01-02"), body,
	)
}

func (s *Summarizer) complete(ctx context.Context, model, prompt string) (string, error) {
	if s.Cache != nil {
		key := cache.KeyFrom(model, prompt)
		if raw, ok, _ := s.Cache.Get(ctx, key); ok {
			return string(raw), nil
		}
		out, err := s.Gateway.CompleteText(ctx, prompt, model, 0.1, 1024)
		if err != nil {
			return "", err
		}
		_ = s.Cache.Save(ctx, key, []byte(out))
		return out, nil
	}
	return s.Gateway.CompleteText(ctx, prompt, model, 0.1, 1024)
}

// splitWithOverlap divides body into chunks of approximately size runes
// with the given overlap, breaking on the last paragraph boundary in range
// so [Source N] markers stay whole. A stretch with no paragraph break is cut
// at size runes, which can split a marker.
func splitWithOverlap(body string, size, overlap int) []string {
	runes := []rune(body)
	if len(runes) <= size {
		return []string{body}
	}
	if overlap >= size {
		overlap = size / 2
	}
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		} else {
			if nl := lastParagraphBreak(runes, start, end); nl > start {
				end = nl
			}
		}
		chunks = append(chunks, string(runes[start:end]))
		if end >= len(runes) {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}

func lastParagraphBreak(runes []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		if runes[i] == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			return i
		}
	}
	return end
}
