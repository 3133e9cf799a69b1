// Package domain holds the typed artifacts that flow between pipeline
// stages. Every stage receives read-only views of these types and returns
// new ones; only the orchestrator accumulates them.
package domain

import "time"

// IntentKind is the closed set of query intents the classifier can produce.
type IntentKind string

const (
	IntentInformational IntentKind = "informational"
	IntentNews          IntentKind = "news"
	IntentCode          IntentKind = "code"
	IntentResearch      IntentKind = "research"
	IntentComparative   IntentKind = "comparative"
	IntentTutorial       IntentKind = "tutorial"
	IntentGeneral        IntentKind = "general"
)

// Query is immutable once classified.
type Query struct {
	Text   string     `json:"text"`
	Intent IntentKind `json:"intent"`
}

// SearchQuery is one query the planner wants executed, with a priority used
// only for logging/ordering hints; rank comes from the provider, not here.
type SearchQuery struct {
	Text     string `json:"text"`
	Purpose  string `json:"purpose"`
	Priority int    `json:"priority"`
}

// ResearchPlan is the planner's output. Sections and SearchQueries are both
// required to be nonempty; the orchestrator treats either-empty as fatal.
type ResearchPlan struct {
	Query         Query
	Sections      []string
	SearchQueries []SearchQuery
	Rationale     string
}

// SearchKind selects the provider's native endpoint.
type SearchKind string

const (
	SearchWeb      SearchKind = "web"
	SearchNews     SearchKind = "news"
	SearchScholar  SearchKind = "scholar"
)

// SearchResult is a single provider hit. Rank is 1-based and contiguous
// within a single provider response.
type SearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	Rank        int    `json:"rank"`
	ProviderTag string `json:"provider_tag"`
}

// ExtractorTier records which scrape tier ultimately produced the content.
type ExtractorTier string

const (
	TierPrimary   ExtractorTier = "primary"
	TierFallback1 ExtractorTier = "fallback1"
	TierFallback2 ExtractorTier = "fallback2"
)

// ScrapedContent is the scraper's output for one URL. An empty Body is a
// permitted value meaning "unavailable" to every downstream stage.
type ScrapedContent struct {
	URL             string
	Title           string
	MarkdownBody    string
	RetrievedAt     time.Time
	ExtractorTier   ExtractorTier
	TablesFound     int
	TablesConverted int
}

// Empty reports whether the scrape produced no usable body.
func (s ScrapedContent) Empty() bool {
	return s.MarkdownBody == ""
}

// Chunk is a unit of persisted, optionally embedded text. Embedding is nil
// until an embedding call succeeds for it.
type Chunk struct {
	ID        string
	SourceURL string
	Position  int
	Text      string
	Embedding []float32
}

// ContentType drives summarizer model routing and report grouping.
type ContentType string

const (
	ContentResearch      ContentType = "research"
	ContentCode          ContentType = "code"
	ContentNews          ContentType = "news"
	ContentDocumentation ContentType = "documentation"
	ContentGeneral       ContentType = "general"
)

// MarkdownTable is a parsed pipe table: Header plus body Rows, all cells
// already trimmed and length-truncated per the scraper's conversion rules.
type MarkdownTable struct {
	Header []string
	Rows   [][]string
}

// CompactedTable is what a large MarkdownTable becomes after deterministic
// compaction: the header, the selected salient rows, and an aggregate note.
type CompactedTable struct {
	Header []string
	Rows   [][]string
	Note   string
}

// Summary is the summarizer's output for one ScrapedContent.
type Summary struct {
	SourceURL       string
	Title           string
	Text            string
	Citations       []string
	ContentType     ContentType
	PreservedTables []MarkdownTable
	CompactedTables []CompactedTable
}

// ContextPackage is the context assembler's output: a score-ordered subset
// of summaries plus the per-summary cosine score in [0,1].
type ContextPackage struct {
	SelectedSummaries []Summary
	Scores            map[string]float64 // keyed by SourceURL
	ExcludedCount     int
}

// ReflectionResult is the reflector's verdict after one research iteration.
type ReflectionResult struct {
	Complete          bool
	Gaps              []string
	AdditionalQueries []SearchQuery
	Rationale         string
}

// ReportSection is one titled body of the final report.
type ReportSection struct {
	Title string
	Body  string
}

// Report is the orchestrator's terminal artifact, before the file writer
// turns it into Markdown on disk.
type Report struct {
	Query       Query
	Intent      IntentKind
	Sections    []ReportSection
	Sources     []SearchResult
	GeneratedAt time.Time
	Metadata    map[string]any
}

// VerificationVerdict is the closed set of per-claim verdicts.
type VerificationVerdict string

const (
	VerdictSupported   VerificationVerdict = "supported"
	VerdictPartial     VerificationVerdict = "partial"
	VerdictUnsupported VerificationVerdict = "unsupported"
	VerdictContradicted VerificationVerdict = "contradicted"
)

// VerificationResult is one claim's verification outcome.
type VerificationResult struct {
	ClaimText string
	SourceURL string
	Verdict   VerificationVerdict
	Confidence float64
	Evidence   string
	Reasoning  string
}

// VerificationSummary aggregates a verification pass across a report.
type VerificationSummary struct {
	Total    int
	Supported int
	Partial   int
	Unsupported int
	Contradicted int
	Flagged  []VerificationResult
}

// Claim is the extractor's raw output before grouping by source.
type ClaimType string

const (
	ClaimFactual   ClaimType = "factual"
	ClaimStatistic ClaimType = "statistic"
	ClaimQuote     ClaimType = "quote"
	ClaimDate      ClaimType = "date"
)

type Claim struct {
	ClaimText    string
	SourceNumber int
	ClaimType    ClaimType
	Context      string
}
