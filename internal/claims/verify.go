package claims

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jstevewhite/rsrch/internal/domain"
	"github.com/jstevewhite/rsrch/internal/llm"
	"github.com/jstevewhite/rsrch/internal/scrape"
)

// DefaultThreshold is spec §4.14's default confidence floor below which a
// claim is flagged regardless of verdict.
const DefaultThreshold = 0.7

// Verifier groups claims by the source they cite and issues one LLM call
// per source containing every claim that cites it. Scraper must share its
// ScrapeCache with the run's SCRAPE stage so this never re-fetches a URL
// already in cache (spec §4.14 step 2).
type Verifier struct {
	Gateway   *llm.Gateway
	Model     string
	Scraper   *scrape.Scraper
	Threshold float64
	Now       func() time.Time
}

func (v *Verifier) threshold() float64 {
	if v.Threshold <= 0 {
		return DefaultThreshold
	}
	return v.Threshold
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now().UTC()
}

type claimVerdict struct {
	ClaimText  string  `json:"claim_text"`
	Verdict    string  `json:"verdict"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
	Reasoning  string  `json:"reasoning"`
}

type verifyResponse struct {
	Verdicts []claimVerdict `json:"verdicts"`
}

// Verify groups claims by the source_url resolved from each claim's
// source_number against sources, verifies each group with one LLM call,
// and aggregates the results (spec §4.14).
func (v *Verifier) Verify(ctx context.Context, claimList []domain.Claim, sources []domain.SearchResult) domain.VerificationSummary {
	bySource := groupBySource(claimList, sources)

	var summary domain.VerificationSummary
	for url, grouped := range bySource {
		content, err := v.Scraper.ScrapeURL(ctx, url)
		var results []domain.VerificationResult
		if err != nil || content.Empty() {
			// No usable source body: every claim citing it is unverifiable,
			// recorded as unsupported with zero confidence (and so flagged).
			for _, c := range grouped {
				results = append(results, domain.VerificationResult{
					ClaimText: c.ClaimText,
					SourceURL: url,
					Verdict:   domain.VerdictUnsupported,
					Reasoning: "source content unavailable",
				})
			}
		} else {
			results = v.verifySource(ctx, url, content, grouped)
		}
		for _, r := range results {
			summary.Total++
			switch r.Verdict {
			case domain.VerdictSupported:
				summary.Supported++
			case domain.VerdictPartial:
				summary.Partial++
			case domain.VerdictUnsupported:
				summary.Unsupported++
			case domain.VerdictContradicted:
				summary.Contradicted++
			}
			if r.Confidence < v.threshold() || r.Verdict == domain.VerdictUnsupported || r.Verdict == domain.VerdictContradicted {
				summary.Flagged = append(summary.Flagged, r)
			}
		}
	}
	return summary
}

func (v *Verifier) verifySource(ctx context.Context, url string, content domain.ScrapedContent, claimList []domain.Claim) []domain.VerificationResult {
	prompt := v.buildPrompt(url, content, claimList)
	var resp verifyResponse
	if err := v.Gateway.CompleteJSON(ctx, prompt, v.Model, 0, 2048, &resp); err != nil {
		return nil
	}
	byText := make(map[string]claimVerdict, len(resp.Verdicts))
	for _, vr := range resp.Verdicts {
		byText[strings.TrimSpace(vr.ClaimText)] = vr
	}
	out := make([]domain.VerificationResult, 0, len(claimList))
	for _, c := range claimList {
		vr, ok := byText[c.ClaimText]
		if !ok {
			continue
		}
		out = append(out, domain.VerificationResult{
			ClaimText:  c.ClaimText,
			SourceURL:  url,
			Verdict:    normalizeVerdict(vr.Verdict),
			Confidence: clamp01(vr.Confidence),
			Evidence:   strings.TrimSpace(vr.Evidence),
			Reasoning:  strings.TrimSpace(vr.Reasoning),
		})
	}
	return out
}

func (v *Verifier) buildPrompt(url string, content domain.ScrapedContent, claimList []domain.Claim) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current date (UTC): %s\n", v.now().Format("2006-01-02"))
	fmt.Fprintf(&b, "Source retrieval date (UTC): %s\n", content.RetrievedAt.UTC().Format("2006-01-02"))
	b.WriteString("Verify each claim below using ONLY the source text that follows. Ignore any conflict with your " +
		"prior knowledge: the source is authoritative for facts about events as of its retrieval date. " +
		"Respond with a JSON object: " +
		`{"verdicts": [{"claim_text": string, "verdict": "supported"|"partial"|"unsupported"|"contradicted", ` +
		`"confidence": float in [0,1], "evidence": short quote, "reasoning": string}]}.` + "\n\n")
	fmt.Fprintf(&b, "Source URL: %s\n\n", url)
	b.WriteString("Claims:\n")
	for _, c := range claimList {
		fmt.Fprintf(&b, "- %s\n", c.ClaimText)
	}
	b.WriteString("\nSource text:\n\n")
	b.WriteString(content.MarkdownBody)
	return b.String()
}

// groupBySource resolves each claim's 1-based source_number against
// sources and groups claim texts by the resulting URL. Claims whose
// source_number is out of range are dropped.
func groupBySource(claimList []domain.Claim, sources []domain.SearchResult) map[string][]domain.Claim {
	out := make(map[string][]domain.Claim)
	for _, c := range claimList {
		if c.SourceNumber < 1 || c.SourceNumber > len(sources) {
			continue
		}
		url := sources[c.SourceNumber-1].URL
		out[url] = append(out[url], c)
	}
	return out
}

func normalizeVerdict(s string) domain.VerificationVerdict {
	switch domain.VerificationVerdict(strings.ToLower(strings.TrimSpace(s))) {
	case domain.VerdictSupported, domain.VerdictPartial, domain.VerdictContradicted:
		return domain.VerificationVerdict(strings.ToLower(strings.TrimSpace(s)))
	default:
		return domain.VerdictUnsupported
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
