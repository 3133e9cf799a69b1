// Package claims implements the Claim Extractor and Verifier of spec
// §4.14: extracting cited claims from a rendered report and verifying each
// one against the scraped body of the source it cites.
package claims

import (
	"context"
	"strings"

	"github.com/jstevewhite/rsrch/internal/domain"
	"github.com/jstevewhite/rsrch/internal/llm"
)

// Extractor is the JSON-mode LLM call that pulls claims out of a rendered
// report. Claims without a citation are discarded (spec §4.14).
type Extractor struct {
	Gateway *llm.Gateway
	Model   string
}

type extractedClaim struct {
	ClaimText    string `json:"claim_text"`
	SourceNumber int    `json:"source_number"`
	ClaimType    string `json:"claim_type"`
	Context      string `json:"context"`
}

type extractResponse struct {
	Claims []extractedClaim `json:"claims"`
}

// Extract returns every cited claim found in reportMarkdown.
func (e *Extractor) Extract(ctx context.Context, reportMarkdown string) ([]domain.Claim, error) {
	prompt := "Extract factual claims from the following research report. For each claim, report the " +
		`"[Source N]" number it cites. Respond with a JSON object: ` +
		`{"claims": [{"claim_text": string, "source_number": int, "claim_type": "factual"|"statistic"|"quote"|"date", "context": string}]}.` +
		"\n\nReport:\n\n" + reportMarkdown

	var resp extractResponse
	if err := e.Gateway.CompleteJSON(ctx, prompt, e.Model, 0, 2048, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Claim, 0, len(resp.Claims))
	for _, c := range resp.Claims {
		if c.SourceNumber <= 0 || strings.TrimSpace(c.ClaimText) == "" {
			continue
		}
		out = append(out, domain.Claim{
			ClaimText:    strings.TrimSpace(c.ClaimText),
			SourceNumber: c.SourceNumber,
			ClaimType:    normalizeClaimType(c.ClaimType),
			Context:      strings.TrimSpace(c.Context),
		})
	}
	return out, nil
}

func normalizeClaimType(s string) domain.ClaimType {
	switch domain.ClaimType(strings.ToLower(strings.TrimSpace(s))) {
	case domain.ClaimStatistic:
		return domain.ClaimStatistic
	case domain.ClaimQuote:
		return domain.ClaimQuote
	case domain.ClaimDate:
		return domain.ClaimDate
	default:
		return domain.ClaimFactual
	}
}
