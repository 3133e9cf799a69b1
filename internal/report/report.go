// Package report renders the orchestrator's terminal domain.Report into the
// Markdown file spec §6 describes: H1 title, metadata block, section
// bodies, a numbered Sources list, optional Research Limitations, and an
// optional Verification Report appendix — plus a reproducibility footer and
// a machine-readable manifest sidecar.
package report

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/jstevewhite/rsrch/internal/domain"
)

// sourceMarkerRe matches the "[Source N]" citation markers the REPORT stage
// embeds in section bodies.
var sourceMarkerRe = regexp.MustCompile(`\[Source (\d+)\]`)

// Meta captures the run details the reproducibility footer and manifest
// sidecar record.
type Meta struct {
	Model       string
	LLMEndpoint string
	GeneratedAt time.Time
	HTTPCache   bool
	LLMCache    bool
}

// Render turns report into full Markdown, in source order: title, metadata,
// sections, sources, optional limitations, optional verification appendix.
func Render(rep domain.Report, gaps []string, verification *domain.VerificationSummary) string {
	var b strings.Builder

	title := rep.Query.Text
	if title == "" {
		title = "Research Report"
	}
	b.WriteString("# ")
	b.WriteString(title)
	b.WriteString("\n\n")

	b.WriteString("Intent: ")
	b.WriteString(string(rep.Intent))
	b.WriteString("  \n")
	b.WriteString("Generated: ")
	b.WriteString(rep.GeneratedAt.UTC().Format(time.RFC3339))
	b.WriteString("  \n")
	b.WriteString("Sources: ")
	b.WriteString(strconv.Itoa(len(rep.Sources)))
	b.WriteString("\n\n")

	for _, sec := range rep.Sections {
		if sec.Title != "" {
			b.WriteString("## ")
			b.WriteString(sec.Title)
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(sec.Body))
		b.WriteString("\n\n")
	}

	b.WriteString("## Sources\n\n")
	for i, s := range rep.Sources {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". [")
		title := s.Title
		if title == "" {
			title = s.URL
		}
		b.WriteString(title)
		b.WriteString("](")
		b.WriteString(s.URL)
		b.WriteString(")\n")
	}
	b.WriteString("\n")

	if len(gaps) > 0 {
		b.WriteString("## Research Limitations\n\n")
		for _, g := range gaps {
			b.WriteString("- ")
			b.WriteString(g)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if verification != nil {
		b.WriteString(renderVerificationAppendix(*verification))
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func renderVerificationAppendix(v domain.VerificationSummary) string {
	var b strings.Builder
	b.WriteString("# Verification Report\n\n")
	b.WriteString(fmt.Sprintf("Total claims: %d; supported=%d, partial=%d, unsupported=%d, contradicted=%d\n\n",
		v.Total, v.Supported, v.Partial, v.Unsupported, v.Contradicted))
	if len(v.Flagged) == 0 {
		b.WriteString("No claims were flagged.\n\n")
		return b.String()
	}
	b.WriteString("## Flagged claims\n\n")
	for _, f := range v.Flagged {
		b.WriteString("- \"")
		b.WriteString(f.ClaimText)
		b.WriteString(fmt.Sprintf("\" — verdict=%s, confidence=%.2f, source=%s\n", f.Verdict, f.Confidence, f.SourceURL))
		if f.Evidence != "" {
			b.WriteString("  evidence: ")
			b.WriteString(f.Evidence)
			b.WriteString("\n")
		}
		if f.Reasoning != "" {
			b.WriteString("  reasoning: ")
			b.WriteString(f.Reasoning)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

// ValidateCitations implements testable property 1: every "[Source N]"
// appearing in markdown must resolve to an entry in sources (1-based).
func ValidateCitations(markdown string, sources []domain.SearchResult) []int {
	var invalid []int
	seen := map[int]bool{}
	for _, m := range sourceMarkerRe.FindAllStringSubmatch(markdown, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		if n < 1 || n > len(sources) {
			invalid = append(invalid, n)
		}
	}
	return invalid
}

// AppendFooter appends the deterministic reproducibility footer spec §9
// requires: model, endpoint, source count, and cache activity.
func AppendFooter(markdown string, meta Meta, numSources int) string {
	var b strings.Builder
	b.WriteString(markdown)
	b.WriteString("\n---\n")
	b.WriteString("Reproducibility: model=")
	b.WriteString(strings.TrimSpace(meta.Model))
	b.WriteString("; llm_endpoint=")
	b.WriteString(strings.TrimSpace(meta.LLMEndpoint))
	b.WriteString("; sources_used=")
	b.WriteString(strconv.Itoa(numSources))
	b.WriteString("; http_cache=")
	b.WriteString(strconv.FormatBool(meta.HTTPCache))
	b.WriteString("; llm_cache=")
	b.WriteString(strconv.FormatBool(meta.LLMCache))
	b.WriteString("\n")
	return b.String()
}

// ManifestEntry is one source's record in the machine-readable sidecar.
type ManifestEntry struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	SHA256 string `json:"sha256"`
	Chars  int    `json:"chars"`
}

// BuildManifest hashes each selected summary's text for reproducibility and
// returns the indented JSON sidecar payload.
func BuildManifest(meta Meta, summaries []domain.Summary) ([]byte, error) {
	entries := make([]ManifestEntry, len(summaries))
	for i, s := range summaries {
		entries[i] = ManifestEntry{
			Index:  i + 1,
			URL:    s.SourceURL,
			Title:  s.Title,
			SHA256: sha256Hex(s.Text),
			Chars:  len(s.Text),
		}
	}
	payload := struct {
		Meta    Meta            `json:"meta"`
		Sources []ManifestEntry `json:"sources"`
	}{Meta: meta, Sources: entries}
	return json.MarshalIndent(payload, "", "  ")
}

func sha256Hex(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// SidecarPath returns the manifest JSON path next to the rendered Markdown.
func SidecarPath(outputPath string) string {
	return outputPath + ".manifest.json"
}

// linkRe matches Markdown links for the simple PDF renderer below.
var linkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// WritePDF renders a minimal PDF rendition of markdown: headings get larger
// bold text, paragraphs wrap, and Markdown links become clickable PDF
// links. It does not attempt full Markdown layout.
func WritePDF(markdown, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()

	scanner := bufio.NewScanner(strings.NewReader(markdown))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			pdf.Ln(5)
			continue
		}
		if strings.HasPrefix(line, "#") {
			i := 0
			for i < len(line) && line[i] == '#' {
				i++
			}
			text := strings.TrimSpace(line[i:])
			if text == "" {
				continue
			}
			size := 14.0
			if i >= 2 {
				size = 12.0
			}
			pdf.SetFont("Helvetica", "B", size)
			pdf.CellFormat(0, 8, text, "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 11)
			continue
		}
		writePDFLine(pdf, line)
		pdf.Ln(6)
	}
	return pdf.OutputFileAndClose(outPath)
}

func writePDFLine(pdf *gofpdf.Fpdf, line string) {
	matches := linkRe.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		pdf.MultiCell(0, 5, line, "", "L", false)
		return
	}
	pos := 0
	for _, m := range matches {
		if m[0] > pos {
			pdf.Write(5, line[pos:m[0]])
		}
		text := line[m[2]:m[3]]
		url := line[m[4]:m[5]]
		if strings.HasPrefix(url, "#") {
			pdf.Write(5, text)
		} else {
			pdf.WriteLinkString(5, text, url)
		}
		pos = m[1]
	}
	if pos < len(line) {
		pdf.Write(5, line[pos:])
	}
}
