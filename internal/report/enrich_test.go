package report

import (
	"strings"
	"testing"
	"time"
)

func manySections(n int) string {
	var b strings.Builder
	b.WriteString("# Report\n\nIntent: general  \nGenerated: 2024-01-01T00:00:00Z  \nSources: 0\n\n")
	for i := 0; i < n; i++ {
		b.WriteString("## Section ")
		b.WriteString(strings.Repeat("X", 1))
		b.WriteString("\n\nbody\n\n")
	}
	return b.String()
}

func TestAppendTableOfContents_InsertsWhenEnoughHeadings(t *testing.T) {
	md := manySections(3)
	out := AppendTableOfContents(md, 2)
	if !strings.Contains(out, "## Table of contents") {
		t.Fatalf("expected a table of contents, got:\n%s", out)
	}
}

func TestAppendTableOfContents_SkipsBelowThreshold(t *testing.T) {
	md := manySections(1)
	out := AppendTableOfContents(md, 5)
	if strings.Contains(out, "Table of contents") {
		t.Fatalf("did not expect a table of contents, got:\n%s", out)
	}
}

func TestAppendTableOfContents_Idempotent(t *testing.T) {
	md := manySections(3)
	once := AppendTableOfContents(md, 2)
	twice := AppendTableOfContents(once, 2)
	if once != twice {
		t.Fatalf("expected idempotent output")
	}
}

func TestAppendGlossary_DetectsAcronymDefinitions(t *testing.T) {
	md := "# Report\n\n## Overview\n\nRetrieval-Augmented Generation (RAG) improves grounding.\n\n## Sources\n\n"
	out := AppendGlossary(md)
	if !strings.Contains(out, "## Glossary") || !strings.Contains(out, "RAG") {
		t.Fatalf("expected a glossary entry for RAG, got:\n%s", out)
	}
}

func TestAppendGlossary_NoOpWhenNothingDetected(t *testing.T) {
	md := "# Report\n\n## Overview\n\nplain text with no acronyms.\n\n## Sources\n\n"
	out := AppendGlossary(md)
	if out != md {
		t.Fatalf("expected markdown unchanged, got:\n%s", out)
	}
}

func TestManageAppendices_LabelsAndLinksAppendicesAfterSources(t *testing.T) {
	md := "# Report\n\n## Overview\n\nbody\n\n## Sources\n\n1. [A](https://a.example)\n\n" +
		"## Research Limitations\n\n- gap one\n\n# Verification Report\n\nTotal claims: 1\n\n"
	out := ManageAppendices(md)
	if !strings.Contains(out, "## Appendix A. Research Limitations") {
		t.Fatalf("expected labeled Research Limitations appendix, got:\n%s", out)
	}
	if !strings.Contains(out, "# Appendix B. Verification Report") {
		t.Fatalf("expected labeled Verification Report appendix, got:\n%s", out)
	}
	if !strings.Contains(out, "See appendices:") {
		t.Fatalf("expected a body cross-reference line, got:\n%s", out)
	}
}

func TestManageAppendices_Idempotent(t *testing.T) {
	md := "# Report\n\n## Sources\n\n1. [A](https://a.example)\n\n## Research Limitations\n\n- gap\n\n"
	once := ManageAppendices(md)
	twice := ManageAppendices(once)
	if once != twice {
		t.Fatalf("expected idempotent output")
	}
}

func TestEnrichSourceURLs_StabilizesArxivPDFAndAppendsAccessDate(t *testing.T) {
	md := "## Sources\n\n1. [Paper](https://arxiv.org/pdf/1234.56789.pdf)\n"
	fixedNow := func() time.Time { return time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC) }
	out := EnrichSourceURLs(md, fixedNow)
	if !strings.Contains(out, "https://arxiv.org/abs/1234.56789") {
		t.Fatalf("expected arXiv URL stabilized to abs form, got:\n%s", out)
	}
	if !strings.Contains(out, "(Accessed on 2026-07-31)") {
		t.Fatalf("expected an access date stamp, got:\n%s", out)
	}
}
