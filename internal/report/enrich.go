package report

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// AppendTableOfContents inserts a Markdown table of contents directly after
// the leading H1 title line once the rendered report carries at least
// minHeadings H2-H4 headings (excluding the title and the Sources/
// Verification/Glossary appendix sections). Idempotent: a document that
// already has one is returned unchanged.
func AppendTableOfContents(markdown string, minHeadings int) string {
	if minHeadings <= 0 {
		minHeadings = 6
	}
	if containsHeadingCaseFold(markdown, "table of contents") {
		return markdown
	}
	lines := strings.Split(markdown, "\n")

	type item struct {
		level int
		text  string
	}
	var items []item
	h1Seen := false
	for _, raw := range lines {
		s := strings.TrimSpace(raw)
		if !strings.HasPrefix(s, "#") {
			continue
		}
		level := countHashPrefix(s)
		if level < 1 || level > 6 {
			continue
		}
		t := strings.TrimSpace(strings.TrimLeft(s, "#"))
		if t == "" {
			continue
		}
		if !h1Seen && level == 1 {
			h1Seen = true
			continue
		}
		if level >= 2 && level <= 4 {
			tl := strings.ToLower(t)
			if tl == "sources" || tl == "glossary" || tl == "research limitations" || strings.HasPrefix(tl, "verification") || strings.HasPrefix(tl, "appendix ") {
				continue
			}
			items = append(items, item{level: level, text: t})
		}
	}
	if len(items) < minHeadings {
		return markdown
	}

	var b strings.Builder
	b.WriteString("## Table of contents\n\n")
	for _, it := range items {
		indent := ""
		if it.level == 3 {
			indent = "  "
		}
		if it.level == 4 {
			indent = "    "
		}
		slug := slugify(it.text)
		if slug == "" {
			continue
		}
		b.WriteString(indent)
		b.WriteString("- [")
		b.WriteString(it.text)
		b.WriteString("](#")
		b.WriteString(slug)
		b.WriteString(")\n")
	}
	b.WriteString("\n")

	insertAt := indexAfterTitle(lines)
	out := make([]string, 0, len(lines)+16)
	out = append(out, lines[:insertAt]...)
	if insertAt > 0 && strings.TrimSpace(lines[insertAt-1]) != "" {
		out = append(out, "")
	}
	out = append(out, b.String())
	if insertAt < len(lines) && strings.TrimSpace(lines[insertAt]) != "" {
		out = append(out, "")
	}
	out = append(out, lines[insertAt:]...)
	return strings.Join(out, "\n")
}

func indexAfterTitle(lines []string) int {
	for i, raw := range lines {
		s := strings.TrimSpace(raw)
		if strings.HasPrefix(s, "# ") {
			return i + 1
		}
		if s != "" {
			break
		}
	}
	return 0
}

func countHashPrefix(s string) int {
	n := 0
	for n < len(s) && s[n] == '#' {
		n++
	}
	return n
}

func containsHeadingCaseFold(markdown, title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	for _, line := range strings.Split(markdown, "\n") {
		s := strings.TrimSpace(line)
		if !strings.HasPrefix(s, "#") {
			continue
		}
		s = strings.TrimSpace(strings.TrimLeft(s, "#"))
		if strings.EqualFold(s, t) {
			return true
		}
	}
	return false
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastHyphen := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
			continue
		}
	}
	return strings.Trim(b.String(), "-")
}

// AppendGlossary scans the rendered report's body (everything before
// "## Sources") for acronym definitions ("Retrieval-Augmented Generation
// (RAG)") and frequently repeated title-cased terms, appending a
// "Glossary" section when it finds any. Returns markdown unchanged when
// a glossary section already exists or nothing was detected.
func AppendGlossary(markdown string) string {
	if containsHeadingCaseFold(markdown, "glossary") {
		return markdown
	}
	body := sliceBeforeHeading(markdown, "sources")
	body = stripCodeFences(body)

	acronyms := extractAcronyms(body)
	terms := extractRepeatedTerms(body, 2)
	if len(acronyms) == 0 && len(terms) == 0 {
		return markdown
	}

	var b strings.Builder
	b.WriteString(markdown)
	b.WriteString("\n\n## Glossary\n\n")

	if len(acronyms) > 0 {
		keys := make([]string, 0, len(acronyms))
		for k := range acronyms {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return strings.ToLower(keys[i]) < strings.ToLower(keys[j]) })
		for _, k := range keys {
			if v := strings.TrimSpace(acronyms[k]); v != "" {
				b.WriteString("- " + k + " — " + v + "\n")
			}
		}
		if len(terms) > 0 {
			b.WriteString("\n")
		}
	}
	if len(terms) > 0 {
		keys := make([]string, 0, len(terms))
		for k := range terms {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return strings.ToLower(keys[i]) < strings.ToLower(keys[j]) })
		for _, k := range keys {
			b.WriteString("- " + k + "\n")
		}
	}
	return b.String()
}

func sliceBeforeHeading(markdown, stopTitle string) string {
	stop := strings.ToLower(strings.TrimSpace(stopTitle))
	lines := strings.Split(markdown, "\n")
	for i, line := range lines {
		s := strings.TrimSpace(line)
		if !strings.HasPrefix(s, "## ") {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(s[3:]), stop) {
			return strings.Join(lines[:i], "\n")
		}
	}
	return markdown
}

func stripCodeFences(markdown string) string {
	lines := strings.Split(markdown, "\n")
	var out []string
	inFence := false
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

var (
	acronymLongFirstRe = regexp.MustCompile(`\b([A-Za-z][A-Za-z0-9&/\-]+(?:\s+[A-Za-z][A-Za-z0-9&/\-]+){0,6})\s*\(([A-Za-z]{2,6})\)`)
	acronymShortFirstRe = regexp.MustCompile(`\b([A-Za-z]{2,6})\s*\(([A-Za-z][A-Za-z0-9&/\-]+(?:\s+[A-Za-z][A-Za-z0-9&/\-]+){0,6})\)`)
)

func extractAcronyms(text string) map[string]string {
	out := map[string]string{}
	normalize := func(s string) string {
		s = strings.Trim(strings.TrimSpace(s), ":;,. ")
		if s == strings.ToUpper(s) {
			return s
		}
		return strings.Join(strings.Fields(s), " ")
	}
	for _, m := range acronymLongFirstRe.FindAllStringSubmatch(text, -1) {
		long := trailingTitleCaseRun(normalize(m[1]))
		if isPlausibleLongForm(long) {
			if _, ok := out[m[2]]; !ok {
				out[m[2]] = long
			}
		}
	}
	for _, m := range acronymShortFirstRe.FindAllStringSubmatch(text, -1) {
		long := normalize(m[2])
		if isPlausibleLongForm(long) {
			if _, ok := out[m[1]]; !ok {
				out[m[1]] = long
			}
		}
	}
	return out
}

func isPlausibleLongForm(s string) bool {
	if s == "" {
		return false
	}
	letters := 0
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			letters++
		}
		if letters >= 2 {
			break
		}
	}
	if letters < 2 {
		return false
	}
	wc := len(strings.Fields(s))
	return wc >= 1 && wc <= 7
}

func trailingTitleCaseRun(s string) string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return s
	}
	end := len(words) - 1
	start := end
	count := 0
	for i := end; i >= 0; i-- {
		if isTitleCasedWord(words[i]) {
			start = i
			count++
			if count >= 4 {
				break
			}
			continue
		}
		if count > 0 {
			break
		}
	}
	if count == 0 {
		return s
	}
	return strings.Join(words[start:end+1], " ")
}

func isTitleCasedWord(w string) bool {
	if len(w) == 0 || w[0] < 'A' || w[0] > 'Z' {
		return false
	}
	for _, r := range w {
		if r >= 'a' && r <= 'z' {
			return true
		}
	}
	return false
}

var repeatedTermRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,3})\b`)

var repeatedTermStop = map[string]struct{}{
	"executive summary": {}, "risks and limitations": {}, "related work": {},
	"future work": {}, "introduction": {}, "conclusion": {},
}

func extractRepeatedTerms(text string, minCount int) map[string]int {
	counts := map[string]int{}
	firstCased := map[string]string{}
	for _, m := range repeatedTermRe.FindAllStringSubmatch(text, -1) {
		phrase := strings.TrimSpace(m[1])
		low := strings.ToLower(phrase)
		if _, stop := repeatedTermStop[low]; stop {
			continue
		}
		words := strings.Fields(phrase)
		if len(words) < 2 || len(words) > 4 {
			continue
		}
		short := false
		for _, w := range words {
			if len(w) <= 2 {
				short = true
				break
			}
		}
		if short {
			continue
		}
		key := strings.ToLower(strings.Join(words, " "))
		counts[key]++
		if _, ok := firstCased[key]; !ok {
			firstCased[key] = strings.Join(words, " ")
		}
	}
	out := map[string]int{}
	for k, c := range counts {
		if c >= minCount {
			out[firstCased[k]] = c
		}
	}
	return out
}

// EnrichSourceURLs rewrites unstable reference URLs in the "## Sources"
// list to canonical forms (arXiv pdf → abs, IETF datatracker → RFC
// Editor) and appends an access-date stamp to web sources that lack one.
func EnrichSourceURLs(markdown string, now func() time.Time) string {
	if now == nil {
		now = time.Now
	}
	lines := strings.Split(markdown, "\n")
	inSources := false
	headingRe := regexp.MustCompile(`^#{1,6}\s+Sources\s*$`)
	numItemRe := regexp.MustCompile(`^(\d+)\.\s+(.+)$`)
	urlRe := regexp.MustCompile(`https?://[^\s)]+`)
	accessedRe := regexp.MustCompile(`(?i)accessed on\s+\d{4}-\d{2}-\d{2}`)

	for i, raw := range lines {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if headingRe.MatchString(s) {
			inSources = true
			continue
		}
		if !inSources {
			continue
		}
		if strings.HasPrefix(s, "#") {
			inSources = false
			continue
		}
		m := numItemRe.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		content := strings.TrimSpace(m[2])
		if loc := urlRe.FindStringIndex(content); loc != nil {
			url := content[loc[0]:loc[1]]
			if stable := stabilizeURL(url); stable != url {
				content = content[:loc[0]] + stable + content[loc[1]:]
			}
		}
		if urlRe.FindStringIndex(content) != nil && !accessedRe.MatchString(content) {
			content = content + " (Accessed on " + now().UTC().Format("2006-01-02") + ")"
		}
		lines[i] = m[1] + ". " + content
	}
	return strings.Join(lines, "\n")
}

// ManageAppendices auto-labels the appendix sections that follow "## Sources"
// (Research Limitations, Verification Report, Glossary) with sequential
// letters (A, B, C, ...) and inserts a cross-reference line linking to them
// from the body. Idempotent: a document whose appendices are already
// labeled is returned unchanged.
func ManageAppendices(markdown string) string {
	lines := strings.Split(markdown, "\n")

	sourcesIdx := -1
	for i, raw := range lines {
		s := strings.TrimSpace(raw)
		if strings.HasPrefix(s, "## ") && strings.EqualFold(strings.TrimSpace(s[3:]), "sources") {
			sourcesIdx = i
			break
		}
	}
	if sourcesIdx == -1 {
		return markdown
	}

	type appx struct {
		line  int
		level int
		title string
	}
	var found []appx
	for i := sourcesIdx + 1; i < len(lines); i++ {
		s := strings.TrimSpace(lines[i])
		level := countHashPrefix(s)
		if level != 1 && level != 2 {
			continue
		}
		title := strings.TrimSpace(strings.TrimLeft(s, "#"))
		low := strings.ToLower(title)
		if strings.HasPrefix(low, "appendix ") {
			return markdown // already labeled
		}
		if low == "research limitations" || low == "verification report" || low == "glossary" {
			found = append(found, appx{line: i, level: level, title: title})
		}
	}
	if len(found) == 0 {
		return markdown
	}

	letters := make([]string, len(found))
	for i, ap := range found {
		letter := string(rune('A' + i))
		full := "Appendix " + letter + ". " + ap.title
		lines[ap.line] = strings.Repeat("#", ap.level) + " " + full
		letters[i] = full
	}

	var ref strings.Builder
	ref.WriteString("See appendices: ")
	for i, full := range letters {
		if i > 0 {
			ref.WriteString("; ")
		}
		ref.WriteString("[")
		ref.WriteString(full)
		ref.WriteString("](#")
		ref.WriteString(slugify(full))
		ref.WriteString(")")
	}

	insertAt := found[0].line
	out := make([]string, 0, len(lines)+2)
	out = append(out, lines[:insertAt]...)
	if insertAt > 0 && strings.TrimSpace(lines[insertAt-1]) != "" {
		out = append(out, "")
	}
	out = append(out, ref.String(), "")
	out = append(out, lines[insertAt:]...)
	return strings.Join(out, "\n")
}

func stabilizeURL(u string) string {
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "https://arxiv.org/pdf/") && strings.HasSuffix(lower, ".pdf") {
		core := strings.TrimSuffix(u[len("https://arxiv.org/pdf/"):], ".pdf")
		return "https://arxiv.org/abs/" + core
	}
	if strings.HasPrefix(lower, "https://datatracker.ietf.org/doc/html/rfc") {
		if idx := strings.LastIndex(lower, "/rfc"); idx >= 0 {
			return "https://www.rfc-editor.org/rfc/" + u[idx+1:]
		}
	}
	return u
}
