package scrape

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

const cellMaxChars = 200

// ConvertTables scans raw HTML for <table> elements and appends a
// deterministic Markdown pipe-table rendering of each one after the
// already-extracted plain text body (spec §4.5: "HTML tables are converted
// to pipe tables when preserve_tables=true ... headers then rows; inline
// links preserved; cell text trimmed; content longer than 200 chars is
// truncated with '…'. Nested tables are flattened best-effort.").
func ConvertTables(raw []byte, text string) string {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil || doc == nil {
		return text
	}
	tables := findTables(doc)
	if len(tables) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	for _, t := range tables {
		md := renderTable(t)
		if md == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(md)
	}
	return b.String()
}

func findTables(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node, bool)
	walk = func(cur *html.Node, insideTable bool) {
		isTable := cur.Type == html.ElementNode && strings.EqualFold(cur.Data, "table")
		if isTable && !insideTable {
			out = append(out, cur)
		}
		// Nested tables are flattened best-effort: a table found inside
		// another table is not rendered as its own block, only its text
		// contributes to the enclosing cell via renderCellText's walk.
		nextInside := insideTable || isTable
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c, nextInside)
		}
	}
	walk(n, false)
	return out
}

func renderTable(table *html.Node) string {
	rows := tableRows(table)
	if len(rows) == 0 {
		return ""
	}
	header := rows[0]
	body := rows[1:]
	cols := len(header)
	var b strings.Builder
	writeRow(&b, header, cols)
	b.WriteString("|")
	for i := 0; i < cols; i++ {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range body {
		writeRow(&b, r, cols)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeRow(b *strings.Builder, cells []string, cols int) {
	b.WriteString("|")
	for i := 0; i < cols; i++ {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		fmt.Fprintf(b, " %s |", cell)
	}
	b.WriteString("\n")
}

// tableRows returns each <tr>'s cell text, trimmed and truncated, with
// inline links preserved as Markdown link syntax.
func tableRows(table *html.Node) [][]string {
	var rows [][]string
	var walkRows func(*html.Node)
	walkRows = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "tr") {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type != html.ElementNode {
					continue
				}
				name := strings.ToLower(c.Data)
				if name != "td" && name != "th" {
					continue
				}
				cells = append(cells, renderCellText(c))
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkRows(c)
		}
	}
	walkRows(table)
	return rows
}

func renderCellText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, "a") {
			href := attrVal(cur, "href")
			label := strings.TrimSpace(plainText(cur))
			if href != "" && label != "" {
				fmt.Fprintf(&b, "[%s](%s)", label, href)
				return
			}
		}
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	cell := normalizeCell(b.String())
	return truncateCell(cell)
}

func plainText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.TextNode {
			b.WriteString(cur.Data)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func normalizeCell(s string) string {
	fields := strings.Fields(s)
	s = strings.Join(fields, " ")
	return strings.ReplaceAll(s, "|", "\\|")
}

func truncateCell(s string) string {
	if len(s) <= cellMaxChars {
		return s
	}
	return s[:cellMaxChars] + "…"
}

// countTables reports how many pipe tables appear in the final Markdown
// body (tablesFound) and how many of those are this converter's own output
// (tablesConverted — always equal here, since we only ever emit tables we
// successfully parsed from source HTML).
func countTables(body string) (found, converted int) {
	lines := strings.Split(body, "\n")
	for i := 1; i < len(lines); i++ {
		if isSeparatorRow(lines[i]) && strings.HasPrefix(strings.TrimSpace(lines[i-1]), "|") {
			found++
		}
	}
	return found, found
}

func isSeparatorRow(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "|") {
		return false
	}
	for _, part := range strings.Split(strings.Trim(line, "|"), "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		for _, r := range part {
			if r != '-' && r != ':' && r != ' ' {
				return false
			}
		}
	}
	return true
}
