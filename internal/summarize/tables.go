package summarize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jstevewhite/rsrch/internal/domain"
)

// Default table-compaction thresholds (spec §4.8), used when a TableConfig
// field is left at zero.
const (
	DefaultVerbatimRows = 15
	DefaultVerbatimCols = 8
	DefaultTopKRows     = 10
)

// TableConfig carries the config-loaded thresholds (config.Config's
// TableMaxRowsVerbatim/TableMaxColsVerbatim/TableTopKRows) down into the
// pure table functions below.
type TableConfig struct {
	VerbatimRows int
	VerbatimCols int
	TopKRows     int
}

func (c TableConfig) withDefaults() TableConfig {
	if c.VerbatimRows <= 0 {
		c.VerbatimRows = DefaultVerbatimRows
	}
	if c.VerbatimCols <= 0 {
		c.VerbatimCols = DefaultVerbatimCols
	}
	if c.TopKRows <= 0 {
		c.TopKRows = DefaultTopKRows
	}
	return c
}

// parsedTable is a Markdown pipe table located within a larger body, with
// its span recorded so the caller can splice a replacement back in.
type parsedTable struct {
	start, end int // byte offsets of the table block within the body
	table      domain.MarkdownTable
}

// findTables scans body for Markdown pipe tables (a header row followed
// immediately by a "---"-style separator row, per the scraper's own
// output convention).
func findTables(body string) []parsedTable {
	lines := strings.Split(body, "\n")
	var out []parsedTable
	offsets := make([]int, len(lines)+1)
	pos := 0
	for i, l := range lines {
		offsets[i] = pos
		pos += len(l) + 1
	}
	offsets[len(lines)] = pos

	i := 0
	for i < len(lines) {
		if !isRow(lines[i]) || i+1 >= len(lines) || !isSeparator(lines[i+1]) {
			i++
			continue
		}
		header := splitRow(lines[i])
		j := i + 2
		var rows [][]string
		for j < len(lines) && isRow(lines[j]) {
			rows = append(rows, splitRow(lines[j]))
			j++
		}
		out = append(out, parsedTable{
			start: offsets[i],
			end:   offsets[j],
			table: domain.MarkdownTable{Header: header, Rows: rows},
		})
		i = j
	}
	return out
}

func isRow(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "|")
}

func isSeparator(line string) bool {
	line = strings.Trim(strings.TrimSpace(line), "|")
	if line == "" {
		return false
	}
	for _, part := range strings.Split(line, "|") {
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

func splitRow(line string) []string {
	trimmed := strings.Trim(strings.TrimSpace(line), "|")
	parts := strings.Split(trimmed, "|")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// PreprocessTables replaces every large table in body with its
// deterministic compaction, keeping small tables verbatim. It returns the
// rewritten body plus the preserved and compacted table records for the
// resulting Summary.
func PreprocessTables(body string, cfg TableConfig) (rewritten string, preserved []domain.MarkdownTable, compacted []domain.CompactedTable) {
	cfg = cfg.withDefaults()
	tables := findTables(body)
	if len(tables) == 0 {
		return body, nil, nil
	}
	var b strings.Builder
	cursor := 0
	for _, pt := range tables {
		b.WriteString(body[cursor:pt.start])
		if len(pt.table.Rows) <= cfg.VerbatimRows && len(pt.table.Header) <= cfg.VerbatimCols {
			preserved = append(preserved, pt.table)
			b.WriteString(renderMarkdownTable(pt.table.Header, pt.table.Rows))
		} else {
			ct := compactTable(pt.table, cfg.TopKRows)
			compacted = append(compacted, ct)
			b.WriteString(renderMarkdownTable(ct.Header, ct.Rows))
			b.WriteString("\n")
			b.WriteString(ct.Note)
		}
		cursor = pt.end
	}
	b.WriteString(body[cursor:])
	return b.String(), preserved, compacted
}

// scoredRow pairs a row with its value in the chosen column, for sorting.
type scoredRow struct {
	idx int
	val float64
	ok  bool
	row []string
}

// compactTable implements spec §4.8's deterministic large-table compaction:
// pick the numerically densest column (ties broken leftmost, per the
// open-question decision recorded in DESIGN.md), keep the top K_topk_rows
// rows ranked by that column's value (ties broken by ascending row index),
// and append an aggregate note.
func compactTable(t domain.MarkdownTable, topKRows int) domain.CompactedTable {
	col := strongestNumericColumn(t)
	scored := make([]scoredRow, len(t.Rows))
	var sum, max float64
	first := true
	for i, row := range t.Rows {
		v, ok := numericAt(row, col)
		scored[i] = scoredRow{idx: i, val: v, ok: ok, row: row}
		if ok {
			sum += v
			if first || v > max {
				max = v
			}
			first = false
		}
	}
	sortByValueDescThenIndexAsc(scored)
	k := topKRows
	if k > len(scored) {
		k = len(scored)
	}
	rows := make([][]string, 0, k)
	for _, sr := range scored[:k] {
		rows = append(rows, sr.row)
	}

	colName := ""
	if col >= 0 && col < len(t.Header) {
		colName = t.Header[col]
	}
	mean := 0.0
	if len(t.Rows) > 0 {
		mean = sum / float64(len(t.Rows))
	}
	note := fmt.Sprintf("%d/%d rows shown; selection=max by %s; %s: mean=%.2f, max=%.2f",
		k, len(t.Rows), colName, colName, mean, max)
	return domain.CompactedTable{Header: t.Header, Rows: rows, Note: note}
}

func sortByValueDescThenIndexAsc(rows []scoredRow) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0; j-- {
			if less(rows[j], rows[j-1]) {
				rows[j], rows[j-1] = rows[j-1], rows[j]
			} else {
				break
			}
		}
	}
}

func less(a, b scoredRow) bool {
	if a.val != b.val {
		return a.val > b.val
	}
	return a.idx < b.idx
}

// strongestNumericColumn returns the index of the column with the highest
// fraction of numerically-parseable cells; ties go to the leftmost column.
func strongestNumericColumn(t domain.MarkdownTable) int {
	if len(t.Header) == 0 {
		return -1
	}
	best := 0
	bestDensity := -1.0
	for col := range t.Header {
		n := 0
		for _, row := range t.Rows {
			if _, ok := numericAt(row, col); ok {
				n++
			}
		}
		density := 0.0
		if len(t.Rows) > 0 {
			density = float64(n) / float64(len(t.Rows))
		}
		if density > bestDensity {
			bestDensity = density
			best = col
		}
	}
	return best
}

func numericAt(row []string, col int) (float64, bool) {
	if col < 0 || col >= len(row) {
		return 0, false
	}
	s := strings.TrimSpace(strings.ReplaceAll(row[col], ",", ""))
	s = strings.TrimSuffix(s, "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func renderMarkdownTable(header []string, rows [][]string) string {
	var b strings.Builder
	writeTableRow(&b, header)
	b.WriteString("|")
	for range header {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, r := range rows {
		writeTableRow(&b, r)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeTableRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(c)
		b.WriteString(" |")
	}
	b.WriteString("\n")
}
