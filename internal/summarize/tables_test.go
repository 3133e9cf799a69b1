package summarize

import (
	"fmt"
	"strings"
	"testing"
)

func smallTable() string {
	return "| Name | Score |\n| --- | --- |\n| Alice | 10 |\n| Bob | 20 |\n"
}

func TestPreprocessTables_SmallTableKeptVerbatim(t *testing.T) {
	body := "intro\n\n" + smallTable() + "\nend"
	out, preserved, compacted := PreprocessTables(body, TableConfig{})
	if len(preserved) != 1 {
		t.Fatalf("expected 1 preserved table, got %d", len(preserved))
	}
	if len(compacted) != 0 {
		t.Fatalf("expected 0 compacted tables, got %d", len(compacted))
	}
	if !strings.Contains(out, "Alice") || !strings.Contains(out, "Bob") {
		t.Fatalf("expected verbatim rows present, got %q", out)
	}
}

func largeTable(rows int) string {
	var b strings.Builder
	b.WriteString("| Name | Accuracy |\n| --- | --- |\n")
	for i := 0; i < rows; i++ {
		b.WriteString(fmt.Sprintf("| item%d | %d |\n", i, (i*7)%100))
	}
	return b.String()
}

func TestPreprocessTables_LargeTableCompacted(t *testing.T) {
	body := largeTable(20)
	out, preserved, compacted := PreprocessTables(body, TableConfig{})
	if len(preserved) != 0 {
		t.Fatalf("expected 0 preserved tables, got %d", len(preserved))
	}
	if len(compacted) != 1 {
		t.Fatalf("expected 1 compacted table, got %d", len(compacted))
	}
	ct := compacted[0]
	if len(ct.Rows) != DefaultTopKRows {
		t.Fatalf("expected %d rows, got %d", DefaultTopKRows, len(ct.Rows))
	}
	if !strings.Contains(ct.Note, "10/20 rows shown") {
		t.Fatalf("expected note to report 10/20 rows shown, got %q", ct.Note)
	}
	if !strings.Contains(ct.Note, "selection=max by Accuracy") {
		t.Fatalf("expected note to name the Accuracy column, got %q", ct.Note)
	}
	if !strings.Contains(out, ct.Note) {
		t.Fatalf("expected rewritten body to contain the note")
	}
}

func TestPreprocessTables_Deterministic(t *testing.T) {
	body := largeTable(30)
	out1, _, c1 := PreprocessTables(body, TableConfig{})
	out2, _, c2 := PreprocessTables(body, TableConfig{})
	if out1 != out2 {
		t.Fatalf("expected byte-identical rewrite across runs")
	}
	if c1[0].Note != c2[0].Note {
		t.Fatalf("expected identical aggregate note across runs")
	}
}

func TestPreprocessTables_NoTablesReturnsBodyUnchanged(t *testing.T) {
	body := "just some plain prose with no pipes at all"
	out, preserved, compacted := PreprocessTables(body, TableConfig{})
	if out != body || preserved != nil || compacted != nil {
		t.Fatalf("expected passthrough for table-free body")
	}
}

func TestStrongestNumericColumn_TiesBreakLeftmost(t *testing.T) {
	// Both columns are 100% numeric; the tie must resolve to column 0.
	body := "| A | B |\n| --- | --- |\n| 1 | 9 |\n| 2 | 8 |\n"
	tbl := findTables(body)[0].table
	col := strongestNumericColumn(tbl)
	if col != 0 {
		t.Fatalf("expected leftmost column 0 on density tie, got %d", col)
	}
}

func TestCompactTable_RowTieBreaksByIndexAscending(t *testing.T) {
	// Every row ties at value 5; the first K_topk_rows by index must win.
	var b strings.Builder
	b.WriteString("| Name | Score |\n| --- | --- |\n")
	for i := 0; i < 20; i++ {
		b.WriteString(fmt.Sprintf("| item%d | 5 |\n", i))
	}
	tbl := findTables(b.String())[0].table
	ct := compactTable(tbl, DefaultTopKRows)
	for i, row := range ct.Rows {
		want := fmt.Sprintf("item%d", i)
		if row[0] != want {
			t.Fatalf("row %d = %q, want %q (index-ascending tie-break)", i, row[0], want)
		}
	}
}
