package notes

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
)

func TestWriteCSV_SortedRows(t *testing.T) {
	t.Parallel()

	n := Notes{
		"Bob":   ActionsEntry("helped her", "carried the basket"),
		"Alice": SummaryEntry("went to the market, bought apples"),
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, n); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows)=%d, want 3", len(rows))
	}
	if rows[0][0] != "Character" || rows[0][1] != "Summary" {
		t.Fatalf("header=%v", rows[0])
	}
	if rows[1][0] != "Alice" || rows[1][1] != "went to the market, bought apples" {
		t.Fatalf("row1=%v", rows[1])
	}
	if rows[2][0] != "Bob" || rows[2][1] != "helped her\ncarried the basket" {
		t.Fatalf("row2=%v", rows[2])
	}
}

func TestWriteJSON_Items(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteJSON(&buf, Notes{"Alice": SummaryEntry("s"), "Bob": ActionsEntry("a", "b")}, false); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var got map[string][]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got["Alice"]) != 1 || got["Alice"][0] != "s" || len(got["Bob"]) != 2 {
		t.Fatalf("got=%v", got)
	}
}

func TestSplitParagraphs(t *testing.T) {
	t.Parallel()

	text := "Alice went to the market.\r\nBob helped her.\n\n\n  Charlie came over.  \n\n"
	got := SplitParagraphs(text)
	if len(got) != 2 {
		t.Fatalf("len=%d, want 2: %q", len(got), got)
	}
	if got[0] != "Alice went to the market. Bob helped her." {
		t.Fatalf("got[0]=%q", got[0])
	}
	if got[1] != "Charlie came over." {
		t.Fatalf("got[1]=%q", got[1])
	}
	if SplitParagraphs("  \n\n ") != nil {
		t.Fatalf("expected nil for blank text")
	}
}
