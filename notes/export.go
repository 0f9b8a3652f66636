package notes

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// WriteCSV writes one "Character,Summary" row per character, sorted by name. Multiple actions are
// joined with newlines inside the cell.
func WriteCSV(w io.Writer, n Notes) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Character", "Summary"}); err != nil {
		return fmt.Errorf("WriteCSV: header: %w", err)
	}
	for _, name := range n.Names() {
		if err := cw.Write([]string{name, strings.Join(n[name].Items(), "\n")}); err != nil {
			return fmt.Errorf("WriteCSV: row %s: %w", name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: flush: %w", err)
	}
	return nil
}

// WriteJSON writes the ledger as a name -> items object.
func WriteJSON(w io.Writer, n Notes, pretty bool) error {
	out := make(map[string][]string, len(n))
	for name, e := range n {
		out[name] = append([]string(nil), e.Items()...)
	}
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("WriteJSON: %w", err)
	}
	return nil
}
