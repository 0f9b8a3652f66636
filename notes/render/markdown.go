// Package render turns a notes ledger into text for the side panel, a terminal, or a file.
package render

import (
	"fmt"
	"strings"

	"github.com/team-of-2/novelize/notes"
)

// Markdown renders one section per character, sorted by name, with one bullet per item.
// An empty ledger renders as the empty string.
func Markdown(n notes.Notes) string {
	if len(n) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("# Characters\n\n")
	names := n.Names()
	ids := anchorIDs(names)
	for i, name := range names {
		b.WriteString(renderCharacterMarkdown(name, ids[i], n[name]))
	}
	return b.String()
}

func renderCharacterMarkdown(name, anchor string, e notes.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<a id=\"%s\"></a>\n", anchor)
	fmt.Fprintf(&b, "## %s\n\n", escapeMarkdownInline(name))
	for _, item := range e.Items() {
		item = escapeMarkdownInline(item)
		if item == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", item)
	}
	b.WriteString("\n")
	return b.String()
}

// anchorIDs returns one unique element id per name. Names that sanitize to the same anchor get
// "-2", "-3", ... in order.
func anchorIDs(names []string) []string {
	ids := make([]string, len(names))
	taken := make(map[string]bool, len(names))
	for i, name := range names {
		base := "character-" + sanitizeAnchor(name)
		id := base
		for n := 2; taken[id]; n++ {
			id = fmt.Sprintf("%s-%d", base, n)
		}
		taken[id] = true
		ids[i] = id
	}
	return ids
}

func sanitizeAnchor(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var out strings.Builder
	out.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			out.WriteRune(r)
		} else {
			out.WriteByte('-')
		}
	}
	if a := strings.Trim(out.String(), "-"); a != "" {
		return a
	}
	return "unnamed"
}

// escapeMarkdownInline keeps model text on one line so it cannot open headers or fences.
func escapeMarkdownInline(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") || strings.HasPrefix(s, "```") {
		s = `\` + s
	}
	return s
}
