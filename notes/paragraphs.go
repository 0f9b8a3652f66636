package notes

import "strings"

// SplitParagraphs groups text into blank-line separated paragraphs, trimming each and joining
// wrapped lines with a single space.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var (
		out  []string
		curr []string
	)
	flush := func() {
		if len(curr) == 0 {
			return
		}
		out = append(out, strings.Join(curr, " "))
		curr = curr[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		curr = append(curr, line)
	}
	flush()
	return out
}
