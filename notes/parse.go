package notes

import (
	"strings"

	"golang.org/x/text/cases"
)

// Separator splits a response line into name and action. The first occurrence wins.
const Separator = ":"

// LineOutcome is the classification of one response line: ParsedPair or Skipped.
type LineOutcome interface {
	lineOutcome()
}

// ParsedPair is a well-formed "Name: Action" line with both parts trimmed.
type ParsedPair struct {
	Name   string
	Action string
}

// Skipped is a line dropped without error: no separator, an empty name or an empty action.
type Skipped struct {
	Line string
}

func (ParsedPair) lineOutcome() {}
func (Skipped) lineOutcome()    {}

// Extraction is the classified model response for one paragraph.
type Extraction struct {
	// NoCharactersFound is set when the response contains Sentinel; Pairs and Skipped are then empty.
	NoCharactersFound bool
	Pairs             []ParsedPair
	Skipped           []Skipped
}

// ParseLine classifies a single response line.
func ParseLine(line string) LineOutcome {
	name, action, ok := strings.Cut(line, Separator)
	if !ok {
		return Skipped{Line: line}
	}
	name, action = strings.TrimSpace(name), strings.TrimSpace(action)
	// "Here are the characters:" style preambles end in the separator.
	if name == "" || action == "" {
		return Skipped{Line: line}
	}
	return ParsedPair{Name: name, Action: action}
}

// ParseExtraction classifies a raw extraction response.
func ParseExtraction(raw string) Extraction {
	if ContainsSentinel(raw) {
		return Extraction{NoCharactersFound: true}
	}
	var ex Extraction
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		switch o := ParseLine(line).(type) {
		case ParsedPair:
			ex.Pairs = append(ex.Pairs, o)
		case Skipped:
			ex.Skipped = append(ex.Skipped, o)
		}
	}
	return ex
}

// ContainsSentinel reports whether raw contains Sentinel, ignoring case.
func ContainsSentinel(raw string) bool {
	fold := cases.Fold()
	return strings.Contains(fold.String(raw), fold.String(Sentinel))
}
