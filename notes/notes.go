// Package notes maintains a running character-notes ledger across successive paragraphs of text.
//
// Each processed paragraph is sent to a hosted model that lists characters and their actions as
// "Name: Action" lines. Parsed pairs are merged into the previous Notes and every entry is then
// compressed to a word budget, calling the model only when an entry's joined text is over budget.
package notes

import (
	"errors"
	"maps"
	"slices"
	"sort"
	"strings"
)

// ErrInputTooLarge is returned before any network call when a paragraph exceeds the character limit.
var ErrInputTooLarge = errors.New("input too large")

// DefaultMaxParagraphChars mirrors the target model's context window: roughly 1,000 tokens at ~4 chars per token.
const DefaultMaxParagraphChars = 4000

// DefaultWordBudget is the per-character summary budget used by the side panel.
const DefaultWordBudget = 50

// ActionDelimiter joins a character's actions before summarization.
const ActionDelimiter = "; "

// Entry is one character's notes: either the ordered actions collected so far, or a summary.
type Entry struct {
	Actions    []string `json:"actions,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Summarized bool     `json:"summarized"`
}

// ActionsEntry builds a pre-summarization entry.
func ActionsEntry(actions ...string) Entry {
	return Entry{Actions: actions}
}

// SummaryEntry builds a post-summarization entry.
func SummaryEntry(summary string) Entry {
	return Entry{Summary: summary, Summarized: true}
}

// Items returns what the presentation layer lists for the entry.
func (e Entry) Items() []string {
	if e.Summarized {
		return []string{e.Summary}
	}
	return e.Actions
}

// Text joins the entry's items with ActionDelimiter.
func (e Entry) Text() string {
	return strings.Join(e.Items(), ActionDelimiter)
}

// appendAction returns a new entry with action appended. A summarized entry is reopened as a
// one-element sequence holding its summary so merges stay additive.
func (e Entry) appendAction(action string) Entry {
	var base []string
	if e.Summarized {
		base = []string{e.Summary}
	} else {
		base = slices.Clone(e.Actions)
	}
	return Entry{Actions: append(base, action)}
}

// Notes maps a character name (case-sensitive, trimmed) to its entry.
type Notes map[string]Entry

// Names returns the character names in sorted order.
func (n Notes) Names() []string {
	names := make([]string, 0, len(n))
	for name := range n {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a shallow copy; entries share their action slices until modified through appendAction.
func (n Notes) Clone() Notes {
	if n == nil {
		return Notes{}
	}
	return maps.Clone(n)
}

// ValidateParagraph rejects paragraphs longer than maxChars runes. maxChars <= 0 uses DefaultMaxParagraphChars.
func ValidateParagraph(paragraph string, maxChars int) error {
	if maxChars <= 0 {
		maxChars = DefaultMaxParagraphChars
	}
	if n := len([]rune(paragraph)); n > maxChars {
		return &InputTooLargeError{Chars: n, Max: maxChars}
	}
	return nil
}

// InputTooLargeError carries the measured and permitted sizes; errors.Is(err, ErrInputTooLarge) holds.
type InputTooLargeError struct {
	Chars int
	Max   int
}

func (e *InputTooLargeError) Error() string {
	return ErrInputTooLarge.Error()
}

func (e *InputTooLargeError) Is(target error) bool { return target == ErrInputTooLarge }

// Warning is the user-visible message for an oversized paragraph.
func (e *InputTooLargeError) Warning() string {
	return tooLargeWarning(e.Chars, e.Max)
}
