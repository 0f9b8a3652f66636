package notes

import (
	"fmt"
	"strings"
)

// Sentinel is the literal marker the model returns when a paragraph has no characters.
const Sentinel = "<none>"

const extractionPrompt = `Extract all characters and their actions from the following text.
List each character and their actions in the format:
Name: Action
Separate characters with a newline. If no characters are found, respond with "<none>".

Text:
%s
`

const summarizationPrompt = `Summarize the following notes about %s:
%s
Limit the summary to %d words.
`

const genericSummaryPrompt = `Summarize the following text.
Summary type: %s
%s
%s
Respond with the summary only.

Text:
%s
`

// ExtractionPrompt asks the model for one "Name: Action" line per character, or Sentinel.
func ExtractionPrompt(paragraph string) string {
	return fmt.Sprintf(extractionPrompt, paragraph)
}

// SummarizationPrompt asks the model to compress joined notes about name to at most budget words.
func SummarizationPrompt(name, joined string, budget int) string {
	return fmt.Sprintf(summarizationPrompt, name, joined, budget)
}

// Summary types, formats and lengths accepted by the generic summary mode.
const (
	TypeKeyPoints  = "key-points"
	TypeTLDR       = "tl;dr"
	TypeTeaser     = "teaser"
	TypeHeadline   = "headline"
	TypeCharacters = "characters"

	FormatMarkdown  = "markdown"
	FormatPlainText = "plain-text"

	LengthShort  = "short"
	LengthMedium = "medium"
	LengthLong   = "long"
)

// SummaryOptions mirrors the panel's type/format/length selectors.
type SummaryOptions struct {
	Type   string `json:"type" yaml:"type"`
	Format string `json:"format" yaml:"format"`
	Length string `json:"length" yaml:"length"`
}

// DefaultSummaryOptions is the panel's initial selection.
func DefaultSummaryOptions() SummaryOptions {
	return SummaryOptions{Type: TypeCharacters, Format: FormatMarkdown, Length: LengthMedium}
}

// Validate reports unknown selector values.
func (o SummaryOptions) Validate() error {
	switch o.Type {
	case TypeKeyPoints, TypeTLDR, TypeTeaser, TypeHeadline, TypeCharacters:
	default:
		return fmt.Errorf("unknown summary type %q", o.Type)
	}
	switch o.Format {
	case FormatMarkdown, FormatPlainText:
	default:
		return fmt.Errorf("unknown summary format %q", o.Format)
	}
	switch o.Length {
	case LengthShort, LengthMedium, LengthLong:
	default:
		return fmt.Errorf("unknown summary length %q", o.Length)
	}
	return nil
}

// GenericSummaryPrompt builds the non-character summary request for the given selectors.
func GenericSummaryPrompt(text string, opts SummaryOptions) string {
	return fmt.Sprintf(genericSummaryPrompt, opts.Type, formatInstruction(opts), lengthInstruction(opts), text)
}

func formatInstruction(opts SummaryOptions) string {
	if opts.Format == FormatPlainText {
		return "Use plain text without markdown."
	}
	return "Format the summary as markdown."
}

func lengthInstruction(opts SummaryOptions) string {
	n := map[string][3]int{
		TypeKeyPoints: {3, 5, 7},
		TypeTLDR:      {1, 3, 5},
		TypeTeaser:    {1, 3, 5},
		TypeHeadline:  {12, 17, 22},
	}[opts.Type]
	i := 1
	switch opts.Length {
	case LengthShort:
		i = 0
	case LengthLong:
		i = 2
	}
	switch opts.Type {
	case TypeKeyPoints:
		return fmt.Sprintf("Return %d bullet points.", n[i])
	case TypeHeadline:
		return fmt.Sprintf("Return a single headline of at most %d words.", n[i])
	default:
		return fmt.Sprintf("Use at most %d sentences.", n[i])
	}
}

func tooLargeWarning(chars, max int) string {
	return fmt.Sprintf("Text is too long for summarization with %d characters (maximum supported content length is ~%d characters).", chars, max)
}

// NothingToSummarize is shown when the panel receives empty content.
const NothingToSummarize = "There's nothing to summarize"

func countWords(s string) int {
	return len(strings.Fields(s))
}
