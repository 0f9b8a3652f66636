package notes

import (
	"context"
	"errors"
	"fmt"

	"github.com/team-of-2/novelize/notes/provider"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Accumulator turns paragraphs into Notes updates.
type Accumulator struct {
	Client            provider.Invoker
	WordBudget        int
	MaxParagraphChars int
	MaxTokens         int
	Logger            *zap.Logger
}

// Report describes what one Update did.
type Report struct {
	NoCharactersFound bool
	Pairs             int
	Skipped           int
	// Summarized counts entries whose text came back from a model call.
	Summarized int
	// SummaryFailures lists characters that kept their joined text because summarization failed.
	SummaryFailures []string
}

// Update extracts characters from paragraph, merges them into prev and re-summarizes every entry.
//
// prev is never mutated. When the model reports no characters, prev itself is returned.
// When extraction fails, prev is returned with the error.
func (a *Accumulator) Update(ctx context.Context, paragraph string, prev Notes) (Notes, Report, error) {
	if ctx == nil {
		return prev, Report{}, errors.New("Update: ctx is nil")
	}
	if a.Client == nil {
		return prev, Report{}, errors.New("Update: client is nil")
	}
	if err := ValidateParagraph(paragraph, a.MaxParagraphChars); err != nil {
		return prev, Report{}, fmt.Errorf("Update: %w", err)
	}
	log := a.logger()

	ctx, span := otel.Tracer("novelize/notes").Start(ctx, "notes.update")
	defer span.End()

	raw, err := a.Client.Invoke(ctx, provider.NewUserRequest(ExtractionPrompt(paragraph), a.MaxTokens))
	if err != nil {
		log.Error("extract characters failed", zap.Error(err))
		return prev, Report{}, fmt.Errorf("Update: extract characters: %w", err)
	}

	ex := ParseExtraction(raw)
	if ex.NoCharactersFound {
		log.Info("no characters found in paragraph")
		span.SetAttributes(attribute.Bool("no_characters", true))
		return prev, Report{NoCharactersFound: true}, nil
	}

	report := Report{Pairs: len(ex.Pairs), Skipped: len(ex.Skipped)}
	if report.Skipped > 0 {
		log.Debug("extraction lines skipped",
			zap.Int("skipped_lines", report.Skipped),
			zap.String("response", provider.Excerpt(raw)))
	}
	merged := Merge(prev, ex.Pairs)

	// Every entry is re-summarized, not only the ones this paragraph touched.
	summarizer := Summarizer{Client: a.Client, MaxTokens: a.MaxTokens, Logger: log}
	budget := a.wordBudget()
	for _, name := range merged.Names() {
		entry := merged[name]
		items := entry.Items()
		text, err := summarizer.Summarize(ctx, name, items, budget)
		if err != nil {
			report.SummaryFailures = append(report.SummaryFailures, name)
		} else if countWords(entry.Text()) > budget {
			report.Summarized++
		}
		merged[name] = SummaryEntry(text)
	}

	span.SetAttributes(
		attribute.Int("pairs", report.Pairs),
		attribute.Int("characters", len(merged)),
		attribute.Int("summary_failures", len(report.SummaryFailures)))
	log.Info("notes updated",
		zap.Int("pairs", report.Pairs),
		zap.Int("skipped_lines", report.Skipped),
		zap.Int("characters", len(merged)),
		zap.Int("summarized", report.Summarized),
		zap.Strings("summary_failures", report.SummaryFailures))
	return merged, report, nil
}

// Merge appends each pair's action to a copy of prev. Names absent from prev start an empty sequence.
func Merge(prev Notes, pairs []ParsedPair) Notes {
	merged := prev.Clone()
	for _, p := range pairs {
		merged[p.Name] = merged[p.Name].appendAction(p.Action)
	}
	return merged
}

func (a *Accumulator) wordBudget() int {
	if a.WordBudget <= 0 {
		return DefaultWordBudget
	}
	return a.WordBudget
}

func (a *Accumulator) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
