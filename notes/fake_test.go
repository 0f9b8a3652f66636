package notes

import (
	"context"
	"strings"
	"sync"

	"github.com/team-of-2/novelize/notes/provider"
)

// scriptedInvoker answers extraction and summarization prompts from separate functions and
// records every prompt it receives.
type scriptedInvoker struct {
	mu        sync.Mutex
	extract   func(prompt string) (string, error)
	summarize func(prompt string) (string, error)
	prompts   []string
}

func (f *scriptedInvoker) Invoke(ctx context.Context, req provider.Request) (string, error) {
	prompt := req.Messages[0].Text
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if isExtractionPrompt(prompt) {
		if f.extract == nil {
			return "<none>", nil
		}
		return f.extract(prompt)
	}
	if f.summarize == nil {
		panic("unexpected summarization call: " + prompt)
	}
	return f.summarize(prompt)
}

func (f *scriptedInvoker) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *scriptedInvoker) summarizationCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.prompts {
		if !isExtractionPrompt(p) {
			n++
		}
	}
	return n
}

func isExtractionPrompt(p string) bool {
	return strings.HasPrefix(p, "Extract all characters")
}

func replies(s string) func(string) (string, error) {
	return func(string) (string, error) { return s, nil }
}

func fails(err error) func(string) (string, error) {
	return func(string) (string, error) { return "", err }
}
