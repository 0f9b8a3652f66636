package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/team-of-2/novelize/notes/fileutils"
)

// AnthropicVersion is the protocol version tag Bedrock expects for Claude message payloads.
const AnthropicVersion = "bedrock-2023-05-31"

// DefaultMaxTokens bounds the model output for every request built by NewUserRequest.
const DefaultMaxTokens = 1000

// ErrInvocation matches every *InvocationError via errors.Is.
var ErrInvocation = errors.New("model invocation failed")

// Message is a single chat message with plain text content.
type Message struct {
	Role string
	Text string
}

// Request is a provider-neutral model request: version tag, output bound and messages.
type Request struct {
	AnthropicVersion string
	MaxTokens        int
	Messages         []Message
}

// NewUserRequest builds the single user-role message request used by every prompt builder.
func NewUserRequest(prompt string, maxTokens int) Request {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return Request{
		AnthropicVersion: AnthropicVersion,
		MaxTokens:        maxTokens,
		Messages:         []Message{{Role: "user", Text: prompt}},
	}
}

// Invoker performs exactly one round trip to a hosted model and returns the text of the first
// response element. Implementations must not retry.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, req Request) (string, error)

func (f InvokerFunc) Invoke(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// InvocationError reports a transport or decode failure of a single model call.
type InvocationError struct {
	Op  string
	Err error
}

func (e *InvocationError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + ErrInvocation.Error()
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrInvocation.Error(), e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

func (e *InvocationError) Is(target error) bool { return target == ErrInvocation }

func invocationError(op string, err error) error {
	return &InvocationError{Op: op, Err: err}
}

// ExcerptRunes bounds model text quoted in errors and log fields.
const ExcerptRunes = 160

// Excerpt flattens s onto one line and clips it to ExcerptRunes.
func Excerpt(s string) string {
	return fileutils.Truncate(fileutils.SanitizeNewlines(strings.TrimSpace(s)), ExcerptRunes)
}
