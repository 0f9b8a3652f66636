package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBedrock struct {
	body  []byte
	err   error
	calls int
	last  *bedrockruntime.InvokeModelInput
}

func (f *fakeBedrock) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.calls++
	f.last = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func TestBedrockInvoker_ReturnsFirstContentText(t *testing.T) {
	t.Parallel()

	fake := &fakeBedrock{body: []byte(`{"content":[{"type":"text","text":"Alice: went to the market"},{"type":"text","text":"ignored"}]}`)}
	inv := NewBedrockInvokerWithClient(fake, "", nil)

	got, err := inv.Invoke(context.Background(), NewUserRequest("prompt text", 0))
	require.NoError(t, err)
	assert.Equal(t, "Alice: went to the market", got)
	assert.Equal(t, 1, fake.calls)

	require.NotNil(t, fake.last)
	assert.Equal(t, DefaultBedrockModelID, aws.ToString(fake.last.ModelId))
	assert.Equal(t, "application/json", aws.ToString(fake.last.ContentType))

	var payload bedrockPayload
	require.NoError(t, json.Unmarshal(fake.last.Body, &payload))
	assert.Equal(t, AnthropicVersion, payload.AnthropicVersion)
	assert.Equal(t, DefaultMaxTokens, payload.MaxTokens)
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, "user", payload.Messages[0].Role)
	require.Len(t, payload.Messages[0].Content, 1)
	assert.Equal(t, "text", payload.Messages[0].Content[0].Type)
	assert.Equal(t, "prompt text", payload.Messages[0].Content[0].Text)
}

func TestBedrockInvoker_TransportErrorIsInvocationError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	fake := &fakeBedrock{err: cause}
	inv := NewBedrockInvokerWithClient(fake, "m", nil)

	_, err := inv.Invoke(context.Background(), NewUserRequest("p", 10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvocation))
	assert.True(t, errors.Is(err, cause))

	var ie *InvocationError
	require.True(t, errors.As(err, &ie))
	assert.Contains(t, ie.Op, "invoke model")
	assert.Equal(t, 1, fake.calls, "no retries")
}

func TestBedrockInvoker_UndecodableBody(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"empty":      nil,
		"not json":   []byte("<html>oops</html>"),
		"no content": []byte(`{"content":[]}`),
	}
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			inv := NewBedrockInvokerWithClient(&fakeBedrock{body: body}, "m", nil)
			_, err := inv.Invoke(context.Background(), NewUserRequest("p", 10))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvocation))
		})
	}
}

func TestNewUserRequest_DefaultsMaxTokens(t *testing.T) {
	t.Parallel()

	req := NewUserRequest("hi", -1)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	assert.Equal(t, AnthropicVersion, req.AnthropicVersion)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, Message{Role: "user", Text: "hi"}, req.Messages[0])
}

func TestBedrockInvoker_DecodeErrorQuotesBodyExcerpt(t *testing.T) {
	t.Parallel()

	inv := NewBedrockInvokerWithClient(&fakeBedrock{body: []byte("<html>\r\noops</html>")}, "m", nil)
	_, err := inv.Invoke(context.Background(), NewUserRequest("p", 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `<html>\noops</html>`)
}

func TestExcerpt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `Alice: went\nBob: waved`, Excerpt("  Alice: went\r\nBob: waved\n"))

	long := strings.Repeat("é", ExcerptRunes+10)
	got := Excerpt(long)
	assert.Equal(t, strings.Repeat("é", ExcerptRunes)+"…", got)
}
