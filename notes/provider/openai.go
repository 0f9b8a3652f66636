package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultOpenAIModel = "gpt-5-mini"

// OpenAIInvoker routes requests through the OpenAI Responses API.
type OpenAIInvoker struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIInvoker builds a client from an API key.
func NewOpenAIInvoker(apiKey, model string, logger *zap.Logger) *OpenAIInvoker {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return NewOpenAIInvokerWithClient(&client, model, logger)
}

func NewOpenAIInvokerWithClient(client *openai.Client, model string, logger *zap.Logger) *OpenAIInvoker {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIInvoker{client: client, model: model, logger: logger}
}

func (o *OpenAIInvoker) Invoke(ctx context.Context, req Request) (string, error) {
	if o.client == nil {
		return "", invocationError("openai", errors.New("client is nil"))
	}
	ctx, span := otel.Tracer("novelize/provider").Start(ctx, "provider.invoke", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("provider", "openai"), attribute.String("model", o.model))

	params := buildResponseParams(o.model, req)

	start := time.Now()
	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "responses.new")
		o.logger.Error("openai invoke failed",
			zap.String("model", o.model),
			zap.Bool("rate_limited", isRateLimitError(err)),
			zap.Bool("server_error", isServerError(err)),
			zap.Error(err))
		return "", invocationError("openai: responses.new", err)
	}
	text := resp.OutputText()
	if strings.TrimSpace(text) == "" {
		err := errors.New("empty output text")
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode response")
		return "", invocationError("openai: decode response", err)
	}

	o.logger.Debug("openai invoke",
		zap.String("model", o.model),
		zap.Int("response_chars", len(text)),
		zap.Duration("elapsed", time.Since(start)))
	return text, nil
}

func buildResponseParams(model string, req Request) responses.ResponseNewParams {
	input := make([]responses.ResponseInputItemUnionParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := responses.EasyInputMessageRoleUser
		switch m.Role {
		case "assistant":
			role = responses.EasyInputMessageRoleAssistant
		case "system":
			role = responses.EasyInputMessageRoleSystem
		}
		input = append(input, responses.ResponseInputItemParamOfMessage(m.Text, role))
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return responses.ResponseNewParams{
		Model:           model,
		MaxOutputTokens: openai.Int(int64(maxTokens)),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: input,
		},
	}
}

// isRateLimitError and isServerError only classify failures for logging; nothing retries.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}
