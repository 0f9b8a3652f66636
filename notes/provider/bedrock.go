package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultBedrockRegion  = "us-east-1"
	DefaultBedrockModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
)

// BedrockAPI is the subset of the Bedrock runtime client used by BedrockInvoker.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

var _ BedrockAPI = (*bedrockruntime.Client)(nil)

// BedrockConfig selects the region and model for a Bedrock invoker.
type BedrockConfig struct {
	Region  string
	ModelID string
}

// BedrockInvoker sends Anthropic messages payloads through Bedrock InvokeModel.
type BedrockInvoker struct {
	client  BedrockAPI
	modelID string
	logger  *zap.Logger
}

// NewBedrockInvoker loads the default AWS configuration and builds a runtime client.
func NewBedrockInvoker(ctx context.Context, cfg BedrockConfig, logger *zap.Logger) (*BedrockInvoker, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}
	if awsCfg.Region == "" {
		awsCfg.Region = DefaultBedrockRegion
	}
	return NewBedrockInvokerWithClient(bedrockruntime.NewFromConfig(awsCfg), cfg.ModelID, logger), nil
}

// NewBedrockInvokerWithClient wires a custom client, typically a fake in tests.
func NewBedrockInvokerWithClient(client BedrockAPI, modelID string, logger *zap.Logger) *BedrockInvoker {
	if modelID == "" {
		modelID = DefaultBedrockModelID
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BedrockInvoker{client: client, modelID: modelID, logger: logger}
}

type bedrockContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockMessage struct {
	Role    string           `json:"role"`
	Content []bedrockContent `json:"content"`
}

type bedrockPayload struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Messages         []bedrockMessage `json:"messages"`
}

func buildBedrockPayload(req Request) ([]byte, error) {
	p := bedrockPayload{
		AnthropicVersion: req.AnthropicVersion,
		MaxTokens:        req.MaxTokens,
		Messages:         make([]bedrockMessage, 0, len(req.Messages)),
	}
	if p.AnthropicVersion == "" {
		p.AnthropicVersion = AnthropicVersion
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	for _, m := range req.Messages {
		p.Messages = append(p.Messages, bedrockMessage{
			Role:    m.Role,
			Content: []bedrockContent{{Type: "text", Text: m.Text}},
		})
	}
	return json.Marshal(p)
}

// Invoke performs one InvokeModel call and returns content[0].text.
func (b *BedrockInvoker) Invoke(ctx context.Context, req Request) (string, error) {
	if b.client == nil {
		return "", invocationError("bedrock", errors.New("client is nil"))
	}
	ctx, span := otel.Tracer("novelize/provider").Start(ctx, "provider.invoke", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("provider", "bedrock"), attribute.String("model", b.modelID))

	body, err := buildBedrockPayload(req)
	if err != nil {
		return "", invocationError("bedrock: marshal payload", err)
	}

	start := time.Now()
	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invoke model")
		b.logger.Error("bedrock invoke failed", zap.String("model", b.modelID), zap.Error(err))
		return "", invocationError("bedrock: invoke model", err)
	}

	text, err := decodeBedrockText(out.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode response")
		b.logger.Error("bedrock response undecodable", zap.String("model", b.modelID), zap.Int("bytes", len(out.Body)), zap.Error(err))
		return "", invocationError("bedrock: decode response", err)
	}

	b.logger.Debug("bedrock invoke",
		zap.String("model", b.modelID),
		zap.Int("response_chars", len(text)),
		zap.Duration("elapsed", time.Since(start)))
	return text, nil
}

func decodeBedrockText(body []byte) (string, error) {
	if len(body) == 0 {
		return "", errors.New("empty response body")
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("response body is not JSON (len=%d): %s", len(body), Excerpt(string(body)))
	}
	text := gjson.GetBytes(body, "content.0.text")
	if !text.Exists() {
		return "", fmt.Errorf("response has no content[0].text: %s", Excerpt(string(body)))
	}
	return text.String(), nil
}
