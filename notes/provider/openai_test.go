package provider

import (
	"errors"
	"testing"
)

func TestBuildResponseParams_MapsRequest(t *testing.T) {
	t.Parallel()

	params := buildResponseParams("gpt-5-mini", NewUserRequest("hello", 250))
	if params.Model != "gpt-5-mini" {
		t.Fatalf("Model=%q", params.Model)
	}
	if !params.MaxOutputTokens.Valid() || params.MaxOutputTokens.Value != 250 {
		t.Fatalf("MaxOutputTokens=%v, want 250", params.MaxOutputTokens)
	}
	if len(params.Input.OfInputItemList) != 1 {
		t.Fatalf("len(input)=%d, want 1", len(params.Input.OfInputItemList))
	}
}

func TestErrorClassifiers(t *testing.T) {
	t.Parallel()

	if !isRateLimitError(errors.New("POST: 429 Too Many Requests")) {
		t.Fatalf("expected rate limit classification")
	}
	if isRateLimitError(nil) || isServerError(nil) {
		t.Fatalf("nil must not classify")
	}
	if !isServerError(errors.New("500 Internal Server Error")) {
		t.Fatalf("expected server error classification")
	}
}

func TestOpenAIInvoker_NilClient(t *testing.T) {
	t.Parallel()

	inv := &OpenAIInvoker{model: "m"}
	_, err := inv.Invoke(t.Context(), NewUserRequest("p", 1))
	if !errors.Is(err, ErrInvocation) {
		t.Fatalf("err=%v, want ErrInvocation", err)
	}
}
