package gemini

import (
	"context"
	"net/http"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeCall struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeCaller struct {
	calls   []fakeCall
	invoked int
}

func (f *fakeCaller) GenerateContent(_ context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	call := f.calls[f.invoked]
	f.invoked++
	return call.resp, call.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{{Text: text}},
				},
			},
		},
	}
}

func newTestGenerator(caller *fakeCaller, maxRetries int) *Generator {
	return &Generator{
		models:     caller,
		model:      defaultModel,
		maxRetries: maxRetries,
		backoff:    0,
		logger:     zap.NewNop(),
	}
}

func TestModelReportsConfiguredModel(t *testing.T) {
	gen := newTestGenerator(&fakeCaller{}, 2)
	if got := gen.Model(); got != defaultModel {
		t.Fatalf("expected %q, got %q", defaultModel, got)
	}

	gen.model = "gemini-2.5-pro"
	if got := gen.Model(); got != "gemini-2.5-pro" {
		t.Fatalf("expected the configured model, got %q", got)
	}
}

func TestCompleteReturnsResponseText(t *testing.T) {
	caller := &fakeCaller{calls: []fakeCall{{resp: textResponse("Match Score: 0.8")}}}
	gen := newTestGenerator(caller, 2)

	got, err := gen.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Match Score: 0.8" {
		t.Fatalf("unexpected response: %q", got)
	}
	if caller.invoked != 1 {
		t.Fatalf("expected 1 call, got %d", caller.invoked)
	}
}

func TestCompleteRetriesTransientErrors(t *testing.T) {
	caller := &fakeCaller{calls: []fakeCall{
		{err: genai.APIError{Code: http.StatusServiceUnavailable}},
		{resp: textResponse("recovered")},
	}}
	gen := newTestGenerator(caller, 3)

	got, err := gen.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "recovered" {
		t.Fatalf("unexpected response: %q", got)
	}
	if caller.invoked != 2 {
		t.Fatalf("expected 2 calls, got %d", caller.invoked)
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	caller := &fakeCaller{calls: []fakeCall{
		{err: genai.APIError{Code: http.StatusBadRequest}},
	}}
	gen := newTestGenerator(caller, 3)

	if _, err := gen.Complete(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected an error")
	}
	if caller.invoked != 1 {
		t.Fatalf("expected 1 call, got %d", caller.invoked)
	}
}

func TestCompleteExhaustsRetries(t *testing.T) {
	transient := fakeCall{err: genai.APIError{Code: http.StatusTooManyRequests}}
	caller := &fakeCaller{calls: []fakeCall{transient, transient}}
	gen := newTestGenerator(caller, 2)

	if _, err := gen.Complete(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected an error after exhausting retries")
	}
	if caller.invoked != 2 {
		t.Fatalf("expected 2 calls, got %d", caller.invoked)
	}
}

func TestCompleteRejectsEmptyPrompt(t *testing.T) {
	gen := newTestGenerator(&fakeCaller{}, 2)

	if _, err := gen.Complete(context.Background(), "   "); err == nil {
		t.Fatalf("expected an error for an empty prompt")
	}
}

func TestCompleteReportsEmptyResponse(t *testing.T) {
	caller := &fakeCaller{calls: []fakeCall{{resp: &genai.GenerateContentResponse{}}}}
	gen := newTestGenerator(caller, 2)

	if _, err := gen.Complete(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected an error for an empty response")
	}
}
