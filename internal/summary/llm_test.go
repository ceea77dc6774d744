package summary

import (
	"context"
	"fmt"
	"os"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joelkehle/review-refinery/internal/review"
)

// mockMessager implements AnthropicMessager for testing.
type mockMessager struct {
	response *anthropic.Message
	err      error
}

func (m *mockMessager) New(_ context.Context, _ anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	return m.response, m.err
}

func newMockMessage(text string) *anthropic.Message {
	return &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: text},
		},
	}
}

func withMockClient(mock *mockMessager) func() {
	old := newAnthropicClient
	newAnthropicClient = func(_ string) AnthropicMessager { return mock }
	return func() { newAnthropicClient = old }
}

func TestAnthropicSummarizerReturnsText(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	cleanup := withMockClient(&mockMessager{
		response: newMockMessage("Readers consistently praise the pacing and the world building."),
	})
	defer cleanup()

	s, err := NewAnthropicSummarizerFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Summarize(context.Background(), review.LabelPositive, []string{"loved it", "could not put it down"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Readers consistently praise the pacing and the world building." {
		t.Errorf("summary=%q", got)
	}
}

func TestAnthropicSummarizerAPIError(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	cleanup := withMockClient(&mockMessager{err: fmt.Errorf("API rate limit exceeded")})
	defer cleanup()

	s, err := NewAnthropicSummarizerFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Summarize(context.Background(), review.LabelNegative, []string{"awful"}); err == nil {
		t.Fatal("expected error from API failure")
	}
}

func TestAnthropicSummarizerEmptyResponse(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	cleanup := withMockClient(&mockMessager{
		response: &anthropic.Message{Content: []anthropic.ContentBlockUnion{}},
	})
	defer cleanup()

	s, err := NewAnthropicSummarizerFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Summarize(context.Background(), review.LabelNeutral, []string{"fine"}); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestAnthropicSummarizerNoAPIKey(t *testing.T) {
	os.Unsetenv("ANTHROPIC_API_KEY")

	if _, err := NewAnthropicSummarizerFromEnv(); err == nil {
		t.Fatal("expected error when ANTHROPIC_API_KEY is not set")
	}
}
