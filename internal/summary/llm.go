package summary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joelkehle/review-refinery/internal/review"
)

const systemPrompt = "You are an analyst writing executive summaries of book review batches. Given a set of review excerpts sharing one sentiment polarity, respond with a two to three sentence synthesis of the recurring themes. Plain prose only, no preamble, no bullet points."

// Summarizer turns one polarity bucket of review excerpts into a short
// synthesis. Implementations must be safe for concurrent use.
type Summarizer interface {
	Summarize(ctx context.Context, label review.Label, samples []string) (string, error)
}

type AnthropicSummarizer struct {
	messages AnthropicMessager
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

func NewAnthropicSummarizerFromEnv() (*AnthropicSummarizer, error) {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not configured")
	}
	return &AnthropicSummarizer{messages: newAnthropicClient(apiKey)}, nil
}

func (a *AnthropicSummarizer) Summarize(ctx context.Context, label review.Label, samples []string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Polarity: %s\nReview excerpts (%d):\n", label, len(samples))
	for i, s := range samples {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
	}

	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.ModelClaudeSonnet4_20250514,
		MaxTokens:   1024,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(sb.String()))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			out.WriteString(b.Text)
		}
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", errors.New("empty summarization response")
	}
	return text, nil
}
