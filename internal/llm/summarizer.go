package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"hrag/internal/domain"
)

const summaryPrompt = "Write a concise summary of the following:\n\n\"%s\"\n\nCONCISE SUMMARY:"

// Summarizer condenses a group of chunks with one chat completion.
type Summarizer struct {
	client openai.Client
	model  string
}

func NewSummarizer(client openai.Client, model string) *Summarizer {
	return &Summarizer{client: client, model: model}
}

func (s *Summarizer) Summarize(ctx context.Context, texts []string) (string, error) {
	prompt := fmt.Sprintf(summaryPrompt, strings.Join(texts, "\n\n"))
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(s.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	if resp.Choices[0].FinishReason == "content_filter" {
		return "", domain.ErrContentFiltered
	}
	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	if summary == "" {
		return "", errors.New("empty summary")
	}
	return summary, nil
}
