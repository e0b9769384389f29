package summarizer

import (
	"context"
	"fmt"

	"github.com/foxseedlab/studentize/internal/summarizer"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

type OpenAISummarizer struct {
	client openai.Client
	model  string
}

func NewOpenAISummarizer(apiKey, model string, opts ...option.RequestOption) summarizer.Summarizer {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAISummarizer{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, req summarizer.Request) (*summarizer.Summary, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summarizer.SystemPrompt),
			openai.UserMessage(summarizer.BuildUserPrompt(req)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, summarizer.ErrEmptySummary
	}
	return summarizer.ParseSummary(resp.Choices[0].Message.Content)
}
