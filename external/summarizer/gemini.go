package summarizer

import (
	"context"
	"fmt"

	"github.com/foxseedlab/studentize/internal/summarizer"
	"google.golang.org/genai"
)

type GeminiSummarizer struct {
	client *genai.Client
	model  string
}

func NewGeminiSummarizer(ctx context.Context, apiKey, model string) (summarizer.Summarizer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiSummarizer{client: client, model: model}, nil
}

func (s *GeminiSummarizer) Summarize(ctx context.Context, req summarizer.Request) (*summarizer.Summary, error) {
	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		genai.Text(summarizer.BuildUserPrompt(req)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(summarizer.SystemPrompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	return summarizer.ParseSummary(resp.Text())
}
