package summarizer

import (
	"context"

	"github.com/foxseedlab/studentize/internal/config"
	"github.com/foxseedlab/studentize/internal/summarizer"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (summarizer.Summarizer, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.SummarizerProvider == config.SummarizerProviderGemini {
			return NewGeminiSummarizer(context.Background(), c.GeminiAPIKey, c.GeminiSummaryModel)
		}
		return NewOpenAISummarizer(c.OpenAIAPIKey, c.OpenAISummaryModel), nil
	})
}
