package transcriber

import (
	"github.com/foxseedlab/studentize/internal/config"
	"github.com/foxseedlab/studentize/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Transcriber, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewCloudSpeech(CloudSpeechConfig{
			ProjectID:       c.GoogleCloudProjectID,
			CredentialsJSON: c.GoogleCloudCredentialsJSON,
			Language:        c.DefaultTranscribeLanguage,
			Location:        c.GoogleCloudSpeechLocation,
			Model:           c.GoogleCloudSpeechModel,
			PhraseHints:     c.SpeechPhraseHints,
		}), nil
	})
}
