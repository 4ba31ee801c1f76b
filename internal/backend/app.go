package backend

import (
	"context"

	"github.com/mentis-ai/mentis/pkg/app"

	// Provider registration.
	_ "github.com/mentis-ai/mentis/pkg/llm/ollama"
	_ "github.com/mentis-ai/mentis/pkg/llm/openai"
)

const description = `The knowledge-base backend serves retrieval-augmented chat over a
clinical document corpus. It exposes OpenAI-compatible chat and audio
endpoints, ingests PDF documents through OCR, indexes speech
transcripts, and answers with cited sources.`

// NewApp creates the service application.
func NewApp(ctx context.Context) *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName("mentis-backend"),
		app.WithShortDescription("Retrieval-augmented knowledge-base backend"),
		app.WithDescription(description),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			srv, err := NewServer(opts)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		}),
	)
}
