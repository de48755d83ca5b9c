package ai

import (
	"context"
	"fmt"

	"document-query-platform/internal/config"

	"github.com/google/generative-ai-go/genai"
	"github.com/philippgille/chromem-go"
	"google.golang.org/api/option"
)

// GenerateEmbedding returns an embedding vector for the given text using
// Google Generative AI (text-embedding-004 by default).
func GenerateEmbedding(ctx context.Context, cfg *config.Config, text string) ([]float32, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}
	defer client.Close()

	model := client.EmbeddingModel(cfg.GoogleEmbeddingsModel)
	resp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned")
	}

	return resp.Embedding.Values, nil
}

// EmbeddingFunc adapts GenerateEmbedding to the signature the vector store
// expects.
func EmbeddingFunc(cfg *config.Config) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return GenerateEmbedding(ctx, cfg, text)
	}
}
