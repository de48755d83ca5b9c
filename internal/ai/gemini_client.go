package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"document-query-platform/internal/config"
	"document-query-platform/models"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

const (
	answerSystemPrompt = "Answer the question based on the context provided. " +
		"Be precise and cite relevant information."
	themeSystemPrompt = "Analyze the provided documents and identify key themes. " +
		"Return your response as a JSON object with a 'themes' array, where each theme " +
		"has 'theme_name' and 'document_indices' (array of 0-based indices)."
)

// GeminiClient wraps the Gemini API with a circuit breaker and a client-side
// rate limiter. It implements the generative answering collaborator consumed
// by the query engine; failures propagate to the caller unchanged.
type GeminiClient struct {
	client      *genai.Client
	model       string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

// RateLimits are per-tier request budgets for the Gemini API.
type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func NewGeminiClient(cfg *config.Config) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(cfg.GeminiTier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10+1)

	return &GeminiClient{
		client:      client,
		model:       cfg.GeminiModel,
		breaker:     breaker,
		rateLimiter: rateLimiter,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// AnswerQuery generates a grounded answer for the query from the supplied
// context text.
func (gc *GeminiClient) AnswerQuery(ctx context.Context, query, contextText string) (string, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.answer_query")
	defer span.End()

	span.SetAttributes(
		attribute.Int("gemini.context_chars", len(contextText)),
		attribute.String("gemini.model", gc.model),
	)

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	prompt := fmt.Sprintf("%s\n\nQuestion: %s\n\nContext: %s", answerSystemPrompt, query, contextText)

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(0.2)
		model.SetMaxOutputTokens(2048)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}
		return responseText(resp), nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return "", err
	}

	answer := result.(string)
	if answer == "" {
		span.SetAttributes(attribute.Bool("gemini.empty_response", true))
		return "", fmt.Errorf("gemini returned no answer candidates")
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return answer, nil
}

// ExtractThemes asks the model to decompose the supplied document text into
// named themes, each referencing the numbered documents it was shown.
func (gc *GeminiClient) ExtractThemes(ctx context.Context, documentsText string) ([]models.ThemeDescriptor, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.extract_themes")
	defer span.End()

	span.SetAttributes(
		attribute.Int("gemini.context_chars", len(documentsText)),
		attribute.String("gemini.model", gc.model),
	)

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, err
	}

	prompt := fmt.Sprintf("%s\n\nIdentify themes from these documents:\n\n%s", themeSystemPrompt, documentsText)

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(0.2)
		model.ResponseMIMEType = "application/json"

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}
		return responseText(resp), nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, err
	}

	themes, err := ParseThemePayload(result.(string))
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.parse_error", true))
		return nil, err
	}

	span.SetAttributes(attribute.Int("gemini.theme_count", len(themes)))
	return themes, nil
}

// ParseThemePayload decodes the model's theme JSON. Markdown code fences
// around the payload are tolerated.
func ParseThemePayload(raw string) ([]models.ThemeDescriptor, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var payload struct {
		Themes []models.ThemeDescriptor `json:"themes"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode theme payload: %w", err)
	}
	return payload.Themes, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}

// Close the client
func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
