// Package genai generates coaching text with Gemini.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	shared "github.com/fitline/server/pkg"
)

const DefaultTimeout = 60 * time.Second

// GeminiGenerator implements shared.TextGenerator and shared.ImageDescriber.
// A client is created per call so a missing key is reported at use time,
// not at startup.
type GeminiGenerator struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewGeminiGenerator(apiKey, model string, logger *slog.Logger) *GeminiGenerator {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiGenerator{APIKey: apiKey, Model: model, Timeout: DefaultTimeout, Logger: logger}
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, "text", genai.Text(prompt))
}

// MealImageInstruction is sent alongside a meal photo.
const MealImageInstruction = "Describe this meal photo in one or two short sentences: " +
	"dish names, main ingredients and estimated portions. Add a rough kcal estimate if possible."

// DescribeImage implements shared.ImageDescriber with a multimodal request.
func (g *GeminiGenerator) DescribeImage(ctx context.Context, mime string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", shared.ErrInvalidInput)
	}
	if mime == "" {
		mime = "image/jpeg"
	}
	return g.generate(ctx, "image", genai.Text(MealImageInstruction), genai.Blob{MIMEType: mime, Data: data})
}

func (g *GeminiGenerator) generate(ctx context.Context, kind string, parts ...genai.Part) (string, error) {
	if g.APIKey == "" {
		return "", fmt.Errorf("%w: GEMINI_API_KEY not set", shared.ErrConfigurationMissing)
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.APIKey))
	if err != nil {
		return "", fmt.Errorf("%w: create gemini client: %v", shared.ErrUpstream, err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.Model)
	start := time.Now()
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: gemini: %v", shared.ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: gemini: %v", shared.ErrUpstream, err)
	}

	text := extractText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned no text", shared.ErrUpstream)
	}
	g.Logger.Info("Generated text", "model", g.Model, "kind", kind, "parts", len(parts), "duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String())
}
