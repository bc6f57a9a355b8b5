package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// ErrIncomplete is returned when the model stopped before finishing its
// answer, because of a safety block or the output token limit.
var ErrIncomplete = errors.New("model response incomplete")

// Client is the structured-output surface the capabilities need.
type Client interface {
	// GenerateJSON answers prompt with a JSON document
	GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error)
	// GenerateJSONWithImage answers prompt about image with a JSON document
	GenerateJSONWithImage(ctx context.Context, prompt string, image []byte, mimeType string, tier ModelTier) (string, error)
	Close() error
}

// NewClient returns the client for config.Provider. Gemini is the only provider.
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	switch config.Provider {
	case ProviderGemini, "":
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", config.Provider)
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, config: config}, nil
}

func (c *GeminiClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	return c.generate(ctx, tier, genai.Text(prompt))
}

// GenerateJSONWithImage sends the image inline ahead of the prompt.
func (c *GeminiClient) GenerateJSONWithImage(ctx context.Context, prompt string, image []byte, mimeType string, tier ModelTier) (string, error) {
	if limit := c.config.MaxImageBytes; limit > 0 && len(image) > limit {
		return "", fmt.Errorf("image of %d bytes exceeds the %d byte model limit", len(image), limit)
	}
	format, err := imageFormat(mimeType)
	if err != nil {
		return "", err
	}
	return c.generate(ctx, tier, genai.ImageData(format, image), genai.Text(prompt))
}

func (c *GeminiClient) generate(ctx context.Context, tier ModelTier, parts ...genai.Part) (string, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", tier)
	}
	model := c.client.GenerativeModel(modelName)
	model.SetTemperature(c.config.Temperature)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", modelName, err)
	}
	if resp.UsageMetadata != nil {
		log.WithFields(log.Fields{
			"model":  modelName,
			"tokens": resp.UsageMetadata.TotalTokenCount,
		}).Debug("model call")
	}

	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	return CleanJSONBlock(text), nil
}

// imageFormat turns a MIME type into the short format name Gemini expects.
func imageFormat(mimeType string) (string, error) {
	switch strings.ToLower(mimeType) {
	case "image/png", "":
		return "png", nil
	case "image/jpeg", "image/jpg":
		return "jpeg", nil
	case "image/webp":
		return "webp", nil
	default:
		return "", fmt.Errorf("unsupported image type %q", mimeType)
	}
}

func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// responseText joins the text parts of the first candidate. A candidate cut
// short by safety filters or the token limit is an ErrIncomplete.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("%w: prompt blocked (%s)", ErrIncomplete, resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonRecitation, genai.FinishReasonMaxTokens:
		return "", fmt.Errorf("%w: finish reason %s", ErrIncomplete, candidate.FinishReason)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("no content in response")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return sb.String(), nil
}
