package llm

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", config.GetModel(TierLite))
	assert.Equal(t, "gemini-2.5-flash", config.GetModel(TierStandard))
	assert.Equal(t, "gemini-2.5-pro", config.GetModel(TierAdvanced))
}

func TestGetModel(t *testing.T) {
	tests := []struct {
		name   string
		models map[ModelTier]string
		tier   ModelTier
		want   string
	}{
		{"exact tier", map[ModelTier]string{TierAdvanced: "pro"}, TierAdvanced, "pro"},
		{"falls back to standard", map[ModelTier]string{TierStandard: "flash", TierLite: "lite"}, TierAdvanced, "flash"},
		{"falls back to lite", map[ModelTier]string{TierLite: "lite"}, "unknown", "lite"},
		{"empty", map[ModelTier]string{}, TierAdvanced, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{Provider: ProviderGemini, Models: tt.models}
			assert.Equal(t, tt.want, config.GetModel(tt.tier))
		})
	}
}

func TestWithModel(t *testing.T) {
	config := DefaultConfig()
	newConfig := config.WithModel(TierAdvanced, "custom-model")

	assert.Equal(t, "gemini-2.5-pro", config.GetModel(TierAdvanced))
	assert.Equal(t, "custom-model", newConfig.GetModel(TierAdvanced))
	assert.Equal(t, "gemini-2.5-flash-lite", newConfig.GetModel(TierLite))
}

func TestImageFormat(t *testing.T) {
	tests := map[string]string{
		"image/png":  "png",
		"":           "png",
		"image/JPEG": "jpeg",
		"image/jpg":  "jpeg",
		"image/webp": "webp",
	}
	for mime, want := range tests {
		got, err := imageFormat(mime)
		assert.NoError(t, err, mime)
		assert.Equal(t, want, got, mime)
	}

	_, err := imageFormat("image/tiff")
	assert.Error(t, err)
}

func TestNewClient_Errors(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{Provider: "openai"}, "key")
	assert.ErrorContains(t, err, "unsupported LLM provider")

	_, err = NewClient(context.Background(), nil, "")
	assert.ErrorContains(t, err, "API key is required")
}

func TestResponseText(t *testing.T) {
	candidate := func(reason genai.FinishReason, parts ...genai.Part) *genai.GenerateContentResponse {
		return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			FinishReason: reason,
			Content:      &genai.Content{Parts: parts},
		}}}
	}
	tests := []struct {
		name       string
		resp       *genai.GenerateContentResponse
		want       string
		incomplete bool
		wantErr    string
	}{
		{name: "joins text parts", resp: candidate(genai.FinishReasonStop, genai.Text(`{"a":`), genai.Text(`1}`)), want: `{"a":1}`},
		{name: "safety stop", resp: candidate(genai.FinishReasonSafety, genai.Text("x")), incomplete: true},
		{name: "token limit", resp: candidate(genai.FinishReasonMaxTokens, genai.Text(`{"a":`)), incomplete: true},
		{name: "prompt blocked", resp: &genai.GenerateContentResponse{PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety}}, incomplete: true},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, wantErr: "no candidates"},
		{name: "no text", resp: candidate(genai.FinishReasonStop, genai.Blob{MIMEType: "image/png"}), wantErr: "no text parts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := responseText(tt.resp)
			switch {
			case tt.incomplete:
				assert.ErrorIs(t, err, ErrIncomplete)
			case tt.wantErr != "":
				assert.ErrorContains(t, err, tt.wantErr)
			default:
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
