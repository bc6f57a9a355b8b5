package llm

import "context"

// MockLLMClient implements Client for testing
type MockLLMClient struct {
	GenerateJSONFunc          func(ctx context.Context, prompt string, tier ModelTier) (string, error)
	GenerateJSONWithImageFunc func(ctx context.Context, prompt string, image []byte, mimeType string, tier ModelTier) (string, error)
	CloseFunc                 func() error
}

func (m *MockLLMClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return `{"instructions":[{"type":"cube","size":[1,1,1]}]}`, nil
}

func (m *MockLLMClient) GenerateJSONWithImage(ctx context.Context, prompt string, image []byte, mimeType string, tier ModelTier) (string, error) {
	if m.GenerateJSONWithImageFunc != nil {
		return m.GenerateJSONWithImageFunc(ctx, prompt, image, mimeType, tier)
	}
	return `{"polygons":[[[0,0],[10,0],[10,10],[0,10]]]}`, nil
}

func (m *MockLLMClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// scripted returns the answers in order, repeating the last one.
func scripted(answers ...string) (func() string, *int) {
	calls := 0
	return func() string {
		i := min(calls, len(answers)-1)
		calls++
		return answers[i]
	}, &calls
}
