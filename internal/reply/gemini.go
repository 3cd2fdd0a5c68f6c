package reply

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"
)

// GeminiCompleter answers through the Gemini API. The profile's API URL is
// the API base URL and its key the Gemini API key. One SDK client is kept
// per endpoint.
type GeminiCompleter struct {
	mu      sync.Mutex
	clients map[Endpoint]*genai.Client
}

// NewGeminiCompleter returns an empty GeminiCompleter.
func NewGeminiCompleter() *GeminiCompleter {
	return &GeminiCompleter{clients: make(map[Endpoint]*genai.Client)}
}

func (g *GeminiCompleter) client(ctx context.Context, endpoint Endpoint) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[endpoint]; ok {
		return c, nil
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      endpoint.Key,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: endpoint.URL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	g.clients[endpoint] = c
	return c, nil
}

// Complete implements Completer.
func (g *GeminiCompleter) Complete(ctx context.Context, endpoint Endpoint, req Request) (string, error) {
	c, err := g.client(ctx, endpoint)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.System}}},
		Temperature:       genai.Ptr(req.Temperature),
		MaxOutputTokens:   int32(req.MaxTokens), //nolint:gosec // bounded by config validation
	}
	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}

	resp, err := c.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return "", fmt.Errorf("gemini request blocked: %v", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", ErrNoChoices
	}

	return resp.Text(), nil
}
