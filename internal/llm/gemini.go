package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient calls the Gemini API through the genai SDK.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiClient constructs a Gemini-backed client.
func NewGeminiClient(ctx context.Context, apiKey, model string, temperature float32) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiClient{client: client, model: model, temperature: temperature}, nil
}

// Chat maps the history onto Gemini contents.  System messages become the
// system instruction and assistant turns use the "model" role.
func (c *GeminiClient) Chat(ctx context.Context, messages []Message) (string, error) {
	system, contents := geminiContents(messages)
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(c.temperature)}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("llm: gemini: %w", err)
	}
	return resp.Text(), nil
}

func geminiContents(messages []Message) (string, []*genai.Content) {
	var (
		system   []string
		contents = make([]*genai.Content, 0, len(messages))
	)
	for _, m := range messages {
		switch normalizeRole(m.Role) {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
