package llm

import (
	"context"
	"fmt"

	"wellness-chat/pkg"
)

// Roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a minimal provider-neutral chat message.
// Role must be one of: "system", "user", or "assistant".
type Message struct {
	Role    string
	Content string
}

// normalizeRole maps a message role onto the three roles every provider
// accepts.  Anything unknown is sent as a user turn.
func normalizeRole(role string) string {
	switch role {
	case RoleSystem, RoleAssistant:
		return role
	}
	return RoleUser
}

// Client sends a chat history to a language model and returns its reply.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Conversation builds the message list for one completion: the system
// prompt, the history and the new prompt.  When the history already ends
// with the prompt as a user turn it is not repeated.
func Conversation(system string, history []pkg.Turn, prompt string) []Message {
	msgs := make([]Message, 0, len(history)+2)
	if system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: system})
	}
	if n := len(history); n > 0 && history[n-1].Role == pkg.RoleUser && history[n-1].Content == prompt {
		history = history[:n-1]
	}
	for _, t := range history {
		msgs = append(msgs, Message{Role: string(t.Role), Content: t.Content})
	}
	return append(msgs, Message{Role: RoleUser, Content: prompt})
}

// New builds the client for the named provider ("openai" or "gemini").
func New(ctx context.Context, provider, apiKey, baseURL, model string, temperature float32) (Client, error) {
	switch provider {
	case "openai", "":
		return NewOpenAIClient(apiKey, baseURL, model, temperature), nil
	case "gemini":
		return NewGeminiClient(ctx, apiKey, model, temperature)
	}
	return nil, fmt.Errorf("llm: unknown provider %q", provider)
}
