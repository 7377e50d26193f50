package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"wellness-chat/pkg"
)

func TestConversation(t *testing.T) {
	history := []pkg.Turn{
		{Role: pkg.RoleAssistant, Content: "Namaste!"},
		{Role: pkg.RoleUser, Content: "Is ginger good for digestion?"},
	}

	got := Conversation("be kind", history, "Is ginger good for digestion?")
	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "be kind"},
		{Role: RoleAssistant, Content: "Namaste!"},
		{Role: RoleUser, Content: "Is ginger good for digestion?"},
	}, got, "trailing user turn equal to the prompt is not duplicated")
}

func TestConversation_PromptNotInHistory(t *testing.T) {
	history := []pkg.Turn{{Role: pkg.RoleAssistant, Content: "Namaste!"}}
	got := Conversation("", history, "hello")
	assert.Equal(t, []Message{
		{Role: RoleAssistant, Content: "Namaste!"},
		{Role: RoleUser, Content: "hello"},
	}, got)
}

func TestGeminiContents(t *testing.T) {
	system, contents := geminiContents([]Message{
		{Role: RoleSystem, Content: "rules"},
		{Role: RoleAssistant, Content: "hi"},
		{Role: RoleUser, Content: "question"},
	})
	assert.Equal(t, "rules", system)
	require.Len(t, contents, 2)
	assert.Equal(t, string(genai.RoleModel), contents[0].Role)
	assert.Equal(t, string(genai.RoleUser), contents[1].Role)
	assert.Equal(t, "question", contents[1].Parts[0].Text)
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, RoleSystem, normalizeRole("system"))
	assert.Equal(t, RoleAssistant, normalizeRole("assistant"))
	assert.Equal(t, RoleUser, normalizeRole("user"))
	assert.Equal(t, RoleUser, normalizeRole("doctor"))

	msgs := openaiMessages([]Message{{Role: "doctor", Content: "x"}, {Role: RoleAssistant, Content: "y"}})
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)

	_, contents := geminiContents([]Message{{Role: "doctor", Content: "x"}})
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
}

func TestOpenAIClient_Chat(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Try warm water with cumin."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", srv.URL+"/v1", "", 0.2)
	reply, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "rules"},
		{Role: "doctor", Content: "unknown role"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Try warm water with cumin.", reply)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "user", got.Messages[1].Role, "unknown roles are coerced to user")
}

func TestOpenAIClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", srv.URL+"/v1", "gpt-test", 0)
	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	c, err := New(context.Background(), "openai", "k", "", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = New(context.Background(), "llama", "k", "", "", 0)
	assert.Error(t, err)
}
