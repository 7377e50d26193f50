package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Parse consults.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "OPENAI_API_KEY", "OPENAI_MODEL_CHAT", "GEMINI_API_KEY", "PORT", "CHAT_SERVER_URL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "wellness-chat.db", cfg.Database.URL)
	assert.Equal(t, 30*24*time.Hour, cfg.Database.Retention)
	assert.Equal(t, "0 3 * * *", cfg.Database.SweepSchedule)
	assert.Equal(t, "openai", cfg.Completion.Provider)
	assert.Equal(t, 60*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, 10, cfg.Chat.MaxTurns)
	assert.Equal(t, "http://localhost:8080", cfg.Chat.ServerURL)
	assert.Equal(t, "identity.db", filepath.Base(cfg.Chat.IdentityPath))
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParse_File(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte(`
server:
  port: 9000
database:
  driver: postgres
  url: postgres://localhost/chat
  notify_channel: chat_session_ended
  retention: 72h
completion:
  provider: Gemini
  model: gemini-2.0-flash
  temperature: 0.3
  timeout: 20s
chat:
  max_turns: 6
log:
  level: debug
  development: true
`))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "chat_session_ended", cfg.Database.NotifyChannel)
	assert.Equal(t, 72*time.Hour, cfg.Database.Retention)
	assert.Equal(t, "gemini", cfg.Completion.Provider)
	assert.InDelta(t, 0.3, cfg.Completion.Temperature, 1e-6)
	assert.Equal(t, 20*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, 6, cfg.Chat.MaxTurns)
	assert.Equal(t, "http://localhost:9000", cfg.Chat.ServerURL)
	assert.True(t, cfg.Log.Development)
}

func TestParse_SweepOff(t *testing.T) {
	clearEnv(t)
	cfg, err := Parse([]byte("database:\n  sweep_schedule: off\n"))
	require.NoError(t, err)
	assert.Equal(t, SweepOff, cfg.Database.SweepSchedule)
	assert.Equal(t, 30*24*time.Hour, cfg.Database.Retention)
}

func TestParse_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://db/chat")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL_CHAT", "gpt-test")
	t.Setenv("PORT", "7070")
	t.Setenv("CHAT_SERVER_URL", "https://chat.example.com")

	cfg, err := Parse([]byte("database:\n  url: ignored.db\n"))
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://db/chat", cfg.Database.URL)
	assert.Equal(t, "sk-test", cfg.Completion.APIKey)
	assert.Equal(t, "gpt-test", cfg.Completion.Model)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "https://chat.example.com", cfg.Chat.ServerURL)
}

func TestParse_GeminiKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-wrong")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OPENAI_MODEL_CHAT", "gpt-test")

	cfg, err := Parse([]byte("completion:\n  provider: gemini\n"))
	require.NoError(t, err)
	assert.Equal(t, "g-key", cfg.Completion.APIKey)
	assert.Empty(t, cfg.Completion.Model)
}

func TestParse_Invalid(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name, yaml, want string
	}{
		{"driver", "database:\n  driver: oracle\n  url: x\n", "database.driver"},
		{"notify on sqlite", "database:\n  notify_channel: ended\n", "notify_channel"},
		{"provider", "completion:\n  provider: llama\n", "completion.provider"},
		{"max turns", "chat:\n  max_turns: -1\n", "chat.max_turns"},
		{"port", "server:\n  port: 70000\n", "server.port"},
		{"syntax", "server: [", "config: parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_BadPortEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	_, err := Parse(nil)
	assert.ErrorContains(t, err, "PORT")
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chat:\n  max_turns: 4\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Chat.MaxTurns)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Chat.MaxTurns)
}
