package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wellness-chat/internal/config"
	"wellness-chat/pkg"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	cfg, err := config.Parse([]byte(`
database:
  driver: sqlite
  url: ":memory:"
completion:
  provider: openai
  api_key: test
`))
	require.NoError(t, err)
	return cfg
}

func TestOpen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := Open(ctx, testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	m := pkg.Message{ID: "m1", Content: "Namaste!", Role: pkg.RoleAssistant, Timestamp: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, b.Direct.SaveMessage(ctx, "s1", m))
	got, err := b.Direct.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []pkg.Message{m}, got)

	assert.NoError(t, b.StartSweeper(ctx, testConfig(t), zap.NewNop()))
}

func TestOpen_BadProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Completion.Provider = "llama"
	_, err := Open(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestStartSweeper_Disabled(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg, err := config.Parse([]byte(`
database:
  driver: sqlite
  url: ":memory:"
  sweep_schedule: "Off"
`))
	require.NoError(t, err)
	require.Equal(t, config.SweepOff, cfg.Database.SweepSchedule)

	b, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()
	assert.NoError(t, b.StartSweeper(context.Background(), cfg, zap.NewNop()))
}

func TestStartSweeper_BadSchedule(t *testing.T) {
	cfg := testConfig(t)
	b, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer b.Close()

	cfg.Database.SweepSchedule = "garbage"
	assert.Error(t, b.StartSweeper(context.Background(), cfg, zap.NewNop()))
}
