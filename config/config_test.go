package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.LiteMode())
	assert.Equal(t, 15*time.Second, cfg.Timeout())
	assert.Equal(t, "dhportal:case_events", cfg.EventsChannel)
	assert.Equal(t, 30, cfg.DiscordMessagesPerMinute)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoad_FileDoesNotOverrideEnvironment(t *testing.T) {
	f := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(f, []byte("JWT_SECRET=from-file\nPORT=9000\nDATABASE_URL=postgres://x\n"), 0o600))
	t.Setenv("PORT", "7000")
	// t.Setenv restores these after the test; godotenv only sets unset keys
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")

	cfg, err := Load(f)
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.False(t, cfg.LiteMode())
}

func TestLoad_RejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "0")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
