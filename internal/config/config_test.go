package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "5000", cfg.Port)
	require.Equal(t, "db", cfg.WaterNameSource)
	require.True(t, cfg.DBResetOnStart)
	require.Equal(t, 500*time.Millisecond, cfg.MarketThrottle)
	require.Equal(t, 20*time.Second, cfg.ExportTTL)
	require.Equal(t, 20, cfg.ChatHistoryLimit)
	require.False(t, cfg.RequireAdminSession)
	require.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.AllowedOrigins())
}

func TestLoadFile(t *testing.T) {
	configFile := createTempConfigFile(t,
		"PORT=8088\n",
		"DB_RESET_ON_START=false\n",
		"MARKET_THROTTLE=2s\n",
		"ZHIPU_API_KEY=zk-123\n",
		"WATER_NAME_SOURCE=files\n",
	)

	cfg, err := Load(configFile)
	require.NoError(t, err)

	require.Equal(t, "8088", cfg.Port)
	require.False(t, cfg.DBResetOnStart)
	require.Equal(t, 2*time.Second, cfg.MarketThrottle)
	require.Equal(t, "zk-123", cfg.LLMAPIKey)
	require.Equal(t, "files", cfg.WaterNameSource)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	configFile := createTempConfigFile(t, "PORT=8088\n")
	t.Setenv("PORT", "9099")

	cfg, err := Load(configFile)
	require.NoError(t, err)
	require.Equal(t, "9099", cfg.Port)
}

func TestLoadInvalidWaterSource(t *testing.T) {
	configFile := createTempConfigFile(t, "WATER_NAME_SOURCE=ftp\n")

	_, err := Load(configFile)
	require.Error(t, err)
}

func TestLoadConfigInvalidPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func createTempConfigFile(t *testing.T, lines ...string) string {
	t.Helper()

	configFile := filepath.Join(t.TempDir(), "test_config.env")
	file, err := os.Create(configFile)
	require.NoError(t, err)
	defer file.Close()

	for _, line := range lines {
		_, err = file.WriteString(line)
		require.NoError(t, err)
	}
	return configFile
}
