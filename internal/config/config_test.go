package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"lobby/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  ws_port: 5600\n")
	require.NoError(t, config.LoadConfig(path))

	// 没写的键取默认值：登录拦截开着，宽限期 60 秒
	assert.True(t, config.AppConfig.Server.LoginIntercept)
	assert.Equal(t, 60, config.AppConfig.Match.GracePeriod)
	assert.Equal(t, 15, config.AppConfig.Consul.TTL)
	assert.Equal(t, 5600, config.AppConfig.Server.WSPort)
}

func TestLoadConfig_LoginInterceptCanBeDisabled(t *testing.T) {
	path := writeConfig(t, "server:\n  login_intercept: false\nmatch:\n  grace_period: 30\n")
	require.NoError(t, config.LoadConfig(path))

	assert.False(t, config.AppConfig.Server.LoginIntercept)
	assert.Equal(t, 30, config.AppConfig.Match.GracePeriod)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
