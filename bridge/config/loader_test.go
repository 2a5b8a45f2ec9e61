package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/config"
	"github.com/zeebo/assert"
)

// unsetBridgeEnv clears BRIDGE_ vars left by other tests
func unsetBridgeEnv(t *testing.T) {
	t.Helper()
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "BRIDGE_") {
			if idx := strings.Index(e, "="); idx != -1 {
				_ = os.Unsetenv(e[:idx])
			}
		}
	}
	// keep godotenv from picking up a .env in the package dir
	t.Chdir(t.TempDir())
}

func TestLoadFromEnv(t *testing.T) {
	unsetBridgeEnv(t)
	t.Setenv("BRIDGE_PORT", "8080")
	t.Setenv("BRIDGE_HOST", "0.0.0.0")
	t.Setenv("BRIDGE_ALLOWED_ORIGINS", "*")
	t.Setenv("BRIDGE_ROUTER_URLS", "https://router.example.com,https://backup.example.com")
	t.Setenv("BRIDGE_STALENESS_SECONDS", "15")
	t.Setenv("BRIDGE_EVM_RPC_URLS", "1=https://eth.example.com,42161=https://arb.example.com")

	cfg, err := config.LoadBridgeConfig(nil)
	assert.NoError(t, err)
	assert.Equal(t, cfg.Port, 8080)
	assert.Equal(t, cfg.Host, "0.0.0.0")
	assert.Equal(t, len(cfg.RouterURLs), 2)
	assert.Equal(t, cfg.StalenessSeconds, 15)
	// defaults
	assert.Equal(t, cfg.Layer1ChainID, "interwoven-1")
	assert.Equal(t, cfg.CacheTTL(), time.Minute)

	nodes, err := cfg.EVMNodes()
	assert.NoError(t, err)
	assert.DeepEqual(t, nodes, map[string]string{"1": "https://eth.example.com", "42161": "https://arb.example.com"})
	assert.Equal(t, cfg.DebounceMillis, 300)
}

func TestLoadFromEnvFailsVerification(t *testing.T) {
	unsetBridgeEnv(t)
	t.Setenv("BRIDGE_PORT", "8080")
	t.Setenv("BRIDGE_HOST", "0.0.0.0")
	t.Setenv("BRIDGE_ALLOWED_ORIGINS", "*")

	_, err := config.LoadBridgeConfig(nil)
	assert.Error(t, err)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.toml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	unsetBridgeEnv(t)
	path := writeConfig(t, `
port = 9090
host = "127.0.0.1"
allowed_origins = ["https://bridge.example.com"]
router_urls = ["https://router.example.com"]
layer1_chain_id = "initiation-2"
registry_file = "chains.toml"
cache_ttl_seconds = 30
enable_metrics = true
use_prometheus = true
`)

	cfg, err := config.LoadBridgeConfig(&path)
	assert.NoError(t, err)
	assert.Equal(t, cfg.Port, 9090)
	assert.DeepEqual(t, cfg.AllowedOrigins, []string{"https://bridge.example.com"})
	assert.Equal(t, cfg.Layer1ChainID, "initiation-2")
	assert.Equal(t, cfg.RegistryFile, "chains.toml")
	assert.Equal(t, cfg.CacheTTL(), 30*time.Second)
	assert.True(t, cfg.UsePrometheus)
}

func TestLoadFromFileRejects(t *testing.T) {
	unsetBridgeEnv(t)

	tests := []struct {
		name    string
		content string
	}{
		{"bad router url", "port = 1\nhost = \"h\"\nallowed_origins = [\"*\"]\nrouter_urls = [\"not a url\"]\n"},
		{"bad port", "port = 70000\nhost = \"h\"\nallowed_origins = [\"*\"]\nrouter_urls = [\"https://r\"]\n"},
		{"otlp without url", "port = 1\nhost = \"h\"\nallowed_origins = [\"*\"]\nrouter_urls = [\"https://r\"]\nenable_tracing = true\nuse_otlp_traces = true\n"},
		{"evm url without chain", "port = 1\nhost = \"h\"\nallowed_origins = [\"*\"]\nrouter_urls = [\"https://r\"]\nevm_rpc_urls = [\"https://eth\"]\n"},
		{"evm chain twice", "port = 1\nhost = \"h\"\nallowed_origins = [\"*\"]\nrouter_urls = [\"https://r\"]\nevm_rpc_urls = [\"1=https://a\", \"1=https://b\"]\n"},
		{"zero staleness", "port = 1\nhost = \"h\"\nallowed_origins = [\"*\"]\nrouter_urls = [\"https://r\"]\nstaleness_seconds = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := config.LoadBridgeConfig(&path)
			assert.Error(t, err)
		})
	}

	wrong := "bridge.yaml"
	_, err := config.LoadBridgeConfig(&wrong)
	assert.Error(t, err)
}
