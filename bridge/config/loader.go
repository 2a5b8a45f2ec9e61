package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "BRIDGE"

// keys that get a value when neither file nor env sets them
var defaults = map[string]any{
	"layer1_chain_id":   "interwoven-1",
	"cache_ttl_seconds": 60,
	"staleness_seconds": 10,
	"debounce_millis":   300,
	"service_name":      "spectra-bridge",
	"environment":       "LOCAL",
}

// LoadBridgeConfig loads the service config from a toml file, or from BRIDGE_*
// env vars when configPath is nil
func LoadBridgeConfig(configPath *string) (*BridgeConfig, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if configPath == nil {
		config, err := loadEnv(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load env config: %w", err)
		}
		return config, nil
	}
	config, err := loadFile(v, *configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load file config: %w", err)
	}
	return config, nil
}

func loadEnv(v *viper.Viper) (*BridgeConfig, error) {
	// a missing .env is fine, env can come from docker or systemd
	_ = godotenv.Load()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var config BridgeConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

// bindEnvKeys binds each config key to its env var so Unmarshal sees env values
// when no config file is loaded.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"port", "host", "allowed_origins",
		"rate_per_minute", "max_concurrent_requests",
		"router_urls", "layer1_chain_id",
		"registry_file", "registry_url", "registry_cache_dir",
		"cache_ttl_seconds", "staleness_seconds", "debounce_millis",
		"reminder_store_path", "evm_rpc_urls",
		"service_name", "service_version", "environment",
		"enable_tracing", "use_otlp_traces", "otlp_traces_url",
		"enable_metrics", "use_prometheus", "use_otlp_metrics", "otlp_metrics_url",
		"enable_logs", "use_otlp_logs", "otlp_logs_url",
		"insecure_otlp", "development_mode",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadFile(v *viper.Viper, configPath string) (*BridgeConfig, error) {
	if !strings.HasSuffix(configPath, ".toml") {
		return nil, fmt.Errorf("config file must be a toml file")
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config BridgeConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

func verifyConfig(config *BridgeConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if config.Host == "" {
		return fmt.Errorf("host is required")
	}
	if len(config.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required")
	}

	if len(config.RouterURLs) == 0 {
		return fmt.Errorf("router_urls is required")
	}
	for _, u := range config.RouterURLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			return fmt.Errorf("router_urls contains an invalid url %q", u)
		}
	}
	if config.Layer1ChainID == "" {
		return fmt.Errorf("layer1_chain_id is required")
	}

	if config.CacheTTLSeconds <= 0 {
		return fmt.Errorf("cache_ttl_seconds must be positive")
	}
	if config.StalenessSeconds <= 0 {
		return fmt.Errorf("staleness_seconds must be positive")
	}
	if config.DebounceMillis < 0 {
		return fmt.Errorf("debounce_millis must not be negative")
	}
	if config.RatePerMinute < 0 || config.MaxConcurrentRequests < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if _, err := config.EVMNodes(); err != nil {
		return err
	}

	if config.EnableTracing && config.UseOTLPTraces && config.OTLPTracesURL == "" {
		return fmt.Errorf("otlp_traces_url is required when use_otlp_traces is set")
	}
	if config.EnableMetrics && config.UseOTLPMetrics && config.OTLPMetricsURL == "" {
		return fmt.Errorf("otlp_metrics_url is required when use_otlp_metrics is set")
	}
	if config.EnableLogs && config.UseOTLPLogs && config.OTLPLogsURL == "" {
		return fmt.Errorf("otlp_logs_url is required when use_otlp_logs is set")
	}
	return nil
}
