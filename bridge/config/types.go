package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type BridgeConfig struct {
	// rpc configs
	Port int    `toml:"port" mapstructure:"port"`
	Host string `toml:"host" mapstructure:"host"`

	// CORS configs
	AllowedOrigins []string `toml:"allowed_origins" mapstructure:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `toml:"rate_per_minute" mapstructure:"rate_per_minute"`
	MaxConcurrentRequests int `toml:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`

	// Routing service, primary first
	RouterURLs    []string `toml:"router_urls" mapstructure:"router_urls"`
	Layer1ChainID string   `toml:"layer1_chain_id" mapstructure:"layer1_chain_id"`

	// Chain registry: bundled file, optional remote copy and where to keep it
	RegistryFile     string `toml:"registry_file" mapstructure:"registry_file"`
	RegistryURL      string `toml:"registry_url" mapstructure:"registry_url"`
	RegistryCacheDir string `toml:"registry_cache_dir" mapstructure:"registry_cache_dir"`

	CacheTTLSeconds  int `toml:"cache_ttl_seconds" mapstructure:"cache_ttl_seconds"`
	StalenessSeconds int `toml:"staleness_seconds" mapstructure:"staleness_seconds"`
	DebounceMillis   int `toml:"debounce_millis" mapstructure:"debounce_millis"`

	ReminderStorePath string `toml:"reminder_store_path" mapstructure:"reminder_store_path"`
	// EVM json-rpc per chain as "<evm chain id>=<url>", used for allowance and
	// receipt reads. Empty disables the approvals endpoint.
	EVMRPCURLs []string `toml:"evm_rpc_urls" mapstructure:"evm_rpc_urls"`

	// OpenTelemetry configs
	ServiceName    string `toml:"service_name" mapstructure:"service_name"`
	ServiceVersion string `toml:"service_version" mapstructure:"service_version"`
	Environment    string `toml:"environment" mapstructure:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing  bool   `toml:"enable_tracing" mapstructure:"enable_tracing"`
	UseOTLPTraces  bool   `toml:"use_otlp_traces" mapstructure:"use_otlp_traces"`
	OTLPTracesURL  string `toml:"otlp_traces_url" mapstructure:"otlp_traces_url"`
	EnableMetrics  bool   `toml:"enable_metrics" mapstructure:"enable_metrics"`
	UsePrometheus  bool   `toml:"use_prometheus" mapstructure:"use_prometheus"`
	UseOTLPMetrics bool   `toml:"use_otlp_metrics" mapstructure:"use_otlp_metrics"`
	OTLPMetricsURL string `toml:"otlp_metrics_url" mapstructure:"otlp_metrics_url"`
	EnableLogs     bool   `toml:"enable_logs" mapstructure:"enable_logs"`
	UseOTLPLogs    bool   `toml:"use_otlp_logs" mapstructure:"use_otlp_logs"`
	OTLPLogsURL    string `toml:"otlp_logs_url" mapstructure:"otlp_logs_url"`

	InsecureOTLP bool `toml:"insecure_otlp" mapstructure:"insecure_otlp"`

	// Development mode uses stdout exporters
	DevelopmentMode bool `toml:"development_mode" mapstructure:"development_mode"`
}

func (c *BridgeConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// EVMNodes parses evm_rpc_urls into chain id -> url
func (c *BridgeConfig) EVMNodes() (map[string]string, error) {
	out := make(map[string]string, len(c.EVMRPCURLs))
	for _, entry := range c.EVMRPCURLs {
		chainID, rawURL, ok := strings.Cut(entry, "=")
		chainID, rawURL = strings.TrimSpace(chainID), strings.TrimSpace(rawURL)
		if !ok || chainID == "" || rawURL == "" {
			return nil, fmt.Errorf("evm_rpc_urls entry %q must look like <chain id>=<url>", entry)
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return nil, fmt.Errorf("evm_rpc_urls contains an invalid url for chain %s", chainID)
		}
		if _, dup := out[chainID]; dup {
			return nil, fmt.Errorf("evm_rpc_urls lists chain %s twice", chainID)
		}
		out[chainID] = rawURL
	}
	return out, nil
}
