package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/address"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/approval"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/config"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/intent"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/registry"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/reminder"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/routerapi"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/rpc"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/simulate"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()

	rpc.SetLogger(log)
}

func main() {
	configPath := flag.String("config", "", "toml config file, BRIDGE_* env vars are used when empty")
	flag.Parse()

	var cfgPath *string
	if *configPath != "" {
		cfgPath = configPath
	}
	cfg, err := config.LoadBridgeConfig(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	log.Info().
		Str("config", *configPath).
		Str("layer1", cfg.Layer1ChainID).
		Msg("Starting Spectra Bridge")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cacheDir := cfg.RegistryCacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "spectra-bridge")
	}
	fallback, err := registry.LoadFallback(ctx, cfg.RegistryFile, cfg.RegistryURL, cacheDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load chain registry")
	}

	router, err := routerapi.NewClientWithFailover(cfg.RouterURLs[0], cfg.RouterURLs[1:], routerapi.DefaultFailoverConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create routing client")
	}
	defer router.Close()

	reg := registry.New(router, fallback, registry.Options{
		Layer1ChainID: cfg.Layer1ChainID,
		TTL:           cfg.CacheTTL(),
	})
	log.Info().Int("chains", len(reg.Chains(ctx))).Msg("Chain registry ready")

	reminders, err := reminder.NewStore(cfg.ReminderStorePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open reminder store")
	}

	services := &rpc.Services{
		Simulator: simulate.NewSimulator(router, reg),
		Intents:   intent.NewResolver(reg),
		Chains:    reg,
		// the public key comes with the request, the server never talks to a wallet
		Addresses: address.NewResolver(reg, nil),
		Router:    router,
		Reminders: reminders,
		Recent:    registry.NewRecentPairs(8),
		Balances:  router,
		Settings: rpc.ClientSettings{
			Layer1ChainID:    reg.Layer1(),
			StalenessSeconds: cfg.StalenessSeconds,
			DebounceMillis:   cfg.DebounceMillis,
		},
	}

	evmURLs, err := cfg.EVMNodes()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid evm rpc config")
	}
	if len(evmURLs) > 0 {
		nodes := make(map[string]approval.Node, len(evmURLs))
		for chainID, url := range evmURLs {
			evm, err := ethclient.DialContext(ctx, url)
			if err != nil {
				log.Fatal().Err(err).Str("chain_id", chainID).Msg("Failed to connect to evm rpc")
			}
			defer evm.Close()
			nodes[chainID] = evm
		}

		gate, err := approval.NewGate(nodes, approval.DefaultPollInterval)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create approval gate")
		}
		services.Approvals = gate
		log.Info().Strs("chains", gate.Chains()).Msg("Approval checks enabled")
	}

	server, err := rpc.NewServer(ctx, buildServerConfig(cfg), services)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create API server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
			sigCh <- syscall.SIGTERM
		}
	}()

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}

// buildServerConfig converts the loaded BridgeConfig to rpc.ServerConfig
func buildServerConfig(cfg *config.BridgeConfig) *rpc.ServerConfig {
	serverConfig := &rpc.ServerConfig{
		Address:               cfg.Host + ":" + strconv.Itoa(cfg.Port),
		AllowedOrigins:        cfg.AllowedOrigins,
		EnableMetrics:         cfg.UsePrometheus,
		RatePerMinute:         cfg.RatePerMinute,
		MaxConcurrentRequests: cfg.MaxConcurrentRequests,
	}

	if cfg.EnableTracing || cfg.EnableMetrics || cfg.EnableLogs {
		serverConfig.OTelConfig = &rpc.OTelConfig{
			ServiceName:     defaultString(cfg.ServiceName, "spectra-bridge"),
			ServiceVersion:  defaultString(cfg.ServiceVersion, "1.0.0"),
			Environment:     defaultString(cfg.Environment, "development"),
			EnableTracing:   cfg.EnableTracing,
			UseOTLPTraces:   cfg.UseOTLPTraces,
			OTLPTracesURL:   cfg.OTLPTracesURL,
			EnableMetrics:   cfg.EnableMetrics,
			UsePrometheus:   cfg.UsePrometheus,
			UseOTLPMetrics:  cfg.UseOTLPMetrics,
			OTLPMetricsURL:  cfg.OTLPMetricsURL,
			EnableLogs:      cfg.EnableLogs,
			UseOTLPLogs:     cfg.UseOTLPLogs,
			OTLPLogsURL:     cfg.OTLPLogsURL,
			InsecureOTLP:    cfg.InsecureOTLP,
			DevelopmentMode: cfg.DevelopmentMode,
		}
	}

	return serverConfig
}

// defaultString returns the default value if s is empty
func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
