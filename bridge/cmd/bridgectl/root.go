package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/registry"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/routerapi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "bridgectl",
	Short: "Operator CLI for the Spectra bridge",
	Long: `bridgectl drives the bridge components from a terminal: it parses and
resolves free-text transfer intents, simulates routes against the routing
service and lists the chains the registry knows about.

Settings come from flags, BRIDGE_* environment variables or a .bridgectl.toml
file in the current or home directory.

Examples:
  bridgectl parse "swap 1.5 INIT on initia to USDC on noble"
  bridgectl resolve "1 INIT to echelon"
  bridgectl route 100 USDC on arbitrum to initia
  bridgectl chains --type evm`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringSlice("router", nil, "Routing service URLs, primary first")
	rootCmd.PersistentFlags().String("registry-file", "", "Bundled chain registry file")
	rootCmd.PersistentFlags().String("layer1", "", "Layer 1 chain id")

	_ = viper.BindPFlag("router_urls", rootCmd.PersistentFlags().Lookup("router"))
	_ = viper.BindPFlag("registry_file", rootCmd.PersistentFlags().Lookup("registry-file"))
	_ = viper.BindPFlag("layer1_chain_id", rootCmd.PersistentFlags().Lookup("layer1"))
}

func initConfig() {
	viper.SetConfigName(".bridgectl")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")

	viper.SetDefault("layer1_chain_id", "interwoven-1")

	viper.SetEnvPrefix("BRIDGE")
	viper.AutomaticEnv()

	// the file is optional
	_ = viper.ReadInConfig()
}

// routerURLs accepts both a list and a comma separated env value
func routerURLs() []string {
	var out []string
	for _, v := range viper.GetStringSlice("router_urls") {
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				out = append(out, u)
			}
		}
	}
	return out
}

// env is what the live commands share
type env struct {
	router   *routerapi.Client
	registry *registry.Registry
}

func newEnv(ctx context.Context) (*env, error) {
	urls := routerURLs()
	if len(urls) == 0 {
		return nil, fmt.Errorf("no routing service configured, use --router or BRIDGE_ROUTER_URLS")
	}

	fallback, err := registry.LoadFallback(ctx, viper.GetString("registry_file"), "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to load chain registry: %w", err)
	}

	cfg := routerapi.DefaultFailoverConfig()
	// a one-shot command has no use for background health checks
	cfg.HealthCheckInterval = 0
	router, err := routerapi.NewClientWithFailover(urls[0], urls[1:], cfg)
	if err != nil {
		return nil, err
	}

	reg := registry.New(router, fallback, registry.Options{
		Layer1ChainID: viper.GetString("layer1_chain_id"),
	})
	return &env{router: router, registry: reg}, nil
}

func (e *env) Close() {
	e.router.Close()
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}
