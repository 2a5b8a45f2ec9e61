package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var filterType string

var chainsCmd = &cobra.Command{
	Use:     "chains",
	Aliases: []string{"ls"},
	Short:   "List the chains known to the routing service and the registry",
	Long: `List every chain the bridge can route to, grouped by chain type.

Examples:
  bridgectl chains
  bridgectl chains --type initia`,
	RunE: runChains,
}

func init() {
	rootCmd.AddCommand(chainsCmd)

	chainsCmd.Flags().StringVar(&filterType, "type", "", "Filter by chain type: initia, cosmos or evm")
}

func runChains(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput(cmd) {
		s.Suffix = " Fetching chains..."
		s.Start()
	}
	chains := e.registry.Chains(cmd.Context())
	if !jsonOutput(cmd) {
		s.Stop()
	}

	byType := make(map[models.ChainType][]models.ChainDescriptor)
	total := 0
	for _, c := range chains {
		t := e.registry.ChainType(c)
		if filterType != "" && !strings.EqualFold(string(t), filterType) {
			continue
		}
		byType[t] = append(byType[t], c)
		total++
	}

	if jsonOutput(cmd) {
		return printJSON(byType)
	}

	if len(byType) == 0 {
		fmt.Println("\nNo chains found matching the criteria.")
		return nil
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                         SUPPORTED CHAINS")
	fmt.Println(strings.Repeat("=", 70))

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, string(t))
	}
	sort.Strings(types)

	layer1 := e.registry.Layer1()
	for _, t := range types {
		color.Cyan("\n%s", strings.ToUpper(t))
		fmt.Println(strings.Repeat("-", 70))
		for _, c := range byType[models.ChainType(t)] {
			marker := ""
			if c.ChainID == layer1 {
				marker = color.YellowString(" (layer 1)")
			}
			if len(c.OpDenoms) > 0 {
				marker += color.HiBlackString(" op-bridge: %d denoms", len(c.OpDenoms))
			}
			fmt.Printf("  %-24s %s%s\n", c.ChainID, c.DisplayName(), marker)
		}
	}
	fmt.Printf("\nTotal: %d chains\n\n", total)
	return nil
}
