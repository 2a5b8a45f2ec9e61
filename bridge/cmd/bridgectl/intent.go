package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/intent"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse <text>",
	Short: "Split a transfer description into amount, assets and chains",
	Long: `Run the intent parser alone. Nothing is looked up, so the output shows
exactly which words landed in which slot.

Examples:
  bridgectl parse "100 USDC from Ethereum to iUSD on Cabal"
  bridgectl parse "1.5 INIT -> echelon"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <text>",
	Short: "Resolve a transfer description against the live chain and asset catalog",
	Long: `Parse the text and match every slot against the routing service catalog.
Slots that cannot be pinned to a chain and denom are left empty.

Examples:
  bridgectl resolve "1 INIT to echelon"
  bridgectl resolve "100 USDC on arbitrum to initia"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(resolveCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	parsed := intent.Parse(strings.Join(args, " "))

	if jsonOutput(cmd) {
		return printJSON(parsed)
	}

	fmt.Println()
	fmt.Printf("  Amount:       %s\n", orDash(parsed.Amount))
	fmt.Printf("  From asset:   %s\n", color.CyanString(orDash(parsed.Src.AssetText)))
	fmt.Printf("  From chain:   %s\n", color.CyanString(orDash(parsed.Src.ChainText)))
	fmt.Printf("  To asset:     %s\n", color.GreenString(orDash(parsed.Dst.AssetText)))
	fmt.Printf("  To chain:     %s\n", color.GreenString(orDash(parsed.Dst.ChainText)))
	fmt.Println()
	return nil
}

// resolveText resolves text with a spinner while the catalog loads
func resolveText(ctx context.Context, cmd *cobra.Command, e *env, text string) (models.ResolvedIntent, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput(cmd) {
		s.Suffix = " Loading chains and assets..."
		s.Start()
	}
	_, resolved, err := intent.NewResolver(e.registry).ParseAndResolve(ctx, text)
	if !jsonOutput(cmd) {
		s.Stop()
	}
	return resolved, err
}

func runResolve(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	resolved, err := resolveText(cmd.Context(), cmd, e, strings.Join(args, " "))
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		return printJSON(resolved)
	}

	fmt.Println()
	fmt.Printf("  Amount:   %s\n", orDash(resolved.Amount))
	printSlot("From", resolved.Src)
	printSlot("To", resolved.Dst)
	fmt.Println()
	if resolved.IsComplete() {
		color.Green("  Ready to route")
	} else {
		color.Yellow("  Incomplete, pick the missing chain or asset explicitly")
	}
	fmt.Println()
	return nil
}

func printSlot(label string, slot models.IntentSlot) {
	if !slot.Resolved() {
		fmt.Printf("  %-8s  %s\n", label+":", color.RedString("unresolved (chain %s, denom %s)", orDash(slot.ChainID), orDash(slot.Denom)))
		return
	}
	fmt.Printf("  %-8s  %s on %s  %s\n", label+":",
		color.CyanString(slot.Symbol),
		color.CyanString(orDash(slot.ChainName)),
		color.HiBlackString("%s @ %s", slot.Denom, slot.ChainID),
	)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
