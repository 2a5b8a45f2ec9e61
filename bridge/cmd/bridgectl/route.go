package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/freshness"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/simulate"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	routeFromChain string
	routeFromDenom string
	routeToChain   string
	routeToDenom   string
	routeAmount    string
	routeSlippage  string
	routeOp        bool
	routeWatch     bool
)

var routeCmd = &cobra.Command{
	Use:   "route [text]",
	Short: "Simulate a transfer and show the selected route",
	Long: `Simulate a transfer against the routing service. The transfer is either
described in free text or given with explicit flags; flags win over the text.

When the transfer is an op-bridge withdrawal both route types are queried and
the preferred one is shown, falling back to the other when it fails.

Examples:
  bridgectl route 100 USDC on arbitrum to initia
  bridgectl route --from-chain echelon-1 --from-denom l2/abc --to-chain interwoven-1 --to-denom uinit --amount 5 --op
  bridgectl route 1 INIT to echelon --watch`,
	RunE: runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)

	routeCmd.Flags().StringVar(&routeFromChain, "from-chain", "", "Source chain id")
	routeCmd.Flags().StringVar(&routeFromDenom, "from-denom", "", "Source denom")
	routeCmd.Flags().StringVar(&routeToChain, "to-chain", "", "Destination chain id")
	routeCmd.Flags().StringVar(&routeToDenom, "to-denom", "", "Destination denom")
	routeCmd.Flags().StringVar(&routeAmount, "amount", "", "Amount in display units, e.g. 1.5")
	routeCmd.Flags().StringVar(&routeSlippage, "slippage", "", "Slippage tolerance in percent")
	routeCmd.Flags().BoolVar(&routeOp, "op", false, "Prefer the op-bridge withdrawal route")
	routeCmd.Flags().BoolVar(&routeWatch, "watch", false, "Keep re-simulating on the refresh cadence")
}

func runRoute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	var values models.FormValues
	if len(args) > 0 {
		resolved, err := resolveText(ctx, cmd, e, strings.Join(args, " "))
		if err != nil {
			return err
		}
		values = resolved.FormValues()
	}
	overrideFlags(&values)
	if routeOp {
		values.RouteType = models.RouteTypeOpWithdraw
	}
	if err := values.Validate(); err != nil {
		return fmt.Errorf("incomplete transfer: %w", err)
	}

	sim := simulate.NewSimulator(e.router, e.registry)
	sel, err := simulateWithSpinner(ctx, cmd, sim, values)
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		if err := printJSON(sel); err != nil {
			return err
		}
	} else {
		printSelection(ctx, e, sel)
	}

	if !routeWatch {
		return nil
	}
	return watchRoute(ctx, cmd, e, sim, values, sel.Route)
}

func overrideFlags(values *models.FormValues) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&values.SrcChainID, routeFromChain)
	set(&values.SrcDenom, routeFromDenom)
	set(&values.DstChainID, routeToChain)
	set(&values.DstDenom, routeToDenom)
	set(&values.Quantity, routeAmount)
	set(&values.SlippagePercent, routeSlippage)
}

func simulateWithSpinner(ctx context.Context, cmd *cobra.Command, sim *simulate.Simulator, values models.FormValues) (*simulate.Selection, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput(cmd) {
		s.Suffix = " Simulating route..."
		s.Start()
	}
	sel, err := sim.Simulate(ctx, values)
	if !jsonOutput(cmd) {
		s.Stop()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to simulate route: %w", err)
	}
	return sel, nil
}

// watchRoute re-simulates until interrupted and reports quotes that changed
func watchRoute(ctx context.Context, cmd *cobra.Command, e *env, sim *simulate.Simulator, values models.FormValues, current *models.Route) error {
	interval := sim.RefreshIntervalFor(ctx, values)
	color.HiBlack("  refreshing every %s, ctrl-c to stop", interval)

	last, err := freshness.Signature(current)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		sel, err := sim.Simulate(ctx, values)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			color.Red("  %s refresh failed: %v", time.Now().Format(time.TimeOnly), err)
			continue
		}
		sig, err := freshness.Signature(sel.Route)
		if err != nil {
			return err
		}
		if sig == last {
			color.HiBlack("  %s unchanged", time.Now().Format(time.TimeOnly))
			continue
		}
		last = sig
		color.Yellow("  %s route changed", time.Now().Format(time.TimeOnly))
		if jsonOutput(cmd) {
			if err := printJSON(sel); err != nil {
				return err
			}
		} else {
			printSelection(ctx, e, sel)
		}
	}
}

func displayAmount(ctx context.Context, e *env, amount, denom, chainID string) string {
	asset, ok := e.registry.FindAsset(ctx, denom, chainID)
	if !ok {
		return amount + " " + denom
	}
	human, err := models.FromBaseUnits(amount, asset.Decimals)
	if err != nil {
		return amount + " " + denom
	}
	return human + " " + asset.Symbol
}

func printSelection(ctx context.Context, e *env, sel *simulate.Selection) {
	r := sel.Route
	src := e.registry.FindChain(ctx, r.SourceAssetChainID)
	dst := e.registry.FindChain(ctx, r.DestAssetChainID)

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                           ROUTE")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  From:         %s on %s\n", color.CyanString(displayAmount(ctx, e, r.AmountIn, r.SourceAssetDenom, r.SourceAssetChainID)), src.DisplayName())
	fmt.Printf("  To:           %s on %s\n", color.GreenString(displayAmount(ctx, e, r.AmountOut, r.DestAssetDenom, r.DestAssetChainID)), dst.DisplayName())

	routeType := string(sel.Type)
	if sel.FellBack {
		routeType += color.YellowString(" (fallback)")
	}
	fmt.Printf("  Route type:   %s\n", routeType)
	fmt.Printf("  Operations:   %d\n", len(r.Operations))
	if r.EstimatedRouteDurationSeconds > 0 {
		fmt.Printf("  Duration:     %s\n", time.Duration(r.EstimatedRouteDurationSeconds)*time.Second)
	}
	if r.RequiredOpHook {
		fmt.Printf("  Op hook:      %s\n", color.YellowString("signature required"))
	}

	deducted, additional := r.FeesByBehavior()
	for _, f := range deducted {
		fmt.Printf("  Fee (in):     %s  %s\n", displayAmount(ctx, e, f.Amount, f.OriginAsset.Denom, f.OriginAsset.ChainID), color.HiBlackString("%s", f.FeeType))
	}
	for _, f := range additional {
		fmt.Printf("  Fee (extra):  %s  %s\n", displayAmount(ctx, e, f.Amount, f.OriginAsset.Denom, f.OriginAsset.ChainID), color.HiBlackString("%s", f.FeeType))
	}

	if r.Warning != nil {
		color.Yellow("\n  Warning: %s", r.Warning.Message)
	}
	fmt.Println()
}
